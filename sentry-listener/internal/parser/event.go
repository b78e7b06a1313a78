// Package parser classifies device lines into telemetry events.
//
// A device line is a one-byte tag followed by a payload:
//
//	T21.50   temperature in °C
//	H40.2    relative humidity in %
//	Isensor warm-up done
//	Edht read timeout
package parser

import "strconv"

// Event is one of Temperature, Humidity, Info or DeviceError.
// The set is closed: isEvent is unexported.
type Event interface {
	isEvent()
}

type Temperature struct {
	Value float64
}

type Humidity struct {
	Value float64
}

// Info is a free-text status message from the device.
type Info struct {
	Text string
}

// DeviceError is a free-text error reported by the device itself.
type DeviceError struct {
	Text string
}

func (Temperature) isEvent() {}
func (Humidity) isEvent()    {}
func (Info) isEvent()        {}
func (DeviceError) isEvent() {}

// Wire type names, shared with the collector's data point types.
const (
	KindTemperature = "temperature"
	KindHumidity    = "humidity"
	KindInfo        = "info"
	KindError       = "error"
)

// Kind returns the wire type name of e.
func Kind(e Event) string {
	switch e.(type) {
	case Temperature:
		return KindTemperature
	case Humidity:
		return KindHumidity
	case Info:
		return KindInfo
	case DeviceError:
		return KindError
	}
	return ""
}

// Reading returns the numeric value for Temperature and Humidity.
func Reading(e Event) (float64, bool) {
	switch ev := e.(type) {
	case Temperature:
		return ev.Value, true
	case Humidity:
		return ev.Value, true
	}
	return 0, false
}

// Format renders e back into a device line.
func Format(e Event) string {
	switch ev := e.(type) {
	case Temperature:
		return string(TagTemperature) + strconv.FormatFloat(ev.Value, 'g', -1, 64)
	case Humidity:
		return string(TagHumidity) + strconv.FormatFloat(ev.Value, 'g', -1, 64)
	case Info:
		return string(TagInfo) + ev.Text
	case DeviceError:
		return string(TagError) + ev.Text
	}
	return ""
}
