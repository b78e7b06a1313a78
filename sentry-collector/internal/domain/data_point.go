package domain

import "time"

// Sensor types accepted by the collector.
const (
	SensorTemperature = "temperature"
	SensorHumidity    = "humidity"
)

// SensorTypes lists every accepted type in display order.
var SensorTypes = []string{SensorTemperature, SensorHumidity}

// ValidSensorType reports whether t is an accepted sensor type.
func ValidSensorType(t string) bool {
	for _, s := range SensorTypes {
		if s == t {
			return true
		}
	}
	return false
}

// DataPoint is one stored reading (table data_points). Append-only.
type DataPoint struct {
	ID        string    `db:"id"`         // UUID, server-assigned
	Type      string    `db:"type"`       // temperature | humidity
	Value     float64   `db:"value"`      // DOUBLE PRECISION
	CreatedAt time.Time `db:"created_at"` // TIMESTAMPTZ, server-assigned

	OwnerID    string `db:"owner_id"` // UUID, empty once the principal is gone
	OwnerEmail string `db:"-"`        // joined on reads
}
