package observer

import (
	"github.com/anb2473/Archeology-Sentry/sentry-listener/internal/parser"

	"go.uber.org/zap"
)

// LogObserver writes everything to zap. Device errors are logged at error level.
type LogObserver struct {
	logger *zap.Logger
}

func NewLogObserver(logger *zap.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) DeviceMessage(ev parser.Event) {
	switch e := ev.(type) {
	case parser.Info:
		o.logger.Info("Device info", zap.String("text", e.Text))
	case parser.DeviceError:
		o.logger.Error("Device error", zap.String("text", e.Text))
	}
}

func (o *LogObserver) ProtocolError(line string, err error) {
	o.logger.Warn("Dropped device line", zap.String("line", line), zap.Error(err))
}

func (o *LogObserver) Forwarded(ev parser.Event) {
	v, _ := parser.Reading(ev)
	o.logger.Debug("Reading forwarded", zap.String("type", parser.Kind(ev)), zap.Float64("value", v))
}

func (o *LogObserver) ForwardFailed(ev parser.Event, err error) {
	v, _ := parser.Reading(ev)
	o.logger.Error("Failed to forward reading",
		zap.String("type", parser.Kind(ev)),
		zap.Float64("value", v),
		zap.Error(err),
	)
}
