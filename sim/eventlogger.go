package sim

import (
	"go.uber.org/zap"
)

// An EventLogger is a universal subscriber that writes a line for every
// dispatched event. Attach it when debugging event flow; it is too chatty
// for normal runs.
type EventLogger struct {
	log *zap.Logger
}

// NewEventLogger creates an EventLogger writing through the given logger.
func NewEventLogger(logger *zap.Logger) *EventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventLogger{log: logger}
}

// Attach registers the logger on the bus and returns the subscription
// handle.
func (l *EventLogger) Attach(bus *EventBus) int {
	return bus.SubscribeAll(l.OnEvent, "event-logger")
}

// OnEvent logs one dispatched event.
func (l *EventLogger) OnEvent(evt Event) {
	l.log.Debug("event",
		zap.String("type", string(evt.Type())),
		zap.Int64("tick", int64(evt.Tick())),
		zap.String("entity", evt.Entity()),
		zap.String("team", evt.Team()),
	)
}
