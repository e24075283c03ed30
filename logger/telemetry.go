package logger

import (
	"time"

	"github.com/yadunandan004/datacore/logger/logwriter"
)

// Telemetry receives structured events from the data layer. Payloads carry
// their own request id, so implementations never need the caller's context.
type Telemetry interface {
	Info(event string, payload map[string]interface{})
	Error(event string, payload map[string]interface{}, err error)
}

type zapTelemetry struct {
	name string
}

// NewTelemetry returns a Telemetry that writes through the package logger,
// tagging every entry with name.
func NewTelemetry(name string) Telemetry {
	return &zapTelemetry{name: name}
}

func (t *zapTelemetry) Info(event string, payload map[string]interface{}) {
	emit(t.entry(logwriter.InfoLevel, event, payload, nil))
}

func (t *zapTelemetry) Error(event string, payload map[string]interface{}, err error) {
	emit(t.entry(logwriter.ErrorLevel, event, payload, err))
}

func (t *zapTelemetry) entry(level logwriter.LogLevel, event string, payload map[string]interface{}, err error) logwriter.LogEntry {
	entry := logwriter.LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Logger:    t.name,
		Event:     event,
		Message:   event,
		Fields:    payload,
		Caller:    getCaller(3),
	}
	if reqID, ok := payload["reqId"].(string); ok {
		entry.RequestID = reqID
	}
	if err != nil {
		entry.Error = err.Error()
	}
	return entry
}

// NopTelemetry discards everything.
type NopTelemetry struct{}

func (NopTelemetry) Info(string, map[string]interface{})         {}
func (NopTelemetry) Error(string, map[string]interface{}, error) {}
