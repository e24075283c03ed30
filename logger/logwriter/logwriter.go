package logwriter

import (
	"time"
)

type LogLevel string

const (
	DebugLevel LogLevel = "DEBUG"
	InfoLevel  LogLevel = "INFO"
	WarnLevel  LogLevel = "WARN"
	ErrorLevel LogLevel = "ERROR"
)

type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     LogLevel               `json:"level"`
	Logger    string                 `json:"logger,omitempty"`
	Event     string                 `json:"event,omitempty"`
	Message   string                 `json:"message"`
	RequestID string                 `json:"request_id,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
	Platform  string                 `json:"platform,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Duration  *time.Duration         `json:"duration,omitempty"`
	Caller    string                 `json:"caller,omitempty"`
}

type LogWriter interface {
	Write(entry LogEntry) error
	Flush() error
}

// NopWriter drops every entry.
type NopWriter struct{}

func (NopWriter) Write(LogEntry) error { return nil }
func (NopWriter) Flush() error         { return nil }
