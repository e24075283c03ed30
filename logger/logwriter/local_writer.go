package logwriter

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorPurple = "\033[35m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[37m"
)

// LocalWriter prints colored single-line entries, one per write.
type LocalWriter struct {
	mu  sync.Mutex
	out io.Writer
}

func NewLocalWriter() *LocalWriter {
	return &LocalWriter{out: os.Stdout}
}

// NewLocalWriterTo writes to out instead of stdout.
func NewLocalWriterTo(out io.Writer) *LocalWriter {
	return &LocalWriter{out: out}
}

func (w *LocalWriter) Write(entry LogEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	levelColor := w.getLevelColor(entry.Level)
	timeStr := entry.Timestamp.Format("15:04:05.000")

	fmt.Fprintf(w.out, "%s%s%s %s%-5s%s ",
		colorGray, timeStr, colorReset,
		levelColor, entry.Level, colorReset)

	if entry.Caller != "" {
		fmt.Fprintf(w.out, "%s%s%s ", colorCyan, entry.Caller, colorReset)
	}

	if entry.Logger != "" {
		fmt.Fprintf(w.out, "%s[%s]%s ", colorPurple, entry.Logger, colorReset)
	}
	if entry.Event != "" {
		fmt.Fprintf(w.out, "%s%s%s ", colorYellow, entry.Event, colorReset)
	}
	fmt.Fprintf(w.out, "%s", entry.Message)

	var fields []string
	if entry.RequestID != "" {
		fields = append(fields, fmt.Sprintf("request_id=%s%s%s", colorBlue, entry.RequestID, colorReset))
	}
	if entry.TraceID != "" {
		fields = append(fields, fmt.Sprintf("trace_id=%s%s%s", colorBlue, entry.TraceID, colorReset))
	}
	if entry.UserID != "" {
		fields = append(fields, fmt.Sprintf("user_id=%s%s%s", colorPurple, entry.UserID, colorReset))
	}
	if entry.Platform != "" {
		fields = append(fields, fmt.Sprintf("platform=%s", entry.Platform))
	}
	if entry.Duration != nil {
		fields = append(fields, fmt.Sprintf("duration=%s%v%s", colorGreen, *entry.Duration, colorReset))
	}
	if entry.Error != "" {
		fields = append(fields, fmt.Sprintf("error=%s%s%s", colorRed, entry.Error, colorReset))
	}

	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, fmt.Sprintf("%s=%v", k, entry.Fields[k]))
	}

	if len(fields) > 0 {
		fmt.Fprintf(w.out, " %s{%s %s}%s",
			colorGray, strings.Join(fields, " "), colorGray, colorReset)
	}

	fmt.Fprintln(w.out)
	return nil
}

func (w *LocalWriter) Flush() error {
	return nil
}

func (w *LocalWriter) getLevelColor(level LogLevel) string {
	switch level {
	case DebugLevel:
		return colorGray
	case InfoLevel:
		return colorGreen
	case WarnLevel:
		return colorYellow
	case ErrorLevel:
		return colorRed
	default:
		return colorReset
	}
}
