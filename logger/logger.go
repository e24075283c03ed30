package logger

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/yadunandan004/datacore/config"
	"github.com/yadunandan004/datacore/logger/logwriter"
	"github.com/yadunandan004/datacore/request"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	log    *zap.Logger
	writer logwriter.LogWriter
)

func init() {
	InitializeLogger()
}

// InitializeLogger sets up the logger based on environment configuration
func InitializeLogger() {
	Configure(&config.LoggerConfig{
		Format: getEnvOrDefault("LOG_FORMAT", "console"),
		Level:  getEnvOrDefault("LOG_LEVEL", "debug"),
		Writer: getEnvOrDefault("LOG_WRITER", "local"),
	})
}

// Configure rebuilds the zap core and the writer from cfg.
func Configure(cfg *config.LoggerConfig) {
	environment := getEnvOrDefault("ENV", "development")

	var encCfg zapcore.EncoderConfig
	if environment == "production" {
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "timestamp"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		encCfg.EncodeCaller = zapcore.ShortCallerEncoder
	}

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), parseLevel(cfg.Level))

	mu.Lock()
	defer mu.Unlock()
	log = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2))
	writer = newWriter(cfg.Writer)
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func newWriter(writerType string) logwriter.LogWriter {
	switch writerType {
	case "none":
		return logwriter.NopWriter{}
	case "memory":
		return logwriter.NewMemoryWriter()
	default:
		return logwriter.NewLocalWriter()
	}
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getCaller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	parts := strings.Split(file, "/")
	if len(parts) > 2 {
		file = strings.Join(parts[len(parts)-2:], "/")
	}
	return fmt.Sprintf("%s:%d", file, line)
}

func current() (*zap.Logger, logwriter.LogWriter) {
	mu.RLock()
	defer mu.RUnlock()
	return log, writer
}

// fillFromContext copies the ambient identity, when there is one, onto entry.
func fillFromContext(ctx context.Context, entry *logwriter.LogEntry) {
	state := request.Current(ctx)
	if state == nil {
		return
	}
	entry.RequestID = state.RequestID()
	entry.TraceID = state.TraceID()
	entry.UserID = state.UserID()
	entry.Platform = state.Platform()
}

func emit(entry logwriter.LogEntry) {
	zl, w := current()
	_ = w.Write(entry)

	fields := make([]zap.Field, 0, len(entry.Fields)+5)
	if entry.Logger != "" {
		fields = append(fields, zap.String("logger", entry.Logger))
	}
	if entry.Event != "" {
		fields = append(fields, zap.String("event", entry.Event))
	}
	if entry.RequestID != "" {
		fields = append(fields, zap.String("reqId", entry.RequestID))
	}
	if entry.UserID != "" {
		fields = append(fields, zap.String("userId", entry.UserID))
	}
	for k, v := range entry.Fields {
		if k == "reqId" || (k == "error" && entry.Error != "") {
			continue
		}
		fields = append(fields, zap.Any(k, v))
	}
	if entry.Error != "" {
		fields = append(fields, zap.String("error", entry.Error))
	}

	switch entry.Level {
	case logwriter.DebugLevel:
		zl.Debug(entry.Message, fields...)
	case logwriter.WarnLevel:
		zl.Warn(entry.Message, fields...)
	case logwriter.ErrorLevel:
		zl.Error(entry.Message, fields...)
	default:
		zl.Info(entry.Message, fields...)
	}
}

func logf(ctx context.Context, level logwriter.LogLevel, format string, args ...interface{}) {
	entry := logwriter.LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   fmt.Sprintf(format, args...),
		Caller:    getCaller(3),
	}
	fillFromContext(ctx, &entry)
	emit(entry)
}

func LogInfo(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, logwriter.InfoLevel, format, args...)
}

func LogDebug(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, logwriter.DebugLevel, format, args...)
}

func LogWarn(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, logwriter.WarnLevel, format, args...)
}

func LogError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	entry := logwriter.LogEntry{
		Timestamp: time.Now(),
		Level:     logwriter.ErrorLevel,
		Message:   "Error occurred",
		Error:     err.Error(),
		Caller:    getCaller(2),
	}
	fillFromContext(ctx, &entry)
	emit(entry)
}

// LogExit logs the time spent since startTime at debug level.
func LogExit(ctx context.Context, name string, startTime time.Time) {
	duration := time.Since(startTime)
	entry := logwriter.LogEntry{
		Timestamp: time.Now(),
		Level:     logwriter.DebugLevel,
		Message:   "← EXIT " + name,
		Caller:    getCaller(2),
		Duration:  &duration,
	}
	fillFromContext(ctx, &entry)
	emit(entry)
}

// SetWriter swaps the sink and returns the previous one.
func SetWriter(w logwriter.LogWriter) logwriter.LogWriter {
	mu.Lock()
	defer mu.Unlock()
	prev := writer
	writer = w
	return prev
}

func Sync() {
	zl, w := current()
	_ = zl.Sync()
	if w != nil {
		_ = w.Flush()
	}
}
