package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yadunandan004/datacore/logger/logwriter"
	"github.com/yadunandan004/datacore/request"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func withMemoryWriter(t *testing.T) *logwriter.MemoryWriter {
	t.Helper()
	mem := logwriter.NewMemoryWriter()
	prev := SetWriter(mem)
	t.Cleanup(func() { SetWriter(prev) })
	return mem
}

func TestLogInfo_ReadsAmbientState(t *testing.T) {
	mem := withMemoryWriter(t)
	ctx := request.Scope(context.Background(), request.NewState(
		request.WithRequestID("req-42"),
		request.WithUserID("u-1"),
	))

	LogInfo(ctx, "hello %s", "world")

	entries := mem.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "hello world", entries[0].Message)
	assert.Equal(t, "req-42", entries[0].RequestID)
	assert.Equal(t, "u-1", entries[0].UserID)
	assert.Equal(t, logwriter.InfoLevel, entries[0].Level)
}

func TestLogError_OutsideScope(t *testing.T) {
	mem := withMemoryWriter(t)
	LogError(context.Background(), nil)
	LogError(context.Background(), errors.New("boom"))

	entries := mem.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "boom", entries[0].Error)
	assert.Empty(t, entries[0].RequestID)
}

func TestTelemetry(t *testing.T) {
	mem := withMemoryWriter(t)
	tel := NewTelemetry("datacore.sql")

	tel.Info("sql-query-response", map[string]interface{}{"reqId": "r1", "duration": int64(3)})
	tel.Error("sql-query-error", map[string]interface{}{"reqId": "r2"}, errors.New("bad"))

	ok := mem.ByEvent("sql-query-response")
	require.Len(t, ok, 1)
	assert.Equal(t, "r1", ok[0].RequestID)
	assert.Equal(t, "datacore.sql", ok[0].Logger)
	assert.Equal(t, int64(3), ok[0].Fields["duration"])

	failed := mem.ByEvent("sql-query-error")
	require.Len(t, failed, 1)
	assert.Equal(t, "bad", failed[0].Error)
	assert.Equal(t, logwriter.ErrorLevel, failed[0].Level)
}

func TestTelemetry_ErrorKeyWrittenOnce(t *testing.T) {
	withMemoryWriter(t)
	core, logs := observer.New(zapcore.DebugLevel)
	mu.Lock()
	prev := log
	log = zap.New(core)
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		log = prev
		mu.Unlock()
	})

	NewTelemetry("datacore.sql").Error("sql-query-error",
		map[string]interface{}{"reqId": "r1", "error": "stale", "sql": "select 1"}, errors.New("bad"))

	require.Equal(t, 1, logs.Len())
	var errorKeys int
	for _, f := range logs.All()[0].Context {
		if f.Key == "error" {
			errorKeys++
			assert.Equal(t, "bad", f.String)
		}
	}
	assert.Equal(t, 1, errorKeys)
	assert.Equal(t, "select 1", logs.All()[0].ContextMap()["sql"])
}

func TestLocalWriter_SortsFields(t *testing.T) {
	var buf bytes.Buffer
	w := logwriter.NewLocalWriterTo(&buf)
	require.NoError(t, w.Write(logwriter.LogEntry{
		Level:   logwriter.InfoLevel,
		Event:   "evt",
		Message: "msg",
		Fields:  map[string]interface{}{"b": 2, "a": 1},
	}))
	out := buf.String()
	assert.Contains(t, out, "evt")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("a=1")), bytes.Index(buf.Bytes(), []byte("b=2")))
}
