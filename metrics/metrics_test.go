package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yadunandan004/datacore/metrics/providers"
)

func TestMetricRegistry_Dedup(t *testing.T) {
	registry := NewMetricRegistry(providers.NewNoopProvider())

	a := registry.MustRegisterCounter("c", "d", "1")
	b := registry.MustRegisterCounter("c", "d", "1")
	assert.Same(t, a, b)

	registry.MustRegisterHistogram("c", "same name, other kind", "s")
	registry.MustRegisterGauge("g", "", "1")
	registry.MustRegisterUpDownCounter("u", "", "1")
	assert.Equal(t, 4, registry.MetricCount())
}

func TestPrometheusProvider_ExportsRecordedValues(t *testing.T) {
	ctx := context.Background()
	provider, err := providers.NewPrometheusProvider(ctx, providers.PrometheusConfig{
		ServiceName:    "datacore-test",
		ServiceVersion: "test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	std := newStandardMetrics(NewMetricRegistry(provider))
	std.RecordStatement(ctx, "select", "read", false, (15 * time.Millisecond).Seconds(), nil)
	std.RecordLockAttempt(ctx, "acquired")
	std.TransactionOpened(ctx)

	rec := httptest.NewRecorder()
	provider.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "datacore_statement_duration_seconds")
	assert.Contains(t, string(body), "datacore_lock_attempts")
	assert.Contains(t, string(body), "datacore_transactions_open")
	assert.Contains(t, string(body), `le="0.025"`)
}

func TestRecordersAreSafeBeforeInit(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordStatement(ctx, "select", "read", false, time.Millisecond, nil)
		RecordPoolStats(ctx, "write", 1, 2)
		RecordTransaction(ctx, "committed")
		TransactionOpened(ctx)
		TransactionClosed(ctx)
		RecordIDIssued(ctx, "snowflake")
		RecordJobRun(ctx, "job", "ok", time.Second)
	})
	assert.NotNil(t, Tracer())
}
