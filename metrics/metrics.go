package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/yadunandan004/datacore/config"
	"github.com/yadunandan004/datacore/metrics/providers"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	mu               sync.RWMutex
	globalRegistry   *MetricRegistry
	globalStdMetrics *StandardMetrics
	meter            metric.Meter
	tracer           trace.Tracer = noop.NewTracerProvider().Tracer("datacore")
	initOnce         sync.Once
)

// InitMetrics selects the provider named in cfg and registers the standard
// instruments. A disabled config installs the noop provider so recording calls
// stay cheap. The returned func flushes and shuts the provider down.
func InitMetrics(ctx context.Context, cfg *config.MetricsConfig) (func(context.Context) error, error) {
	var err error

	initOnce.Do(func() {
		var provider providers.Provider
		provider, err = newProvider(ctx, cfg)
		if err != nil {
			return
		}

		var tp trace.TracerProvider = noop.NewTracerProvider()
		if cfg.Enabled {
			sdkTP := sdktrace.NewTracerProvider()
			otel.SetTracerProvider(sdkTP)
			tp = sdkTP
			provider = shutdownChain{Provider: provider, extra: sdkTP.Shutdown}
		}

		registry := NewMetricRegistry(provider)
		std := newStandardMetrics(registry)

		mu.Lock()
		globalRegistry = registry
		globalStdMetrics = std
		meter = otel.Meter(cfg.ServiceName)
		tracer = tp.Tracer(cfg.ServiceName)
		mu.Unlock()
	})

	if err != nil {
		return nil, err
	}
	return globalRegistry.Shutdown, nil
}

func newProvider(ctx context.Context, cfg *config.MetricsConfig) (providers.Provider, error) {
	if !cfg.Enabled {
		return providers.NewNoopProvider(), nil
	}
	switch cfg.Provider {
	case "prometheus", "":
		return providers.NewPrometheusProvider(ctx, providers.PrometheusConfig{
			ServiceName:    cfg.ServiceName,
			ServiceVersion: cfg.ServiceVersion,
			Environment:    config.GetHostingEnv(),
			SetGlobal:      true,
		})
	case "noop":
		return providers.NewNoopProvider(), nil
	default:
		return nil, fmt.Errorf("unknown metrics provider %q", cfg.Provider)
	}
}

type shutdownChain struct {
	providers.Provider
	extra func(context.Context) error
}

func (s shutdownChain) Shutdown(ctx context.Context) error {
	err := s.Provider.Shutdown(ctx)
	if extraErr := s.extra(ctx); err == nil {
		err = extraErr
	}
	return err
}

func GetRegistry() *MetricRegistry {
	mu.RLock()
	defer mu.RUnlock()
	return globalRegistry
}

func Handler() http.Handler {
	if registry := GetRegistry(); registry != nil {
		return registry.HTTPHandler()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("Metrics not initialized"))
	})
}

func Meter() metric.Meter {
	mu.RLock()
	defer mu.RUnlock()
	return meter
}

// Tracer returns the process tracer; a noop tracer until InitMetrics runs.
func Tracer() trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()
	return tracer
}

func std() *StandardMetrics {
	mu.RLock()
	defer mu.RUnlock()
	return globalStdMetrics
}

func RecordStatement(ctx context.Context, method, server string, inTx bool, duration time.Duration, err error) {
	if sm := std(); sm != nil {
		sm.RecordStatement(ctx, method, server, inTx, duration.Seconds(), err)
	}
}

func RecordPoolStats(ctx context.Context, server string, used, free int) {
	if sm := std(); sm != nil {
		sm.RecordPoolStats(ctx, server, used, free)
	}
}

func RecordTransaction(ctx context.Context, outcome string) {
	if sm := std(); sm != nil {
		sm.RecordTransaction(ctx, outcome)
	}
}

// TransactionOpened and TransactionClosed move the open-transactions level.
func TransactionOpened(ctx context.Context) {
	if sm := std(); sm != nil {
		sm.TransactionOpened(ctx)
	}
}

func TransactionClosed(ctx context.Context) {
	if sm := std(); sm != nil {
		sm.TransactionClosed(ctx)
	}
}

func RecordLockAttempt(ctx context.Context, outcome string) {
	if sm := std(); sm != nil {
		sm.RecordLockAttempt(ctx, outcome)
	}
}

func RecordIDIssued(ctx context.Context, strategy string) {
	if sm := std(); sm != nil {
		sm.RecordIDIssued(ctx, strategy)
	}
}

func RecordJobRun(ctx context.Context, job, status string, duration time.Duration) {
	if sm := std(); sm != nil {
		sm.RecordJobRun(ctx, job, status, duration.Seconds())
	}
}
