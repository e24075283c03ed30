package providers

import (
	"context"
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type PrometheusConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// SetGlobal installs the meter provider as the otel global.
	SetGlobal bool
}

// PrometheusProvider records through the otel SDK and serves the result from
// its own registry rather than the client_golang default one, so tests can
// build several side by side.
type PrometheusProvider struct {
	registry *promclient.Registry
	sdk      *sdkmetric.MeterProvider
	meter    metric.Meter
	handler  http.Handler
}

func NewPrometheusProvider(ctx context.Context, cfg PrometheusConfig) (*PrometheusProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("metrics resource: %w", err)
	}

	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("prometheus exporter: %w", err)
	}

	sdk := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	if cfg.SetGlobal {
		otel.SetMeterProvider(sdk)
	}

	return &PrometheusProvider{
		registry: registry,
		sdk:      sdk,
		meter:    sdk.Meter(cfg.ServiceName, metric.WithInstrumentationVersion(cfg.ServiceVersion)),
		handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			Registry:          registry,
			EnableOpenMetrics: true,
		}),
	}, nil
}

func (p *PrometheusProvider) CreateCounter(desc Descriptor) (Counter, error) {
	c, err := p.meter.Int64Counter(desc.Name,
		metric.WithDescription(desc.Description), metric.WithUnit(desc.Unit))
	if err != nil {
		return nil, err
	}
	return otelCounter{c}, nil
}

func (p *PrometheusProvider) CreateHistogram(desc Descriptor) (Histogram, error) {
	opts := []metric.Float64HistogramOption{
		metric.WithDescription(desc.Description),
		metric.WithUnit(desc.Unit),
	}
	if len(desc.Buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(desc.Buckets...))
	}
	h, err := p.meter.Float64Histogram(desc.Name, opts...)
	if err != nil {
		return nil, err
	}
	return otelHistogram{h}, nil
}

func (p *PrometheusProvider) CreateGauge(desc Descriptor) (Gauge, error) {
	g, err := p.meter.Float64Gauge(desc.Name,
		metric.WithDescription(desc.Description), metric.WithUnit(desc.Unit))
	if err != nil {
		return nil, err
	}
	return otelGauge{g}, nil
}

func (p *PrometheusProvider) CreateUpDownCounter(desc Descriptor) (UpDownCounter, error) {
	u, err := p.meter.Int64UpDownCounter(desc.Name,
		metric.WithDescription(desc.Description), metric.WithUnit(desc.Unit))
	if err != nil {
		return nil, err
	}
	return otelUpDown{u}, nil
}

func (p *PrometheusProvider) HTTPHandler() http.Handler { return p.handler }

func (p *PrometheusProvider) Shutdown(ctx context.Context) error {
	return p.sdk.Shutdown(ctx)
}

func attrs(labels []Label) metric.MeasurementOption {
	kv := make([]attribute.KeyValue, 0, len(labels))
	for _, l := range labels {
		kv = append(kv, attribute.String(l.Key, l.Value))
	}
	return metric.WithAttributes(kv...)
}

type otelCounter struct{ c metric.Int64Counter }

func (o otelCounter) Add(ctx context.Context, v int64, labels ...Label) {
	o.c.Add(ctx, v, attrs(labels))
}

func (o otelCounter) Inc(ctx context.Context, labels ...Label) { o.Add(ctx, 1, labels...) }

type otelHistogram struct{ h metric.Float64Histogram }

func (o otelHistogram) Record(ctx context.Context, v float64, labels ...Label) {
	o.h.Record(ctx, v, attrs(labels))
}

type otelGauge struct{ g metric.Float64Gauge }

func (o otelGauge) Set(ctx context.Context, v float64, labels ...Label) {
	o.g.Record(ctx, v, attrs(labels))
}

type otelUpDown struct{ u metric.Int64UpDownCounter }

func (o otelUpDown) Add(ctx context.Context, v int64, labels ...Label) {
	o.u.Add(ctx, v, attrs(labels))
}

func (o otelUpDown) Inc(ctx context.Context, labels ...Label) { o.Add(ctx, 1, labels...) }
func (o otelUpDown) Dec(ctx context.Context, labels ...Label) { o.Add(ctx, -1, labels...) }
