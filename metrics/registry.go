package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/yadunandan004/datacore/metrics/providers"
)

// MetricRegistry deduplicates instruments by name so packages can register
// the same metric independently.
type MetricRegistry struct {
	provider    providers.Provider
	mu          sync.RWMutex
	instruments map[providers.Kind]map[string]interface{}
}

func NewMetricRegistry(provider providers.Provider) *MetricRegistry {
	return &MetricRegistry{
		provider:    provider,
		instruments: make(map[providers.Kind]map[string]interface{}),
	}
}

func register[T any](r *MetricRegistry, desc providers.Descriptor, create func(providers.Descriptor) (T, error)) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byName, ok := r.instruments[desc.Kind]
	if !ok {
		byName = make(map[string]interface{})
		r.instruments[desc.Kind] = byName
	}
	if existing, found := byName[desc.Name]; found {
		return existing.(T), nil
	}

	instrument, err := create(desc)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to create %s %s: %w", desc.Kind, desc.Name, err)
	}
	byName[desc.Name] = instrument
	return instrument, nil
}

func mustRegister[T any](r *MetricRegistry, desc providers.Descriptor, create func(providers.Descriptor) (T, error)) T {
	instrument, err := register(r, desc, create)
	if err != nil {
		panic(fmt.Sprintf("failed to register %s %s: %v", desc.Kind, desc.Name, err))
	}
	return instrument
}

func descriptor(name, description, unit string, kind providers.Kind) providers.Descriptor {
	d := providers.Descriptor{Name: name, Description: description, Unit: unit, Kind: kind}
	if kind == providers.KindHistogram && unit == "s" {
		d.Buckets = providers.LatencyBuckets
	}
	return d
}

func (r *MetricRegistry) RegisterCounter(name, description, unit string) (providers.Counter, error) {
	return register(r, descriptor(name, description, unit, providers.KindCounter), r.provider.CreateCounter)
}

func (r *MetricRegistry) MustRegisterCounter(name, description, unit string) providers.Counter {
	return mustRegister(r, descriptor(name, description, unit, providers.KindCounter), r.provider.CreateCounter)
}

func (r *MetricRegistry) RegisterHistogram(name, description, unit string) (providers.Histogram, error) {
	return register(r, descriptor(name, description, unit, providers.KindHistogram), r.provider.CreateHistogram)
}

func (r *MetricRegistry) MustRegisterHistogram(name, description, unit string) providers.Histogram {
	return mustRegister(r, descriptor(name, description, unit, providers.KindHistogram), r.provider.CreateHistogram)
}

func (r *MetricRegistry) RegisterGauge(name, description, unit string) (providers.Gauge, error) {
	return register(r, descriptor(name, description, unit, providers.KindGauge), r.provider.CreateGauge)
}

func (r *MetricRegistry) MustRegisterGauge(name, description, unit string) providers.Gauge {
	return mustRegister(r, descriptor(name, description, unit, providers.KindGauge), r.provider.CreateGauge)
}

func (r *MetricRegistry) RegisterUpDownCounter(name, description, unit string) (providers.UpDownCounter, error) {
	return register(r, descriptor(name, description, unit, providers.KindUpDownCounter), r.provider.CreateUpDownCounter)
}

func (r *MetricRegistry) MustRegisterUpDownCounter(name, description, unit string) providers.UpDownCounter {
	return mustRegister(r, descriptor(name, description, unit, providers.KindUpDownCounter), r.provider.CreateUpDownCounter)
}

func (r *MetricRegistry) HTTPHandler() http.Handler {
	return r.provider.HTTPHandler()
}

func (r *MetricRegistry) Shutdown(ctx context.Context) error {
	return r.provider.Shutdown(ctx)
}

func (r *MetricRegistry) MetricCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, byName := range r.instruments {
		total += len(byName)
	}
	return total
}
