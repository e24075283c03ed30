package providers

import (
	"context"
	"net/http"
)

// NoopProvider hands out instruments that discard every reading.
type NoopProvider struct{}

func NewNoopProvider() *NoopProvider {
	return &NoopProvider{}
}

type discard struct{}

func (discard) Add(context.Context, int64, ...Label)      {}
func (discard) Inc(context.Context, ...Label)             {}
func (discard) Dec(context.Context, ...Label)             {}
func (discard) Record(context.Context, float64, ...Label) {}
func (discard) Set(context.Context, float64, ...Label)    {}

func (*NoopProvider) CreateCounter(Descriptor) (Counter, error)             { return discard{}, nil }
func (*NoopProvider) CreateHistogram(Descriptor) (Histogram, error)         { return discard{}, nil }
func (*NoopProvider) CreateGauge(Descriptor) (Gauge, error)                 { return discard{}, nil }
func (*NoopProvider) CreateUpDownCounter(Descriptor) (UpDownCounter, error) { return discard{}, nil }

func (*NoopProvider) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("# metrics disabled\n"))
	})
}

func (*NoopProvider) Shutdown(context.Context) error { return nil }
