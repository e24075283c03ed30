package providers

import (
	"context"
	"fmt"
	"net/http"
)

type Label struct {
	Key   string
	Value string
}

// Labels pairs up alternating keys and values. A trailing key without a value
// is kept with an empty value.
func Labels(pairs ...string) []Label {
	labels := make([]Label, 0, (len(pairs)+1)/2)
	for i := 0; i < len(pairs); i += 2 {
		l := Label{Key: pairs[i]}
		if i+1 < len(pairs) {
			l.Value = pairs[i+1]
		}
		labels = append(labels, l)
	}
	return labels
}

type Counter interface {
	Add(ctx context.Context, value int64, labels ...Label)
	Inc(ctx context.Context, labels ...Label)
}

type Histogram interface {
	Record(ctx context.Context, value float64, labels ...Label)
}

type Gauge interface {
	Set(ctx context.Context, value float64, labels ...Label)
}

// UpDownCounter tracks a level that moves both ways, such as open transactions.
type UpDownCounter interface {
	Add(ctx context.Context, value int64, labels ...Label)
	Inc(ctx context.Context, labels ...Label)
	Dec(ctx context.Context, labels ...Label)
}

type Kind int

const (
	KindCounter Kind = iota
	KindHistogram
	KindGauge
	KindUpDownCounter
)

func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindHistogram:
		return "histogram"
	case KindGauge:
		return "gauge"
	case KindUpDownCounter:
		return "updown"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type Descriptor struct {
	Name        string
	Description string
	Unit        string
	Kind        Kind
	// Buckets overrides the exporter's default histogram boundaries.
	Buckets []float64
}

// LatencyBuckets suits statement and job durations in seconds: a fast
// indexed read lands in the first buckets, a statement timeout in the last.
var LatencyBuckets = []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

type Provider interface {
	CreateCounter(desc Descriptor) (Counter, error)
	CreateHistogram(desc Descriptor) (Histogram, error)
	CreateGauge(desc Descriptor) (Gauge, error)
	CreateUpDownCounter(desc Descriptor) (UpDownCounter, error)
	HTTPHandler() http.Handler
	Shutdown(ctx context.Context) error
}
