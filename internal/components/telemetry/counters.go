package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Counters exports per-kind event counts (entities extracted, topics created...)
// as a single otel counter labeled by kind.
type Counters struct {
	counter metric.Int64Counter
}

func NewCounters(scope, name string) Counters {
	counter, err := otel.Meter(scope).Int64Counter(name)
	if err != nil {
		// the global noop meter never fails, a configured one only fails on an
		// invalid instrument name.
		panic(err)
	}
	return Counters{counter: counter}
}

func (c Counters) Add(ctx context.Context, kind string, n int64) {
	c.counter.Add(ctx, n, metric.WithAttributes(attribute.String("kind", kind)))
}
