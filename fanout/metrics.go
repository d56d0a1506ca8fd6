package fanout

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	legDuration metric.Float64Histogram
	legOutcome  metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	m := &metrics{}
	var err error

	if m.legDuration, err = meter.Float64Histogram(
		"fanout.leg.duration",
		metric.WithDescription("Duration of one mirror leg in seconds, including decoding"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	); err != nil {
		return nil, err
	}

	if m.legOutcome, err = meter.Int64Counter(
		"fanout.leg.outcome",
		metric.WithDescription("Mirror legs by host and result"),
		metric.WithUnit("{leg}"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// recordLeg records one finished leg. result is "ok" or the failed stage.
func (m *metrics) recordLeg(ctx context.Context, host, result string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("mirror.host", host),
		attribute.String("fanout.result", result),
	)
	m.legDuration.Record(ctx, d.Seconds(), attrs)
	m.legOutcome.Add(ctx, 1, attrs)
}
