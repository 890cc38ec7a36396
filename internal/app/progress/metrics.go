package progress

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const namespace = "job_progress"

// SettlementMetrics records payment settlement activity.
type SettlementMetrics interface {
	IncSettlementsStarted(ctx context.Context)
	IncSettlementsAbandoned(ctx context.Context)
	ObserveSettlementDuration(ctx context.Context, d time.Duration, success bool)
}

// TransitionMetrics records accepted and rejected transitions.
type TransitionMetrics interface {
	IncTransitions(ctx context.Context, action string, accepted bool)
}

// Metrics is everything the progress service reports.
type Metrics interface {
	SettlementMetrics
	TransitionMetrics
}

type progressMetrics struct {
	settlementsStarted   metric.Int64Counter
	settlementsAbandoned metric.Int64Counter
	settlementDuration   metric.Float64Histogram
	transitions          metric.Int64Counter
}

// NewMetrics creates the progress instruments on mp.
func NewMetrics(mp metric.MeterProvider) (Metrics, error) {
	meter := mp.Meter(namespace, metric.WithInstrumentationVersion("v0.1.0"))

	m := new(progressMetrics)
	var err error

	if m.settlementsStarted, err = meter.Int64Counter(
		"settlements_started_total",
		metric.WithDescription("Total number of payment settlements dispatched"),
	); err != nil {
		return nil, err
	}

	if m.settlementsAbandoned, err = meter.Int64Counter(
		"settlements_abandoned_total",
		metric.WithDescription("Total number of settlements canceled or superseded before completing"),
	); err != nil {
		return nil, err
	}

	if m.settlementDuration, err = meter.Float64Histogram(
		"settlement_duration_seconds",
		metric.WithDescription("Time taken by the payment processor to settle, including retries"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.transitions, err = meter.Int64Counter(
		"transitions_total",
		metric.WithDescription("Total number of transition requests by action and outcome"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *progressMetrics) IncSettlementsStarted(ctx context.Context) {
	m.settlementsStarted.Add(ctx, 1)
}

func (m *progressMetrics) IncSettlementsAbandoned(ctx context.Context) {
	m.settlementsAbandoned.Add(ctx, 1)
}

func (m *progressMetrics) ObserveSettlementDuration(ctx context.Context, d time.Duration, success bool) {
	m.settlementDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.Bool("success", success)))
}

func (m *progressMetrics) IncTransitions(ctx context.Context, action string, accepted bool) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.Bool("accepted", accepted),
	))
}

type noopSettlementMetrics struct{}

func (noopSettlementMetrics) IncSettlementsStarted(context.Context)   {}
func (noopSettlementMetrics) IncSettlementsAbandoned(context.Context) {}
func (noopSettlementMetrics) ObserveSettlementDuration(context.Context, time.Duration, bool) {
}

type noopMetrics struct{ noopSettlementMetrics }

func (noopMetrics) IncTransitions(context.Context, string, bool) {}
