package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	meter          otelmetric.Meter
	recordCounter  otelmetric.Int64Counter
	recordDuration otelmetric.Float64Histogram
	insightCounter otelmetric.Int64Counter
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	recordCounter, _ := meter.Int64Counter(
		"records.classified",
		otelmetric.WithDescription("Number of raw records classified"),
	)

	recordDuration, _ := meter.Float64Histogram(
		"records.classification.duration",
		otelmetric.WithDescription("Per-record classification duration"),
		otelmetric.WithUnit("ms"),
	)

	insightCounter, _ := meter.Int64Counter(
		"insights.saved",
		otelmetric.WithDescription("Number of classified insights persisted"),
	)

	return &Observability{
		meterProvider:  provider,
		meter:          meter,
		recordCounter:  recordCounter,
		recordDuration: recordDuration,
		insightCounter: insightCounter,
	}
}

// RecordClassified counts one classification attempt with its terminal status.
func (o *Observability) RecordClassified(ctx context.Context, status string) {
	if o.recordCounter != nil {
		o.recordCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordClassificationDuration(ctx context.Context, duration time.Duration, status string) {
	if o.recordDuration != nil {
		o.recordDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

// RecordInsightSaved counts one persisted insight per record source.
func (o *Observability) RecordInsightSaved(ctx context.Context, source string) {
	if o.insightCounter != nil {
		o.insightCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("source", source),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
