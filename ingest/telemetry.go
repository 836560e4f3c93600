package ingest

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("github.com/go-digitaltwin/go-adt/ingest")
var meter = otel.Meter("github.com/go-digitaltwin/go-adt/ingest")

const (
	// ingesterName is the attribute key associating each record with the name of
	// the Ingester that handled the message (e.g. "building-sensors").
	ingesterName = "ingest.name"
)

var (
	// handlingDuration measures how long it takes to apply a single property
	// update message, from receipt until the patch is accepted by the service.
	//
	// Each record is associated with the ingesterName.
	handlingDuration metric.Float64Histogram
	// handlingFailures counts the messages that were acknowledged without being
	// applied, either because they were malformed or because the update failed.
	//
	// Each record is associated with the ingesterName.
	handlingFailures metric.Int64Counter
)

func init() {
	var err error
	handlingDuration, err = meter.Float64Histogram(
		"ingest.message.duration",
		metric.WithDescription("The duration of applying a property update message to its twin."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic("ingest: failed to init 'ingest.message.duration' instrument")
	}

	handlingFailures, err = meter.Int64Counter(
		"ingest.message.failures",
		metric.WithDescription("The number of property update messages dropped without being applied."),
	)
	if err != nil {
		panic("ingest: failed to init 'ingest.message.failures' instrument")
	}
}

func measureHandling(ctx context.Context, name string, succeeded bool, d time.Duration) {
	attrs := attribute.NewSet(attribute.String(ingesterName, name))
	if succeeded {
		duration := float64(d) / float64(time.Millisecond)
		handlingDuration.Record(ctx, duration, metric.WithAttributeSet(attrs))
	} else {
		handlingFailures.Add(ctx, 1, metric.WithAttributeSet(attrs))
	}
}
