package adt

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("github.com/go-digitaltwin/go-adt")
var meter = otel.Meter("github.com/go-digitaltwin/go-adt")

const (
	// operationName is the attribute key associating each record with the
	// Collaborator method that was called (e.g. "UpsertTwin").
	operationName = "adt.operation"
)

var (
	// remoteCallDuration measures the duration of successful calls to the
	// Collaborator, from the client's point of view.
	//
	// Each record is associated with the operationName.
	remoteCallDuration metric.Float64Histogram
	// remoteCallFailures counts the calls to the Collaborator that returned an
	// error.
	//
	// Each record is associated with the operationName.
	remoteCallFailures metric.Int64Counter
	// invalidModelRejections counts the upserts rejected locally because their
	// model was not in the catalog.
	invalidModelRejections metric.Int64Counter
)

func init() {
	var err error
	remoteCallDuration, err = meter.Float64Histogram(
		"adt.remote_call.duration",
		metric.WithDescription("The duration of a successful call to the digital twins service."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic("adt: failed to init 'adt.remote_call.duration' instrument")
	}

	remoteCallFailures, err = meter.Int64Counter(
		"adt.remote_call.failures",
		metric.WithDescription("The number of calls to the digital twins service that have failed."),
	)
	if err != nil {
		panic("adt: failed to init 'adt.remote_call.failures' instrument")
	}

	invalidModelRejections, err = meter.Int64Counter(
		"adt.upsert.invalid_model",
		metric.WithDescription("The number of twin upserts rejected because of an unknown model."),
	)
	if err != nil {
		panic("adt: failed to init 'adt.upsert.invalid_model' instrument")
	}
}

// measureRemoteCall records the outcome of a single Collaborator call: its
// duration if it succeeded, or a failure count otherwise.
func measureRemoteCall(ctx context.Context, op string, succeeded bool, d time.Duration) {
	attrs := attribute.NewSet(attribute.String(operationName, op))
	if succeeded {
		// Floating-point division keeps sub-millisecond precision.
		duration := float64(d) / float64(time.Millisecond)
		remoteCallDuration.Record(ctx, duration, metric.WithAttributeSet(attrs))
	} else {
		remoteCallFailures.Add(ctx, 1, metric.WithAttributeSet(attrs))
	}
}
