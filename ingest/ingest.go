// Package ingest applies property updates received from a message broker to the
// twins of an Azure Digital Twins instance.
//
// Each message carries a JSON-encoded PropertyUpdate. The Ingester turns it into
// a single ordered patch (adds, then replaces, then removes) and applies it
// through an Updater, usually an *adt.Client:
//
//	sub, err := pubsub.OpenSubscription(ctx, "azuresb://telemetry?subscription=adt")
//	...
//	err = ingest.New("telemetry", sub, client).Run(ctx)
//
// Messages are acknowledged once handled, whether or not they could be applied.
// The service is the source of truth and a failed update is not retried
// locally; it is logged and counted instead, and the next update for the same
// twin supersedes it.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielorbach/go-component"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gocloud.dev/pubsub"

	"github.com/go-digitaltwin/go-adt"
)

// PropertyUpdate is the body of a message consumed by an Ingester.
//
//	{"twinId": "Room0", "add": {"Humidity": 20}, "replace": {"Temperature": 42}, "remove": ["Occupied"]}
type PropertyUpdate struct {
	TwinID  string          `json:"twinId"`
	Add     adt.PropertyBag `json:"add,omitempty"`
	Replace adt.PropertyBag `json:"replace,omitempty"`
	Remove  []string        `json:"remove,omitempty"`
}

// An Updater applies partial updates to twins. *adt.Client implements it.
type Updater interface {
	UpdateTwin(ctx context.Context, id string, add, replace []adt.Property, remove []string) error
}

var _ Updater = (*adt.Client)(nil)

// ErrMissingTwinID is returned for updates that do not name a twin.
var ErrMissingTwinID = errors.New("missing twinId")

// An Ingester consumes PropertyUpdate messages from a subscription and applies
// them to their twins, one message at a time.
type Ingester struct {
	name   string
	source *pubsub.Subscription
	twins  Updater
}

// New returns an Ingester receiving from source and applying updates through
// twins. The name labels the Ingester's logs and measurements.
func New(name string, source *pubsub.Subscription, twins Updater) *Ingester {
	return &Ingester{
		name:   name,
		source: source,
		twins:  twins,
	}
}

// Run receives and applies messages until ctx is done, in which case it returns
// nil. Any other error is a non-retryable failure of the subscription, after
// which the subscription must be reopened.
func (in *Ingester) Run(ctx context.Context) error {
	logger := component.Logger(ctx).With(slog.String("ingester", in.name))
	for {
		msg, err := in.source.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}

		if err := in.handleMessage(ctx, logger, msg); err != nil {
			logger.Error("Couldn't apply property update, message dropped",
				slog.String("msg-id", msg.LoggableID),
				slog.Any("error", err),
			)
		}
		// Always ack. Redelivering the same failed message would only stall the
		// updates that follow it.
		msg.Ack()
	}
}

// Exec implements [component.Procedure] so that an Ingester may be forked by a
// component. A subscription failure is fatal to the procedure.
func (in *Ingester) Exec(l *component.L) {
	if err := in.Run(l.Context()); err != nil {
		l.Fatal(err)
	}
}

func (in *Ingester) handleMessage(ctx context.Context, logger *slog.Logger, msg *pubsub.Message) (err error) {
	ctx, span := tracer.Start(ctx, "Ingester.handleMessage", trace.WithAttributes(
		attribute.String("msg.id", msg.LoggableID),
	))
	defer span.End()

	defer func(start time.Time) {
		measureHandling(ctx, in.name, err == nil, time.Since(start))
	}(time.Now())

	logger.Debug("New property update received, decoding message...")
	var update PropertyUpdate
	if err := json.Unmarshal(msg.Body, &update); err != nil {
		err := fmt.Errorf("decode json: %w", err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if update.TwinID == "" {
		span.SetStatus(codes.Error, ErrMissingTwinID.Error())
		return ErrMissingTwinID
	}
	span.SetAttributes(attribute.String("twin.id", update.TwinID))

	logger = logger.With(slog.String("twin-id", update.TwinID))
	if err := in.apply(ctx, update); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	logger.Debug("Property update applied successfully")
	return nil
}

// apply sends the update as a single patch. Properties within each section are
// applied in name order.
func (in *Ingester) apply(ctx context.Context, update PropertyUpdate) error {
	err := in.twins.UpdateTwin(ctx, update.TwinID,
		adt.Properties(update.Add),
		adt.Properties(update.Replace),
		update.Remove,
	)
	if err != nil {
		return fmt.Errorf("update twin %q: %w", update.TwinID, err)
	}
	return nil
}
