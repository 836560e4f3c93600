package adt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielorbach/go-component"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AllTwinsQuery selects every twin of the instance.
const AllTwinsQuery = "SELECT * FROM digitaltwins"

// Client exposes the day-to-day operations on the twins of an Azure Digital
// Twins instance. It shapes requests locally and forwards them to its
// Collaborator, one blocking call at a time.
//
// At construction, the Client caches the IDs of all models known to the
// instance, and refuses to create twins of any other model. The cache is never
// refreshed; create a new Client to pick up newly uploaded models.
//
// A Client is safe for concurrent use as long as its Collaborator is.
type Client struct {
	remote Collaborator
	models ModelCatalog
}

// New returns a Client that forwards its requests to the given Collaborator. It
// lists the instance's models once to populate the model catalog.
func New(ctx context.Context, remote Collaborator) (*Client, error) {
	models, err := call(ctx, "ListModels", func(ctx context.Context) ([]Model, error) {
		return remote.ListModels(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}
	component.Logger(ctx).Debug("Cached model catalog", slog.Int("models", len(ids)))
	return &Client{remote: remote, models: NewModelCatalog(ids...)}, nil
}

// Open validates cfg, dials a Collaborator with it and returns a Client on top
// of it. An invalid cfg fails with a *ConfigurationError before dial is called.
func Open(ctx context.Context, cfg Config, dial Dialer) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	remote, err := dial(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Endpoint, err)
	}
	return New(ctx, remote)
}

// Models returns the model catalog cached at construction.
func (c *Client) Models() ModelCatalog { return c.models }

// ModelIDs returns the IDs of the models cached at construction, sorted.
func (c *Client) ModelIDs() []string { return c.models.IDs() }

// GetModel returns the model with the given ID, including its definition. It
// asks the service even if the model is not in the cached catalog.
func (c *Client) GetModel(ctx context.Context, id string) (Model, error) {
	return call(ctx, "GetModel", func(ctx context.Context) (Model, error) {
		return c.remote.GetModel(ctx, id)
	}, attribute.String("adt.model.id", id))
}

// GetTwin returns the current state of the twin.
func (c *Client) GetTwin(ctx context.Context, id string) (Twin, error) {
	return call(ctx, "GetTwin", func(ctx context.Context) (Twin, error) {
		return c.remote.GetTwin(ctx, id)
	}, attribute.String("adt.twin.id", id))
}

// GetTwinProperties returns the values of the named properties of the twin. A
// property the twin does not declare is returned with a nil value.
func (c *Client) GetTwinProperties(ctx context.Context, id string, names []string) (PropertyBag, error) {
	twin, err := c.GetTwin(ctx, id)
	if err != nil {
		return nil, err
	}
	props := make(PropertyBag, len(names))
	for _, name := range names {
		props[name] = twin.Properties[name]
	}
	return props, nil
}

// ListTwins returns every twin of the instance.
func (c *Client) ListTwins(ctx context.Context) ([]Twin, error) {
	return c.QueryTwins(ctx, AllTwinsQuery)
}

// QueryTwins returns the twins selected by the given query.
func (c *Client) QueryTwins(ctx context.Context, query string) ([]Twin, error) {
	return call(ctx, "QueryTwins", func(ctx context.Context) ([]Twin, error) {
		return c.remote.QueryTwins(ctx, query)
	}, attribute.String("adt.query", query))
}

// UpsertTwin creates the twin as an instance of the given model with the given
// properties, replacing the twin if it already exists.
//
// The model must be in the cached catalog, otherwise UpsertTwin fails with an
// *InvalidModelError without contacting the service.
func (c *Client) UpsertTwin(ctx context.Context, id, modelID string, props PropertyBag) (Twin, error) {
	logger := component.Logger(ctx).With(slog.String("twin", id), slog.String("model", modelID))
	doc, err := c.models.BuildCreateDocument(modelID, props)
	if err != nil {
		invalidModelRejections.Add(ctx, 1)
		logger.Warn("Refusing to upsert a twin of an unknown model")
		return Twin{}, err
	}
	twin, err := call(ctx, "UpsertTwin", func(ctx context.Context) (Twin, error) {
		return c.remote.UpsertTwin(ctx, id, doc)
	}, attribute.String("adt.twin.id", id), attribute.String("adt.model.id", modelID))
	if err != nil {
		return Twin{}, err
	}
	logger.Info("Upserted digital twin")
	return twin, nil
}

// UpdateTwin modifies the properties of the twin with a single patch: first it
// adds the properties in add, then it replaces the properties in replace, and
// lastly it removes the properties named in remove.
//
// The patch is sent even when all the inputs are empty; the service decides
// whether an empty patch is acceptable.
func (c *Client) UpdateTwin(ctx context.Context, id string, add, replace []Property, remove []string) error {
	doc := BuildPatchDocument(add, replace, remove)
	_, err := call(ctx, "ApplyPatch", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.remote.ApplyPatch(ctx, id, doc)
	}, attribute.String("adt.twin.id", id), attribute.Int("adt.patch.operations", len(doc)))
	if err != nil {
		return err
	}
	component.Logger(ctx).Info("Updated digital twin properties",
		slog.String("twin", id),
		slog.Int("operations", len(doc)),
	)
	return nil
}

// DeleteTwins deletes those of the given twins that exist, in the given order,
// and returns the IDs of the deleted twins. The service fails to delete twins
// that do not exist, so DeleteTwins lists all twins first and skips the unknown
// IDs.
//
// DeleteTwins stops at the first failed deletion; the returned IDs are those
// deleted before it.
func (c *Client) DeleteTwins(ctx context.Context, ids []string) (deleted []string, err error) {
	twins, err := c.ListTwins(ctx)
	if err != nil {
		return nil, fmt.Errorf("list twins: %w", err)
	}
	existing := make(map[string]struct{}, len(twins))
	for _, t := range twins {
		existing[t.ID] = struct{}{}
	}

	logger := component.Logger(ctx)
	for _, id := range ids {
		if _, ok := existing[id]; !ok {
			logger.Debug("Skipping deletion of a nonexistent twin", slog.String("twin", id))
			continue
		}
		_, err := call(ctx, "DeleteTwin", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.remote.DeleteTwin(ctx, id)
		}, attribute.String("adt.twin.id", id))
		if err != nil {
			return deleted, err
		}
		// A twin listed twice is deleted only once.
		delete(existing, id)
		deleted = append(deleted, id)
		logger.Info("Deleted digital twin", slog.String("twin", id))
	}
	return deleted, nil
}

// ListRelationships returns the outgoing relationships of the twin.
func (c *Client) ListRelationships(ctx context.Context, id string) ([]Relationship, error) {
	return call(ctx, "ListRelationships", func(ctx context.Context) ([]Relationship, error) {
		return c.remote.ListRelationships(ctx, id)
	}, attribute.String("adt.twin.id", id))
}

// call invokes a single Collaborator operation within its own span, measures
// it, and wraps its error in a *RemoteServiceError.
func call[T any](ctx context.Context, op string, fn func(context.Context) (T, error), attrs ...attribute.KeyValue) (v T, err error) {
	ctx, span := tracer.Start(ctx, "Collaborator."+op, trace.WithAttributes(attrs...))
	defer span.End()

	defer func(start time.Time) {
		measureRemoteCall(ctx, op, err == nil, time.Since(start))
	}(time.Now())

	v, err = fn(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return v, &RemoteServiceError{Op: op, Err: err}
	}
	return v, nil
}
