// Package neo4jexport copies the twin graph of an Azure Digital Twins instance
// into a Neo4j database, where it can be analysed offline with Cypher.
//
// Each twin becomes a node labelled Twin, keyed by its dtId, and each
// relationship becomes a RELATES edge between the nodes of its source and target
// twins, keyed by its relationshipId. Exports merge into the database: running
// the same export twice leaves a single copy of each twin and relationship.
// Nodes and edges that have since disappeared from the instance are kept.
package neo4jexport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/danielorbach/go-component"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/go-digitaltwin/go-adt"
)

const (
	twinLabel        = "Twin"
	relationshipType = "RELATES"
	dtIDConstraint   = "twin_dtid"
)

// DefaultConcurrency bounds the number of relationship listings in flight
// during an export, unless overridden with WithConcurrency.
const DefaultConcurrency = 8

// A Source lists the twin graph to export. *adt.Client implements it.
type Source interface {
	ListTwins(ctx context.Context) ([]adt.Twin, error)
	ListRelationships(ctx context.Context, id string) ([]adt.Relationship, error)
}

var _ Source = (*adt.Client)(nil)

// Summary reports how many elements an export wrote.
type Summary struct {
	Twins         int
	Relationships int
}

// An Exporter writes twin graphs into a single Neo4j database, bootstrapped by
// BootstrapDatabase.
type Exporter struct {
	driver      neo4j.DriverWithContext
	database    string
	concurrency int
}

// An Option configures an Exporter.
type Option func(*Exporter)

// WithConcurrency sets how many relationship listings may be in flight at once.
// Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(e *Exporter) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// New returns an Exporter writing to the given database.
func New(driver neo4j.DriverWithContext, database string, opts ...Option) *Exporter {
	e := &Exporter{
		driver:      driver,
		database:    database,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export reads every twin and every outgoing relationship from src and merges
// them into the database, all within a single write transaction. Relationships
// whose source or target twin was not listed are skipped.
func (e *Exporter) Export(ctx context.Context, src Source) (s Summary, err error) {
	ctx, span := tracer.Start(ctx, "Exporter.Export", trace.WithAttributes(
		attribute.String("neo4j.database", e.database),
	))
	defer span.End()
	logger := component.Logger(ctx).With("neo4j.database", e.database)
	ctx = component.InjectLogger(ctx, logger)

	defer func(start time.Time) {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return
		}
		measureExport(ctx, e.database, s, time.Since(start))
	}(time.Now())

	logger.Debug("Listing twins...")
	twins, err := src.ListTwins(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list twins: %w", err)
	}
	logger.Debug("Listing relationships...", slog.Int("twins", len(twins)))
	rels, err := e.listRelationships(ctx, src, twins)
	if err != nil {
		return Summary{}, err
	}

	logger.Debug("Writing graph...", slog.Int("twins", len(twins)), slog.Int("relationships", len(rels)))
	s, err = e.write(ctx, twins, rels)
	if err != nil {
		return Summary{}, err
	}
	logger.Info("Exported twin graph",
		slog.Int("twins", s.Twins),
		slog.Int("relationships", s.Relationships),
	)
	return s, nil
}

// listRelationships fetches the relationships of all twins with at most
// e.concurrency requests in flight. The result follows the order of twins.
func (e *Exporter) listRelationships(ctx context.Context, src Source, twins []adt.Twin) ([]adt.Relationship, error) {
	perTwin := make([][]adt.Relationship, len(twins))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, t := range twins {
		g.Go(func() error {
			rels, err := src.ListRelationships(ctx, t.ID)
			if err != nil {
				return fmt.Errorf("list relationships of %q: %w", t.ID, err)
			}
			perTwin[i] = rels
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []adt.Relationship
	for _, rels := range perTwin {
		all = append(all, rels...)
	}
	return all, nil
}

func (e *Exporter) write(ctx context.Context, twins []adt.Twin, rels []adt.Relationship) (Summary, error) {
	session := e.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: e.database})
	defer func() {
		if err := session.Close(ctx); err != nil {
			component.Logger(ctx).Error("Failed to close session", "error", err, "mode", "write")
		}
	}()

	twinParams, err := formatTwins(twins)
	if err != nil {
		return Summary{}, err
	}
	relParams, err := formatRelationships(rels)
	if err != nil {
		return Summary{}, err
	}

	summary, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		nodes, err := runCount(ctx, tx, `
			UNWIND $twins AS t
			MERGE (n:`+twinLabel+` {dtId: t.dtId})
			SET n = t.props
			SET n.dtId = t.dtId, n.model = t.model, n.etag = t.etag, n._exported_at = datetime()
			RETURN count(n) AS elements
		`, map[string]any{"twins": twinParams})
		if err != nil {
			return nil, fmt.Errorf("merge twins: %w", err)
		}
		edges, err := runCount(ctx, tx, `
			UNWIND $rels AS r
			MATCH (s:`+twinLabel+` {dtId: r.sourceId})
			MATCH (t:`+twinLabel+` {dtId: r.targetId})
			MERGE (s)-[e:`+relationshipType+` {relationshipId: r.relationshipId}]->(t)
			SET e = r.props
			SET e.relationshipId = r.relationshipId, e.name = r.name, e.etag = r.etag, e._exported_at = datetime()
			RETURN count(e) AS elements
		`, map[string]any{"rels": relParams})
		if err != nil {
			return nil, fmt.Errorf("merge relationships: %w", err)
		}
		return Summary{Twins: int(nodes), Relationships: int(edges)}, nil
	})
	if err != nil {
		return Summary{}, fmt.Errorf("write graph: %w", err)
	}
	return summary.(Summary), nil
}

func runCount(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]any) (int64, error) {
	result, err := tx.Run(ctx, query, params)
	if err != nil {
		return 0, fmt.Errorf("run cypher: %w", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return 0, fmt.Errorf("query single result: %w", err)
	}
	n, err := getRecordProperty[int64](record, "elements")
	if err != nil {
		return 0, fmt.Errorf("get elements: %w", err)
	}
	return n, nil
}

func formatTwins(twins []adt.Twin) ([]any, error) {
	params := make([]any, 0, len(twins))
	for _, t := range twins {
		props, err := neo4jProps(t.Properties)
		if err != nil {
			return nil, fmt.Errorf("twin %q: %w", t.ID, err)
		}
		params = append(params, map[string]any{
			"dtId":  t.ID,
			"model": t.ModelID(),
			"etag":  t.ETag,
			"props": props,
		})
	}
	return params, nil
}

func formatRelationships(rels []adt.Relationship) ([]any, error) {
	params := make([]any, 0, len(rels))
	for _, r := range rels {
		props, err := neo4jProps(r.Properties)
		if err != nil {
			return nil, fmt.Errorf("relationship %q: %w", r.ID, err)
		}
		params = append(params, map[string]any{
			"relationshipId": r.ID,
			"sourceId":       r.SourceID,
			"targetId":       r.TargetID,
			"name":           r.Name,
			"etag":           r.ETag,
			"props":          props,
		})
	}
	return params, nil
}

var errPropertyNotFound = errors.New("property not found")

type unexpectedPropertyTypeError struct {
	Type reflect.Type
}

func (e unexpectedPropertyTypeError) Error() string {
	return fmt.Sprintf("unexpected property type: %v", e.Type)
}

// recordProperty lists the record value types read by getRecordProperty.
type recordProperty interface {
	int64 | string | []any
}

func getRecordProperty[T recordProperty](record *neo4j.Record, key string) (value T, err error) {
	prop, exists := record.Get(key)
	if !exists {
		return value, errPropertyNotFound
	}
	v, ok := prop.(T)
	if !ok {
		return value, unexpectedPropertyTypeError{Type: reflect.TypeOf(prop)}
	}
	return v, nil
}
