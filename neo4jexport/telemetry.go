package neo4jexport

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("github.com/go-digitaltwin/go-adt/neo4jexport")
var meter = otel.Meter("github.com/go-digitaltwin/go-adt/neo4jexport")

var (
	// exportDuration measures the duration of a successful export, including
	// the time spent reading from the digital twins service.
	exportDuration metric.Float64Histogram
	// exportedElements counts the twins and relationships written to Neo4j. Each
	// record is associated with the kind of element ("twin" or "relationship").
	exportedElements metric.Int64Counter
)

func init() {
	var err error
	exportDuration, err = meter.Float64Histogram(
		"neo4jexport.duration",
		metric.WithDescription("The duration of a successful export of the twin graph."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		panic("neo4jexport: failed to init 'neo4jexport.duration' instrument")
	}

	exportedElements, err = meter.Int64Counter(
		"neo4jexport.elements",
		metric.WithDescription("The number of twins and relationships written to Neo4j."),
	)
	if err != nil {
		panic("neo4jexport: failed to init 'neo4jexport.elements' instrument")
	}
}

func measureExport(ctx context.Context, database string, s Summary, d time.Duration) {
	db := attribute.String("neo4j.database", database)
	duration := float64(d) / float64(time.Millisecond)
	exportDuration.Record(ctx, duration, metric.WithAttributeSet(attribute.NewSet(db)))
	exportedElements.Add(ctx, int64(s.Twins), metric.WithAttributeSet(attribute.NewSet(db, attribute.String("kind", "twin"))))
	exportedElements.Add(ctx, int64(s.Relationships), metric.WithAttributeSet(attribute.NewSet(db, attribute.String("kind", "relationship"))))
}
