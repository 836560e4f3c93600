package neo4jexport

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/go-digitaltwin/go-adt"
	"github.com/go-digitaltwin/go-adt/internal/dbtest"
)

// stubSource serves a fixed twin graph. It fails to list the relationships of
// twins listed in fail.
type stubSource struct {
	twins    []adt.Twin
	rels     map[string][]adt.Relationship
	fail     map[string]bool
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (s *stubSource) ListTwins(context.Context) ([]adt.Twin, error) {
	return s.twins, nil
}

func (s *stubSource) ListRelationships(_ context.Context, id string) ([]adt.Relationship, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		seen := s.maxSeen.Load()
		if n <= seen || s.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if s.fail[id] {
		return nil, errors.New("service unavailable")
	}
	return s.rels[id], nil
}

func buildingGraph() *stubSource {
	twin := func(id, model string, props adt.PropertyBag) adt.Twin {
		return adt.Twin{ID: id, Metadata: adt.TwinMetadata{Model: model}, Properties: props}
	}
	return &stubSource{
		twins: []adt.Twin{
			twin("Floor0", "dtmi:example:Floor;1", adt.PropertyBag{"Level": 0.0}),
			twin("Room0", "dtmi:example:Room;1", adt.PropertyBag{"Temperature": 68.0, "Location": map[string]any{"x": 1.0}}),
			twin("Room1", "dtmi:example:Room;1", adt.PropertyBag{"Temperature": 70.0}),
		},
		rels: map[string][]adt.Relationship{
			"Floor0": {
				{ID: "Floor0-Room0", SourceID: "Floor0", TargetID: "Room0", Name: "contains"},
				{ID: "Floor0-Room1", SourceID: "Floor0", TargetID: "Room1", Name: "contains", Properties: adt.PropertyBag{"since": "2023"}},
			},
			"Room0": {
				{ID: "Room0-Room1", SourceID: "Room0", TargetID: "Room1", Name: "adjacentTo"},
			},
		},
	}
}

func TestExporter_listRelationships(t *testing.T) {
	src := buildingGraph()
	e := New(nil, "unused", WithConcurrency(2))

	rels, err := e.listRelationships(context.Background(), src, src.twins)
	if err != nil {
		t.Fatal("listRelationships:", err)
	}
	var ids []string
	for _, r := range rels {
		ids = append(ids, r.ID)
	}
	if diff := cmp.Diff([]string{"Floor0-Room0", "Floor0-Room1", "Room0-Room1"}, ids); diff != "" {
		t.Errorf("listRelationships() mismatch (-want +got):\n%s", diff)
	}
	if n := src.maxSeen.Load(); n > 2 {
		t.Errorf("listRelationships() had %d listings in flight; want at most 2", n)
	}

	src.fail = map[string]bool{"Room1": true}
	if _, err := e.listRelationships(context.Background(), src, src.twins); err == nil || !strings.Contains(err.Error(), "Room1") {
		t.Errorf("listRelationships() = %v; want an error naming Room1", err)
	}
}

func TestExporter_Export(t *testing.T) {
	d := dbtest.SetupNeo4j(t)
	ctx := context.Background()
	const database = "adt-export"

	if err := BootstrapDatabase(ctx, d, database); err != nil {
		t.Fatal("BootstrapDatabase:", err)
	}

	src := buildingGraph()
	e := New(d, database)
	// Exporting twice must not duplicate anything.
	for i := range 2 {
		s, err := e.Export(ctx, src)
		if err != nil {
			t.Fatalf("Export() #%d error = %v", i, err)
		}
		if diff := cmp.Diff(Summary{Twins: 3, Relationships: 3}, s); diff != "" {
			t.Errorf("Export() #%d summary mismatch (-want +got):\n%s", i, diff)
		}
	}

	session := d.NewSession(ctx, neo4j.SessionConfig{DatabaseName: database})
	defer func() {
		if err := session.Close(ctx); err != nil {
			t.Fatal("Failed to close session:", err)
		}
	}()

	nodes := queryStrings(t, ctx, session, `
		MATCH (n:Twin)
		RETURN n.dtId + " " + n.model + " " + coalesce(toString(n.Temperature), "-") + " " + coalesce(n.Location, "-") AS row
	`)
	wantNodes := []string{
		"Floor0 dtmi:example:Floor;1 - -",
		`Room0 dtmi:example:Room;1 68.0 {"x":1}`,
		"Room1 dtmi:example:Room;1 70.0 -",
	}
	if diff := cmp.Diff(wantNodes, nodes); diff != "" {
		t.Errorf("Twin nodes mismatch (-want +got):\n%s", diff)
	}

	edges := queryStrings(t, ctx, session, `
		MATCH (s:Twin)-[e:RELATES]->(t:Twin)
		RETURN s.dtId + " -" + e.name + "-> " + t.dtId + " " + coalesce(e.since, "-") AS row
	`)
	wantEdges := []string{
		"Floor0 -contains-> Room0 -",
		"Floor0 -contains-> Room1 2023",
		"Room0 -adjacentTo-> Room1 -",
	}
	if diff := cmp.Diff(wantEdges, edges); diff != "" {
		t.Errorf("RELATES edges mismatch (-want +got):\n%s", diff)
	}
}

func TestBootstrapDatabase(t *testing.T) {
	d := dbtest.SetupNeo4j(t)
	ctx := context.Background()
	const database = "adt-bootstrap"

	// Bootstrapping is idempotent.
	for i := range 2 {
		if err := BootstrapDatabase(ctx, d, database); err != nil {
			t.Fatalf("BootstrapDatabase() #%d error = %v", i, err)
		}
	}

	session := d.NewSession(ctx, neo4j.SessionConfig{DatabaseName: database})
	defer func() {
		if err := session.Close(ctx); err != nil {
			t.Fatal("Failed to close session:", err)
		}
	}()
	names := queryStrings(t, ctx, session, "SHOW CONSTRAINTS YIELD name WHERE name = '"+dtIDConstraint+"' RETURN name AS row")
	if diff := cmp.Diff([]string{dtIDConstraint}, names); diff != "" {
		t.Errorf("constraints mismatch (-want +got):\n%s", diff)
	}

	if err := BootstrapDatabase(ctx, d, "neo4j"); !errors.Is(err, ErrReservedDatabase) {
		t.Errorf("BootstrapDatabase(neo4j) = %v; want ErrReservedDatabase", err)
	}
}

// queryStrings runs a query returning a single string column named row, and
// returns the rows sorted.
func queryStrings(t *testing.T, ctx context.Context, session neo4j.SessionWithContext, query string) []string {
	t.Helper()
	result, err := session.Run(ctx, query, nil)
	if err != nil {
		t.Fatal("Failed to run query:", err)
	}
	var rows []string
	for result.Next(ctx) {
		row, err := getRecordProperty[string](result.Record(), "row")
		if err != nil {
			t.Fatal(fmt.Sprintf("Failed to read row %v:", result.Record().Values), err)
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		t.Fatal("Failed to read query results:", err)
	}
	sort.Strings(rows)
	return rows
}
