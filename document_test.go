package adt

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTwinJSON(t *testing.T) {
	const body = `{
		"$dtId": "Room0",
		"$etag": "W/\"a2f0\"",
		"$metadata": {
			"$model": "dtmi:example:Room;1",
			"Temperature": {"lastUpdateTime": "2023-01-01T00:00:00Z"}
		},
		"Temperature": 68,
		"Location": {"x": 1, "y": 2}
	}`
	var got Twin
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatal("Unmarshal:", err)
	}
	want := Twin{
		ID:       "Room0",
		ETag:     `W/"a2f0"`,
		Metadata: TwinMetadata{Model: "dtmi:example:Room;1"},
		Properties: PropertyBag{
			"Temperature": 68.0,
			"Location":    map[string]any{"x": 1.0, "y": 2.0},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Unmarshal(twin) mismatch (-want +got):\n%s", diff)
	}

	// Marshalling yields the service's flat shape again.
	p, err := json.Marshal(got)
	if err != nil {
		t.Fatal("Marshal:", err)
	}
	var again Twin
	if err := json.Unmarshal(p, &again); err != nil {
		t.Fatal("Unmarshal:", err)
	}
	if diff := cmp.Diff(want, again); diff != "" {
		t.Errorf("Marshal(twin) lost information (-want +got):\n%s", diff)
	}
}

func TestRelationshipJSON(t *testing.T) {
	const body = `{
		"$relationshipId": "Floor0-contains-Room0",
		"$sourceId": "Floor0",
		"$targetId": "Room0",
		"$relationshipName": "contains",
		"$etag": "W/\"77\"",
		"since": "2023-01-01"
	}`
	var got Relationship
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatal("Unmarshal:", err)
	}
	want := Relationship{
		ID:         "Floor0-contains-Room0",
		SourceID:   "Floor0",
		TargetID:   "Room0",
		Name:       "contains",
		ETag:       `W/"77"`,
		Properties: PropertyBag{"since": "2023-01-01"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Unmarshal(relationship) mismatch (-want +got):\n%s", diff)
	}
}

func TestTwinUnmarshalRejectsMalformedKeys(t *testing.T) {
	var twin Twin
	if err := json.Unmarshal([]byte(`{"$dtId": 42}`), &twin); err == nil {
		t.Errorf("Unmarshal(numeric $dtId) = nil; want an error")
	}
}
