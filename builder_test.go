package adt

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildPatchDocument(t *testing.T) {
	tests := []struct {
		name    string
		add     []Property
		replace []Property
		remove  []string
		want    PatchDocument
	}{
		{
			name:    "add replace remove",
			add:     []Property{{Name: "Humidity", Value: 20}},
			replace: []Property{{Name: "Temperature", Value: 42}},
			remove:  []string{"Temperature"},
			want: PatchDocument{
				{Op: OpAdd, Path: "/Humidity", Value: 20},
				{Op: OpReplace, Path: "/Temperature", Value: 42},
				{Op: OpRemove, Path: "/Temperature"},
			},
		},
		{
			name:   "groups keep input order",
			add:    []Property{{Name: "b", Value: 1}, {Name: "a", Value: 2}},
			remove: []string{"z", "y"},
			replace: []Property{
				{Name: "d", Value: "x"},
				{Name: "c", Value: nil},
			},
			want: PatchDocument{
				{Op: OpAdd, Path: "/b", Value: 1},
				{Op: OpAdd, Path: "/a", Value: 2},
				{Op: OpReplace, Path: "/d", Value: "x"},
				{Op: OpReplace, Path: "/c", Value: nil},
				{Op: OpRemove, Path: "/z"},
				{Op: OpRemove, Path: "/y"},
			},
		},
		{
			name:   "remove only",
			remove: []string{"Pressure"},
			want:   PatchDocument{{Op: OpRemove, Path: "/Pressure"}},
		},
		{
			name: "empty",
			want: PatchDocument{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildPatchDocument(tt.add, tt.replace, tt.remove)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("BuildPatchDocument() mismatch (-want +got):\n%s", diff)
			}
			if got == nil {
				t.Errorf("BuildPatchDocument() = nil; want a non-nil document")
			}
		})
	}
}

func TestPatchDocumentJSON(t *testing.T) {
	doc := BuildPatchDocument(
		[]Property{{Name: "Humidity", Value: 20}, {Name: "Note", Value: nil}},
		[]Property{{Name: "Temperature", Value: 42}},
		[]string{"Temperature"},
	)
	p, err := json.Marshal(doc)
	if err != nil {
		t.Fatal("Marshal:", err)
	}
	const want = `[{"op":"add","path":"/Humidity","value":20},{"op":"add","path":"/Note","value":null},{"op":"replace","path":"/Temperature","value":42},{"op":"remove","path":"/Temperature"}]`
	if string(p) != want {
		t.Errorf("Marshal(doc) = %s; want %s", p, want)
	}

	for _, empty := range []PatchDocument{nil, {}} {
		p, err := json.Marshal(empty)
		if err != nil {
			t.Fatal("Marshal:", err)
		}
		if string(p) != "[]" {
			t.Errorf("Marshal(%#v) = %s; want []", empty, p)
		}
	}
}

func TestModelCatalog_BuildCreateDocument(t *testing.T) {
	catalog := NewModelCatalog("dtmi:example:Room;1")

	t.Run("unknown model", func(t *testing.T) {
		_, err := catalog.BuildCreateDocument("dtmi:example:Floor;1", PropertyBag{"Temperature": 60})
		var invalid *InvalidModelError
		if !errors.As(err, &invalid) {
			t.Fatalf("BuildCreateDocument() error = %v; want *InvalidModelError", err)
		}
		if invalid.ModelID != "dtmi:example:Floor;1" {
			t.Errorf("InvalidModelError.ModelID = %q; want %q", invalid.ModelID, "dtmi:example:Floor;1")
		}
	})

	t.Run("known model", func(t *testing.T) {
		props := PropertyBag{"Temperature": 60, "Humidity": 30}
		got, err := catalog.BuildCreateDocument("dtmi:example:Room;1", props)
		if err != nil {
			t.Fatal("BuildCreateDocument:", err)
		}
		want := TwinDocument{
			Metadata:   TwinMetadata{Model: "dtmi:example:Room;1"},
			Properties: PropertyBag{"Temperature": 60, "Humidity": 30},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("BuildCreateDocument() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("document json", func(t *testing.T) {
		doc, err := catalog.BuildCreateDocument("dtmi:example:Room;1", PropertyBag{"Temperature": 60})
		if err != nil {
			t.Fatal("BuildCreateDocument:", err)
		}
		p, err := json.Marshal(doc)
		if err != nil {
			t.Fatal("Marshal:", err)
		}
		const want = `{"$metadata":{"$model":"dtmi:example:Room;1"},"Temperature":60}`
		if string(p) != want {
			t.Errorf("Marshal(doc) = %s; want %s", p, want)
		}
	})
}

func TestModelCatalog_IDs(t *testing.T) {
	catalog := NewModelCatalog("dtmi:b;1", "dtmi:a;1", "dtmi:b;1")
	if diff := cmp.Diff([]string{"dtmi:a;1", "dtmi:b;1"}, catalog.IDs()); diff != "" {
		t.Errorf("IDs() mismatch (-want +got):\n%s", diff)
	}
	if catalog.Contains("dtmi:c;1") {
		t.Errorf("Contains(dtmi:c;1) = true; want false")
	}
}

func TestProperties(t *testing.T) {
	got := Properties(PropertyBag{"b": 2, "a": 1, "c": 3})
	want := []Property{{Name: "a", Value: 1}, {Name: "b", Value: 2}, {Name: "c", Value: 3}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Properties() mismatch (-want +got):\n%s", diff)
	}
	if got := Properties(nil); got != nil {
		t.Errorf("Properties(nil) = %v; want nil", got)
	}
}
