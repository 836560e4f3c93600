package adt

import (
	"encoding/json"
	"maps"
	"sort"
)

// PatchOp names a JSON Patch operation.
type PatchOp string

// The JSON Patch operations used to update twin properties.
const (
	OpAdd     PatchOp = "add"
	OpReplace PatchOp = "replace"
	OpRemove  PatchOp = "remove"
)

// PatchOperation is a single JSON Patch instruction targeting a property of a
// twin. Path is a JSON Pointer relative to the twin's root, e.g. "/Humidity".
//
// Value is ignored for OpRemove.
type PatchOperation struct {
	Op    PatchOp
	Path  string
	Value any
}

// MarshalJSON encodes the operation in JSON Patch form. A remove operation never
// carries a value; add and replace always do, even when the value is null.
func (o PatchOperation) MarshalJSON() ([]byte, error) {
	if o.Op == OpRemove {
		return json.Marshal(struct {
			Op   PatchOp `json:"op"`
			Path string  `json:"path"`
		}{o.Op, o.Path})
	}
	return json.Marshal(struct {
		Op    PatchOp `json:"op"`
		Path  string  `json:"path"`
		Value any     `json:"value"`
	}{o.Op, o.Path, o.Value})
}

// PatchDocument is an ordered list of patch operations. The service applies the
// operations in order.
type PatchDocument []PatchOperation

// MarshalJSON encodes an empty (or nil) document as [] rather than null.
func (d PatchDocument) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]PatchOperation(d))
}

// propertyPath renders a property name as a root-relative JSON Pointer.
func propertyPath(name string) string {
	return "/" + name
}

// BuildPatchDocument composes a patch document from properties to add, to
// replace and to remove. The result holds all add operations first, then all
// replace operations, then all remove operations, each group in input order.
//
// This order allows a replace to refer to a property added in the same patch,
// and makes sure a removed property is not re-created by an earlier operation.
//
// Any of the inputs may be empty. When all of them are, BuildPatchDocument
// returns an empty (non-nil) document.
func BuildPatchDocument(add, replace []Property, remove []string) PatchDocument {
	doc := make(PatchDocument, 0, len(add)+len(replace)+len(remove))
	for _, p := range add {
		doc = append(doc, PatchOperation{Op: OpAdd, Path: propertyPath(p.Name), Value: p.Value})
	}
	for _, p := range replace {
		doc = append(doc, PatchOperation{Op: OpReplace, Path: propertyPath(p.Name), Value: p.Value})
	}
	for _, name := range remove {
		doc = append(doc, PatchOperation{Op: OpRemove, Path: propertyPath(name)})
	}
	return doc
}

// ModelCatalog is the set of model IDs known to the service at the time the
// catalog was built. It is never refreshed, so it goes stale when models are
// added or decommissioned afterwards.
//
// A ModelCatalog is read-only and safe for concurrent use.
type ModelCatalog struct {
	ids map[string]struct{}
}

// NewModelCatalog returns a catalog of the given model IDs.
func NewModelCatalog(ids ...string) ModelCatalog {
	c := ModelCatalog{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		c.ids[id] = struct{}{}
	}
	return c
}

// Contains reports whether id is a known model.
func (c ModelCatalog) Contains(id string) bool {
	_, ok := c.ids[id]
	return ok
}

// IDs returns the known model IDs in lexicographic order.
func (c ModelCatalog) IDs() []string {
	ids := make([]string, 0, len(c.ids))
	for id := range c.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BuildCreateDocument returns the document that creates a twin of the given
// model with the given initial properties. It fails with an *InvalidModelError
// if the model is not in the catalog.
//
// The property names are not checked against the model's schema; the service
// rejects unknown properties on its own.
//
// TODO: validate property names once model definitions are cached alongside their IDs.
func (c ModelCatalog) BuildCreateDocument(modelID string, props PropertyBag) (TwinDocument, error) {
	if !c.Contains(modelID) {
		return TwinDocument{}, &InvalidModelError{ModelID: modelID}
	}
	return TwinDocument{
		Metadata:   TwinMetadata{Model: modelID},
		Properties: maps.Clone(props),
	}, nil
}
