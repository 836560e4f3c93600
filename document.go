package adt

import (
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"time"
)

// PropertyBag maps property names to their values. It represents a fragment of
// the mutable state of a digital twin or a relationship.
type PropertyBag map[string]any

// A Property is a single named value. Unlike a PropertyBag, a slice of
// properties has a well-defined order.
type Property struct {
	Name  string
	Value any
}

// Properties returns the entries of bag as a slice sorted by property name.
// Use it to turn a bag into the ordered input expected by BuildPatchDocument.
func Properties(bag PropertyBag) []Property {
	if len(bag) == 0 {
		return nil
	}
	props := make([]Property, 0, len(bag))
	for name, value := range bag {
		props = append(props, Property{Name: name, Value: value})
	}
	sort.Slice(props, func(i, j int) bool { return props[i].Name < props[j].Name })
	return props
}

// Reserved keys of the twin and relationship JSON documents. Every other key of
// such a document is a property.
const (
	keyTwinID           = "$dtId"
	keyETag             = "$etag"
	keyMetadata         = "$metadata"
	keyRelationshipID   = "$relationshipId"
	keySourceID         = "$sourceId"
	keyTargetID         = "$targetId"
	keyRelationshipName = "$relationshipName"
)

// TwinMetadata is the "$metadata" section of a twin document. Only the model
// reference is interpreted; the per-property metadata maintained by the service
// is ignored.
type TwinMetadata struct {
	Model string `json:"$model"`
}

// TwinDocument is the body sent to create (or replace) a digital twin: a model
// reference plus the initial properties.
//
// It encodes as a single flat JSON object, e.g.
//
//	{"$metadata": {"$model": "dtmi:example:Room;1"}, "Temperature": 60}
type TwinDocument struct {
	Metadata   TwinMetadata
	Properties PropertyBag
}

// MarshalJSON flattens the properties next to the "$metadata" key.
func (d TwinDocument) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(d.Properties)+1)
	maps.Copy(m, d.Properties)
	m[keyMetadata] = d.Metadata
	return json.Marshal(m)
}

// Twin is a digital twin as returned by the service.
type Twin struct {
	ID         string
	ETag       string
	Metadata   TwinMetadata
	Properties PropertyBag
}

// ModelID returns the model the twin conforms to.
func (t Twin) ModelID() string { return t.Metadata.Model }

// Property returns the value of the named property and whether the twin
// declares it.
func (t Twin) Property(name string) (any, bool) {
	v, ok := t.Properties[name]
	return v, ok
}

// UnmarshalJSON separates the reserved "$" keys from the twin's properties.
func (t *Twin) UnmarshalJSON(p []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(p, &raw); err != nil {
		return err
	}
	*t = Twin{}
	if err := takeString(raw, keyTwinID, &t.ID); err != nil {
		return err
	}
	if err := takeString(raw, keyETag, &t.ETag); err != nil {
		return err
	}
	if m, ok := raw[keyMetadata]; ok {
		if err := json.Unmarshal(m, &t.Metadata); err != nil {
			return fmt.Errorf("%s: %w", keyMetadata, err)
		}
		delete(raw, keyMetadata)
	}
	props, err := decodeProperties(raw)
	if err != nil {
		return err
	}
	t.Properties = props
	return nil
}

// MarshalJSON renders the twin in the same flat shape the service uses.
func (t Twin) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(t.Properties)+3)
	maps.Copy(m, t.Properties)
	m[keyTwinID] = t.ID
	if t.ETag != "" {
		m[keyETag] = t.ETag
	}
	m[keyMetadata] = t.Metadata
	return json.Marshal(m)
}

// Relationship is a directed link between two twins.
type Relationship struct {
	ID         string
	SourceID   string
	TargetID   string
	Name       string
	ETag       string
	Properties PropertyBag
}

// UnmarshalJSON separates the reserved "$" keys from the relationship's
// properties.
func (r *Relationship) UnmarshalJSON(p []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(p, &raw); err != nil {
		return err
	}
	*r = Relationship{}
	for key, dst := range map[string]*string{
		keyRelationshipID:   &r.ID,
		keySourceID:         &r.SourceID,
		keyTargetID:         &r.TargetID,
		keyRelationshipName: &r.Name,
		keyETag:             &r.ETag,
	} {
		if err := takeString(raw, key, dst); err != nil {
			return err
		}
	}
	props, err := decodeProperties(raw)
	if err != nil {
		return err
	}
	r.Properties = props
	return nil
}

// MarshalJSON renders the relationship in the same flat shape the service uses.
func (r Relationship) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Properties)+5)
	maps.Copy(m, r.Properties)
	m[keyRelationshipID] = r.ID
	m[keySourceID] = r.SourceID
	m[keyTargetID] = r.TargetID
	m[keyRelationshipName] = r.Name
	if r.ETag != "" {
		m[keyETag] = r.ETag
	}
	return json.Marshal(m)
}

// Model describes a DTDL model uploaded to the service.
type Model struct {
	ID             string            `json:"id"`
	DisplayName    map[string]string `json:"displayName,omitempty"`
	Description    map[string]string `json:"description,omitempty"`
	Decommissioned bool              `json:"decommissioned"`
	UploadTime     time.Time         `json:"uploadTime"`
	// Definition holds the DTDL document of the model. It is only populated when
	// the model is fetched individually.
	Definition json.RawMessage `json:"model,omitempty"`
}

// takeString decodes raw[key] into dst, if present, and removes the key.
func takeString(raw map[string]json.RawMessage, key string, dst *string) error {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	delete(raw, key)
	return nil
}

func decodeProperties(raw map[string]json.RawMessage) (PropertyBag, error) {
	props := make(PropertyBag, len(raw))
	for name, v := range raw {
		var value any
		if err := json.Unmarshal(v, &value); err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		props[name] = value
	}
	return props, nil
}
