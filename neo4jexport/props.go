package neo4jexport

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/go-digitaltwin/go-adt"
)

// neo4jProps converts a property bag into a map Neo4j can store on a node or an
// edge. Neo4j properties hold only primitives and homogeneous lists of
// primitives, so objects and mixed lists are stored as their JSON encoding. Null
// values are dropped, as Neo4j does not store them.
func neo4jProps(bag adt.PropertyBag) (map[string]any, error) {
	props := make(map[string]any, len(bag))
	for name, value := range bag {
		if value == nil {
			continue
		}
		if isPrimitive(value) || isHomogeneousList(value) {
			props[name] = value
			continue
		}
		p, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		props[name] = string(p)
	}
	return props, nil
}

func isPrimitive(v any) bool {
	switch v.(type) {
	case bool, string, float64, float32, int, int64, int32:
		return true
	}
	return false
}

// isHomogeneousList reports whether v is a non-empty []any of primitives that
// share a single type.
func isHomogeneousList(v any) bool {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return false
	}
	first := reflect.TypeOf(list[0])
	for _, x := range list {
		if x == nil || !isPrimitive(x) || reflect.TypeOf(x) != first {
			return false
		}
	}
	return true
}
