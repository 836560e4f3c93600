package adt_test

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-digitaltwin/go-adt"
)

// A patch document adds, then replaces, then removes. Here, Temperature is
// replaced and removed within the same patch, so the twin ends up without it.
func ExampleBuildPatchDocument() {
	doc := adt.BuildPatchDocument(
		[]adt.Property{{Name: "Humidity", Value: 20}},
		[]adt.Property{{Name: "Temperature", Value: 42}},
		[]string{"Temperature"},
	)
	for _, op := range doc {
		p, _ := json.Marshal(op)
		fmt.Println(string(p))
	}
	// Output:
	// {"op":"add","path":"/Humidity","value":20}
	// {"op":"replace","path":"/Temperature","value":42}
	// {"op":"remove","path":"/Temperature"}
}

// Callers holding a map pass it through Properties to get a stable order.
func ExampleProperties() {
	doc := adt.BuildPatchDocument(nil, adt.Properties(adt.PropertyBag{
		"Temperature": 21.5,
		"Humidity":    40,
	}), nil)
	p, _ := json.Marshal(doc)
	fmt.Println(string(p))
	// Output:
	// [{"op":"replace","path":"/Humidity","value":40},{"op":"replace","path":"/Temperature","value":21.5}]
}

func ExampleModelCatalog_BuildCreateDocument() {
	catalog := adt.NewModelCatalog("dtmi:example:Room;1")

	doc, _ := catalog.BuildCreateDocument("dtmi:example:Room;1", adt.PropertyBag{"Temperature": 60})
	p, _ := json.Marshal(doc)
	fmt.Println(string(p))

	_, err := catalog.BuildCreateDocument("dtmi:example:Floor;1", nil)
	var invalid *adt.InvalidModelError
	fmt.Println(errors.As(err, &invalid), err)
	// Output:
	// {"$metadata":{"$model":"dtmi:example:Room;1"},"Temperature":60}
	// true adt: invalid model "dtmi:example:Floor;1"
}
