package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-digitaltwin/go-adt"
)

// parseValue interprets s as JSON when it is valid JSON, and as a plain string
// otherwise. So 42 is a number, true a boolean and "42" (quoted) a string, while
// Room 3 needs no quotes at all.
func parseValue(s string) any {
	if !json.Valid([]byte(s)) {
		return s
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

// parseAssignment splits a name=value argument.
func parseAssignment(arg string) (adt.Property, error) {
	name, value, ok := strings.Cut(arg, "=")
	if !ok {
		return adt.Property{}, fmt.Errorf("%q is not of the form name=value", arg)
	}
	if name == "" {
		return adt.Property{}, fmt.Errorf("%q lacks a property name", arg)
	}
	return adt.Property{Name: name, Value: parseValue(value)}, nil
}

// parseAssignments parses name=value arguments, keeping their order.
func parseAssignments(args []string) ([]adt.Property, error) {
	var props []adt.Property
	for _, arg := range args {
		p, err := parseAssignment(arg)
		if err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return props, nil
}
