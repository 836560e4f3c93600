// Package adt provides a thin client for an Azure Digital Twins instance; a
// digital twin is a named instance of state conforming to a model (a DTDL
// schema), and twins are linked to one another by relationships.
//
// A Client queries twins, models and relationships, creates twins of known
// models, and updates twin properties with JSON Patch documents. It delegates
// every remote operation (authentication, transport, query execution and patch
// semantics) to a Collaborator. Package adtrest implements a Collaborator over
// the service's REST API:
//
//	cfg, err := adt.LoadConfig()
//	...
//	client, err := adt.Open(ctx, cfg, adtrest.Dial)
//	...
//	err = client.UpdateTwin(ctx, "Room0",
//		[]adt.Property{{Name: "Humidity", Value: 20}},    // add
//		[]adt.Property{{Name: "Temperature", Value: 42}}, // replace
//		nil,                                              // remove
//	)
//
// The request shaping is available on its own through BuildPatchDocument and
// ModelCatalog.BuildCreateDocument.
package adt
