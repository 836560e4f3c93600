package adt

import "context"

// A Collaborator performs the remote operations of an Azure Digital Twins
// instance on behalf of a Client. Authentication, transport, pagination and
// retries are the Collaborator's business; the Client never retries a failed
// call.
//
// See package adtrest for the implementation backed by the service's REST API.
// Tests substitute their own.
type Collaborator interface {
	// ListModels returns every model uploaded to the instance.
	ListModels(ctx context.Context) ([]Model, error)
	// GetModel returns a single model, including its DTDL definition.
	GetModel(ctx context.Context, id string) (Model, error)
	// GetTwin returns the current state of a twin.
	GetTwin(ctx context.Context, id string) (Twin, error)
	// QueryTwins runs a query and returns all the twins it selects.
	QueryTwins(ctx context.Context, query string) ([]Twin, error)
	// UpsertTwin creates a twin, or replaces it entirely if it exists.
	UpsertTwin(ctx context.Context, id string, doc TwinDocument) (Twin, error)
	// ApplyPatch applies the operations of doc to a twin, in order. An empty
	// document is sent as is.
	ApplyPatch(ctx context.Context, id string, doc PatchDocument) error
	// DeleteTwin removes a twin. Deleting a twin that does not exist fails.
	DeleteTwin(ctx context.Context, id string) error
	// ListRelationships returns the outgoing relationships of a twin.
	ListRelationships(ctx context.Context, id string) ([]Relationship, error)
}

// A Dialer constructs a Collaborator from a validated Config.
type Dialer func(ctx context.Context, cfg Config) (Collaborator, error)
