package adt

import "fmt"

// A ConfigurationError reports a missing or malformed configuration value. It is
// detected before any connection to the service is attempted.
type ConfigurationError struct {
	Key    string // Name of the environment variable holding the value.
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("adt: configuration %s: %s", e.Key, e.Reason)
}

// An InvalidModelError reports an attempt to create a twin of a model the client
// does not know about.
type InvalidModelError struct {
	ModelID string
}

func (e *InvalidModelError) Error() string {
	return fmt.Sprintf("adt: invalid model %q", e.ModelID)
}

// A RemoteServiceError wraps any failure returned by the Collaborator, e.g. an
// authentication rejection, a missing twin or a network fault. The wrapped error
// is kept as is; use errors.As to inspect it.
type RemoteServiceError struct {
	Op  string // The Collaborator method that failed.
	Err error
}

func (e *RemoteServiceError) Error() string {
	return "adt: " + e.Op + ": " + e.Err.Error()
}

func (e *RemoteServiceError) Unwrap() error { return e.Err }
