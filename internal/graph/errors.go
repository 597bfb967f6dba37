package graph

import (
	"errors"
	"fmt"
)

// Validation failure classes. ValidationError wraps one of these, so callers
// can classify with errors.Is while keeping the layer detail.
var (
	ErrShapeMismatch = errors.New("shape mismatch")
	ErrMissingField  = errors.New("missing required field")
	ErrIndexOrder    = errors.New("layer indices out of order")
)

// ValidationError reports a record whose declared shape and parameter
// buffers disagree.
type ValidationError struct {
	Err     error  // classification, one of the sentinels above
	Layer   string // record name, if known
	Field   string // offending field
	Details string // what disagreed
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Layer != "" {
		return fmt.Sprintf("%v: layer %q field %s: %s", e.Err, e.Layer, e.Field, e.Details)
	}
	return fmt.Sprintf("%v: field %s: %s", e.Err, e.Field, e.Details)
}

// Unwrap returns the classification sentinel.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
