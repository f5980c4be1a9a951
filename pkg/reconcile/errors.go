package reconcile

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoTree is returned when data is pumped before any tree was committed,
// either because Reconcile never succeeded or the root was nil.
var ErrNoTree = errors.New("reconcile: no tree to operate on; Reconcile must succeed before pumping data")

// DuplicateKeyError reports sibling elements sharing an explicit key.
// Keys lists every duplicated key once, sorted.
type DuplicateKeyError struct {
	Path string
	Keys []string
}

// Error implements the error interface.
func (e *DuplicateKeyError) Error() string {
	return "Duplicate keys found: " + strings.Join(e.Keys, ", ")
}

// RenderError reports a component whose invocation failed, either by
// panicking or by breaking hook order.
type RenderError struct {
	Component string
	Path      string
	Panic     any
	Err       error
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("reconcile: component %s at %s panicked: %v", e.Component, e.Path, e.Panic)
	}
	return fmt.Sprintf("reconcile: component %s at %s: %v", e.Component, e.Path, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RenderError) Unwrap() error {
	return e.Err
}
