// Package fault classifies pipeline errors so the worker can decide between
// retrying a job, degrading the current step, and routing to the fallback
// branch. Every external capability failure is wrapped in a Fault before it
// crosses a package boundary.
package fault

import (
	"errors"
	"fmt"
)

type Kind string

const (
	Validation  Kind = "validation"
	Acquisition Kind = "acquisition"
	Extraction  Kind = "extraction"
	Analysis    Kind = "analysis"
	Generation  Kind = "generation"
	Render      Kind = "render"
	Upload      Kind = "upload"
	Delivery    Kind = "delivery"
)

// Fault carries the failure kind and whether spending a retry attempt on it
// can help. Terminal faults route straight to the fallback branch.
type Fault struct {
	Kind      Kind
	Retryable bool
	Err       error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Terminal wraps err as a non-retryable fault of the given kind.
func Terminal(kind Kind, err error) *Fault {
	return &Fault{Kind: kind, Retryable: false, Err: err}
}

// Transient wraps err as a retryable fault of the given kind.
func Transient(kind Kind, err error) *Fault {
	return &Fault{Kind: kind, Retryable: true, Err: err}
}

// Terminalf is Terminal with a formatted message.
func Terminalf(kind Kind, format string, args ...interface{}) *Fault {
	return Terminal(kind, fmt.Errorf(format, args...))
}

// KindOf returns the fault kind of err, or "" when err carries no Fault.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

// IsRetryable reports whether err is worth a job-level retry. Errors that
// carry no Fault (context deadlines, transport failures) are treated as
// transient.
func IsRetryable(err error) bool {
	var f *Fault
	if errors.As(err, &f) {
		return f.Retryable
	}
	return true
}
