package remote

import (
	"errors"
	"fmt"
)

// Kind splits remote failures into the two classes the coordinator
// cares about: Transient failures degrade the session to the local
// cache and are retried opportunistically; Rejected failures are
// surfaced to the caller and never retried.
type Kind int

const (
	// Transient covers connectivity failures, timeouts and server-side
	// unavailability (5xx, 408, 429).
	Transient Kind = iota
	// Rejected covers validation, authentication and authorization
	// failures (remaining 4xx). Retrying cannot fix these.
	Rejected
)

func (k Kind) String() string {
	if k == Rejected {
		return "rejected"
	}
	return "transient"
}

// Error is the failure type returned by every Client call.
type Error struct {
	Kind   Kind
	Status int // HTTP status, 0 for transport-level failures
	Op     string
	Detail string
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("remote %s: %s: %s", e.Op, e.Kind, e.Detail)
	}
	return fmt.Sprintf("remote %s: %s (status %d): %s", e.Op, e.Kind, e.Status, e.Detail)
}

// IsTransient reports whether err is a remote failure that may succeed
// on retry.
func IsTransient(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == Transient
}

// IsRejected reports whether err is a remote failure that must be
// surfaced rather than retried.
func IsRejected(err error) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == Rejected
}
