package hierarchy

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedInput      = errors.New("hierarchy: malformed input")
	ErrParentNotInSnapshot = errors.New("hierarchy: parent not found in snapshot")
	ErrInsufficientContext = errors.New("hierarchy: insufficient context")
)

// InsufficientContextError reports an ancestor that the snapshot does not
// contain. It matches ErrInsufficientContext with errors.Is.
type InsufficientContextError struct {
	MissingID string
}

func (e *InsufficientContextError) Error() string {
	return fmt.Sprintf("hierarchy: ancestor %s missing from snapshot", e.MissingID)
}

func (e *InsufficientContextError) Is(target error) bool {
	return target == ErrInsufficientContext
}

// Reason is the machine-readable code of an expected rejection.
type Reason string

const (
	ReasonSelfParent       Reason = "self_parent"
	ReasonAlreadyHasParent Reason = "already_has_parent"
	ReasonCycle            Reason = "would_create_cycle"
	ReasonCorrupt          Reason = "corrupt_hierarchy"
	ReasonDuplicate        Reason = "duplicate_candidate"
	ReasonNotFound         Reason = "not_found"
)

var reasonMessages = map[Reason]string{
	ReasonSelfParent:       "a package cannot be its own parent",
	ReasonAlreadyHasParent: "package already has a parent; detach it first",
	ReasonCycle:            "association would create a cycle in the hierarchy",
	ReasonCorrupt:          "existing hierarchy data contains a cycle",
	ReasonDuplicate:        "package was selected more than once",
	ReasonNotFound:         "package not found",
}

// Message returns the human-readable text shown for the reason.
func (r Reason) Message() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return string(r)
}
