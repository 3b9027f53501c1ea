package hierarchy

import (
	"fmt"

	"parcelhub/models"
)

// Rejection pairs a candidate with the reason it cannot be associated.
type Rejection struct {
	Candidate *models.Package `json:"candidate"`
	Reason    Reason          `json:"reason"`
}

// Classification is the outcome of a bulk association check. Allowed keeps
// the order in which candidates were given.
type Classification struct {
	Allowed  []*models.Package `json:"allowed"`
	Rejected []Rejection       `json:"rejected"`
}

// Decision is the outcome of a single-edge check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason,omitempty"`
}

// CanAssociateChildren classifies every candidate for becoming a child of
// parent. Expected rejections are returned as data; an error is returned
// only for malformed input or when the snapshot lacks an ancestor needed to
// decide (see InsufficientContextError).
func CanAssociateChildren(snap *Snapshot, parent *models.Package, candidates []*models.Package) (Classification, error) {
	if parent == nil || parent.ID == "" {
		return Classification{}, fmt.Errorf("%w: parent has no id", ErrMalformedInput)
	}
	current, ok := snap.Get(parent.ID)
	if !ok {
		return Classification{}, fmt.Errorf("%w: %s", ErrParentNotInSnapshot, parent.ID)
	}
	for i, c := range candidates {
		if c == nil || c.ID == "" {
			return Classification{}, fmt.Errorf("%w: candidate %d has no id", ErrMalformedInput, i)
		}
	}

	var out Classification
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c.ID]; dup {
			out.Rejected = append(out.Rejected, Rejection{Candidate: c, Reason: ReasonDuplicate})
			continue
		}
		seen[c.ID] = struct{}{}

		reason, err := check(snap, current, c)
		if err != nil {
			return Classification{}, err
		}
		if reason != "" {
			out.Rejected = append(out.Rejected, Rejection{Candidate: c, Reason: reason})
			continue
		}
		out.Allowed = append(out.Allowed, c)
	}
	return out, nil
}

// CanDetach reports whether child may have its parent cleared. Clearing a
// parent can never create a cycle, so it is always legal.
func CanDetach(child *models.Package) bool {
	return true
}

// CanSetParent is the single-edge variant of CanAssociateChildren used for
// inline edits. A nil newParent means detach. newParent does not have to be
// in the snapshot, but all of its ancestors do.
func CanSetParent(snap *Snapshot, node, newParent *models.Package) (Decision, error) {
	if node == nil || node.ID == "" {
		return Decision{}, fmt.Errorf("%w: package has no id", ErrMalformedInput)
	}
	if newParent == nil {
		return Decision{Allowed: CanDetach(node)}, nil
	}
	if newParent.ID == "" {
		return Decision{}, fmt.Errorf("%w: parent has no id", ErrMalformedInput)
	}
	if current, ok := snap.Get(newParent.ID); ok {
		newParent = current
	}

	reason, err := check(snap, newParent, node)
	if err != nil {
		return Decision{}, err
	}
	if reason != "" {
		return Decision{Allowed: false, Reason: reason}, nil
	}
	return Decision{Allowed: true}, nil
}

// check applies the rules in a fixed order: self, already parented, cycle.
func check(snap *Snapshot, parent, candidate *models.Package) (Reason, error) {
	if candidate.ID == parent.ID {
		return ReasonSelfParent, nil
	}
	if p := parentOf(candidate); p != "" && p != parent.ID {
		return ReasonAlreadyHasParent, nil
	}
	return walkFor(snap, parent, candidate.ID)
}

// walkFor climbs from start towards the root and reports ReasonCycle when
// target is met, i.e. when start is a descendant of target.
func walkFor(snap *Snapshot, start *models.Package, target string) (Reason, error) {
	visited := map[string]struct{}{start.ID: {}}
	next := parentOf(start)
	for next != "" {
		if next == target {
			return ReasonCycle, nil
		}
		if _, seen := visited[next]; seen {
			return ReasonCorrupt, nil
		}
		visited[next] = struct{}{}

		p, ok := snap.Get(next)
		if !ok {
			return "", &InsufficientContextError{MissingID: next}
		}
		next = parentOf(p)
	}
	return "", nil
}
