// Package hierarchy validates parent/child edits between packages against a
// snapshot fetched from the entity store.
//
// Callers must supply the complete ancestor closure of every package that is
// checked. When a walk reaches an id that is not in the snapshot the
// validator returns an *InsufficientContextError naming that id instead of
// assuming the missing package is a root; the caller is expected to fetch it,
// add it to the snapshot and validate again.
package hierarchy

import "parcelhub/models"

// Snapshot is a read-only view of packages keyed by id.
type Snapshot struct {
	packages map[string]*models.Package
}

// NewSnapshot indexes pkgs by id. Nil packages and empty ids are ignored;
// later duplicates replace earlier ones.
func NewSnapshot(pkgs ...*models.Package) *Snapshot {
	s := &Snapshot{packages: make(map[string]*models.Package, len(pkgs))}
	s.Add(pkgs...)
	return s
}

// Add merges more packages into the snapshot.
func (s *Snapshot) Add(pkgs ...*models.Package) {
	for _, p := range pkgs {
		if p == nil || p.ID == "" {
			continue
		}
		s.packages[p.ID] = p
	}
}

// Get returns the package with the given id.
func (s *Snapshot) Get(id string) (*models.Package, bool) {
	if s == nil {
		return nil, false
	}
	p, ok := s.packages[id]
	return p, ok
}

// Len returns the number of packages in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.packages)
}

func parentOf(p *models.Package) string {
	if p == nil || p.ParentID == nil {
		return ""
	}
	return *p.ParentID
}
