package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"parcelhub/hierarchy"
	"parcelhub/models"
)

// MemoryStore keeps every entity in process memory. It backs DB_TYPE=memory
// and the service tests. All returned entities are copies.
type MemoryStore struct {
	mu       sync.RWMutex
	packages map[string]*models.Package
	pulls    map[string]*models.Pull
	batches  map[string]*models.Batch
	agencies map[string]*models.TransportAgency
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		packages: make(map[string]*models.Package),
		pulls:    make(map[string]*models.Pull),
		batches:  make(map[string]*models.Batch),
		agencies: make(map[string]*models.TransportAgency),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) GetPackage(ctx context.Context, id string) (*models.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.packages[id].Clone(), nil
}

func (s *MemoryStore) GetPackagesByIDs(ctx context.Context, ids []string) ([]*models.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Package, 0, len(ids))
	for _, id := range uniqueIDs(ids) {
		if p, ok := s.packages[id]; ok {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

// ListPackages returns matches ordered by guide number.
func (s *MemoryStore) ListPackages(ctx context.Context, filter models.PackageFilter) ([]*models.Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Package
	for _, p := range s.packages {
		if filter.Match(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GuideNumber < out[j].GuideNumber })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) CreatePackage(ctx context.Context, p *models.Package) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, exists := s.packages[p.ID]; exists {
		return fmt.Errorf("package %s already exists", p.ID)
	}
	for _, other := range s.packages {
		if other.GuideNumber == p.GuideNumber {
			return ErrDuplicateGuide
		}
	}
	if p.HasParent() {
		if _, ok := s.packages[*p.ParentID]; !ok {
			return fmt.Errorf("parent %s: %w", *p.ParentID, ErrNotFound)
		}
	}
	if p.HasPull() {
		if _, ok := s.pulls[*p.PullID]; !ok {
			return fmt.Errorf("pull %s: %w", *p.PullID, ErrNotFound)
		}
	}
	if p.Status == "" {
		p.Status = models.StatusNotReceived
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.packages[p.ID] = p.Clone()
	return nil
}

func (s *MemoryStore) UpdatePackageParent(ctx context.Context, id string, parentID *string) (*models.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.packages[id]
	if !ok {
		return nil, fmt.Errorf("package %s: %w", id, ErrNotFound)
	}

	var parent *models.Package
	if parentID != nil && *parentID != "" {
		if parent, ok = s.packages[*parentID]; !ok {
			return nil, fmt.Errorf("parent %s: %w", *parentID, ErrNotFound)
		}
	}

	snap := hierarchy.NewSnapshot()
	for _, p := range s.packages {
		snap.Add(p)
	}
	if err := checkParentEdit(snap, node, parent); err != nil {
		return nil, err
	}

	now := s.now()
	if parent == nil {
		node.ParentID = nil
	} else {
		pid := parent.ID
		node.ParentID = &pid
	}
	node.UpdatedAt = &now
	return node.Clone(), nil
}

func (s *MemoryStore) InsertParent(ctx context.Context, parent *models.Package, childID string) (*models.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	child := s.packages[childID]
	if err := checkInsertParent(child, childID); err != nil {
		return nil, err
	}
	for _, p := range s.packages {
		if p.ParentID != nil && *p.ParentID == child.ID {
			return nil, fmt.Errorf("package %s: %w", child.GuideNumber, ErrHasChildren)
		}
		if p.GuideNumber == parent.GuideNumber {
			return nil, ErrDuplicateGuide
		}
	}

	now := s.now()
	prepareParent(parent, now)
	if _, exists := s.packages[parent.ID]; exists {
		return nil, fmt.Errorf("package %s already exists", parent.ID)
	}
	s.packages[parent.ID] = parent.Clone()

	pid := parent.ID
	child.ParentID = &pid
	child.UpdatedAt = &now
	return child.Clone(), nil
}

func (s *MemoryStore) GuideNumberExists(ctx context.Context, guide string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.packages {
		if p.GuideNumber == guide {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) GetPull(ctx context.Context, id string) (*models.Pull, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pull, ok := s.pulls[id]
	if !ok {
		return nil, nil
	}
	out := pull.Clone()
	out.PackageCount = s.countInPull(id)
	return out, nil
}

func (s *MemoryStore) GetBatch(ctx context.Context, id string) (*models.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batches[id].Clone(), nil
}

func (s *MemoryStore) GetAgency(ctx context.Context, id string) (*models.TransportAgency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.agencies[id]
	if !ok {
		return nil, nil
	}
	out := *a
	return &out, nil
}

func (s *MemoryStore) ListAgencies(ctx context.Context) ([]*models.TransportAgency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.TransportAgency, 0, len(s.agencies))
	for _, a := range s.agencies {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) CreateAgency(ctx context.Context, a *models.TransportAgency) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	cp := *a
	s.agencies[a.ID] = &cp
	return nil
}

func (s *MemoryStore) CreatePull(ctx context.Context, pull *models.Pull) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertPull(pull)
}

func (s *MemoryStore) BulkSetPackagePull(ctx context.Context, pullID string, packageIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pulls[pullID]; !ok {
		return fmt.Errorf("pull %s: %w", pullID, ErrNotFound)
	}
	ids := uniqueIDs(packageIDs)
	if err := s.checkBaggable(ids); err != nil {
		return err
	}
	s.bag(pullID, ids)
	return nil
}

func (s *MemoryStore) CreateBatchWithPulls(ctx context.Context, batch *models.Batch, drafts []models.PullDraft) ([]*models.Pull, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []string
	for _, d := range drafts {
		if !d.Size.Valid() {
			return nil, fmt.Errorf("invalid pull size %q", d.Size)
		}
		all = append(all, d.PackageIDs...)
	}
	if len(uniqueIDs(all)) != len(all) {
		return nil, fmt.Errorf("a package appears in more than one pull")
	}
	if err := s.checkBaggable(all); err != nil {
		return nil, err
	}

	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = s.now()
	}
	s.batches[batch.ID] = batch.Clone()

	pulls := make([]*models.Pull, 0, len(drafts))
	for _, d := range drafts {
		batchID := batch.ID
		pull := &models.Pull{
			CommonDestiny: batch.Destiny,
			Size:          d.Size,
			BatchID:       &batchID,
		}
		if err := s.insertPull(pull); err != nil {
			return nil, err
		}
		s.bag(pull.ID, d.PackageIDs)
		pull.PackageCount = len(d.PackageIDs)
		pulls = append(pulls, pull)
	}
	return pulls, nil
}

// Seed loads fixtures as-is, bypassing validation. Intended for tests and
// local demos only.
func (s *MemoryStore) Seed(pkgs []*models.Package, pulls []*models.Pull, batches []*models.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range pkgs {
		s.packages[p.ID] = p.Clone()
	}
	for _, p := range pulls {
		s.pulls[p.ID] = p.Clone()
	}
	for _, b := range batches {
		s.batches[b.ID] = b.Clone()
	}
}

func (s *MemoryStore) insertPull(pull *models.Pull) error {
	if !pull.Size.Valid() {
		return fmt.Errorf("invalid pull size %q", pull.Size)
	}
	if pull.BatchID != nil {
		if _, ok := s.batches[*pull.BatchID]; !ok {
			return fmt.Errorf("batch %s: %w", *pull.BatchID, ErrNotFound)
		}
	}
	if pull.ID == "" {
		pull.ID = uuid.NewString()
	}
	if pull.CreatedAt.IsZero() {
		pull.CreatedAt = s.now()
	}
	s.pulls[pull.ID] = pull.Clone()
	return nil
}

func (s *MemoryStore) checkBaggable(ids []string) error {
	for _, id := range ids {
		p, ok := s.packages[id]
		if !ok {
			return fmt.Errorf("package %s: %w", id, ErrNotFound)
		}
		if p.HasPull() {
			return fmt.Errorf("package %s: %w", p.GuideNumber, ErrPackageInPull)
		}
	}
	return nil
}

func (s *MemoryStore) bag(pullID string, ids []string) {
	now := s.now()
	for _, id := range ids {
		pid := pullID
		p := s.packages[id]
		p.PullID = &pid
		p.UpdatedAt = &now
	}
}

func (s *MemoryStore) countInPull(pullID string) int {
	n := 0
	for _, p := range s.packages {
		if p.PullID != nil && *p.PullID == pullID {
			n++
		}
	}
	return n
}
