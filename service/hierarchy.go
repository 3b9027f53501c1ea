package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"parcelhub/hierarchy"
	"parcelhub/models"
	"parcelhub/repository"
)

// maxChildSuffix is the largest n tried for a generated "-H{n}" guide.
const maxChildSuffix = 10000

// Failure is one item of a multi-item operation that was not applied.
type Failure struct {
	ID      string           `json:"id"`
	Reason  hierarchy.Reason `json:"reason"`
	Message string           `json:"message"`
}

func failure(id string, reason hierarchy.Reason) Failure {
	return Failure{ID: id, Reason: reason, Message: reason.Message()}
}

// AssociationReport is the per-item outcome of AssociateChildren. Rejected
// items were refused by validation, Failed items by the store.
type AssociationReport struct {
	ParentID   string            `json:"parent_id"`
	Associated []*models.Package `json:"associated"`
	Rejected   []Failure         `json:"rejected"`
	Failed     []Failure         `json:"failed"`
}

// AssociateChildren makes parentID the parent of every acceptable child and
// reports the rest. Partial success is a normal result.
func (s *ShipmentService) AssociateChildren(ctx context.Context, parentID string, childIDs []string) (*AssociationReport, error) {
	if len(childIDs) == 0 {
		return nil, Invalid("child_ids must not be empty")
	}
	for i, id := range childIDs {
		if strings.TrimSpace(id) == "" {
			return nil, Invalid("child_ids[%d] is empty", i)
		}
	}
	parent, err := s.GetPackage(ctx, parentID)
	if err != nil {
		return nil, err
	}

	found, err := s.Packages.GetPackagesByIDs(ctx, childIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Package, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	report := &AssociationReport{ParentID: parent.ID, Associated: []*models.Package{}, Rejected: []Failure{}, Failed: []Failure{}}
	candidates := make([]*models.Package, 0, len(childIDs))
	for _, id := range childIDs {
		if p, ok := byID[id]; ok {
			candidates = append(candidates, p)
			continue
		}
		report.Rejected = append(report.Rejected, failure(id, hierarchy.ReasonNotFound))
	}

	snap := hierarchy.NewSnapshot(parent)
	snap.Add(found...)
	var cls hierarchy.Classification
	err = s.validate(ctx, snap, func() (err error) {
		cls, err = hierarchy.CanAssociateChildren(snap, parent, candidates)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, r := range cls.Rejected {
		report.Rejected = append(report.Rejected, failure(r.Candidate.ID, r.Reason))
	}

	updated := make([]*models.Package, len(cls.Allowed))
	errs := make([]error, len(cls.Allowed))
	var g errgroup.Group
	g.SetLimit(s.Concurrency)
	for i, child := range cls.Allowed {
		g.Go(func() error {
			updated[i], errs[i] = s.Packages.UpdatePackageParent(ctx, child.ID, &parent.ID)
			return nil
		})
	}
	_ = g.Wait()

	for i, child := range cls.Allowed {
		switch err := errs[i]; {
		case err == nil:
			report.Associated = append(report.Associated, updated[i])
		case repository.MutationReason(err) != "":
			report.Rejected = append(report.Rejected, failure(child.ID, repository.MutationReason(err)))
		default:
			s.Log.Warn("parent update failed",
				zap.String("package_id", child.ID),
				zap.String("parent_id", parent.ID),
				zap.Error(err))
			report.Failed = append(report.Failed, Failure{ID: child.ID, Reason: ReasonBoundaryFailure, Message: "could not update package"})
		}
	}

	s.Log.Info("children associated",
		zap.String("parent_id", parent.ID),
		zap.Int("requested", len(childIDs)),
		zap.Int("associated", len(report.Associated)),
		zap.Int("rejected", len(report.Rejected)),
		zap.Int("failed", len(report.Failed)))
	return report, nil
}

// DetachChild clears the parent of childID. Detaching a root is a no-op.
func (s *ShipmentService) DetachChild(ctx context.Context, childID string) (*models.Package, error) {
	child, err := s.GetPackage(ctx, childID)
	if err != nil {
		return nil, err
	}
	if !child.HasParent() || !hierarchy.CanDetach(child) {
		return child, nil
	}
	return s.Packages.UpdatePackageParent(ctx, child.ID, nil)
}

// SetParent is the single-edge edit. A nil parentID detaches.
func (s *ShipmentService) SetParent(ctx context.Context, id string, parentID *string) (*models.Package, error) {
	if parentID == nil || *parentID == "" {
		return s.DetachChild(ctx, id)
	}
	node, err := s.GetPackage(ctx, id)
	if err != nil {
		return nil, err
	}
	parent, err := s.GetPackage(ctx, *parentID)
	if err != nil {
		return nil, err
	}

	snap := hierarchy.NewSnapshot(node, parent)
	var d hierarchy.Decision
	err = s.validate(ctx, snap, func() (err error) {
		d, err = hierarchy.CanSetParent(snap, node, parent)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, &RejectionError{ID: node.ID, Reason: d.Reason}
	}

	updated, err := s.Packages.UpdatePackageParent(ctx, node.ID, &parent.ID)
	if reason := repository.MutationReason(err); reason != "" && reason != hierarchy.ReasonNotFound {
		return nil, &RejectionError{ID: node.ID, Reason: reason}
	}
	return updated, err
}

// ChildDraft is the input of CreateChild.
type ChildDraft struct {
	GuideNumber       string               `json:"guide_number"`
	NroMaster         string               `json:"nro_master"`
	Name              string               `json:"name"`
	Address           string               `json:"address"`
	City              string               `json:"city"`
	Province          string               `json:"province"`
	PhoneNumber       string               `json:"phone_number"`
	Notes             string               `json:"notes"`
	Hashtags          string               `json:"hashtags"`
	Status            models.PackageStatus `json:"status"`
	Destiny           *string              `json:"destiny"`
	TransportAgency   *models.AgencyRef    `json:"transport_agency"`
	AgencyGuideNumber *string              `json:"agency_guide_number"`
}

// CreateChild creates a new package directly under parentID. City and
// province default to the parent's; a blank guide number is generated as
// "{parent guide}-H{n}" with the first free n.
func (s *ShipmentService) CreateChild(ctx context.Context, parentID string, draft ChildDraft) (*models.Package, error) {
	parent, err := s.GetPackage(ctx, parentID)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(draft.City) == "" {
		draft.City = parent.City
	}
	if strings.TrimSpace(draft.Province) == "" {
		draft.Province = parent.Province
	}
	required := []struct{ name, value string }{
		{"name", draft.Name},
		{"address", draft.Address},
		{"city", draft.City},
		{"province", draft.Province},
		{"phone_number", draft.PhoneNumber},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return nil, Invalid("field %s is required", f.name)
		}
	}
	if draft.Status == "" {
		draft.Status = models.StatusNotReceived
	}
	if !draft.Status.Valid() {
		return nil, Invalid("unknown status %q", draft.Status)
	}

	guide := strings.TrimSpace(draft.GuideNumber)
	if guide == "" {
		if guide, err = s.nextChildGuide(ctx, parent.GuideNumber); err != nil {
			return nil, err
		}
	} else if exists, err := s.Packages.GuideNumberExists(ctx, guide); err != nil {
		return nil, err
	} else if exists {
		return nil, Invalid("guide number %s already exists", guide)
	}

	pid := parent.ID
	child := &models.Package{
		GuideNumber:       guide,
		NroMaster:         strings.TrimSpace(draft.NroMaster),
		Name:              strings.TrimSpace(draft.Name),
		Address:           strings.TrimSpace(draft.Address),
		City:              strings.TrimSpace(draft.City),
		Province:          strings.TrimSpace(draft.Province),
		PhoneNumber:       strings.TrimSpace(draft.PhoneNumber),
		Notes:             draft.Notes,
		Hashtags:          draft.Hashtags,
		Status:            draft.Status,
		ParentID:          &pid,
		Destiny:           draft.Destiny,
		TransportAgency:   models.NormalizeAgency(draft.TransportAgency),
		AgencyGuideNumber: draft.AgencyGuideNumber,
	}
	if err := s.Packages.CreatePackage(ctx, child); err != nil {
		if errors.Is(err, repository.ErrDuplicateGuide) {
			return nil, Invalid("guide number %s already exists", guide)
		}
		return nil, err
	}

	s.Log.Info("child package created",
		zap.String("parent_id", parent.ID),
		zap.String("guide_number", child.GuideNumber))
	return child, nil
}

func (s *ShipmentService) nextChildGuide(ctx context.Context, base string) (string, error) {
	for n := 1; n <= maxChildSuffix; n++ {
		guide := fmt.Sprintf("%s-H%d", base, n)
		exists, err := s.Packages.GuideNumberExists(ctx, guide)
		if err != nil {
			return "", err
		}
		if !exists {
			return guide, nil
		}
	}
	return "", fmt.Errorf("no free child guide number for %s", base)
}

// Migration is the result of MigrateGuideNumber.
type Migration struct {
	NewParent  *models.Package `json:"new_parent"`
	OldPackage *models.Package `json:"old_package"`
}

// MigrateGuideNumber moves a package to a new guide number by creating a
// new root package that carries the new guide and the same data, and making
// the old package its child.
func (s *ShipmentService) MigrateGuideNumber(ctx context.Context, id, newGuide string) (*Migration, error) {
	newGuide = strings.TrimSpace(newGuide)
	if newGuide == "" {
		return nil, Invalid("new_guide_number is required")
	}
	pkg, err := s.GetPackage(ctx, id)
	if err != nil {
		return nil, err
	}
	if pkg.HasParent() {
		return nil, Invalid("package %s is a child; detach it before migrating", pkg.GuideNumber)
	}

	exists, err := s.Packages.GuideNumberExists(ctx, newGuide)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, Invalid("guide number %s already exists", newGuide)
	}
	kids, err := s.Packages.ListPackages(ctx, models.PackageFilter{ParentID: &pkg.ID, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(kids) > 0 {
		return nil, Invalid("package %s has children; migrate or detach them first", pkg.GuideNumber)
	}

	parent := pkg.Clone()
	parent.ID = ""
	parent.GuideNumber = newGuide
	parent.ParentID = nil
	parent.UpdatedAt = nil
	parent.CreatedAt = time.Time{}
	old, err := s.Packages.InsertParent(ctx, parent, pkg.ID)
	switch {
	case errors.Is(err, repository.ErrHasChildren):
		return nil, Invalid("package %s has children; migrate or detach them first", pkg.GuideNumber)
	case errors.Is(err, repository.ErrAlreadyHasParent):
		return nil, Invalid("package %s is a child; detach it before migrating", pkg.GuideNumber)
	case errors.Is(err, repository.ErrDuplicateGuide):
		return nil, Invalid("guide number %s already exists", newGuide)
	case errors.Is(err, repository.ErrNotFound):
		return nil, notFound("package", id)
	case err != nil:
		return nil, err
	}

	s.Log.Info("guide number migrated",
		zap.String("from", pkg.GuideNumber),
		zap.String("to", newGuide))
	return &Migration{NewParent: parent, OldPackage: old}, nil
}

// Children lists the direct children of id.
func (s *ShipmentService) Children(ctx context.Context, id string) ([]*models.Package, error) {
	p, err := s.GetPackage(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Packages.ListPackages(ctx, models.PackageFilter{ParentID: &p.ID})
}

// Descendants lists every package below id, breadth first.
func (s *ShipmentService) Descendants(ctx context.Context, id string) ([]*models.Package, error) {
	root, err := s.GetPackage(ctx, id)
	if err != nil {
		return nil, err
	}

	snap := hierarchy.NewSnapshot(root)
	seen := map[string]struct{}{root.ID: {}}
	frontier := []string{root.ID}
	for len(frontier) > 0 {
		var next []string
		for _, pid := range frontier {
			kids, err := s.Packages.ListPackages(ctx, models.PackageFilter{ParentID: &pid})
			if err != nil {
				return nil, err
			}
			for _, k := range kids {
				if _, ok := seen[k.ID]; ok {
					continue
				}
				seen[k.ID] = struct{}{}
				snap.Add(k)
				next = append(next, k.ID)
			}
		}
		frontier = next
	}

	out := hierarchy.Descendants(snap, root.ID)
	if out == nil {
		out = []*models.Package{}
	}
	return out, nil
}

// Ancestry describes where a package sits in its tree.
type Ancestry struct {
	Level     int               `json:"level"`
	Root      *models.Package   `json:"root"`
	Ancestors []*models.Package `json:"ancestors"`
}

// Ancestry returns the parent chain of id, nearest first.
func (s *ShipmentService) Ancestry(ctx context.Context, id string) (*Ancestry, error) {
	node, err := s.GetPackage(ctx, id)
	if err != nil {
		return nil, err
	}
	snap := hierarchy.NewSnapshot(node)
	var chain []*models.Package
	err = s.validate(ctx, snap, func() (err error) {
		chain, err = hierarchy.Ancestors(snap, node.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	// the snapshot now holds the full chain
	level, err := hierarchy.Level(snap, node.ID)
	if err != nil {
		return nil, err
	}
	root, err := hierarchy.Root(snap, node.ID)
	if err != nil {
		return nil, err
	}
	if chain == nil {
		chain = []*models.Package{}
	}
	return &Ancestry{Level: level, Root: root, Ancestors: chain}, nil
}
