package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"parcelhub/hierarchy"
	"parcelhub/models"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyHasParent = errors.New("already has parent")
	ErrSelfParent       = errors.New("package cannot be its own parent")
	ErrWouldCreateCycle = errors.New("would create cycle")
	ErrPackageInPull    = errors.New("package already assigned to a pull")
	ErrDuplicateGuide   = errors.New("guide number already exists")
	ErrHasChildren      = errors.New("package has children")
)

// PackageRepository stores packages and their parent references. Single
// reads return (nil, nil) when the package does not exist.
type PackageRepository interface {
	GetPackage(ctx context.Context, id string) (*models.Package, error)
	GetPackagesByIDs(ctx context.Context, ids []string) ([]*models.Package, error)
	ListPackages(ctx context.Context, filter models.PackageFilter) ([]*models.Package, error)
	CreatePackage(ctx context.Context, p *models.Package) error
	// UpdatePackageParent sets or clears (parentID == nil) the parent of id.
	// The edit is validated again against the stored hierarchy.
	UpdatePackageParent(ctx context.Context, id string, parentID *string) (*models.Package, error)
	GuideNumberExists(ctx context.Context, guide string) (bool, error)
	// InsertParent creates parent as a new root and moves childID under it
	// in one step. The child must be a root without children. Nothing is
	// written when any check fails.
	InsertParent(ctx context.Context, parent *models.Package, childID string) (*models.Package, error)
}

// LogisticsRepository stores pulls, batches and the agency catalog.
type LogisticsRepository interface {
	GetPull(ctx context.Context, id string) (*models.Pull, error)
	GetBatch(ctx context.Context, id string) (*models.Batch, error)
	GetAgency(ctx context.Context, id string) (*models.TransportAgency, error)
	ListAgencies(ctx context.Context) ([]*models.TransportAgency, error)
	CreateAgency(ctx context.Context, a *models.TransportAgency) error
	CreatePull(ctx context.Context, pull *models.Pull) error
	// BulkSetPackagePull bags every listed package into pullID. It fails as a
	// whole when any package is missing or already bagged.
	BulkSetPackagePull(ctx context.Context, pullID string, packageIDs []string) error
	// CreateBatchWithPulls creates the batch, one pull per draft and bags the
	// draft's packages, all or nothing.
	CreateBatchWithPulls(ctx context.Context, batch *models.Batch, drafts []models.PullDraft) ([]*models.Pull, error)
}

// Store is a complete entity store backend.
type Store interface {
	PackageRepository
	LogisticsRepository
}

// MutationReason maps a store error to the reason code reported per item.
// Errors that are not store rejections map to "".
func MutationReason(err error) hierarchy.Reason {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAlreadyHasParent):
		return hierarchy.ReasonAlreadyHasParent
	case errors.Is(err, ErrSelfParent):
		return hierarchy.ReasonSelfParent
	case errors.Is(err, ErrWouldCreateCycle):
		return hierarchy.ReasonCycle
	case errors.Is(err, ErrNotFound):
		return hierarchy.ReasonNotFound
	}
	return ""
}

// checkParentEdit re-validates a parent change against a snapshot the
// backend has loaded itself and converts the decision into a store error.
func checkParentEdit(snap *hierarchy.Snapshot, node, parent *models.Package) error {
	d, err := hierarchy.CanSetParent(snap, node, parent)
	if err != nil {
		return err
	}
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case hierarchy.ReasonSelfParent:
		return ErrSelfParent
	case hierarchy.ReasonAlreadyHasParent:
		return ErrAlreadyHasParent
	default:
		return ErrWouldCreateCycle
	}
}

// prepareParent fills the defaults of a package about to be inserted as a
// new root.
func prepareParent(p *models.Package, now time.Time) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = models.StatusNotReceived
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.ParentID = nil
}

func checkInsertParent(child *models.Package, childID string) error {
	if child == nil {
		return fmt.Errorf("package %s: %w", childID, ErrNotFound)
	}
	if child.HasParent() {
		return fmt.Errorf("package %s: %w", child.GuideNumber, ErrAlreadyHasParent)
	}
	return nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
