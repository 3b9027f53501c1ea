// Package service orchestrates the hierarchy validator, the attribute
// resolver and the distribution allocator against an entity store.
//
// Validation always runs on a snapshot read just before the mutation. The
// store validates every parent edit again, so a stale snapshot surfaces as
// an ordinary per-item failure rather than corrupt data.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"parcelhub/hierarchy"
	"parcelhub/logger"
	"parcelhub/models"
	"parcelhub/repository"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = repository.ErrNotFound
)

// ReasonBoundaryFailure marks a per-item failure caused by the store
// itself (network, constraint, timeout) rather than by a rejection.
const ReasonBoundaryFailure hierarchy.Reason = "boundary_failure"

// maxContextFetches bounds how many missing ancestors are fetched while
// building a snapshot.
const maxContextFetches = 1000

// RejectionError is returned by single-edge operations when the edit is
// refused for an expected reason.
type RejectionError struct {
	ID     string
	Reason hierarchy.Reason
}

func (e *RejectionError) Error() string {
	return e.Reason.Message()
}

// Invalid wraps ErrInvalidRequest with a formatted detail.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidRequest}, args...)...)
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

type ShipmentService struct {
	Packages    repository.PackageRepository
	Logistics   repository.LogisticsRepository
	Log         *zap.Logger
	Concurrency int
}

func New(packages repository.PackageRepository, logistics repository.LogisticsRepository, log *zap.Logger, concurrency int) *ShipmentService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ShipmentService{
		Packages:    packages,
		Logistics:   logistics,
		Log:         logger.OrNop(log),
		Concurrency: concurrency,
	}
}

// GetPackage returns the package or an error wrapping ErrNotFound.
func (s *ShipmentService) GetPackage(ctx context.Context, id string) (*models.Package, error) {
	if id == "" {
		return nil, Invalid("package id is required")
	}
	p, err := s.Packages.GetPackage(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, notFound("package", id)
	}
	return p, nil
}

func (s *ShipmentService) ListPackages(ctx context.Context, filter models.PackageFilter) ([]*models.Package, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, Invalid("unknown status %q", filter.Status)
	}
	return s.Packages.ListPackages(ctx, filter)
}

func (s *ShipmentService) ListAgencies(ctx context.Context) ([]*models.TransportAgency, error) {
	return s.Logistics.ListAgencies(ctx)
}

func (s *ShipmentService) CreateAgency(ctx context.Context, a *models.TransportAgency) error {
	if a.Name == "" {
		return Invalid("agency name is required")
	}
	return s.Logistics.CreateAgency(ctx, a)
}

// validate runs check against snap, fetching any ancestor the validator
// reports as missing and trying again.
func (s *ShipmentService) validate(ctx context.Context, snap *hierarchy.Snapshot, check func() error) error {
	for fetched := 0; ; fetched++ {
		err := check()
		var missing *hierarchy.InsufficientContextError
		if !errors.As(err, &missing) {
			return err
		}
		if fetched >= maxContextFetches {
			return err
		}

		p, ferr := s.Packages.GetPackage(ctx, missing.MissingID)
		if ferr != nil {
			return ferr
		}
		if p == nil {
			return fmt.Errorf("dangling parent reference %s: %w", missing.MissingID, err)
		}
		snap.Add(p)
	}
}
