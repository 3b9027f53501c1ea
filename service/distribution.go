package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"parcelhub/distribution"
	"parcelhub/hierarchy"
	"parcelhub/models"
	"parcelhub/repository"
)

// ReasonInPull marks a package skipped because it is already bagged.
const ReasonInPull hierarchy.Reason = "already_in_pull"

// DistributionPreview is the allocator's answer for a selection, computed
// without touching the store.
type DistributionPreview struct {
	Feasible   bool                    `json:"feasible"`
	Requested  int                     `json:"requested"`
	Capacity   int                     `json:"capacity"`
	Plans      []distribution.PullPlan `json:"plans"`
	Unassigned []string                `json:"unassigned"`
}

// PreviewDistribution validates the configuration and returns the plan the
// automatic flow would apply. Overflow is reported, not refused.
func (s *ShipmentService) PreviewDistribution(packageIDs []string, configs []distribution.PullConfig) (*DistributionPreview, error) {
	if err := distribution.ValidateConfigs(configs); err != nil {
		return nil, err
	}
	res := distribution.Distribute(packageIDs, configs)
	requested := distribution.DistinctCount(packageIDs)
	return &DistributionPreview{
		Feasible:   distribution.CheckCapacity(requested, configs) == nil,
		Requested:  requested,
		Capacity:   distribution.Capacity(configs),
		Plans:      res.Plans(configs),
		Unassigned: res.Unassigned,
	}, nil
}

// BatchHeader carries the batch level attributes shared by both flows.
type BatchHeader struct {
	Destiny         string            `json:"destiny"`
	TransportAgency *models.AgencyRef `json:"transport_agency"`
	GuideNumber     *string           `json:"guide_number"`
}

type AutoDistributeRequest struct {
	BatchHeader
	PackageIDs  []string                  `json:"package_ids"`
	PullsConfig []distribution.PullConfig `json:"pulls_config"`
}

type ManualBatchRequest struct {
	BatchHeader
	Pulls []models.PullDraft `json:"pulls"`
}

type BatchResult struct {
	Batch      *models.Batch  `json:"batch"`
	Pulls      []*models.Pull `json:"pulls"`
	Unassigned []string       `json:"unassigned,omitempty"`
}

// CreateBatchAutoDistribute allocates the selected packages across the
// configured pulls and persists the batch. Only configurations that receive
// packages become pulls.
func (s *ShipmentService) CreateBatchAutoDistribute(ctx context.Context, req AutoDistributeRequest) (*BatchResult, error) {
	batch, err := s.batchFromHeader(ctx, req.BatchHeader)
	if err != nil {
		return nil, err
	}
	if len(req.PackageIDs) == 0 {
		return nil, Invalid("at least one package is required")
	}
	if err := checkDistinct(req.PackageIDs); err != nil {
		return nil, err
	}
	if err := distribution.ValidateConfigs(req.PullsConfig); err != nil {
		return nil, err
	}
	if err := distribution.CheckCapacity(len(req.PackageIDs), req.PullsConfig); err != nil {
		return nil, err
	}
	if err := s.checkPackagesFree(ctx, req.PackageIDs); err != nil {
		return nil, err
	}

	res := distribution.Distribute(req.PackageIDs, req.PullsConfig)
	pulls, err := s.Logistics.CreateBatchWithPulls(ctx, batch, res.Drafts(req.PullsConfig))
	if err != nil {
		return nil, err
	}

	s.Log.Info("batch created by distribution",
		zap.String("batch_id", batch.ID),
		zap.Int("packages", res.Assigned()),
		zap.Int("pulls", len(pulls)),
		zap.Int("configs", len(req.PullsConfig)))
	return &BatchResult{Batch: batch, Pulls: pulls, Unassigned: res.Unassigned}, nil
}

// CreateBatchWithPulls persists a batch whose pulls were composed by hand.
func (s *ShipmentService) CreateBatchWithPulls(ctx context.Context, req ManualBatchRequest) (*BatchResult, error) {
	batch, err := s.batchFromHeader(ctx, req.BatchHeader)
	if err != nil {
		return nil, err
	}
	if len(req.Pulls) == 0 {
		return nil, Invalid("at least one pull is required")
	}

	var all []string
	for i, d := range req.Pulls {
		if d.Size == "" {
			return nil, Invalid("pulls[%d]: size is required", i)
		}
		if !d.Size.Valid() {
			return nil, Invalid("pulls[%d]: unknown size %q", i, d.Size)
		}
		all = append(all, d.PackageIDs...)
	}
	if err := checkDistinct(all); err != nil {
		return nil, err
	}
	if err := s.checkPackagesFree(ctx, all); err != nil {
		return nil, err
	}

	pulls, err := s.Logistics.CreateBatchWithPulls(ctx, batch, req.Pulls)
	if err != nil {
		return nil, err
	}

	s.Log.Info("batch created",
		zap.String("batch_id", batch.ID),
		zap.Int("packages", len(all)),
		zap.Int("pulls", len(pulls)))
	return &BatchResult{Batch: batch, Pulls: pulls}, nil
}

type PullRequest struct {
	CommonDestiny   string            `json:"common_destiny"`
	Size            models.PullSize   `json:"size"`
	TransportAgency *models.AgencyRef `json:"transport_agency"`
	GuideNumber     *string           `json:"guide_number"`
	PackageIDs      []string          `json:"package_ids"`
}

type PullResult struct {
	Pull     *models.Pull `json:"pull"`
	Assigned []string     `json:"assigned"`
	Skipped  []Failure    `json:"skipped"`
}

// CreatePullWithPackages creates a standalone pull and bags the listed
// packages that are not in a pull yet. The rest are reported as skipped.
func (s *ShipmentService) CreatePullWithPackages(ctx context.Context, req PullRequest) (*PullResult, error) {
	if strings.TrimSpace(req.CommonDestiny) == "" {
		return nil, Invalid("common_destiny is required")
	}
	if req.Size == "" {
		return nil, Invalid("size is required")
	}
	if !req.Size.Valid() {
		return nil, Invalid("unknown size %q", req.Size)
	}
	agency, err := s.resolveAgency(ctx, req.TransportAgency)
	if err != nil {
		return nil, err
	}

	found, err := s.Packages.GetPackagesByIDs(ctx, req.PackageIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Package, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	result := &PullResult{Assigned: []string{}, Skipped: []Failure{}}
	seen := make(map[string]struct{}, len(req.PackageIDs))
	for _, id := range req.PackageIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		p, ok := byID[id]
		switch {
		case !ok:
			result.Skipped = append(result.Skipped, failure(id, hierarchy.ReasonNotFound))
		case p.HasPull():
			result.Skipped = append(result.Skipped, Failure{ID: id, Reason: ReasonInPull, Message: "package is already in a pull"})
		default:
			result.Assigned = append(result.Assigned, id)
		}
	}

	pull := &models.Pull{
		CommonDestiny:   strings.TrimSpace(req.CommonDestiny),
		Size:            req.Size,
		TransportAgency: agency,
		GuideNumber:     req.GuideNumber,
	}
	if err := s.Logistics.CreatePull(ctx, pull); err != nil {
		return nil, err
	}
	if len(result.Assigned) > 0 {
		if err := s.Logistics.BulkSetPackagePull(ctx, pull.ID, result.Assigned); err != nil {
			return nil, err
		}
	}
	pull.PackageCount = len(result.Assigned)
	result.Pull = pull

	s.Log.Info("pull created",
		zap.String("pull_id", pull.ID),
		zap.Int("assigned", len(result.Assigned)),
		zap.Int("skipped", len(result.Skipped)))
	return result, nil
}

func (s *ShipmentService) batchFromHeader(ctx context.Context, h BatchHeader) (*models.Batch, error) {
	destiny := strings.TrimSpace(h.Destiny)
	if destiny == "" {
		return nil, Invalid("destiny is required")
	}
	agency, err := s.resolveAgency(ctx, h.TransportAgency)
	if err != nil {
		return nil, err
	}
	return &models.Batch{Destiny: destiny, TransportAgency: agency, GuideNumber: h.GuideNumber}, nil
}

// resolveAgency checks that a referenced agency exists and fills its name.
func (s *ShipmentService) resolveAgency(ctx context.Context, ref *models.AgencyRef) (*models.AgencyRef, error) {
	ref = models.NormalizeAgency(ref)
	if ref == nil {
		return nil, nil
	}
	agency, err := s.Logistics.GetAgency(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	if agency == nil {
		return nil, notFound("transport agency", ref.ID)
	}
	return agency.Ref(), nil
}

// checkPackagesFree requires every id to exist and to be outside any pull.
func (s *ShipmentService) checkPackagesFree(ctx context.Context, ids []string) error {
	found, err := s.Packages.GetPackagesByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[string]*models.Package, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	var missing, bagged []string
	for _, id := range ids {
		p, ok := byID[id]
		switch {
		case !ok:
			missing = append(missing, id)
		case p.HasPull():
			bagged = append(bagged, p.GuideNumber)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("packages %s: %w", strings.Join(missing, ", "), ErrNotFound)
	}
	if len(bagged) > 0 {
		return fmt.Errorf("%w: %s", repository.ErrPackageInPull, strings.Join(bagged, ", "))
	}
	return nil
}

func checkDistinct(ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for i, id := range ids {
		if strings.TrimSpace(id) == "" {
			return Invalid("package id %d is empty", i)
		}
		if _, dup := seen[id]; dup {
			return Invalid("package %s is listed more than once", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
