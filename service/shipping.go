package service

import (
	"context"

	"parcelhub/attributes"
	"parcelhub/models"
)

// PackageShipping is the effective shipping view of one package.
type PackageShipping struct {
	Package      *models.Package              `json:"package"`
	Pull         *models.Pull                 `json:"pull,omitempty"`
	Batch        *models.Batch                `json:"batch,omitempty"`
	ShipmentType attributes.ShipmentType      `json:"shipment_type"`
	Effective    attributes.Effective         `json:"effective"`
	DataSource   map[string]attributes.Source `json:"data_source"`
}

// EffectiveAttributes reads the package, its pull and the pull's batch and
// resolves destination, agency and guide number.
func (s *ShipmentService) EffectiveAttributes(ctx context.Context, packageID string) (*PackageShipping, error) {
	pkg, err := s.GetPackage(ctx, packageID)
	if err != nil {
		return nil, err
	}

	var pull *models.Pull
	var batch *models.Batch
	if pkg.HasPull() {
		if pull, err = s.Logistics.GetPull(ctx, *pkg.PullID); err != nil {
			return nil, err
		}
	}
	if pull != nil && pull.BatchID != nil && *pull.BatchID != "" {
		if batch, err = s.Logistics.GetBatch(ctx, *pull.BatchID); err != nil {
			return nil, err
		}
	}

	eff := attributes.ResolvePackage(pkg, pull, batch)
	if a := eff.Agency.Value; a != nil && a.Name == "" {
		agency, err := s.Logistics.GetAgency(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		if agency != nil {
			a.Name = agency.Name
		}
	}

	return &PackageShipping{
		Package:      pkg,
		Pull:         pull,
		Batch:        batch,
		ShipmentType: attributes.ClassifyShipment(pkg, pull),
		Effective:    eff,
		DataSource:   eff.DataSource(),
	}, nil
}
