package attributes

import (
	"strings"

	"parcelhub/models"
)

// FromPackage extracts the package's own overrides.
func FromPackage(p *models.Package) Values {
	if p == nil {
		return Values{}
	}
	return Values{
		Destiny:     clean(p.Destiny),
		Agency:      models.NormalizeAgency(p.TransportAgency),
		GuideNumber: clean(p.AgencyGuideNumber),
	}
}

func FromPull(p *models.Pull) Values {
	if p == nil {
		return Values{}
	}
	return Values{
		Destiny:     cleanString(p.CommonDestiny),
		Agency:      models.NormalizeAgency(p.TransportAgency),
		GuideNumber: clean(p.GuideNumber),
	}
}

func FromBatch(b *models.Batch) Values {
	if b == nil {
		return Values{}
	}
	return Values{
		Destiny:     cleanString(b.Destiny),
		Agency:      models.NormalizeAgency(b.TransportAgency),
		GuideNumber: clean(b.GuideNumber),
	}
}

func clean(s *string) *string {
	if s == nil {
		return nil
	}
	return cleanString(*s)
}

func cleanString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

type ShipmentType string

const (
	ShipmentUnassigned ShipmentType = "unassigned"
	ShipmentIndividual ShipmentType = "individual"
	ShipmentPull       ShipmentType = "pull"
	ShipmentBatch      ShipmentType = "batch"
)

// ClassifyShipment reports how a package travels: inside a batch, inside a
// standalone pull, on its own with an agency, or not yet assigned.
func ClassifyShipment(p *models.Package, pull *models.Pull) ShipmentType {
	switch {
	case pull != nil && pull.BatchID != nil && *pull.BatchID != "":
		return ShipmentBatch
	case pull != nil:
		return ShipmentPull
	case p != nil && !p.TransportAgency.IsZero():
		return ShipmentIndividual
	default:
		return ShipmentUnassigned
	}
}
