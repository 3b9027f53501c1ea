package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type PullSize string

const (
	SizeSmall  PullSize = "SMALL"
	SizeMedium PullSize = "MEDIUM"
	SizeLarge  PullSize = "LARGE"
)

// legacy labels still sent by older clients
var legacySizes = map[string]PullSize{
	"PEQUENO": SizeSmall,
	"MEDIANO": SizeMedium,
	"GRANDE":  SizeLarge,
}

// ParsePullSize normalizes a size label, accepting the legacy spellings.
func ParsePullSize(s string) (PullSize, error) {
	label := strings.ToUpper(strings.TrimSpace(s))
	switch PullSize(label) {
	case SizeSmall, SizeMedium, SizeLarge:
		return PullSize(label), nil
	}
	if size, ok := legacySizes[label]; ok {
		return size, nil
	}
	if label == "" {
		return "", fmt.Errorf("pull size is required")
	}
	return "", fmt.Errorf("unknown pull size %q", s)
}

// Valid reports whether s is a canonical size.
func (s PullSize) Valid() bool {
	switch s {
	case SizeSmall, SizeMedium, SizeLarge:
		return true
	}
	return false
}

// UnmarshalJSON normalizes legacy labels. Unknown labels are kept as-is so
// that validation can report them with their index.
func (s *PullSize) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if size, err := ParsePullSize(raw); err == nil {
		*s = size
		return nil
	}
	*s = PullSize(strings.TrimSpace(raw))
	return nil
}

// Pull ("saca") is a bag of packages bound for a common destination.
// Membership is expressed only through Package.PullID.
type Pull struct {
	ID              string     `json:"id" bson:"_id" db:"id"`
	CommonDestiny   string     `json:"common_destiny" bson:"common_destiny" db:"common_destiny"`
	Size            PullSize   `json:"size" bson:"size" db:"size"`
	BatchID         *string    `json:"batch,omitempty" bson:"batch_id,omitempty" db:"batch_id"`
	TransportAgency *AgencyRef `json:"transport_agency,omitempty" bson:"transport_agency,omitempty" db:"transport_agency_id"`
	GuideNumber     *string    `json:"guide_number,omitempty" bson:"guide_number,omitempty" db:"guide_number"`
	PackageCount    int        `json:"package_count" bson:"-" db:"-"`
	CreatedAt       time.Time  `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty" bson:"updated_at,omitempty" db:"updated_at"`
}

// PullDraft describes a pull to be created inside a batch together with
// the packages it will hold.
type PullDraft struct {
	Size       PullSize `json:"size"`
	PackageIDs []string `json:"package_ids"`
}

func (p *Pull) Clone() *Pull {
	if p == nil {
		return nil
	}
	c := *p
	c.BatchID = cloneString(p.BatchID)
	c.GuideNumber = cloneString(p.GuideNumber)
	if p.TransportAgency != nil {
		a := *p.TransportAgency
		c.TransportAgency = &a
	}
	return &c
}
