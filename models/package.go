package models

import (
	"strings"
	"time"
)

type PackageStatus string

const (
	StatusNotReceived PackageStatus = "NOT_RECEIVED"
	StatusInWarehouse PackageStatus = "IN_WAREHOUSE"
	StatusInTransit   PackageStatus = "IN_TRANSIT"
	StatusDelivered   PackageStatus = "DELIVERED"
	StatusReturned    PackageStatus = "RETURNED"
	StatusRetained    PackageStatus = "RETAINED"
)

// Valid reports whether s is one of the known lifecycle states.
func (s PackageStatus) Valid() bool {
	switch s {
	case StatusNotReceived, StatusInWarehouse, StatusInTransit,
		StatusDelivered, StatusReturned, StatusRetained:
		return true
	}
	return false
}

// Package is a single trackable parcel. ParentID and PullID are weak
// references owned by the entity store; a nil value means "not set".
type Package struct {
	ID                string        `json:"id" bson:"_id" db:"id"`
	GuideNumber       string        `json:"guide_number" bson:"guide_number" db:"guide_number"`
	NroMaster         string        `json:"nro_master,omitempty" bson:"nro_master,omitempty" db:"nro_master"`
	Name              string        `json:"name" bson:"name" db:"name"`
	Address           string        `json:"address" bson:"address" db:"address"`
	City              string        `json:"city" bson:"city" db:"city"`
	Province          string        `json:"province" bson:"province" db:"province"`
	PhoneNumber       string        `json:"phone_number" bson:"phone_number" db:"phone_number"`
	Notes             string        `json:"notes,omitempty" bson:"notes,omitempty" db:"notes"`
	Hashtags          string        `json:"hashtags,omitempty" bson:"hashtags,omitempty" db:"hashtags"`
	Status            PackageStatus `json:"status" bson:"status" db:"status"`
	ParentID          *string       `json:"parent,omitempty" bson:"parent_id,omitempty" db:"parent_id"`
	PullID            *string       `json:"pull,omitempty" bson:"pull_id,omitempty" db:"pull_id"`
	Destiny           *string       `json:"destiny,omitempty" bson:"destiny,omitempty" db:"destiny"`
	TransportAgency   *AgencyRef    `json:"transport_agency,omitempty" bson:"transport_agency,omitempty" db:"transport_agency_id"`
	AgencyGuideNumber *string       `json:"agency_guide_number,omitempty" bson:"agency_guide_number,omitempty" db:"agency_guide_number"`
	CreatedAt         time.Time     `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt         *time.Time    `json:"updated_at,omitempty" bson:"updated_at,omitempty" db:"updated_at"`
}

// HasParent reports whether the package is currently a child.
func (p *Package) HasParent() bool {
	return p.ParentID != nil && *p.ParentID != ""
}

// HasPull reports whether the package is already bagged.
func (p *Package) HasPull() bool {
	return p.PullID != nil && *p.PullID != ""
}

// HashtagList returns the space-separated tokens of Hashtags that start with '#'.
func (p *Package) HashtagList() []string {
	var tags []string
	for _, tok := range strings.Fields(p.Hashtags) {
		if strings.HasPrefix(tok, "#") {
			tags = append(tags, tok)
		}
	}
	return tags
}

// AddHashtag appends tag (prefixed with '#' if needed) unless already present.
func (p *Package) AddHashtag(tag string) {
	if !strings.HasPrefix(tag, "#") {
		tag = "#" + tag
	}
	tags := p.HashtagList()
	for _, t := range tags {
		if t == tag {
			return
		}
	}
	p.Hashtags = strings.Join(append(tags, tag), " ")
}

// PackageFilter narrows ListPackages. Zero values mean "no constraint".
type PackageFilter struct {
	ParentID      *string
	WithoutParent bool
	WithoutPull   bool
	PullID        *string
	ExcludeIDs    []string
	Status        PackageStatus
	Limit         int
}

// Excludes reports whether id is in ExcludeIDs.
func (f PackageFilter) Excludes(id string) bool {
	for _, e := range f.ExcludeIDs {
		if e == id {
			return true
		}
	}
	return false
}

// Match applies the filter to a single package in memory.
func (f PackageFilter) Match(p *Package) bool {
	if f.ParentID != nil && (p.ParentID == nil || *p.ParentID != *f.ParentID) {
		return false
	}
	if f.WithoutParent && p.HasParent() {
		return false
	}
	if f.WithoutPull && p.HasPull() {
		return false
	}
	if f.PullID != nil && (p.PullID == nil || *p.PullID != *f.PullID) {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	return !f.Excludes(p.ID)
}

// Clone returns a deep copy so stores never hand out shared pointers.
func (p *Package) Clone() *Package {
	if p == nil {
		return nil
	}
	c := *p
	c.ParentID = cloneString(p.ParentID)
	c.PullID = cloneString(p.PullID)
	c.Destiny = cloneString(p.Destiny)
	c.AgencyGuideNumber = cloneString(p.AgencyGuideNumber)
	if p.TransportAgency != nil {
		a := *p.TransportAgency
		c.TransportAgency = &a
	}
	if p.UpdatedAt != nil {
		t := *p.UpdatedAt
		c.UpdatedAt = &t
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
