package models

import "time"

// Batch ("lote") groups pulls and sits at the top of the inheritance chain.
type Batch struct {
	ID              string     `json:"id" bson:"_id" db:"id"`
	Destiny         string     `json:"destiny" bson:"destiny" db:"destiny"`
	TransportAgency *AgencyRef `json:"transport_agency,omitempty" bson:"transport_agency,omitempty" db:"transport_agency_id"`
	GuideNumber     *string    `json:"guide_number,omitempty" bson:"guide_number,omitempty" db:"guide_number"`
	CreatedAt       time.Time  `json:"created_at" bson:"created_at" db:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty" bson:"updated_at,omitempty" db:"updated_at"`
}

func (b *Batch) Clone() *Batch {
	if b == nil {
		return nil
	}
	c := *b
	c.GuideNumber = cloneString(b.GuideNumber)
	if b.TransportAgency != nil {
		a := *b.TransportAgency
		c.TransportAgency = &a
	}
	return &c
}
