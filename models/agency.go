package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type TransportAgency struct {
	ID          string    `json:"id" bson:"_id" db:"id"`
	Name        string    `json:"name" bson:"name" db:"name"`
	PhoneNumber string    `json:"phone_number" bson:"phone_number" db:"phone_number"`
	Email       string    `json:"email,omitempty" bson:"email,omitempty" db:"email"`
	Active      bool      `json:"active" bson:"active" db:"active"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at" db:"created_at"`
}

// Ref returns the reference form of the agency.
func (a *TransportAgency) Ref() *AgencyRef {
	return &AgencyRef{ID: a.ID, Name: a.Name}
}

// AgencyRef is the canonical shape of an agency reference. Clients send
// either a bare id string or an object with id and name; both decode here.
type AgencyRef struct {
	ID   string `json:"id" bson:"id"`
	Name string `json:"name,omitempty" bson:"name,omitempty"`
}

// UnmarshalJSON accepts "uuid", {"id":"uuid","name":"..."} and null.
func (a *AgencyRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = AgencyRef{}
		return nil
	}

	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*a = AgencyRef{ID: strings.TrimSpace(id)}
		return nil
	}

	if data[0] == '{' {
		var obj struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*a = AgencyRef{ID: strings.TrimSpace(obj.ID), Name: obj.Name}
		return nil
	}

	return fmt.Errorf("transport agency: unsupported JSON value %s", string(data))
}

// IsZero reports whether the reference points at no agency.
func (a *AgencyRef) IsZero() bool {
	return a == nil || a.ID == ""
}

// NormalizeAgency collapses a blank reference to nil.
func NormalizeAgency(a *AgencyRef) *AgencyRef {
	if a.IsZero() {
		return nil
	}
	return a
}
