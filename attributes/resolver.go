// Package attributes resolves the effective shipping attributes of a
// package by walking Package -> Pull -> Batch and recording which level
// supplied each value.
package attributes

import (
	"strings"

	"parcelhub/models"
)

type Source string

const (
	SourcePackage Source = "package"
	SourcePull    Source = "pull"
	SourceBatch   Source = "batch"
	SourceNone    Source = "none"
)

// Values is the canonical, normalized view of one level of the chain.
// A nil field means the level leaves the attribute unset.
type Values struct {
	Destiny     *string
	Agency      *models.AgencyRef
	GuideNumber *string
}

// Attribute is a resolved value tagged with its provenance.
type Attribute[T any] struct {
	Value  *T     `json:"value"`
	Source Source `json:"source"`
}

// Effective holds the resolved destination, agency and guide number.
type Effective struct {
	Destiny     Attribute[string]           `json:"destiny"`
	Agency      Attribute[models.AgencyRef] `json:"agency"`
	GuideNumber Attribute[string]           `json:"guide_number"`
}

// DataSource returns the provenance map in the shape older clients read.
func (e Effective) DataSource() map[string]Source {
	return map[string]Source{
		"destiny_source": e.Destiny.Source,
		"agency_source":  e.Agency.Source,
		"guide_source":   e.GuideNumber.Source,
	}
}

type level struct {
	values *Values
	source Source
}

// Resolve picks, for each attribute, the first non-empty value in the order
// package, pull, batch. pull and batch may be nil when the package is not
// bagged or the pull is not part of a batch.
func Resolve(pkg Values, pull, batch *Values) Effective {
	chain := []level{{&pkg, SourcePackage}}
	if pull != nil {
		chain = append(chain, level{pull, SourcePull})
	}
	if batch != nil {
		chain = append(chain, level{batch, SourceBatch})
	}

	var out Effective
	out.Destiny = pickString(chain, func(v *Values) *string { return v.Destiny })
	out.GuideNumber = pickString(chain, func(v *Values) *string { return v.GuideNumber })
	out.Agency = Attribute[models.AgencyRef]{Source: SourceNone}
	for _, l := range chain {
		if a := l.values.Agency; !a.IsZero() {
			ref := *a
			out.Agency = Attribute[models.AgencyRef]{Value: &ref, Source: l.source}
			break
		}
	}
	return out
}

func pickString(chain []level, field func(*Values) *string) Attribute[string] {
	for _, l := range chain {
		if s := field(l.values); s != nil && strings.TrimSpace(*s) != "" {
			v := *s
			return Attribute[string]{Value: &v, Source: l.source}
		}
	}
	return Attribute[string]{Source: SourceNone}
}

// ResolvePackage normalizes the fetched entities and resolves them. The
// batch is only consulted when it is the one the pull belongs to.
func ResolvePackage(pkg *models.Package, pull *models.Pull, batch *models.Batch) Effective {
	var pullVals, batchVals *Values
	if pull != nil {
		v := FromPull(pull)
		pullVals = &v
		if batch != nil && pull.BatchID != nil && *pull.BatchID == batch.ID {
			b := FromBatch(batch)
			batchVals = &b
		}
	}
	return Resolve(FromPackage(pkg), pullVals, batchVals)
}
