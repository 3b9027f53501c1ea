package attributes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcelhub/models"
)

func str(s string) *string { return &s }

func TestResolve_DestinyPrecedence(t *testing.T) {
	tests := []struct {
		name       string
		pkg        *string
		pull       *string
		batch      *string
		wantValue  *string
		wantSource Source
	}{
		{"package wins", str("P"), str("X"), str("Y"), str("P"), SourcePackage},
		{"falls to pull", nil, str("X"), str("Y"), str("X"), SourcePull},
		{"falls to batch", nil, nil, str("Y"), str("Y"), SourceBatch},
		{"blank is unset", str("  "), str(""), str("Y"), str("Y"), SourceBatch},
		{"nothing set", nil, nil, nil, nil, SourceNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(
				Values{Destiny: tt.pkg},
				&Values{Destiny: tt.pull},
				&Values{Destiny: tt.batch},
			)
			assert.Equal(t, tt.wantSource, got.Destiny.Source)
			assert.Equal(t, tt.wantValue, got.Destiny.Value)
		})
	}
}

func TestResolve_PartialContext(t *testing.T) {
	got := Resolve(Values{GuideNumber: str("G1")}, nil, nil)
	assert.Equal(t, "G1", *got.GuideNumber.Value)
	assert.Equal(t, SourcePackage, got.GuideNumber.Source)
	assert.Equal(t, SourceNone, got.Destiny.Source)
	assert.Nil(t, got.Destiny.Value)
	assert.Equal(t, SourceNone, got.Agency.Source)

	got = Resolve(Values{}, nil, &Values{Destiny: str("Y")})
	assert.Equal(t, SourceBatch, got.Destiny.Source)
}

func TestResolve_Agency(t *testing.T) {
	got := Resolve(
		Values{Agency: &models.AgencyRef{}},
		&Values{Agency: &models.AgencyRef{ID: "ag-pull", Name: "Pull Cargo"}},
		&Values{Agency: &models.AgencyRef{ID: "ag-batch"}},
	)
	require.NotNil(t, got.Agency.Value)
	assert.Equal(t, "ag-pull", got.Agency.Value.ID)
	assert.Equal(t, SourcePull, got.Agency.Source)
}

func TestResolve_IsPure(t *testing.T) {
	pkg := Values{Destiny: nil, GuideNumber: str("G")}
	pull := &Values{Destiny: str("X"), Agency: &models.AgencyRef{ID: "a1"}}
	batch := &Values{Destiny: str("Y"), GuideNumber: str("B")}

	first := Resolve(pkg, pull, batch)
	second := Resolve(pkg, pull, batch)
	assert.Equal(t, first, second)

	// the result does not alias the inputs
	*first.Destiny.Value = "mutated"
	assert.Equal(t, "X", *pull.Destiny)
}

func TestResolvePackage_FromEntities(t *testing.T) {
	batchID := "b1"
	pkg := &models.Package{ID: "p1", AgencyGuideNumber: str("PKG-G")}
	pull := &models.Pull{ID: "pl1", CommonDestiny: "QUITO", BatchID: &batchID}
	batch := &models.Batch{ID: "b1", Destiny: "GUAYAQUIL", TransportAgency: &models.AgencyRef{ID: "ag"}, GuideNumber: str("LOTE-1")}

	got := ResolvePackage(pkg, pull, batch)
	assert.Equal(t, "QUITO", *got.Destiny.Value)
	assert.Equal(t, SourcePull, got.Destiny.Source)
	assert.Equal(t, "ag", got.Agency.Value.ID)
	assert.Equal(t, SourceBatch, got.Agency.Source)
	assert.Equal(t, "PKG-G", *got.GuideNumber.Value)
	assert.Equal(t, SourcePackage, got.GuideNumber.Source)

	assert.Equal(t, map[string]Source{
		"destiny_source": SourcePull,
		"agency_source":  SourceBatch,
		"guide_source":   SourcePackage,
	}, got.DataSource())
}

func TestResolvePackage_IgnoresUnrelatedBatch(t *testing.T) {
	pull := &models.Pull{ID: "pl1"}
	batch := &models.Batch{ID: "b9", Destiny: "LOJA"}

	got := ResolvePackage(&models.Package{ID: "p"}, pull, batch)
	assert.Equal(t, SourceNone, got.Destiny.Source)

	got = ResolvePackage(&models.Package{ID: "p"}, nil, batch)
	assert.Equal(t, SourceNone, got.Destiny.Source)
}

func TestClassifyShipment(t *testing.T) {
	batchID := "b1"
	assert.Equal(t, ShipmentBatch, ClassifyShipment(&models.Package{}, &models.Pull{BatchID: &batchID}))
	assert.Equal(t, ShipmentPull, ClassifyShipment(&models.Package{}, &models.Pull{}))
	assert.Equal(t, ShipmentIndividual, ClassifyShipment(&models.Package{TransportAgency: &models.AgencyRef{ID: "a"}}, nil))
	assert.Equal(t, ShipmentUnassigned, ClassifyShipment(&models.Package{}, nil))
}
