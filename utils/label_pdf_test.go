package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcelhub/attributes"
	"parcelhub/models"
)

func TestNewLabelData(t *testing.T) {
	dest, guide, pull := "CUENCA", "SV-77", "pull-1"
	pkg := &models.Package{ID: "p1", GuideNumber: "EC100", Name: "Ana", PullID: &pull}
	eff := attributes.Effective{
		Destiny:     attributes.Attribute[string]{Value: &dest, Source: attributes.SourcePull},
		Agency:      attributes.Attribute[models.AgencyRef]{Value: &models.AgencyRef{ID: "ag-1"}, Source: attributes.SourceBatch},
		GuideNumber: attributes.Attribute[string]{Value: &guide, Source: attributes.SourceBatch},
	}
	at := time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)

	d := NewLabelData(pkg, attributes.ShipmentBatch, eff, at)
	assert.Equal(t, "CUENCA", d.Destiny)
	assert.Equal(t, "ag-1", d.Agency, "falls back to the id when the name is unknown")
	assert.Equal(t, "SV-77", d.CarrierGuide)
	assert.Equal(t, "pull-1", d.PullID)
	assert.Equal(t, "04-Mar-2026 10:30", d.PrintedAt)
}

func TestRenderLabelHTML(t *testing.T) {
	pkg := &models.Package{ID: "p1", GuideNumber: "EC100", Name: "<b>Ana</b>", City: "QUITO", Province: "PICHINCHA"}
	eff := attributes.Effective{
		Destiny:     attributes.Attribute[string]{Source: attributes.SourceNone},
		Agency:      attributes.Attribute[models.AgencyRef]{Source: attributes.SourceNone},
		GuideNumber: attributes.Attribute[string]{Source: attributes.SourceNone},
	}

	html, err := RenderLabelHTML(NewLabelData(pkg, attributes.ShipmentUnassigned, eff, time.Now()))
	require.NoError(t, err)
	out := string(html)
	assert.Contains(t, out, "EC100")
	assert.Contains(t, out, "QUITO / PICHINCHA")
	assert.Contains(t, out, "&lt;b&gt;Ana&lt;/b&gt;")
	assert.Contains(t, out, "Destination: <b>-</b>")
	assert.NotContains(t, out, "pull ")
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/label%20one.pdf", PublicURL("https://cdn.example.com/", "label one.pdf"))
}
