package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcelhub/hierarchy"
	"parcelhub/models"
)

func ptr(s string) *string { return &s }

func newPkg(id string, parent ...string) *models.Package {
	p := &models.Package{
		ID:          id,
		GuideNumber: "G-" + id,
		Name:        "Destinatary " + id,
		Address:     "Av. Amazonas",
		City:        "QUITO",
		Province:    "PICHINCHA",
		PhoneNumber: "0999999999",
		Status:      models.StatusNotReceived,
	}
	if len(parent) > 0 {
		p.ParentID = ptr(parent[0])
	}
	return p
}

func seeded(t *testing.T, pkgs ...*models.Package) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	s.Seed(pkgs, nil, nil)
	return s
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	p := &models.Package{GuideNumber: "EC-1", Name: "Ana"}
	require.NoError(t, s.CreatePackage(ctx, p))
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, models.StatusNotReceived, p.Status)

	got, err := s.GetPackage(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "EC-1", got.GuideNumber)

	// stored copy is not aliased
	got.Name = "changed"
	again, _ := s.GetPackage(ctx, p.ID)
	assert.Equal(t, "Ana", again.Name)

	missing, err := s.GetPackage(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	err = s.CreatePackage(ctx, &models.Package{GuideNumber: "EC-1"})
	assert.ErrorIs(t, err, ErrDuplicateGuide)

	exists, err := s.GuideNumberExists(ctx, "EC-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryStore_UpdatePackageParent(t *testing.T) {
	ctx := context.Background()
	s := seeded(t, newPkg("a"), newPkg("b", "a"), newPkg("c", "b"), newPkg("d"))

	tests := []struct {
		name   string
		id     string
		parent *string
		want   error
	}{
		{"self", "d", ptr("d"), ErrSelfParent},
		{"already parented", "c", ptr("d"), ErrAlreadyHasParent},
		{"cycle", "a", ptr("c"), ErrWouldCreateCycle},
		{"missing node", "zz", ptr("a"), ErrNotFound},
		{"missing parent", "d", ptr("zz"), ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.UpdatePackageParent(ctx, tt.id, tt.parent)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	updated, err := s.UpdatePackageParent(ctx, "d", ptr("c"))
	require.NoError(t, err)
	assert.Equal(t, "c", *updated.ParentID)
	assert.NotNil(t, updated.UpdatedAt)

	// same parent again is a no-op
	_, err = s.UpdatePackageParent(ctx, "d", ptr("c"))
	assert.NoError(t, err)

	detached, err := s.UpdatePackageParent(ctx, "d", nil)
	require.NoError(t, err)
	assert.Nil(t, detached.ParentID)
}

func TestMemoryStore_ListPackages(t *testing.T) {
	ctx := context.Background()
	s := seeded(t, newPkg("a"), newPkg("b", "a"), newPkg("c", "a"), newPkg("d"))

	children, err := s.ListPackages(ctx, models.PackageFilter{ParentID: ptr("a")})
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "b", children[0].ID)

	roots, err := s.ListPackages(ctx, models.PackageFilter{WithoutParent: true, ExcludeIDs: []string{"a"}})
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "d", roots[0].ID)

	limited, err := s.ListPackages(ctx, models.PackageFilter{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, limited, 3)
}

func TestMemoryStore_BulkSetPackagePull(t *testing.T) {
	ctx := context.Background()
	s := seeded(t, newPkg("a"), newPkg("b"), newPkg("c"))

	pull := &models.Pull{CommonDestiny: "QUITO", Size: models.SizeSmall}
	require.NoError(t, s.CreatePull(ctx, pull))
	require.NoError(t, s.BulkSetPackagePull(ctx, pull.ID, []string{"a", "b"}))

	got, err := s.GetPull(ctx, pull.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.PackageCount)

	// all or nothing: c is free but a is already bagged
	other := &models.Pull{Size: models.SizeLarge}
	require.NoError(t, s.CreatePull(ctx, other))
	err = s.BulkSetPackagePull(ctx, other.ID, []string{"c", "a"})
	assert.ErrorIs(t, err, ErrPackageInPull)
	c, _ := s.GetPackage(ctx, "c")
	assert.False(t, c.HasPull())

	assert.ErrorIs(t, s.BulkSetPackagePull(ctx, "missing", []string{"c"}), ErrNotFound)
	assert.Error(t, s.CreatePull(ctx, &models.Pull{Size: "HUGE"}))
}

func TestMemoryStore_CreateBatchWithPulls(t *testing.T) {
	ctx := context.Background()
	s := seeded(t, newPkg("a"), newPkg("b"), newPkg("c"))

	batch := &models.Batch{Destiny: "GUAYAQUIL"}
	pulls, err := s.CreateBatchWithPulls(ctx, batch, []models.PullDraft{
		{Size: models.SizeSmall, PackageIDs: []string{"a"}},
		{Size: models.SizeLarge, PackageIDs: []string{"b", "c"}},
	})
	require.NoError(t, err)
	require.Len(t, pulls, 2)
	assert.Equal(t, batch.ID, *pulls[1].BatchID)
	assert.Equal(t, "GUAYAQUIL", pulls[1].CommonDestiny)
	assert.Equal(t, 2, pulls[1].PackageCount)

	b, _ := s.GetPackage(ctx, "b")
	assert.Equal(t, pulls[1].ID, *b.PullID)

	stored, err := s.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, "GUAYAQUIL", stored.Destiny)

	_, err = s.CreateBatchWithPulls(ctx, &models.Batch{Destiny: "X"}, []models.PullDraft{
		{Size: models.SizeSmall, PackageIDs: []string{"a"}},
	})
	assert.ErrorIs(t, err, ErrPackageInPull)
}

func TestMemoryStore_CreateBatchWithPulls_InvalidSize(t *testing.T) {
	ctx := context.Background()
	s := seeded(t, newPkg("a"), newPkg("b"))

	_, err := s.CreateBatchWithPulls(ctx, &models.Batch{Destiny: "LOJA"}, []models.PullDraft{
		{Size: models.SizeSmall, PackageIDs: []string{"a"}},
		{Size: "HUGE", PackageIDs: []string{"b"}},
	})
	require.Error(t, err)

	assert.Empty(t, s.batches)
	assert.Empty(t, s.pulls)
	for _, id := range []string{"a", "b"} {
		p, _ := s.GetPackage(ctx, id)
		assert.False(t, p.HasPull(), id)
	}
}

func TestMemoryStore_InsertParent(t *testing.T) {
	ctx := context.Background()

	t.Run("creates root and attaches child", func(t *testing.T) {
		s := seeded(t, newPkg("o"))
		parent := &models.Package{GuideNumber: "NEW-1", Name: "Ana"}

		child, err := s.InsertParent(ctx, parent, "o")
		require.NoError(t, err)
		assert.NotEmpty(t, parent.ID)
		assert.Nil(t, parent.ParentID)
		require.NotNil(t, child.ParentID)
		assert.Equal(t, parent.ID, *child.ParentID)
		assert.NotNil(t, child.UpdatedAt)

		stored, err := s.GetPackage(ctx, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, "NEW-1", stored.GuideNumber)
		assert.Equal(t, models.StatusNotReceived, stored.Status)
	})

	tests := []struct {
		name    string
		pkgs    []*models.Package
		childID string
		guide   string
		want    error
	}{
		{"missing child", []*models.Package{newPkg("o")}, "nope", "NEW-1", ErrNotFound},
		{"child has parent", []*models.Package{newPkg("p"), newPkg("o", "p")}, "o", "NEW-1", ErrAlreadyHasParent},
		{"child has children", []*models.Package{newPkg("o"), newPkg("k", "o")}, "o", "NEW-1", ErrHasChildren},
		{"guide taken", []*models.Package{newPkg("o"), newPkg("x")}, "o", "G-x", ErrDuplicateGuide},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seeded(t, tt.pkgs...)
			_, err := s.InsertParent(ctx, &models.Package{GuideNumber: tt.guide}, tt.childID)
			assert.ErrorIs(t, err, tt.want)
			assert.Len(t, s.packages, len(tt.pkgs), "nothing written")
		})
	}
}

func TestMemoryStore_Agencies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	a := &models.TransportAgency{Name: "Servientrega", Active: true}
	require.NoError(t, s.CreateAgency(ctx, a))

	got, err := s.GetAgency(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Servientrega", got.Name)

	list, err := s.ListAgencies(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMutationReason(t *testing.T) {
	assert.Equal(t, hierarchy.ReasonAlreadyHasParent, MutationReason(ErrAlreadyHasParent))
	assert.Equal(t, hierarchy.ReasonCycle, MutationReason(errors.Join(errors.New("ctx"), ErrWouldCreateCycle)))
	assert.Equal(t, hierarchy.ReasonNotFound, MutationReason(ErrNotFound))
	assert.Equal(t, hierarchy.Reason(""), MutationReason(errors.New("connection reset")))
	assert.Equal(t, hierarchy.Reason(""), MutationReason(nil))
}
