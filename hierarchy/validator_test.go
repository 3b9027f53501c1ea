package hierarchy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcelhub/models"
)

func pkg(id string, parent ...string) *models.Package {
	p := &models.Package{ID: id, GuideNumber: "G-" + id}
	if len(parent) > 0 {
		pid := parent[0]
		p.ParentID = &pid
	}
	return p
}

func reasons(c Classification) map[string]Reason {
	out := make(map[string]Reason, len(c.Rejected))
	for _, r := range c.Rejected {
		out[r.Candidate.ID] = r.Reason
	}
	return out
}

func TestCanSetParent_SelfIsRejected(t *testing.T) {
	for _, p := range []*models.Package{pkg("a"), pkg("b", "a")} {
		snap := NewSnapshot(pkg("a"), p)
		d, err := CanSetParent(snap, p, p)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, ReasonSelfParent, d.Reason)
	}
}

func TestCanSetParent_ClosingChainIsACycle(t *testing.T) {
	a, b, c := pkg("a"), pkg("b", "a"), pkg("c", "b")
	snap := NewSnapshot(a, b, c)

	d, err := CanSetParent(snap, a, c)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonCycle, d.Reason)
}

func TestCanSetParent_AlreadyParentedWinsOverCycle(t *testing.T) {
	// a already has parent x and b is a's child: the edge would close a
	// cycle, but the already-parented rule is reported first.
	x := pkg("x")
	a := pkg("a", "x")
	b := pkg("b", "a")
	snap := NewSnapshot(x, a, b)

	d, err := CanSetParent(snap, a, b)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonAlreadyHasParent, d.Reason)
}

func TestCanSetParent_AllowedAndDetach(t *testing.T) {
	a, b := pkg("a"), pkg("b")
	snap := NewSnapshot(a, b)

	d, err := CanSetParent(snap, b, a)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Empty(t, d.Reason)

	d, err = CanSetParent(snap, pkg("c", "a"), nil)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestCanSetParent_SameParentIsIdempotent(t *testing.T) {
	a := pkg("a")
	b := pkg("b", "a")
	d, err := CanSetParent(NewSnapshot(a, b), b, a)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestCanSetParent_MalformedInput(t *testing.T) {
	_, err := CanSetParent(NewSnapshot(), &models.Package{}, pkg("a"))
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, err = CanSetParent(NewSnapshot(), pkg("a"), &models.Package{})
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestCanDetach_AlwaysLegal(t *testing.T) {
	assert.True(t, CanDetach(pkg("a")))
	assert.True(t, CanDetach(pkg("b", "a")))
}

func TestCanAssociateChildren_MixedSelection(t *testing.T) {
	parent := pkg("p")
	other := pkg("o")
	parented := pkg("x", "o")
	clean := pkg("c")
	snap := NewSnapshot(parent, other, parented, clean)

	got, err := CanAssociateChildren(snap, parent, []*models.Package{parent, parented, clean})
	require.NoError(t, err)

	require.Len(t, got.Allowed, 1)
	assert.Equal(t, "c", got.Allowed[0].ID)
	require.Len(t, got.Rejected, 2)
	assert.Equal(t, ReasonSelfParent, got.Rejected[0].Reason)
	assert.Equal(t, ReasonAlreadyHasParent, got.Rejected[1].Reason)
}

func TestCanAssociateChildren_RejectsAncestorOfParent(t *testing.T) {
	root := pkg("root")
	mid := pkg("mid", "root")
	leaf := pkg("leaf", "mid")
	snap := NewSnapshot(root, mid, leaf)

	got, err := CanAssociateChildren(snap, leaf, []*models.Package{root})
	require.NoError(t, err)
	assert.Empty(t, got.Allowed)
	assert.Equal(t, map[string]Reason{"root": ReasonCycle}, reasons(got))
}

func TestCanAssociateChildren_DuplicatesAndOrder(t *testing.T) {
	parent, a, b := pkg("p"), pkg("a"), pkg("b")
	snap := NewSnapshot(parent, a, b)

	got, err := CanAssociateChildren(snap, parent, []*models.Package{b, a, b})
	require.NoError(t, err)
	require.Len(t, got.Allowed, 2)
	assert.Equal(t, "b", got.Allowed[0].ID)
	assert.Equal(t, "a", got.Allowed[1].ID)
	assert.Equal(t, map[string]Reason{"b": ReasonDuplicate}, reasons(got))
}

func TestCanAssociateChildren_CorruptExistingCycle(t *testing.T) {
	// p -> q -> p already loops in the stored data.
	p := pkg("p", "q")
	q := pkg("q", "p")
	c := pkg("c")
	snap := NewSnapshot(p, q, c)

	got, err := CanAssociateChildren(snap, p, []*models.Package{c})
	require.NoError(t, err)
	assert.Equal(t, map[string]Reason{"c": ReasonCorrupt}, reasons(got))
}

func TestCanAssociateChildren_MissingAncestor(t *testing.T) {
	parent := pkg("p", "ghost")
	c := pkg("c")
	snap := NewSnapshot(parent, c)

	_, err := CanAssociateChildren(snap, parent, []*models.Package{c})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientContext)

	var ice *InsufficientContextError
	require.True(t, errors.As(err, &ice))
	assert.Equal(t, "ghost", ice.MissingID)

	snap.Add(pkg("ghost"))
	got, err := CanAssociateChildren(snap, parent, []*models.Package{c})
	require.NoError(t, err)
	assert.Len(t, got.Allowed, 1)
}

func TestCanAssociateChildren_MalformedInput(t *testing.T) {
	parent := pkg("p")
	snap := NewSnapshot(parent)

	_, err := CanAssociateChildren(snap, nil, nil)
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, err = CanAssociateChildren(snap, parent, []*models.Package{{}})
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, err = CanAssociateChildren(NewSnapshot(), parent, nil)
	assert.ErrorIs(t, err, ErrParentNotInSnapshot)
}

func TestReasonMessage(t *testing.T) {
	assert.Equal(t, "a package cannot be its own parent", ReasonSelfParent.Message())
	assert.Equal(t, "custom", Reason("custom").Message())
}
