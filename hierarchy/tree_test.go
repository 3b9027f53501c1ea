package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAncestorsLevelRoot(t *testing.T) {
	snap := NewSnapshot(pkg("a"), pkg("b", "a"), pkg("c", "b"))

	chain, err := Ancestors(snap, "c")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "b", chain[0].ID)
	assert.Equal(t, "a", chain[1].ID)

	lvl, err := Level(snap, "c")
	require.NoError(t, err)
	assert.Equal(t, 2, lvl)

	lvl, err = Level(snap, "a")
	require.NoError(t, err)
	assert.Equal(t, 0, lvl)

	root, err := Root(snap, "c")
	require.NoError(t, err)
	assert.Equal(t, "a", root.ID)

	root, err = Root(snap, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", root.ID)
}

func TestAncestors_Errors(t *testing.T) {
	_, err := Ancestors(NewSnapshot(), "nope")
	assert.ErrorIs(t, err, ErrInsufficientContext)

	_, err = Ancestors(NewSnapshot(pkg("a", "b"), pkg("b", "a")), "a")
	assert.ErrorIs(t, err, ErrCycleDetected)
}

func TestChildrenAndDescendants(t *testing.T) {
	snap := NewSnapshot(
		pkg("root"),
		pkg("k2", "root"),
		pkg("k1", "root"),
		pkg("g1", "k1"),
		pkg("other"),
	)

	kids := Children(snap, "root")
	require.Len(t, kids, 2)
	assert.Equal(t, "k1", kids[0].ID)
	assert.Equal(t, "k2", kids[1].ID)

	var got []string
	for _, p := range Descendants(snap, "root") {
		got = append(got, p.ID)
	}
	assert.Equal(t, []string{"k1", "k2", "g1"}, got)
	assert.Empty(t, Descendants(snap, "other"))
}

func TestDescendants_StopsOnCorruptLoop(t *testing.T) {
	snap := NewSnapshot(pkg("a", "b"), pkg("b", "a"))
	got := Descendants(snap, "a")
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
}
