package catalog

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAll_ReturnsIndependentCopy(t *testing.T) {
	first := All()
	require.Len(t, first, 30)

	first[0].Name = "mutated"
	assert.NotEqual(t, "mutated", All()[0].Name)
}

func TestAll_UniqueIDs(t *testing.T) {
	seen := map[int]bool{}
	for _, p := range All() {
		assert.False(t, seen[p.ID], "duplicate id %d", p.ID)
		seen[p.ID] = true
		assert.NotEmpty(t, p.Name)
		assert.Positive(t, p.Rating)
	}
}

func TestByRole(t *testing.T) {
	keepers := ByRole(RoleWicketKeeper)
	require.NotEmpty(t, keepers)
	for _, p := range keepers {
		assert.Equal(t, RoleWicketKeeper, p.Role)
	}

	assert.Empty(t, ByRole(Role("Goalkeeper")))
}

func TestTop(t *testing.T) {
	top := Top(5)
	require.Len(t, top, 5)
	for i := 1; i < len(top); i++ {
		assert.GreaterOrEqual(t, top[i-1].Rating, top[i].Rating)
	}
	assert.Equal(t, "Jasprit Bumrah", top[0].Name)

	assert.Len(t, Top(1000), 30)
}

func TestShuffled(t *testing.T) {
	a := Shuffled(rand.New(rand.NewSource(7)))
	b := Shuffled(rand.New(rand.NewSource(7)))
	assert.Equal(t, a, b, "same seed must give the same order")

	require.Len(t, a, 30)
	seen := map[int]bool{}
	for _, p := range a {
		assert.False(t, seen[p.ID])
		seen[p.ID] = true
	}
}
