package archetype_test

import (
	"testing"
	"time"

	"github.com/fragforge/fragstore/archetype"
	"github.com/fragforge/fragstore/assert"
	"github.com/fragforge/fragstore/types"
)

// sparseTeams builds an archetype holding two half-full chunks per team by
// filling chunks and then carving entities back out of each one.
func sparseTeams(t *testing.T, budget int) (arch *archetype.Archetype, capacity int) {
	t.Helper()
	arch = newTestArchetype(0, teamComp(), budget)
	capacity = arch.Layout().Capacity()
	assert.Assert(t, capacity >= 4, "budget too small for the scenario, capacity %d", capacity)

	id := types.EntityID(0)
	for team := int32(1); team <= 2; team++ {
		for i := 0; i < 2*capacity; i++ {
			_, err := arch.Add(id, teamShared(team))
			assert.NilError(t, err)
			id++
		}
	}
	for _, c := range arch.Chunks() {
		occupants := append([]types.EntityID(nil), c.EntityIDs()...)
		for _, victim := range occupants[:capacity/2] {
			assert.NilError(t, arch.Remove(victim))
		}
	}
	return arch, capacity
}

func TestCompactMergesSparseChunks(t *testing.T) {
	arch, capacity := sparseTeams(t, 256)
	before := arch.Len()
	assert.Len(t, arch.Chunks(), 4)

	stats := arch.Compact(time.Second)

	assert.False(t, stats.BudgetExpired)
	assert.Equal(t, capacity, stats.EntitiesMoved)
	assert.Equal(t, before, arch.Len())
	checkIndexInvariant(t, arch)

	// Each team collapses to one full chunk; chunks emptied at the tail of
	// the list are released.
	partials := 0
	for _, c := range arch.Chunks() {
		if c.Len() > 0 && c.Len() < c.Capacity() {
			partials++
		}
	}
	assert.Equal(t, 0, partials)
	assert.Assert(t, len(arch.Chunks()) < 4)
	assert.Assert(t, stats.ChunksFreed >= 1)
}

func TestCompactDoesNotMixSharedClasses(t *testing.T) {
	arch, capacity := sparseTeams(t, 256)

	arch.Compact(time.Second)

	for _, c := range arch.Chunks() {
		if c.Len() == 0 {
			continue
		}
		team, ok := c.Shared().Value(teamMD.ID())
		assert.True(t, ok)
		for _, id := range c.EntityIDs() {
			want := Team{ID: 1}
			if int(id) >= 2*capacity {
				want = Team{ID: 2}
			}
			assert.Equal(t, want, team, "entity %d landed in the wrong shared class", id)
		}
	}
}

func TestCompactZeroBudgetExpiresImmediately(t *testing.T) {
	arch, _ := sparseTeams(t, 256)
	chunksBefore := len(arch.Chunks())

	stats := arch.Compact(-time.Nanosecond)

	assert.True(t, stats.BudgetExpired)
	assert.Equal(t, 0, stats.EntitiesMoved)
	assert.Len(t, arch.Chunks(), chunksBefore)
	checkIndexInvariant(t, arch)
}

func TestCompactNoOpOnDenseArchetype(t *testing.T) {
	arch := newTestArchetype(0, positionComp(), 1024)
	_, err := arch.AddBatch(entityRange(0, 10), nil)
	assert.NilError(t, err)

	stats := arch.Compact(time.Second)
	assert.Equal(t, 0, stats.EntitiesMoved)
	assert.Equal(t, 0, stats.ChunksFreed)
	assert.False(t, stats.BudgetExpired)
}
