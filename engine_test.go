package fragstore_test

import (
	"testing"
	"time"

	"github.com/fragforge/fragstore"
	"github.com/fragforge/fragstore/archetype"
	"github.com/fragforge/fragstore/assert"
	"github.com/fragforge/fragstore/filter"
	"github.com/fragforge/fragstore/fragment"
	"github.com/fragforge/fragstore/types"
)

type Location struct {
	X, Y, Z float32
}

func (Location) Name() string { return "location" }

type Energy struct {
	Joules float64
}

func (Energy) Name() string { return "energy" }

type Frozen struct{}

func (Frozen) Name() string { return "frozen" }

type Shard struct {
	ID int32
}

func (Shard) Name() string { return "shard" }

func newFixture(t *testing.T) (*fragstore.Engine, locationSet) {
	t.Helper()
	engine, err := fragstore.NewEngine(fragstore.WithConfig(fragstore.Config{
		ChunkByteBudget:     1024,
		CompactBudgetMillis: 50,
		LogLevel:            "disabled",
	}))
	assert.NilError(t, err)

	var set locationSet
	var errs [4]error
	set.location, errs[0] = fragment.NewFragmentMetadata[Location]()
	set.energy, errs[1] = fragment.NewFragmentMetadata[Energy]()
	set.frozen, errs[2] = fragment.NewFragmentMetadata[Frozen]()
	set.shard, errs[3] = fragment.NewFragmentMetadata[Shard]()
	for _, err := range errs {
		assert.NilError(t, err)
	}
	for _, md := range []types.FragmentMetadata{set.location, set.energy, set.frozen, set.shard} {
		assert.NilError(t, engine.RegisterFragment(md))
	}
	return engine, set
}

type locationSet struct {
	location types.FragmentMetadata
	energy   types.FragmentMetadata
	frozen   types.FragmentMetadata
	shard    types.FragmentMetadata
}

func (s locationSet) moverComp(t *testing.T) *archetype.Composition {
	t.Helper()
	comp, err := archetype.NewComposition(archetype.CompositionConfig{
		Fragments: []types.FragmentMetadata{s.location, s.energy},
	})
	assert.NilError(t, err)
	return comp
}

func (s locationSet) frozenComp(t *testing.T) *archetype.Composition {
	t.Helper()
	comp, err := archetype.NewComposition(archetype.CompositionConfig{
		Fragments: []types.FragmentMetadata{s.location, s.energy},
		Tags:      []types.FragmentMetadata{s.frozen},
	})
	assert.NilError(t, err)
	return comp
}

func (s locationSet) shardComp(t *testing.T) *archetype.Composition {
	t.Helper()
	comp, err := archetype.NewComposition(archetype.CompositionConfig{
		Fragments: []types.FragmentMetadata{s.location},
		Shared:    []types.FragmentMetadata{s.shard},
	})
	assert.NilError(t, err)
	return comp
}

func TestRegisterFragmentAssignsIDs(t *testing.T) {
	_, set := newFixture(t)
	assert.Equal(t, types.FragmentID(1), set.location.ID())
	assert.Equal(t, types.FragmentID(2), set.energy.ID())
}

func TestCreateArchetypeDedupesByComposition(t *testing.T) {
	engine, set := newFixture(t)

	first, err := engine.CreateArchetype(set.moverComp(t))
	assert.NilError(t, err)
	second, err := engine.CreateArchetype(set.moverComp(t))
	assert.NilError(t, err)
	assert.Equal(t, first, second)
}

func TestCreateArchetypeReusesLayoutAcrossTagVariants(t *testing.T) {
	engine, set := newFixture(t)

	plainID, err := engine.CreateArchetype(set.moverComp(t))
	assert.NilError(t, err)
	taggedID, err := engine.CreateArchetype(set.frozenComp(t))
	assert.NilError(t, err)
	assert.Assert(t, plainID != taggedID)

	plain, err := engine.Archetype(plainID)
	assert.NilError(t, err)
	tagged, err := engine.Archetype(taggedID)
	assert.NilError(t, err)

	// Tags take no space, so the tagged variant shares the plain layout.
	assert.Equal(t, plain.Layout(), tagged.Layout())
}

func TestEntityLifecycleAcrossArchetypes(t *testing.T) {
	engine, set := newFixture(t)
	moverID, err := engine.CreateArchetype(set.moverComp(t))
	assert.NilError(t, err)
	frozenID, err := engine.CreateArchetype(set.frozenComp(t))
	assert.NilError(t, err)

	_, err = engine.AddEntity(moverID, 1, nil)
	assert.NilError(t, err)
	assert.Equal(t, 1, engine.Len())

	// An entity id is engine-global: a second add under any archetype fails.
	_, err = engine.AddEntity(frozenID, 1, nil)
	assert.ErrorIs(t, err, fragstore.ErrEntityAlreadyAdded)

	_, err = engine.MoveEntity(1, frozenID, nil)
	assert.NilError(t, err)
	mover, err := engine.Archetype(moverID)
	assert.NilError(t, err)
	frozen, err := engine.Archetype(frozenID)
	assert.NilError(t, err)
	assert.False(t, mover.Contains(1))
	assert.True(t, frozen.Contains(1))
	assert.Equal(t, 1, engine.Len())

	assert.NilError(t, engine.RemoveEntity(1))
	assert.Equal(t, 0, engine.Len())
	assert.ErrorIs(t, engine.RemoveEntity(1), fragstore.ErrEntityDoesNotExist)
}

func TestAddEntityBatchAndChunkWalk(t *testing.T) {
	engine, set := newFixture(t)
	moverID, err := engine.CreateArchetype(set.moverComp(t))
	assert.NilError(t, err)

	mover, err := engine.Archetype(moverID)
	assert.NilError(t, err)
	capacity := mover.Layout().Capacity()
	n := capacity + 1

	ids := make([]types.EntityID, n)
	for i := range ids {
		ids[i] = types.EntityID(i)
	}
	_, err = engine.AddEntityBatch(moverID, ids, nil)
	assert.NilError(t, err)
	assert.Len(t, mover.Chunks(), 2)

	m, err := engine.ComputeRequirementMapping(moverID, []filter.Requirement{
		filter.Fragment(set.location),
	})
	assert.NilError(t, err)

	seen := 0
	assert.NilError(t, engine.ForEachChunk(m, func(b *filter.Binding) error {
		locs := filter.Slice[Location](b, 0)
		assert.Len(t, locs, b.Len())
		seen += b.Len()
		return nil
	}))
	assert.Equal(t, n, seen)
}

func TestMoveEntityBatchGroupsBySource(t *testing.T) {
	engine, set := newFixture(t)
	moverID, err := engine.CreateArchetype(set.moverComp(t))
	assert.NilError(t, err)
	frozenID, err := engine.CreateArchetype(set.frozenComp(t))
	assert.NilError(t, err)

	_, err = engine.AddEntityBatch(moverID, []types.EntityID{1, 2, 3}, nil)
	assert.NilError(t, err)
	_, err = engine.AddEntity(frozenID, 4, nil)
	assert.NilError(t, err)

	// Batch spans two source archetypes; entity 4 moving into its own
	// archetype is a no-op rather than an error.
	assert.NilError(t, engine.MoveEntityBatch([]types.EntityID{1, 3, 4}, frozenID, nil))

	frozen, err := engine.Archetype(frozenID)
	assert.NilError(t, err)
	mover, err := engine.Archetype(moverID)
	assert.NilError(t, err)
	assert.Equal(t, 3, frozen.Len())
	assert.Equal(t, 1, mover.Len())
	assert.True(t, mover.Contains(2))
}

func TestSharedValueArchetypeThroughEngine(t *testing.T) {
	engine, set := newFixture(t)
	shardID, err := engine.CreateArchetype(set.shardComp(t))
	assert.NilError(t, err)

	west, err := archetype.NewSharedValues(archetype.SharedValue{Metadata: set.shard, Value: Shard{ID: 1}})
	assert.NilError(t, err)
	east, err := archetype.NewSharedValues(archetype.SharedValue{Metadata: set.shard, Value: Shard{ID: 2}})
	assert.NilError(t, err)

	_, err = engine.AddEntity(shardID, 1, west)
	assert.NilError(t, err)
	_, err = engine.AddEntity(shardID, 2, east)
	assert.NilError(t, err)
	_, err = engine.AddEntity(shardID, 3, nil)
	assert.ErrorIs(t, err, archetype.ErrSharedValueMismatch)

	arch, err := engine.Archetype(shardID)
	assert.NilError(t, err)
	assert.Len(t, arch.Chunks(), 2)
}

func TestEngineCompactSplitsBudget(t *testing.T) {
	engine, set := newFixture(t)
	moverID, err := engine.CreateArchetype(set.moverComp(t))
	assert.NilError(t, err)

	mover, err := engine.Archetype(moverID)
	assert.NilError(t, err)
	capacity := mover.Layout().Capacity()
	ids := make([]types.EntityID, 2*capacity)
	for i := range ids {
		ids[i] = types.EntityID(i)
	}
	_, err = engine.AddEntityBatch(moverID, ids, nil)
	assert.NilError(t, err)

	// Hollow both chunks to half so a compact pass has work to do.
	for i := 0; i < capacity/2; i++ {
		assert.NilError(t, engine.RemoveEntity(types.EntityID(i)))
		assert.NilError(t, engine.RemoveEntity(types.EntityID(capacity+i)))
	}

	stats := engine.Compact()
	assert.Assert(t, stats.EntitiesMoved > 0)
	assert.Len(t, mover.Chunks(), 1)
}

func TestArchetypeNotFound(t *testing.T) {
	engine, _ := newFixture(t)
	_, err := engine.Archetype(99)
	assert.ErrorIs(t, err, fragstore.ErrArchetypeNotFound)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("FRAGSTORE_CHUNK_BYTE_BUDGET", "4096")
	t.Setenv("FRAGSTORE_COMPACT_BUDGET_MS", "7")

	cfg, err := fragstore.LoadConfig()
	assert.NilError(t, err)
	assert.Equal(t, 4096, cfg.ChunkByteBudget)
	assert.Equal(t, 7*time.Millisecond, cfg.CompactBudget())
}

func TestConfigValidate(t *testing.T) {
	cfg := fragstore.DefaultConfig()
	assert.NilError(t, cfg.Validate())

	cfg.ChunkByteBudget = 0
	assert.ErrorContains(t, cfg.Validate(), "chunk byte budget")
}
