// Package fragstore implements an archetype-based entity/fragment storage
// engine. Entities are packed into contiguous fixed-capacity chunks keyed by
// the exact set of fragment, tag, chunk-fragment, and shared types they
// carry; the engine guarantees O(1) amortized insertion and removal, stable
// entity-to-slot lookup, and structural migration between compositions.
//
// The engine assumes a single logical writer for structural operations.
// Read-only chunk iteration may be parallelized by callers across chunks of
// a stable archetype, but never concurrently with structural mutation.
package fragstore

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/fragforge/fragstore/archetype"
	"github.com/fragforge/fragstore/filter"
	"github.com/fragforge/fragstore/fragment"
	"github.com/fragforge/fragstore/log"
	"github.com/fragforge/fragstore/types"
)

var (
	ErrArchetypeNotFound  = eris.New("archetype not found")
	ErrEntityDoesNotExist = eris.New("entity does not exist")
	ErrEntityAlreadyAdded = eris.New("entity has already been added")
)

// Engine is the boundary the external entity manager and query engine talk
// to. It owns every archetype, routes structural changes to them, and tracks
// which archetype each live entity belongs to.
type Engine struct {
	cfg        Config
	logger     zerolog.Logger
	fragments  *fragment.Manager
	archetypes []*archetype.Archetype
	archByKey  map[string]types.ArchetypeID
	entityArch map[types.EntityID]types.ArchetypeID
}

// Option augments engine creation.
type Option func(e *Engine)

// WithConfig replaces the default config.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithLogger replaces the default logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates an empty storage engine.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:        DefaultConfig(),
		logger:     zerolog.Nop(),
		fragments:  fragment.NewManager(),
		archetypes: make([]*archetype.Archetype, 0),
		archByKey:  make(map[string]types.ArchetypeID),
		entityArch: make(map[types.EntityID]types.ArchetypeID),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	e.logger = *log.CreateEngineLogger(&e.logger, "fragstore")
	e.logger.Info().
		Int("chunk_byte_budget", e.cfg.ChunkByteBudget).
		Msg("created storage engine")
	return e, nil
}

// RegisterFragment registers fragment metadata, assigning its FragmentID.
// All fragment types must be registered before they appear in a composition.
func (e *Engine) RegisterFragment(md types.FragmentMetadata) error {
	return e.fragments.RegisterFragment(md)
}

// GetRegisteredFragments returns all registered fragment metadata.
func (e *Engine) GetRegisteredFragments() []types.FragmentMetadata {
	return e.fragments.GetFragments()
}

// GetFragmentByName returns registered fragment metadata by name.
func (e *Engine) GetFragmentByName(name string) (types.FragmentMetadata, error) {
	return e.fragments.GetFragmentByName(name)
}

// CreateArchetype returns the archetype for the given composition, creating
// it if no equivalent one exists. A new archetype reuses the layout table of
// a sibling with a byte-identical fragment set when one exists, skipping the
// layout computation for chains that only change tags or shared types.
func (e *Engine) CreateArchetype(comp *archetype.Composition) (types.ArchetypeID, error) {
	if id, ok := e.archByKey[comp.Key()]; ok {
		return id, nil
	}

	id := types.ArchetypeID(len(e.archetypes))
	var (
		arch *archetype.Archetype
		err  error
	)
	if sibling := e.findSimilar(comp); sibling != nil {
		arch, err = archetype.NewFromSimilar(id, comp, sibling, e.logger)
	} else {
		arch, err = archetype.New(id, comp, e.cfg.ChunkByteBudget, e.logger)
	}
	if err != nil {
		return 0, err
	}
	e.archetypes = append(e.archetypes, arch)
	e.archByKey[comp.Key()] = id
	if len(e.archetypes) == 1 {
		log.Fragments(&e.logger, e, zerolog.DebugLevel)
	}
	log.Archetype(&e.logger, zerolog.DebugLevel, arch)
	return id, nil
}

func (e *Engine) findSimilar(comp *archetype.Composition) *archetype.Archetype {
	for _, arch := range e.archetypes {
		if comp.FragmentSetEqual(arch.Composition()) {
			return arch
		}
	}
	return nil
}

// Archetype returns the archetype with the given ID.
func (e *Engine) Archetype(id types.ArchetypeID) (*archetype.Archetype, error) {
	if int(id) < 0 || int(id) >= len(e.archetypes) {
		return nil, eris.Wrapf(ErrArchetypeNotFound, "archetype %d", id)
	}
	return e.archetypes[id], nil
}

// Len returns the number of live entities across all archetypes.
func (e *Engine) Len() int { return len(e.entityArch) }

// AddEntity inserts an entity into the given archetype with the given shared
// values. The entity ID is owned by the external entity manager; it must not
// already live anywhere in the engine.
func (e *Engine) AddEntity(archID types.ArchetypeID, id types.EntityID, shared *archetype.SharedValues) (types.ArchetypeIndex, error) {
	arch, err := e.Archetype(archID)
	if err != nil {
		return 0, err
	}
	if _, ok := e.entityArch[id]; ok {
		return 0, eris.Wrapf(ErrEntityAlreadyAdded, "entity %d", id)
	}
	index, err := arch.Add(id, shared)
	if err != nil {
		return 0, err
	}
	e.entityArch[id] = archID
	log.Entity(&e.logger, zerolog.TraceLevel, id, archID, index)
	return index, nil
}

// AddEntityBatch inserts many entities into the given archetype at one
// shared value class, amortizing the chunk scan and bulk-constructing runs.
func (e *Engine) AddEntityBatch(archID types.ArchetypeID, ids []types.EntityID, shared *archetype.SharedValues) ([]types.ArchetypeIndex, error) {
	arch, err := e.Archetype(archID)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := e.entityArch[id]; ok {
			return nil, eris.Wrapf(ErrEntityAlreadyAdded, "entity %d", id)
		}
	}
	indices, err := arch.AddBatch(ids, shared)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		e.entityArch[id] = archID
	}
	return indices, nil
}

// RemoveEntity removes an entity from whichever archetype it lives in,
// destructing its fragment records.
func (e *Engine) RemoveEntity(id types.EntityID) error {
	archID, ok := e.entityArch[id]
	if !ok {
		return eris.Wrapf(ErrEntityDoesNotExist, "entity %d", id)
	}
	arch := e.archetypes[archID]
	if err := arch.Remove(id); err != nil {
		return err
	}
	delete(e.entityArch, id)
	return nil
}

// MoveEntity migrates an entity to the archetype with the given ID. A nil
// sharedOverride carries the source chunk's shared values across; the
// effective set must match the target archetype's declared shared types.
func (e *Engine) MoveEntity(id types.EntityID, dstArchID types.ArchetypeID, sharedOverride *archetype.SharedValues) (types.ArchetypeIndex, error) {
	dst, err := e.Archetype(dstArchID)
	if err != nil {
		return 0, err
	}
	srcArchID, ok := e.entityArch[id]
	if !ok {
		return 0, eris.Wrapf(ErrEntityDoesNotExist, "entity %d", id)
	}
	src := e.archetypes[srcArchID]
	index, err := src.MoveEntityTo(id, dst, sharedOverride)
	if err != nil {
		return 0, err
	}
	e.entityArch[id] = dstArchID
	return index, nil
}

// MoveEntityBatch migrates many entities, possibly spanning several source
// archetypes, into the target archetype. Entities are grouped per source so
// each group's removals run in descending slot order.
func (e *Engine) MoveEntityBatch(ids []types.EntityID, dstArchID types.ArchetypeID, sharedOverride *archetype.SharedValues) error {
	dst, err := e.Archetype(dstArchID)
	if err != nil {
		return err
	}
	bySource := make(map[types.ArchetypeID][]types.EntityID)
	for _, id := range ids {
		srcArchID, ok := e.entityArch[id]
		if !ok {
			return eris.Wrapf(ErrEntityDoesNotExist, "entity %d", id)
		}
		bySource[srcArchID] = append(bySource[srcArchID], id)
	}
	for srcArchID, group := range bySource {
		if err := e.archetypes[srcArchID].MoveBatchTo(group, dst, sharedOverride); err != nil {
			return err
		}
		for _, id := range group {
			e.entityArch[id] = dstArchID
		}
	}
	return nil
}

// Compact runs a defragmentation pass over every archetype, splitting the
// configured wall-clock budget across them and stopping early when it runs
// out.
func (e *Engine) Compact() archetype.CompactStats {
	budget := e.cfg.CompactBudget()
	start := time.Now()
	total := archetype.CompactStats{}
	for _, arch := range e.archetypes {
		remaining := budget - time.Since(start)
		if remaining <= 0 {
			total.BudgetExpired = true
			break
		}
		stats := arch.Compact(remaining)
		total.EntitiesMoved += stats.EntitiesMoved
		total.ChunksFreed += stats.ChunksFreed
		total.BudgetExpired = total.BudgetExpired || stats.BudgetExpired
	}
	total.Elapsed = time.Since(start)
	return total
}

// ComputeRequirementMapping resolves a requirement list against one
// archetype's layout. The mapping can be reused for every subsequent chunk
// walk over that archetype.
func (e *Engine) ComputeRequirementMapping(archID types.ArchetypeID, reqs []filter.Requirement) (*filter.Mapping, error) {
	arch, err := e.Archetype(archID)
	if err != nil {
		return nil, err
	}
	return filter.ComputeMapping(arch, reqs)
}

// ForEachChunk walks the mapped archetype's chunks, invoking body with bound
// views over each chunk's columns and the chunk's entity-id slice.
func (e *Engine) ForEachChunk(mapping *filter.Mapping, body func(*filter.Binding) error) error {
	return mapping.ForEachChunk(body)
}
