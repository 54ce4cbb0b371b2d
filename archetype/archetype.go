package archetype

import (
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/fragforge/fragstore/types"
)

// Archetype stores every entity that shares one exact composition. Entities
// are packed into fixed-capacity chunks; the entity index maps each live
// EntityID to its absolute slot (chunkIndex*capacity + offsetInChunk).
//
// Structural operations (Add, Remove, MoveEntityTo, batches, Compact) assume
// a single logical writer and are not reentrant. Read-only iteration over a
// stable chunk list may run in parallel across chunks, but not concurrently
// with any structural mutation.
type Archetype struct {
	id           types.ArchetypeID
	instanceName string
	comp         *Composition
	layout       *Layout
	chunks       []*Chunk
	index        map[types.EntityID]types.ArchetypeIndex

	// sharedGroups accelerates GetOrAddChunk: hash of a SharedValues set to
	// the indices of chunks currently attached to an equivalent set.
	sharedGroups map[uint64][]int

	logger zerolog.Logger
}

// New lays out and creates an empty archetype for the given composition. The
// layout, and therefore the chunk capacity, is fixed for the archetype's
// lifetime.
func New(id types.ArchetypeID, comp *Composition, chunkByteBudget int, logger zerolog.Logger) (*Archetype, error) {
	layout, err := NewLayout(comp, chunkByteBudget)
	if err != nil {
		return nil, err
	}
	return newWithLayout(id, comp, layout, logger), nil
}

// NewFromSimilar creates an archetype reusing a sibling's layout table. The
// sibling's per-entity fragment set must be byte-identical; this skips the
// layout computation for structural-change chains that only alter tags or
// shared types.
func NewFromSimilar(id types.ArchetypeID, comp *Composition, sibling *Archetype, logger zerolog.Logger) (*Archetype, error) {
	if !comp.FragmentSetEqual(sibling.comp) {
		return nil, eris.Wrapf(ErrLayoutMismatch,
			"archetype %d fragment set differs from composition %s", sibling.id, comp)
	}
	return newWithLayout(id, comp, sibling.layout, logger), nil
}

func newWithLayout(id types.ArchetypeID, comp *Composition, layout *Layout, logger zerolog.Logger) *Archetype {
	instanceName := uuid.NewString()
	subLogger := logger.With().
		Int("archetype_id", int(id)).
		Str("archetype_instance", instanceName).
		Logger()
	a := &Archetype{
		id:           id,
		instanceName: instanceName,
		comp:         comp,
		layout:       layout,
		chunks:       make([]*Chunk, 0),
		index:        make(map[types.EntityID]types.ArchetypeIndex),
		sharedGroups: make(map[uint64][]int),
		logger:       subLogger,
	}
	a.logger.Debug().
		Int("capacity", layout.Capacity()).
		Int("chunk_bytes", layout.BufferBytes()).
		Str("composition", comp.String()).
		Msg("created archetype")
	return a
}

// ID returns the archetype's identifier.
func (a *Archetype) ID() types.ArchetypeID { return a.id }

// DebugName returns the unique instance name assigned at construction.
func (a *Archetype) DebugName() string { return a.instanceName }

// Composition returns the immutable composition descriptor.
func (a *Archetype) Composition() *Composition { return a.comp }

// Layout returns the archetype's fragment layout table.
func (a *Archetype) Layout() *Layout { return a.layout }

// Chunks returns the live chunk list. The slice is a view; it is invalidated
// by structural mutations.
func (a *Archetype) Chunks() []*Chunk { return a.chunks }

// Len returns the number of live entities in the archetype.
func (a *Archetype) Len() int { return len(a.index) }

// Contains reports whether the entity currently lives in this archetype.
func (a *Archetype) Contains(id types.EntityID) bool {
	_, ok := a.index[id]
	return ok
}

// Locate returns the chunk index and slot offset of a live entity.
func (a *Archetype) Locate(id types.EntityID) (chunkIndex, slot int, ok bool) {
	abs, ok := a.index[id]
	if !ok {
		return 0, 0, false
	}
	chunkIndex, slot = a.decode(abs)
	return chunkIndex, slot, true
}

func (a *Archetype) decode(abs types.ArchetypeIndex) (chunkIndex, slot int) {
	return int(abs) / a.layout.capacity, int(abs) % a.layout.capacity
}

func (a *Archetype) absIndex(chunkIndex, slot int) types.ArchetypeIndex {
	return types.ArchetypeIndex(chunkIndex*a.layout.capacity + slot)
}

func (a *Archetype) normalizeShared(shared *SharedValues) *SharedValues {
	if shared == nil {
		return EmptySharedValues()
	}
	return shared
}

func (a *Archetype) validateShared(shared *SharedValues) error {
	if !shared.matchesTypes(a.comp.SharedTypeIDs()) {
		return eris.Wrapf(ErrSharedValueMismatch,
			"archetype %d declares shared types %v, got %v", a.id, a.comp.SharedTypeIDs(), shared.TypeIDs())
	}
	return nil
}

// getOrAddChunk finds the chunk the next entity with the given shared values
// should be inserted into, in priority order: a partially-full chunk attached
// to an equivalent set, then a recycled empty chunk, then a freshly appended
// chunk. Preferring the partial match keeps same-shared-value entities
// physically grouped for iteration locality.
func (a *Archetype) getOrAddChunk(shared *SharedValues) (c *Chunk, chunkIndex, insertAt int) {
	capacity := a.layout.capacity

	best := -1
	for _, ci := range a.sharedGroups[shared.Hash()] {
		candidate := a.chunks[ci]
		if candidate.count > 0 && candidate.count < capacity && candidate.shared.Equivalent(shared) {
			if best == -1 || ci < best {
				best = ci
			}
		}
	}
	if best != -1 {
		return a.chunks[best], best, a.chunks[best].count
	}

	for ci, candidate := range a.chunks {
		if candidate.count == 0 {
			a.removeFromSharedGroup(candidate.shared.Hash(), ci)
			candidate.recycle(shared)
			a.sharedGroups[shared.Hash()] = append(a.sharedGroups[shared.Hash()], ci)
			return candidate, ci, 0
		}
	}

	c = newChunk(a.layout, a.comp.ChunkFragments(), shared)
	a.chunks = append(a.chunks, c)
	chunkIndex = len(a.chunks) - 1
	a.sharedGroups[shared.Hash()] = append(a.sharedGroups[shared.Hash()], chunkIndex)
	a.logger.Debug().
		Int("chunk_index", chunkIndex).
		Uint64("shared_hash", shared.Hash()).
		Msg("allocated chunk")
	return c, chunkIndex, 0
}

func (a *Archetype) removeFromSharedGroup(hash uint64, chunkIndex int) {
	group := a.sharedGroups[hash]
	for i, ci := range group {
		if ci == chunkIndex {
			a.sharedGroups[hash] = append(group[:i], group[i+1:]...)
			break
		}
	}
	if len(a.sharedGroups[hash]) == 0 {
		delete(a.sharedGroups, hash)
	}
}

// Add inserts an entity with the given shared values and default-constructs
// every fragment record in its slot. The shared set must exactly match the
// archetype's declared shared and const-shared types.
func (a *Archetype) Add(id types.EntityID, shared *SharedValues) (types.ArchetypeIndex, error) {
	shared = a.normalizeShared(shared)
	if err := a.validateShared(shared); err != nil {
		return 0, err
	}
	if _, ok := a.index[id]; ok {
		return 0, eris.Wrapf(ErrEntityAlreadyExists, "entity %d", id)
	}

	c, ci, slot := a.getOrAddChunk(shared)
	c.ids[slot] = id
	c.count++
	abs := a.absIndex(ci, slot)
	a.index[id] = abs
	for colIdx, col := range a.layout.columns {
		col.Metadata.InitAt(c.Column(colIdx), slot, 1)
	}
	c.bump()
	return abs, nil
}

// Remove destructs an entity's fragment records and compacts its chunk by
// swapping the last occupant into the vacated slot. Trailing empty chunks
// are dropped; non-trailing empty chunks stay recyclable, because dropping
// them would shift the absolute indices of every later chunk.
func (a *Archetype) Remove(id types.EntityID) error {
	abs, ok := a.index[id]
	if !ok {
		return eris.Wrapf(ErrEntityDoesNotExist, "entity %d", id)
	}
	ci, slot := a.decode(abs)
	c := a.chunks[ci]

	delete(a.index, id)
	for colIdx, col := range a.layout.columns {
		col.Metadata.DropAt(c.Column(colIdx), slot, 1)
	}
	a.swapCompact(ci, slot)
	a.trimTrailingEmptyChunks()
	return nil
}

// swapCompact is the single routine that vacates a slot. Every mutation path
// (remove, migration, batch removal) funnels through here so the entity
// index and occupant counts can never drift apart. The vacated slot's
// records must already be destructed or copied out by the caller; the swap
// itself is a bit-copy move, not a construct/destroy pair.
func (a *Archetype) swapCompact(chunkIndex, slot int) {
	c := a.chunks[chunkIndex]
	last := c.count - 1
	if slot != last {
		for colIdx, col := range a.layout.columns {
			column := c.Column(colIdx)
			col.Metadata.CopyAt(column, slot, column, last, 1)
		}
		moved := c.ids[last]
		c.ids[slot] = moved
		a.index[moved] = a.absIndex(chunkIndex, slot)
	}
	c.count--
	c.bump()
}

// trimTrailingEmptyChunks drops empty chunks from the end of the chunk list
// only. Absolute indices encode chunk positions, so interior chunks are
// never removed.
func (a *Archetype) trimTrailingEmptyChunks() {
	for len(a.chunks) > 0 {
		lastIndex := len(a.chunks) - 1
		last := a.chunks[lastIndex]
		if last.count != 0 {
			return
		}
		a.removeFromSharedGroup(last.shared.Hash(), lastIndex)
		a.chunks = a.chunks[:lastIndex]
		a.logger.Debug().Int("chunk_index", lastIndex).Msg("dropped trailing empty chunk")
	}
}
