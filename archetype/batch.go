package archetype

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/fragforge/fragstore/types"
)

// AddBatch inserts many entities carrying one shared value set. Entities are
// packed into maximal contiguous runs, one per acquired chunk, so every
// fragment column of a run is default-constructed with a single bulk call
// instead of per-entity calls.
func (a *Archetype) AddBatch(ids []types.EntityID, shared *SharedValues) ([]types.ArchetypeIndex, error) {
	shared = a.normalizeShared(shared)
	if err := a.validateShared(shared); err != nil {
		return nil, err
	}
	seen := make(map[types.EntityID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := a.index[id]; ok {
			return nil, eris.Wrapf(ErrEntityAlreadyExists, "entity %d", id)
		}
		if _, ok := seen[id]; ok {
			return nil, eris.Wrapf(ErrEntityAlreadyExists, "entity %d appears twice in batch", id)
		}
		seen[id] = struct{}{}
	}

	out := make([]types.ArchetypeIndex, 0, len(ids))
	remaining := ids
	for len(remaining) > 0 {
		c, ci, insertAt := a.getOrAddChunk(shared)
		n := a.layout.capacity - insertAt
		if n > len(remaining) {
			n = len(remaining)
		}

		copy(c.ids[insertAt:insertAt+n], remaining[:n])
		for colIdx, col := range a.layout.columns {
			col.Metadata.InitAt(c.Column(colIdx), insertAt, n)
		}
		c.count += n
		for k := 0; k < n; k++ {
			abs := a.absIndex(ci, insertAt+k)
			a.index[remaining[k]] = abs
			out = append(out, abs)
		}
		c.bump()
		remaining = remaining[n:]
	}
	return out, nil
}

// RemoveBatch removes many entities from the archetype. Slots are processed
// in descending (chunk, offset) order so an earlier removal's swap
// compaction cannot invalidate a later slot; runs that form a chunk's tail
// are destructed with one bulk call per column and truncated without any
// swap copies.
func (a *Archetype) RemoveBatch(ids []types.EntityID) error {
	slots := make([]types.ArchetypeIndex, 0, len(ids))
	seen := make(map[types.EntityID]struct{}, len(ids))
	for _, id := range ids {
		abs, ok := a.index[id]
		if !ok {
			return eris.Wrapf(ErrEntityDoesNotExist, "entity %d", id)
		}
		if _, ok := seen[id]; ok {
			return eris.Wrapf(ErrEntityAlreadyExists, "entity %d appears twice in batch", id)
		}
		seen[id] = struct{}{}
		slots = append(slots, abs)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] > slots[j] })

	for i := 0; i < len(slots); {
		ci, slot := a.decode(slots[i])
		c := a.chunks[ci]

		if slot == c.count-1 {
			// Extend the run downward while it stays contiguous with the
			// chunk tail.
			n := 1
			for i+n < len(slots) {
				nextCi, nextSlot := a.decode(slots[i+n])
				if nextCi != ci || nextSlot != slot-n {
					break
				}
				n++
			}
			start := slot - n + 1
			for k := 0; k < n; k++ {
				delete(a.index, c.ids[start+k])
			}
			for colIdx, col := range a.layout.columns {
				col.Metadata.DropAt(c.Column(colIdx), start, n)
			}
			c.count -= n
			c.bump()
			i += n
			continue
		}

		delete(a.index, c.ids[slot])
		for colIdx, col := range a.layout.columns {
			col.Metadata.DropAt(c.Column(colIdx), slot, 1)
		}
		a.swapCompact(ci, slot)
		i++
	}

	a.trimTrailingEmptyChunks()
	return nil
}

// MoveBatchTo migrates many entities into target, amortizing the chunk scan:
// source slots are walked in descending (chunk, offset) order and target
// insertion reuses the partially-filled destination chunk until it fills.
func (a *Archetype) MoveBatchTo(ids []types.EntityID, target *Archetype, sharedOverride *SharedValues) error {
	ordered := make([]types.EntityID, len(ids))
	copy(ordered, ids)
	seen := make(map[types.EntityID]struct{}, len(ordered))
	for _, id := range ordered {
		if _, ok := a.index[id]; !ok {
			return eris.Wrapf(ErrEntityDoesNotExist, "entity %d", id)
		}
		if _, ok := seen[id]; ok {
			return eris.Wrapf(ErrEntityAlreadyExists, "entity %d appears twice in batch", id)
		}
		seen[id] = struct{}{}
	}
	sort.Slice(ordered, func(i, j int) bool { return a.index[ordered[i]] > a.index[ordered[j]] })

	for _, id := range ordered {
		if _, err := a.MoveEntityTo(id, target, sharedOverride); err != nil {
			return err
		}
	}
	return nil
}
