package archetype

import (
	"github.com/rotisserie/eris"

	"github.com/fragforge/fragstore/types"
)

// MoveEntityTo migrates an entity from this archetype into target, used when
// the entity's composition changes. The migration is two-phase across the
// two layouts: fragment types present in both are bit-copied (values
// persist), types new to the target are default-constructed, and types
// dropped by the target are destructed in the source slot. Source and target
// layouts may disagree in type set, offsets, and capacity, so per-type
// dispatch is the only correct move.
//
// When sharedOverride is nil the source chunk's shared values are carried
// over; the effective set must match the target's declared shared types.
// target may be the receiver itself, which moves the entity between chunks
// of one archetype when only its shared values change.
func (a *Archetype) MoveEntityTo(id types.EntityID, target *Archetype, sharedOverride *SharedValues) (types.ArchetypeIndex, error) {
	abs, ok := a.index[id]
	if !ok {
		return 0, eris.Wrapf(ErrEntityDoesNotExist, "entity %d", id)
	}
	if target != a && target.Contains(id) {
		return 0, eris.Wrapf(ErrEntityAlreadyExists, "entity %d already in target archetype %d", id, target.id)
	}
	srcChunkIndex, srcSlot := a.decode(abs)
	srcChunk := a.chunks[srcChunkIndex]

	shared := sharedOverride
	if shared == nil {
		shared = srcChunk.shared
	}
	if err := target.validateShared(shared); err != nil {
		return 0, err
	}

	// The source slot record is removed from the index up front; its
	// fragment bytes stay intact until they are copied or destructed below.
	delete(a.index, id)

	dstChunk, dstChunkIndex, dstSlot := target.getOrAddChunk(shared)
	dstChunk.ids[dstSlot] = id
	dstChunk.count++
	dstAbs := target.absIndex(dstChunkIndex, dstSlot)
	target.index[id] = dstAbs

	for dstColIdx, dstCol := range target.layout.columns {
		md := dstCol.Metadata
		if srcColIdx, inSource := a.layout.ColumnIndex(md.ID()); inSource {
			md.CopyAt(dstChunk.Column(dstColIdx), dstSlot, srcChunk.Column(srcColIdx), srcSlot, 1)
		} else {
			md.InitAt(dstChunk.Column(dstColIdx), dstSlot, 1)
		}
	}
	for srcColIdx, srcCol := range a.layout.columns {
		if _, inTarget := target.layout.ColumnIndex(srcCol.Metadata.ID()); !inTarget {
			srcCol.Metadata.DropAt(srcChunk.Column(srcColIdx), srcSlot, 1)
		}
	}
	dstChunk.bump()

	a.swapCompact(srcChunkIndex, srcSlot)
	a.trimTrailingEmptyChunks()
	return dstAbs, nil
}
