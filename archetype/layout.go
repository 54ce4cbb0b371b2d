package archetype

import (
	"github.com/rotisserie/eris"

	"github.com/fragforge/fragstore/types"
)

// Column describes where one fragment type's records live inside a chunk
// buffer: record i of this type occupies the bytes
// [Offset + i*Metadata.Size(), Offset + (i+1)*Metadata.Size()).
type Column struct {
	Metadata types.FragmentMetadata
	Offset   int
}

// Layout is the byte layout shared by every chunk of one archetype. It is
// computed once from the composition and a chunk byte budget and never
// changes afterwards; capacity is therefore invariant across all chunks of
// the archetype.
type Layout struct {
	capacity    int
	columns     []Column
	byID        map[types.FragmentID]int
	bufferBytes int
}

// NewLayout computes column offsets and chunk capacity for the given
// composition. Capacity is the largest entity count whose entity-id column
// plus fragment columns (with alignment padding) fit in chunkByteBudget.
func NewLayout(comp *Composition, chunkByteBudget int) (*Layout, error) {
	metas := comp.Fragments()

	perEntity := types.EntityIDSize
	alignSlack := 0
	for _, md := range metas {
		perEntity += md.Size()
		alignSlack += md.Align() - 1
	}

	capacity := (chunkByteBudget - alignSlack) / perEntity
	if capacity < 0 {
		capacity = 0
	}
	// The estimate over-counts padding; settle on the exact fit.
	for layoutBytes(metas, capacity+1) <= chunkByteBudget {
		capacity++
	}
	for capacity > 0 && layoutBytes(metas, capacity) > chunkByteBudget {
		capacity--
	}
	if capacity == 0 {
		return nil, eris.Wrapf(ErrChunkBudgetTooSmall,
			"budget %d bytes, per-entity cost %d bytes", chunkByteBudget, perEntity)
	}

	l := &Layout{
		capacity: capacity,
		columns:  make([]Column, 0, len(metas)),
		byID:     make(map[types.FragmentID]int, len(metas)),
	}
	offset := capacity * types.EntityIDSize
	for i, md := range metas {
		offset = alignUp(offset, md.Align())
		l.columns = append(l.columns, Column{Metadata: md, Offset: offset})
		l.byID[md.ID()] = i
		offset += capacity * md.Size()
	}
	l.bufferBytes = offset
	return l, nil
}

// layoutBytes returns the total chunk bytes needed for the given capacity,
// including the entity-id column and alignment padding between columns.
func layoutBytes(metas []types.FragmentMetadata, capacity int) int {
	total := capacity * types.EntityIDSize
	for _, md := range metas {
		total = alignUp(total, md.Align())
		total += capacity * md.Size()
	}
	return total
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	rem := n % align
	if rem == 0 {
		return n
	}
	return n + align - rem
}

// Capacity returns the number of entity slots in every chunk of the layout.
func (l *Layout) Capacity() int { return l.capacity }

// Columns returns the fragment columns sorted by FragmentID.
func (l *Layout) Columns() []Column { return l.columns }

// BufferBytes returns the byte size of one chunk's buffer, covering the
// entity-id column at offset 0 and every fragment column after it.
func (l *Layout) BufferBytes() int { return l.bufferBytes }

// ColumnIndex returns the column position for the given fragment type.
func (l *Layout) ColumnIndex(id types.FragmentID) (int, bool) {
	i, ok := l.byID[id]
	return i, ok
}
