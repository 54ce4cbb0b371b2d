package archetype

import (
	"fmt"
	"unsafe"

	"github.com/fragforge/fragstore/types"
)

// Chunk is one fixed-capacity block of an archetype. It owns a single
// contiguous byte buffer holding the entity-id column followed by one column
// per fragment type in the layout. Occupied slots are always the contiguous
// range [0, Len()): removal compacts by swapping the last occupant into the
// vacated slot, never leaving holes.
type Chunk struct {
	layout *Layout
	buf    []byte
	ids    []types.EntityID // view into buf[0 : capacity*EntityIDSize]
	count  int

	shared      *SharedValues
	chunkFrags  []types.FragmentMetadata
	chunkValues [][]byte // one record per chunk fragment type

	version uint64
}

func newChunk(layout *Layout, chunkFrags []types.FragmentMetadata, shared *SharedValues) *Chunk {
	buf := make([]byte, layout.BufferBytes())
	c := &Chunk{
		layout:     layout,
		buf:        buf,
		ids:        unsafe.Slice((*types.EntityID)(unsafe.Pointer(&buf[0])), layout.Capacity()),
		shared:     shared,
		chunkFrags: chunkFrags,
	}
	c.chunkValues = make([][]byte, len(chunkFrags))
	for i, md := range chunkFrags {
		c.chunkValues[i] = make([]byte, md.Size())
		md.InitAt(c.chunkValues[i], 0, 1)
	}
	return c
}

// Len returns the number of occupied slots.
func (c *Chunk) Len() int { return c.count }

// Capacity returns the slot capacity, shared by all chunks of the archetype.
func (c *Chunk) Capacity() int { return c.layout.Capacity() }

// Shared returns the SharedValues set this chunk belongs to.
func (c *Chunk) Shared() *SharedValues { return c.shared }

// Version returns the chunk's modification counter. It increases on every
// structural or slot mutation, so callers holding column views can detect
// staleness between passes.
func (c *Chunk) Version() uint64 { return c.version }

// EntityIDs returns a view of the occupied portion of the entity-id column.
// The view is invalidated by any structural mutation of the archetype.
func (c *Chunk) EntityIDs() []types.EntityID { return c.ids[:c.count] }

// Column returns the raw bytes of the full column at the given layout
// position. Record i occupies [i*size, (i+1)*size) within the returned
// slice. The view is invalidated by any structural mutation.
func (c *Chunk) Column(columnIndex int) []byte {
	col := c.layout.columns[columnIndex]
	size := col.Metadata.Size()
	return c.buf[col.Offset : col.Offset+c.layout.capacity*size : col.Offset+c.layout.capacity*size]
}

// ChunkValue returns the raw bytes of the chunk fragment value at the given
// position in the composition's chunk fragment group.
func (c *Chunk) ChunkValue(chunkFragIndex int) []byte {
	return c.chunkValues[chunkFragIndex]
}

// recycle reattaches an empty chunk to a new SharedValues set, resetting its
// chunk fragment values. Recycling a non-empty chunk is an internal bug.
func (c *Chunk) recycle(shared *SharedValues) {
	if c.count != 0 {
		panic(fmt.Sprintf("archetype: recycling chunk with %d occupants", c.count))
	}
	for i, md := range c.chunkFrags {
		md.DropAt(c.chunkValues[i], 0, 1)
		md.InitAt(c.chunkValues[i], 0, 1)
	}
	c.shared = shared
	c.version++
}

func (c *Chunk) bump() { c.version++ }
