package archetype_test

import (
	"testing"

	"github.com/fragforge/fragstore/assert"
	"github.com/fragforge/fragstore/types"
)

func TestStatsReportOccupancy(t *testing.T) {
	arch := newTestArchetype(0, positionComp(), 1024)
	capacity := arch.Layout().Capacity()
	_, err := arch.AddBatch(entityRange(0, types.EntityID(capacity+2)), nil)
	assert.NilError(t, err)

	stats := arch.Stats()
	assert.Equal(t, capacity+2, stats.NumEntities)
	assert.Equal(t, 2, stats.NumChunks)
	assert.Equal(t, capacity, stats.Capacity)
	assert.Equal(t, arch.Layout().BufferBytes(), stats.ChunkBytes)
	assert.Equal(t, 2*arch.Layout().BufferBytes(), stats.TotalBytes)
	assert.Len(t, stats.Chunks, 2)
	assert.Equal(t, capacity, stats.Chunks[0].Occupied)
	assert.Equal(t, 2, stats.Chunks[1].Occupied)
	assert.Equal(t, 1, stats.Chunks[1].Index)
}
