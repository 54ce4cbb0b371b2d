package archetype

// ChunkStats is the read-only occupancy summary of one chunk.
type ChunkStats struct {
	Index       int
	Occupied    int
	Capacity    int
	SharedHash  uint64
	BufferBytes int
	Version     uint64
}

// Stats is the read-only occupancy summary of an archetype, exposed for the
// debug/introspection boundary.
type Stats struct {
	NumEntities int
	NumChunks   int
	Capacity    int
	ChunkBytes  int
	TotalBytes  int
	Chunks      []ChunkStats
}

// Stats gathers occupancy statistics and per-chunk memory footprints.
func (a *Archetype) Stats() Stats {
	s := Stats{
		NumEntities: len(a.index),
		NumChunks:   len(a.chunks),
		Capacity:    a.layout.capacity,
		ChunkBytes:  a.layout.bufferBytes,
		TotalBytes:  len(a.chunks) * a.layout.bufferBytes,
		Chunks:      make([]ChunkStats, 0, len(a.chunks)),
	}
	for i, c := range a.chunks {
		s.Chunks = append(s.Chunks, ChunkStats{
			Index:       i,
			Occupied:    c.count,
			Capacity:    a.layout.capacity,
			SharedHash:  c.shared.Hash(),
			BufferBytes: a.layout.bufferBytes,
			Version:     c.version,
		})
	}
	return s
}
