package archetype

import (
	"time"
)

// CompactStats reports what one defragmentation pass accomplished.
type CompactStats struct {
	EntitiesMoved int
	ChunksFreed   int
	Elapsed       time.Duration
	BudgetExpired bool
}

// Compact merges sparsely populated chunks that carry equivalent shared
// value sets, bounded by a wall-clock budget since it competes with other
// frame-time work. Within each shared group the fullest non-full chunk is
// the destination and the emptiest non-empty chunk is the source; entities
// move in bulk from the source tail. Chunks emptied this way are only freed
// when they end up trailing the chunk list.
func (a *Archetype) Compact(budget time.Duration) CompactStats {
	start := time.Now()
	stats := CompactStats{}
	chunksBefore := len(a.chunks)

	for _, group := range a.sharedGroups {
		if stats.BudgetExpired {
			break
		}
		a.compactGroup(group, start, budget, &stats)
	}

	a.trimTrailingEmptyChunks()
	stats.ChunksFreed = chunksBefore - len(a.chunks)
	stats.Elapsed = time.Since(start)
	if stats.EntitiesMoved > 0 || stats.ChunksFreed > 0 {
		a.logger.Debug().
			Int("entities_moved", stats.EntitiesMoved).
			Int("chunks_freed", stats.ChunksFreed).
			Dur("elapsed", stats.Elapsed).
			Msg("compacted archetype")
	}
	return stats
}

func (a *Archetype) compactGroup(group []int, start time.Time, budget time.Duration, stats *CompactStats) {
	capacity := a.layout.capacity
	for {
		if time.Since(start) > budget {
			stats.BudgetExpired = true
			return
		}

		dest, source := -1, -1
		for _, ci := range group {
			c := a.chunks[ci]
			if c.count > 0 && c.count < capacity && (dest == -1 || c.count > a.chunks[dest].count) {
				dest = ci
			}
		}
		if dest == -1 {
			return
		}
		for _, ci := range group {
			c := a.chunks[ci]
			if ci == dest || c.count == 0 || c.count == capacity {
				continue
			}
			if !a.chunks[dest].shared.Equivalent(c.shared) {
				// Hash collision between distinct sets; never merge those.
				continue
			}
			if source == -1 || c.count < a.chunks[source].count {
				source = ci
			}
		}
		if source == -1 {
			return
		}

		dst, src := a.chunks[dest], a.chunks[source]
		n := capacity - dst.count
		if n > src.count {
			n = src.count
		}
		a.moveRun(src, src.count-n, dst, dest, dst.count, n)
		stats.EntitiesMoved += n
	}
}

// moveRun bulk-moves n occupants from the source chunk's tail into the
// destination chunk, updating the entity index for every moved entity. The
// move is a bit-copy; no construct/destroy hooks run.
func (a *Archetype) moveRun(src *Chunk, srcStart int, dst *Chunk, dstChunkIndex, dstStart, n int) {
	for colIdx, col := range a.layout.columns {
		col.Metadata.CopyAt(dst.Column(colIdx), dstStart, src.Column(colIdx), srcStart, n)
	}
	copy(dst.ids[dstStart:dstStart+n], src.ids[srcStart:srcStart+n])
	for k := 0; k < n; k++ {
		a.index[dst.ids[dstStart+k]] = a.absIndex(dstChunkIndex, dstStart+k)
	}
	src.count -= n
	dst.count += n
	src.bump()
	dst.bump()
}
