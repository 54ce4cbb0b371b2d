package filter

import (
	"github.com/rotisserie/eris"

	"github.com/fragforge/fragstore/archetype"
	"github.com/fragforge/fragstore/types"
)

// IndexNotFound marks an optional requirement the archetype does not
// satisfy. Callers must check for it before touching the binding slot.
const IndexNotFound = -1

var (
	ErrRequirementNotSatisfied = eris.New("archetype does not satisfy mandatory requirement")
	ErrMappingMismatch         = eris.New("mapping was computed for a different archetype")
	ErrBindOutOfRange          = eris.New("bind range exceeds chunk occupancy")
)

// Mapping is a requirement list resolved against one archetype's layout. It
// is computed once and reused for every chunk walk over that archetype; it
// is invalidated if the archetype is replaced, never by data mutation, since
// layouts are immutable.
type Mapping struct {
	arch      *archetype.Archetype
	reqs      []Requirement
	positions []int // per requirement; IndexNotFound when absent-optional
}

// ComputeMapping resolves each requirement to its position in the
// archetype's layout. A mandatory requirement the archetype cannot satisfy
// is a caller contract violation and fails fast.
func ComputeMapping(arch *archetype.Archetype, reqs []Requirement) (*Mapping, error) {
	comp := arch.Composition()
	layout := arch.Layout()

	m := &Mapping{
		arch:      arch,
		reqs:      make([]Requirement, len(reqs)),
		positions: make([]int, len(reqs)),
	}
	copy(m.reqs, reqs)

	for i, req := range reqs {
		id := req.Metadata.ID()
		pos := IndexNotFound
		switch req.Kind {
		case KindFragment:
			if ci, ok := layout.ColumnIndex(id); ok {
				pos = ci
			}
		case KindChunkFragment:
			pos = comp.ChunkFragmentIndex(id)
		case KindShared:
			if comp.HasShared(id) {
				pos = 0
			}
		case KindConstShared:
			if comp.HasConstShared(id) {
				pos = 0
			}
		case KindTag:
			if comp.HasTag(id) {
				pos = 0
			}
		}
		if pos == IndexNotFound && !req.Optional {
			return nil, eris.Wrapf(ErrRequirementNotSatisfied,
				"fragment %q (kind %d) not in archetype %d", req.Metadata.Name(), req.Kind, arch.ID())
		}
		m.positions[i] = pos
	}
	return m, nil
}

// Archetype returns the archetype the mapping was computed against.
func (m *Mapping) Archetype() *archetype.Archetype { return m.arch }

// IsPresent reports whether requirement i resolved to anything.
func (m *Mapping) IsPresent(i int) bool { return m.positions[i] != IndexNotFound }

// Binding is a requirement mapping bound to one chunk range: typed,
// bounds-checked views over the chunk's raw columns plus the entity-id slice
// for the range. A binding is only valid until the next structural mutation
// of the archetype; Version lets callers detect staleness.
type Binding struct {
	chunk   *archetype.Chunk
	mapping *Mapping
	start   int
	count   int
	ids     []types.EntityID
	columns [][]byte // per requirement, nil when absent or not a column kind
	shared  []any    // per requirement, nil when absent or not a shared kind
	version uint64
}

// Bind converts the mapping plus a chunk's raw buffer into column views over
// the slot range [start, start+count). sharedCache carries resolved shared
// values across chunks of the same shared-value class; pass the same map for
// a whole walk and shared bindings are computed once per distinct class
// rather than once per chunk.
func (m *Mapping) Bind(c *archetype.Chunk, start, count int, sharedCache map[uint64][]any) (*Binding, error) {
	if start < 0 || count < 0 || start+count > c.Len() {
		return nil, eris.Wrapf(ErrBindOutOfRange, "range [%d, %d) of %d occupants", start, start+count, c.Len())
	}

	b := &Binding{
		chunk:   c,
		mapping: m,
		start:   start,
		count:   count,
		ids:     c.EntityIDs()[start : start+count],
		columns: make([][]byte, len(m.reqs)),
		version: c.Version(),
	}

	for i, req := range m.reqs {
		pos := m.positions[i]
		if pos == IndexNotFound {
			continue
		}
		switch req.Kind {
		case KindFragment:
			size := req.Metadata.Size()
			col := c.Column(pos)
			b.columns[i] = col[start*size : (start+count)*size]
		case KindChunkFragment:
			b.columns[i] = c.ChunkValue(pos)
		case KindShared, KindConstShared, KindTag:
			// Resolved below or by presence alone.
		}
	}
	b.shared = m.resolveShared(c.Shared(), sharedCache)
	return b, nil
}

// resolveShared decodes the shared values each requirement asks for, once
// per distinct SharedValues class when a cache is supplied.
func (m *Mapping) resolveShared(set *archetype.SharedValues, cache map[uint64][]any) []any {
	if cache != nil {
		if resolved, ok := cache[set.Hash()]; ok {
			return resolved
		}
	}
	resolved := make([]any, len(m.reqs))
	for i, req := range m.reqs {
		if m.positions[i] == IndexNotFound {
			continue
		}
		if req.Kind != KindShared && req.Kind != KindConstShared {
			continue
		}
		if v, ok := set.Value(req.Metadata.ID()); ok {
			resolved[i] = v
		}
	}
	if cache != nil {
		cache[set.Hash()] = resolved
	}
	return resolved
}

// ForEachChunk walks the archetype's non-empty chunks and invokes body with
// a binding covering each chunk's full occupied range. Shared values are
// re-resolved only when the walk crosses into a different shared-value
// class.
func (m *Mapping) ForEachChunk(body func(*Binding) error) error {
	sharedCache := make(map[uint64][]any)
	for _, c := range m.arch.Chunks() {
		if c.Len() == 0 {
			continue
		}
		b, err := m.Bind(c, 0, c.Len(), sharedCache)
		if err != nil {
			return err
		}
		if err := body(b); err != nil {
			return err
		}
	}
	return nil
}

// EntityIDs returns the entity-id slice for the bound range.
func (b *Binding) EntityIDs() []types.EntityID { return b.ids }

// Len returns the number of bound slots.
func (b *Binding) Len() int { return b.count }

// Chunk returns the bound chunk.
func (b *Binding) Chunk() *archetype.Chunk { return b.chunk }

// Version returns the chunk version captured at bind time.
func (b *Binding) Version() uint64 { return b.version }

// IsPresent reports whether requirement i bound to anything in this chunk.
func (b *Binding) IsPresent(i int) bool { return b.mapping.IsPresent(i) }

// Column returns the raw bytes of requirement i's bound range, or nil for an
// absent optional.
func (b *Binding) Column(i int) []byte { return b.columns[i] }

// Shared returns the decoded shared value for requirement i, or nil for an
// absent optional.
func (b *Binding) Shared(i int) any { return b.shared[i] }
