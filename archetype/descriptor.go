package archetype

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/fragforge/fragstore/types"
)

// CompositionConfig declares the exact type set that defines an archetype.
// Fragments get one column per chunk, tags are zero-size markers, chunk
// fragments hold one value per chunk, and shared/const-shared fragments are
// stored once per chunk group in a SharedValues set.
type CompositionConfig struct {
	Fragments      []types.FragmentMetadata
	Tags           []types.FragmentMetadata
	ChunkFragments []types.FragmentMetadata
	Shared         []types.FragmentMetadata
	ConstShared    []types.FragmentMetadata
}

// Composition is the immutable type-set key of an archetype. Two archetypes
// are equivalent iff their compositions match exactly.
type Composition struct {
	fragments      []types.FragmentMetadata
	tags           []types.FragmentMetadata
	chunkFragments []types.FragmentMetadata
	shared         []types.FragmentMetadata
	constShared    []types.FragmentMetadata
	key            string
}

// NewComposition validates and canonicalizes a composition descriptor. Every
// fragment group is sorted by FragmentID so that layout computation and
// equivalence checks are deterministic.
func NewComposition(cfg CompositionConfig) (*Composition, error) {
	comp := &Composition{
		fragments:      sortedByID(cfg.Fragments),
		tags:           sortedByID(cfg.Tags),
		chunkFragments: sortedByID(cfg.ChunkFragments),
		shared:         sortedByID(cfg.Shared),
		constShared:    sortedByID(cfg.ConstShared),
	}

	seen := map[types.FragmentID]string{}
	for _, group := range [][]types.FragmentMetadata{
		comp.fragments, comp.tags, comp.chunkFragments, comp.shared, comp.constShared,
	} {
		for _, md := range group {
			if md.ID() == 0 {
				return nil, eris.Wrapf(ErrInvalidComposition, "fragment %q has not been registered", md.Name())
			}
			if prev, ok := seen[md.ID()]; ok {
				return nil, eris.Wrapf(ErrInvalidComposition,
					"fragment %q appears more than once (already used by %q)", md.Name(), prev)
			}
			seen[md.ID()] = md.Name()
		}
	}
	for _, md := range comp.fragments {
		if md.Size() == 0 {
			return nil, eris.Wrapf(ErrInvalidComposition,
				"zero-size fragment %q must be declared as a tag", md.Name())
		}
	}
	for _, md := range comp.tags {
		if md.Size() != 0 {
			return nil, eris.Wrapf(ErrInvalidComposition,
				"tag %q must be a zero-size struct", md.Name())
		}
	}

	comp.key = compositionKey(comp)
	return comp, nil
}

func sortedByID(metas []types.FragmentMetadata) []types.FragmentMetadata {
	out := make([]types.FragmentMetadata, len(metas))
	copy(out, metas)
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func compositionKey(c *Composition) string {
	var sb strings.Builder
	writeGroup := func(prefix string, group []types.FragmentMetadata) {
		sb.WriteString(prefix)
		for i, md := range group {
			if i != 0 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(&sb, "%d", md.ID())
		}
	}
	writeGroup("f:", c.fragments)
	writeGroup("|t:", c.tags)
	writeGroup("|c:", c.chunkFragments)
	writeGroup("|s:", c.shared)
	writeGroup("|k:", c.constShared)
	return sb.String()
}

// Key returns the canonical string form of the composition, suitable for use
// as a map key. Equal keys imply equivalent compositions.
func (c *Composition) Key() string { return c.key }

// Equivalent reports whether two compositions declare exactly the same types
// in the same roles.
func (c *Composition) Equivalent(other *Composition) bool {
	return other != nil && c.key == other.key
}

// Fragments returns the per-entity fragment types, sorted by FragmentID.
func (c *Composition) Fragments() []types.FragmentMetadata { return c.fragments }

// Tags returns the tag types, sorted by FragmentID.
func (c *Composition) Tags() []types.FragmentMetadata { return c.tags }

// ChunkFragments returns the per-chunk fragment types, sorted by FragmentID.
func (c *Composition) ChunkFragments() []types.FragmentMetadata { return c.chunkFragments }

// Shared returns the shared fragment types, sorted by FragmentID.
func (c *Composition) Shared() []types.FragmentMetadata { return c.shared }

// ConstShared returns the const-shared fragment types, sorted by FragmentID.
func (c *Composition) ConstShared() []types.FragmentMetadata { return c.constShared }

// HasTag reports whether the composition declares the given tag type.
func (c *Composition) HasTag(id types.FragmentID) bool {
	return containsID(c.tags, id)
}

// ChunkFragmentIndex returns the position of the given type in the chunk
// fragment group, or -1.
func (c *Composition) ChunkFragmentIndex(id types.FragmentID) int {
	return indexOfID(c.chunkFragments, id)
}

// HasShared reports whether the composition declares the given type as shared.
func (c *Composition) HasShared(id types.FragmentID) bool {
	return containsID(c.shared, id)
}

// HasConstShared reports whether the composition declares the given type as
// const-shared.
func (c *Composition) HasConstShared(id types.FragmentID) bool {
	return containsID(c.constShared, id)
}

// SharedTypeIDs returns the sorted union of shared and const-shared type IDs.
// Every SharedValues set attached to a chunk of this archetype must carry
// exactly these types.
func (c *Composition) SharedTypeIDs() []types.FragmentID {
	ids := make([]types.FragmentID, 0, len(c.shared)+len(c.constShared))
	for _, md := range c.shared {
		ids = append(ids, md.ID())
	}
	for _, md := range c.constShared {
		ids = append(ids, md.ID())
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// FragmentSetEqual reports whether two compositions have byte-identical
// per-entity fragment sets. Such compositions can share one layout even when
// their tags or shared types differ.
func (c *Composition) FragmentSetEqual(other *Composition) bool {
	if len(c.fragments) != len(other.fragments) {
		return false
	}
	for i, md := range c.fragments {
		o := other.fragments[i]
		if md.ID() != o.ID() || md.Size() != o.Size() || md.Align() != o.Align() {
			return false
		}
	}
	return true
}

// String returns a human-readable composition dump.
func (c *Composition) String() string {
	var sb strings.Builder
	sb.WriteString("Composition{")
	writeNames := func(label string, group []types.FragmentMetadata) {
		if len(group) == 0 {
			return
		}
		if sb.Len() > len("Composition{") {
			sb.WriteString(" ")
		}
		sb.WriteString(label)
		sb.WriteString(":[")
		for i, md := range group {
			if i != 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(md.Name())
		}
		sb.WriteString("]")
	}
	writeNames("fragments", c.fragments)
	writeNames("tags", c.tags)
	writeNames("chunk", c.chunkFragments)
	writeNames("shared", c.shared)
	writeNames("constShared", c.constShared)
	sb.WriteString("}")
	return sb.String()
}

func containsID(group []types.FragmentMetadata, id types.FragmentID) bool {
	return indexOfID(group, id) >= 0
}

func indexOfID(group []types.FragmentMetadata, id types.FragmentID) int {
	for i, md := range group {
		if md.ID() == id {
			return i
		}
	}
	return -1
}
