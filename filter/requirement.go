package filter

import (
	"github.com/fragforge/fragstore/types"
)

// Kind says which role a required type plays in the archetype.
type Kind int

const (
	KindFragment Kind = iota
	KindChunkFragment
	KindShared
	KindConstShared
	KindTag
)

// Requirement is one entry of a caller's requirement list: a fragment type
// plus the role it is expected to play. Mandatory requirements the archetype
// cannot satisfy are a caller contract violation; optional ones bind to an
// explicit "absent" marker instead.
type Requirement struct {
	Metadata types.FragmentMetadata
	Kind     Kind
	Optional bool
}

// Fragment requires a per-entity fragment column.
func Fragment(md types.FragmentMetadata) Requirement {
	return Requirement{Metadata: md, Kind: KindFragment}
}

// ChunkFragment requires a per-chunk fragment value.
func ChunkFragment(md types.FragmentMetadata) Requirement {
	return Requirement{Metadata: md, Kind: KindChunkFragment}
}

// Shared requires a shared value.
func Shared(md types.FragmentMetadata) Requirement {
	return Requirement{Metadata: md, Kind: KindShared}
}

// ConstShared requires a const-shared value.
func ConstShared(md types.FragmentMetadata) Requirement {
	return Requirement{Metadata: md, Kind: KindConstShared}
}

// Tag requires a tag to be present on the archetype.
func Tag(md types.FragmentMetadata) Requirement {
	return Requirement{Metadata: md, Kind: KindTag}
}

// AsOptional marks the requirement optional: absence binds to the "absent"
// marker instead of failing the mapping.
func (r Requirement) AsOptional() Requirement {
	r.Optional = true
	return r
}
