package archetype

import (
	"bytes"
	"encoding/binary"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/rotisserie/eris"

	"github.com/fragforge/fragstore/types"
)

// SharedValue pairs a fragment type with one value of that type. The value is
// canonicalized to bytes when the pair enters a SharedValues set.
type SharedValue struct {
	Metadata types.FragmentMetadata
	Value    any
}

// SharedValues is an immutable, hashable set of (type, value) pairs holding
// data common to every entity in a chunk group. Two sets are equivalent iff
// they carry the same types with bit-equal canonical encodings.
type SharedValues struct {
	metas   []types.FragmentMetadata
	encoded [][]byte
	hash    uint64
}

// NewSharedValues canonicalizes the given pairs: values are encoded through
// their fragment metadata, sorted by FragmentID, and hashed. Duplicate types
// are rejected.
func NewSharedValues(pairs ...SharedValue) (*SharedValues, error) {
	sorted := make([]SharedValue, len(pairs))
	copy(sorted, pairs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Metadata.ID() < sorted[j].Metadata.ID()
	})

	s := &SharedValues{
		metas:   make([]types.FragmentMetadata, 0, len(sorted)),
		encoded: make([][]byte, 0, len(sorted)),
	}
	digest := xxhash.New()
	var idBuf [8]byte
	for i, pair := range sorted {
		if i > 0 && pair.Metadata.ID() == sorted[i-1].Metadata.ID() {
			return nil, eris.Wrapf(ErrDuplicateSharedValue, "fragment %q", pair.Metadata.Name())
		}
		bz, err := pair.Metadata.Encode(pair.Value)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to encode shared value for fragment %q", pair.Metadata.Name())
		}
		s.metas = append(s.metas, pair.Metadata)
		s.encoded = append(s.encoded, bz)

		binary.LittleEndian.PutUint64(idBuf[:], uint64(pair.Metadata.ID()))
		_, _ = digest.Write(idBuf[:])
		_, _ = digest.Write(bz)
	}
	s.hash = digest.Sum64()
	return s, nil
}

// EmptySharedValues returns the canonical empty set, used by archetypes that
// declare no shared fragment types.
func EmptySharedValues() *SharedValues {
	s, _ := NewSharedValues()
	return s
}

// Hash returns the xxhash digest of the canonical encoding. Equivalent sets
// always hash equal; hash-equal sets are confirmed with Equivalent.
func (s *SharedValues) Hash() uint64 { return s.hash }

// Len returns the number of (type, value) pairs in the set.
func (s *SharedValues) Len() int { return len(s.metas) }

// Equivalent reports whether both sets contain the same types with bit-equal
// canonical values.
func (s *SharedValues) Equivalent(other *SharedValues) bool {
	if other == nil || len(s.metas) != len(other.metas) {
		return false
	}
	for i := range s.metas {
		if s.metas[i].ID() != other.metas[i].ID() {
			return false
		}
		if !bytes.Equal(s.encoded[i], other.encoded[i]) {
			return false
		}
	}
	return true
}

// TypeIDs returns the sorted fragment type IDs present in the set.
func (s *SharedValues) TypeIDs() []types.FragmentID {
	ids := make([]types.FragmentID, len(s.metas))
	for i, md := range s.metas {
		ids[i] = md.ID()
	}
	return ids
}

// Value decodes and returns the value for the given fragment type.
func (s *SharedValues) Value(id types.FragmentID) (any, bool) {
	for i, md := range s.metas {
		if md.ID() == id {
			v, err := md.Decode(s.encoded[i])
			if err != nil {
				// The bytes came from Encode at construction; a decode
				// failure means the metadata itself is broken.
				panic(eris.Wrapf(err, "failed to decode shared value for fragment %q", md.Name()))
			}
			return v, true
		}
	}
	return nil, false
}

// matchesTypes reports whether the set carries exactly the given sorted type
// IDs, no more and no fewer.
func (s *SharedValues) matchesTypes(required []types.FragmentID) bool {
	if len(s.metas) != len(required) {
		return false
	}
	for i, md := range s.metas {
		if md.ID() != required[i] {
			return false
		}
	}
	return true
}

// String returns a human-readable dump of the set.
func (s *SharedValues) String() string {
	var sb strings.Builder
	sb.WriteString("SharedValues{")
	for i, md := range s.metas {
		if i != 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(md.Name())
		sb.WriteString("=")
		sb.Write(s.encoded[i])
	}
	sb.WriteString("}")
	return sb.String()
}
