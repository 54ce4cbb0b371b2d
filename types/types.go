package types

// EntityID is the opaque identifier of an entity. IDs are allocated and
// recycled by the external entity manager; the storage engine only records
// which slot an ID currently occupies.
type EntityID uint64

// FragmentID is the dense identifier assigned to a fragment type when it is
// registered. It must only be set once per fragment metadata.
type FragmentID int

// ArchetypeID is the identifier of an archetype within an Engine.
type ArchetypeID int

// ArchetypeIndex is the absolute slot of an entity inside one archetype,
// encoded as chunkIndex*capacity + offsetInChunk. It is only meaningful
// relative to the archetype that produced it and is invalidated by any
// structural mutation of that archetype.
type ArchetypeIndex int

// EntityIDSize is the per-entity byte cost of the entity-id column. It is
// charged against the chunk byte budget when computing chunk capacity.
const EntityIDSize = 8
