package types

import (
	"github.com/invopop/jsonschema"
	"github.com/rotisserie/eris"
	"github.com/wI2L/jsondiff"
)

// Fragment is the interface the user needs to implement to declare a new
// fragment type. Fragments must be plain value structs: the engine stores
// them in raw byte columns and moves them with bulk copies, so they must not
// contain pointers, slices, maps, or other GC-managed references.
type Fragment interface {
	// Name returns the name of the fragment.
	Name() string
}

// FragmentMetadata wraps a user-defined Fragment struct with the type-erased
// operations the engine needs to lay out, construct, move, and destroy
// records of that type inside chunk columns without knowing the Go type.
//
// Column arguments are raw byte slices in which record i occupies the bytes
// [i*Size(), (i+1)*Size()).
type FragmentMetadata interface { //revive:disable-line:exported
	// SetID sets the FragmentID of this fragment. It must only be set once.
	SetID(FragmentID) error
	// ID returns the FragmentID of the fragment.
	ID() FragmentID

	// Size returns the byte size of one record. Tag fragments have size 0.
	Size() int
	// Align returns the required byte alignment of a record.
	Align() int

	// InitAt default-constructs count records in place starting at slot.
	InitAt(column []byte, slot, count int)
	// CopyAt bit-copies count records from srcSlot in src to dstSlot in dst.
	// The two columns may belong to chunks of different archetypes.
	CopyAt(dst []byte, dstSlot int, src []byte, srcSlot, count int)
	// DropAt destructs count records in place starting at slot. The bytes are
	// considered garbage afterwards.
	DropAt(column []byte, slot, count int)

	// Encode marshals a fragment value to its canonical byte form.
	Encode(any) ([]byte, error)
	// Decode unmarshals the canonical byte form back into a fragment value.
	Decode([]byte) (any, error)
	// GetSchema returns the JSON schema captured at registration time.
	GetSchema() []byte
	// ValidateAgainstSchema compares this fragment's schema with a previously
	// captured one and errors on any difference.
	ValidateAgainstSchema(jsonSchemaBytes []byte) error

	Fragment
}

// SerializeFragmentSchema captures the JSON schema of a fragment struct.
func SerializeFragmentSchema(fragment Fragment) ([]byte, error) {
	fragmentSchema := jsonschema.Reflect(fragment)
	schema, err := fragmentSchema.MarshalJSON()
	if err != nil {
		return nil, eris.Wrap(err, "fragment must be json serializable")
	}
	return schema, nil
}

// IsFragmentValid reports whether the given fragment struct still matches a
// previously captured schema.
func IsFragmentValid(fragment Fragment, jsonSchemaBytes []byte) (bool, error) {
	fragmentSchema := jsonschema.Reflect(fragment)
	fragmentSchemaBytes, err := fragmentSchema.MarshalJSON()
	if err != nil {
		return false, eris.Wrap(err, "")
	}
	return IsSchemaValid(fragmentSchemaBytes, jsonSchemaBytes)
}

func IsSchemaValid(jsonSchemaBytes1 []byte, jsonSchemaBytes2 []byte) (bool, error) {
	patch, err := jsondiff.CompareJSON(jsonSchemaBytes1, jsonSchemaBytes2)
	if err != nil {
		return false, eris.Wrap(err, "")
	}
	return patch.String() == "", nil
}
