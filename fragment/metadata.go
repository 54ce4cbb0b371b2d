package fragment

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/invopop/jsonschema"
	"github.com/rotisserie/eris"
	"github.com/wI2L/jsondiff"

	"github.com/fragforge/fragstore/codec"
	"github.com/fragforge/fragstore/types"
)

// Interface guard
var _ types.FragmentMetadata = (*fragmentMetadata[types.Fragment])(nil)

var ErrFragmentSchemaMismatch = eris.New("fragment schema does not match target schema")

// Option is a type that can be passed to NewFragmentMetadata to augment the
// creation of the fragment metadata.
type Option[T types.Fragment] func(f *fragmentMetadata[T])

// fragmentMetadata represents a type of fragment. It carries the byte-level
// layout facts (size, alignment) and the type-erased construct/copy/destroy
// operations the archetype layer dispatches through when it manipulates raw
// chunk columns.
type fragmentMetadata[T types.Fragment] struct {
	isIDSet    bool
	id         types.FragmentID
	fragType   reflect.Type
	name       string
	schema     []byte
	size       int
	align      int
	defaultVal *T
	initFn     func(*T)
	dropFn     func(*T)
}

// NewFragmentMetadata creates metadata for the fragment type T. The size and
// alignment of T are captured once via reflection; zero-size struct types act
// as tags and never get a chunk column.
func NewFragmentMetadata[T types.Fragment](opts ...Option[T]) (
	types.FragmentMetadata, error,
) {
	var t T
	fragType := reflect.TypeOf(t)
	if fragType.Kind() != reflect.Struct {
		return nil, eris.Errorf("fragment %q must be a struct type, got %s", t.Name(), fragType.Kind())
	}

	schema, err := jsonschema.ReflectFromType(fragType).MarshalJSON()
	if err != nil {
		return nil, eris.Wrap(err, "fragment must be json serializable")
	}

	fragMetadata := &fragmentMetadata[T]{
		fragType: fragType,
		name:     t.Name(),
		schema:   schema,
		size:     int(fragType.Size()),
		align:    fragType.Align(),
	}
	for _, opt := range opts {
		opt(fragMetadata)
	}

	return fragMetadata, nil
}

func (f *fragmentMetadata[T]) GetSchema() []byte {
	return f.schema
}

// SetID sets this fragment's ID. It must be unique across the engine.
func (f *fragmentMetadata[T]) SetID(id types.FragmentID) error {
	if f.isIDSet {
		// Fragments are registered one time on startup. In tests it is often
		// useful to reuse the same fragment across engines, so re-setting the
		// same ID is tolerated.
		if id == f.id {
			return nil
		}
		return eris.Errorf("id for fragment %v is already set to %v, cannot change to %v", f, f.id, id)
	}
	f.id = id
	f.isIDSet = true
	return nil
}

// String returns the fragment type name.
func (f *fragmentMetadata[T]) String() string {
	return f.name
}

// Name returns the fragment type name.
func (f *fragmentMetadata[T]) Name() string {
	return f.name
}

// ID returns the fragment type id.
func (f *fragmentMetadata[T]) ID() types.FragmentID {
	return f.id
}

func (f *fragmentMetadata[T]) Size() int {
	return f.size
}

func (f *fragmentMetadata[T]) Align() int {
	return f.align
}

// at returns a typed pointer to the record at slot. Callers guarantee the
// column is large enough; the slice expression below bounds-checks anyway.
func (f *fragmentMetadata[T]) at(column []byte, slot int) *T {
	return (*T)(unsafe.Pointer(&column[slot*f.size : (slot+1)*f.size][0]))
}

func (f *fragmentMetadata[T]) InitAt(column []byte, slot, count int) {
	if f.size == 0 {
		return
	}
	var zero T
	for i := slot; i < slot+count; i++ {
		p := f.at(column, i)
		if f.defaultVal != nil {
			*p = *f.defaultVal
		} else {
			// The slot may hold stale bytes from a previous occupant.
			*p = zero
		}
		if f.initFn != nil {
			f.initFn(p)
		}
	}
}

func (f *fragmentMetadata[T]) CopyAt(dst []byte, dstSlot int, src []byte, srcSlot, count int) {
	if f.size == 0 || count == 0 {
		return
	}
	copy(dst[dstSlot*f.size:(dstSlot+count)*f.size], src[srcSlot*f.size:(srcSlot+count)*f.size])
}

func (f *fragmentMetadata[T]) DropAt(column []byte, slot, count int) {
	if f.size == 0 || f.dropFn == nil {
		return
	}
	for i := slot; i < slot+count; i++ {
		f.dropFn(f.at(column, i))
	}
}

func (f *fragmentMetadata[T]) Encode(v any) ([]byte, error) {
	return codec.Encode(v)
}

func (f *fragmentMetadata[T]) Decode(bz []byte) (any, error) {
	return codec.Decode[T](bz)
}

func (f *fragmentMetadata[T]) ValidateAgainstSchema(targetSchema []byte) error {
	diff, err := jsondiff.CompareJSON(f.schema, targetSchema)
	if err != nil {
		return eris.Wrap(err, "failed to compare fragment schema")
	}

	if diff.String() != "" {
		return eris.Wrap(ErrFragmentSchemaMismatch, diff.String())
	}

	return nil
}

func (f *fragmentMetadata[T]) validateDefaultVal() {
	if !reflect.TypeOf(*f.defaultVal).AssignableTo(f.fragType) {
		panic(fmt.Sprintf("default value is not assignable to fragment type: %s", f.name))
	}
}

// WithDefault sets the value new records are constructed with, replacing the
// zero value.
func WithDefault[T types.Fragment](defaultVal T) Option[T] {
	return func(f *fragmentMetadata[T]) {
		f.defaultVal = &defaultVal
		f.validateDefaultVal()
	}
}

// WithInit registers a hook that runs after each record is constructed in
// place. Useful for tests that count constructions.
func WithInit[T types.Fragment](fn func(*T)) Option[T] {
	return func(f *fragmentMetadata[T]) {
		f.initFn = fn
	}
}

// WithDrop registers a hook that runs when a record is destructed in place.
func WithDrop[T types.Fragment](fn func(*T)) Option[T] {
	return func(f *fragmentMetadata[T]) {
		f.dropFn = fn
	}
}
