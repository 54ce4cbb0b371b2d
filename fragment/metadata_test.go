package fragment_test

import (
	"testing"
	"unsafe"

	"github.com/fragforge/fragstore/assert"
	"github.com/fragforge/fragstore/fragment"
	"github.com/fragforge/fragstore/types"
)

type Health struct {
	Current int32
	Max     int32
}

func (Health) Name() string { return "health" }

type Padded struct {
	Flag  bool
	Value float64
}

func (Padded) Name() string { return "padded" }

type Marker struct{}

func (Marker) Name() string { return "marker" }

func mustMetadata[T types.Fragment](t *testing.T, opts ...fragment.Option[T]) types.FragmentMetadata {
	t.Helper()
	md, err := fragment.NewFragmentMetadata[T](opts...)
	assert.NilError(t, err)
	return md
}

func TestMetadataCapturesSizeAndAlignment(t *testing.T) {
	md := mustMetadata[Padded](t)
	assert.Equal(t, int(unsafe.Sizeof(Padded{})), md.Size())
	assert.Equal(t, int(unsafe.Alignof(Padded{})), md.Align())
	assert.Equal(t, "padded", md.Name())
}

func TestMetadataZeroSizeTag(t *testing.T) {
	md := mustMetadata[Marker](t)
	assert.Equal(t, 0, md.Size())
}

func TestSetIDIsWriteOnce(t *testing.T) {
	md := mustMetadata[Health](t)
	assert.NilError(t, md.SetID(3))
	assert.Equal(t, types.FragmentID(3), md.ID())

	// Re-setting the same ID is tolerated, changing it is not.
	assert.NilError(t, md.SetID(3))
	assert.ErrorContains(t, md.SetID(4), "already set")
}

func TestInitAtWritesDefaultValue(t *testing.T) {
	md := mustMetadata[Health](t, fragment.WithDefault(Health{Current: 100, Max: 100}))
	column := make([]byte, 4*md.Size())

	md.InitAt(column, 1, 2)

	read := func(slot int) Health {
		return *(*Health)(unsafe.Pointer(&column[slot*md.Size()]))
	}
	assert.Equal(t, Health{}, read(0))
	assert.Equal(t, Health{Current: 100, Max: 100}, read(1))
	assert.Equal(t, Health{Current: 100, Max: 100}, read(2))
	assert.Equal(t, Health{}, read(3))
}

func TestInitAtZeroesStaleBytes(t *testing.T) {
	md := mustMetadata[Health](t)
	column := make([]byte, 2*md.Size())
	for i := range column {
		column[i] = 0xff
	}

	md.InitAt(column, 0, 2)

	for i, b := range column {
		assert.Equal(t, byte(0), b, "byte %d not zeroed", i)
	}
}

func TestCopyAtIsBitExact(t *testing.T) {
	md := mustMetadata[Padded](t)
	src := make([]byte, 2*md.Size())
	dst := make([]byte, 2*md.Size())
	*(*Padded)(unsafe.Pointer(&src[md.Size()])) = Padded{Flag: true, Value: 2.75}

	md.CopyAt(dst, 0, src, 1, 1)

	got := *(*Padded)(unsafe.Pointer(&dst[0]))
	assert.Equal(t, Padded{Flag: true, Value: 2.75}, got)
}

func TestLifecycleHooks(t *testing.T) {
	inits, drops := 0, 0
	md := mustMetadata[Health](t,
		fragment.WithInit(func(h *Health) { h.Current = 1; inits++ }),
		fragment.WithDrop(func(h *Health) { drops++ }),
	)
	column := make([]byte, 3*md.Size())

	md.InitAt(column, 0, 3)
	assert.Equal(t, 3, inits)
	got := *(*Health)(unsafe.Pointer(&column[0]))
	assert.Equal(t, int32(1), got.Current)

	md.DropAt(column, 1, 2)
	assert.Equal(t, 2, drops)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	md := mustMetadata[Health](t)
	bz, err := md.Encode(Health{Current: 7, Max: 10})
	assert.NilError(t, err)

	v, err := md.Decode(bz)
	assert.NilError(t, err)
	assert.Equal(t, Health{Current: 7, Max: 10}, v)
}

func TestValidateAgainstSchema(t *testing.T) {
	a := mustMetadata[Health](t)
	b := mustMetadata[Health](t)
	other := mustMetadata[Padded](t)

	assert.NilError(t, a.ValidateAgainstSchema(b.GetSchema()))
	assert.ErrorIs(t, a.ValidateAgainstSchema(other.GetSchema()), fragment.ErrFragmentSchemaMismatch)
}

func TestManagerAssignsDenseIDs(t *testing.T) {
	m := fragment.NewManager()
	health := mustMetadata[Health](t)
	padded := mustMetadata[Padded](t)

	assert.NilError(t, m.RegisterFragment(health))
	assert.NilError(t, m.RegisterFragment(padded))
	assert.Equal(t, types.FragmentID(1), health.ID())
	assert.Equal(t, types.FragmentID(2), padded.ID())
	assert.Len(t, m.GetFragments(), 2)
}

func TestManagerReusesIDForIdenticalReRegistration(t *testing.T) {
	m := fragment.NewManager()
	first := mustMetadata[Health](t)
	second := mustMetadata[Health](t)

	assert.NilError(t, m.RegisterFragment(first))
	assert.NilError(t, m.RegisterFragment(second))
	assert.Equal(t, first.ID(), second.ID())
	assert.Len(t, m.GetFragments(), 1)
}

func TestManagerLookupByName(t *testing.T) {
	m := fragment.NewManager()
	health := mustMetadata[Health](t)
	assert.NilError(t, m.RegisterFragment(health))

	got, err := m.GetFragmentByName("health")
	assert.NilError(t, err)
	assert.Equal(t, health, got)

	_, err = m.GetFragmentByName("missing")
	assert.ErrorIs(t, err, fragment.ErrFragmentNotRegistered)
}
