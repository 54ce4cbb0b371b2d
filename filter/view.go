package filter

import (
	"fmt"
	"unsafe"
)

// Slice reinterprets requirement i's bound column as a typed slice over the
// bound range. It returns nil for an absent optional requirement. T must be
// the fragment type the requirement was built from.
func Slice[T any](b *Binding, i int) []T {
	col := b.columns[i]
	if col == nil {
		return nil
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size != b.mapping.reqs[i].Metadata.Size() {
		panic(fmt.Sprintf("filter: %T does not match fragment %q", zero, b.mapping.reqs[i].Metadata.Name()))
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&col[0])), b.count)
}

// ChunkValue reinterprets requirement i's bound chunk fragment as a typed
// pointer. The second return is false for an absent optional requirement.
func ChunkValue[T any](b *Binding, i int) (*T, bool) {
	col := b.columns[i]
	if col == nil {
		return nil, false
	}
	var zero T
	if int(unsafe.Sizeof(zero)) != b.mapping.reqs[i].Metadata.Size() {
		panic(fmt.Sprintf("filter: %T does not match fragment %q", zero, b.mapping.reqs[i].Metadata.Name()))
	}
	return (*T)(unsafe.Pointer(&col[0])), true
}

// SharedValue returns the decoded shared value for requirement i. The second
// return is false for an absent optional requirement.
func SharedValue[T any](b *Binding, i int) (T, bool) {
	v := b.shared[i]
	if v == nil {
		var zero T
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		var zero T
		panic(fmt.Sprintf("filter: shared value for %q is %T, not %T",
			b.mapping.reqs[i].Metadata.Name(), v, zero))
	}
	return typed, ok
}
