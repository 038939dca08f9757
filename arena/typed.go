package arena

import (
	"unsafe"

	"github.com/cockroachdb/errors"
)

// Slice allocates zeroed storage for count values of T, aligned for T, and returns it as a
// slice. T must not contain Go pointers: the garbage collector does not scan arena memory.
func Slice[T any](a *Arena, count uint) ([]T, error) {
	var zero T
	size := uint(unsafe.Sizeof(zero))
	alignment := uint(unsafe.Alignof(zero))

	addr, err := a.AllocateZeroed(count, size, alignment)
	if err != nil {
		return nil, err
	}

	data, err := a.mem().Bytes(addr, count*size)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to access allocation at %s", addr), ErrBackingMemory)
	}

	return unsafe.Slice((*T)(unsafe.Pointer(&data[0])), count), nil
}

// Value allocates zeroed storage for a single T, aligned for T. T must not contain Go pointers:
// the garbage collector does not scan arena memory.
func Value[T any](a *Arena) (*T, error) {
	values, err := Slice[T](a, 1)
	if err != nil {
		return nil, err
	}
	return &values[0], nil
}
