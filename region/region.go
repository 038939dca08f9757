// Package region provides the backing memory behind an arena's managed region. Every type here
// doubles as the region descriptor handed to arena.Arena.SetupRegion.
package region

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/bootarena/memutils/address"
)

// ErrOutOfBounds is returned when a range does not lie entirely within a backing buffer
var ErrOutOfBounds = errors.New("range is outside the backing memory")

// Raw addresses memory directly by absolute address. It is the right backing for firmware
// images where the region is a linker-reserved span that the Go runtime does not own. The
// caller is responsible for every address passed in being writable.
type Raw struct{}

// Clear zeroes size bytes starting at addr
func (Raw) Clear(addr address.Address, size uint) error {
	if size == 0 {
		return nil
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), size)
	for i := range data {
		data[i] = 0
	}
	return nil
}

// Bytes returns a slice over size bytes starting at addr
func (Raw) Bytes(addr address.Address, size uint) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), size), nil
}

// Buffer is a region backed by a byte slice. The slice is kept reachable for as long as the
// Buffer is, so addresses inside it stay valid.
type Buffer struct {
	data  []byte
	start address.Address
}

// NewBuffer allocates a zeroed region of size bytes on the Go heap
func NewBuffer(size uint) (*Buffer, error) {
	if size == 0 {
		return nil, errors.New("region size must be non-zero")
	}
	return Wrap(make([]byte, size)), nil
}

// Wrap creates a Buffer over existing memory. data must not be empty.
func Wrap(data []byte) *Buffer {
	if len(data) == 0 {
		panic("attempted to wrap an empty byte slice as a region")
	}
	return &Buffer{
		data:  data,
		start: address.Of(data),
	}
}

// Start returns the address of the first byte of the region
func (b *Buffer) Start() address.Address { return b.start }

// Size returns the size of the region in bytes
func (b *Buffer) Size() uint { return uint(len(b.data)) }

func (b *Buffer) offset(addr address.Address, size uint) (uint, error) {
	offset, ok := addr.Sub(b.start)
	if !ok {
		return 0, errors.Wrapf(ErrOutOfBounds, "address %s is below region start %s", addr, b.start)
	}
	end, ok := address.Address(offset).Add(size)
	if !ok || uint(end) > b.Size() {
		return 0, errors.Wrapf(ErrOutOfBounds, "range %s+%d exceeds region %s+%d", addr, size, b.start, b.Size())
	}
	return offset, nil
}

// Clear zeroes size bytes starting at addr, which must lie within the buffer
func (b *Buffer) Clear(addr address.Address, size uint) error {
	offset, err := b.offset(addr, size)
	if err != nil {
		return err
	}
	data := b.data[offset : offset+size]
	for i := range data {
		data[i] = 0
	}
	return nil
}

// Bytes returns the size bytes starting at addr, which must lie within the buffer
func (b *Buffer) Bytes(addr address.Address, size uint) ([]byte, error) {
	offset, err := b.offset(addr, size)
	if err != nil {
		return nil, err
	}
	return b.data[offset : offset+size : offset+size], nil
}
