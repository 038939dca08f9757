//go:build unix

package region

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// Mapped is a region backed by an anonymous private memory mapping outside the Go heap
type Mapped struct {
	*Buffer
	mapping []byte
}

// Map reserves size bytes of zeroed, page-backed memory
func Map(size uint) (*Mapped, error) {
	if size == 0 {
		return nil, errors.New("region size must be non-zero")
	}
	if size > uint(^uint(0)>>1) {
		return nil, errors.Newf("region too large to map (%d bytes)", size)
	}

	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to map %d bytes", size)
	}

	return &Mapped{
		Buffer:  Wrap(data),
		mapping: data,
	}, nil
}

// Close releases the mapping. Every address inside the region is invalid afterward.
func (m *Mapped) Close() error {
	if m.mapping == nil {
		return nil
	}
	err := unix.Munmap(m.mapping)
	if errors.Is(err, unix.EINVAL) {
		err = nil
	}
	m.mapping = nil
	return err
}
