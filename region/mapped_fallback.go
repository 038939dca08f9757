//go:build !unix

package region

import "github.com/cockroachdb/errors"

// Mapped is a region backed by heap memory on platforms without anonymous mappings
type Mapped struct {
	*Buffer
}

// Map reserves size bytes of zeroed memory
func Map(size uint) (*Mapped, error) {
	buffer, err := NewBuffer(size)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to reserve %d bytes", size)
	}
	return &Mapped{Buffer: buffer}, nil
}

// Close releases the region. Every address inside the region is invalid afterward.
func (m *Mapped) Close() error {
	return nil
}
