package arena

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/pkg/errors"
)

var (
	// ErrAlreadyInitialized is returned by Setup once the arena already manages a region
	ErrAlreadyInitialized = errors.New("arena is already initialized")
	// ErrInvalidRegion is returned by Setup for a null start address, a zero size, or a region
	// that overflows the address space
	ErrInvalidRegion = errors.New("invalid arena region")

	// ErrPreconditionViolated is returned by allocations with a zero count, element size or
	// alignment, a non-power-of-two alignment, or an arena that has not been set up
	ErrPreconditionViolated = errors.New("allocation precondition violated")
	// ErrSizeOverflow is returned by allocations whose count*elementSize does not fit in a uint
	ErrSizeOverflow = errors.New("allocation size overflows")
	// ErrAlignmentOverflow is returned by allocations when rounding the cursor up to the requested
	// alignment wraps past the top of the address space
	ErrAlignmentOverflow = errors.New("aligned allocation address overflows")
	// ErrCapacityExhausted is returned by allocations that do not fit in the remaining region
	ErrCapacityExhausted = errors.New("arena capacity exhausted")
	// ErrBackingMemory is returned by zeroing allocations when the arena's Memory cannot access
	// the allocated range
	ErrBackingMemory = errors.New("backing memory rejected allocation range")
)

var allocationFailures = []error{
	ErrPreconditionViolated,
	ErrSizeOverflow,
	ErrAlignmentOverflow,
	ErrCapacityExhausted,
	ErrBackingMemory,
}

// IsAllocationFailure returns true if err originates from a failed allocation. Allocation
// failures leave the caller without the storage it asked for; bring-up code is expected to treat
// them as fatal.
func IsAllocationFailure(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range allocationFailures {
		if cerrors.Is(err, target) {
			return true
		}
	}
	return false
}
