package arena

import (
	"sort"

	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/bootarena/memutils/address"
)

// Allocation describes a single successful allocation recorded by an arena created with
// CreateTrackAllocations
type Allocation struct {
	// Address is the first byte of the allocation
	Address address.Address
	// Size is count*elementSize
	Size uint
	// Padding is the number of bytes skipped before Address to satisfy Alignment
	Padding uint
	Alignment uint
	// Zeroed is true if the allocation came from AllocateZeroed or AllocateZeroedDefault
	Zeroed bool
}

// End returns the address one past the last byte of the allocation
func (a Allocation) End() address.Address {
	return a.Address + address.Address(a.Size)
}

type allocationTracker struct {
	byAddress *swiss.Map[address.Address, Allocation]
	last      address.Address
}

func newAllocationTracker() *allocationTracker {
	return &allocationTracker{
		byAddress: swiss.NewMap[address.Address, Allocation](42),
	}
}

func (t *allocationTracker) Add(alloc Allocation) {
	t.byAddress.Put(alloc.Address, alloc)
	t.last = alloc.Address
}

func (t *allocationTracker) Count() int {
	return t.byAddress.Count()
}

func (t *allocationTracker) Sorted() []Allocation {
	allocs := make([]Allocation, 0, t.byAddress.Count())
	t.byAddress.Iter(func(_ address.Address, alloc Allocation) bool {
		allocs = append(allocs, alloc)
		return false
	})
	sort.Slice(allocs, func(i, j int) bool {
		return allocs[i].Address < allocs[j].Address
	})
	return allocs
}

// Lookup returns the allocation that begins at addr. ok is false if the arena was not created
// with CreateTrackAllocations or no allocation begins at addr.
func (a *Arena) Lookup(addr address.Address) (alloc Allocation, ok bool) {
	if a.tracker == nil {
		return Allocation{}, false
	}
	return a.tracker.byAddress.Get(addr)
}

// LastAllocation returns the most recent allocation. ok is false if the arena was not created
// with CreateTrackAllocations or nothing has been allocated.
func (a *Arena) LastAllocation() (alloc Allocation, ok bool) {
	if a.tracker == nil || a.tracker.Count() == 0 {
		return Allocation{}, false
	}
	return a.tracker.byAddress.Get(a.tracker.last)
}

// VisitAllocations calls visit once for each recorded allocation in address order, stopping at
// the first error. It does nothing unless the arena was created with CreateTrackAllocations.
func (a *Arena) VisitAllocations(visit func(alloc Allocation) error) error {
	if a.tracker == nil {
		return nil
	}
	for _, alloc := range a.tracker.Sorted() {
		if err := visit(alloc); err != nil {
			return err
		}
	}
	return nil
}
