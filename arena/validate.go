package arena

import (
	"github.com/pkg/errors"
	"github.com/vkngwrapper/bootarena/memutils/address"
)

// Validate performs internal consistency checks on the arena. When the arena is functioning
// correctly, it should not be possible for this method to return an error. Validation is
// proportional to the number of tracked allocations when CreateTrackAllocations is present.
func (a *Arena) Validate() error {
	if !a.initialized {
		if a.regionStart != address.Null || a.regionEnd != address.Null || a.freeCursor != address.Null {
			return errors.New("an uninitialized arena has region bounds")
		}
		if a.stats.AllocationCount != 0 {
			return errors.Errorf("an uninitialized arena has %d allocations", a.stats.AllocationCount)
		}
		return nil
	}

	if a.regionStart.IsNull() {
		return errors.New("the region starts at the null address")
	}

	if a.freeCursor < a.regionStart || a.freeCursor > a.regionEnd {
		return errors.Errorf("the cursor %s is outside the region %s-%s", a.freeCursor, a.regionStart, a.regionEnd)
	}

	regionSize, _ := a.regionEnd.Sub(a.regionStart)
	if a.stats.RegionBytes != uint64(regionSize) {
		return errors.Errorf("the statistics report %d region bytes, but the region is %d bytes", a.stats.RegionBytes, regionSize)
	}

	used := a.UsedBytes()
	if a.stats.AllocationBytes+a.stats.PaddingBytes != uint64(used) {
		return errors.Errorf("the statistics account for %d allocated and %d padding bytes, but the cursor has advanced %d bytes",
			a.stats.AllocationBytes, a.stats.PaddingBytes, used)
	}

	if a.tracker == nil {
		return nil
	}

	if a.tracker.Count() != a.stats.AllocationCount {
		return errors.Errorf("%d allocations are tracked, but the statistics report %d", a.tracker.Count(), a.stats.AllocationCount)
	}

	expectedStart := a.regionStart
	for _, alloc := range a.tracker.Sorted() {
		if !alloc.Address.IsAligned(alloc.Alignment) {
			return errors.Errorf("the allocation at %s is not aligned to %d", alloc.Address, alloc.Alignment)
		}
		if alloc.Address-address.Address(alloc.Padding) != expectedStart {
			return errors.Errorf("the allocation at %s with %d bytes of padding does not follow the previous allocation ending at %s",
				alloc.Address, alloc.Padding, expectedStart)
		}
		expectedStart = alloc.End()
	}

	if expectedStart != a.freeCursor {
		return errors.Errorf("the last allocation ends at %s, but the cursor is %s", expectedStart, a.freeCursor)
	}

	return nil
}
