package memutils

import "math"

// Statistics holds the basic counters for a managed region. Padding bytes are the bytes skipped
// to satisfy alignment and are neither allocated nor reusable. Byte counters are uint64 so that a
// region covering most of the address space is still reported correctly.
type Statistics struct {
	RegionCount     int
	RegionBytes     uint64
	AllocationCount int
	AllocationBytes uint64
	PaddingBytes    uint64
}

func (s *Statistics) Clear() {
	s.RegionCount = 0
	s.RegionBytes = 0
	s.AllocationCount = 0
	s.AllocationBytes = 0
	s.PaddingBytes = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.RegionCount += other.RegionCount
	s.RegionBytes += other.RegionBytes
	s.AllocationCount += other.AllocationCount
	s.AllocationBytes += other.AllocationBytes
	s.PaddingBytes += other.PaddingBytes
}

// UnusedBytes returns the bytes of the region that are neither allocated nor padding
func (s *Statistics) UnusedBytes() uint64 {
	used := s.AllocationBytes + s.PaddingBytes
	if used > s.RegionBytes {
		return 0
	}
	return s.RegionBytes - used
}

// DetailedStatistics extends Statistics with failure counts and size extremes. AllocationSizeMin
// is only meaningful while AllocationCount is non-zero.
type DetailedStatistics struct {
	Statistics
	FailedAllocationCount int
	AllocationSizeMin     uint64
	AllocationSizeMax     uint64
	PaddingSizeMax        uint64
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.FailedAllocationCount = 0
	s.AllocationSizeMin = math.MaxUint64
	s.AllocationSizeMax = 0
	s.PaddingSizeMax = 0
}

// AddAllocation records a successful allocation of size bytes that was preceded by padding bytes
// of alignment padding.
func (s *DetailedStatistics) AddAllocation(size, padding uint64) {
	if s.AllocationCount == 0 || size < s.AllocationSizeMin {
		s.AllocationSizeMin = size
	}

	s.AllocationCount++
	s.AllocationBytes += size
	s.PaddingBytes += padding

	if size > s.AllocationSizeMax {
		s.AllocationSizeMax = size
	}

	if padding > s.PaddingSizeMax {
		s.PaddingSizeMax = padding
	}
}

func (s *DetailedStatistics) AddFailure() {
	s.FailedAllocationCount++
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	// An empty side carries no minimum, whether or not it was cleared
	if other.AllocationCount > 0 && (s.AllocationCount == 0 || other.AllocationSizeMin < s.AllocationSizeMin) {
		s.AllocationSizeMin = other.AllocationSizeMin
	}

	s.Statistics.AddStatistics(&other.Statistics)
	s.FailedAllocationCount += other.FailedAllocationCount

	if other.AllocationSizeMax > s.AllocationSizeMax {
		s.AllocationSizeMax = other.AllocationSizeMax
	}

	if other.PaddingSizeMax > s.PaddingSizeMax {
		s.PaddingSizeMax = other.PaddingSizeMax
	}
}
