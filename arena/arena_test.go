package arena_test

import (
	"io"
	"math"
	"math/rand"
	"syscall"
	"testing"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/bootarena/arena"
	"github.com/vkngwrapper/bootarena/memutils"
	"github.com/vkngwrapper/bootarena/memutils/address"
	"golang.org/x/exp/slog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard))
}

func newArena(t *testing.T, options arena.CreateOptions) *arena.Arena {
	a, err := arena.New(testLogger(), options)
	require.NoError(t, err)
	return a
}

func TestSetupGate(t *testing.T) {
	a := newArena(t, arena.CreateOptions{})
	require.False(t, a.IsInitialized())

	err := a.Setup(0x1000, 0x10)
	require.NoError(t, err)
	require.True(t, a.IsInitialized())
	require.Equal(t, address.Address(0x1000), a.RegionStart())
	require.Equal(t, address.Address(0x1010), a.RegionEnd())
	require.Equal(t, address.Address(0x1000), a.Cursor())

	for _, args := range []struct {
		start address.Address
		size  uint
	}{
		{start: 0x1000, size: 0x10},
		{start: 0x8000, size: 0x100},
		{start: 0, size: 0},
	} {
		err = a.Setup(args.start, args.size)
		require.True(t, errors.Is(err, arena.ErrAlreadyInitialized), "setup(%s, %d): %+v", args.start, args.size, err)
	}

	require.Equal(t, address.Address(0x1000), a.RegionStart())
	require.Equal(t, address.Address(0x1010), a.RegionEnd())
}

func TestSetupInvalidRegion(t *testing.T) {
	testCases := []struct {
		name  string
		start address.Address
		size  uint
	}{
		{name: "NullStart", start: address.Null, size: 0x10},
		{name: "ZeroSize", start: 0x1000, size: 0},
		{name: "Both", start: address.Null, size: 0},
		{name: "OverflowsAddressSpace", start: address.Max - 7, size: 16},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			a := newArena(t, arena.CreateOptions{})

			err := a.Setup(testCase.start, testCase.size)
			require.True(t, errors.Is(err, arena.ErrInvalidRegion), "%+v", err)
			require.False(t, a.IsInitialized())
			require.NoError(t, a.Validate())

			// A refused setup leaves the arena free to be set up properly
			require.NoError(t, a.Setup(0x1000, 0x10))
		})
	}
}

func TestSetupRegionEndingAtTopOfAddressSpace(t *testing.T) {
	a := newArena(t, arena.CreateOptions{})
	require.NoError(t, a.Setup(address.Max-15, 15))
	require.Equal(t, address.Max, a.RegionEnd())
}

func TestAllocateScenario(t *testing.T) {
	a := newArena(t, arena.CreateOptions{})
	require.NoError(t, a.Setup(0x1000, 0x10))

	addr, err := a.Allocate(4, 1, 8)
	require.NoError(t, err)
	require.Equal(t, address.Address(0x1000), addr)
	require.Equal(t, address.Address(0x1004), a.Cursor())

	addr, err = a.Allocate(1, 1, 1)
	require.NoError(t, err)
	require.Equal(t, address.Address(0x1004), addr)
	require.Equal(t, address.Address(0x1005), a.Cursor())

	require.Equal(t, uint(11), a.FreeBytes())
	addr, err = a.Allocate(16, 1, 1)
	require.True(t, errors.Is(err, arena.ErrCapacityExhausted), "%+v", err)
	require.Equal(t, address.Null, addr)
	require.Equal(t, address.Address(0x1005), a.Cursor())

	addr, err = a.Allocate(1, 1, 8)
	require.NoError(t, err)
	require.Equal(t, address.Address(0x1008), addr)
	require.Equal(t, uint(0x9), a.UsedBytes())

	require.NoError(t, a.Validate())
}

func TestAllocatePreconditions(t *testing.T) {
	a := newArena(t, arena.CreateOptions{})

	_, err := a.Allocate(1, 1, 1)
	require.True(t, errors.Is(err, arena.ErrPreconditionViolated), "%+v", err)

	require.NoError(t, a.Setup(0x1000, 0x100))

	testCases := []struct {
		name        string
		count       uint
		elementSize uint
		alignment   uint
	}{
		{name: "ZeroCount", count: 0, elementSize: 1, alignment: 1},
		{name: "ZeroElementSize", count: 1, elementSize: 0, alignment: 1},
		{name: "ZeroAlignment", count: 1, elementSize: 1, alignment: 0},
		{name: "AlignmentThree", count: 1, elementSize: 1, alignment: 3},
		{name: "AlignmentTwelve", count: 1, elementSize: 1, alignment: 12},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			cursor := a.Cursor()

			_, err := a.Allocate(testCase.count, testCase.elementSize, testCase.alignment)
			require.True(t, errors.Is(err, arena.ErrPreconditionViolated), "%+v", err)
			require.True(t, arena.IsAllocationFailure(err))
			require.Equal(t, cursor, a.Cursor())
		})
	}

	_, err = a.Allocate(1, 1, 3)
	require.True(t, errors.Is(err, memutils.PowerOfTwoError))

	addr, err := a.Allocate(1, 1, 4)
	require.NoError(t, err)
	require.True(t, addr.IsAligned(4))
}

func TestAllocateSizeOverflow(t *testing.T) {
	a := newArena(t, arena.CreateOptions{})
	require.NoError(t, a.Setup(0x1000, 0x100))
	_, err := a.Allocate(3, 1, 1)
	require.NoError(t, err)

	cursor := a.Cursor()
	_, err = a.Allocate(math.MaxUint, 2, 1)
	require.True(t, errors.Is(err, arena.ErrSizeOverflow), "%+v", err)
	require.Equal(t, cursor, a.Cursor())

	_, err = a.Allocate(math.MaxUint/4+1, 4, 8)
	require.True(t, errors.Is(err, arena.ErrSizeOverflow), "%+v", err)
	require.Equal(t, cursor, a.Cursor())

	// A product that fits but exceeds the region is a capacity failure instead
	_, err = a.Allocate(math.MaxUint/4, 4, 8)
	require.True(t, errors.Is(err, arena.ErrCapacityExhausted), "%+v", err)
	require.Equal(t, cursor, a.Cursor())
}

func TestAllocateAlignmentOverflow(t *testing.T) {
	a := newArena(t, arena.CreateOptions{})
	require.NoError(t, a.Setup(address.Max-15, 15))

	addr, err := a.Allocate(1, 1, 1)
	require.NoError(t, err)
	require.Equal(t, address.Max-15, addr)

	cursor := a.Cursor()
	_, err = a.Allocate(1, 1, 32)
	require.True(t, errors.Is(err, arena.ErrAlignmentOverflow), "%+v", err)
	require.Equal(t, cursor, a.Cursor())

	addr, err = a.Allocate(1, 1, 2)
	require.NoError(t, err)
	require.True(t, addr.IsAligned(2))
}

func TestAllocateAlignedStartPastRegionEnd(t *testing.T) {
	a := newArena(t, arena.CreateOptions{})
	require.NoError(t, a.Setup(0x1001, 0x10))

	_, err := a.Allocate(1, 1, 0x100)
	require.True(t, errors.Is(err, arena.ErrCapacityExhausted), "%+v", err)
	require.Equal(t, address.Address(0x1001), a.Cursor())
}

func TestAllocateCapacityBoundary(t *testing.T) {
	a := newArena(t, arena.CreateOptions{})
	require.NoError(t, a.Setup(0x2000, 64))

	_, err := a.Allocate(10, 1, 1)
	require.NoError(t, err)

	remaining := a.FreeBytes()
	require.Equal(t, uint(54), remaining)

	_, err = a.Allocate(remaining+1, 1, 1)
	require.True(t, errors.Is(err, arena.ErrCapacityExhausted), "%+v", err)

	addr, err := a.Allocate(remaining, 1, 1)
	require.NoError(t, err)
	require.Equal(t, address.Address(0x200a), addr)
	require.Equal(t, uint(0), a.FreeBytes())
	require.Equal(t, a.RegionEnd(), a.Cursor())

	_, err = a.Allocate(1, 1, 1)
	require.True(t, errors.Is(err, arena.ErrCapacityExhausted), "%+v", err)
	require.NoError(t, a.Validate())
}

func TestAllocateMonotonicAndAligned(t *testing.T) {
	a := newArena(t, arena.CreateOptions{Flags: arena.CreateTrackAllocations})
	require.NoError(t, a.Setup(0x10000, 1<<16))

	random := rand.New(rand.NewSource(17))
	previousEnd := a.RegionStart()

	for i := 0; i < 500; i++ {
		count := uint(random.Intn(16) + 1)
		elementSize := uint(random.Intn(24) + 1)
		alignment := uint(1) << uint(random.Intn(8))

		addr, err := a.Allocate(count, elementSize, alignment)
		if errors.Is(err, arena.ErrCapacityExhausted) {
			break
		}
		require.NoError(t, err)

		require.True(t, addr.IsAligned(alignment), "%s is not aligned to %d", addr, alignment)
		require.GreaterOrEqual(t, uint(addr), uint(previousEnd))
		require.Less(t, uint(addr), uint(a.RegionEnd()))

		end, ok := addr.Add(count * elementSize)
		require.True(t, ok)
		require.LessOrEqual(t, uint(end), uint(a.RegionEnd()))
		require.Equal(t, end, a.Cursor())

		padding, _ := addr.Sub(previousEnd)
		require.Less(t, padding, alignment)

		previousEnd = end
	}

	require.NoError(t, a.Validate())
}

func TestAllocateDefault(t *testing.T) {
	require.Equal(t, uint(unsafe.Alignof(uintptr(0))), arena.DefaultAlignment)

	a := newArena(t, arena.CreateOptions{})
	require.Equal(t, arena.DefaultAlignment, a.DefaultAlignment())
	require.NoError(t, a.Setup(0x1001, 0x100))

	addr, err := a.AllocateDefault(3, 1)
	require.NoError(t, err)
	require.True(t, addr.IsAligned(arena.DefaultAlignment))

	custom := newArena(t, arena.CreateOptions{DefaultAlignment: 64})
	require.NoError(t, custom.Setup(0x1001, 0x100))

	addr, err = custom.AllocateDefault(2, 2)
	require.NoError(t, err)
	require.Equal(t, address.Address(0x1040), addr)

	_, err = arena.New(testLogger(), arena.CreateOptions{DefaultAlignment: 3})
	require.True(t, errors.Is(err, memutils.PowerOfTwoError))
	require.Panics(t, func() {
		arena.MustNew(testLogger(), arena.CreateOptions{DefaultAlignment: 24})
	})
}

func TestZeroValueArena(t *testing.T) {
	var a arena.Arena
	require.Equal(t, arena.DefaultAlignment, a.DefaultAlignment())
	require.NotNil(t, a.Memory())
	require.NoError(t, a.Validate())

	require.NotPanics(t, func() {
		_, err := a.Allocate(1, 1, 1)
		require.True(t, errors.Is(err, arena.ErrPreconditionViolated), "%+v", err)
	})

	require.NoError(t, a.Setup(0x1001, 0x40))

	addr, err := a.AllocateDefault(3, 1)
	require.NoError(t, err)
	require.True(t, addr.IsAligned(arena.DefaultAlignment))

	_, err = a.Allocate(2, 4, 4)
	require.NoError(t, err)

	var stats memutils.DetailedStatistics
	a.AddDetailedStatistics(&stats)
	require.Equal(t, 2, stats.AllocationCount)
	require.Equal(t, 1, stats.FailedAllocationCount)
	require.Equal(t, uint64(3), stats.AllocationSizeMin)
	require.Equal(t, uint64(8), stats.AllocationSizeMax)

	require.NoError(t, a.Validate())
}

func TestSbrk(t *testing.T) {
	a := newArena(t, arena.CreateOptions{})

	_, err := a.Sbrk(0)
	require.True(t, errors.Is(err, arena.ErrPreconditionViolated))

	require.NoError(t, a.Setup(0x1000, 0x10))
	_, err = a.Allocate(4, 1, 1)
	require.NoError(t, err)

	brk, err := a.Sbrk(0)
	require.NoError(t, err)
	require.Equal(t, address.Address(0x1010), brk)

	for _, increment := range []int{1, 4096, -16} {
		brk, err = a.Sbrk(increment)
		require.True(t, errors.Is(err, syscall.ENOMEM), "%+v", err)
		require.Equal(t, arena.SbrkFailed, brk)
	}

	require.Equal(t, address.Address(0x1004), a.Cursor())
	require.Equal(t, address.Address(0x1010), a.RegionEnd())
}

func TestIsAllocationFailure(t *testing.T) {
	require.False(t, arena.IsAllocationFailure(nil))
	require.False(t, arena.IsAllocationFailure(arena.ErrAlreadyInitialized))
	require.False(t, arena.IsAllocationFailure(errors.Wrap(arena.ErrInvalidRegion, "setup")))
	require.False(t, arena.IsAllocationFailure(errors.New("something else")))

	for _, err := range []error{
		arena.ErrPreconditionViolated,
		arena.ErrSizeOverflow,
		arena.ErrAlignmentOverflow,
		arena.ErrCapacityExhausted,
		arena.ErrBackingMemory,
	} {
		require.True(t, arena.IsAllocationFailure(errors.Wrap(err, "wrapped")))
	}
}

func TestCreateFlagsString(t *testing.T) {
	require.Equal(t, "None", arena.CreateFlags(0).String())
	require.Equal(t, "CreateTrapOnFailure", arena.CreateTrapOnFailure.String())
	require.Equal(t, "CreateTrapOnFailure|CreateTrackAllocations", (arena.CreateTrapOnFailure | arena.CreateTrackAllocations).String())
}
