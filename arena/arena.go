package arena

import (
	"context"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/bootarena/memutils"
	"github.com/vkngwrapper/bootarena/memutils/address"
	"github.com/vkngwrapper/bootarena/region"
	"golang.org/x/exp/slog"
)

// DefaultAlignment is the alignment used by AllocateDefault and AllocateZeroedDefault when
// CreateOptions.DefaultAlignment is left blank. It is the platform's pointer alignment.
const DefaultAlignment uint = uint(unsafe.Alignof(uintptr(0)))

// CreateFlags indicate specific arena behaviors to activate or deactivate
type CreateFlags int32

const (
	// CreateTrapOnFailure causes every failed allocation to invoke the arena's TrapFunc before the
	// error is returned. Setup failures never trap.
	CreateTrapOnFailure CreateFlags = 1 << iota
	// CreateTrackAllocations records every successful allocation so it can be looked up, visited
	// and included in BuildStatsString.
	CreateTrackAllocations
)

var createFlagsMapping = map[CreateFlags]string{
	CreateTrapOnFailure:    "CreateTrapOnFailure",
	CreateTrackAllocations: "CreateTrackAllocations",
}

func (f CreateFlags) String() string {
	if f == 0 {
		return "None"
	}

	var str string
	for flag := CreateTrapOnFailure; flag <= CreateTrackAllocations; flag <<= 1 {
		if f&flag == 0 {
			continue
		}
		if str != "" {
			str += "|"
		}
		str += createFlagsMapping[flag]
	}
	return str
}

//go:generate mockgen -destination mocks/memory.go -package mock_arena github.com/vkngwrapper/bootarena/arena Memory

// Memory is the storage behind the addresses an Arena hands out. The Arena only touches memory
// to zero it for AllocateZeroed and to build slices for the typed helpers.
type Memory interface {
	// Clear zeroes size bytes starting at addr
	Clear(addr address.Address, size uint) error
	// Bytes returns a slice over size bytes starting at addr
	Bytes(addr address.Address, size uint) ([]byte, error)
}

// Region describes the block of memory an Arena manages
type Region interface {
	Start() address.Address
	Size() uint
}

// CreateOptions contains optional settings when creating an Arena
type CreateOptions struct {
	// Flags indicates specific arena behaviors to activate or deactivate
	Flags CreateFlags
	// DefaultAlignment is the alignment used by AllocateDefault and AllocateZeroedDefault. It must be
	// a power of two. If left blank, DefaultAlignment is used.
	DefaultAlignment uint
	// Memory is the storage behind the region. If left blank, region.Raw is used, which writes
	// directly to absolute addresses.
	Memory Memory
	// Trap is invoked on allocation failure when CreateTrapOnFailure is present. If left blank,
	// PanicTrap is used.
	Trap TrapFunc
}

// Arena is a linear allocator over a single region. The zero value behaves like an Arena created
// by New with blank options.
type Arena struct {
	logger           *slog.Logger
	memory           Memory
	trap             TrapFunc
	flags            CreateFlags
	defaultAlignment uint

	initialized bool
	regionStart address.Address
	regionEnd   address.Address
	freeCursor  address.Address

	stats   memutils.DetailedStatistics
	tracker *allocationTracker
}

var _ memutils.Validatable = &Arena{}

// New creates a new, uninitialized Arena. No allocation can succeed until Setup does.
//
// logger - The logger that setup and allocation events are written to. If nil, slog.Default()
// is used.
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, options CreateOptions) (*Arena, error) {
	if logger == nil {
		logger = slog.Default()
	}

	a := &Arena{
		logger:           logger,
		memory:           options.Memory,
		trap:             options.Trap,
		flags:            options.Flags,
		defaultAlignment: options.DefaultAlignment,
	}

	if a.defaultAlignment != 0 {
		if err := memutils.CheckPow2(a.defaultAlignment, "CreateOptions.DefaultAlignment"); err != nil {
			return nil, err
		}
	}

	if a.flags&CreateTrackAllocations != 0 {
		a.tracker = newAllocationTracker()
	}

	a.stats.Clear()

	return a, nil
}

// MustNew is New, but panics if options are invalid
func MustNew(logger *slog.Logger, options CreateOptions) *Arena {
	a, err := New(logger, options)
	if err != nil {
		panic(err)
	}
	return a
}

// Setup hands the region [start, start+size) to the arena. It must succeed exactly once: any
// later call fails with ErrAlreadyInitialized regardless of its arguments. A null start, a zero
// size, or a region that runs past the end of the address space fails with ErrInvalidRegion.
func (a *Arena) Setup(start address.Address, size uint) error {
	if a.initialized {
		return errors.Wrapf(ErrAlreadyInitialized, "region %s-%s is already managed", a.regionStart, a.regionEnd)
	}

	if start.IsNull() || size == 0 {
		return errors.Wrapf(ErrInvalidRegion, "start %s, size %d", start, size)
	}

	end, ok := start.Add(size)
	if !ok {
		return errors.Wrapf(ErrInvalidRegion, "region %s+%d overflows the address space", start, size)
	}

	a.regionStart = start
	a.regionEnd = end
	a.freeCursor = start
	a.initialized = true

	a.stats.RegionCount = 1
	a.stats.RegionBytes = uint64(size)

	a.log().LogAttrs(context.Background(), slog.LevelInfo, "Arena::Setup",
		slog.String("Start", start.String()),
		slog.String("End", end.String()),
		slog.Uint64("Size", uint64(size)),
		slog.String("Flags", a.flags.String()),
	)

	memutils.DebugValidate(a)
	return nil
}

// SetupRegion calls Setup with the bounds of r
func (a *Arena) SetupRegion(r Region) error {
	return a.Setup(r.Start(), r.Size())
}

// IsInitialized returns true once Setup has succeeded
func (a *Arena) IsInitialized() bool { return a.initialized }

// RegionStart returns the first address of the managed region, or Null before setup
func (a *Arena) RegionStart() address.Address { return a.regionStart }

// RegionEnd returns the address one past the end of the managed region, or Null before setup
func (a *Arena) RegionEnd() address.Address { return a.regionEnd }

// Cursor returns the address of the next byte available for allocation
func (a *Arena) Cursor() address.Address { return a.freeCursor }

// DefaultAlignment returns the alignment used by AllocateDefault and AllocateZeroedDefault
func (a *Arena) DefaultAlignment() uint {
	if a.defaultAlignment == 0 {
		return DefaultAlignment
	}
	return a.defaultAlignment
}

// Flags returns the flags the arena was created with
func (a *Arena) Flags() CreateFlags { return a.flags }

// Memory returns the storage behind the region
func (a *Arena) Memory() Memory { return a.mem() }

// FreeBytes returns the number of bytes between the cursor and the end of the region
func (a *Arena) FreeBytes() uint {
	free, _ := a.regionEnd.Sub(a.freeCursor)
	return free
}

// UsedBytes returns the number of bytes consumed by allocations and their alignment padding
func (a *Arena) UsedBytes() uint {
	used, _ := a.freeCursor.Sub(a.regionStart)
	return used
}

func (a *Arena) log() *slog.Logger {
	if a.logger == nil {
		return slog.Default()
	}
	return a.logger
}

func (a *Arena) mem() Memory {
	if a.memory == nil {
		return region.Raw{}
	}
	return a.memory
}

func (a *Arena) trapFunc() TrapFunc {
	if a.trap == nil {
		return PanicTrap
	}
	return a.trap
}
