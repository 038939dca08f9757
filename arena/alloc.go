package arena

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/bootarena/memutils"
	"github.com/vkngwrapper/bootarena/memutils/address"
	"golang.org/x/exp/slog"
)

// reservation is a validated allocation that has not yet been committed to the arena
type reservation struct {
	start     address.Address
	size      uint
	padding   uint
	alignment uint
}

// Allocate carves count*elementSize bytes aligned to alignment from the unused tail of the
// region and returns the address of the first byte. The memory is not initialized.
//
// count, elementSize and alignment must be non-zero and alignment must be a power of two. The
// arena's state is unchanged by a failed allocation.
func (a *Arena) Allocate(count, elementSize, alignment uint) (address.Address, error) {
	res, err := a.reserve(count, elementSize, alignment)
	if err != nil {
		return address.Null, a.fail(err)
	}

	a.commit(res, false)
	return res.start, nil
}

// AllocateDefault is Allocate with the arena's default alignment
func (a *Arena) AllocateDefault(count, elementSize uint) (address.Address, error) {
	return a.Allocate(count, elementSize, a.DefaultAlignment())
}

// AllocateZeroed is Allocate, except that every byte of the returned range is zero. Memory is
// only written once the allocation is known to fit; a failed allocation touches nothing.
func (a *Arena) AllocateZeroed(count, elementSize, alignment uint) (address.Address, error) {
	res, err := a.reserve(count, elementSize, alignment)
	if err != nil {
		return address.Null, a.fail(err)
	}

	err = a.mem().Clear(res.start, res.size)
	if err != nil {
		return address.Null, a.fail(errors.Mark(
			errors.Wrapf(err, "failed to zero %d bytes at %s", res.size, res.start),
			ErrBackingMemory,
		))
	}

	a.commit(res, true)
	return res.start, nil
}

// AllocateZeroedDefault is AllocateZeroed with the arena's default alignment
func (a *Arena) AllocateZeroedDefault(count, elementSize uint) (address.Address, error) {
	return a.AllocateZeroed(count, elementSize, a.DefaultAlignment())
}

// reserve performs every check of the allocation path without changing the arena
func (a *Arena) reserve(count, elementSize, alignment uint) (reservation, error) {
	if err := memutils.CheckNonZero(count, "count"); err != nil {
		return reservation{}, errors.Mark(err, ErrPreconditionViolated)
	}
	if err := memutils.CheckNonZero(elementSize, "elementSize"); err != nil {
		return reservation{}, errors.Mark(err, ErrPreconditionViolated)
	}
	if err := memutils.CheckNonZero(alignment, "alignment"); err != nil {
		return reservation{}, errors.Mark(err, ErrPreconditionViolated)
	}
	if !a.initialized {
		return reservation{}, errors.Wrap(ErrPreconditionViolated, "arena has not been set up")
	}

	if err := memutils.CheckPow2(alignment, "alignment"); err != nil {
		return reservation{}, errors.Mark(err, ErrPreconditionViolated)
	}

	totalSize, ok := address.Mul(count, elementSize)
	if !ok {
		return reservation{}, errors.Wrapf(ErrSizeOverflow, "%d elements of %d bytes", count, elementSize)
	}

	start, ok := a.freeCursor.AlignUp(alignment)
	if !ok {
		return reservation{}, errors.Wrapf(ErrAlignmentOverflow, "cursor %s aligned to %d", a.freeCursor, alignment)
	}

	// An aligned start past the end of the region leaves no room at all
	remaining, ok := a.regionEnd.Sub(start)
	if !ok || totalSize > remaining {
		return reservation{}, errors.Wrapf(ErrCapacityExhausted,
			"requested %d bytes at %s, %d bytes remain before %s", totalSize, start, a.FreeBytes(), a.regionEnd)
	}

	padding, _ := start.Sub(a.freeCursor)

	return reservation{
		start:     start,
		size:      totalSize,
		padding:   padding,
		alignment: alignment,
	}, nil
}

func (a *Arena) commit(res reservation, zeroed bool) {
	memutils.DebugCheckPow2(res.alignment, "alignment")

	// reserve has already proven start+size <= regionEnd
	a.freeCursor = res.start + address.Address(res.size)

	a.stats.AddAllocation(uint64(res.size), uint64(res.padding))
	if a.tracker != nil {
		a.tracker.Add(Allocation{
			Address:   res.start,
			Size:      res.size,
			Padding:   res.padding,
			Alignment: res.alignment,
			Zeroed:    zeroed,
		})
	}

	a.log().Debug("Arena::Allocate",
		slog.String("Address", res.start.String()),
		slog.Uint64("Size", uint64(res.size)),
		slog.Uint64("Alignment", uint64(res.alignment)),
		slog.Uint64("Padding", uint64(res.padding)),
		slog.Bool("Zeroed", zeroed),
	)

	memutils.DebugValidate(a)
}

func (a *Arena) fail(err error) error {
	a.stats.AddFailure()

	a.log().LogAttrs(context.Background(), slog.LevelError, "Arena::Allocate failed",
		slog.Any("error", err),
		slog.String("Cursor", a.freeCursor.String()),
		slog.Uint64("FreeBytes", uint64(a.FreeBytes())),
	)

	if a.flags&CreateTrapOnFailure != 0 {
		a.trapFunc()(err)
	}

	return err
}
