package arena

import (
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/bootarena/memutils/address"
)

// SbrkFailed is the address Sbrk reports for a refused request, the all-ones value C runtimes
// recognize as (void *)-1
const SbrkFailed address.Address = address.Max

// Sbrk answers the program-break queries of C runtimes that expect a heap-extension callback.
// A zero increment reports the end of the managed region. The region never grows, so any other
// increment is refused with SbrkFailed and an error wrapping syscall.ENOMEM.
//
// Before Setup there is no break to report, so every query, including a zero increment, fails
// with address.Null and ErrPreconditionViolated. C runtimes conventionally see a zero break in
// that state; callers bridging to one should translate the error.
func (a *Arena) Sbrk(increment int) (address.Address, error) {
	if !a.initialized {
		return address.Null, errors.Wrap(ErrPreconditionViolated, "program break queried before setup")
	}

	if increment != 0 {
		return SbrkFailed, errors.Wrapf(syscall.ENOMEM, "cannot move program break by %d bytes", increment)
	}

	return a.regionEnd, nil
}
