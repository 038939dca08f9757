// Package address models machine addresses as an opaque unsigned integer with checked
// arithmetic. None of the operations here wrap silently: every operation that could leave the
// address space reports whether it succeeded.
package address

import (
	"fmt"
	"math"
	"math/bits"
	"unsafe"
)

// Address is an absolute machine address. It carries no pointer semantics, so the garbage
// collector does not track memory referenced through it.
type Address uintptr

const (
	// Null is the zero address
	Null Address = 0
	// Max is the highest representable address
	Max Address = Address(math.MaxUint)
)

// Of returns the address of the first byte of data. data must not be empty.
func Of(data []byte) Address {
	return Address(uintptr(unsafe.Pointer(&data[0])))
}

// IsNull returns true for the zero address
func (a Address) IsNull() bool { return a == Null }

// Add returns a+size. ok is false if the result would not fit in the address space.
func (a Address) Add(size uint) (result Address, ok bool) {
	sum, carry := bits.Add(uint(a), size, 0)
	return Address(sum), carry == 0
}

// Sub returns the distance in bytes from other to a. ok is false if other is above a.
func (a Address) Sub(other Address) (distance uint, ok bool) {
	diff, borrow := bits.Sub(uint(a), uint(other), 0)
	return diff, borrow == 0
}

// AlignUp rounds a up to the next multiple of alignment. alignment must be a non-zero power of
// two. ok is false if rounding would wrap past the top of the address space.
func (a Address) AlignUp(alignment uint) (result Address, ok bool) {
	mask := alignment - 1
	sum, carry := bits.Add(uint(a), mask, 0)
	if carry != 0 {
		return Null, false
	}
	return Address(sum &^ mask), true
}

// IsAligned returns true if a is a multiple of alignment, which must be a non-zero power of two.
func (a Address) IsAligned(alignment uint) bool {
	return uint(a)&(alignment-1) == 0
}

func (a Address) String() string {
	return fmt.Sprintf("0x%x", uintptr(a))
}

// Mul returns count*size. ok is false if the product does not fit in a uint.
func Mul(count, size uint) (product uint, ok bool) {
	hi, lo := bits.Mul(count, size)
	return lo, hi == 0
}
