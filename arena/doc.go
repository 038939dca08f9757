// Package arena implements a single-region linear ("bump") allocator for bring-up code.
//
// A fixed, contiguous region is handed to the Arena exactly once with Setup. Allocations are then
// carved from the unused tail of the region by advancing a cursor; nothing is ever freed. Every
// step of the allocation path is overflow-checked: the element count multiplication, the
// alignment round-up and the capacity comparison.
//
// Arena is not safe for concurrent use. It is meant to be driven by whichever goroutine performs
// system initialization and handed by reference to the subsystems that need storage.
//
// Allocation failures are returned as errors that can be classified with IsAllocationFailure.
// Arenas created with CreateTrapOnFailure additionally invoke their TrapFunc before returning,
// which by default panics, matching firmware that halts on a failed allocation.
package arena
