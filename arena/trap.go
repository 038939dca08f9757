package arena

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
)

// TrapFunc is the halt primitive an arena created with CreateTrapOnFailure invokes when an
// allocation fails. Implementations are not expected to return. If one does, the allocation
// error is still returned to the caller.
type TrapFunc func(err error)

// PanicTrap halts the calling goroutine by panicking with the allocation error. The panic value
// is an error that still matches the allocation failure under errors.Is.
func PanicTrap(err error) {
	panic(errors.Wrap(err, "arena allocation failed"))
}

// ExitTrap returns a TrapFunc that logs the allocation error and terminates the process with
// the provided exit code.
func ExitTrap(logger *slog.Logger, code int) TrapFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(err error) {
		logger.LogAttrs(context.Background(), slog.LevelError, "arena allocation failed, halting",
			slog.Any("error", err),
			slog.Int("ExitCode", code),
		)
		os.Exit(code)
	}
}
