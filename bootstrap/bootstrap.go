// Package bootstrap drives system bring-up against a single arena. It performs the arena's
// one-time setup, then runs named stages in order, and decides whether a failed allocation is
// returned to the caller or escalated to a halt.
package bootstrap

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/bootarena/arena"
	"golang.org/x/exp/slog"
)

// Stage is a single named step of bring-up. Stages obtain their storage from the arena they are
// handed and must not retain it past the lifetime of the arena's region.
type Stage struct {
	Name string
	Run  func(ctx context.Context, a *arena.Arena) error
}

// Options contains optional settings for Run
type Options struct {
	// Halt is invoked with the error when a stage fails because of an allocation failure. It is
	// not expected to return. If left blank, the error is returned from Run.
	Halt func(err error)
}

// Run sets up a over r and runs each stage in order, stopping at the first failure. A setup
// failure is always returned. The context is checked between stages.
func Run(ctx context.Context, logger *slog.Logger, a *arena.Arena, r arena.Region, stages []Stage, options Options) error {
	if logger == nil {
		logger = slog.Default()
	}

	err := a.SetupRegion(r)
	if err != nil {
		return errors.Wrap(err, "failed to set up the boot arena")
	}

	for i, stage := range stages {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "bring-up interrupted before stage %q", stage.Name)
		}

		startCursor := a.Cursor()
		startTime := time.Now()

		err = stage.Run(ctx, a)
		if err != nil {
			err = errors.Wrapf(err, "stage %d (%q) failed", i, stage.Name)
			logger.LogAttrs(ctx, slog.LevelError, "bootstrap stage failed",
				slog.String("Stage", stage.Name),
				slog.Any("error", err),
			)

			if options.Halt != nil && arena.IsAllocationFailure(err) {
				options.Halt(err)
			}
			return err
		}

		used, _ := a.Cursor().Sub(startCursor)
		logger.LogAttrs(ctx, slog.LevelInfo, "bootstrap stage complete",
			slog.String("Stage", stage.Name),
			slog.Uint64("BytesUsed", uint64(used)),
			slog.Uint64("BytesFree", uint64(a.FreeBytes())),
			slog.Duration("Elapsed", time.Since(startTime)),
		)
	}

	return nil
}
