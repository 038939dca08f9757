// Command arenaplan replays a boot plan against a bump arena and reports how the region was
// consumed: where each allocation landed, how much was lost to alignment, and what remains.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/c2h5oh/datasize"
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/bootarena/arena"
	"github.com/vkngwrapper/bootarena/bootstrap"
	"github.com/vkngwrapper/bootarena/internal/plan"
	"github.com/vkngwrapper/bootarena/region"
	"golang.org/x/exp/slog"
)

const defaultRegionSize = 64 * datasize.KB

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

type config struct {
	planPath         string
	regionSize       string
	backing          string
	defaultAlignment uint
	halt             bool
	json             bool
	logLevel         string
}

func main() {
	var cfg config

	app := kingpin.New("arenaplan", "Replays a boot plan against a bump arena and reports how the region was consumed.")
	app.Flag("plan", "Path to the YAML boot plan.").Required().ExistingFileVar(&cfg.planPath)
	app.Flag("region-size", "Size of the reserved region, e.g. 64KB. Overrides the plan.").StringVar(&cfg.regionSize)
	app.Flag("backing", "Memory behind the region. Overrides the plan.").EnumVar(&cfg.backing, string(plan.BackingHeap), string(plan.BackingMmap))
	app.Flag("default-alignment", "Alignment for requests without one. 0 selects the pointer alignment.").Default("0").UintVar(&cfg.defaultAlignment)
	app.Flag("halt", "Exit with status 2 on the first allocation failure instead of reporting it.").BoolVar(&cfg.halt)
	app.Flag("json", "Print the arena's statistics and allocation map as JSON.").BoolVar(&cfg.json)
	app.Flag("log.level", "Only log messages with the given severity or above.").Default("warn").EnumVar(&cfg.logLevel, "debug", "info", "warn", "error")
	kingpin.MustParse(app.Parse(os.Args[1:]))

	os.Exit(run(cfg, os.Stdout))
}

// run replays the plan and writes the report to stdout. It returns the process exit status.
func run(cfg config, stdout io.Writer) int {
	logger := slog.New(slog.HandlerOptions{Level: logLevels[cfg.logLevel]}.NewTextHandler(os.Stderr))

	p, err := plan.Load(cfg.planPath)
	if err != nil {
		logger.Error("failed to load boot plan", slog.Any("error", err))
		return 1
	}

	size, err := regionSize(cfg, p)
	if err != nil {
		logger.Error("invalid region size", slog.Any("error", err))
		return 1
	}

	backing := p.Region.Backing
	if cfg.backing != "" {
		backing = plan.Backing(cfg.backing)
	}

	reserved, release, err := reserve(backing, size)
	if err != nil {
		logger.Error("failed to reserve region", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := release(); err != nil {
			logger.Error("failed to release region", slog.Any("error", err))
		}
	}()

	a, err := arena.New(logger, arena.CreateOptions{
		Flags:            arena.CreateTrackAllocations,
		DefaultAlignment: cfg.defaultAlignment,
		Memory:           reserved,
	})
	if err != nil {
		logger.Error("invalid arena options", slog.Any("error", err))
		return 1
	}

	r := newReport(stdout)
	options := bootstrap.Options{}
	if cfg.halt {
		options.Halt = func(err error) {
			r.Halt(err)
			os.Exit(2)
		}
	}

	err = bootstrap.Run(context.Background(), logger, a, reserved, p.BootstrapStages(r.Record), options)
	r.Summary(a, p)

	if cfg.json {
		fmt.Fprintln(stdout, a.BuildStatsString(true))
	}

	if err != nil {
		r.Failure(err)
		return 1
	}
	return 0
}

func regionSize(cfg config, p *plan.Plan) (uint, error) {
	size := p.Region.Size
	if cfg.regionSize != "" {
		if err := size.UnmarshalText([]byte(cfg.regionSize)); err != nil {
			return 0, errors.Wrapf(err, "cannot parse %q", cfg.regionSize)
		}
	}
	if size == 0 {
		size = defaultRegionSize
	}
	if uint64(size) > uint64(^uint(0)>>1) {
		return 0, errors.Newf("%s does not fit in the address space", size.HR())
	}
	return uint(size.Bytes()), nil
}

type reservedRegion interface {
	arena.Memory
	arena.Region
}

func reserve(backing plan.Backing, size uint) (reservedRegion, func() error, error) {
	switch backing {
	case plan.BackingMmap:
		mapped, err := region.Map(size)
		if err != nil {
			return nil, nil, err
		}
		return mapped, mapped.Close, nil
	case plan.BackingHeap, "":
		buffer, err := region.NewBuffer(size)
		if err != nil {
			return nil, nil, err
		}
		return buffer, func() error { return nil }, nil
	default:
		return nil, nil, errors.Newf("unknown backing %q", backing)
	}
}
