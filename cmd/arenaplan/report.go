package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/vkngwrapper/bootarena/arena"
	"github.com/vkngwrapper/bootarena/internal/plan"
	"github.com/vkngwrapper/bootarena/memutils"
)

type report struct {
	out     io.Writer
	failure *color.Color
	ok      *color.Color
}

func newReport(out io.Writer) *report {
	return &report{
		out:     out,
		failure: color.New(color.FgRed, color.Bold),
		ok:      color.New(color.FgGreen),
	}
}

func (r *report) Record(result plan.Result) {
	alloc := result.Allocation
	if result.Err != nil {
		r.failure.Fprintf(r.out, "%-16s %-20s %d x %d align %d: %v\n",
			result.Stage, alloc.Name, alloc.Count, alloc.Size, alloc.Alignment, result.Err)
		return
	}

	zeroed := ""
	if alloc.Zeroed {
		zeroed = " zeroed"
	}
	fmt.Fprintf(r.out, "%-16s %-20s %s %s%s\n",
		result.Stage, alloc.Name, result.Address, humanize.IBytes(uint64(alloc.Count*alloc.Size)), zeroed)
}

func (r *report) Summary(a *arena.Arena, p *plan.Plan) {
	var stats memutils.DetailedStatistics
	stats.Clear()
	a.AddDetailedStatistics(&stats)

	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "region     %s-%s (%s)\n", a.RegionStart(), a.RegionEnd(), humanize.IBytes(stats.RegionBytes))
	fmt.Fprintf(r.out, "allocated  %s in %s allocations\n", humanize.IBytes(stats.AllocationBytes), humanize.Comma(int64(stats.AllocationCount)))
	fmt.Fprintf(r.out, "padding    %s\n", humanize.IBytes(stats.PaddingBytes))
	fmt.Fprintf(r.out, "free       %s\n", humanize.IBytes(uint64(a.FreeBytes())))

	if requested, ok := p.TotalBytes(); ok {
		fmt.Fprintf(r.out, "requested  %s by the plan\n", humanize.IBytes(uint64(requested)))
	}

	if stats.FailedAllocationCount == 0 {
		r.ok.Fprintln(r.out, "all allocations succeeded")
	}
}

func (r *report) Failure(err error) {
	r.failure.Fprintf(r.out, "bring-up failed: %v\n", err)
}

func (r *report) Halt(err error) {
	r.failure.Fprintf(r.out, "halting on allocation failure: %v\n", err)
}
