// Package plan reads boot plans: YAML descriptions of the allocations each bring-up stage makes,
// replayed against an arena by cmd/arenaplan.
package plan

import (
	"context"
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/bootarena/arena"
	"github.com/vkngwrapper/bootarena/bootstrap"
	"github.com/vkngwrapper/bootarena/memutils/address"
	"gopkg.in/yaml.v3"
)

// ErrInvalidPlan is returned for plans that cannot be replayed
var ErrInvalidPlan = errors.New("invalid boot plan")

// Backing selects the memory behind the region a plan is replayed into
type Backing string

const (
	BackingHeap Backing = "heap"
	BackingMmap Backing = "mmap"
)

// Region configures the reserved region
type Region struct {
	Size    datasize.ByteSize `yaml:"size"`
	Backing Backing           `yaml:"backing"`
}

// Allocation is a single allocation request. An Alignment of 0 selects the arena's default.
type Allocation struct {
	Name      string `yaml:"name"`
	Count     uint   `yaml:"count"`
	Size      uint   `yaml:"size"`
	Alignment uint   `yaml:"alignment"`
	Zeroed    bool   `yaml:"zeroed"`
}

type Stage struct {
	Name        string       `yaml:"name"`
	Allocations []Allocation `yaml:"allocations"`
}

type Plan struct {
	Region Region  `yaml:"region"`
	Stages []Stage `yaml:"stages"`
}

// Result is the outcome of a single replayed allocation
type Result struct {
	Stage      string
	Allocation Allocation
	Address    address.Address
	Err        error
}

// Parse decodes and validates a plan. Allocation parameters are not validated here: invalid
// counts, sizes and alignments are the arena's to reject during replay.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to decode boot plan"), ErrInvalidPlan)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Load reads and parses the plan at path
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read boot plan %s", path)
	}
	return Parse(data)
}

// Validate checks the plan's structure
func (p *Plan) Validate() error {
	switch p.Region.Backing {
	case "", BackingHeap, BackingMmap:
	default:
		return errors.Wrapf(ErrInvalidPlan, "unknown region backing %q", p.Region.Backing)
	}

	if len(p.Stages) == 0 {
		return errors.Wrap(ErrInvalidPlan, "the plan has no stages")
	}

	names := make(map[string]struct{}, len(p.Stages))
	for i, stage := range p.Stages {
		if stage.Name == "" {
			return errors.Wrapf(ErrInvalidPlan, "stage %d has no name", i)
		}
		if _, ok := names[stage.Name]; ok {
			return errors.Wrapf(ErrInvalidPlan, "stage %q appears more than once", stage.Name)
		}
		names[stage.Name] = struct{}{}
	}

	return nil
}

// TotalBytes returns the bytes the plan requests, not counting alignment padding. ok is false
// if the total does not fit in a uint.
func (p *Plan) TotalBytes() (total uint, ok bool) {
	for _, stage := range p.Stages {
		for _, alloc := range stage.Allocations {
			size, ok := address.Mul(alloc.Count, alloc.Size)
			if !ok {
				return 0, false
			}
			sum, ok := address.Address(total).Add(size)
			if !ok {
				return 0, false
			}
			total = uint(sum)
		}
	}
	return total, true
}

// BootstrapStages converts the plan into bootstrap stages. record, if not nil, is called once
// for every allocation attempted, including the one that fails.
func (p *Plan) BootstrapStages(record func(Result)) []bootstrap.Stage {
	stages := make([]bootstrap.Stage, 0, len(p.Stages))
	for _, stage := range p.Stages {
		stage := stage
		stages = append(stages, bootstrap.Stage{
			Name: stage.Name,
			Run: func(ctx context.Context, a *arena.Arena) error {
				for _, alloc := range stage.Allocations {
					addr, err := replay(a, alloc)
					if record != nil {
						record(Result{Stage: stage.Name, Allocation: alloc, Address: addr, Err: err})
					}
					if err != nil {
						return errors.Wrapf(err, "allocation %q", alloc.Name)
					}
				}
				return nil
			},
		})
	}
	return stages
}

func replay(a *arena.Arena, alloc Allocation) (address.Address, error) {
	switch {
	case alloc.Alignment == 0 && alloc.Zeroed:
		return a.AllocateZeroedDefault(alloc.Count, alloc.Size)
	case alloc.Alignment == 0:
		return a.AllocateDefault(alloc.Count, alloc.Size)
	case alloc.Zeroed:
		return a.AllocateZeroed(alloc.Count, alloc.Size, alloc.Alignment)
	default:
		return a.Allocate(alloc.Count, alloc.Size, alloc.Alignment)
	}
}
