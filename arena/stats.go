package arena

import (
	"encoding/json"
	"strconv"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/bootarena/memutils"
)

// AddStatistics sums this arena's allocation statistics into the statistics currently present
// in the provided memutils.Statistics object.
func (a *Arena) AddStatistics(stats *memutils.Statistics) {
	stats.AddStatistics(&a.stats.Statistics)
}

// AddDetailedStatistics sums this arena's allocation statistics into the statistics currently
// present in the provided memutils.DetailedStatistics object.
func (a *Arena) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.AddDetailedStatistics(&a.stats)
}

// BuildStatsString returns a json document describing the arena's region and statistics. If
// detailedMap is true and the arena was created with CreateTrackAllocations, every allocation
// is listed as well.
func (a *Arena) BuildStatsString(detailedMap bool) string {
	writer := jwriter.NewWriter()
	objState := writer.Object()

	objState.Name("Initialized").Bool(a.initialized)
	objState.Name("Flags").String(a.flags.String())
	writeUint(objState.Name("DefaultAlignment"), uint64(a.DefaultAlignment()))

	if a.initialized {
		regionObj := objState.Name("Region").Object()
		regionObj.Name("Start").String(a.regionStart.String())
		regionObj.Name("End").String(a.regionEnd.String())
		regionObj.Name("Cursor").String(a.freeCursor.String())
		regionObj.End()
	}

	a.printStatistics(objState.Name("Total").Object())

	if detailedMap && a.tracker != nil {
		a.printDetailedMap(objState)
	}

	objState.End()
	return string(writer.Bytes())
}

func (a *Arena) printStatistics(json jwriter.ObjectState) {
	defer json.End()

	stats := a.stats
	writeUint(json.Name("TotalBytes"), stats.RegionBytes)
	writeUint(json.Name("UnusedBytes"), stats.UnusedBytes())
	json.Name("Allocations").Int(stats.AllocationCount)
	writeUint(json.Name("AllocationBytes"), stats.AllocationBytes)
	writeUint(json.Name("PaddingBytes"), stats.PaddingBytes)
	json.Name("FailedAllocations").Int(stats.FailedAllocationCount)

	if stats.AllocationCount > 0 {
		writeUint(json.Name("AllocationSizeMin"), stats.AllocationSizeMin)
		writeUint(json.Name("AllocationSizeMax"), stats.AllocationSizeMax)
		writeUint(json.Name("PaddingSizeMax"), stats.PaddingSizeMax)
	}
}

func (a *Arena) printDetailedMap(json jwriter.ObjectState) {
	arrayState := json.Name("Allocations").Array()
	defer arrayState.End()

	_ = a.VisitAllocations(func(alloc Allocation) error {
		obj := arrayState.Object()
		defer obj.End()

		obj.Name("Address").String(alloc.Address.String())
		writeUint(obj.Name("Size"), uint64(alloc.Size))
		writeUint(obj.Name("Alignment"), uint64(alloc.Alignment))
		writeUint(obj.Name("Padding"), uint64(alloc.Padding))
		obj.Name("Zeroed").Bool(alloc.Zeroed)
		return nil
	})
}

// writeUint emits value as a JSON number. jwriter only writes signed ints, which cannot hold
// sizes past math.MaxInt.
func writeUint(w *jwriter.Writer, value uint64) {
	w.Raw(json.RawMessage(strconv.FormatUint(value, 10)))
}
