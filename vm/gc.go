package vm

import (
	"io"
	"sync/atomic"
	"time"
)

// ---------------------------------------------------------------------------
// Collector: mark-and-sweep over the heap
// ---------------------------------------------------------------------------

// GCStats holds statistics from a single collection cycle.
type GCStats struct {
	Cycle       uint64
	Before      int // live objects before the cycle
	After       int // live objects after the cycle
	Marked      int
	Swept       int
	SlotsBefore int
	SlotsAfter  int
	Duration    time.Duration
	Timestamp   time.Time

	// Snapshots holds the heap as seen after the mark phase and after the
	// sweep, when snapshot capture is enabled.
	Snapshots []*Snapshot
}

// Collector reclaims heap objects that are unreachable from the VM's roots.
// It only runs when asked to; allocation never triggers it.
type Collector struct {
	vm      *VM
	trace   io.Writer
	capture bool
	report  func(*GCStats)

	sweepCount atomic.Uint64
	lastStats  atomic.Value // *GCStats
}

// NewCollector creates a collector for vm.
func NewCollector(vm *VM) *Collector {
	return &Collector{vm: vm}
}

// SetTrace makes every cycle write a full heap dump to w after marking and
// again after sweeping. A nil writer turns tracing off.
func (gc *Collector) SetTrace(w io.Writer) {
	gc.trace = w
}

// SetReport registers fn to run once per cycle, after the sweep and before
// the post-sweep trace dump. A nil fn removes it.
func (gc *Collector) SetReport(fn func(*GCStats)) {
	gc.report = fn
}

// SetCapture enables heap snapshots in GCStats.
func (gc *Collector) SetCapture(enabled bool) {
	gc.capture = enabled
}

// SweepCount returns the number of completed cycles.
func (gc *Collector) SweepCount() uint64 {
	return gc.sweepCount.Load()
}

// LastStats returns statistics from the most recent cycle, or nil if none
// has run yet.
func (gc *Collector) LastStats() *GCStats {
	v := gc.lastStats.Load()
	if v == nil {
		return nil
	}
	return v.(*GCStats)
}

// collect runs one full cycle. The caller holds the VM lock.
func (gc *Collector) collect(roots []Ref) *GCStats {
	h := gc.vm.heap
	start := time.Now()
	stats := &GCStats{
		Cycle:       gc.sweepCount.Load() + 1,
		Before:      h.Live(),
		SlotsBefore: h.Len(),
		Timestamp:   start,
	}

	stats.Marked = gc.mark(roots)
	gc.observe(stats, "marked")

	stats.Swept = gc.sweep()
	stats.After = h.Live()
	stats.SlotsAfter = h.Len()
	stats.Duration = time.Since(start)
	if gc.report != nil {
		gc.report(stats)
	}
	gc.observe(stats, "swept")

	gc.sweepCount.Add(1)
	gc.lastStats.Store(stats)

	gc.vm.log.Infof("gc cycle %d: swept %d of %d objects, %d live, %d slots, %s",
		stats.Cycle, stats.Swept, stats.Before, stats.After, stats.SlotsAfter, stats.Duration)
	return stats
}

func (gc *Collector) observe(stats *GCStats, phase string) {
	if gc.trace != nil {
		if err := gc.vm.heap.DumpHeap(gc.trace); err != nil {
			gc.vm.log.Warningf("gc trace: %v", err)
		}
	}
	if gc.capture {
		stats.Snapshots = append(stats.Snapshots, gc.vm.snapshot(phase, stats.Cycle))
	}
}

// mark sets the mark bit of every object reachable from roots and returns
// how many were marked. It uses an explicit worklist, so deep lists and
// cyclic closure/environment graphs cannot overflow the Go stack; an
// already marked object is never pushed through again.
func (gc *Collector) mark(roots []Ref) int {
	h := gc.vm.heap
	work := append(make([]Ref, 0, 64), roots...)
	marked := 0

	for len(work) > 0 {
		ref := work[len(work)-1]
		work = work[:len(work)-1]

		obj := h.Get(ref)
		if obj == nil || h.marks[ref] {
			continue
		}
		h.marks[ref] = true
		marked++

		switch obj.Kind {
		case KindPair:
			if !obj.IsNil() {
				work = append(work, obj.Fst, obj.Snd)
			}
		case KindClosure:
			work = append(work, obj.Params, obj.Body, obj.Env)
		case KindEnv:
			if obj.env.parent != NoRef {
				work = append(work, obj.env.parent)
			}
			for _, val := range obj.env.bindings {
				work = append(work, val)
			}
		case KindBool, KindNumber, KindSymbol, KindString, KindPrimitive:
		}
	}
	return marked
}

// sweep frees every unmarked object and clears the marks of survivors. The
// slot slice is cut back to the highest survivor; holes below it stay.
func (gc *Collector) sweep() int {
	h := gc.vm.heap
	swept := 0
	highest := -1
	for i, obj := range h.slots {
		if obj == nil {
			continue
		}
		if h.marks[i] {
			h.marks[i] = false
			highest = i
			continue
		}
		gc.vm.log.Debugf("gc: free %d %s", i, obj.Kind)
		h.free(Ref(i))
		swept++
	}
	h.truncate(highest + 1)
	return swept
}
