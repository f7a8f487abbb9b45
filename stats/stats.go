// Package stats collects execution statistics: instruction counts per
// class, cycles, memory operations, traps, and hits and misses of the
// translation and statistics caches.
package stats

import (
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/sarchlab/mmixsim/insts"
	"github.com/sarchlab/mmixsim/mem"
)

// HitMiss counts the hits and misses of one cache.
type HitMiss struct {
	Hits   uint64
	Misses uint64
}

// Accesses returns hits plus misses, saturated.
func (h HitMiss) Accesses() uint64 {
	return saturatingAdd(h.Hits, h.Misses)
}

// HitRate returns the fraction of accesses that hit.
func (h HitMiss) HitRate() float64 {
	n := h.Accesses()
	if n == 0 {
		return 0
	}
	return float64(h.Hits) / float64(n)
}

func (h *HitMiss) record(hit bool) {
	if hit {
		h.Hits = saturatingAdd(h.Hits, 1)
	} else {
		h.Misses = saturatingAdd(h.Misses, 1)
	}
}

// Snapshot is a copy of the counters at one point in time.
type Snapshot struct {
	// Instructions is the number of instructions executed.
	Instructions uint64
	// ByClass counts instructions per insts.Class.
	ByClass [insts.NumClasses]uint64
	// Cycles is the number of cycles charged by the cost model.
	Cycles uint64
	// Mems is the number of memory operations charged.
	Mems uint64
	// Traps counts trips, traps and dynamic traps.
	Traps uint64

	ITC HitMiss
	DTC HitMiss
	IC  HitMiss
	DC  HitMiss
}

// CPI returns the cycles per instruction.
func (s Snapshot) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// Format writes the snapshot as a table.
func (s Snapshot) Format(w io.Writer) error {
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	printf("Instructions: %d\n", s.Instructions)
	printf("Cycles:       %d\n", s.Cycles)
	printf("CPI:          %.2f\n", s.CPI())
	printf("Mems:         %d\n", s.Mems)
	printf("Traps:        %d\n", s.Traps)
	printf("\n")
	printf("By class:\n")
	for c := 0; c < insts.NumClasses; c++ {
		printf("  %-8s %d\n", insts.Class(c).String(), s.ByClass[c])
	}
	printf("\n")
	printf("%-4s %12s %12s %8s\n", "", "hits", "misses", "rate")
	for _, row := range []struct {
		name string
		hm   HitMiss
	}{
		{"ITC", s.ITC},
		{"DTC", s.DTC},
		{"IC", s.IC},
		{"DC", s.DC},
	} {
		printf("%-4s %12d %12d %7.1f%%\n", row.name, row.hm.Hits, row.hm.Misses, 100*row.hm.HitRate())
	}

	return err
}

// Collector accumulates statistics. Its methods may be called from any
// goroutine; Reset and Snapshot never observe a partially updated state.
type Collector struct {
	mu       sync.RWMutex
	disabled bool
	counters Snapshot
}

// NewCollector creates an enabled collector with zeroed counters.
func NewCollector() *Collector {
	return &Collector{}
}

// Enable turns accumulation on or off.
func (c *Collector) Enable(on bool) {
	c.mu.Lock()
	c.disabled = !on
	c.mu.Unlock()
}

// Enabled reports whether the collector accumulates.
func (c *Collector) Enabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled
}

// Reset zeroes every counter.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.counters = Snapshot{}
	c.mu.Unlock()
}

// Snapshot returns a copy of the counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counters
}

// Instruction records one executed instruction.
func (c *Collector) Instruction(class insts.Class, cycles, mems uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disabled {
		return
	}

	s := &c.counters
	s.Instructions = saturatingAdd(s.Instructions, 1)
	if int(class) < insts.NumClasses {
		s.ByClass[class] = saturatingAdd(s.ByClass[class], 1)
	}
	s.Cycles = saturatingAdd(s.Cycles, cycles)
	s.Mems = saturatingAdd(s.Mems, mems)
}

// Trap records a trip or trap.
func (c *Collector) Trap() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disabled {
		return
	}
	c.counters.Traps = saturatingAdd(c.counters.Traps, 1)
}

// TranslationAccess records a translation cache lookup. It implements
// mmu.Observer.
func (c *Collector) TranslationAccess(kind mem.AccessKind, hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disabled {
		return
	}
	if kind == mem.Fetch {
		c.counters.ITC.record(hit)
	} else {
		c.counters.DTC.record(hit)
	}
}

// CacheAccess records a statistics cache access. It implements
// mmu.Observer.
func (c *Collector) CacheAccess(kind mem.AccessKind, hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disabled {
		return
	}
	if kind == mem.Fetch {
		c.counters.IC.record(hit)
	} else {
		c.counters.DC.record(hit)
	}
}

func saturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
