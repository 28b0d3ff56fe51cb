// Package progress defines the progress-reporting capability injected into
// the world processor by its driver. See spec §4.8 step 6 and §9 "Global
// state: none; the progress sink is an injected capability".
package progress

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bwkimmel/mcprune/internal/mclog"
)

// Mode selects how a run's progress is rendered. It does not affect the
// Summary returned by ProcessWorld, only what is printed while it runs.
type Mode int

const (
	ModeOff Mode = iota
	ModeGlobal
	ModePerRegion
)

// ParseMode parses one of "off", "global", "per_region" (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "off":
		return ModeOff, nil
	case "global":
		return ModeGlobal, nil
	case "per_region":
		return ModePerRegion, nil
	default:
		return 0, fmt.Errorf("progress: unknown mode %q", s)
	}
}

// Summary is the final report of one process_world run. See spec §6.
type Summary struct {
	Kept          uint64
	Removed       uint64
	BeforeBytes   uint64
	AfterBytes    uint64
	ElapsedSecond float64
}

// Sink receives progress updates as the world processor works through
// regions and chunks. Implementations must be safe for concurrent use: the
// world processor may call into a Sink from multiple dimension workers at
// once. See spec §5 "Shared mutable state".
type Sink interface {
	// SetTotal is called once, before processing starts, with the number of
	// chunks across all dimensions that preflight discovered.
	SetTotal(total uint64)
	// ChunkDecided is called after each per-chunk keep/remove decision,
	// with the running total of chunks processed so far.
	ChunkDecided(processed uint64)
	// RegionFinished is called once a region file (and its mirrored
	// entities/poi files) has been fully written and finalized.
	RegionFinished(name string, removedInRegion uint64)
	// Summary is called once, after every dimension has finished, with the
	// run's final totals.
	Summary(s Summary)
}

// NewSink builds the Sink for the given Mode.
func NewSink(mode Mode) Sink {
	switch mode {
	case ModeGlobal:
		return &globalSink{}
	case ModePerRegion:
		return &perRegionSink{}
	default:
		return noopSink{}
	}
}

type noopSink struct{}

func (noopSink) SetTotal(uint64)               {}
func (noopSink) ChunkDecided(uint64)           {}
func (noopSink) RegionFinished(string, uint64) {}
func (noopSink) Summary(Summary)               {}

// globalSink prints one line each time the overall completion percentage
// advances, tracked with an atomic integer so concurrent dimension workers
// never print the same percentage twice. See spec §5.
type globalSink struct {
	total   atomic.Uint64
	lastPct atomic.Int64
}

func (s *globalSink) SetTotal(total uint64) { s.total.Store(total) }

func (s *globalSink) ChunkDecided(processed uint64) {
	total := s.total.Load()
	if total == 0 {
		total = 1
	}
	pct := int64(processed * 100 / total)
	for {
		prev := s.lastPct.Load()
		if pct <= prev {
			return
		}
		if s.lastPct.CompareAndSwap(prev, pct) {
			mclog.Infof("progress: %d%% (%d/%d chunks)", pct, processed, total)
			return
		}
	}
}

func (s *globalSink) RegionFinished(string, uint64) {}

func (s *globalSink) Summary(sum Summary) {
	mclog.Infof("done: kept %d, removed %d (%d -> %d bytes) in %.2fs",
		sum.Kept, sum.Removed, sum.BeforeBytes, sum.AfterBytes, sum.ElapsedSecond)
}

// perRegionSink prints one line per finished region file instead of
// tracking a running percentage.
type perRegionSink struct{}

func (perRegionSink) SetTotal(uint64)     {}
func (perRegionSink) ChunkDecided(uint64) {}

func (perRegionSink) RegionFinished(name string, removedInRegion uint64) {
	mclog.Infof("region %s: removed %d chunks", name, removedInRegion)
}

func (perRegionSink) Summary(sum Summary) {
	mclog.Infof("done: kept %d, removed %d (%d -> %d bytes) in %.2fs",
		sum.Kept, sum.Removed, sum.BeforeBytes, sum.AfterBytes, sum.ElapsedSecond)
}

// Since is a small helper so callers can compute Summary.ElapsedSecond
// without importing time themselves at the call site.
func Since(start time.Time) float64 {
	return time.Since(start).Seconds()
}
