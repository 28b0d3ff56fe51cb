// Package patterns implements the keep-predicate chain that decides which
// chunks survive a prune run. See spec §4.7.
package patterns

import "github.com/bwkimmel/mcprune/internal/mca"

// Pattern is a keep-predicate: Matches reports whether entry should be kept.
// A chain of Patterns is evaluated as a short-circuit disjunction — the
// first Pattern whose Matches returns true keeps the chunk.
type Pattern interface {
	Matches(entry *mca.Entry) (bool, error)
}

// Chain is an ordered list of Patterns. It has no evaluation method of its
// own: the caller walks it in order and stops at the first predicate that
// reports true. A Pattern whose Matches errors is logged by the caller and
// treated as a false vote (see spec §7).
type Chain []Pattern

// CoordinateList keeps any chunk whose global (x, z) position is present in
// its coordinate set. It never reads a chunk's payload.
type CoordinateList struct {
	coords map[[2]int32]struct{}
}

// NewCoordinateList builds a CoordinateList from a slice of (x, z) pairs.
func NewCoordinateList(coords [][2]int32) *CoordinateList {
	set := make(map[[2]int32]struct{}, len(coords))
	for _, c := range coords {
		set[c] = struct{}{}
	}
	return &CoordinateList{coords: set}
}

// Matches implements Pattern.
func (p *CoordinateList) Matches(entry *mca.Entry) (bool, error) {
	_, ok := p.coords[[2]int32{entry.GlobalX(), entry.GlobalZ()}]
	return ok, nil
}

// Range keeps any chunk whose global position falls within an inclusive
// rectangle. Not wired into the default chain built by the world
// processor, but kept as a reusable predicate: the Rust reference this
// system was distilled from ships the same bounded-rectangle pattern
// (src/patterns/range.rs) alongside its coordinate-list pattern.
type Range struct {
	minX, minZ, maxX, maxZ int32
}

// NewRange builds a Range pattern from two opposite corners, in either order.
func NewRange(x1, z1, x2, z2 int32) *Range {
	r := &Range{minX: x1, maxX: x2, minZ: z1, maxZ: z2}
	if r.minX > r.maxX {
		r.minX, r.maxX = r.maxX, r.minX
	}
	if r.minZ > r.maxZ {
		r.minZ, r.maxZ = r.maxZ, r.minZ
	}
	return r
}

// Matches implements Pattern.
func (r *Range) Matches(entry *mca.Entry) (bool, error) {
	gx, gz := entry.GlobalX(), entry.GlobalZ()
	return gx >= r.minX && gx <= r.maxX && gz >= r.minZ && gz <= r.maxZ, nil
}

// InhabitedTime keeps chunks whose InhabitedTime field is at or above
// threshold (in ticks). Chunks whose payload cannot be inspected (external
// storage, empty decode, or a missing field) fall back to !RemoveUnknown.
// See spec §4.7.
type InhabitedTime struct {
	Threshold     int64
	RemoveUnknown bool
}

// Matches implements Pattern.
func (p *InhabitedTime) Matches(entry *mca.Entry) (bool, error) {
	external, err := entry.IsExternal()
	if err != nil {
		return false, err
	}
	if external {
		return !p.RemoveUnknown, nil
	}
	data, err := entry.Decompressed()
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return !p.RemoveUnknown, nil
	}
	value, found := mca.FindLong(data, "InhabitedTime")
	if !found {
		return !p.RemoveUnknown, nil
	}
	return value >= p.Threshold, nil
}
