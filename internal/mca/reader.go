package mca

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
)

var regionFileNameRE = regexp.MustCompile(`r\.(-?\d+)\.(-?\d+)\.mca$`)

// ParseRegionCoords extracts the (Rx, Rz) region coordinates encoded in an
// .mca file name, e.g. "r.-2.5.mca" -> (-2, 5). See spec §3.
func ParseRegionCoords(path string) (x, z int32, err error) {
	m := regionFileNameRE.FindStringSubmatch(path)
	if m == nil {
		return 0, 0, fmt.Errorf("mca: invalid region file name %q", path)
	}
	xi, err := strconv.ParseInt(m[1], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("mca: invalid region file name %q: %w", path, err)
	}
	zi, err := strconv.ParseInt(m[2], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("mca: invalid region file name %q: %w", path, err)
	}
	return int32(xi), int32(zi), nil
}

// Reader opens a region file for random-access reads of its chunk slots.
// The location/timestamp tables are parsed lazily on first access to
// Entries, Get or CountEntries. See spec §4.3.
type Reader struct {
	path string
	file *os.File
	rx   int32
	rz   int32

	offsets    [1024]uint32
	sizes      [1024]uint32
	timestamps [1024]uint32
	parsed     bool
}

// Open opens path as a region file, validating its name against the
// r.<Rx>.<Rz>.mca pattern. The caller must Close the returned Reader.
func Open(path string) (*Reader, error) {
	rx, rz, err := ParseRegionCoords(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{path: path, file: f, rx: rx, rz: rz}, nil
}

// Close releases the reader's own file handle. Entries produced by this
// reader hold independent handles and are unaffected.
func (r *Reader) Close() error { return r.file.Close() }

// RegionX returns the region's x coordinate, as parsed from its file name.
func (r *Reader) RegionX() int32 { return r.rx }

// RegionZ returns the region's z coordinate, as parsed from its file name.
func (r *Reader) RegionZ() int32 { return r.rz }

func (r *Reader) parseHeader() error {
	var header [8192]byte
	if _, err := r.file.ReadAt(header[:], 0); err != nil && err != io.EOF {
		return err
	}
	for i := 0; i < 1024; i++ {
		word := binary.BigEndian.Uint32(header[i*4 : i*4+4])
		r.offsets[i] = (word >> 8) * 4096
		r.sizes[i] = (word & 0xFF) * 4096
	}
	for i := 0; i < 1024; i++ {
		base := 4096 + i*4
		r.timestamps[i] = binary.BigEndian.Uint32(header[base : base+4])
	}
	r.parsed = true
	return nil
}

func (r *Reader) ensureParsed() error {
	if r.parsed {
		return nil
	}
	return r.parseHeader()
}

func (r *Reader) openEntryHandle(offset int64, index uint32, timestamp uint32) (*Entry, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, err
	}
	return NewEntry(f, offset, index, timestamp, r.rx, r.rz), nil
}

// CountEntries returns the number of non-empty slots in the region without
// opening a per-entry file handle for each one, for callers (e.g. preflight
// counting) that only need the count. See spec §4.8 step 2.
func (r *Reader) CountEntries() (int, error) {
	if err := r.ensureParsed(); err != nil {
		return 0, err
	}
	n := 0
	for i := 0; i < 1024; i++ {
		if r.offsets[i] == 0 || r.sizes[i] == 0 {
			continue
		}
		n++
	}
	return n, nil
}

// Entries returns every non-empty slot in the region, in slot-index order.
func (r *Reader) Entries() ([]*Entry, error) {
	if err := r.ensureParsed(); err != nil {
		return nil, err
	}
	var out []*Entry
	for i := 0; i < 1024; i++ {
		if r.offsets[i] == 0 || r.sizes[i] == 0 {
			continue
		}
		e, err := r.openEntryHandle(int64(r.offsets[i]), uint32(i), r.timestamps[i])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Get returns the entry at the given slot index, or nil if that slot is
// empty. index must be in [0, 1024).
func (r *Reader) Get(index int) (*Entry, error) {
	if err := r.ensureParsed(); err != nil {
		return nil, err
	}
	if index < 0 || index >= 1024 {
		return nil, fmt.Errorf("mca: slot index %d out of range", index)
	}
	if r.offsets[index] == 0 || r.sizes[index] == 0 {
		return nil, nil
	}
	return r.openEntryHandle(int64(r.offsets[index]), uint32(index), r.timestamps[index])
}
