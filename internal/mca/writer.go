package mca

import (
	"encoding/binary"
	"io"
	"os"
)

const (
	sectorSize = 4096
	headerSize = 2 * sectorSize
)

var zeroSector [sectorSize]byte

// Writer creates a new region file, appending chunk slots sector-aligned
// starting at sector 2 and finalising the two 4096-byte header tables only
// once every slot has been appended. See spec §4.4.
type Writer struct {
	file       *os.File
	dataOffset int64
	offsets    [1024]uint32
	sizes      [1024]uint32
	timestamps [1024]uint32
}

// Create truncates or creates path and reserves the 8192-byte header space.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(make([]byte, headerSize)); err != nil {
		f.Close()
		return nil, err
	}
	return &Writer{file: f, dataOffset: headerSize}, nil
}

// Append copies entry's serialized bytes verbatim to the next data sector,
// zero-pads to a 4096-byte boundary, and records the slot's new location
// and timestamp for Finalize. The entry is never re-encoded. See spec §3
// invariants ("Preservation").
func (w *Writer) Append(entry *Entry) error {
	serialized, err := entry.SerializedBytes()
	if err != nil {
		return err
	}
	start := w.dataOffset
	if _, err := w.file.Seek(start, io.SeekStart); err != nil {
		return err
	}
	if _, err := w.file.Write(serialized); err != nil {
		return err
	}
	written := int64(len(serialized))
	pad := (sectorSize - (written % sectorSize)) % sectorSize
	if pad > 0 {
		if _, err := w.file.Write(zeroSector[:pad]); err != nil {
			return err
		}
	}
	w.dataOffset += written + pad

	idx := entry.RegionIndex()
	w.offsets[idx] = uint32(start)
	w.sizes[idx] = uint32(written + pad)
	w.timestamps[idx] = entry.ModifiedTime()
	return nil
}

// Finalize writes the location and timestamp tables and closes the file.
// Sector counts that would not fit in 8 bits are truncated, matching
// Minecraft's own on-disk limitation (spec §9 open question).
func (w *Writer) Finalize() error {
	var loc [sectorSize]byte
	for i := 0; i < 1024; i++ {
		offSectors := w.offsets[i] / sectorSize
		sizeSectors := w.sizes[i] / sectorSize
		word := (offSectors << 8) | (sizeSectors & 0xFF)
		binary.BigEndian.PutUint32(loc[i*4:i*4+4], word)
	}
	var ts [sectorSize]byte
	for i := 0; i < 1024; i++ {
		binary.BigEndian.PutUint32(ts[i*4:i*4+4], w.timestamps[i])
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := w.file.Write(loc[:]); err != nil {
		return err
	}
	if _, err := w.file.Write(ts[:]); err != nil {
		return err
	}
	return w.file.Close()
}
