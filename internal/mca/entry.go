package mca

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// CompressionMethod identifies how a chunk slot's payload is stored. See
// spec §3 "Method code".
type CompressionMethod int8

const (
	MethodGzip         CompressionMethod = 1
	MethodZlib         CompressionMethod = 2
	MethodRaw          CompressionMethod = 3
	MethodFramedBlock  CompressionMethod = 4
	MethodCustom       CompressionMethod = 127
	MethodExternalGzip CompressionMethod = -127
	MethodExternalZlib CompressionMethod = -126
	MethodExternalRaw  CompressionMethod = -125
	MethodExternalLz4  CompressionMethod = -124
)

// ErrUnknownMethod is returned by ReadHeader when a slot's method byte does
// not match any known compression method.
type ErrUnknownMethod int8

func (e ErrUnknownMethod) Error() string {
	return fmt.Sprintf("mca: unknown compression method %d", int8(e))
}

func parseMethod(b int8) (CompressionMethod, bool) {
	switch CompressionMethod(b) {
	case MethodGzip, MethodZlib, MethodRaw, MethodFramedBlock, MethodCustom,
		MethodExternalGzip, MethodExternalZlib, MethodExternalRaw, MethodExternalLz4:
		return CompressionMethod(b), true
	default:
		return 0, false
	}
}

// Entry is a random-access view over a single chunk slot in a region file.
// Every Entry owns an independent *os.File handle (the Reader that produced
// it opens the region file afresh for each entry) so seeks performed through one Entry never
// disturb another, letting entries be handed freely across worker
// goroutines. See spec §4.2 and §9 "Shared file handle".
type Entry struct {
	file      *os.File
	start     int64
	index     uint32
	modified  uint32
	regionX   int32
	regionZ   int32
}

// NewEntry constructs an Entry over an already-open file handle. file is
// owned by the Entry afterwards; callers that want to keep using their own
// handle should pass a clone (see Reader.Entries / Reader.Get).
func NewEntry(file *os.File, start int64, index uint32, modified uint32, regionX, regionZ int32) *Entry {
	return &Entry{
		file:     file,
		start:    start,
		index:    index,
		modified: modified,
		regionX:  regionX,
		regionZ:  regionZ,
	}
}

// RegionIndex returns the slot index (z*32 + x) within the region.
func (e *Entry) RegionIndex() uint32 { return e.index }

// XPos returns the chunk's local x coordinate within its region (0-31).
func (e *Entry) XPos() int32 { return int32(e.index % 32) }

// ZPos returns the chunk's local z coordinate within its region (0-31).
func (e *Entry) ZPos() int32 { return int32(e.index / 32) }

// GlobalX returns the chunk's absolute chunk-space x coordinate.
func (e *Entry) GlobalX() int32 { return e.regionX*32 + e.XPos() }

// GlobalZ returns the chunk's absolute chunk-space z coordinate.
func (e *Entry) GlobalZ() int32 { return e.regionZ*32 + e.ZPos() }

// ModifiedTime returns the entry's opaque timestamp-table value.
func (e *Entry) ModifiedTime() uint32 { return e.modified }

// Close releases the entry's file handle.
func (e *Entry) Close() error { return e.file.Close() }

// ReadHeader seeks to the entry's start and decodes the 5-byte slot header
// (plus, for method 127, the following custom-codec name). See spec §4.2.
func (e *Entry) ReadHeader() (length uint32, method CompressionMethod, customName string, err error) {
	if _, err = e.file.Seek(e.start, io.SeekStart); err != nil {
		return 0, 0, "", err
	}
	var buf [5]byte
	if _, err = io.ReadFull(e.file, buf[:]); err != nil {
		return 0, 0, "", err
	}
	length = binary.BigEndian.Uint32(buf[0:4])
	m, ok := parseMethod(int8(buf[4]))
	if !ok {
		return 0, 0, "", ErrUnknownMethod(int8(buf[4]))
	}
	method = m
	if method == MethodCustom {
		var lbuf [2]byte
		if _, err = io.ReadFull(e.file, lbuf[:]); err != nil {
			return 0, 0, "", err
		}
		n := binary.BigEndian.Uint16(lbuf[:])
		name := make([]byte, n)
		if _, err = io.ReadFull(e.file, name); err != nil {
			return 0, 0, "", err
		}
		customName = string(name)
	}
	return length, method, customName, nil
}

// SerializedBytes returns the exact on-disk bytes of this slot (the 4-byte
// length, 1-byte method, and the following length-1 bytes), suitable for a
// verbatim copy into an output region. See spec §3 invariants.
func (e *Entry) SerializedBytes() ([]byte, error) {
	length, _, _, err := e.ReadHeader()
	if err != nil {
		return nil, err
	}
	total := int64(4) + int64(length)
	if _, err := e.file.Seek(e.start, io.SeekStart); err != nil {
		return nil, err
	}
	out := make([]byte, total)
	if _, err := io.ReadFull(e.file, out); err != nil {
		return nil, err
	}
	return out, nil
}

// DataBytes reads the header and returns the method, the raw (possibly
// compressed) payload bytes, and the custom codec name if method is 127.
func (e *Entry) DataBytes() (CompressionMethod, []byte, string, error) {
	length, method, customName, err := e.ReadHeader()
	if err != nil {
		return 0, nil, "", err
	}
	pos := e.start + 5
	dataLen := int64(length) - 1
	if method == MethodCustom {
		skip := int64(2 + len(customName))
		pos += skip
		dataLen -= skip
	}
	if dataLen < 0 {
		return 0, nil, "", fmt.Errorf("mca: negative payload length in slot %d", e.index)
	}
	if _, err := e.file.Seek(pos, io.SeekStart); err != nil {
		return 0, nil, "", err
	}
	data := make([]byte, dataLen)
	if _, err := io.ReadFull(e.file, data); err != nil {
		return 0, nil, "", err
	}
	return method, data, customName, nil
}

// IsExternal reports whether the slot's payload lives in a sibling file
// rather than inline in the region.
func (e *Entry) IsExternal() (bool, error) {
	_, method, _, err := e.ReadHeader()
	if err != nil {
		return false, err
	}
	switch method {
	case MethodExternalGzip, MethodExternalZlib, MethodExternalRaw, MethodExternalLz4:
		return true, nil
	default:
		return false, nil
	}
}

// Decompressed dispatches on the slot's method and returns the fully
// decoded payload. External and custom slots are opaque to this tool and
// decode to an empty result with a nil error, signalling "unreadable by
// predicates" per spec §4.2.
func (e *Entry) Decompressed() ([]byte, error) {
	method, data, _, err := e.DataBytes()
	if err != nil {
		return nil, err
	}
	switch method {
	case MethodRaw:
		return data, nil
	case MethodZlib:
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case MethodGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case MethodFramedBlock:
		return DecodeFramedBlocks(data)
	default:
		return nil, nil
	}
}
