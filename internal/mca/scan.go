package mca

import (
	"bytes"
	"encoding/binary"
)

const longTagType = 0x04

// FindLong scans a serialized compound-tag payload for the first occurrence
// of a named 64-bit integer (TAG_Long) field and returns its value, without
// materialising the tag tree. It works because a named long field is always
// preceded by an exact byte-for-byte tag header: 1-byte tag type (4),
// 2-byte big-endian name length, then the name bytes. See spec §4.6.
//
// This is correct only so long as name is unique among TAG_Long field names
// in payload; a pathological payload that embeds the tag header inside a
// string value would produce a false match, but no known chunk format does
// this (see spec §9, trusted-input assumption).
func FindLong(payload []byte, name string) (int64, bool) {
	prefix := longTagPrefix(name)
	if len(payload) < len(prefix)+8 {
		return 0, false
	}
	idx := bytes.Index(payload, prefix)
	if idx < 0 {
		return 0, false
	}
	start := idx + len(prefix)
	if start+8 > len(payload) {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(payload[start : start+8])), true
}

func longTagPrefix(name string) []byte {
	prefix := make([]byte, 0, 3+len(name))
	prefix = append(prefix, longTagType)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(name)))
	prefix = append(prefix, lenBuf[:]...)
	prefix = append(prefix, name...)
	return prefix
}
