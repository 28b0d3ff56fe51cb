// Package forceloaded reads a dimension's "force-loaded tickets" sidecar
// (data/chunks.dat) and reports the chunk coordinates it pins. See spec
// §4.5.
package forceloaded

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"

	"github.com/sandertv/gophertunnel/minecraft/nbt"
)

// Coord is a (x, z) chunk-space coordinate.
type Coord [2]int32

// Load reads dimension/data/chunks.dat and returns the force-loaded chunk
// coordinates it names. Both the legacy "Forced" long-array format and the
// modern "tickets" list format are recognised; their results are combined
// if both are present. Any failure — a missing file, a gzip error, a
// malformed tag tree — yields an empty, non-error result: these tickets are
// best-effort hints, never required for correctness. See spec §4.5, §7.
func Load(dimension string) []Coord {
	path := filepath.Join(dimension, "data", "chunks.dat")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil
	}
	defer gz.Close()
	decoded, err := io.ReadAll(gz)
	if err != nil {
		return nil
	}

	var root map[string]interface{}
	if err := nbt.UnmarshalEncoding(decoded, &root, nbt.BigEndian); err != nil {
		return nil
	}
	data, _ := root["data"].(map[string]interface{})
	if data == nil {
		return nil
	}

	var coords []Coord
	coords = append(coords, legacyForced(data)...)
	coords = append(coords, modernTickets(data)...)
	return coords
}

// legacyForced reads the "Forced" 64-bit integer array as consecutive
// (x, z) pairs truncated to 32 bits each.
func legacyForced(data map[string]interface{}) []Coord {
	var arr []int64
	switch v := data["Forced"].(type) {
	case []int64:
		arr = v
	case []int32:
		for _, n := range v {
			arr = append(arr, int64(n))
		}
	default:
		return nil
	}
	var coords []Coord
	for i := 0; i+1 < len(arr); i += 2 {
		coords = append(coords, Coord{int32(arr[i]), int32(arr[i+1])})
	}
	return coords
}

// modernTickets reads the "tickets" list, keeping chunk_pos for every
// ticket whose type is "minecraft:forced".
func modernTickets(data map[string]interface{}) []Coord {
	list, ok := data["tickets"].([]interface{})
	if !ok {
		return nil
	}
	var coords []Coord
	for _, item := range list {
		ticket, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if t, _ := ticket["type"].(string); t != "minecraft:forced" {
			continue
		}
		pos, ok := asInt32Pair(ticket["chunk_pos"])
		if !ok {
			continue
		}
		coords = append(coords, pos)
	}
	return coords
}

func asInt32Pair(v interface{}) (Coord, bool) {
	switch arr := v.(type) {
	case []int32:
		if len(arr) == 2 {
			return Coord{arr[0], arr[1]}, true
		}
	case []int64:
		if len(arr) == 2 {
			return Coord{int32(arr[0]), int32(arr[1])}, true
		}
	}
	return Coord{}, false
}
