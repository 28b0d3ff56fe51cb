package forceloaded

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/sandertv/gophertunnel/minecraft/nbt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeChunksDat gzip-compresses root as a BigEndian-encoded compound tag
// and writes it to dimension/data/chunks.dat, matching the layout Load
// expects. See spec §4.5.
func writeChunksDat(t *testing.T, dimension string, root map[string]interface{}) {
	t.Helper()
	dataDir := filepath.Join(dimension, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))

	var buf bytes.Buffer
	enc := nbt.NewEncoderWithEncoding(&buf, nbt.BigEndian)
	require.NoError(t, enc.Encode(root))

	var gzBuf bytes.Buffer
	gw := gzip.NewWriter(&gzBuf)
	_, err := gw.Write(buf.Bytes())
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "chunks.dat"), gzBuf.Bytes(), 0o644))
}

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	coords := Load(dir)
	assert.Empty(t, coords)
}

func TestLoadLegacyForcedFormat(t *testing.T) {
	dir := t.TempDir()
	writeChunksDat(t, dir, map[string]interface{}{
		"data": map[string]interface{}{
			"Forced": []int64{5, -3, 100, 200},
		},
	})

	coords := Load(dir)
	assert.ElementsMatch(t, []Coord{{5, -3}, {100, 200}}, coords)
}

func TestLoadModernTicketsFormat(t *testing.T) {
	dir := t.TempDir()
	writeChunksDat(t, dir, map[string]interface{}{
		"data": map[string]interface{}{
			"tickets": []interface{}{
				map[string]interface{}{
					"type":      "minecraft:forced",
					"chunk_pos": []int32{7, 9},
				},
				map[string]interface{}{
					"type":      "minecraft:portal",
					"chunk_pos": []int32{1, 1},
				},
			},
		},
	})

	coords := Load(dir)
	assert.Equal(t, []Coord{{7, 9}}, coords)
}

func TestLoadCombinesBothFormats(t *testing.T) {
	dir := t.TempDir()
	writeChunksDat(t, dir, map[string]interface{}{
		"data": map[string]interface{}{
			"Forced": []int64{1, 2},
			"tickets": []interface{}{
				map[string]interface{}{
					"type":      "minecraft:forced",
					"chunk_pos": []int32{3, 4},
				},
			},
		},
	})

	coords := Load(dir)
	assert.ElementsMatch(t, []Coord{{1, 2}, {3, 4}}, coords)
}

func TestLoadMalformedGzipReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "chunks.dat"), []byte("not gzip"), 0o644))

	assert.Empty(t, Load(dir))
}
