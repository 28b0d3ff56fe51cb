package world

import (
	"bytes"
	"compress/zlib"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bwkimmel/mcprune/internal/mca"
	"github.com/bwkimmel/mcprune/internal/progress"
)

// inhabitedTimePayload builds the 16-byte tag header plus big-endian value
// that FindLong expects to see for a chunk's "InhabitedTime" field.
func inhabitedTimePayload(value int64) []byte {
	out := []byte{0x04, 0x00, 0x0e}
	out = append(out, "InhabitedTime"...)
	var vbuf [8]byte
	v := uint64(value)
	for i := 7; i >= 0; i-- {
		vbuf[i] = byte(v)
		v >>= 8
	}
	return append(out, vbuf[:]...)
}

// writeRegionFile creates dir/r.<rx>.<rz>.mca with one zlib-compressed chunk
// slot per entry in slots (keyed by slot index, value is InhabitedTime).
func writeRegionFile(t *testing.T, dir string, rx, rz int32, slots map[uint32]int64) string {
	t.Helper()
	name := "r." + itoa(rx) + "." + itoa(rz) + ".mca"
	path := filepath.Join(dir, name)
	w, err := mca.Create(path)
	require.NoError(t, err)

	srcDir := t.TempDir()
	for idx, inhabited := range slots {
		var compressed bytes.Buffer
		zw := zlib.NewWriter(&compressed)
		_, err := zw.Write(inhabitedTimePayload(inhabited))
		require.NoError(t, err)
		require.NoError(t, zw.Close())

		length := uint32(1 + compressed.Len())
		var buf bytes.Buffer
		var lenBuf [4]byte
		lenBuf[0], lenBuf[1], lenBuf[2], lenBuf[3] = byte(length>>24), byte(length>>16), byte(length>>8), byte(length)
		buf.Write(lenBuf[:])
		buf.WriteByte(byte(mca.MethodZlib))
		buf.Write(compressed.Bytes())

		srcPath := filepath.Join(srcDir, "slot")
		require.NoError(t, os.WriteFile(srcPath, buf.Bytes(), 0o644))
		f, err := os.Open(srcPath)
		require.NoError(t, err)
		entry := mca.NewEntry(f, 0, idx, 0, rx, rz)
		require.NoError(t, w.Append(entry))
		require.NoError(t, entry.Close())
	}
	require.NoError(t, w.Finalize())
	return path
}

func itoa(n int32) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

func buildSingleChunkWorld(t *testing.T, inhabited int64) (root string) {
	t.Helper()
	root = t.TempDir()
	regionDir := filepath.Join(root, "region")
	require.NoError(t, os.MkdirAll(regionDir, 0o755))
	writeRegionFile(t, regionDir, 0, 0, map[uint32]int64{0: inhabited})
	return root
}

func countNonEmptySlots(t *testing.T, path string) int {
	t.Helper()
	r, err := mca.Open(path)
	require.NoError(t, err)
	defer r.Close()
	entries, err := r.Entries()
	require.NoError(t, err)
	return len(entries)
}

// TestProcessWorld_ThresholdKeep covers scenario E1.
func TestProcessWorld_ThresholdKeep(t *testing.T) {
	world := buildSingleChunkWorld(t, 42)
	out := filepath.Join(t.TempDir(), "out")

	summary, err := ProcessWorld(context.Background(), Options{
		Input:                   world,
		Output:                  out,
		InhabitedThresholdTicks: 10,
		RemoveUnknown:           false,
		ProgressMode:            progress.ModeOff,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), summary.Kept)
	assert.Equal(t, uint64(0), summary.Removed)
	assert.Equal(t, 1, countNonEmptySlots(t, filepath.Join(out, "region", "r.0.0.mca")))
}

// TestProcessWorld_ThresholdRemove covers scenario E2.
func TestProcessWorld_ThresholdRemove(t *testing.T) {
	world := buildSingleChunkWorld(t, 42)
	out := filepath.Join(t.TempDir(), "out")

	summary, err := ProcessWorld(context.Background(), Options{
		Input:                   world,
		Output:                  out,
		InhabitedThresholdTicks: 100,
		RemoveUnknown:           true,
		ProgressMode:            progress.ModeOff,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), summary.Kept)
	assert.Equal(t, uint64(1), summary.Removed)

	outPath := filepath.Join(out, "region", "r.0.0.mca")
	assert.Equal(t, 0, countNonEmptySlots(t, outPath))
	info, err := os.Stat(outPath)
	require.NoError(t, err)
	assert.Equal(t, int64(8192), info.Size())
}

// TestProcessWorld_EqualityKeeps covers scenario E3.
func TestProcessWorld_EqualityKeeps(t *testing.T) {
	world := buildSingleChunkWorld(t, 42)
	out := filepath.Join(t.TempDir(), "out")

	summary, err := ProcessWorld(context.Background(), Options{
		Input:                   world,
		Output:                  out,
		InhabitedThresholdTicks: 42,
		ProgressMode:            progress.ModeOff,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), summary.Kept)
	assert.Equal(t, 1, countNonEmptySlots(t, filepath.Join(out, "region", "r.0.0.mca")))
}

// TestProcessWorld_TinyFileSkipped covers scenario E4.
func TestProcessWorld_TinyFileSkipped(t *testing.T) {
	root := t.TempDir()
	regionDir := filepath.Join(root, "region")
	require.NoError(t, os.MkdirAll(regionDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(regionDir, "r.0.0.mca"), make([]byte, 100), 0o644))

	out := filepath.Join(t.TempDir(), "out")
	summary, err := ProcessWorld(context.Background(), Options{
		Input:                   root,
		Output:                  out,
		InhabitedThresholdTicks: 10,
		ProgressMode:            progress.ModeOff,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), summary.Kept)
	assert.Equal(t, uint64(0), summary.Removed)
	_, err = os.Stat(filepath.Join(out, "region", "r.0.0.mca"))
	assert.True(t, os.IsNotExist(err))
}

// TestProcessWorld_InPlace covers scenario E6: after an in-place run, the
// input's region directory contains only what the run produced, and the
// temporary working directory used internally no longer exists.
func TestProcessWorld_InPlace(t *testing.T) {
	world := buildSingleChunkWorld(t, 42)

	before, err := os.ReadDir(os.TempDir())
	require.NoError(t, err)
	beforeNames := map[string]bool{}
	for _, e := range before {
		beforeNames[e.Name()] = true
	}

	summary, err := ProcessWorld(context.Background(), Options{
		Input:                   world,
		InhabitedThresholdTicks: 10,
		ProgressMode:            progress.ModeOff,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), summary.Kept)

	assert.Equal(t, 1, countNonEmptySlots(t, filepath.Join(world, "region", "r.0.0.mca")))

	after, err := os.ReadDir(os.TempDir())
	require.NoError(t, err)
	for _, e := range after {
		if !beforeNames[e.Name()] {
			assert.NotContains(t, e.Name(), "mcprune-", "temporary output directory should have been removed")
		}
	}
}

// TestProcessWorld_MirrorsEntitiesToKeptSlotsOnly covers the mirroring
// property (spec §3, §8 property 7): the entities output file's non-empty
// slots are a subset of the region output file's.
func TestProcessWorld_MirrorsEntitiesToKeptSlotsOnly(t *testing.T) {
	root := t.TempDir()
	regionDir := filepath.Join(root, "region")
	entitiesDir := filepath.Join(root, "entities")
	require.NoError(t, os.MkdirAll(regionDir, 0o755))
	require.NoError(t, os.MkdirAll(entitiesDir, 0o755))

	writeRegionFile(t, regionDir, 0, 0, map[uint32]int64{0: 100, 1: 5})
	writeRegionFile(t, entitiesDir, 0, 0, map[uint32]int64{0: 0, 1: 0})

	out := filepath.Join(t.TempDir(), "out")
	summary, err := ProcessWorld(context.Background(), Options{
		Input:                   root,
		Output:                  out,
		InhabitedThresholdTicks: 50,
		RemoveUnknown:           true,
		ProgressMode:            progress.ModeOff,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), summary.Kept)
	assert.Equal(t, uint64(1), summary.Removed)

	assert.Equal(t, 1, countNonEmptySlots(t, filepath.Join(out, "region", "r.0.0.mca")))
	assert.Equal(t, 1, countNonEmptySlots(t, filepath.Join(out, "entities", "r.0.0.mca")))

	er, err := mca.Open(filepath.Join(out, "entities", "r.0.0.mca"))
	require.NoError(t, err)
	defer er.Close()
	entry, err := er.Get(0)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.NoError(t, entry.Close())
}

func TestProcessWorld_OutputNotEmptyIsFatal(t *testing.T) {
	world := buildSingleChunkWorld(t, 42)
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(out, "stray.txt"), []byte("x"), 0o644))

	_, err := ProcessWorld(context.Background(), Options{
		Input:                   world,
		Output:                  out,
		InhabitedThresholdTicks: 10,
		ProgressMode:            progress.ModeOff,
	})
	require.Error(t, err)
	var notEmpty *OutputNotEmptyError
	assert.ErrorAs(t, err, &notEmpty)
}
