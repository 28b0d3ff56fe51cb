// Package world implements the world processor: dimension discovery,
// per-region chunk selection, and mirroring that selection across the
// region/entities/poi file families. See spec §4.8.
package world

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bwkimmel/mcprune/internal/forceloaded"
	"github.com/bwkimmel/mcprune/internal/mca"
	"github.com/bwkimmel/mcprune/internal/mclog"
	"github.com/bwkimmel/mcprune/internal/patterns"
	"github.com/bwkimmel/mcprune/internal/progress"
)

// minRegionFileSize is the on-disk size below which an .mca file cannot
// even hold its two header tables, and is skipped with a warning rather
// than opened. See spec §4.3, §4.8 step 2, scenario E4.
const minRegionFileSize = 8192

// Options configures a single process_world run. See spec §6.
type Options struct {
	// Input is the world directory to scan.
	Input string
	// Output is the directory to write the pruned world to. Empty means
	// in-place: a temporary directory is used and then swapped into Input.
	Output string
	// InhabitedThresholdTicks is the InhabitedTime (in game ticks) at or
	// above which a chunk is kept.
	InhabitedThresholdTicks int64
	// RemoveUnknown treats chunks that cannot be inspected (externally
	// stored, empty payload, or no InhabitedTime field) as removable instead
	// of keeping them defensively. Chunks whose payload fails to decode are
	// removed regardless, unless an earlier pattern keeps them.
	RemoveUnknown bool
	// ProgressMode selects how progress is rendered while the run proceeds.
	ProgressMode progress.Mode
}

// OutputNotEmptyError is returned when Options.Output already exists and is
// not empty.
type OutputNotEmptyError struct{ Path string }

func (e *OutputNotEmptyError) Error() string {
	return fmt.Sprintf("world: output directory %q is not empty", e.Path)
}

// ProcessWorld discovers every dimension under opts.Input, applies the
// keep-predicate chain to every chunk, and writes a pruned copy of the
// region/entities/poi files. It is the sole entry point into the core of
// this tool; everything else (CLI flags, prompts, archival) is a thin
// driver above it. See spec §1, §6.
func ProcessWorld(ctx context.Context, opts Options) (progress.Summary, error) {
	start := time.Now()

	info, err := os.Stat(opts.Input)
	if err != nil || !info.IsDir() {
		return progress.Summary{}, fmt.Errorf("world: input %q is not a directory", opts.Input)
	}
	beforeBytes := dirSize(opts.Input)

	outDir := opts.Output
	inPlace := outDir == ""
	if inPlace {
		outDir = filepath.Join(os.TempDir(), "mcprune-"+uuid.NewString())
	}
	if err := prepareOutput(outDir); err != nil {
		return progress.Summary{}, err
	}

	dims, err := discoverDimensions(opts.Input)
	if err != nil {
		return progress.Summary{}, err
	}

	totalChunks := countChunksForPreflight(dims)
	sink := progress.NewSink(opts.ProgressMode)
	sink.SetTotal(totalChunks)

	var processedChunks atomic.Uint64
	var removedChunks atomic.Uint64
	var processedRegions atomic.Uint64

	g, gctx := errgroup.WithContext(ctx)
	for _, dim := range dims {
		dim := dim
		g.Go(func() error {
			return processDimension(gctx, dim, opts, outDir, sink, &processedChunks, &removedChunks, &processedRegions)
		})
	}
	if err := g.Wait(); err != nil {
		return progress.Summary{}, err
	}

	var afterBytes uint64
	if inPlace {
		if err := mirrorIntoInput(dims, opts.Input, outDir); err != nil {
			return progress.Summary{}, err
		}
		if err := os.RemoveAll(outDir); err != nil {
			return progress.Summary{}, err
		}
		afterBytes = dirSize(opts.Input)
	} else {
		afterBytes = dirSize(outDir)
	}

	summary := progress.Summary{
		Kept:          processedChunks.Load() - removedChunks.Load(),
		Removed:       removedChunks.Load(),
		BeforeBytes:   beforeBytes,
		AfterBytes:    afterBytes,
		ElapsedSecond: progress.Since(start),
	}
	mclog.Infof("processed %d regions, kept %d chunks, removed %d chunks in %.2fs",
		processedRegions.Load(), summary.Kept, summary.Removed, summary.ElapsedSecond)
	sink.Summary(summary)
	return summary, nil
}

func prepareOutput(path string) error {
	entries, err := os.ReadDir(path)
	if err == nil {
		if len(entries) > 0 {
			return &OutputNotEmptyError{Path: path}
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(path, 0o755)
}

func isDimensionDir(path string) bool {
	info, err := os.Stat(filepath.Join(path, "region"))
	return err == nil && info.IsDir()
}

// discoverDimensions lists every immediate subdirectory of input with a
// region/ subdirectory, plus input itself if it qualifies. See spec §4.8
// step 1.
func discoverDimensions(input string) ([]string, error) {
	entries, err := os.ReadDir(input)
	if err != nil {
		return nil, fmt.Errorf("world: reading input directory: %w", err)
	}
	var dims []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		p := filepath.Join(input, e.Name())
		if isDimensionDir(p) {
			dims = append(dims, p)
		}
	}
	if isDimensionDir(input) {
		dims = append(dims, input)
	}
	return dims, nil
}

func isValidRegionFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		mclog.Warnf("world: failed to stat %s: %v", path, err)
		return false
	}
	if info.Size() < minRegionFileSize {
		mclog.Warnf("world: skipping tiny region file %s (%d bytes)", path, info.Size())
		return false
	}
	return true
}

func listRegionFiles(regionDir string) []string {
	entries, err := os.ReadDir(regionDir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".mca") {
			continue
		}
		p := filepath.Join(regionDir, e.Name())
		if isValidRegionFile(p) {
			out = append(out, p)
		}
	}
	return out
}

// countChunksForPreflight sizes progress counters by opening every valid
// region file ahead of time. See spec §4.8 step 2.
func countChunksForPreflight(dims []string) uint64 {
	var total uint64
	for _, dim := range dims {
		for _, rf := range listRegionFiles(filepath.Join(dim, "region")) {
			r, err := mca.Open(rf)
			if err != nil {
				mclog.Warnf("world: failed to open %s during preflight: %v", rf, err)
				continue
			}
			n, err := r.CountEntries()
			if err != nil {
				mclog.Warnf("world: failed to read entries in %s during preflight: %v", rf, err)
			} else {
				total += uint64(n)
			}
			r.Close()
		}
	}
	return total
}

func processDimension(
	ctx context.Context,
	dim string,
	opts Options,
	outRoot string,
	sink progress.Sink,
	processedChunks, removedChunks, processedRegions *atomic.Uint64,
) error {
	rel, err := filepath.Rel(opts.Input, dim)
	if err != nil {
		rel = filepath.Base(dim)
	}
	outDim := filepath.Join(outRoot, rel)

	forced := forceloaded.Load(dim)
	coords := make([][2]int32, len(forced))
	for i, c := range forced {
		coords[i] = [2]int32{c[0], c[1]}
	}
	chain := patterns.Chain{
		patterns.NewCoordinateList(coords),
		&patterns.InhabitedTime{Threshold: opts.InhabitedThresholdTicks, RemoveUnknown: opts.RemoveUnknown},
	}

	regionDir := filepath.Join(dim, "region")
	entitiesDir := filepath.Join(dim, "entities")
	poiDir := filepath.Join(dim, "poi")

	if err := os.MkdirAll(filepath.Join(outDim, "region"), 0o755); err != nil {
		return err
	}
	hasEntities := isDir(entitiesDir)
	hasPoi := isDir(poiDir)
	if hasEntities {
		if err := os.MkdirAll(filepath.Join(outDim, "entities"), 0o755); err != nil {
			return err
		}
	}
	if hasPoi {
		if err := os.MkdirAll(filepath.Join(outDim, "poi"), 0o755); err != nil {
			return err
		}
	}

	for _, rf := range listRegionFiles(regionDir) {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := filepath.Base(rf)
		if err := processRegionFile(rf, name, outDim, entitiesDir, poiDir, hasEntities, hasPoi, chain, sink, processedChunks, removedChunks); err != nil {
			mclog.Warnf("world: region %s failed: %v", rf, err)
			continue
		}
		processedRegions.Add(1)
	}
	return nil
}

func processRegionFile(
	rf, name, outDim, entitiesDir, poiDir string,
	hasEntities, hasPoi bool,
	chain patterns.Chain,
	sink progress.Sink,
	processedChunks, removedChunks *atomic.Uint64,
) error {
	cr, err := mca.Open(rf)
	if err != nil {
		return fmt.Errorf("opening region reader: %w", err)
	}
	defer cr.Close()

	cw, err := mca.Create(filepath.Join(outDim, "region", name))
	if err != nil {
		return fmt.Errorf("creating region writer: %w", err)
	}

	efile := filepath.Join(entitiesDir, name)
	pfile := filepath.Join(poiDir, name)

	var er, pr *mca.Reader
	var ew, pw *mca.Writer

	if hasEntities && isValidRegionFile(efile) {
		if er, err = mca.Open(efile); err != nil {
			mclog.Warnf("world: failed to open entities %s: %v", efile, err)
			er = nil
		} else {
			defer er.Close()
			if ew, err = mca.Create(filepath.Join(outDim, "entities", name)); err != nil {
				mclog.Warnf("world: failed to create output entities %s: %v", name, err)
				ew = nil
			}
		}
	}
	if hasPoi && isValidRegionFile(pfile) {
		if pr, err = mca.Open(pfile); err != nil {
			mclog.Warnf("world: failed to open poi %s: %v", pfile, err)
			pr = nil
		} else {
			defer pr.Close()
			if pw, err = mca.Create(filepath.Join(outDim, "poi", name)); err != nil {
				mclog.Warnf("world: failed to create output poi %s: %v", name, err)
				pw = nil
			}
		}
	}

	entries, err := cr.Entries()
	if err != nil {
		mclog.Warnf("world: failed to read entries in %s: %v", name, err)
		entries = nil
	}

	var removedInRegion uint64
	for _, entry := range entries {
		keep := false
		for _, p := range chain {
			ok, err := p.Matches(entry)
			if err != nil {
				mclog.Warnf("world: pattern evaluation failed on chunk %d in %s: %v", entry.RegionIndex(), name, err)
				continue
			}
			if ok {
				keep = true
				break
			}
		}

		if keep {
			if err := cw.Append(entry); err != nil {
				mclog.Warnf("world: failed to write chunk %d in %s: %v", entry.RegionIndex(), name, err)
			}
			mirrorEntry(er, ew, entry.RegionIndex(), "entities", name)
			mirrorEntry(pr, pw, entry.RegionIndex(), "poi", name)
		} else {
			removedInRegion++
			removedChunks.Add(1)
		}
		entry.Close()
		sink.ChunkDecided(processedChunks.Add(1))
	}

	if err := cw.Finalize(); err != nil {
		return fmt.Errorf("finalizing region writer: %w", err)
	}
	if ew != nil {
		if err := ew.Finalize(); err != nil {
			mclog.Warnf("world: failed to finalize entities writer for %s: %v", name, err)
		}
	}
	if pw != nil {
		if err := pw.Finalize(); err != nil {
			mclog.Warnf("world: failed to finalize poi writer for %s: %v", name, err)
		}
	}
	sink.RegionFinished(name, removedInRegion)
	return nil
}

// mirrorEntry copies slot index from a mirrored family's reader (entities
// or poi) into its writer, iff that family's reader has a non-empty slot
// there. See spec §3 "For mirrored families".
func mirrorEntry(r *mca.Reader, w *mca.Writer, index uint32, family, regionName string) {
	if r == nil || w == nil {
		return
	}
	e, err := r.Get(int(index))
	if err != nil {
		mclog.Warnf("world: failed to read %s entry %d in %s: %v", family, index, regionName, err)
		return
	}
	if e == nil {
		return
	}
	defer e.Close()
	if err := w.Append(e); err != nil {
		mclog.Warnf("world: failed to write %s entry %d in %s: %v", family, index, regionName, err)
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func dirSize(root string) uint64 {
	var total uint64
	info, err := os.Stat(root)
	if err != nil {
		return 0
	}
	if !info.IsDir() {
		return uint64(info.Size())
	}
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if fi, err := d.Info(); err == nil {
			total += uint64(fi.Size())
		}
		return nil
	})
	return total
}

// mirrorIntoInput replaces each dimension's region/entities/poi directories
// under input with the ones produced under outRoot: files absent from the
// output are deleted, and every output file is copied in. See spec §4.8
// step 5, scenario E6.
func mirrorIntoInput(dims []string, input, outRoot string) error {
	for _, dim := range dims {
		rel, err := filepath.Rel(input, dim)
		if err != nil {
			rel = filepath.Base(dim)
		}
		outDim := filepath.Join(outRoot, rel)
		inDim := filepath.Join(input, rel)
		for _, family := range []string{"region", "entities", "poi"} {
			src := filepath.Join(outDim, family)
			if !isDir(src) {
				continue
			}
			dst := filepath.Join(inDim, family)
			if err := os.MkdirAll(dst, 0o755); err != nil {
				return err
			}
			kept := make(map[string]bool)
			srcEntries, err := os.ReadDir(src)
			if err != nil {
				return err
			}
			for _, e := range srcEntries {
				if strings.HasSuffix(e.Name(), ".mca") {
					kept[e.Name()] = true
				}
			}
			if dstEntries, err := os.ReadDir(dst); err == nil {
				for _, e := range dstEntries {
					if strings.HasSuffix(e.Name(), ".mca") && !kept[e.Name()] {
						if err := os.Remove(filepath.Join(dst, e.Name())); err != nil {
							return err
						}
					}
				}
			}
			for name := range kept {
				if err := copyFile(filepath.Join(src, name), filepath.Join(dst, name)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
