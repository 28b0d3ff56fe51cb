package commands

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"github.com/bwkimmel/mcprune/internal/mclog"
	"github.com/bwkimmel/mcprune/internal/progress"
	"github.com/bwkimmel/mcprune/internal/world"
)

// Prune implements the prune command.
type Prune struct {
	output        string
	threshold     int64
	removeUnknown bool
	progressMode  string
	skipConfirm   bool
}

func (*Prune) Name() string { return "prune" }

func (*Prune) Synopsis() string {
	return "Prune removes never-visited chunks from a Minecraft world."
}

func (*Prune) Usage() string {
	return `prune <world>
Prune scans every dimension of a Minecraft world and removes chunks whose
InhabitedTime falls below a threshold, unless a force-loaded ticket or
coordinate list says otherwise.

WARNING: Without -output, this command rewrites your world in-place. You
should make a backup before proceeding.

`
}

func (c *Prune) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "output", "", "Directory to write the pruned world to. If empty, the world is rewritten in-place.")
	f.Int64Var(&c.threshold, "threshold_ticks", 20*60*5, "Chunks with InhabitedTime below this many game ticks are removed.")
	f.BoolVar(&c.removeUnknown, "remove_unknown", false, "Treat chunks that cannot be inspected (external storage, empty payload, no InhabitedTime field) as removable. Chunks that fail to decode are removed either way.")
	f.StringVar(&c.progressMode, "progress", "global", "Progress reporting mode: off, global, or per_region.")
	f.BoolVar(&c.skipConfirm, "skip_confirmation", false, "Do not ask for confirmation before proceeding with an in-place prune.")
}

func (c *Prune) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		mclog.Errorf("<world> is required.")
		return subcommands.ExitUsageError
	}
	if f.NArg() > 1 {
		mclog.Errorf("Extra positional arguments found.")
		return subcommands.ExitUsageError
	}
	mode, err := progress.ParseMode(c.progressMode)
	if err != nil {
		mclog.Errorf("%v", err)
		return subcommands.ExitUsageError
	}
	if c.output == "" && !c.skipConfirm {
		confirm()
	}

	summary, err := world.ProcessWorld(ctx, world.Options{
		Input:                   f.Arg(0),
		Output:                  c.output,
		InhabitedThresholdTicks: c.threshold,
		RemoveUnknown:           c.removeUnknown,
		ProgressMode:            mode,
	})
	if err != nil {
		mclog.Errorf("Prune: %v", err)
		return subcommands.ExitFailure
	}
	mclog.Infof("Kept %d chunks, removed %d chunks (%d -> %d bytes) in %.2fs.",
		summary.Kept, summary.Removed, summary.BeforeBytes, summary.AfterBytes, summary.ElapsedSecond)
	return subcommands.ExitSuccess
}
