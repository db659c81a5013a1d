package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/symdex-dev/symdex/internal/index"
	"github.com/symdex-dev/symdex/internal/logging"
	"github.com/symdex-dev/symdex/internal/output"
	"github.com/symdex-dev/symdex/internal/workspace"
)

func newIndexCmd() *cobra.Command {
	var reference string

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a workspace incrementally",
		Long: `Index a workspace so its symbols can be searched.

Passes after the first are incremental: files whose content hash is
unchanged are skipped, changed files are re-extracted wholesale, and
entries for deleted files are removed.

Use --reference to index another project into a separate reference
index. Reference indexes are isolated from the primary and queried by
workspace id.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			return runIndex(ctx, cmd, path, reference)
		},
	}

	cmd.Flags().StringVar(&reference, "reference", "", "Index the given path as a reference workspace")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, path, reference string) error {
	root, err := resolveRoot(path)
	if err != nil {
		return err
	}

	cleanup, logErr := logging.SetupDefault(workspace.NewLayout(root).DataDir, logLevel())
	if logErr == nil {
		defer cleanup()
	}

	eng, _, err := openEngine(ctx, root, true)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	out := output.New(cmd.OutOrStdout())
	progress := func(stage string, done, total int) {
		if total > 0 {
			out.Progress(done, total, stage)
		}
	}

	start := time.Now()
	if reference != "" {
		refRoot, err := resolveRoot(reference)
		if err != nil {
			return err
		}
		ws, counts, err := eng.IndexReference(ctx, refRoot, progress)
		out.ProgressDone()
		if err != nil {
			return err
		}
		out.Successf("indexed reference workspace %s in %s", ws.ID, time.Since(start).Round(time.Millisecond))
		printCounts(out, counts)
		out.Detail("query it with: symdex search --workspace " + ws.ID + " <name>")
		return nil
	}

	counts, err := eng.Index(ctx, progress)
	out.ProgressDone()
	if err != nil {
		return err
	}
	out.Successf("indexed %s in %s", eng.Workspace().Root, time.Since(start).Round(time.Millisecond))
	printCounts(out, counts)
	return nil
}

func printCounts(out *output.Writer, counts index.Counts) {
	out.Printf("  new %d, modified %d, unchanged %d, removed %d",
		counts.New, counts.Modified, counts.Unchanged, counts.Removed)
	if counts.Failed > 0 {
		out.Warningf("%d files failed to index, see the log for details", counts.Failed)
	}
}

func logLevel() string {
	if debugMode {
		return "debug"
	}
	return "info"
}
