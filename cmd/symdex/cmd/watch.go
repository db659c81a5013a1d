package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/symdex-dev/symdex/internal/index"
	"github.com/symdex-dev/symdex/internal/logging"
	"github.com/symdex-dev/symdex/internal/output"
	"github.com/symdex-dev/symdex/internal/workspace"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Index continuously as files change",
		Long: `Run an initial index pass and then keep the index current.

File events are debounced and coalesced, so a burst of saves triggers
one incremental pass. Changes to .gitignore or .symdex.yaml re-read
the ignore rules before the next pass. Stop with Ctrl+C.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := ""
			if len(args) > 0 {
				path = args[0]
			}
			return runWatch(ctx, cmd, path)
		},
	}
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, path string) error {
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
	out.Printf("watching %s", eng.Workspace().Root)

	err = eng.Watch(ctx, func(counts index.Counts, passErr error) {
		if passErr != nil {
			if !errors.Is(passErr, context.Canceled) {
				out.Errorf("index pass failed: %v", passErr)
			}
			return
		}
		if changed := counts.New + counts.Modified + counts.Removed; changed > 0 {
			out.Printf("updated: %d new, %d modified, %d removed",
				counts.New, counts.Modified, counts.Removed)
		}
	})
	if errors.Is(err, context.Canceled) {
		out.Println("stopped")
		return nil
	}
	return err
}
