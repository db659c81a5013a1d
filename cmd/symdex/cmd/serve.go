package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/symdex-dev/symdex/internal/async"
	"github.com/symdex-dev/symdex/internal/logging"
	"github.com/symdex-dev/symdex/internal/mcp"
	"github.com/symdex-dev/symdex/internal/workspace"
)

func newServeCmd() *cobra.Command {
	var noIndex bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the index to MCP clients over stdio",
		Long: `Start the MCP server for AI clients like Claude Code.

The index is brought up to date in the background on startup, so the
server answers tool calls immediately; workspace_status reports the
pass in flight. Stdout carries JSON-RPC frames exclusively, all
logging goes to the file in .symdex/logs/.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, noIndex)
		},
	}

	cmd.Flags().BoolVar(&noIndex, "no-index", false, "Serve the existing index without a startup pass")

	return cmd
}

func runServe(ctx context.Context, noIndex bool) error {
	root, err := resolveRoot("")
	if err != nil {
		return err
	}

	// stdout belongs to the MCP transport from here on.
	cleanup, logErr := logging.SetupServeMode(workspace.NewLayout(root).DataDir, logLevel())
	if logErr == nil {
		defer cleanup()
	}

	eng, _, err := openEngine(ctx, root, true)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	server, err := mcp.NewServer(eng, slog.Default())
	if err != nil {
		return err
	}

	if !noIndex {
		dataDir := workspace.NewLayout(root).DataDir
		if async.HasIncompleteMarker(dataDir) {
			slog.Warn("previous_index_pass_incomplete")
		}

		runner := async.NewRunner(async.RunnerConfig{DataDir: dataDir})
		runner.Run = func(runCtx context.Context, p *async.Progress) error {
			_, runErr := eng.Index(runCtx, func(stage string, done, total int) {
				p.SetStage(async.IndexingStage(stage), total)
				p.UpdateFiles(done)
			})
			return runErr
		}
		server.SetProgress(runner.Progress())
		runner.Start(ctx)
		defer runner.Stop()
	}

	err = server.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
