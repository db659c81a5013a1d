// Package cmd provides the CLI commands for symdex.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/symdex-dev/symdex/internal/config"
	"github.com/symdex-dev/symdex/internal/engine"
	"github.com/symdex-dev/symdex/pkg/version"
)

var debugMode bool

// NewRootCmd creates the root command for the symdex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "symdex",
		Short: "Symbol-level code intelligence for AI assistants",
		Long: `Symdex indexes codebases at symbol granularity and answers
find-definition, find-references, and semantic queries over them.

Indexing is incremental: only new and changed files are reprocessed.
Run 'symdex serve' to expose the index to MCP clients like Claude Code.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.SetVersionTemplate("symdex version {{.Version}}\n")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

// resolveRoot turns a CLI path argument into an absolute workspace
// root. Empty means the current directory.
func resolveRoot(path string) (string, error) {
	if path == "" {
		path = "."
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", path, err)
	}
	return abs, nil
}

// openEngine loads configuration for root and opens the engine.
func openEngine(ctx context.Context, root string, create bool) (*engine.Engine, *config.Config, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, nil, err
	}
	if debugMode {
		cfg.Server.LogLevel = "debug"
	}

	eng, err := engine.New(ctx, root, cfg, slog.Default(), engine.Options{Create: create})
	if err != nil {
		return nil, nil, err
	}
	return eng, cfg, nil
}
