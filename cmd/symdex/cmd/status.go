package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/symdex-dev/symdex/internal/output"
	"github.com/symdex-dev/symdex/internal/workspace"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and statistics",
		Long: `Display information about the current index:
  - workspace id and indexed file/symbol counts
  - text backend and embedding model in use
  - vector store size and search strategy
  - registered reference workspaces
  - health check results`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	root, err := resolveRoot("")
	if err != nil {
		return err
	}

	eng, _, err := openEngine(ctx, root, false)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	status, err := eng.Status(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	out := output.New(cmd.OutOrStdout())
	out.Printf("workspace  %s", status.WorkspaceID)
	out.Printf("root       %s", status.Root)
	out.Printf("files      %d", status.Files)
	out.Printf("symbols    %d", status.Symbols)
	out.Printf("text       %s", status.TextBackend)
	if status.EmbeddingModel != "" {
		out.Printf("embeddings %s (%d vectors, %s search)",
			status.EmbeddingModel, status.Vectors.Entries, status.Vectors.Strategy)
	}
	if status.Registry.ReferenceCount > 0 {
		out.Printf("references %d", status.Registry.ReferenceCount)
	}

	out.Newline()
	for _, check := range status.Health {
		line := fmt.Sprintf("%s: %s", check.Name, check.Message)
		switch check.Status {
		case workspace.StatusPass:
			out.Success(line)
		case workspace.StatusWarn:
			out.Warning(line)
		default:
			out.Error(line)
		}
	}
	if !status.Healthy {
		return fmt.Errorf("index is unhealthy, run 'symdex index' to repair")
	}
	return nil
}
