package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/symdex-dev/symdex/internal/engine"
	"github.com/symdex-dev/symdex/internal/output"
)

func newSearchCmd() *cobra.Command {
	var (
		limit       int
		workspaceID string
		semantic    bool
		threshold   float64
		jsonOutput  bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find symbols by name or meaning",
		Long: `Search the index for symbol definitions.

The default pipeline tries exact and prefix name matches, then
full-text search over signatures and doc comments, then falls back to
semantic similarity when too few results were found.

Use --semantic to skip straight to similarity search for
natural-language queries like 'function that retries failed requests'.
Use --workspace to search a reference workspace by id.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, args[0], searchOptions{
				limit:       limit,
				workspaceID: workspaceID,
				semantic:    semantic,
				threshold:   threshold,
				jsonOutput:  jsonOutput,
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results (default 20)")
	cmd.Flags().StringVar(&workspaceID, "workspace", "", "Search a reference workspace by id")
	cmd.Flags().BoolVar(&semantic, "semantic", false, "Search by meaning instead of name")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum similarity for --semantic (default 0.70)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

type searchOptions struct {
	limit       int
	workspaceID string
	semantic    bool
	threshold   float64
	jsonOutput  bool
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	root, err := resolveRoot("")
	if err != nil {
		return err
	}

	eng, _, err := openEngine(ctx, root, false)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	var matches []engine.Match
	if opts.semantic {
		semMatches, _, err := eng.SemanticSearch(ctx, query, opts.limit, opts.threshold)
		if err != nil {
			return err
		}
		for _, m := range semMatches {
			matches = append(matches, engine.Match{
				Symbol:     m.Symbol,
				Source:     engine.SourceSemantic,
				Similarity: m.Similarity,
			})
		}
	} else {
		matches, err = eng.FindSymbols(ctx, query, opts.limit, opts.workspaceID)
		if err != nil {
			return err
		}
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(matches)
	}

	out := output.New(cmd.OutOrStdout())
	if len(matches) == 0 {
		out.Println("no matches")
		return nil
	}
	for _, m := range matches {
		location := fmt.Sprintf("%s:%d", m.Symbol.FilePath, m.Symbol.StartLine)
		if m.Source == engine.SourceSemantic {
			out.Printf("%-40s %-10s %s (similarity %.2f)", m.Symbol.Name, m.Symbol.Kind, location, m.Similarity)
		} else {
			out.Printf("%-40s %-10s %s", m.Symbol.Name, m.Symbol.Kind, location)
		}
		if m.Symbol.Signature != "" {
			out.Detail(m.Symbol.Signature)
		}
	}
	return nil
}
