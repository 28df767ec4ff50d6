package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragstore-go/internal/logging"
)

// snippetLen bounds how much chunk text the search command prints per hit.
const snippetLen = 160

// NewSearchCmd constructs the `ragstore search` command.
func NewSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search stored documents",
		Long: `Run a hybrid search over the stored documents and print the ranked chunks.

Vector-capable backends combine embedding similarity with keyword matching;
text-only backends run the keyword path alone. Search always succeeds — a
degraded backend produces degraded (possibly empty) results, never an error.

Examples:
  ragstore search "quarterly revenue targets"
  ragstore search --limit 10 "kubernetes ingress"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			repo, cleanup, err := openRepository(ctx, log)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer cleanup()

			query := strings.Join(args, " ")
			chunks := repo.Search(ctx, query, limit)
			if len(chunks) == 0 {
				fmt.Println("no results")
				return nil
			}

			for i, c := range chunks {
				snippet := strings.Join(strings.Fields(c.Content), " ")
				if len(snippet) > snippetLen {
					snippet = snippet[:snippetLen] + "…"
				}
				fmt.Printf("%2d. [%.3f] %s#%d\n    %s\n", i+1, c.RelevanceScore, c.DocumentID, c.Index, snippet)
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "Maximum number of chunks to return")

	return cmd
}
