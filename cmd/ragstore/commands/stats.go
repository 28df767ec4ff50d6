package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragstore-go/internal/logging"
)

// NewStatsCmd constructs the `ragstore stats` command.
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show backend capabilities and document count",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			repo, cleanup, err := openRepository(ctx, log)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			defer cleanup()

			count, err := repo.Count(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}

			store := repo.Store()
			caps := store.Capabilities()
			fmt.Printf("backend:        %s\n", store.Name())
			fmt.Printf("vector search:  %v\n", caps.VectorSearch)
			fmt.Printf("text search:    %v\n", caps.TextSearch)
			fmt.Printf("documents:      %d\n", count)
			return nil
		},
	}
}
