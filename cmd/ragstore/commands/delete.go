package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragstore-go/internal/logging"
)

// NewDeleteCmd constructs the `ragstore delete` command.
func NewDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [document-id]",
		Short: "Delete a stored document and all its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			repo, cleanup, err := openRepository(ctx, log)
			if err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			defer cleanup()

			deleted, err := repo.Delete(ctx, args[0])
			if err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			if !deleted {
				return fmt.Errorf("delete: document %s not found", args[0])
			}

			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	}
}
