package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragstore-go/internal/logging"
)

// NewListCmd constructs the `ragstore list` command.
func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			repo, cleanup, err := openRepository(ctx, log)
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}
			defer cleanup()

			docs, err := repo.GetAll(ctx)
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}
			if len(docs) == 0 {
				fmt.Println("no documents stored")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tFILE\tSIZE\tCHUNKS\tUPLOADED")
			for _, d := range docs {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
					d.ID, d.FileName, d.Size, len(d.Chunks),
					d.UploadedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}
