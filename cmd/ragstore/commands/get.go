package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragstore-go/internal/logging"
)

// NewGetCmd constructs the `ragstore get` command.
func NewGetCmd() *cobra.Command {
	var showContent bool

	cmd := &cobra.Command{
		Use:   "get [document-id]",
		Short: "Show a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			repo, cleanup, err := openRepository(ctx, log)
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}
			defer cleanup()

			doc, err := repo.GetByID(ctx, args[0])
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}
			if doc == nil {
				return fmt.Errorf("get: document %s not found", args[0])
			}

			fmt.Printf("id:           %s\n", doc.ID)
			fmt.Printf("file name:    %s\n", doc.FileName)
			fmt.Printf("content type: %s\n", doc.ContentType)
			fmt.Printf("size:         %d bytes\n", doc.Size)
			fmt.Printf("uploaded at:  %s\n", doc.UploadedAt.Format("2006-01-02 15:04:05 MST"))
			if doc.UploadedBy != "" {
				fmt.Printf("uploaded by:  %s\n", doc.UploadedBy)
			}
			fmt.Printf("chunks:       %d\n", len(doc.Chunks))

			if showContent {
				fmt.Println()
				fmt.Println(doc.Content)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&showContent, "content", false, "Print the full document content")

	return cmd
}
