package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"os/user"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragstore-go/internal/logging"
	"github.com/54b3r/ragstore-go/internal/storage"
)

// NewAddCmd constructs the `ragstore add` command, which ingests one or more
// files into the configured storage backend.
func NewAddCmd() *cobra.Command {
	var uploadedBy string

	cmd := &cobra.Command{
		Use:   "add [file...]",
		Short: "Ingest documents into the store",
		Long: `Read one or more text files, split them into chunks, resolve embeddings
when the backend supports vector search, and store the results.

The storage backend is selected via STORAGE_BACKEND (default: memory — for
persistence pick filesystem, sqlite, redis, qdrant, or postgres).

Examples:
  ragstore add notes.md
  STORAGE_BACKEND=qdrant ragstore add docs/*.txt
  ragstore add --uploaded-by alice report.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			repo, cleanup, err := openRepository(ctx, log)
			if err != nil {
				return fmt.Errorf("add: %w", err)
			}
			defer cleanup()

			if uploadedBy == "" {
				if u, uerr := user.Current(); uerr == nil {
					uploadedBy = u.Username
				}
			}

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("add: failed to read %s: %w", path, err)
				}

				fileName := filepath.Base(path)
				contentType := mime.TypeByExtension(filepath.Ext(path))
				if contentType == "" {
					contentType = "text/plain"
				}

				doc, err := repo.Ingest(ctx, fileName, contentType, uploadedBy, string(data))
				if err != nil {
					if errors.Is(err, storage.ErrAlreadyExists) {
						fmt.Fprintf(os.Stderr, "skipped %s: already stored\n", fileName)
						continue
					}
					return fmt.Errorf("add: failed to ingest %s: %w", fileName, err)
				}

				log.Info("document stored",
					slog.String("document_id", doc.ID),
					slog.String("file_name", doc.FileName),
					slog.Int("chunks", len(doc.Chunks)),
				)
				fmt.Printf("%s  %s (%d chunks)\n", doc.ID, doc.FileName, len(doc.Chunks))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&uploadedBy, "uploaded-by", "", "Uploader recorded on the document (default: current OS user)")

	return cmd
}
