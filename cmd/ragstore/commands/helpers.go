package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/54b3r/ragstore-go/internal/repository"
)

// openRepository constructs the repository for the configured backend and
// returns it with a cleanup function that must be deferred by the caller.
func openRepository(ctx context.Context, log *slog.Logger) (*repository.Repository, func(), error) {
	repo, err := repository.NewFromEnv(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage backend: %w", err)
	}

	cleanup := func() {
		if cerr := repo.Close(); cerr != nil {
			log.Warn("repository close failed", slog.Any("error", cerr))
		}
	}
	return repo, cleanup, nil
}
