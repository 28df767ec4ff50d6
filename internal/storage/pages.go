package storage

import (
	"context"
	"log/slog"

	"github.com/54b3r/ragstore-go/internal/logging"
)

// MaxPages caps the number of pages a GetAll accumulation loop will fetch
// from a paginating backend before declaring end-of-data.
const MaxPages = 1000

// pageRetries is how many times one page fetch is retried on a transient
// failure before the loop gives up on the remaining pages.
const pageRetries = 2

// FetchPages drives a paginated accumulation loop on behalf of a driver.
// fetch is called with the page number and returns the page's rows and
// whether more pages remain. Transient fetch failures are retried up to
// pageRetries times; once exhausted, the rows already accumulated are
// returned without error — a partial result beats no result on read paths.
// Non-transient failures propagate. The context is checked between pages so
// cancellation does not wait for the page ceiling.
func FetchPages[T any](ctx context.Context, driver string, fetch func(ctx context.Context, page int) ([]T, bool, error)) ([]T, error) {
	log := logging.FromContext(ctx)

	var all []T
	for page := 0; page < MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		var (
			rows []T
			more bool
			err  error
		)
		for attempt := 0; ; attempt++ {
			rows, more, err = fetch(ctx, page)
			if err == nil || !IsTransient(err) || attempt >= pageRetries {
				break
			}
			log.Warn("retrying page fetch",
				slog.String("driver", driver),
				slog.Int("page", page),
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()),
			)
		}
		if err != nil {
			if IsTransient(err) {
				log.Warn("page fetch exhausted retries, returning partial result",
					slog.String("driver", driver),
					slog.Int("page", page),
					slog.Int("rows", len(all)),
				)
				return all, nil
			}
			return nil, err
		}

		all = append(all, rows...)
		if !more || len(rows) == 0 {
			return all, nil
		}
	}
	log.Warn("page ceiling reached, returning accumulated rows",
		slog.String("driver", driver),
		slog.Int("pages", MaxPages),
	)
	return all, nil
}
