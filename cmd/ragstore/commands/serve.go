package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragstore-go/internal/history"
	"github.com/54b3r/ragstore-go/internal/logging"
	"github.com/54b3r/ragstore-go/internal/server"
)

// NewServeCmd constructs the `ragstore serve` command, which starts the
// HTTP server exposing the REST API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ragstore HTTP server",
		Long: `Start the ragstore HTTP server on localhost.

The server exposes the document store over REST: ingestion, retrieval,
hybrid search, stats, per-session search history, health and readiness
probes, and Prometheus metrics on /metrics.

Examples:
  ragstore serve
  ragstore serve --port 9090
  STORAGE_BACKEND=postgres ragstore serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			// Flags win over env; env wins over the built-in defaults.
			if !cmd.Flags().Changed("host") {
				if v := os.Getenv("RAGSTORE_HOST"); v != "" {
					host = v
				}
			}
			if !cmd.Flags().Changed("port") {
				if v, err := strconv.Atoi(os.Getenv("RAGSTORE_PORT")); err == nil && v > 0 {
					port = v
				}
			}

			log.Info("serve starting", slog.String("backend", os.Getenv("STORAGE_BACKEND")))

			repo, cleanup, err := openRepository(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer cleanup()

			// Open search history store. RAGSTORE_HISTORY_DB overrides the
			// default path (~/.ragstore/history.db). Set to "disabled" to disable.
			var historyStore history.Store
			dbPath := os.Getenv("RAGSTORE_HISTORY_DB")
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = history.DefaultDBPath()
					if err != nil {
						log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
					}
				}
				if dbPath != "" {
					hs, hsErr := history.Open(dbPath)
					if hsErr != nil {
						log.Warn("history: failed to open store, disabling", slog.Any("error", hsErr))
					} else {
						historyStore = hs
						defer func() { _ = hs.Close() }()
						log.Info("history: store opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("history: disabled via RAGSTORE_HISTORY_DB=disabled")
			}

			srv, err := server.New(repo, historyStore, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: []server.Pinger{server.NewStorePinger(repo.Store())},
				APIKey:  os.Getenv("RAGSTORE_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
