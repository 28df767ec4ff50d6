// Package commands defines all Cobra CLI commands for the ragstore binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/54b3r/ragstore-go/internal/audit"
	"github.com/54b3r/ragstore-go/internal/config"
	"github.com/54b3r/ragstore-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragstore",
		Short: "ragstore — document storage with hybrid vector and keyword search",
		Long: `ragstore stores documents as embedded chunks and retrieves them with
hybrid search: vector similarity combined with keyword matching, degrading
gracefully when a backend supports only one of the two.

Six storage backends are supported: memory, filesystem, sqlite, redis,
qdrant, and postgres. The backend is selected via the STORAGE_BACKEND
environment variable or a YAML config file (~/.ragstore/config.yaml).
See 'ragstore --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Pick up a local .env file when present; real env vars win.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ragstore/config.yaml)")

	root.AddCommand(
		NewAddCmd(),
		NewSearchCmd(),
		NewGetCmd(),
		NewListCmd(),
		NewDeleteCmd(),
		NewStatsCmd(),
		NewServeCmd(),
		NewVersionCmd(),
	)

	return root
}
