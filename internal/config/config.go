// Package config provides YAML-based configuration for ragstore.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. RAGSTORE_CONFIG environment variable
//  3. ~/.ragstore/config.yaml
//  4. ./ragstore.yaml
//
// If no file is found the system runs entirely from env vars (backwards compatible).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Storage configures the document storage backend.
	Storage StorageConfig `yaml:"storage"`

	// Embedding configures the embedding provider used for vector search.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Search configures hybrid search engine tuning.
	Search SearchConfig `yaml:"search"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// History configures search history persistence.
	History HistoryConfig `yaml:"history"`
}

// StorageConfig holds storage backend settings.
type StorageConfig struct {
	// Backend selects the driver: memory, filesystem, sqlite, redis, qdrant, postgres.
	Backend string `yaml:"backend"`

	// Filesystem holds filesystem driver settings.
	Filesystem FilesystemConfig `yaml:"filesystem"`

	// SQLite holds SQLite driver settings.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Redis holds Redis driver settings.
	Redis RedisConfig `yaml:"redis"`

	// Qdrant holds Qdrant driver settings.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Postgres holds PostgreSQL driver settings.
	Postgres PostgresConfig `yaml:"postgres"`
}

// FilesystemConfig holds filesystem driver settings.
type FilesystemConfig struct {
	// Dir is the directory documents are stored under.
	Dir string `yaml:"dir"`
}

// SQLiteConfig holds SQLite driver settings.
type SQLiteConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path"`
}

// RedisConfig holds Redis driver settings.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string `yaml:"addr"`
	// Password is the Redis password. Prefer env var REDIS_PASSWORD.
	Password string `yaml:"password"`
	// DB is the Redis logical database number.
	DB int `yaml:"db"`
}

// QdrantConfig holds Qdrant driver settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// PostgresConfig holds PostgreSQL driver settings.
type PostgresConfig struct {
	// URL is the connection string. Prefer env var DATABASE_URL.
	URL string `yaml:"url"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai, azure).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
	// OllamaHost is the Ollama API endpoint for the ollama provider.
	OllamaHost string `yaml:"ollama_host"`
}

// SearchConfig holds hybrid search tuning settings.
type SearchConfig struct {
	// TopPerDocument caps how many chunks one document may contribute.
	TopPerDocument int `yaml:"top_per_document"`
	// BreadthFactor scales the returned breadth: limit * factor.
	BreadthFactor int `yaml:"breadth_factor"`
	// OverFetchFactor scales the per-backend fetch: max(20, limit * factor).
	OverFetchFactor int `yaml:"overfetch_factor"`
	// CacheTTLSeconds is the result cache lifetime in seconds.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var RAGSTORE_API_KEY.
	APIKey string `yaml:"api_key"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// HistoryConfig holds search history settings.
type HistoryConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"STORAGE_BACKEND", func(c *Config) string { return c.Storage.Backend }},
	{"STORAGE_DIR", func(c *Config) string { return c.Storage.Filesystem.Dir }},
	{"SQLITE_PATH", func(c *Config) string { return c.Storage.SQLite.Path }},
	{"REDIS_ADDR", func(c *Config) string { return c.Storage.Redis.Addr }},
	{"REDIS_PASSWORD", func(c *Config) string { return c.Storage.Redis.Password }},
	{"REDIS_DB", func(c *Config) string { return intStr(c.Storage.Redis.DB) }},
	{"QDRANT_HOST", func(c *Config) string { return c.Storage.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Storage.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Storage.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Storage.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Storage.Qdrant.TLS) }},
	{"DATABASE_URL", func(c *Config) string { return c.Storage.Postgres.URL }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Embedding.OllamaHost }},
	{"SEARCH_TOP_PER_DOCUMENT", func(c *Config) string { return intStr(c.Search.TopPerDocument) }},
	{"SEARCH_BREADTH_FACTOR", func(c *Config) string { return intStr(c.Search.BreadthFactor) }},
	{"SEARCH_OVERFETCH_FACTOR", func(c *Config) string { return intStr(c.Search.OverFetchFactor) }},
	{"SEARCH_CACHE_TTL_SECONDS", func(c *Config) string { return intStr(c.Search.CacheTTLSeconds) }},
	{"RAGSTORE_HOST", func(c *Config) string { return c.Server.Host }},
	{"RAGSTORE_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"RAGSTORE_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"RAGSTORE_HISTORY_DB", func(c *Config) string { return c.History.DBPath }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("RAGSTORE_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".ragstore", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("ragstore.yaml"); err == nil {
		return "ragstore.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
