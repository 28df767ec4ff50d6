package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/54b3r/ragstore-go/internal/embedder"
	"github.com/54b3r/ragstore-go/internal/search"
	"github.com/54b3r/ragstore-go/internal/storage"
	"github.com/54b3r/ragstore-go/internal/storage/fsstore"
	"github.com/54b3r/ragstore-go/internal/storage/memstore"
	"github.com/54b3r/ragstore-go/internal/storage/pgstore"
	"github.com/54b3r/ragstore-go/internal/storage/qdrantstore"
	"github.com/54b3r/ragstore-go/internal/storage/redisstore"
	"github.com/54b3r/ragstore-go/internal/storage/sqlitestore"
)

// Backend identifies a storage driver in configuration.
type Backend string

// Supported storage backends.
const (
	BackendMemory     Backend = "memory"
	BackendFilesystem Backend = "filesystem"
	BackendSQLite     Backend = "sqlite"
	BackendRedis      Backend = "redis"
	BackendQdrant     Backend = "qdrant"
	BackendPostgres   Backend = "postgres"
)

// VectorCapable reports whether the backend advertises vector search, used
// for the embedder pre-flight check before any driver is constructed.
func (b Backend) VectorCapable() bool {
	switch b {
	case BackendMemory, BackendRedis, BackendQdrant, BackendPostgres:
		return true
	default:
		return false
	}
}

// BackendFromEnv resolves the configured backend from STORAGE_BACKEND,
// defaulting to memory.
func BackendFromEnv() Backend {
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		return Backend(strings.ToLower(strings.TrimSpace(v)))
	}
	return BackendMemory
}

// NewStore constructs the storage driver for the given backend from its
// environment configuration.
//
// Per-backend env vars:
//
//	filesystem: STORAGE_DIR       (default: ~/.ragstore/documents)
//	sqlite:     SQLITE_PATH       (default: ~/.ragstore/documents.db)
//	redis:      REDIS_ADDR, REDIS_PASSWORD, REDIS_DB
//	qdrant:     QDRANT_HOST, QDRANT_PORT, QDRANT_COLLECTION, QDRANT_API_KEY, QDRANT_TLS
//	postgres:   DATABASE_URL
func NewStore(ctx context.Context, backend Backend) (storage.Store, error) {
	switch backend {
	case BackendMemory:
		return memstore.New(), nil

	case BackendFilesystem:
		dir := os.Getenv("STORAGE_DIR")
		if dir == "" {
			var err error
			if dir, err = defaultDataPath("documents"); err != nil {
				return nil, err
			}
		}
		return fsstore.New(dir)

	case BackendSQLite:
		path := os.Getenv("SQLITE_PATH")
		if path == "" {
			var err error
			if path, err = defaultDataPath("documents.db"); err != nil {
				return nil, err
			}
		}
		return sqlitestore.Open(path)

	case BackendRedis:
		db := 0
		if v := os.Getenv("REDIS_DB"); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				db = i
			}
		}
		return redisstore.New(ctx, &redisstore.Config{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       db,
		})

	case BackendQdrant:
		port := 0
		if v := os.Getenv("QDRANT_PORT"); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				port = i
			}
		}
		dims := embedder.DefaultDimensions(os.Getenv("EMBEDDING_PROVIDER"))
		return qdrantstore.New(&qdrantstore.Config{
			Host:       os.Getenv("QDRANT_HOST"),
			Port:       port,
			Collection: os.Getenv("QDRANT_COLLECTION"),
			VectorSize: uint64(dims),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		})

	case BackendPostgres:
		dims := embedder.DefaultDimensions(os.Getenv("EMBEDDING_PROVIDER"))
		return pgstore.New(ctx, &pgstore.Config{
			ConnString: os.Getenv("DATABASE_URL"),
			VectorDim:  dims,
		})

	default:
		return nil, fmt.Errorf("repository: unknown backend %q — valid values: memory, filesystem, sqlite, redis, qdrant, postgres", backend)
	}
}

// NewFromEnv constructs a fully wired Repository for the configured backend:
// the storage driver, and — for vector-capable backends — the embedding
// capability. Text-only backends get no embedder and run on the keyword path.
func NewFromEnv(ctx context.Context) (*Repository, error) {
	backend := BackendFromEnv()

	store, err := NewStore(ctx, backend)
	if err != nil {
		return nil, err
	}

	var emb embedder.Embedder
	if backend.VectorCapable() {
		emb, err = embedder.NewFromEnv()
		if err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	return New(store, emb, nil, search.OptionsFromEnv()), nil
}

// defaultDataPath resolves ~/.ragstore/<name>, creating the directory.
func defaultDataPath(name string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("repository: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".ragstore")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("repository: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, name), nil
}
