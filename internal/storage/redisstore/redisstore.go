// Package redisstore implements the storage.Store contract on a remote
// Redis instance. Documents are stored as JSON values under a key prefix
// with a set index for enumeration. Vector search is brute-force cosine over
// the stored embeddings; text search is a substring scan. Both run
// client-side, which is acceptable for the corpus sizes this driver targets.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/54b3r/ragstore-go/internal/document"
	"github.com/54b3r/ragstore-go/internal/storage"
)

const (
	// docKeyPrefix prefixes every per-document JSON key.
	docKeyPrefix = "ragstore:doc:"

	// indexKey is the set holding every stored document ID.
	indexKey = "ragstore:docs"

	// scanPageSize is the SSCAN hint used when enumerating the index set.
	scanPageSize = 100
)

// Config holds connection parameters for a Redis storage instance.
type Config struct {
	// Addr is the host:port of the Redis server (default: localhost:6379).
	Addr string
	// Password is the optional AUTH password.
	Password string
	// DB is the logical database number.
	DB int
}

// Store is a Redis-backed storage.Store. Safe for concurrent use.
type Store struct {
	// client is the underlying Redis client.
	client *redis.Client
}

// New constructs a Store and verifies connectivity with a ping.
func New(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: %w: ping %s: %v", storage.ErrUnavailable, cfg.Addr, err)
	}
	return &Store{client: client}, nil
}

// Name implements storage.Store.
func (s *Store) Name() string { return "redis" }

// Capabilities implements storage.Store.
func (s *Store) Capabilities() storage.Capabilities {
	return storage.Capabilities{VectorSearch: true, TextSearch: true}
}

// Metric implements storage.Store. Brute-force scoring computes cosine
// similarity directly.
func (s *Store) Metric() storage.Metric { return storage.MetricCosineSimilarity }

// Add implements storage.Store. SETNX on the document key is the atomic
// create-if-absent; the index set entry follows, so a crash between the two
// leaves a retrievable document that is merely missing from enumeration
// until the next add of the same ID fails fast on the key.
func (s *Store) Add(ctx context.Context, doc *document.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("redisstore: marshal document %s: %w", doc.ID, err)
	}

	ok, err := s.client.SetNX(ctx, docKeyPrefix+doc.ID, data, 0).Result()
	if err != nil {
		return fmt.Errorf("redisstore: %w: set document %s: %v", storage.ErrUnavailable, doc.ID, err)
	}
	if !ok {
		return storage.ErrAlreadyExists
	}
	if err := s.client.SAdd(ctx, indexKey, doc.ID).Err(); err != nil {
		return fmt.Errorf("redisstore: index document %s: %w", doc.ID, err)
	}
	return nil
}

// GetByID implements storage.Store.
func (s *Store) GetByID(ctx context.Context, id string) (*document.Document, error) {
	data, err := s.client.Get(ctx, docKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get document %s: %w", id, err)
	}
	var doc document.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("redisstore: decode document %s: %w", id, err)
	}
	return &doc, nil
}

// GetAll implements storage.Store. The index set is walked with SSCAN so
// large corpora never materialize one giant reply; transient page failures
// degrade to a partial result via storage.FetchPages.
func (s *Store) GetAll(ctx context.Context) ([]*document.Document, error) {
	var cursor uint64
	ids, err := storage.FetchPages(ctx, s.Name(), func(ctx context.Context, _ int) ([]string, bool, error) {
		page, next, err := s.client.SScan(ctx, indexKey, cursor, "*", scanPageSize).Result()
		if err != nil {
			return nil, false, &storage.TransientError{Op: "sscan", Err: err}
		}
		cursor = next
		return page, next != 0, nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)

	out := make([]*document.Document, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		doc, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UploadedAt.Before(out[j].UploadedAt)
	})
	return out, nil
}

// Delete implements storage.Store.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	removed, err := s.client.Del(ctx, docKeyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("redisstore: delete document %s: %w", id, err)
	}
	if err := s.client.SRem(ctx, indexKey, id).Err(); err != nil {
		return false, fmt.Errorf("redisstore: unindex document %s: %w", id, err)
	}
	return removed > 0, nil
}

// Count implements storage.Store.
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redisstore: count documents: %w", err)
	}
	return int(n), nil
}

// SearchVector implements storage.Store with a brute-force cosine scan over
// every embedded chunk.
func (s *Store) SearchVector(ctx context.Context, vector []float32, limit int) ([]storage.ScoredChunk, error) {
	if len(vector) == 0 || limit <= 0 {
		return nil, nil
	}
	docs, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var hits []storage.ScoredChunk
	for _, doc := range docs {
		for i := range doc.Chunks {
			c := &doc.Chunks[i]
			if len(c.Embedding) == 0 {
				continue
			}
			hits = append(hits, storage.ScoredChunk{
				Chunk: c.Clone(),
				Score: storage.CosineSimilarity(vector, c.Embedding),
			})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// SearchText implements storage.Store with a case-insensitive substring scan.
func (s *Store) SearchText(ctx context.Context, query string, limit int) ([]storage.ScoredChunk, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" || limit <= 0 {
		return nil, nil
	}
	docs, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var hits []storage.ScoredChunk
	for _, doc := range docs {
		for i := range doc.Chunks {
			c := &doc.Chunks[i]
			n := strings.Count(strings.ToLower(c.Content), needle)
			if n == 0 {
				continue
			}
			score := float64(n) / 4
			if score > 1 {
				score = 1
			}
			hits = append(hits, storage.ScoredChunk{Chunk: c.Clone(), Score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Close closes the underlying Redis connection.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("redisstore: close: %w", err)
	}
	return nil
}

// Ping implements storage.Pinger for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.client.Ping(ctx).Err()
}
