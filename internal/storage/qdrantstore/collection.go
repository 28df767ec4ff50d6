package qdrantstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/ragstore-go/internal/logging"
)

// defaultVectorSize is the dimensionality used when neither configuration
// nor a sibling collection provides one. Matches nomic-embed-text.
const defaultVectorSize = 768

// collectionState tracks the lazy initialization of the target collection.
type collectionState int

const (
	// stateUnknown means the collection has not been checked yet, or the
	// last initialization attempt failed and should be retried.
	stateUnknown collectionState = iota

	// stateInitializing means one caller is currently creating or verifying
	// the collection.
	stateInitializing

	// stateReady means the collection exists with a resolved vector size.
	stateReady
)

// collectionManager performs single-flight lazy initialization of one Qdrant
// collection. After the first successful EnsureReady, calls return without
// touching the mutex-protected slow path beyond a cheap state check.
type collectionManager struct {
	// mu guards state transitions. Held across the existence check and
	// creation call so exactly one initialization is in flight at a time.
	mu sync.Mutex

	// state is the current readiness of the collection.
	state collectionState

	// client is the Qdrant client used for existence checks and creation.
	client *qdrant.Client

	// collection is the target collection name.
	collection string

	// vectorSize is the configured dimensionality; 0 means resolve lazily.
	vectorSize uint64
}

// EnsureReady transitions the collection to Ready, creating it on first use.
// On error the state stays Unknown so a later call retries. Idempotent and
// safe for concurrent callers: the double-checked state test keeps the
// post-initialization fast path lock-light.
func (m *collectionManager) EnsureReady(ctx context.Context) error {
	if m.ready() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Re-check under the lock: another caller may have finished while this
	// one waited.
	if m.state == stateReady {
		return nil
	}
	m.state = stateInitializing

	err := m.initialize(ctx)
	if err != nil {
		m.state = stateUnknown
		return err
	}
	m.state = stateReady
	return nil
}

// ready reports the Ready state under the lock.
func (m *collectionManager) ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == stateReady
}

// initialize verifies the collection exists, creating it if absent with a
// vector size resolved in priority order: explicit configuration, a sibling
// collection's dimensionality, the hard-coded default.
func (m *collectionManager) initialize(ctx context.Context) error {
	exists, err := m.client.CollectionExists(ctx, m.collection)
	if err != nil {
		return fmt.Errorf("qdrantstore: check collection %q: %w", m.collection, err)
	}
	if exists {
		// Record the collection's actual dimensionality so callers that need
		// it (placeholder vectors for un-embedded chunks) agree with the
		// server rather than with configuration.
		if m.vectorSize == 0 {
			if info, err := m.client.GetCollectionInfo(ctx, m.collection); err == nil {
				params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
				m.vectorSize = params.GetSize()
			}
		}
		return nil
	}

	size := m.vectorSize
	if size == 0 {
		size = m.siblingVectorSize(ctx)
	}
	if size == 0 {
		size = defaultVectorSize
	}

	err = m.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: m.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     size,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrantstore: create collection %q: %w", m.collection, err)
	}

	m.vectorSize = size
	logging.FromContext(ctx).Info("qdrant collection created",
		slog.String("collection", m.collection),
		slog.Uint64("vector_size", size),
	)
	return nil
}

// resolvedSize returns the collection's vector dimensionality as established
// by initialization, falling back to the default when it could not be
// determined.
func (m *collectionManager) resolvedSize() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vectorSize == 0 {
		return defaultVectorSize
	}
	return m.vectorSize
}

// siblingVectorSize inspects existing collections on the same server and
// returns the vector size of the first one that declares a single unnamed
// vector, or 0 when none does. A best-effort heuristic: errors are ignored
// because the caller falls back to the default size anyway.
func (m *collectionManager) siblingVectorSize(ctx context.Context) uint64 {
	names, err := m.client.ListCollections(ctx)
	if err != nil {
		return 0
	}
	for _, name := range names {
		if name == m.collection {
			continue
		}
		info, err := m.client.GetCollectionInfo(ctx, name)
		if err != nil {
			continue
		}
		params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
		if size := params.GetSize(); size > 0 {
			return size
		}
	}
	return 0
}
