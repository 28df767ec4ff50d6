package server

import (
	"context"

	"github.com/54b3r/ragstore-go/internal/storage"
)

// StorePinger probes a storage backend for readiness. It satisfies the
// Pinger interface and is used by GET /api/ready. Drivers that do not
// implement [storage.Pinger] (the in-memory and filesystem backends) are
// always reported healthy.
type StorePinger struct {
	// store is the storage driver to probe.
	store storage.Store
}

// NewStorePinger constructs a StorePinger for the given storage driver.
func NewStorePinger(store storage.Store) *StorePinger {
	return &StorePinger{store: store}
}

// Name returns the driver label used in readiness responses.
func (p *StorePinger) Name() string { return p.store.Name() }

// Ping delegates to the driver's own reachability check when it has one.
// Returns nil if the backend is reachable, or a descriptive error otherwise.
func (p *StorePinger) Ping(ctx context.Context) error {
	if pinger, ok := p.store.(storage.Pinger); ok {
		return pinger.Ping(ctx)
	}
	return nil
}
