// Package archive selects and drives the write-only turn archive
package archive

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Rrens/chat-bridge/internal/config"
	"github.com/Rrens/chat-bridge/internal/domain"
	"github.com/Rrens/chat-bridge/internal/repository/mongo"
	"github.com/Rrens/chat-bridge/internal/repository/postgres"
	"github.com/Rrens/chat-bridge/internal/repository/sqldb"
)

// DriverNone disables archiving
const DriverNone = "none"

// Opener connects an archive backend
type Opener func(ctx context.Context, cfg config.ArchiveConfig) (domain.TurnArchive, error)

// Registry maps driver names to openers
type Registry struct {
	openers map[string]Opener
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{openers: make(map[string]Opener)}
}

// DefaultRegistry knows every bundled backend
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("postgres", postgres.OpenArchive)
	r.Register("mysql", sqldb.OpenMySQL)
	r.Register("sqlite", sqldb.OpenSQLite)
	r.Register("mongo", mongo.OpenArchive)
	return r
}

// Register adds or replaces a driver
func (r *Registry) Register(driver string, open Opener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openers[driver] = open
}

// Drivers returns the registered driver names
func (r *Registry) Drivers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	drivers := make([]string, 0, len(r.openers))
	for name := range r.openers {
		drivers = append(drivers, name)
	}
	sort.Strings(drivers)
	return drivers
}

// Open connects the configured driver. The none driver yields a no-op archive.
func (r *Registry) Open(ctx context.Context, cfg config.ArchiveConfig) (domain.TurnArchive, error) {
	if cfg.Driver == "" || cfg.Driver == DriverNone {
		return Nop{}, nil
	}

	r.mu.RLock()
	open, ok := r.openers[cfg.Driver]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported archive driver: %s", cfg.Driver)
	}

	archive, err := open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s archive: %w", cfg.Driver, err)
	}
	return archive, nil
}

// Nop discards every turn
type Nop struct{}

func (Nop) Record(context.Context, *domain.ArchivedTurn) error { return nil }
func (Nop) Close() error                                        { return nil }
