package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/kirillkom/filings-assistant/internal/core/domain"
	"github.com/kirillkom/filings-assistant/internal/core/ports"
)

// GraphStoreFactory builds a fresh graph store connection.
type GraphStoreFactory func(ctx context.Context) (ports.GraphStore, error)

var errGraphNotConfigured = errors.New("no graph store factory configured")

// Clients owns lazily built external connections for the process.
// The graph store in particular can go stale when a managed instance
// pauses, so it is verified before reuse and rebuilt when the check
// fails. Losing a concurrent rebuild race just discards one extra
// connection.
type Clients struct {
	graphFactory GraphStoreFactory
	logger       *slog.Logger

	mu    sync.Mutex
	graph ports.GraphStore
}

func NewClients(graphFactory GraphStoreFactory, logger *slog.Logger) *Clients {
	return &Clients{
		graphFactory: graphFactory,
		logger:       logger,
	}
}

// GraphStore returns a verified graph store, rebuilding the cached
// connection if its connectivity check fails.
func (c *Clients) GraphStore(ctx context.Context) (ports.GraphStore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.graphFactory == nil {
		return nil, nil
	}

	if c.graph != nil {
		err := c.graph.Verify(ctx)
		if err == nil {
			return c.graph, nil
		}
		c.logger.Warn("graph_store_stale", "error", err)
		if closeErr := c.graph.Close(ctx); closeErr != nil {
			c.logger.Warn("graph_store_close_failed", "error", closeErr)
		}
		c.graph = nil
	}

	store, err := c.graphFactory(ctx)
	if err != nil {
		return nil, err
	}
	if err := store.Verify(ctx); err != nil {
		if closeErr := store.Close(ctx); closeErr != nil {
			c.logger.Warn("graph_store_close_failed", "error", closeErr)
		}
		return nil, err
	}
	c.graph = store
	return store, nil
}

// LazyGraphStore exposes the registry's graph store behind the port,
// resolving a verified connection on each call.
type LazyGraphStore struct {
	clients *Clients
}

func NewLazyGraphStore(clients *Clients) *LazyGraphStore {
	return &LazyGraphStore{clients: clients}
}

func (l *LazyGraphStore) FindDocumentsMentioning(ctx context.Context, entity string, hops int) ([]domain.GraphDocumentRef, error) {
	store, err := l.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return store.FindDocumentsMentioning(ctx, entity, hops)
}

func (l *LazyGraphStore) EntitySearch(ctx context.Context, term string) ([]ports.GraphEntity, error) {
	store, err := l.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return store.EntitySearch(ctx, term)
}

func (l *LazyGraphStore) resolve(ctx context.Context) (ports.GraphStore, error) {
	store, err := l.clients.GraphStore(ctx)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "graph store", errGraphNotConfigured)
	}
	return store, nil
}

func (l *LazyGraphStore) Verify(ctx context.Context) error {
	_, err := l.clients.GraphStore(ctx)
	return err
}

func (l *LazyGraphStore) Close(ctx context.Context) error {
	l.clients.Close(ctx)
	return nil
}

// Close releases all cached connections.
func (c *Clients) Close(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.graph != nil {
		if err := c.graph.Close(ctx); err != nil {
			c.logger.Warn("graph_store_close_failed", "error", err)
		}
		c.graph = nil
	}
}
