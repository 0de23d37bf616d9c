package redisstore

import (
	"errors"
	"log/slog"
	"sync"
)

// Registry hands out one Client per logical database index. All callers
// asking for the same index share the same Client and therefore its pool.
type Registry struct {
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	clients map[int]*Client
}

// NewRegistry creates a registry whose clients share base options except DB.
func NewRegistry(base Options, logger *slog.Logger) *Registry {
	return &Registry{
		opts:    base,
		logger:  logger,
		clients: make(map[int]*Client),
	}
}

// Client returns the client bound to db, creating it on first use.
func (r *Registry) Client(db int) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[db]; ok {
		return c
	}
	opts := r.opts
	opts.DB = db
	c := NewClient(opts, r.logger)
	r.clients[db] = c
	return c
}

// Close closes every client created so far and joins their errors.
func (r *Registry) Close() error {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.Unlock()

	var errs []error
	for _, c := range clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
