// Package session keeps the live tool surfaces of concurrent clients.
package session

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/ppiankov/intake/internal/tools"
)

// Factory builds a fresh surface over a new session
type Factory func() *tools.Surface

// Registry maps session IDs to surfaces and drops them after a period
// without use
type Registry struct {
	cache   *gocache.Cache
	factory Factory
	logger  *zap.Logger
}

// NewRegistry creates a registry. A cleanupInterval <= 0 disables the
// background janitor; expired sessions are then only dropped on lookup.
func NewRegistry(idleTTL, cleanupInterval time.Duration, factory Factory, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if idleTTL <= 0 {
		idleTTL = gocache.NoExpiration
	}

	c := gocache.New(idleTTL, cleanupInterval)
	c.OnEvicted(func(id string, _ interface{}) {
		logger.Info("session evicted", zap.String("session", id))
	})

	return &Registry{
		cache:   c,
		factory: factory,
		logger:  logger,
	}
}

// Create starts a new session and returns its surface
func (r *Registry) Create() *tools.Surface {
	s := r.factory()
	id := s.Session().ID()
	r.cache.SetDefault(id, s)
	r.logger.Info("session created", zap.String("session", id))
	return s
}

// Get returns the surface for id and restarts its idle timer
func (r *Registry) Get(id string) (*tools.Surface, bool) {
	v, found := r.cache.Get(id)
	if !found {
		return nil, false
	}
	s := v.(*tools.Surface)
	// Replace fails once the session is gone, so a concurrent Delete wins
	if err := r.cache.Replace(id, s, gocache.DefaultExpiration); err != nil {
		return nil, false
	}
	return s, true
}

// Delete removes a session. It reports whether the session existed.
func (r *Registry) Delete(id string) bool {
	if _, found := r.cache.Get(id); !found {
		return false
	}
	r.cache.Delete(id)
	return true
}

// Count returns the number of stored sessions, including expired ones not
// yet cleaned up
func (r *Registry) Count() int {
	return r.cache.ItemCount()
}

// Clear removes all sessions and returns how many were dropped
func (r *Registry) Clear() int {
	n := r.cache.ItemCount()
	r.cache.Flush()
	return n
}
