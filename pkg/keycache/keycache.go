// Package keycache holds verified identity-key shares in memory, keyed by
// scope identity and serving server. Shares only enter the cache after the
// full fetch-and-verify pipeline has succeeded, so readers may trust every
// entry without re-verifying.
package keycache

import (
	"sync"

	"go.dedis.ch/kyber/v3"

	"github.com/benhaq/sui-nautilus/pkg/types"
)

// Cache is a concurrency-safe map of scope identity to per-server partial
// identity keys. The zero value is not usable; call New.
type Cache struct {
	mu     sync.RWMutex
	shares map[string]map[types.Address]kyber.Point
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		shares: make(map[string]map[types.Address]kyber.Point),
	}
}

// Merge stores a batch of verified shares for one scope. Existing entries for
// the same scope and server are overwritten; entries for other servers under
// the scope survive.
func (c *Cache) Merge(scope []byte, shares map[types.Address]kyber.Point) {
	if len(shares) == 0 {
		return
	}
	key := string(scope)

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.shares[key]
	if !ok {
		existing = make(map[types.Address]kyber.Point, len(shares))
		c.shares[key] = existing
	}
	for server, share := range shares {
		existing[server] = share
	}
}

// Shares returns a copy of the cached share map for a scope, or nil when the
// scope has never been provisioned.
func (c *Cache) Shares(scope []byte) map[types.Address]kyber.Point {
	c.mu.RLock()
	defer c.mu.RUnlock()

	existing, ok := c.shares[string(scope)]
	if !ok {
		return nil
	}
	out := make(map[types.Address]kyber.Point, len(existing))
	for server, share := range existing {
		out[server] = share
	}
	return out
}

// Scopes returns every provisioned scope identity.
func (c *Cache) Scopes() [][]byte {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([][]byte, 0, len(c.shares))
	for key := range c.shares {
		out = append(out, []byte(key))
	}
	return out
}

// Len returns the number of provisioned scopes.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.shares)
}
