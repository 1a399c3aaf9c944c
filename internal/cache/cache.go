// Package cache memoizes provider answers per position and provider
// configuration.
package cache

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/hailam/chessgraph/internal/provider"
)

// Store persists cache entries across runs.
type Store interface {
	Get(key string, v any) (bool, error)
	Put(key string, v any) error
}

// Key identifies a move list: the provider with all its parameters and the
// position's EPD.
type Key struct {
	Provider string
	EPD      string
}

func (k Key) String() string {
	return k.Provider + "|" + k.EPD
}

// ScoreCache is a thread-safe in-memory map, optionally read-through and
// write-through to a Store. Entries are never replaced or evicted, and
// empty lists are never stored, so a position without data is asked again
// on the next run.
type ScoreCache struct {
	mu      sync.RWMutex
	entries map[Key][]provider.Candidate
	store   Store
	hits    uint64
	misses  uint64
}

// New creates a cache. store may be nil.
func New(store Store) *ScoreCache {
	return &ScoreCache{
		entries: make(map[Key][]provider.Candidate),
		store:   store,
	}
}

// Get returns the cached list for key.
func (c *ScoreCache) Get(key Key) ([]provider.Candidate, bool) {
	c.mu.RLock()
	moves, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.count(true)
		return moves, true
	}

	if c.store != nil {
		var stored []provider.Candidate
		found, err := c.store.Get(key.String(), &stored)
		if err != nil {
			log.Warn().Err(err).Str("key", key.String()).Msg("score store read failed")
		}
		if found && err == nil && len(stored) > 0 {
			c.mu.Lock()
			if existing, ok := c.entries[key]; ok {
				stored = existing
			} else {
				c.entries[key] = stored
			}
			c.hits++
			c.mu.Unlock()
			return stored, true
		}
	}

	c.count(false)
	return nil, false
}

// Put records a list. Empty lists and keys already present are ignored.
func (c *ScoreCache) Put(key Key, moves []provider.Candidate) {
	if len(moves) == 0 {
		return
	}
	c.mu.Lock()
	if _, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return
	}
	c.entries[key] = moves
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Put(key.String(), moves); err != nil {
			log.Warn().Err(err).Str("key", key.String()).Msg("score store write failed")
		}
	}
}

func (c *ScoreCache) count(hit bool) {
	c.mu.Lock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()
}

// HitRate returns the cache hit rate as a percentage.
func (c *ScoreCache) HitRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total) * 100
}

// Len returns the number of entries held in memory.
func (c *ScoreCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counts.
func (c *ScoreCache) Stats() (hits, misses uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
