package cache

import (
	"context"
	"sync"
	"time"

	"addressbook/internal/address/models"
)

// InMemory is a process-local Backend. Expired entries are dropped on read
// and by Purge.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string]cachedResult
	now     func() time.Time
}

type cachedResult struct {
	candidates []models.Candidate
	expiresAt  time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{
		entries: make(map[string]cachedResult),
		now:     time.Now,
	}
}

func (c *InMemory) Get(_ context.Context, key string) ([]models.Candidate, bool, error) {
	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(cached.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && !c.now().Before(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return models.CloneCandidates(cached.candidates), true, nil
}

func (c *InMemory) Set(_ context.Context, key string, candidates []models.Candidate, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cachedResult{
		candidates: models.CloneCandidates(candidates),
		expiresAt:  c.now().Add(ttl),
	}
	return nil
}

// Purge removes expired entries and returns how many were dropped.
func (c *InMemory) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	dropped := 0
	for key, cached := range c.entries {
		if !now.Before(cached.expiresAt) {
			delete(c.entries, key)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of stored entries, expired or not.
func (c *InMemory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
