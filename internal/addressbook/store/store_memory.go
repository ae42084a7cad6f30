// Package store holds committed address book entries for one session.
package store

import (
	"context"
	"sync"

	"addressbook/internal/address/models"
)

//go:generate mockgen -source=store_memory.go -destination=mocks/mocks.go -package=mocks Book

// Book is the append-only address book the capture workflow commits into.
type Book interface {
	Append(ctx context.Context, entry models.Entry) error
	ListAll(ctx context.Context) ([]models.Entry, error)
}

// InMemory is an ordered, append-only Book. Duplicate entries are kept.
type InMemory struct {
	mu      sync.RWMutex
	entries []models.Entry
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

// Append adds entry to the end of the book.
func (s *InMemory) Append(_ context.Context, entry models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry.Clone())
	return nil
}

// ListAll returns the entries in commit order. The slice is a copy.
func (s *InMemory) ListAll(_ context.Context) ([]models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Clone()
	}
	return out, nil
}

// Len returns the number of entries.
func (s *InMemory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
