// Package cache decorates a lookup.Searcher with a TTL cache of successful
// results. Backends are in-memory (single process) or Redis (shared).
package cache

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"addressbook/internal/address/models"
	"addressbook/internal/lookup"
	"addressbook/internal/platform/metrics"
)

// DefaultTTL bounds how long a lookup result is reused.
const DefaultTTL = 5 * time.Minute

const keyPrefix = "addressbook:lookup:v1:"

// Backend stores candidate lists by key.
type Backend interface {
	Get(ctx context.Context, key string) ([]models.Candidate, bool, error)
	Set(ctx context.Context, key string, candidates []models.Candidate, ttl time.Duration) error
}

// Searcher serves repeated searches from a Backend and falls through to the
// wrapped Searcher on a miss. Backend failures are logged and never fail a search.
type Searcher struct {
	next    lookup.Searcher
	backend Backend
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Searcher)

func WithTTL(ttl time.Duration) Option {
	return func(s *Searcher) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Searcher) {
		s.metrics = m
	}
}

// New wraps next with backend.
func New(next lookup.Searcher, backend Backend, opts ...Option) *Searcher {
	s := &Searcher{
		next:    next,
		backend: backend,
		ttl:     DefaultTTL,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search implements lookup.Searcher.
func (s *Searcher) Search(ctx context.Context, postCode, houseNumber string) ([]models.Candidate, error) {
	key := Key(postCode, houseNumber)

	cached, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "lookup cache read failed", "error", err.Error())
	}
	if ok {
		s.metrics.IncCache(true)
		return models.CloneCandidates(cached), nil
	}
	s.metrics.IncCache(false)

	candidates, err := s.next.Search(ctx, postCode, houseNumber)
	if err != nil {
		return nil, err
	}
	if err := s.backend.Set(ctx, key, models.CloneCandidates(candidates), s.ttl); err != nil {
		s.logger.WarnContext(ctx, "lookup cache write failed", "error", err.Error())
	}
	return candidates, nil
}

// Key builds the cache key for a search. Values are used exactly as the
// lookup service receives them, escaped so separators cannot collide.
func Key(postCode, houseNumber string) string {
	return keyPrefix + url.QueryEscape(postCode) + ":" + url.QueryEscape(houseNumber)
}
