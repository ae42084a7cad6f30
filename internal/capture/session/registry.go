// Package session keeps one capture workflow per client session in memory
// and evicts sessions that have been idle for too long.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"addressbook/internal/capture"
	"addressbook/internal/platform/metrics"
	"addressbook/pkg/platform/sentinel"
)

// DefaultIdleTTL is how long a session survives without being touched.
const DefaultIdleTTL = 30 * time.Minute

// Factory builds the workflow for a new session.
type Factory func() *capture.Workflow

// Session binds an id to its workflow.
type Session struct {
	ID        string
	Workflow  *capture.Workflow
	CreatedAt time.Time

	lastSeen time.Time
}

// Registry is a concurrency-safe map of live sessions.
type Registry struct {
	factory Factory
	idleTTL time.Duration
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
}

type Option func(*Registry)

// WithIdleTTL overrides DefaultIdleTTL. Non-positive values are ignored.
func WithIdleTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.idleTTL = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

func NewRegistry(factory Factory, opts ...Option) *Registry {
	r := &Registry{
		factory:  factory,
		idleTTL:  DefaultIdleTTL,
		now:      time.Now,
		logger:   slog.New(slog.DiscardHandler),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create starts a session with a fresh idle workflow.
func (r *Registry) Create(ctx context.Context) *Session {
	now := r.now()
	s := &Session{
		ID:        uuid.NewString(),
		Workflow:  r.factory(),
		CreatedAt: now,
		lastSeen:  now,
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	n := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SetActiveSessions(n)
	r.logger.InfoContext(ctx, "capture session created", "session_id", s.ID)
	return s
}

// Get returns the session and marks it as used.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, sentinel.ErrNotFound)
	}
	s.lastSeen = r.now()
	return s, nil
}

// Delete drops the session.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	if _, ok := r.sessions[id]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("session %s: %w", id, sentinel.ErrNotFound)
	}
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SetActiveSessions(n)
	r.logger.InfoContext(ctx, "capture session deleted", "session_id", id)
	return nil
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle since before now-idleTTL and returns how many
// were removed. Exported for testability; Run passes wall-clock time.
func (r *Registry) Sweep(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-r.idleTTL)

	r.mu.Lock()
	removed := 0
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	if removed > 0 {
		r.metrics.SetActiveSessions(n)
		r.logger.InfoContext(ctx, "evicted idle capture sessions", "count", removed, "remaining", n)
	}
	return removed
}

// Run sweeps idle sessions every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Sweep(ctx, r.now())
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
