package mocklookup

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"addressbook/internal/lookup"
	"addressbook/internal/platform/middleware"
	dErrors "addressbook/pkg/domain-errors"
	"addressbook/pkg/platform/httputil"
)

// Server answers lookup requests from a Fixture.
type Server struct {
	fixture Fixture
	logger  *slog.Logger
	latency time.Duration
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithLatency delays every answer, for exercising client timeouts.
func WithLatency(d time.Duration) Option {
	return func(s *Server) {
		s.latency = d
	}
}

func NewServer(fixture Fixture, opts ...Option) *Server {
	s := &Server{
		fixture: fixture,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the HTTP routes of the mock.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(s.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Get(lookup.SearchPath, s.handleGetAddresses)
	return r
}

func (s *Server) handleGetAddresses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	postCode := q.Get("postcode")
	if postCode == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "postcode is required"))
		return
	}

	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-r.Context().Done():
			return
		}
	}

	addresses := s.fixture.Match(postCode, q.Get("streetnumber"))
	s.logger.DebugContext(r.Context(), "served mock lookup",
		"postcode", postCode,
		"results", len(addresses),
	)
	httputil.WriteJSON(w, http.StatusOK, addresses)
}
