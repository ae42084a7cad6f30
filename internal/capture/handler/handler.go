// Package handler exposes capture sessions over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"addressbook/internal/address/models"
	"addressbook/internal/capture"
	"addressbook/internal/capture/session"
	"addressbook/internal/platform/metrics"
	"addressbook/internal/platform/middleware"
	"addressbook/internal/platform/ratelimiter"
	dErrors "addressbook/pkg/domain-errors"
	"addressbook/pkg/platform/httputil"
	"addressbook/pkg/platform/middleware/metadata"
	"addressbook/pkg/platform/middleware/requesttime"
	"addressbook/pkg/platform/sentinel"
	"addressbook/pkg/requestcontext"
)

// RequestTimeout bounds every capture request, lookups included.
const RequestTimeout = 30 * time.Second

// Handler serves the capture session routes.
type Handler struct {
	logger   *slog.Logger
	sessions *session.Registry
	limiter  *ratelimiter.KeyedLimiter
	metrics  *metrics.Metrics
}

// New creates a capture Handler. A nil limiter disables search throttling.
func New(
	sessions *session.Registry,
	limiter *ratelimiter.KeyedLimiter,
	logger *slog.Logger,
	metrics *metrics.Metrics) *Handler {
	return &Handler{
		logger:   logger,
		sessions: sessions,
		limiter:  limiter,
		metrics:  metrics,
	}
}

// Register registers the capture routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	captureRouter := chi.NewRouter()
	captureRouter.Use(requesttime.Middleware)
	captureRouter.Use(middleware.Recovery(h.logger))
	captureRouter.Use(middleware.RequestID)
	captureRouter.Use(metadata.ClientMetadata)
	captureRouter.Use(middleware.Logger(h.logger))
	captureRouter.Use(middleware.Timeout(RequestTimeout))
	captureRouter.Use(middleware.ContentTypeJSON)
	captureRouter.Use(middleware.LatencyMiddleware(h.metrics))

	captureRouter.Post("/sessions", h.handleCreateSession)
	captureRouter.Route("/sessions/{id}", func(sr chi.Router) {
		sr.Get("/", h.handleGetSession)
		sr.Delete("/", h.handleDeleteSession)
		sr.Put("/fields/{name}", h.handleSetField)
		sr.Post("/search", h.handleSearch)
		sr.Post("/select", h.handleSelect)
		sr.Post("/person", h.handleSubmitPerson)
		sr.Post("/clear", h.handleClear)
		sr.Get("/addressbook", h.handleAddressBook)
	})

	r.Mount("/", captureRouter)
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	capture.Snapshot
}

type setFieldRequest struct {
	Value string `json:"value"`
}

type selectRequest struct {
	ID string `json:"id"`
}

type addressBookResponse struct {
	Entries []models.Entry `json:"entries"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create(r.Context())
	httputil.WriteJSON(w, http.StatusCreated, newSessionResponse(s))
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s, r, ok := h.session(w, r)
	if !ok {
		return
	}
	h.writeSnapshot(w, s)
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.sessions.Delete(r.Context(), id); err != nil {
		h.writeSessionError(w, r, err)
		return
	}
	h.limiter.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetField(w http.ResponseWriter, r *http.Request) {
	s, r, ok := h.session(w, r)
	if !ok {
		return
	}
	var req setFieldRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := s.Workflow.SetField(chi.URLParam(r, "name"), req.Value); err != nil {
		h.logger.WarnContext(r.Context(), "rejected field update",
			"request_id", requestcontext.RequestID(r.Context()),
			"session_id", requestcontext.SessionID(r.Context()),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	h.writeSnapshot(w, s)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	s, r, ok := h.session(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if !h.limiter.Allow(s.ID, requestcontext.Now(ctx)) {
		h.logger.WarnContext(ctx, "address search rate limited",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", requestcontext.SessionID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many address searches"))
		return
	}
	if err := s.Workflow.SubmitSearch(ctx); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.writeSnapshot(w, s)
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	s, r, ok := h.session(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := s.Workflow.SelectCandidate(req.ID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.writeSnapshot(w, s)
}

func (h *Handler) handleSubmitPerson(w http.ResponseWriter, r *http.Request) {
	s, r, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Workflow.SubmitPerson(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to commit address",
			"request_id", requestcontext.RequestID(r.Context()),
			"session_id", requestcontext.SessionID(r.Context()),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	h.writeSnapshot(w, s)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	s, _, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Workflow.ClearAll()
	h.writeSnapshot(w, s)
}

func (h *Handler) handleAddressBook(w http.ResponseWriter, r *http.Request) {
	s, r, ok := h.session(w, r)
	if !ok {
		return
	}
	entries, err := s.Workflow.AddressBook(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list address book",
			"request_id", requestcontext.RequestID(r.Context()),
			"session_id", requestcontext.SessionID(r.Context()),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []models.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, addressBookResponse{Entries: entries})
}

// session resolves the {id} path parameter and returns the request with the
// session id attached to its context. It writes a 404 when the id is unknown.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, *http.Request, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeSessionError(w, r, err)
		return nil, r, false
	}
	return s, r.WithContext(requestcontext.WithSessionID(r.Context(), s.ID)), true
}

func (h *Handler) writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, sentinel.ErrNotFound) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "session not found"))
		return
	}
	h.logger.ErrorContext(r.Context(), "session lookup failed",
		"request_id", requestcontext.RequestID(r.Context()),
		"error", err.Error(),
	)
	httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "session lookup failed"))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.logger.WarnContext(r.Context(), "invalid request body",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return false
	}
	return true
}

func (h *Handler) writeSnapshot(w http.ResponseWriter, s *session.Session) {
	httputil.WriteJSON(w, http.StatusOK, newSessionResponse(s))
}

func newSessionResponse(s *session.Session) sessionResponse {
	snap := s.Workflow.Snapshot()
	if snap.Candidates == nil {
		snap.Candidates = []models.Candidate{}
	}
	return sessionResponse{SessionID: s.ID, Snapshot: snap}
}
