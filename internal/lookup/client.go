package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"addressbook/internal/address/models"
	"addressbook/internal/platform/metrics"
	"addressbook/pkg/platform/circuit"
)

const (
	// SearchPath is the lookup API route relative to the base URL.
	SearchPath = "/api/getAddresses"

	defaultTimeout = 5 * time.Second
	maxBodyBytes   = 1 << 20
)

// Client queries the HTTP address lookup API:
//
//	GET {base}/api/getAddresses?postcode=<postCode>&streetnumber=<houseNumber>
//
// and expects a JSON array of address objects, each with at least an "id".
// The client never retries.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	breaker *circuit.Breaker
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout bounds each search. Zero disables the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRateLimit waits on a token bucket of rps before each call.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

// WithCircuitBreaker fails searches fast while b is open. Only upstream
// failures (transport, timeout, bad status or data) count against it.
func WithCircuitBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// NewClient constructs a Client for baseURL (scheme and host, optional path prefix).
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: defaultTimeout,
		logger:  slog.New(slog.DiscardHandler),
		tracer:  otel.Tracer("addressbook/internal/lookup"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search implements Searcher.
func (c *Client) Search(ctx context.Context, postCode, houseNumber string) ([]models.Candidate, error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "lookup.Search")
	defer span.End()

	candidates, err := c.guardedSearch(ctx, postCode, houseNumber)
	outcome := "success"
	if err != nil {
		outcome = string(CategoryOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		c.logger.WarnContext(ctx, "address lookup failed",
			"category", outcome,
			"error", err.Error(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	} else {
		span.SetAttributes(attribute.Int("lookup.candidates", len(candidates)))
		c.logger.DebugContext(ctx, "address lookup completed",
			"candidates", len(candidates),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	c.metrics.ObserveLookup(start, outcome)
	return candidates, err
}

func (c *Client) guardedSearch(ctx context.Context, postCode, houseNumber string) ([]models.Candidate, error) {
	if c.breaker == nil {
		return c.search(ctx, postCode, houseNumber)
	}
	if !c.breaker.Allow() {
		return nil, NewError(ErrorUnavailable, MsgUnavailable, ErrCircuitOpen)
	}

	candidates, err := c.search(ctx, postCode, houseNumber)
	switch {
	case err == nil:
		if _, change := c.breaker.RecordSuccess(); change.Closed {
			c.logger.InfoContext(ctx, "lookup circuit closed", "breaker", c.breaker.Name())
		}
	case countsAgainstBreaker(err):
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.logger.WarnContext(ctx, "lookup circuit opened", "breaker", c.breaker.Name())
		}
	}
	return candidates, err
}

func countsAgainstBreaker(err error) bool {
	switch CategoryOf(err) {
	case ErrorTimeout, ErrorTransport, ErrorBadStatus, ErrorBadData:
		return true
	default:
		return false
	}
}

func (c *Client) search(ctx context.Context, postCode, houseNumber string) ([]models.Candidate, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, fromContext(ctx.Err())
			}
			return nil, NewError(ErrorRateLimited, MsgRateLimited, err)
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL(postCode, houseNumber), nil)
	if err != nil {
		return nil, NewError(ErrorTransport, MsgFetchFailed, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fromContext(ctx.Err())
		}
		return nil, NewError(ErrorTransport, MsgFetchFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, fromContext(ctx.Err())
		}
		return nil, NewError(ErrorTransport, MsgFetchFailed, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		le := NewError(ErrorBadStatus, MsgFetchFailed, fmt.Errorf("status %s", resp.Status))
		le.StatusCode = resp.StatusCode
		return nil, le
	}

	candidates, err := parseCandidates(body)
	if err != nil {
		return nil, NewError(ErrorBadData, MsgBadData, err)
	}
	return candidates, nil
}

func (c *Client) searchURL(postCode, houseNumber string) string {
	q := url.Values{}
	q.Set("postcode", postCode)
	q.Set("streetnumber", houseNumber)
	return c.baseURL + SearchPath + "?" + q.Encode()
}

// parseCandidates decodes the JSON array returned by the lookup API. Known
// keys map onto Candidate fields; every other value is kept verbatim in Extra.
func parseCandidates(body []byte) ([]models.Candidate, error) {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("decode addresses: %w", err)
	}

	out := make([]models.Candidate, 0, len(items))
	for i, item := range items {
		c, err := candidateFromItem(item)
		if err != nil {
			return nil, fmt.Errorf("address %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

var errMissingID = errors.New("missing id")

func candidateFromItem(item map[string]json.RawMessage) (models.Candidate, error) {
	var c models.Candidate
	c.ID, _ = scalarString(item["id"])
	if c.ID == "" {
		return c, errMissingID
	}
	for key, raw := range item {
		known := true
		switch key {
		case "id":
		case "postcode", "postCode":
			c.PostCode, known = scalarString(raw)
		case "street":
			c.Street, known = scalarString(raw)
		case "city":
			c.City, known = scalarString(raw)
		case "lat":
			c.Lat, known = scalarFloat(raw)
		case "lon", "long", "lng":
			c.Lon, known = scalarFloat(raw)
		case "houseNumber":
			// replaced by the workflow with the searched value
		default:
			known = false
		}
		if !known {
			if c.Extra == nil {
				c.Extra = make(map[string]json.RawMessage)
			}
			c.Extra[key] = compact(raw)
		}
	}
	return c, nil
}

// scalarString reads a JSON string, number or bool as text. ok is false for
// anything else so the caller can keep the raw value.
func scalarString(raw json.RawMessage) (string, bool) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// scalarFloat reads a JSON number or numeric string. A present 0 is kept.
func scalarFloat(raw json.RawMessage) (*float64, bool) {
	s, ok := scalarString(raw)
	if !ok {
		return nil, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, false
	}
	return &f, true
}

func compact(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return bytes.Clone(raw)
	}
	return buf.Bytes()
}
