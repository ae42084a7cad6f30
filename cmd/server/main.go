package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"addressbook/internal/addressbook/store"
	"addressbook/internal/capture"
	"addressbook/internal/capture/handler"
	"addressbook/internal/capture/session"
	"addressbook/internal/lookup"
	"addressbook/internal/lookup/cache"
	"addressbook/internal/platform/config"
	"addressbook/internal/platform/httpserver"
	"addressbook/internal/platform/logger"
	"addressbook/internal/platform/metrics"
	"addressbook/internal/platform/ratelimiter"
	"addressbook/internal/platform/redis"
	dErrors "addressbook/pkg/domain-errors"
	"addressbook/pkg/platform/circuit"
	"addressbook/pkg/platform/httputil"
)

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 10 * time.Second
)

// main wires the capture service: lookup client behind a cache, one workflow
// per session, and the HTTP adapter. Business logic lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Log)
	for _, w := range cfg.Warnings() {
		log.Warn("configuration fallback", "detail", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("addressbook server stopped", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	m := metrics.New(prometheus.DefaultRegisterer)

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	searcher, purge := buildSearcher(cfg, redisClient, log, m)

	sessions := session.NewRegistry(func() *capture.Workflow {
		return capture.New(searcher, store.NewInMemory(),
			capture.WithLogger(log),
			capture.WithMetrics(m),
		)
	},
		session.WithIdleTTL(cfg.SessionIdleTTL),
		session.WithLogger(log),
		session.WithMetrics(m),
	)
	limiter := ratelimiter.New(cfg.Search.RateRPS, cfg.Search.Burst, cfg.SessionIdleTTL)

	r := chi.NewRouter()
	r.Get("/healthz", healthHandler(redisClient))
	r.Handle("/metrics", promhttp.Handler())
	handler.New(sessions, limiter, log, m).Register(r)

	srv := httpserver.New(cfg.Addr, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting addressbook server",
			"addr", cfg.Addr,
			"lookup_url", cfg.Lookup.BaseURL,
			"redis_cache", redisClient != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sessions.Run(gctx, sweepInterval)
	})
	if purge != nil {
		g.Go(func() error {
			return purge(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildSearcher puts the lookup client behind Redis when configured and an
// in-process cache otherwise. The returned purge loop is nil for Redis,
// which expires keys itself.
func buildSearcher(cfg config.Server, redisClient *redis.Client, log *slog.Logger, m *metrics.Metrics) (lookup.Searcher, func(context.Context) error) {
	opts := []lookup.Option{
		lookup.WithTimeout(cfg.Lookup.Timeout),
		lookup.WithLogger(log),
		lookup.WithMetrics(m),
	}
	if cfg.Lookup.RateRPS > 0 {
		burst := max(1, int(cfg.Lookup.RateRPS))
		opts = append(opts, lookup.WithRateLimit(cfg.Lookup.RateRPS, burst))
	}
	if cfg.Lookup.BreakerFailures > 0 {
		opts = append(opts, lookup.WithCircuitBreaker(circuit.New("address-lookup",
			circuit.WithFailureThreshold(cfg.Lookup.BreakerFailures),
			circuit.WithCooldown(cfg.Lookup.BreakerCooldown),
		)))
	}
	client := lookup.NewClient(cfg.Lookup.BaseURL, opts...)

	cacheOpts := []cache.Option{
		cache.WithTTL(cfg.Lookup.CacheTTL),
		cache.WithLogger(log),
		cache.WithMetrics(m),
	}
	if redisClient != nil {
		return cache.New(client, cache.NewRedis(redisClient), cacheOpts...), nil
	}

	mem := cache.NewInMemory()
	purge := func(ctx context.Context) error {
		ticker := time.NewTicker(cfg.Lookup.CacheTTL)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := mem.Purge(); n > 0 {
					log.DebugContext(ctx, "purged expired lookup cache entries", "count", n)
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return cache.New(client, mem, cacheOpts...), purge
}

func healthHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			if err := redisClient.Health(r.Context()); err != nil {
				httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "redis unavailable"))
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
