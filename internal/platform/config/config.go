package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr   string
	Lookup LookupConfig
	Search SearchConfig
	// SessionIdleTTL evicts capture sessions nobody touched for this long.
	SessionIdleTTL time.Duration
	Redis          RedisConfig
	Log            LogConfig

	warnings []string
}

// LookupConfig configures the outbound address lookup client.
type LookupConfig struct {
	BaseURL  string
	Timeout  time.Duration
	RateRPS  float64
	CacheTTL time.Duration
	// BreakerFailures consecutive upstream failures open the circuit for
	// BreakerCooldown. Zero disables the breaker.
	BreakerFailures int
	BreakerCooldown time.Duration
}

// SearchConfig throttles searches per capture session.
type SearchConfig struct {
	RateRPS float64
	Burst   int
}

// RedisConfig configures the lookup cache backend. An empty URL keeps the
// cache in process memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string
	Format string
}

// Defaults.
const (
	DefaultAddr           = ":8080"
	DefaultLookupBaseURL  = "http://localhost:8081"
	DefaultLookupTimeout  = 5 * time.Second
	DefaultLookupRateRPS  = 10
	DefaultLookupCacheTTL = 5 * time.Minute
	DefaultBreakerFails   = 5
	DefaultBreakerCool    = 30 * time.Second
	DefaultSessionIdleTTL = 30 * time.Minute
	DefaultSearchRateRPS  = 2
	DefaultSearchBurst    = 5
)

// FromEnv builds a Server config from environment variables so main stays lean.
// Unparseable values fall back to their default and are reported by Warnings.
func FromEnv() Server {
	return fromLookup(os.Getenv)
}

// Warnings lists the variables that were ignored because they did not parse.
func (s Server) Warnings() []string {
	return s.warnings
}

func fromLookup(getenv func(string) string) Server {
	e := env{getenv: getenv}
	cfg := Server{
		Addr: e.str("ADDRESSBOOK_ADDR", DefaultAddr),
		Lookup: LookupConfig{
			BaseURL:  e.str("LOOKUP_BASE_URL", DefaultLookupBaseURL),
			Timeout:  e.duration("LOOKUP_TIMEOUT", DefaultLookupTimeout),
			RateRPS:  e.float("LOOKUP_RATE_RPS", DefaultLookupRateRPS),
			CacheTTL: e.duration("LOOKUP_CACHE_TTL", DefaultLookupCacheTTL),

			BreakerFailures: e.int("LOOKUP_BREAKER_FAILURES", DefaultBreakerFails),
			BreakerCooldown: e.duration("LOOKUP_BREAKER_COOLDOWN", DefaultBreakerCool),
		},
		Search: SearchConfig{
			RateRPS: e.float("SEARCH_RATE_RPS", DefaultSearchRateRPS),
			Burst:   e.int("SEARCH_RATE_BURST", DefaultSearchBurst),
		},
		SessionIdleTTL: e.duration("SESSION_IDLE_TTL", DefaultSessionIdleTTL),
		Redis: RedisConfig{
			URL:          getenv("REDIS_URL"),
			PoolSize:     e.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: e.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Log: LogConfig{
			Level:  e.str("LOG_LEVEL", "info"),
			Format: e.str("LOG_FORMAT", "json"),
		},
	}
	cfg.warnings = e.warnings
	return cfg
}

type env struct {
	getenv   func(string) string
	warnings []string
}

func (e *env) str(key, def string) string {
	if v := e.getenv(key); v != "" {
		return v
	}
	return def
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	raw := e.getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		e.warn(key, raw, def)
		return def
	}
	return d
}

func (e *env) float(key string, def float64) float64 {
	raw := e.getenv(key)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		e.warn(key, raw, def)
		return def
	}
	return f
}

func (e *env) int(key string, def int) int {
	raw := e.getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		e.warn(key, raw, def)
		return def
	}
	return n
}

func (e *env) warn(key, raw string, def any) {
	e.warnings = append(e.warnings, fmt.Sprintf("%s=%q is invalid, using %v", key, raw, def))
}
