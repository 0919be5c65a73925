package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	httprateredis "github.com/go-chi/httprate-redis"
	"github.com/joeychilson/rawview/logger"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig holds configuration for the API rate limiter.
type RateLimitConfig struct {
	RequestLimit   int
	WindowDuration time.Duration
	RedisClient    *redis.Client // Optional Redis client for distributed rate limiting
}

// DefaultRateLimitConfig returns a default rate limit configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestLimit:   100,
		WindowDuration: time.Minute,
	}
}

// RateLimit returns a middleware that rate limits requests per client IP.
func RateLimit(cfg RateLimitConfig) func(next http.Handler) http.Handler {
	if cfg.RequestLimit == 0 {
		cfg.RequestLimit = DefaultRateLimitConfig().RequestLimit
	}
	if cfg.WindowDuration == 0 {
		cfg.WindowDuration = DefaultRateLimitConfig().WindowDuration
	}

	limitHandler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limit exceeded","status_code":429}`))
	}

	options := []httprate.Option{
		httprate.WithLimitHandler(limitHandler),
		httprate.WithKeyByRealIP(),
	}
	if cfg.RedisClient != nil {
		options = append(options, httprateredis.WithRedisLimitCounter(&httprateredis.Config{
			Client:    cfg.RedisClient,
			PrefixKey: "rawview:ratelimit",
		}))
	}

	return httprate.NewRateLimiter(cfg.RequestLimit, cfg.WindowDuration, options...).Handler
}

// Logger returns a middleware that logs each request with its request ID,
// status, size and duration.
func Logger(log logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			reqLog := log.With(
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			reqLog.Debug("request started")

			next.ServeHTTP(ww, r)

			reqLog.Info("request completed",
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
