package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joeychilson/rawview/client"
	"github.com/joeychilson/rawview/logger"
	"github.com/redis/go-redis/v9"
)

// ServerConfig holds the optional dependencies of the API server.
type ServerConfig struct {
	// RedisClient backs the API rate limiter when set.
	RedisClient *redis.Client
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// Server is the HTTP API and document viewer.
type Server struct {
	client *client.Client
	logger logger.Logger
	router *chi.Mux
}

// New creates a Server with the chi middleware stack and routes.
func New(c *client.Client, log logger.Logger, cfg *ServerConfig) (*Server, error) {
	if log == nil {
		log = logger.Noop()
	}
	if cfg == nil {
		cfg = &ServerConfig{}
	}

	s := &Server{
		client: c,
		logger: log,
		router: chi.NewRouter(),
	}

	apiCfg := c.Config().Server
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(Logger(log))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	if cfg.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	s.router.Group(func(r chi.Router) {
		r.Use(RateLimit(RateLimitConfig{
			RequestLimit:   apiCfg.GetRateLimitRequests(),
			WindowDuration: apiCfg.GetRateLimitWindow(),
			RedisClient:    cfg.RedisClient,
		}))
		r.Post("/v1/classify", s.handleClassify)
		r.Post("/v1/resolve", s.handleResolve)
		r.Post("/v1/render", s.handleRender)
		r.Get("/view", s.handleView)
	})

	return s, nil
}

// Router returns the HTTP handler for the server.
func (s *Server) Router() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
