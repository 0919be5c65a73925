package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joeychilson/rawview/cache"
	"github.com/joeychilson/rawview/client"
	"github.com/joeychilson/rawview/config"
	"github.com/joeychilson/rawview/logger"
	"github.com/joeychilson/rawview/metrics"
	"github.com/joeychilson/rawview/server"
)

const (
	defaultAddr         = ":8080"
	defaultConfigFile   = "./config.yaml"
	defaultLogLevel     = "info"
	httpReadTimeout     = 30 * time.Second
	httpWriteTimeout    = 120 * time.Second
	httpIdleTimeout     = 60 * time.Second
	httpShutdownTimeout = 10 * time.Second
)

func main() {
	addr := getEnv("ADDR", defaultAddr)
	configFile := getEnv("CONFIG_FILE", defaultConfigFile)
	redisURL := getEnv("REDIS_URL", "")
	logLevel := getEnv("LOG_LEVEL", defaultLogLevel)

	level, err := logger.ParseLevel(logLevel)
	log := logger.NewJSON(os.Stderr, level)
	if err != nil {
		log.Warn("unknown log level, using info", "level", logLevel)
	}

	log.Info("starting rawview server", "log_level", level.String())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var c *client.Client
	if _, statErr := os.Stat(configFile); statErr == nil {
		log.Info("loading config from file", "file", configFile)
		c, err = client.NewFromFile(configFile)
	} else {
		log.Info("using default configuration (config file not found)", "checked", configFile)
		c, err = client.New(config.New())
	}
	if err != nil {
		log.Error("failed to create client", "error", err)
		os.Exit(1)
	}

	reg := metrics.NewRegistry()
	c = c.WithLogger(log).WithRecorder(metrics.NewPrometheusRecorder(reg))
	defer c.Close()

	srvCfg := &server.ServerConfig{Metrics: metrics.HTTPHandler(reg)}

	if redisURL != "" {
		log.Info("connecting to redis", "url", redisURL)
		redisCache, err := cache.NewRedisCacheFromURL(redisURL, cache.DefaultConfig())
		if err != nil {
			log.Error("failed to create redis cache", "error", err)
			os.Exit(1)
		}
		if err := redisCache.Ping(ctx); err != nil {
			log.Error("failed to connect to redis", "error", err, "url", redisURL)
			os.Exit(1)
		}
		c = c.WithCache(redisCache)
		srvCfg.RedisClient = redisCache.Client()
		log.Info("redis cache enabled")
	} else {
		log.Info("using in-memory cache")
	}

	srv, err := server.New(c, log, srvCfg)
	if err != nil {
		log.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Router(),
		ReadTimeout:  httpReadTimeout,
		WriteTimeout: httpWriteTimeout,
		IdleTimeout:  httpIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting API server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down API server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", "error", err)
			os.Exit(1)
		}
	case err := <-errCh:
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	log.Info("server shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
