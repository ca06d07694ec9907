package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/apexhub/gateway/internal/config"
	"github.com/apexhub/gateway/internal/handlers"
	"github.com/apexhub/gateway/internal/metrics"
	"github.com/apexhub/gateway/internal/middleware"
	"github.com/apexhub/gateway/internal/proxy"
	"github.com/apexhub/gateway/internal/ratelimit"
	"github.com/apexhub/gateway/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("couldn't load config")
	}

	setupLogging(cfg.LogLevel)
	log.Info().Str("port", cfg.Port).Str("scope", cfg.Scope).Msg("starting gateway")

	db, err := store.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	var (
		limiter     *ratelimit.Limiter
		redisClient *redis.Client
	)
	if cfg.RedisURL != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisClient.Close()
		limiter = ratelimit.NewRedisLimiter(redisClient)
		log.Info().Msg("rate-limit counters shared via redis")
	} else {
		limiter = ratelimit.NewMemoryLimiter()
	}
	defer limiter.Close()

	collector := metrics.NewCollector()
	proxySvc := proxy.NewService(cfg.UpstreamTimeout, middleware.KeyHeader)

	corsMiddleware := middleware.NewCORSMiddleware(cfg.AllowedOrigins)
	accessLogMiddleware := middleware.NewAccessLogMiddleware(collector, cfg.TrustProxyHeaders)
	bodyMiddleware := middleware.NewBodyMiddleware(cfg.MaxBodyBytes)
	authMiddleware := middleware.NewAuthMiddleware(db, cfg.DefaultSpec())
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(limiter, cfg.DefaultSpec(), collector, cfg.TrustProxyHeaders)

	gatewayHandler := handlers.NewGatewayHandler(db, cfg.Scope, proxySvc, collector)
	healthHandler := handlers.NewHealthHandler(db, redisClient, cfg.Scope, collector)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler.HealthCheck)
	mux.HandleFunc("/metrics", healthHandler.GetMetrics)

	// Stage order is fixed: sanitize, authenticate, rate-limit, proxy.
	pipeline := bodyMiddleware.Middleware(
		authMiddleware.Middleware(
			rateLimitMiddleware.Middleware(gatewayHandler)))
	mux.Handle("/", corsMiddleware.Middleware(accessLogMiddleware.Middleware(pipeline)))

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	go func() {
		log.Info().Msg("ready")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown did not complete cleanly")
	}
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}
