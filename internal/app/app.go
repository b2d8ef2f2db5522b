package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/dotest/exam-platform/internal/cache"
	"github.com/dotest/exam-platform/internal/catalog"
	"github.com/dotest/exam-platform/internal/config"
	"github.com/dotest/exam-platform/internal/docstore"
	"github.com/dotest/exam-platform/internal/history"
	"github.com/dotest/exam-platform/internal/identity"
	"github.com/dotest/exam-platform/internal/leaderboard"
	"github.com/dotest/exam-platform/internal/logging"
	"github.com/dotest/exam-platform/internal/results"
	"github.com/dotest/exam-platform/internal/server"
	"github.com/dotest/exam-platform/internal/session"
)

// Application aggregates shared infrastructure (Mongo, Redis, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	mongo    *mongo.Client
	redis    *redis.Client
	http     *http.Server
	sessions *session.Manager
}

// New bootstraps config, logger, MongoDB, Redis, the services and the
// HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	store, mongoClient, err := docstore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	if cfg.Security.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be configured")
	}
	verifier := identity.NewVerifier(identity.VerifierConfig{
		Secret: []byte(cfg.Security.JWTSecret),
		Issuer: cfg.Security.Issuer,
	})

	catalogSvc := catalog.NewService(store, logger, catalog.ServiceOptions{})
	historySvc := history.NewService(store, logger, history.ServiceOptions{})
	leaderboardSvc := leaderboard.NewService(store, logger, leaderboard.ServiceOptions{
		TopN: cfg.Leaderboard.TopN,
	})
	cacheStore := cache.NewStore(redisClient, cache.Options{
		BoardTTL: cfg.Leaderboard.CacheTTL,
	})

	recorder := results.NewRecorder(historySvc, leaderboardSvc, cacheStore, logger)
	sessions := session.NewManager(session.RealClock{}, server.WrapRecorder(recorder), session.Options{
		Duration:        cfg.Session.Duration,
		FirstWarningAt:  cfg.Session.FirstWarningAt,
		SecondWarningAt: cfg.Session.SecondWarningAt,
	}, logger)

	handlers := server.NewHandlers(sessions, catalogSvc, leaderboardSvc, historySvc, cacheStore, logger)
	apiServer := server.NewHTTPServer(cfg, handlers, verifier, logger)

	return &Application{
		cfg:      cfg,
		logger:   logger,
		mongo:    mongoClient,
		redis:    redisClient,
		http:     apiServer,
		sessions: sessions,
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	a.sessions.Shutdown()

	if err := a.mongo.Disconnect(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("mongodb shutdown error")
	}
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}
