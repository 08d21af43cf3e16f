// Command server runs the review-reply HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-review-reply-backend/internal/auth"
	"github.com/tbourn/go-review-reply-backend/internal/config"
	"github.com/tbourn/go-review-reply-backend/internal/genai"
	httpapi "github.com/tbourn/go-review-reply-backend/internal/http"
	"github.com/tbourn/go-review-reply-backend/internal/observability"
	"github.com/tbourn/go-review-reply-backend/internal/redisstore"
	"github.com/tbourn/go-review-reply-backend/internal/repo"
	"github.com/tbourn/go-review-reply-backend/internal/services"
	"github.com/tbourn/go-review-reply-backend/internal/sysutil"
)

const (
	shutdownTimeout       = 15 * time.Second
	idempotencySweepEvery = 30 * time.Minute
)

func main() {
	if _, err := sysutil.LoadEnvFiles(sysutil.DefaultEnvFiles...); err != nil {
		fmt.Fprintf(os.Stderr, "load env files: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	sysutil.ConfigureLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	gin.SetMode(cfg.GinMode)
	version := sysutil.Version()

	shutdownOTel, err := observability.Setup(ctx, cfg.OTEL, observability.ServiceInfo{
		Version:            version,
		Environment:        cfg.GinMode,
		GenerationProvider: cfg.Generation.Provider,
		QuotaBackend:       cfg.Quota.Backend,
	})
	if err != nil {
		return fmt.Errorf("setup otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	quota, closeQuota, err := buildQuotaStore(ctx, cfg.Quota, db)
	if err != nil {
		return err
	}
	defer closeQuota()

	resolver, err := buildResolver(ctx, cfg.Auth)
	if err != nil {
		return err
	}

	gen, err := genai.New(genai.Options{
		Provider: cfg.Generation.Provider,
		Model:    cfg.Generation.Model,
		BaseURL:  cfg.Generation.BaseURL,
		APIKey:   generationKey(cfg.Generation),
	})
	if err != nil {
		return fmt.Errorf("build generator: %w", err)
	}
	if !gen.Configured() {
		log.Warn().Str("provider", cfg.Generation.Provider).
			Msg("generation API key missing; /generate will answer with a configuration error")
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:        db,
		Quota:     quota,
		Generator: gen,
		Resolver:  resolver,
	}, cfg)

	startIdempotencySweeper(ctx, db, idempotencySweepEvery)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", version).
			Str("auth_mode", cfg.Auth.Mode).
			Str("quota_backend", cfg.Quota.Backend).
			Int("daily_limit", cfg.Quota.DailyLimit).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

// buildQuotaStore selects the counter backend. The returned close func is
// always non-nil.
func buildQuotaStore(ctx context.Context, cfg config.QuotaConfig, db *gorm.DB) (services.QuotaStore, func(), error) {
	if cfg.Backend != "redis" {
		return repo.SQLQuotaStore{DB: db}, func() {}, nil
	}
	client := redisstore.NewClient(cfg.RedisURL)
	if err := redisstore.Ping(ctx, client); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	store := redisstore.NewQuotaStore(client, redisstore.WithKeyPrefix(cfg.RedisKeyPrefix))
	return store, func() { _ = client.Close() }, nil
}

// buildResolver picks the bearer verifier for AUTH_MODE. With "none" any
// bearer token is a configuration error while body-claimed ids still work.
func buildResolver(ctx context.Context, cfg config.AuthConfig) (*auth.Resolver, error) {
	switch cfg.Mode {
	case "jwt":
		v, err := auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
		if err != nil {
			return nil, fmt.Errorf("jwt verifier: %w", err)
		}
		return auth.NewResolver(v), nil
	case "oidc":
		v, err := auth.NewOIDCVerifier(cfg.OIDCIssuer, cfg.OIDCAudience, cfg.HTTPTimeout)
		if err != nil {
			return nil, fmt.Errorf("oidc verifier: %w", err)
		}
		// Discovery is retried per request, so a provider outage at boot
		// is not fatal.
		if err := v.Init(ctx); err != nil {
			log.Warn().Err(err).Str("issuer", cfg.OIDCIssuer).Msg("oidc discovery failed at startup")
		}
		return auth.NewResolver(v), nil
	default:
		return auth.NewResolver(nil), nil
	}
}

func generationKey(cfg config.GenerationConfig) string {
	if cfg.Provider == "openai" {
		return cfg.OpenAIAPIKey
	}
	return cfg.GeminiAPIKey
}

// startIdempotencySweeper deletes expired idempotency records until ctx ends.
func startIdempotencySweeper(ctx context.Context, db *gorm.DB, interval time.Duration) {
	if interval <= 0 {
		interval = idempotencySweepEvery
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		run := func() {
			n, err := repo.PurgeExpiredIdempotency(ctx, db, time.Now())
			if err != nil {
				log.Warn().Err(err).Msg("idempotency sweep failed")
				return
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("idempotency sweep")
			}
		}
		run()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()
}
