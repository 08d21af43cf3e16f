// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, identity resolution, idempotency, rate limiting, CORS and
// security headers.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-review-reply-backend/docs"
	"github.com/tbourn/go-review-reply-backend/internal/auth"
	"github.com/tbourn/go-review-reply-backend/internal/config"
	"github.com/tbourn/go-review-reply-backend/internal/domain"
	"github.com/tbourn/go-review-reply-backend/internal/genai"
	"github.com/tbourn/go-review-reply-backend/internal/http/handlers"
	"github.com/tbourn/go-review-reply-backend/internal/http/middleware"
	"github.com/tbourn/go-review-reply-backend/internal/repo"
	"github.com/tbourn/go-review-reply-backend/internal/services"
)

// LegacyGeneratePath is the pre-versioning endpoint kept for existing clients.
const LegacyGeneratePath = "/api/generate"

// Deps are the process-level resources the routes are built from.
type Deps struct {
	DB *gorm.DB

	// Quota defaults to the SQL store over DB when nil.
	Quota     services.QuotaStore
	Generator genai.Generator
	Resolver  *auth.Resolver
}

// historyRepoShim adapts the repository free functions to the
// services.HistoryRepo interface expected by the HistoryService.
type historyRepoShim struct{}

// CreateHistory proxies repo.CreateHistory.
func (historyRepoShim) CreateHistory(ctx context.Context, db *gorm.DB, userID, review, businessType, tone, reply string) (*domain.HistoryItem, error) {
	return repo.CreateHistory(ctx, db, userID, review, businessType, tone, reply)
}

// CountHistory proxies repo.CountHistory.
func (historyRepoShim) CountHistory(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountHistory(ctx, db, userID)
}

// ListHistoryPage proxies repo.ListHistoryPage.
func (historyRepoShim) ListHistoryPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.HistoryItem, error) {
	return repo.ListHistoryPage(ctx, db, userID, offset, limit)
}

// GetHistory proxies repo.GetHistory.
func (historyRepoShim) GetHistory(ctx context.Context, db *gorm.DB, id, userID string) (*domain.HistoryItem, error) {
	return repo.GetHistory(ctx, db, id, userID)
}

// DeleteHistory proxies repo.DeleteHistory.
func (historyRepoShim) DeleteHistory(ctx context.Context, db *gorm.DB, id, userID string) error {
	return repo.DeleteHistory(ctx, db, id, userID)
}

// idempotencyShim implements handlers.IdempotencyStore over the idempotency
// table.
type idempotencyShim struct {
	db  *gorm.DB
	ttl time.Duration
}

// Lookup returns the history id stored for (userID, key), if still valid.
func (s idempotencyShim) Lookup(ctx context.Context, userID, key string, now time.Time) (string, bool, error) {
	rec, err := repo.GetIdempotency(ctx, s.db, userID, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.HistoryID, true, nil
}

// Remember stores historyID under (userID, key). A concurrent duplicate is
// not an error: the first writer wins.
func (s idempotencyShim) Remember(ctx context.Context, userID, key, historyID string) error {
	_, err := repo.CreateIdempotency(ctx, s.db, userID, key, historyID, http.StatusOK, s.ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// exists adapts Lookup to middleware.IdempotencyLookup. Errors are a miss.
func (s idempotencyShim) exists(ctx context.Context, userID, key string, now time.Time) (bool, error) {
	_, ok, err := s.Lookup(ctx, userID, key, now)
	return ok && err == nil, err
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter and gzip
//  6. Metrics
//  7. Identify: resolve the bearer credential (never rejects)
//  8. Idempotency validator (needs the user id; before the rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-Goog-Api-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB) and response compression
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Identity (records the caller or the verification error)
	r.Use(middleware.Identify(deps.Resolver))

	// 8) Idempotency validation (before rate limiting)
	idem := idempotencyShim{db: deps.DB, ttl: cfg.IdempotencyTTL}
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, idem.exists))

	// 9) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 10) CORS (allow all if none configured) and security headers
	r.Use(corsHandlers(cfg.CORS.AllowedOrigins)...)
	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
		DocsPrefix:   docsPrefix(cfg.SwaggerEnabled),
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, handlers.MsgMethodNotAllowed)
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	apiBase := cfg.APIBasePath // e.g. "/api/v1"

	// API docs
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = apiBase
		r.GET(swaggerPrefix+"/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← stores/db/generator
	store := deps.Quota
	if store == nil {
		store = repo.SQLQuotaStore{DB: deps.DB}
	}
	gate := services.NewQuotaGate(
		store,
		repo.ProfileStore{DB: deps.DB},
		cfg.Quota.DailyLimit,
		services.ParsePrivilegePolicy(cfg.Quota.PrivilegePolicy),
		cfg.Quota.Location(),
	)
	genSvc := services.NewGenerationService(deps.Generator, cfg.Generation.UpstreamTimeout)
	histSvc := services.NewHistoryService(deps.DB, historyRepoShim{}, cfg.HistoryPageMax)

	h := handlers.New(genSvc, gate, histSvc, idem, deps.Resolver)
	if cfg.HistoryPageMax > 0 {
		h.HistoryPageMax = cfg.HistoryPageMax
	}

	// Legacy path used by the original web client
	r.POST(LegacyGeneratePath, h.Generate)
	r.OPTIONS(LegacyGeneratePath, h.Preflight)

	// Public API
	api := groupWithPrefix(r, apiBase)
	{
		if joinPath(apiBase, "/generate") != LegacyGeneratePath {
			api.POST("/generate", h.Generate)
			api.OPTIONS("/generate", h.Preflight)
		}

		// Authenticated routes
		authed := api.Group("", middleware.RequireIdentity())
		authed.GET("/quota", h.GetQuota)
		authed.GET("/history", h.ListHistory)
		authed.GET("/history/:id", h.GetHistory)
		authed.DELETE("/history/:id", h.DeleteHistory)
	}
}

// corsHandlers sets Access-Control-Allow-Origin ahead of gin-contrib/cors so
// that it is present even on requests without an Origin header (curl, server
// to server) and on responses aborted by later middleware.
func corsHandlers(origins []string) []gin.HandlerFunc {
	conf := cors.Config{
		AllowMethods:              []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:              []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey},
		ExposeHeaders:             []string{"X-Request-ID", "Content-Length", "ETag", handlers.HeaderReplayed},
		MaxAge:                    12 * time.Hour,
		OptionsResponseStatusCode: http.StatusOK,
	}

	if len(origins) == 0 {
		conf.AllowAllOrigins = true
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(conf),
		}
	}

	conf.AllowOrigins = origins
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(conf),
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

const swaggerPrefix = "/swagger"

func docsPrefix(enabled bool) string {
	if enabled {
		return swaggerPrefix
	}
	return ""
}

func joinPath(base, p string) string {
	if base == "" || base == "/" {
		return p
	}
	return base + p
}
