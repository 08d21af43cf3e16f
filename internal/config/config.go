// Package config loads application settings from the environment.
//
// Each section has its own loader; Load joins every parse and validation
// error so a misconfigured deployment reports all problems at once.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings. No origins means
// any origin is allowed.
type CORSConfig struct {
	AllowedOrigins []string // CORS_ALLOWED_ORIGINS, comma separated
}

// SecurityConfig controls HSTS.
type SecurityConfig struct {
	EnableHSTS bool          // ENABLE_HSTS
	HSTSMaxAge time.Duration // HSTS_MAX_AGE
}

// OTELConfig defines OpenTelemetry tracing settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT, host:port
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// QuotaConfig controls the per-identity daily ceiling.
type QuotaConfig struct {
	DailyLimit      int    // DAILY_LIMIT
	Timezone        string // QUOTA_TIMEZONE, IANA name used for the day boundary
	Backend         string // QUOTA_BACKEND: sql|redis
	RedisURL        string // REDIS_URL
	RedisKeyPrefix  string // REDIS_KEY_PREFIX
	PrivilegePolicy string // PRIVILEGE_FAILURE_POLICY: fail_closed|fail_open
}

// AuthConfig selects how bearer credentials are verified.
type AuthConfig struct {
	Mode         string        // AUTH_MODE: none|jwt|oidc
	JWTSecret    string        // AUTH_JWT_SECRET (HS256)
	JWTIssuer    string        // AUTH_JWT_ISSUER
	OIDCIssuer   string        // AUTH_OIDC_ISSUER, e.g. https://securetoken.google.com/<project>
	OIDCAudience string        // AUTH_OIDC_AUDIENCE
	HTTPTimeout  time.Duration // AUTH_HTTP_TIMEOUT for discovery and JWKS fetches
}

// GenerationConfig describes the external text-generation backend.
type GenerationConfig struct {
	Provider        string        // GENERATION_PROVIDER: gemini|openai
	Model           string        // GENERATION_MODEL
	BaseURL         string        // GENERATION_BASE_URL
	GeminiAPIKey    string        // GEMINI_API_KEY
	OpenAIAPIKey    string        // OPENAI_API_KEY
	UpstreamTimeout time.Duration // UPSTREAM_TIMEOUT
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging and docs
	LogLevel       string
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	// Storage
	DBPath         string
	HistoryPageMax int

	// Edge rate limit, independent of the daily quota
	RateRPS   float64
	RateBurst int

	CORS     CORSConfig
	Security SecurityConfig

	IdempotencyTTL time.Duration

	Quota      QuotaConfig
	Auth       AuthConfig
	Generation GenerationConfig

	OTEL OTELConfig
}

// MustLoad is Load for main packages that cannot start without config.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the environment, applies defaults and validates the result.
// The returned Config is populated even when err is non-nil.
func Load() (Config, error) {
	return load(newEnv())
}

func load(e *env) (Config, error) {
	cfg := Config{
		IdempotencyTTL: e.dur("IDEMPOTENCY_TTL", 24*time.Hour),
		Quota:          loadQuota(e),
		Auth:           loadAuth(e),
		Generation:     loadGeneration(e),
		OTEL:           loadOTEL(e),
		CORS:           CORSConfig{AllowedOrigins: e.csv("CORS_ALLOWED_ORIGINS")},
		Security: SecurityConfig{
			EnableHSTS: e.bool("ENABLE_HSTS", false),
			HSTSMaxAge: e.dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},
	}
	loadServer(e, &cfg)

	errs := append([]error{}, e.errs...)
	errs = append(errs,
		cfg.validateServer(),
		cfg.Quota.validate(),
		cfg.Auth.validate(),
		cfg.Generation.validate(),
		cfg.OTEL.validate(),
	)
	return cfg, errors.Join(errs...)
}

func loadServer(e *env, cfg *Config) {
	cfg.Port = e.str("PORT", "8080")
	cfg.ReadTimeout = e.dur("READ_TIMEOUT", 15*time.Second)
	cfg.ReadHeaderTimeout = e.dur("READ_HEADER_TIMEOUT", 10*time.Second)
	// Longer than UPSTREAM_TIMEOUT so generation errors still reach the client.
	cfg.WriteTimeout = e.dur("WRITE_TIMEOUT", 45*time.Second)
	cfg.IdleTimeout = e.dur("IDLE_TIMEOUT", 60*time.Second)
	cfg.MaxHeaderBytes = e.int("MAX_HEADER_BYTES", 1<<20)

	cfg.GinMode = e.lower("GIN_MODE", "release")
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	cfg.LogLevel = e.lower("LOG_LEVEL", "info")
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	cfg.LogPretty = e.bool("LOG_PRETTY", false)
	cfg.SwaggerEnabled = e.bool("SWAGGER_ENABLED", false)
	cfg.APIBasePath = normalizeBasePath(e.str("API_BASE_PATH", "/api/v1"))

	cfg.DBPath = e.str("DB_PATH", "app.db")
	cfg.HistoryPageMax = e.int("HISTORY_PAGE_MAX", 50)
	cfg.RateRPS = e.float("RATE_RPS", 5)
	cfg.RateBurst = e.int("RATE_BURST", 10)
}

func loadQuota(e *env) QuotaConfig {
	return QuotaConfig{
		DailyLimit:      e.int("DAILY_LIMIT", 10),
		Timezone:        e.str("QUOTA_TIMEZONE", "UTC"),
		Backend:         e.lower("QUOTA_BACKEND", "sql"),
		RedisURL:        e.str("REDIS_URL", ""),
		RedisKeyPrefix:  e.str("REDIS_KEY_PREFIX", "reviewreply:quota:"),
		PrivilegePolicy: strings.ReplaceAll(e.lower("PRIVILEGE_FAILURE_POLICY", "fail_closed"), "-", "_"),
	}
}

func loadAuth(e *env) AuthConfig {
	return AuthConfig{
		Mode:         e.lower("AUTH_MODE", "none"),
		JWTSecret:    e.str("AUTH_JWT_SECRET", ""),
		JWTIssuer:    e.str("AUTH_JWT_ISSUER", ""),
		OIDCIssuer:   e.str("AUTH_OIDC_ISSUER", ""),
		OIDCAudience: e.str("AUTH_OIDC_AUDIENCE", ""),
		HTTPTimeout:  e.dur("AUTH_HTTP_TIMEOUT", 5*time.Second),
	}
}

func loadGeneration(e *env) GenerationConfig {
	g := GenerationConfig{
		Provider:        e.lower("GENERATION_PROVIDER", "gemini"),
		Model:           e.str("GENERATION_MODEL", ""),
		BaseURL:         e.str("GENERATION_BASE_URL", ""),
		GeminiAPIKey:    e.str("GEMINI_API_KEY", ""),
		OpenAIAPIKey:    e.str("OPENAI_API_KEY", ""),
		UpstreamTimeout: e.dur("UPSTREAM_TIMEOUT", 30*time.Second),
	}
	if g.Model == "" {
		g.Model = defaultModel(g.Provider)
	}
	return g
}

func loadOTEL(e *env) OTELConfig {
	return OTELConfig{
		Enabled:     e.bool("OTEL_ENABLED", false),
		Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		Insecure:    e.bool("OTEL_EXPORTER_OTLP_INSECURE", true),
		ServiceName: e.str("OTEL_SERVICE_NAME", "review-reply-backend"),
		SampleRatio: e.float("OTEL_TRACES_SAMPLER_ARG", 1),
	}
}

func (c Config) validateServer() error {
	var errs []error
	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic"))
	}
	if c.ReadTimeout <= 0 || c.ReadHeaderTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0 {
		errs = append(errs, errors.New("timeouts must be positive durations"))
	}
	if c.MaxHeaderBytes <= 0 {
		errs = append(errs, errors.New("MAX_HEADER_BYTES must be > 0"))
	}
	if c.HistoryPageMax < 1 {
		errs = append(errs, errors.New("HISTORY_PAGE_MAX must be >= 1"))
	}
	if c.RateRPS < 0 {
		errs = append(errs, errors.New("RATE_RPS must be >= 0"))
	}
	if c.RateBurst < 1 {
		errs = append(errs, errors.New("RATE_BURST must be >= 1"))
	}
	if c.Security.HSTSMaxAge < 0 {
		errs = append(errs, errors.New("HSTS_MAX_AGE must be >= 0"))
	}
	if c.IdempotencyTTL <= 0 {
		errs = append(errs, errors.New("IDEMPOTENCY_TTL must be > 0"))
	}
	return errors.Join(errs...)
}

func (q QuotaConfig) validate() error {
	var errs []error
	if q.DailyLimit < 1 {
		errs = append(errs, errors.New("DAILY_LIMIT must be >= 1"))
	}
	if _, err := time.LoadLocation(q.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("QUOTA_TIMEZONE %q is not a valid IANA time zone", q.Timezone))
	}
	switch q.Backend {
	case "sql":
	case "redis":
		if q.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when QUOTA_BACKEND=redis"))
		}
	default:
		errs = append(errs, errors.New("QUOTA_BACKEND must be one of: sql, redis"))
	}
	switch q.PrivilegePolicy {
	case "fail_closed", "fail_open":
	default:
		errs = append(errs, errors.New("PRIVILEGE_FAILURE_POLICY must be one of: fail_closed, fail_open"))
	}
	return errors.Join(errs...)
}

func (a AuthConfig) validate() error {
	switch a.Mode {
	case "none":
		return nil
	case "jwt":
		if a.JWTSecret == "" {
			return errors.New("AUTH_JWT_SECRET is required when AUTH_MODE=jwt")
		}
		return nil
	case "oidc":
		if a.OIDCIssuer == "" || a.OIDCAudience == "" {
			return errors.New("AUTH_OIDC_ISSUER and AUTH_OIDC_AUDIENCE are required when AUTH_MODE=oidc")
		}
		return nil
	}
	return errors.New("AUTH_MODE must be one of: none, jwt, oidc")
}

// validate does not require an API key: a missing key is reported per
// request as a configuration error so the rest of the API keeps working.
func (g GenerationConfig) validate() error {
	var errs []error
	switch g.Provider {
	case "gemini", "openai":
	default:
		errs = append(errs, errors.New("GENERATION_PROVIDER must be one of: gemini, openai"))
	}
	if g.UpstreamTimeout <= 0 {
		errs = append(errs, errors.New("UPSTREAM_TIMEOUT must be > 0"))
	}
	return errors.Join(errs...)
}

func (o OTELConfig) validate() error {
	if o.SampleRatio < 0 || o.SampleRatio > 1 {
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return nil
}

// Location returns the quota reference time zone. Load has already validated
// the name, so the UTC fallback only applies to hand-built configs.
func (q QuotaConfig) Location() *time.Location {
	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func defaultModel(provider string) string {
	if provider == "openai" {
		return "gpt-4o-mini"
	}
	return "gemini-2.0-flash"
}
