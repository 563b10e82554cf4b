// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// MinSessionSecretLength is the shortest accepted HS256 signing secret.
const MinSessionSecretLength = 32

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`
	// PublicURL is where browsers reach the service.
	PublicURL string `env:"PUBLIC_URL" envDefault:"http://localhost:8080"`

	// Database (PostgreSQL)
	DatabaseURL         string `env:"DATABASE_URL,required,notEmpty"`
	DatabaseAutoMigrate bool   `env:"DATABASE_AUTO_MIGRATE" envDefault:"false"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required,notEmpty"`

	// Sessions
	SessionSecret string        `env:"SESSION_SECRET,required,notEmpty"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"168h"`

	// Google sign-in; disabled unless both credentials are set.
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL"`

	// Generation. Credentials are checked per request, not at startup.
	GenerationProvider       string        `env:"GENERATION_PROVIDER" envDefault:"openai"`
	GenerationFallback       bool          `env:"GENERATION_FALLBACK" envDefault:"false"`
	GenerationTimeout        time.Duration `env:"GENERATION_TIMEOUT" envDefault:"60s"`
	GenerationMaxConcurrency int           `env:"GENERATION_MAX_CONCURRENCY" envDefault:"3"`
	OpenAIAPIKey             string        `env:"OPENAI_API_KEY"`
	OpenAIModel              string        `env:"OPENAI_MODEL" envDefault:"gpt-4o"`
	OpenAIBaseURL            string        `env:"OPENAI_BASE_URL"`
	HuggingFaceToken         string        `env:"HUGGINGFACE_API_TOKEN"`
	HuggingFaceModelURL      string        `env:"HUGGINGFACE_MODEL_URL"`

	// Scraping
	ScrapeTimeout      time.Duration `env:"SCRAPE_TIMEOUT" envDefault:"15s"`
	ScrapeMaxBytes     int64         `env:"SCRAPE_MAX_BYTES" envDefault:"5242880"`
	ScrapeCacheTTL     time.Duration `env:"SCRAPE_CACHE_TTL" envDefault:"10m"`
	ScrapeAllowPrivate bool          `env:"SCRAPE_ALLOW_PRIVATE_NETWORKS" envDefault:"false"` // development only

	// Plans; 0 disables the free plan quota.
	FreePlanMonthlyLimit int64 `env:"FREE_PLAN_MONTHLY_LIMIT" envDefault:"0"`

	// Content job pipeline
	JobsWorkerEnabled bool `env:"JOBS_WORKER_ENABLED" envDefault:"true"`
	JobsBatchSize     int  `env:"JOBS_BATCH_SIZE" envDefault:"100"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts. WriteTimeout must cover a full generation fan-out.
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"90s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting
	RateLimitUserEnabled bool `env:"RATE_LIMIT_USER_ENABLED" envDefault:"true"`
	RateLimitAuthEnabled bool `env:"RATE_LIMIT_AUTH_ENABLED" envDefault:"true"`
	RateLimitAuthRPS     int  `env:"RATE_LIMIT_AUTH_RPS" envDefault:"1"`
	RateLimitAuthBurst   int  `env:"RATE_LIMIT_AUTH_BURST" envDefault:"5"`

	// Take the client IP from X-Forwarded-For / X-Real-IP / True-Client-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://recast.app,https://*.recast.app")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 256KiB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"262144"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(strings.ToLower(c.PublicURL), "https://")
}

// GoogleCallbackURL returns the OAuth redirect URL, derived from
// PublicURL unless set explicitly.
func (c *Config) GoogleCallbackURL() string {
	if c.GoogleRedirectURL != "" {
		return c.GoogleRedirectURL
	}
	return strings.TrimRight(c.PublicURL, "/") + "/api/auth/google/callback"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

var (
	validProviders  = []string{"openai", "huggingface", "template"}
	validLogFormats = []string{"json", "text"}
)

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	var errs []error
	if len(c.SessionSecret) < MinSessionSecretLength {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes", MinSessionSecretLength))
	}
	if !slices.Contains(validProviders, strings.ToLower(c.GenerationProvider)) {
		errs = append(errs, fmt.Errorf("GENERATION_PROVIDER must be one of %s", strings.Join(validProviders, ", ")))
	}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be one of %s", strings.Join(validLogFormats, ", ")))
	}
	if c.GenerationMaxConcurrency < 1 {
		errs = append(errs, errors.New("GENERATION_MAX_CONCURRENCY must be positive"))
	}
	if c.ScrapeMaxBytes <= 0 {
		errs = append(errs, errors.New("SCRAPE_MAX_BYTES must be positive"))
	}
	if c.ScrapeAllowPrivate && c.IsProduction() {
		errs = append(errs, errors.New("SCRAPE_ALLOW_PRIVATE_NETWORKS must be false in production"))
	}
	if c.FreePlanMonthlyLimit < 0 {
		errs = append(errs, errors.New("FREE_PLAN_MONTHLY_LIMIT must not be negative"))
	}
	return errors.Join(errs...)
}

// Load parses environment variables and returns a validated Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
