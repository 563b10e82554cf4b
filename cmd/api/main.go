// Package main is the entrypoint for the Recast API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/recast/recast/internal/auth"
	"github.com/recast/recast/internal/cache"
	"github.com/recast/recast/internal/config"
	"github.com/recast/recast/internal/generation"
	"github.com/recast/recast/internal/handler"
	"github.com/recast/recast/internal/jobs"
	"github.com/recast/recast/internal/metrics"
	"github.com/recast/recast/internal/repository"
	"github.com/recast/recast/internal/scraper"
	"github.com/recast/recast/internal/server"
	"github.com/recast/recast/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// Database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	if cfg.DatabaseAutoMigrate {
		if err := repo.Migrate(ctx); err != nil {
			logger.Error("failed to run migrations", slog.String("error", sanitizeError(err, cfg.DatabaseURL)))
			os.Exit(1)
		}
		logger.Info("database migrations applied")
	}

	// Cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	recorder := metrics.NewInMemory()

	// Content pipeline
	fetcher := scraper.New(
		scraper.NewHTTPClient(cfg.ScrapeTimeout, cfg.ScrapeAllowPrivate),
		logger,
		scraper.WithMaxBytes(cfg.ScrapeMaxBytes),
		scraper.WithCache(cacheClient, cfg.ScrapeCacheTTL),
		scraper.WithMetrics(recorder),
	)

	generator, err := buildGenerator(cfg, logger, recorder)
	if err != nil {
		logger.Error("failed to configure generation", "error", err)
		os.Exit(1)
	}
	if !generator.Configured() {
		// Requests fail with a configuration error until credentials are set.
		logger.Warn("generation provider has no credentials", "provider", generator.ProviderName())
	}

	publisher := jobs.NewPublisher(cacheClient.Client(), logger, recorder)
	jobRepo := repository.NewContentJobRepository(repo)

	repurposeService := service.NewRepurposeService(
		fetcher,
		generator,
		repo,
		publisher,
		logger,
		recorder,
		service.RepurposeConfig{
			MaxConcurrency:    cfg.GenerationMaxConcurrency,
			GenerationTimeout: cfg.GenerationTimeout,
			FreeMonthlyLimit:  cfg.FreePlanMonthlyLimit,
		},
	)
	accountService := service.NewAccountService(repo, logger, service.WithIdentityEvictor(cacheClient))

	// Identity
	sessions := auth.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL, cfg.SecureCookies())
	authenticator := auth.Chain{
		auth.NewSessionAuthenticator(sessions),
		auth.NewAPIKeyAuthenticator(repo, cacheClient, logger),
	}

	var google handler.GoogleProvider
	if oauth := auth.NewGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL(), cfg.SecureCookies()); oauth.Enabled() {
		google = oauth
		logger.Info("google sign-in enabled")
	}

	r := setupRouter(routerDeps{
		root:      handler.New(),
		health:    handler.NewHealthHandler(handler.Dependency{Name: "postgres", Checker: repo}, handler.Dependency{Name: "redis", Checker: cacheClient}),
		metrics:   handler.NewMetricsHandler(recorder),
		repurpose: handler.NewRepurposeHandler(repurposeService, logger),
		sessions:  handler.NewSessionHandler(accountService, sessions, google, logger),
		account:   handler.NewAccountHandler(accountService, accountService, jobRepo, cfg.FreePlanMonthlyLimit, logger),
		auth:      authenticator,
		limiter:   cacheClient,
		cfg:       cfg,
		logger:    logger,
	})

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Registered first, stopped last: in-flight requests may still publish jobs.
	if cfg.JobsWorkerEnabled {
		worker := jobs.NewWorker(cacheClient.Client(), jobRepo, logger, jobs.NewConsumerID(), recorder,
			jobs.WorkerConfig{BatchSize: cfg.JobsBatchSize})
		go func() {
			if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("content job worker exited", "error", err)
			}
		}()
		srv.OnShutdown("content job worker", worker.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"public_url", cfg.PublicURL,
		"env", cfg.AppEnv,
		"generation_provider", generator.ProviderName(),
		"generation_fallback", cfg.GenerationFallback,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// buildGenerator registers every provider and selects the configured one.
func buildGenerator(cfg *config.Config, logger *slog.Logger, recorder metrics.Recorder) (*generation.Client, error) {
	registry := generation.NewRegistry()
	registry.Register(generation.NewOpenAIProvider(generation.OpenAIConfig{
		APIKey:      cfg.OpenAIAPIKey,
		Model:       cfg.OpenAIModel,
		BaseURL:     cfg.OpenAIBaseURL,
		Temperature: 0.7,
	}))
	registry.Register(generation.NewHuggingFaceProvider(generation.HuggingFaceConfig{
		Token:    cfg.HuggingFaceToken,
		ModelURL: cfg.HuggingFaceModelURL,
	}))
	template := generation.NewTemplateProvider()
	registry.Register(template)

	provider, ok := registry.Get(cfg.GenerationProvider)
	if !ok {
		return nil, &generation.UnknownProviderError{Name: cfg.GenerationProvider, Known: registry.Names()}
	}

	opts := []generation.ClientOption{generation.WithRecorder(recorder)}
	if cfg.GenerationFallback && provider.Name() != template.Name() {
		opts = append(opts, generation.WithFallback(template))
		logger.Warn("generation fallback enabled; transient failures return template output flagged as degraded")
	}
	return generation.NewClient(provider, logger, opts...), nil
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "recast")
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
