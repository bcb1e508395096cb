// Package app wires configuration, storage and services into an HTTP server.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aliuyar1234/feedbackiq/internal/ai"
	"github.com/aliuyar1234/feedbackiq/internal/ai/openai"
	"github.com/aliuyar1234/feedbackiq/internal/audit"
	"github.com/aliuyar1234/feedbackiq/internal/cache"
	"github.com/aliuyar1234/feedbackiq/internal/config"
	"github.com/aliuyar1234/feedbackiq/internal/db"
	"github.com/aliuyar1234/feedbackiq/internal/feedback"
	"github.com/aliuyar1234/feedbackiq/internal/guard"
	"github.com/aliuyar1234/feedbackiq/internal/ingest"
	"github.com/aliuyar1234/feedbackiq/internal/notify"
	"github.com/aliuyar1234/feedbackiq/internal/orgs"
	"github.com/aliuyar1234/feedbackiq/internal/projects"
	"github.com/aliuyar1234/feedbackiq/internal/stats"
)

// App holds the application state
type App struct {
	Config   *config.Config
	DB       *pgxpool.Pool
	Cache    cache.Cache
	Router   http.Handler
	Reporter *stats.Reporter

	server *http.Server
	redis  *cache.RedisCache
}

// Deps are the services the router dispatches to.
type Deps struct {
	Config        *config.Config
	Pool          *pgxpool.Pool
	Cache         cache.Cache
	Guard         *guard.Guard
	Orgs          *orgs.Service
	Invites       *orgs.Invites
	Projects      *projects.Service
	Feedback      *feedback.Service
	FeedbackStore *feedback.Store
	Pipeline      *ingest.Pipeline
	Stats         *stats.Service
	Reporter      *stats.Reporter
	Auditor       *audit.Writer
	AuditReader   *audit.Reader
}

// New creates and initializes a new application instance
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	setupLogger(cfg.LogLevel, cfg.IsDev())

	log.Info().Msg("Initializing FeedbackIQ application")
	log.Info().Interface("config", cfg.RedactedValues()).Msg("Configuration loaded")

	log.Info().Msg("Connecting to database...")
	pool, err := db.Connect(ctx, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info().Msg("Database connection established")

	if cfg.IsDev() {
		log.Info().Msg("Development mode: running migrations automatically")
		if err := db.RunMigrations(cfg.DBDSN); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	} else {
		log.Info().Msg("Production mode: run `feedbackiq admin migrate` to apply migrations")
	}

	a := &App{Config: cfg, DB: pool, Cache: cache.NopCache{}}
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to configure redis: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rc.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Msg("Redis unreachable at startup; cache and upload limits degrade until it recovers")
		}
		cancel()
		a.Cache, a.redis = rc, rc
	} else {
		log.Info().Msg("FIQ_REDIS_URL not set: stats cache disabled, upload limits are per process")
	}

	deps := NewDeps(cfg, pool, a.Cache)
	a.Router = NewRouter(deps)
	a.Reporter = deps.Reporter

	log.Info().Msg("Application initialized successfully")
	return a, nil
}

// NewDeps constructs every service from its collaborators.
func NewDeps(cfg *config.Config, pool *pgxpool.Pool, c cache.Cache) *Deps {
	aiSvc := newAIService(cfg)
	orgSvc := orgs.NewService(pool)
	feedbackStore := feedback.NewStore(pool)
	statsStore := stats.NewPGStore(pool)
	statsSvc := stats.NewService(statsStore, aiSvc, c, cfg.StatsCacheTTL())

	return &Deps{
		Config:        cfg,
		Pool:          pool,
		Cache:         c,
		Guard:         guard.New(orgSvc),
		Orgs:          orgSvc,
		Invites:       orgs.NewInvites(pool, newNotifier(cfg)),
		Projects:      projects.NewService(pool),
		Feedback:      feedback.NewService(feedbackStore, aiSvc, statsSvc),
		FeedbackStore: feedbackStore,
		Pipeline:      ingest.NewPipeline(aiSvc, feedbackStore, cfg.IngestDelay(), cfg.IngestWorkers),
		Stats:         statsSvc,
		Reporter:      stats.NewReporter(statsSvc, statsStore),
		Auditor:       audit.NewWriter(pool),
		AuditReader:   audit.NewReader(pool),
	}
}

// newAIService picks the classifier and narrator. Without an API key every
// feedback gets the fallback analysis.
func newAIService(cfg *config.Config) *ai.Service {
	if !cfg.AIEnabled() {
		log.Warn().Msg("FIQ_OPENAI_API_KEY not set: feedback will be stored with fallback classification")
		return ai.NewService(nil, nil, cfg.AITimeout())
	}
	provider := openai.NewProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	log.Info().Str("model", cfg.OpenAIModel).Msg("OpenAI classifier enabled")
	return ai.NewService(provider, provider, cfg.AITimeout())
}

func newNotifier(cfg *config.Config) notify.Notifier {
	if cfg.ResendAPIKey == "" {
		log.Info().Msg("FIQ_RESEND_API_KEY not set: invite links are logged instead of emailed")
		return notify.LogNotifier{BaseURL: cfg.BaseURL}
	}
	return notify.NewResendNotifier(cfg.ResendAPIKey, cfg.EmailFrom, cfg.BaseURL, cfg.NotifyTimeout())
}

// Start starts the HTTP server
func (a *App) Start() error {
	addr := a.Config.HTTPAddr
	log.Info().Str("addr", addr).Msg("Starting HTTP server")

	// Uploads classify row by row, so the write timeout is generous.
	a.server = &http.Server{
		Addr:              addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return a.server.ListenAndServe()
}

// Shutdown stops accepting requests, waits for in-flight ones and releases
// resources.
func (a *App) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down application")
	var err error
	if a.server != nil {
		err = a.server.Shutdown(ctx)
	}
	a.Close()
	return err
}

func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close redis client")
		}
	}
	if a.DB != nil {
		log.Info().Msg("Closing database connection")
		a.DB.Close()
	}
}

// setupLogger configures the global logger: console output in development,
// JSON lines otherwise.
func setupLogger(level string, dev bool) {
	if dev {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Debug().Str("level", level).Msg("Logger configured")
}
