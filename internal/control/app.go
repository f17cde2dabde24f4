package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pressly/goose/v3"

	"github.com/vietddude/pollster/internal/core/config"
	"github.com/vietddude/pollster/internal/core/worker"
	"github.com/vietddude/pollster/internal/extraction"
	"github.com/vietddude/pollster/internal/fetching"
	"github.com/vietddude/pollster/internal/health"
	"github.com/vietddude/pollster/internal/infra/images"
	"github.com/vietddude/pollster/internal/infra/llm"
	"github.com/vietddude/pollster/internal/infra/quota"
	redisclient "github.com/vietddude/pollster/internal/infra/redis"
	"github.com/vietddude/pollster/internal/infra/scraper"
	"github.com/vietddude/pollster/internal/infra/storage"
	"github.com/vietddude/pollster/internal/infra/storage/memory"
	"github.com/vietddude/pollster/internal/infra/storage/postgres"
	"github.com/vietddude/pollster/internal/polling"
	"github.com/vietddude/pollster/internal/retry"
	"github.com/vietddude/pollster/internal/server"
)

// App is the main application struct that manages the API lifecycle.
type App struct {
	cfg    config.AppConfig
	server *server.Server
	db     *postgres.DB
	cache  *redisclient.Client
	pruner *worker.Pruner
	log    *slog.Logger
}

// NewApp creates the application with all dependencies initialized.
func NewApp(cfg config.AppConfig) (*App, error) {

	// 1. Initialize Storage
	var productRepo storage.ProductRepository
	var runRepo storage.PollRunRepository
	var db *postgres.DB

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		// Run migrations. Goose needs the raw *sql.DB which sqlx wraps.
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		productRepo = postgres.NewProductRepo(db)
		runRepo = postgres.NewPollRunRepo(db)
		slog.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewMemoryStorage()
		productRepo = memory.NewProductRepo(store)
		runRepo = memory.NewPollRunRepo(store)
		slog.Info("Using Memory storage")
	}

	// 2. Initialize Product Cache
	var cache *redisclient.Client
	if cfg.Redis.URL != "" {
		c, err := redisclient.NewClient(cfg.Redis, cfg.Fetching.CacheTTL.Std())
		if err != nil {
			slog.Warn("Failed to connect to Redis, product cache disabled", "error", err)
		} else {
			cache = c
			slog.Info("Product cache enabled")
		}
	}

	// 3. Initialize Completion Provider
	provider, err := llm.NewProvider(cfg.LLM.Provider, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to init llm provider: %w", err)
	}

	// 4. Initialize Quota Tracking
	limits := make(map[string]int)
	if cfg.LLM.DailyQuota > 0 {
		limits[provider.Name()] = cfg.LLM.DailyQuota
	}
	if cfg.Scraper.DailyQuota > 0 {
		limits["scraper"] = cfg.Scraper.DailyQuota
	}
	tracker := quota.NewTracker(limits)

	// 5. Initialize Service Clients
	llmClient := llm.NewClient(provider, cfg.LLM.Retry.Policy(config.DefaultLLMRetry), tracker)
	// Extraction answers a request the caller is waiting on, so it backs
	// off on the interactive schedule rather than the generative one.
	extractClient := llm.NewClient(provider, cfg.LLM.Retry.Policy(retry.InteractivePolicy), tracker)

	scraperPolicy := cfg.Scraper.Retry.Policy(config.DefaultScraperRetry)
	scrapeClient := scraper.NewClient(
		cfg.Scraper.BaseURL,
		cfg.Scraper.APIKey,
		cfg.Scraper.Marketplace,
		scraperPolicy,
		tracker,
	)
	imageFetcher := images.NewFetcher(cfg.Fetching.ImageTimeout.Std())

	// 6. Initialize Feature Services
	simulator := polling.NewSimulator(llmClient, imageFetcher, runRepo, polling.Config{
		Respondents: cfg.Polling.Respondents,
		Samples:     cfg.Polling.Samples,
	})
	extractor := extraction.NewExtractor(extractClient)
	fetcher := fetching.NewFetcher(scrapeClient, imageFetcher, cache, productRepo, fetching.Config{
		ItemDelay: cfg.Fetching.ItemDelay.Std(),
	})

	// 7. Initialize Health Monitor
	var dbPinger health.DBPinger
	if db != nil {
		dbPinger = db
	}
	var cachePinger health.CachePinger
	if cache != nil {
		cachePinger = cache
	}
	monitor := health.NewMonitor(
		health.Credentials{
			LLMKeyLen:     len(cfg.LLM.APIKey),
			ScraperKeyLen: len(cfg.Scraper.APIKey),
		},
		dbPinger,
		cachePinger,
		tracker,
		[]string{provider.Name(), "scraper"},
	)

	// 8. Initialize Background Workers
	var pruner *worker.Pruner
	if cfg.Fetching.Retention > 0 {
		pruner = worker.NewPruner(cfg.Fetching.Retention.Std(), productRepo)
	}

	// 9. Initialize HTTP Server
	srv := server.NewServer(cfg.Server.Port, cfg.Server.RequestTimeout.Std(), server.Deps{
		Polls:     simulator,
		Extractor: extractor,
		Fetcher:   fetcher,
		Images:    imageFetcher,
		Products:  productRepo,
		Runs:      runRepo,
		Monitor:   monitor,
	})

	return &App{
		cfg:    cfg,
		server: srv,
		db:     db,
		cache:  cache,
		pruner: pruner,
		log:    slog.Default(),
	}, nil
}

// Start starts the API server and background workers.
func (a *App) Start(ctx context.Context) error {
	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}
	if a.pruner != nil {
		go a.pruner.Start(ctx)
	}

	go func() {
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("HTTP server failed", "error", err)
		}
	}()

	return nil
}

// Stop drains the server, then releases storage connections.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping pollster...")

	err := a.server.Stop(ctx)

	if a.cache != nil {
		if cerr := a.cache.Close(); cerr != nil {
			a.log.Warn("Failed to close Redis", "error", cerr)
		}
	}
	if a.db != nil {
		if cerr := a.db.Close(); cerr != nil {
			a.log.Warn("Failed to close database", "error", cerr)
		}
	}
	return err
}
