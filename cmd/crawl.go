package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	gcp "cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sikbang/recipe-harvester/internal/api"
	"github.com/sikbang/recipe-harvester/internal/catalog"
	"github.com/sikbang/recipe-harvester/internal/clock/system"
	"github.com/sikbang/recipe-harvester/internal/config"
	"github.com/sikbang/recipe-harvester/internal/crawler"
	"github.com/sikbang/recipe-harvester/internal/dispatcher"
	"github.com/sikbang/recipe-harvester/internal/extractor"
	"github.com/sikbang/recipe-harvester/internal/fetcher"
	"github.com/sikbang/recipe-harvester/internal/fetcher/headless"
	"github.com/sikbang/recipe-harvester/internal/id/uuid"
	"github.com/sikbang/recipe-harvester/internal/metrics"
	pubsubpublisher "github.com/sikbang/recipe-harvester/internal/publisher/pubsub"
	"github.com/sikbang/recipe-harvester/internal/storage"
	"github.com/sikbang/recipe-harvester/internal/storage/gcs"
	"github.com/sikbang/recipe-harvester/internal/storage/local"
	"github.com/sikbang/recipe-harvester/internal/store"
	"github.com/sikbang/recipe-harvester/internal/worker"
)

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Runs a full harvest over every filter combination",
		Long: `Enumerates the cross product of the four category filters, fans the
resulting work units out to the worker pool and merges every scraped
recipe into the configured store. The run resumes ID numbering from
whatever the store already holds.`,
		RunE: runCrawl,
	}
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()
	stats := &crawler.RunStats{}
	clock := system.New()
	sleeper := system.NewSleeper()

	headers := buildHeaders(cfg)
	transport, closeTransport, err := buildTransport(cfg, headers, logger)
	if err != nil {
		return err
	}
	defer closeTransport()

	fetch := fetcher.New(transport, sleeper, stats, fetcher.Config{
		MaxAttempts: cfg.HTTP.MaxAttempts,
		BackoffMin:  cfg.BackoffMin(),
		BackoffMax:  cfg.BackoffMax(),
		EmptyMarker: cfg.Site.EmptyMarker,
	}, logger)

	w := worker.New(fetch, extractor.New(cfg.Site.BaseURL), sleeper, stats, worker.Config{
		BaseURL:      cfg.Site.BaseURL,
		PageSize:     cfg.Site.PageSize,
		DetailPause:  cfg.DetailPause(),
		ListingPause: cfg.ListingPause(),
	}, logger)

	backend, err := buildBackend(ctx, cfg)
	if err != nil {
		return err
	}
	merger := store.NewMerger(backend, logger)
	defer func() {
		if cerr := merger.Close(); cerr != nil {
			logger.Warn("close store failed", zap.Error(cerr))
		}
	}()

	publisher, closePublisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePublisher(logger)

	d := dispatcher.New(w, merger, publisher, stats, uuid.New(), clock, dispatcher.Config{
		Workers: cfg.Crawl.Workers,
		Topic:   cfg.PubSub.TopicName,
	}, logger)

	shutdownServer := startServer(cfg, d, logger)
	defer shutdownServer()

	units := catalog.Enumerate(catalog.Default())
	report, runErr := d.Run(ctx, units)
	logReport(logger, report)

	if archiveErr := archiveReport(ctx, cfg, report, logger); archiveErr != nil {
		logger.Warn("archive run report failed", zap.Error(archiveErr))
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run harvest: %w", runErr)
	}
	return nil
}

func buildHeaders(cfg config.Config) http.Header {
	headers := make(http.Header)
	for k, v := range cfg.HTTP.Headers {
		headers.Set(k, v)
	}
	headers.Set("User-Agent", cfg.HTTP.UserAgent)
	return headers
}

// buildTransport assembles the HTTP transport, optionally wrapping the
// colly client with the headless promotion layer.
func buildTransport(cfg config.Config, headers http.Header, logger *zap.Logger) (crawler.Transport, func(), error) {
	fast := fetcher.NewCollyTransport(fetcher.CollyConfig{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.HTTPTimeout(),
		Headers:   headers,
	})
	if !cfg.Headless.Enabled {
		return fast, func() {}, nil
	}

	rendered, err := headless.New(headless.Config{
		MaxParallel:       cfg.Headless.MaxParallel,
		UserAgent:         cfg.HTTP.UserAgent,
		Headers:           headers,
		NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("headless transport init: %w", err)
	}
	promoting := fetcher.NewPromoting(fast, rendered, fetcher.PromoteConfig{
		MinHTMLBytes: cfg.Headless.MinHTMLBytes,
		Keywords:     cfg.Headless.Keywords,
	}, logger)
	return promoting, rendered.Close, nil
}

func buildBackend(ctx context.Context, cfg config.Config) (store.Backend, error) {
	switch cfg.Store.Backend {
	case "csv":
		return store.NewCSVBackend(cfg.Store.CSV)
	case "sqlite":
		return store.NewSQLiteBackend(cfg.Store.SQLite)
	case "postgres":
		return store.NewPostgresBackend(ctx, cfg.Store.Postgres)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func buildPublisher(ctx context.Context, cfg config.Config) (crawler.Publisher, func(*zap.Logger), error) {
	if !cfg.PubSub.Enabled {
		return nil, func(*zap.Logger) {}, nil
	}
	client, err := gcp.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	pub, err := pubsubpublisher.New(client)
	if err != nil {
		return nil, nil, err
	}
	return pub, func(logger *zap.Logger) {
		if cerr := pub.Close(); cerr != nil {
			logger.Warn("close publisher failed", zap.Error(cerr))
		}
	}, nil
}

// startServer exposes health, metrics and progress while the run is live.
// The returned function shuts the server down.
func startServer(cfg config.Config, d *dispatcher.Dispatcher, logger *zap.Logger) func() {
	if !cfg.Server.Enabled {
		return func() {}
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(d, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("progress server failed", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("progress server shutdown failed", zap.Error(err))
		}
	}
}

// archiveReport persists the run report to the configured blob store, plus
// a copy of the CSV outputs when the CSV backend is active.
func archiveReport(ctx context.Context, cfg config.Config, report dispatcher.Report, logger *zap.Logger) error {
	provider, err := buildArchive(ctx, cfg)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	prefix := path.Join(cfg.Archive.Prefix, report.RunID)
	if err := provider.Save(ctx, path.Join(prefix, "report.json"), data); err != nil {
		return fmt.Errorf("save report: %w", err)
	}

	if cfg.Store.Backend == "csv" {
		for _, p := range []string{cfg.Store.CSV.RecipesPath, cfg.Store.CSV.ReviewsPath} {
			content, readErr := os.ReadFile(p)
			if readErr != nil {
				logger.Warn("read output for archive failed", zap.String("path", p), zap.Error(readErr))
				continue
			}
			if err := provider.Save(ctx, path.Join(prefix, path.Base(p)), content); err != nil {
				return fmt.Errorf("save output %s: %w", p, err)
			}
		}
	}
	return nil
}

func buildArchive(ctx context.Context, cfg config.Config) (storage.Provider, error) {
	switch cfg.Archive.Backend {
	case "none":
		return &storage.NoOpProvider{}, nil
	case "local":
		return local.New(local.Config{BaseDir: cfg.Archive.BaseDir})
	case "gcs":
		client, err := cloudstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("storage client: %w", err)
		}
		return gcs.New(client, gcs.Config{Bucket: cfg.Archive.GCSBucket})
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Archive.Backend)
	}
}

func logReport(logger *zap.Logger, report dispatcher.Report) {
	logger.Info("run finished",
		zap.String("run_id", report.RunID),
		zap.Duration("elapsed", report.Elapsed),
		zap.Int64("units_total", report.UnitsTotal),
		zap.Int64("units_completed", report.UnitsCompleted),
		zap.Int64("units_empty", report.UnitsEmpty),
		zap.Int64("recipes_merged", report.RecipesMerged),
		zap.Int64("reviews_merged", report.ReviewsMerged),
		zap.Int64("fetch_attempts", report.FetchAttempts),
		zap.Int64("fetch_retries", report.FetchRetries),
		zap.Int64("fetch_empties", report.FetchEmpties),
		zap.Int64("pages_skipped", report.PagesSkipped),
		zap.Int64("items_skipped", report.ItemsSkipped),
	)
}
