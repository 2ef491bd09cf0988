package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elanleads/go-scrape-leads/config"
	"github.com/elanleads/go-scrape-leads/crawler"
	"github.com/elanleads/go-scrape-leads/export"
	"github.com/elanleads/go-scrape-leads/fetch"
	"github.com/elanleads/go-scrape-leads/models"
	"github.com/elanleads/go-scrape-leads/phone"
	"github.com/elanleads/go-scrape-leads/sink"
	"github.com/elanleads/go-scrape-leads/sites"
)

// dedupeCacheSize bounds the in-run phone set used to skip duplicates
// before they reach the store.
const dedupeCacheSize = 8192

func main() {
	if err := config.LoadDotenv(); err != nil {
		fmt.Fprintf(os.Stderr, "load environment: %v\n", err)
		os.Exit(1)
	}

	defaultCfg := config.DefaultConfig()
	siteDefault := defaultCfg.Site
	if value, ok := config.EnvString("SCRAPER_SITE"); ok {
		siteDefault = value
	}
	pagesDefault := defaultCfg.MaxPages
	if value, ok, err := config.EnvInt("SCRAPER_PAGES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_PAGES: %v\n", err)
		os.Exit(1)
	} else if ok {
		pagesDefault = value
	}
	listingsDefault := defaultCfg.MaxListings
	if value, ok, err := config.EnvInt("SCRAPER_LISTINGS"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_LISTINGS: %v\n", err)
		os.Exit(1)
	} else if ok {
		listingsDefault = value
	}
	concurrentDefault := defaultCfg.MaxConcurrent
	if value, ok, err := config.EnvInt("SCRAPER_CONCURRENT"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid SCRAPER_CONCURRENT: %v\n", err)
		os.Exit(1)
	} else if ok {
		concurrentDefault = value
	}
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("SCRAPER_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("SCRAPER_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	site := flag.String("site", siteDefault, "Site to scrape: tezbazar.az, unvan.az, or emlak.az")
	maxPages := flag.Int("pages", pagesDefault, "Maximum catalog pages to crawl (0 = unlimited)")
	maxListings := flag.Int("listings", listingsDefault, "Maximum listings to process (0 = unlimited)")
	maxConcurrent := flag.Int("concurrent", concurrentDefault, "Maximum in-flight HTTP requests")
	delayMs := flag.Int("delay", int(defaultCfg.RequestDelay/time.Millisecond), "Delay between listing dispatches (milliseconds)")
	maxRetries := flag.Int("max-attempts", defaultCfg.RetryMaxAttempts, "Attempts per request, including the first")
	retryBackoffMs := flag.Int("retry-backoff", int(defaultCfg.RetryBaseDelay/time.Millisecond), "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", int(defaultCfg.RetryMaxDelay/time.Millisecond), "Maximum retry backoff (milliseconds)")
	timeoutSec := flag.Int("timeout", int(defaultCfg.FetchTimeout/time.Second), "Per-attempt HTTP timeout (seconds)")
	outputFile := flag.String("output", outputDefault, "Output file path")
	outputFormat := flag.String("format", defaultCfg.OutputFormat, "Output format: csv, json, dual, or none")
	strict := flag.Bool("strict-phones", false, "Reject phone candidates containing separators; the default strips separators before validating")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaultCfg
	cfg.Site = *site
	cfg.MaxPages = *maxPages
	cfg.MaxListings = *maxListings
	cfg.MaxConcurrent = *maxConcurrent
	cfg.RequestDelay = time.Duration(*delayMs) * time.Millisecond
	cfg.FetchTimeout = time.Duration(*timeoutSec) * time.Second
	cfg.RetryMaxAttempts = *maxRetries
	cfg.RetryBaseDelay = time.Duration(*retryBackoffMs) * time.Millisecond
	cfg.RetryMaxDelay = time.Duration(*retryBackoffMaxMs) * time.Millisecond
	cfg.OutputFile = *outputFile
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose
	cfg.DatabaseURL = config.DatabaseURLFromEnv()

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	parser, err := sites.ForSite(models.SiteID(cfg.Site))
	if err != nil {
		slog.Error("unknown site", slog.String("site", cfg.Site), slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight work to finish")
	}()

	slog.Info("starting crawl",
		slog.String("site", cfg.Site),
		slog.Int("pages", cfg.MaxPages),
		slog.Int("listings", cfg.MaxListings),
		slog.Int("concurrent", cfg.MaxConcurrent),
	)

	writer, err := export.NewWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	store, err := buildSink(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("initialising lead store", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	metrics := crawler.NewMetrics()
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	fetcher := fetch.NewFetcher(
		fetch.NewLimiter(cfg.MaxConcurrent),
		fetch.Options{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			MaxDelay:    cfg.RetryMaxDelay,
			Timeout:     cfg.FetchTimeout,
			UserAgent:   cfg.UserAgent,
		},
		metrics,
	)

	ctrl := crawler.NewController(cfg, parser, fetcher, phone.Validator{Strict: *strict}, store, writer, metrics)

	stats, err := ctrl.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("crawl failed", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.OutputFormat != "none" && stats.InsertedCount > 0 {
		if err := writer.Validate(); err != nil {
			slog.Error("output validation failed", slog.Any("error", err))
			os.Exit(1)
		}
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(stats, cfg.OutputFile)
}

// buildSink picks the persistence backend: Postgres behind an in-run
// dedupe cache when a DSN is configured, otherwise the dedupe cache alone.
func buildSink(ctx context.Context, dsn string) (sink.Sink, error) {
	var base sink.Sink = sink.Null{}
	if dsn != "" {
		pg, err := sink.NewPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		base = pg
	} else {
		slog.Warn("no database configured, leads go to output files only")
	}
	return sink.NewDeduper(base, dedupeCacheSize)
}

func printSummary(stats *models.CrawlStats, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Crawl complete")

	fmt.Printf("  Pages:         %d\n", stats.PagesProcessed)
	fmt.Printf("  Listings:      %d found, %d resolved, %d skipped\n",
		stats.ListingsFound, stats.ResolvedCount, stats.SkippedCount)
	fmt.Printf("  Phones:        %d valid, %d invalid, %d missing\n",
		stats.ValidCount, stats.InvalidCount, stats.MissingPhone)
	fmt.Printf("  Leads:         %d inserted, %d duplicates, %d errors\n",
		stats.InsertedCount, stats.DuplicateCount, stats.PersistErrors)
	if len(stats.InvalidSamples) > 0 {
		fmt.Println("  Rejected samples:")
		for _, sample := range stats.InvalidSamples {
			fmt.Printf("    %-20q %s (%s)\n", sample.Raw, sample.Reason, sample.URL)
		}
	}
	fmt.Printf("  Duration:      %v\n", stats.EndTime.Sub(stats.StartTime).Round(time.Millisecond))
	fmt.Printf("  Output file:   %s\n", outputFile)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
