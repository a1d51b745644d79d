package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tickbayes/internal/cfg"
	"tickbayes/internal/common"
	"tickbayes/internal/exchange/alphavantage"
	"tickbayes/internal/logging"
	"tickbayes/internal/metrics"
	"tickbayes/internal/pipeline"
	"tickbayes/internal/storage"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config file (overrides CONFIG_FILE)")
		source     = flag.String("source", "", "Data source: api, file, store (overrides config)")
		inputPath  = flag.String("input", "", "Intraday JSON file for -source file")
		outputPath = flag.String("output", "", "Output directory for reports")
		symbol     = flag.String("symbol", "", "Ticker symbol (overrides config)")
		logLevel   = flag.String("log-level", "", "Log level: trace, debug, info, warn, error")
		serve      = flag.Bool("serve", false, "Repeat runs every refresh interval and expose /metrics")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// flags win over file and environment
	if err := applyFlags(map[string]string{
		common.EnvConfigFile: *configPath,
		common.EnvSource:     *source,
		common.EnvInputPath:  *inputPath,
		common.EnvOutputPath: *outputPath,
		common.EnvSymbol:     *symbol,
		common.EnvLogLevel:   *logLevel,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply flags")
	}

	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	if err := logging.Setup(config.LogLevel, config.LogFile); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}

	log.Info().
		Str("symbol", config.Symbol).
		Str("interval", config.Interval).
		Str("source", config.Source).
		Str("policy", config.ParsePolicy).
		Str("order", config.SeriesOrder).
		Bool("serve", *serve).
		Msg("Starting tickbayes")

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	store := initializeStorage(config)
	if store != nil {
		defer store.Close()
	}

	loader, err := newLoader(config, store, mw)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create loader")
	}
	runner := pipeline.NewRunner(config.PipelineConfig(), mw)

	if !*serve {
		if err := runOnce(context.Background(), config, runner, loader, store); err != nil {
			log.Fatal().Err(err).Msg("Run failed")
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.MetricsPort != 0 {
		startMetricsServer(ctx, config)
	}
	serveLoop(ctx, config, runner, loader, store)
	log.Info().Msg("Shutdown complete")
}

func applyFlags(values map[string]string) error {
	for key, v := range values {
		if v == "" {
			continue
		}
		if err := os.Setenv(key, v); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return nil
}

// initializeStorage opens the store when DATA_PATH is configured. Only the
// store source requires it; other sources continue without persistence.
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		if c.Source == common.SourceStore {
			log.Fatal().Err(err).Str("path", c.DataPath).Msg("Failed to open store")
		}
		log.Warn().Err(err).Msg("storage initialization failed, continuing without persistence")
		return nil
	}
	log.Info().Str("path", c.DataPath).Msg("Storage initialized")
	return store
}

func newLoader(c cfg.Settings, store *storage.Store, mw *metrics.Wrapper) (pipeline.Loader, error) {
	switch c.Source {
	case common.SourceAPI:
		loader := &pipeline.APILoader{
			Fetcher: alphavantage.NewRESTWithMetrics(c.APIKey, c.BaseURL, c.RESTTimeout, mw),
			Symbol:  c.Symbol,
			Options: c.ParseOptions(),
		}
		if store != nil {
			loader.Saver = store
		}
		return loader, nil
	case common.SourceFile:
		return &pipeline.FileLoader{Path: c.InputPath, Options: c.ParseOptions()}, nil
	case common.SourceStore:
		if store == nil {
			return nil, errors.New("store source requires DATA_PATH")
		}
		return &pipeline.StoreLoader{Store: store, Symbol: c.Symbol}, nil
	default:
		return nil, fmt.Errorf("unknown source %q", c.Source)
	}
}

func runOnce(ctx context.Context, c cfg.Settings, runner *pipeline.Runner, loader pipeline.Loader, store *storage.Store) error {
	result, err := runner.RunFrom(ctx, loader)
	if err != nil {
		return err
	}

	if store != nil {
		record := storage.RunRecord{
			Symbol:         result.Symbol,
			Timestamp:      result.StartedAt,
			Observations:   len(result.Observations),
			Fallbacks:      result.Report.Fallbacks(),
			Inversions:     result.Inversions,
			Accuracy:       result.Accuracy,
			Baseline:       result.Baseline,
			MeanConfidence: result.MeanConfidence,
			Duration:       result.Duration,
		}
		if err := store.SaveRun(record); err != nil {
			log.Warn().Err(err).Msg("Failed to save run record")
		}
	}

	reporter := pipeline.NewReporter(result, c.OutputPath)
	if err := reporter.GenerateReport(); err != nil {
		return fmt.Errorf("failed to generate reports: %w", err)
	}
	reporter.PrintSummary(os.Stdout)

	log.Info().Str("output", c.OutputPath).Msg("Run completed successfully")
	return nil
}

// serveLoop runs immediately and then on every refresh tick until ctx is done.
// Failed runs are logged and counted; the loop keeps going.
func serveLoop(ctx context.Context, c cfg.Settings, runner *pipeline.Runner, loader pipeline.Loader, store *storage.Store) {
	ticker := time.NewTicker(c.RefreshInterval)
	defer ticker.Stop()

	for {
		if err := runOnce(ctx, c, runner, loader, store); err != nil {
			log.Error().Err(err).Msg("Run failed")
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("shutdown signal received")
			return
		case <-ticker.C:
		}
	}
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(ctx context.Context, c cfg.Settings) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", c.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown metrics server")
		}
	}()

	go func() {
		log.Info().Int("port", c.MetricsPort).Msg("Metrics server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}
