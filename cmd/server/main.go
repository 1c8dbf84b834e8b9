package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"StockLens/internal/api"
	"StockLens/internal/catalog"
	"StockLens/internal/collector"
	"StockLens/internal/config"
	"StockLens/internal/fundamentals"
	"StockLens/internal/logging"
	"StockLens/internal/metrics"
	"StockLens/internal/pipeline"
	"StockLens/internal/recorder"
	"StockLens/internal/scheduler"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logging.NewLogger("info").Fatal().Err(err).Msg("load config")
	}

	logger := logging.NewLogger(cfg.Log.Level)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("config validation")
	}
	logger.Info().Str("config", cfgPath).Msg("StockLens starting")

	// Init fetcher
	fetcher, err := collector.NewFetcher(cfg.DataSource.Provider, cfg.DataSource.BaseURL, cfg.DataSource.APIKey,
		collector.WithProxy(cfg.Proxy),
		collector.WithTimeout(cfg.DataSource.Timeout),
		collector.WithRateLimit(cfg.DataSource.RateLimit),
		collector.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("init fetcher")
	}
	logger.Info().Str("source", fetcher.Name()).Msg("data source ready")

	// Init snapshot store
	var store recorder.SnapshotStore
	if cfg.Database.SQLitePath != "" {
		ss, err := recorder.NewSQLiteStore(cfg.Database.SQLitePath, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("init sqlite store failed, using noop")
			store = recorder.NewNoopStore()
		} else {
			store = ss
			defer ss.Close()
		}
	} else {
		store = recorder.NewNoopStore()
	}

	// Load catalog
	cat, err := catalog.Load(cfg.Catalog.CSVPath)
	if err != nil {
		logger.Warn().Err(err).Msg("load catalog failed, using default")
		cat = catalog.Default()
	}
	logger.Info().Int("stocks", len(cat.Stocks)).Msg("catalog loaded")

	// Init pipeline
	m := metrics.New()
	normalizer := fundamentals.NewNormalizer(cfg.Location(), logger)
	svc := pipeline.NewService(fetcher, store, normalizer, m, logger)
	svc.Range = cfg.DataSource.Range

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init scheduler
	watchlist := func() []string {
		if len(cfg.Refresh.Tickers) > 0 {
			return cfg.Refresh.Tickers
		}
		return cat.Tickers()
	}
	sched := scheduler.NewScheduler(ctx, svc, watchlist, logger)
	if err := sched.Register(cfg.Refresh.Cron); err != nil {
		logger.Fatal().Err(err).Msg("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	if cfg.Refresh.RunOnStart {
		logger.Info().Msg("RUN_ON_START enabled, refreshing watchlist now")
		go sched.RefreshAll()
	}

	// Start API server
	srv := api.NewServer(cfg.Server.Port, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, logger)
	srv.SetupRoutes(api.NewHandlers(svc, store, func() *catalog.Catalog { return cat }, m.Handler(), logger))
	srv.Start()

	logger.Info().Msg("StockLens is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutdown signal received, stopping...")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
	}
	logger.Info().Msg("StockLens stopped")
}
