package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"StockLens/internal/cleaner"
	"StockLens/internal/collector"
	"StockLens/internal/config"
	"StockLens/internal/fundamentals"
	"StockLens/internal/logging"
	"StockLens/internal/pipeline"
	"StockLens/internal/recorder"
	"StockLens/internal/report"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code: 0 ok, 1 failure, 2 usage, 3 no data.
func run() int {
	ticker := flag.String("ticker", "", "ticker symbol, e.g. 7203.T or ^N225")
	cfgPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	if *ticker == "" {
		fmt.Fprintln(os.Stderr, "usage: snapshot -ticker 7203.T [-config path]")
		return 2
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	logger := logging.NewLogger(cfg.Log.Level)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("config validation")
		return 1
	}

	fetcher, err := collector.NewFetcher(cfg.DataSource.Provider, cfg.DataSource.BaseURL, cfg.DataSource.APIKey,
		collector.WithProxy(cfg.Proxy),
		collector.WithTimeout(cfg.DataSource.Timeout),
		collector.WithLogger(logger),
	)
	if err != nil {
		logger.Error().Err(err).Msg("init fetcher")
		return 1
	}

	var store recorder.SnapshotStore = recorder.NewNoopStore()
	if cfg.Database.SQLitePath != "" {
		ss, err := recorder.NewSQLiteStore(cfg.Database.SQLitePath, logger)
		if err != nil {
			logger.Error().Err(err).Msg("open sqlite store")
			return 1
		}
		defer ss.Close()
		store = ss
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := pipeline.NewService(fetcher, store, fundamentals.NewNormalizer(cfg.Location(), logger), nil, logger)
	svc.Range = cfg.DataSource.Range

	res, err := svc.Run(ctx, *ticker)
	if err != nil {
		if errors.Is(err, cleaner.ErrNoData) {
			fmt.Fprintf(os.Stderr, "%s: no data found\n", *ticker)
			return 3
		}
		logger.Error().Err(err).Msg("snapshot failed")
		return 1
	}

	fmt.Print(report.FormatRunSummary(res))

	groups, err := pipeline.GroupRanking(pipeline.ToRankedVolumes(res.Summary.VolumeRanking))
	if err == nil {
		fmt.Printf("\nVolume spike windows:\n%s\n", report.FormatSpikeGroups(groups))
	}
	return 0
}
