// Package pipeline runs one ticker through fetch, clean, indicators, statistics,
// fundamentals and persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"StockLens/internal/calculator"
	"StockLens/internal/cleaner"
	"StockLens/internal/collector"
	"StockLens/internal/fundamentals"
	"StockLens/internal/logging"
	"StockLens/internal/metrics"
	"StockLens/internal/model"
	"StockLens/internal/recorder"
)

// ErrPersist wraps snapshot store failures.
var ErrPersist = errors.New("persist snapshot")

// ErrEmptyTicker is returned when Run is called without a ticker.
var ErrEmptyTicker = errors.New("ticker not provided")

// FetchError reports a failure of the market-data collaborator. It is distinct from
// cleaner.ErrNoData, which means the fetch succeeded but returned nothing usable.
type FetchError struct {
	Ticker string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Ticker, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Service wires the pipeline stages to their collaborators.
type Service struct {
	fetcher    collector.Fetcher
	store      recorder.SnapshotStore
	normalizer *fundamentals.Normalizer
	metrics    *metrics.Recorder
	logger     *logging.Logger

	// Range is the history window passed to the fetcher.
	Range string
}

// NewService creates a Service. A nil store means nothing is persisted; nil metrics
// disables instrumentation.
func NewService(fetcher collector.Fetcher, store recorder.SnapshotStore, normalizer *fundamentals.Normalizer, m *metrics.Recorder, logger *logging.Logger) *Service {
	if store == nil {
		store = recorder.NewNoopStore()
	}
	if logger == nil {
		logger = logging.NewSilentLogger()
	}
	if normalizer == nil {
		normalizer = fundamentals.NewNormalizer(nil, logger)
	}
	return &Service{
		fetcher:    fetcher,
		store:      store,
		normalizer: normalizer,
		metrics:    m,
		logger:     logger,
		Range:      collector.DefaultRange,
	}
}

// Run executes one full pass for ticker. The snapshot table for the ticker is replaced
// before the result is returned.
func (s *Service) Run(ctx context.Context, ticker string) (*Result, error) {
	ticker = strings.TrimSpace(ticker)
	if ticker == "" {
		return nil, ErrEmptyTicker
	}

	start := time.Now()
	runID := uuid.New().String()
	log := s.logger.WithTicker(ticker)
	log.Info().Str("run_id", runID).Str("source", s.fetcher.Name()).Msg("pipeline run started")

	res, err := s.run(ctx, runID, ticker, log)
	s.recordRun(start, err)
	if err != nil {
		log.Warn().Str("run_id", runID).Err(err).Msg("pipeline run failed")
		return nil, err
	}

	log.Info().
		Str("run_id", runID).
		Int("rows", res.Series.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("pipeline run finished")
	return res, nil
}

func (s *Service) run(ctx context.Context, runID, ticker string, log *logging.Logger) (*Result, error) {
	frame, err := s.fetcher.FetchDailyFrame(ctx, ticker, s.Range)
	if err != nil {
		return nil, &FetchError{Ticker: ticker, Err: err}
	}
	if frame != nil && frame.Ticker == "" {
		frame.Ticker = ticker
	}

	series, err := cleaner.Clean(frame)
	if err != nil {
		return nil, fmt.Errorf("clean %s: %w", ticker, err)
	}

	summary, err := calculator.ExtractStats(series)
	if err != nil {
		return nil, fmt.Errorf("extract stats: %w", err)
	}

	fund := s.fundamentals(ctx, ticker, log)
	rows := calculator.ComputeIndicators(series)

	if err := s.store.Write(ticker, series, rows); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPersist, ticker, err)
	}
	if s.metrics != nil {
		s.metrics.RecordRowsPersisted(s.fetcher.Name(), series.Len())
	}

	res := buildResult(runID, series, rows, summary, fund.snapshot)
	res.FieldFailures = fund.failed
	return res, nil
}

type fundamentalsOutcome struct {
	snapshot *model.FundamentalsSnapshot
	failed   []string
}

// fundamentals never fails the run: a fetch error leaves every field unavailable.
func (s *Service) fundamentals(ctx context.Context, ticker string, log *logging.Logger) fundamentalsOutcome {
	raw, err := s.fetcher.FetchFundamentals(ctx, ticker)
	if err != nil {
		log.Warn().Err(err).Msg("fundamentals fetch failed")
		return fundamentalsOutcome{snapshot: model.UnavailableFundamentals()}
	}

	snap, failures := s.normalizer.Normalize(raw)
	out := fundamentalsOutcome{snapshot: snap}
	for _, f := range failures {
		out.failed = append(out.failed, f.Field)
		if s.metrics != nil {
			s.metrics.RecordFieldFailure(f.Field)
		}
	}
	return out
}

func (s *Service) recordRun(start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordRun(s.fetcher.Name(), Outcome(err), time.Since(start))
}

// Outcome classifies a Run error for metrics and logs.
func Outcome(err error) string {
	var fetchErr *FetchError
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, cleaner.ErrNoData):
		return metrics.OutcomeNoData
	case errors.As(err, &fetchErr):
		return metrics.OutcomeFetchError
	case errors.Is(err, ErrPersist):
		return metrics.OutcomePersistFail
	default:
		return "error"
	}
}

// Store exposes the snapshot store for read-side handlers.
func (s *Service) Store() recorder.SnapshotStore { return s.store }

// Source returns the fetcher name.
func (s *Service) Source() string { return s.fetcher.Name() }
