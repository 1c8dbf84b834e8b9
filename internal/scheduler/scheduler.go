package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"StockLens/internal/logging"
	"StockLens/internal/pipeline"
)

// Runner runs the pipeline for one ticker.
type Runner interface {
	Run(ctx context.Context, ticker string) (*pipeline.Result, error)
}

// RefreshSummary counts the outcomes of one refresh pass.
type RefreshSummary struct {
	OK     int
	Failed map[string]string // ticker -> outcome
}

// Scheduler re-runs the pipeline for a watchlist on a cron schedule.
type Scheduler struct {
	Cron    *cron.Cron
	Runner  Runner
	Tickers func() []string
	Logger  *logging.Logger
	Ctx     context.Context

	mu sync.Mutex
}

// NewScheduler creates a new Scheduler. tickers is evaluated on every pass so the
// watchlist can follow the catalog.
func NewScheduler(ctx context.Context, runner Runner, tickers func() []string, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewSilentLogger()
	}
	cl := cronLogger{logger}
	return &Scheduler{
		Cron:    cron.New(cron.WithSeconds(), cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl))),
		Runner:  runner,
		Tickers: tickers,
		Logger:  logger,
		Ctx:     ctx,
	}
}

// Register adds the refresh task.
func (s *Scheduler) Register(refreshCron string) error {
	if _, err := s.Cron.AddFunc(refreshCron, func() { s.RefreshAll() }); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Logger.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Logger.Info().Msg("scheduler stopped")
}

// RefreshAll runs the pipeline for every watchlist ticker in turn. A failing ticker
// does not stop the pass. Concurrent calls are serialized.
func (s *Scheduler) RefreshAll() RefreshSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := RefreshSummary{Failed: map[string]string{}}
	tickers := s.Tickers()
	s.Logger.Info().Int("tickers", len(tickers)).Msg("running refresh task")

	for _, t := range tickers {
		if s.Ctx.Err() != nil {
			s.Logger.Warn().Msg("refresh cancelled")
			break
		}
		if _, err := s.Runner.Run(s.Ctx, t); err != nil {
			sum.Failed[t] = pipeline.Outcome(err)
			s.Logger.Error().Str("ticker", t).Err(err).Msg("refresh failed")
			continue
		}
		sum.OK++
	}

	s.Logger.Info().Int("ok", sum.OK).Int("failed", len(sum.Failed)).Msg("refresh task finished")
	return sum
}

// cronLogger adapts logging.Logger to cron.Logger.
type cronLogger struct {
	l *logging.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
