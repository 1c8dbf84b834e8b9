package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockLens/internal/cleaner"
	"StockLens/internal/metrics"
	"StockLens/internal/pipeline"
)

type stubRunner struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
}

func (r *stubRunner) Run(_ context.Context, ticker string) (*pipeline.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, ticker)
	if err := r.errs[ticker]; err != nil {
		return nil, err
	}
	return &pipeline.Result{Ticker: ticker}, nil
}

func TestRefreshAll_ContinuesPastFailures(t *testing.T) {
	runner := &stubRunner{errs: map[string]error{
		"0000.T": cleaner.ErrNoData,
		"6758.T": &pipeline.FetchError{Ticker: "6758.T", Err: errors.New("timeout")},
	}}
	s := NewScheduler(context.Background(), runner, func() []string {
		return []string{"7203.T", "0000.T", "6758.T", "^N225"}
	}, nil)

	sum := s.RefreshAll()
	assert.Equal(t, []string{"7203.T", "0000.T", "6758.T", "^N225"}, runner.calls)
	assert.Equal(t, 2, sum.OK)
	assert.Equal(t, map[string]string{
		"0000.T": metrics.OutcomeNoData,
		"6758.T": metrics.OutcomeFetchError,
	}, sum.Failed)
}

func TestRefreshAll_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &stubRunner{}
	s := NewScheduler(ctx, runner, func() []string { return []string{"7203.T"} }, nil)

	sum := s.RefreshAll()
	assert.Empty(t, runner.calls)
	assert.Equal(t, 0, sum.OK)
}

func TestRegister(t *testing.T) {
	s := NewScheduler(context.Background(), &stubRunner{}, func() []string { return nil }, nil)

	require.NoError(t, s.Register("0 30 15 * * 1-5"))
	assert.Len(t, s.Cron.Entries(), 1)

	assert.Error(t, s.Register("not a cron spec"))
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(context.Background(), &stubRunner{}, func() []string { return nil }, nil)
	require.NoError(t, s.Register("@every 1h"))
	s.Start()
	s.Stop()
}
