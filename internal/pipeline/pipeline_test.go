package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockLens/internal/calculator"
	"StockLens/internal/cleaner"
	"StockLens/internal/collector"
	"StockLens/internal/metrics"
	"StockLens/internal/model"
	"StockLens/internal/recorder"
)

// buildFrame creates a single-level frame of n consecutive days with close = 100+i.
func buildFrame(ticker string, n int) *model.RawFrame {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := &model.RawFrame{Ticker: ticker, Index: make([]time.Time, n)}
	o, h, l, c, v := make([]*float64, n), make([]*float64, n), make([]*float64, n), make([]*float64, n), make([]*float64, n)
	for i := 0; i < n; i++ {
		f.Index[i] = start.AddDate(0, 0, i)
		p := 100 + float64(i)
		o[i], h[i], l[i], c[i] = model.Float(p), model.Float(p+1), model.Float(p-1), model.Float(p)
		v[i] = model.Float(float64(1000 + i))
	}
	f.AddColumn(model.ColumnKey{"Open"}, o)
	f.AddColumn(model.ColumnKey{"High"}, h)
	f.AddColumn(model.ColumnKey{"Low"}, l)
	f.AddColumn(model.ColumnKey{"Close"}, c)
	f.AddColumn(model.ColumnKey{"Volume"}, v)
	return f
}

func newSQLite(t *testing.T) *recorder.SQLiteStore {
	t.Helper()
	s, err := recorder.NewSQLiteStore(filepath.Join(t.TempDir(), "pipeline.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func scrape(t *testing.T, m *metrics.Recorder) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

type failingStore struct {
	*recorder.NoopStore
}

func (failingStore) Write(string, *model.Series, []model.IndicatorRow) error {
	return errors.New("disk full")
}

func TestRun_HappyPath(t *testing.T) {
	store := newSQLite(t)
	fetcher := &collector.MockFetcher{
		Frame: buildFrame("7203.T", 80),
		Fundamentals: model.RawFundamentals{
			"forwardPE":     11.0,
			"dividendYield": 0.028,
			"payoutRatio":   0.0,
		},
	}
	m := metrics.New()
	svc := NewService(fetcher, store, nil, m, nil)

	res, err := svc.Run(context.Background(), "7203.T")
	require.NoError(t, err)

	exposition := scrape(t, m)
	assert.Contains(t, exposition, `stocklens_rows_persisted_total{source="mock"} 80`)
	assert.NotContains(t, exposition, "7203.T", "tickers stay out of metric labels")

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "7203.T", res.Ticker)
	assert.Len(t, res.Candles, 80)
	assert.Len(t, res.SMA5, 76)
	assert.Len(t, res.SMA25, 56)
	assert.Len(t, res.SMA75, 6)
	assert.Len(t, res.Kairi25, 56)

	assert.Equal(t, 180.0, res.Stats.MaxPrice)
	assert.Equal(t, "2024-03-20", res.Stats.MaxDate)
	assert.Equal(t, 99.0, res.Stats.MinPrice)
	assert.Equal(t, "2024-01-01", res.Stats.MinDate)
	require.Len(t, res.Stats.VolumeRanking, calculator.RankingSize)
	assert.Equal(t, RankedVolume{Date: "2024-03-20", Volume: 1079}, res.Stats.VolumeRanking[0])

	assert.Equal(t, "11.00", res.Stats.PER)
	assert.Equal(t, "2.80 %", res.Stats.DividendYield)
	assert.Equal(t, "0.00 %", res.Stats.PayoutRatio)
	assert.Equal(t, model.Unavailable, res.Stats.PBR)

	rows, err := store.Read("7203.T")
	require.NoError(t, err)
	assert.Len(t, rows, 80)
	assert.False(t, rows[73].SMA75.Valid)
	assert.True(t, rows[74].SMA75.Valid)
}

func TestRun_ResultJSON(t *testing.T) {
	fetcher := &collector.MockFetcher{Frame: buildFrame("^N225", 30), Fundamentals: model.RawFundamentals{}}
	svc := NewService(fetcher, nil, nil, nil, nil)

	res, err := svc.Run(context.Background(), "^N225")
	require.NoError(t, err)

	b, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	for _, key := range []string{"candles", "sma5", "sma25", "sma75", "kairi25", "stats"} {
		assert.Contains(t, decoded, key)
	}
	assert.Empty(t, decoded["sma75"], "undefined values are omitted, not zero-filled")

	stats := decoded["stats"].(map[string]any)
	for _, key := range []string{"max_price", "max_date", "min_price", "min_date", "volume_ranking",
		"market_cap", "dividend_yield", "payout_ratio", "ex_div_date", "roe", "roa", "per", "pbr"} {
		assert.Contains(t, stats, key)
	}
	assert.Equal(t, "N/A", stats["market_cap"])

	first := decoded["candles"].([]any)[0].(map[string]any)
	assert.Equal(t, "2024-01-01", first["time"])
}

func TestRun_NoData(t *testing.T) {
	store := newSQLite(t)
	m := metrics.New()
	fetcher := &collector.MockFetcher{Frame: &model.RawFrame{}}
	svc := NewService(fetcher, store, nil, m, nil)

	_, err := svc.Run(context.Background(), "0000.T")
	require.Error(t, err)
	assert.ErrorIs(t, err, cleaner.ErrNoData)
	assert.Equal(t, metrics.OutcomeNoData, Outcome(err))

	var fetchErr *FetchError
	assert.False(t, errors.As(err, &fetchErr))

	_, err = store.Read("0000.T")
	assert.ErrorIs(t, err, recorder.ErrNotFound, "nothing persisted")
}

func TestRun_FetchError(t *testing.T) {
	upstream := errors.New("connection refused")
	svc := NewService(&collector.MockFetcher{Err: upstream}, nil, nil, nil, nil)

	_, err := svc.Run(context.Background(), "7203.T")
	require.Error(t, err)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, "7203.T", fetchErr.Ticker)
	assert.ErrorIs(t, err, upstream)
	assert.NotErrorIs(t, err, cleaner.ErrNoData)
	assert.Equal(t, metrics.OutcomeFetchError, Outcome(err))
}

func TestRun_PersistError(t *testing.T) {
	svc := NewService(&collector.MockFetcher{Frame: buildFrame("7203.T", 10)}, failingStore{recorder.NewNoopStore()}, nil, nil, nil)

	_, err := svc.Run(context.Background(), "7203.T")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersist)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, metrics.OutcomePersistFail, Outcome(err))
}

func TestRun_FundamentalsFailureIsNotFatal(t *testing.T) {
	fetcher := &collector.MockFetcher{
		Frame:   buildFrame("7203.T", 10),
		FundErr: errors.New("quote summary unavailable"),
	}
	svc := NewService(fetcher, nil, nil, nil, nil)

	res, err := svc.Run(context.Background(), "7203.T")
	require.NoError(t, err)
	assert.Equal(t, model.UnavailableFundamentals(), res.Stats.FundamentalsSnapshot)
}

func TestRun_FieldFailuresReported(t *testing.T) {
	fetcher := &collector.MockFetcher{
		Frame:        buildFrame("7203.T", 10),
		Fundamentals: model.RawFundamentals{"priceToBook": true, "trailingPE": 8.0},
	}
	svc := NewService(fetcher, nil, nil, metrics.New(), nil)

	res, err := svc.Run(context.Background(), "7203.T")
	require.NoError(t, err)
	assert.Equal(t, []string{"pbr"}, res.FieldFailures)
	assert.Equal(t, "8.00", res.Stats.PER)
}

func TestRun_EmptyTicker(t *testing.T) {
	svc := NewService(&collector.MockFetcher{}, nil, nil, nil, nil)
	_, err := svc.Run(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyTicker)
}

func TestRun_ReplacesPreviousSnapshot(t *testing.T) {
	store := newSQLite(t)
	fetcher := &collector.MockFetcher{Frame: buildFrame("7203.T", 30)}
	svc := NewService(fetcher, store, nil, nil, nil)

	_, err := svc.Run(context.Background(), "7203.T")
	require.NoError(t, err)

	fetcher.Frame = buildFrame("7203.T", 12)
	_, err = svc.Run(context.Background(), "7203.T")
	require.NoError(t, err)

	rows, err := store.Read("7203.T")
	require.NoError(t, err)
	assert.Len(t, rows, 12)
}
