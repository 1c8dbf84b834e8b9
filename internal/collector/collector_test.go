package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockLens/internal/cleaner"
	"StockLens/internal/model"
)

const chartBody = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "7203.T", "gmtoffset": 32400},
      "timestamp": [1704326400, 1704412800, 1704672000],
      "indicators": {"quote": [{
        "open":   [2500.0, 2550.0, null],
        "high":   [2560.0, 2600.0, 2620.0],
        "low":    [2490.0, 2540.0, 2580.0],
        "close":  [2550.0, 2590.0, 2610.0],
        "volume": [1200000, null, 900000]
      }]}
    }],
    "error": null
  }
}`

const quoteSummaryBody = `{
  "quoteSummary": {
    "result": [{
      "summaryDetail": {
        "dividendYield": {"raw": 0.028, "fmt": "2.80%"},
        "payoutRatio": {"raw": 0, "fmt": "0.00%"},
        "trailingPE": {"raw": 9.5, "fmt": "9.50"},
        "exDividendDate": {}
      },
      "defaultKeyStatistics": {
        "priceToBook": {"raw": 1.2, "fmt": "1.20"},
        "trailingPE": {"raw": 99.0, "fmt": "99.00"}
      },
      "financialData": {
        "currentPrice": {"raw": 2610.0, "fmt": "2,610"},
        "returnOnEquity": {"raw": 0.11, "fmt": "11%"}
      },
      "price": {"marketCap": {"raw": 42000000000000, "fmt": "42T"}}
    }],
    "error": null
  }
}`

func TestYahooFetcher_FetchDailyFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/7203.T", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, "1y", r.URL.Query().Get("range"))
		w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	f := NewYahooFetcher(WithBaseURL(srv.URL), WithRateLimit(100))
	frame, err := f.FetchDailyFrame(context.Background(), "7203.T", "")
	require.NoError(t, err)
	require.Len(t, frame.Index, 3)
	require.Len(t, frame.Columns, 5)
	assert.Equal(t, model.ColumnKey{"Open", "7203.T"}, frame.Columns[0])
	assert.Nil(t, frame.Values[0][2])
	assert.Nil(t, frame.Values[4][1])

	// 1704326400 is 2024-01-04 00:00 UTC, 09:00 in Tokyo.
	assert.Equal(t, 9, frame.Index[0].Hour())

	series, err := cleaner.Clean(frame)
	require.NoError(t, err)
	require.Equal(t, 2, series.Len(), "row with null open is dropped")
	assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), series.Points[0].Date)
	assert.Equal(t, 0.0, series.Points[1].Volume)
}

func TestYahooFetcher_UnknownTickerIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer srv.Close()

	f := NewYahooFetcher(WithBaseURL(srv.URL), WithRateLimit(100))
	frame, err := f.FetchDailyFrame(context.Background(), "XXXX.T", "1y")
	require.NoError(t, err)
	assert.Empty(t, frame.Index)

	_, err = cleaner.Clean(frame)
	assert.ErrorIs(t, err, cleaner.ErrNoData)
}

func TestYahooFetcher_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewYahooFetcher(WithBaseURL(srv.URL), WithRateLimit(100))
	_, err := f.FetchDailyFrame(context.Background(), "7203.T", "1y")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "yahoo", apiErr.Provider)
}

// yahooSession serves the cookie, crumb and quoteSummary endpoints. quoteSummary answers
// 401 unless the request carries the session cookie and the accepted crumb.
type yahooSession struct {
	crumbs    []string // handed out in order, the last one repeats
	accepted  string
	crumbHits atomic.Int32
}

func (y *yahooSession) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cookie":
			http.SetCookie(w, &http.Cookie{Name: "A3", Value: "session", Path: "/"})
			http.NotFound(w, r)
		case "/v1/test/getcrumb":
			if _, err := r.Cookie("A3"); err != nil {
				http.Error(w, "no session", http.StatusUnauthorized)
				return
			}
			i := int(y.crumbHits.Add(1)) - 1
			if i >= len(y.crumbs) {
				i = len(y.crumbs) - 1
			}
			w.Write([]byte(y.crumbs[i]))
		case "/v10/finance/quoteSummary/7203.T":
			assert.Contains(t, r.URL.Query().Get("modules"), "summaryDetail")
			_, err := r.Cookie("A3")
			if err != nil || r.URL.Query().Get("crumb") != y.accepted {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"finance":{"result":null,"error":{"code":"Unauthorized","description":"Invalid Crumb"}}}`))
				return
			}
			w.Write([]byte(quoteSummaryBody))
		default:
			http.NotFound(w, r)
		}
	}
}

func newSessionFetcher(srv *httptest.Server) *YahooFetcher {
	f := NewYahooFetcher(WithBaseURL(srv.URL), WithRateLimit(100))
	f.cookieURL = srv.URL + "/cookie"
	return f
}

func TestYahooFetcher_FetchFundamentals(t *testing.T) {
	session := &yahooSession{crumbs: []string{"abc123"}, accepted: "abc123"}
	srv := httptest.NewServer(session.handler(t))
	defer srv.Close()

	f := newSessionFetcher(srv)
	raw, err := f.FetchFundamentals(context.Background(), "7203.T")
	require.NoError(t, err)

	assert.Equal(t, 0.028, raw["dividendYield"])
	assert.Equal(t, 0.0, raw["payoutRatio"])
	assert.Equal(t, 9.5, raw["trailingPE"], "summaryDetail wins over defaultKeyStatistics")
	assert.Equal(t, 1.2, raw["priceToBook"])
	assert.Equal(t, 2610.0, raw["currentPrice"])
	assert.Equal(t, 4.2e13, raw["marketCap"])
	assert.NotContains(t, raw, "exDividendDate")

	_, err = f.FetchFundamentals(context.Background(), "7203.T")
	require.NoError(t, err)
	assert.Equal(t, int32(1), session.crumbHits.Load(), "crumb is cached between calls")
}

func TestYahooFetcher_FetchFundamentals_RefreshesRejectedCrumb(t *testing.T) {
	session := &yahooSession{crumbs: []string{"stale", "fresh"}, accepted: "fresh"}
	srv := httptest.NewServer(session.handler(t))
	defer srv.Close()

	f := newSessionFetcher(srv)
	raw, err := f.FetchFundamentals(context.Background(), "7203.T")
	require.NoError(t, err)
	assert.Equal(t, 0.028, raw["dividendYield"])
	assert.Equal(t, int32(2), session.crumbHits.Load())
}

func TestYahooFetcher_FetchFundamentals_Unauthorized(t *testing.T) {
	session := &yahooSession{crumbs: []string{"never-valid"}, accepted: "other"}
	srv := httptest.NewServer(session.handler(t))
	defer srv.Close()

	f := newSessionFetcher(srv)
	_, err := f.FetchFundamentals(context.Background(), "7203.T")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, int32(2), session.crumbHits.Load(), "retried once with a new crumb")
}

func TestYahooFetcher_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(chartBody))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewYahooFetcher(WithBaseURL(srv.URL))
	_, err := f.FetchDailyFrame(ctx, "7203.T", "1y")
	assert.Error(t, err)
}

func TestRESTFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "6758.T", r.URL.Query().Get("symbol"))
		switch r.URL.Path {
		case "/api/v1/bars/daily":
			w.Write([]byte(`[
				{"timestamp": 1704412800, "open": 11, "high": 12, "low": 10, "close": 11.5, "volume": 200},
				{"timestamp": 1704326400, "open": 10, "high": 11, "low": 9, "close": 10.5, "volume": 100},
				{"timestamp": 1704672000, "open": null, "high": 13, "low": 11, "close": 12, "volume": 300}
			]`))
		case "/api/v1/fundamentals":
			w.Write([]byte(`{"forwardPE": 12.5, "payoutRatio": 0}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewRESTFetcher(srv.URL, "secret", WithRateLimit(100))
	assert.Equal(t, "rest", f.Name())

	frame, err := f.FetchDailyFrame(context.Background(), "6758.T", "1y")
	require.NoError(t, err)
	series, err := cleaner.Clean(frame)
	require.NoError(t, err)
	require.Equal(t, 2, series.Len())
	assert.Equal(t, 10.5, series.Points[0].Close)
	assert.Equal(t, 11.5, series.Points[1].Close)

	raw, err := f.FetchFundamentals(context.Background(), "6758.T")
	require.NoError(t, err)
	assert.Contains(t, raw, "forwardPE")
	assert.Contains(t, raw, "payoutRatio")
}

func TestMockFetcher(t *testing.T) {
	end := time.Date(2024, 6, 28, 15, 0, 0, 0, time.UTC)
	m := &MockFetcher{Price: 2000, Days: 100, End: end}

	frame, err := m.FetchDailyFrame(context.Background(), "7203.T", "1y")
	require.NoError(t, err)
	series, err := cleaner.Clean(frame)
	require.NoError(t, err)
	assert.Equal(t, 100, series.Len())
	assert.Equal(t, time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC), series.Points[99].Date)
	for _, p := range series.Points {
		assert.NotEqual(t, time.Saturday, p.Date.Weekday())
		assert.NotEqual(t, time.Sunday, p.Date.Weekday())
	}

	raw, err := m.FetchFundamentals(context.Background(), "7203.T")
	require.NoError(t, err)
	assert.NotEmpty(t, raw)

	m.Err = errors.New("down")
	_, err = m.FetchDailyFrame(context.Background(), "7203.T", "1y")
	assert.EqualError(t, err, "down")
}

func TestNewFetcher(t *testing.T) {
	f, err := NewFetcher("", "", "")
	require.NoError(t, err)
	assert.Equal(t, "yahoo", f.Name())

	f, err = NewFetcher("rest", "http://md.local", "k")
	require.NoError(t, err)
	assert.Equal(t, "rest", f.Name())

	f, err = NewFetcher("mock", "", "")
	require.NoError(t, err)
	assert.Equal(t, "mock", f.Name())

	_, err = NewFetcher("rest", "", "")
	assert.Error(t, err)
	_, err = NewFetcher("bloomberg", "", "")
	assert.Error(t, err)
}
