package collector

import (
	"context"
	"net/url"
	"sort"
	"time"

	"StockLens/internal/model"
)

// RESTFetcher implements Fetcher against a generic JSON market-data API:
//
//	GET {base}/api/v1/bars/daily?symbol=..&range=..  -> [{timestamp, open, high, low, close, volume}]
//	GET {base}/api/v1/fundamentals?symbol=..         -> {"forwardPE": .., ...}
type RESTFetcher struct {
	httpSource
}

// NewRESTFetcher creates a new fetcher. apiKey is sent as a bearer token when set.
func NewRESTFetcher(baseURL, apiKey string, opts ...Option) *RESTFetcher {
	s := newHTTPSource("rest", baseURL, opts)
	s.apiKey = apiKey
	return &RESTFetcher{httpSource: s}
}

func (f *RESTFetcher) Name() string { return "rest" }

// restBar is the expected JSON shape from the bars endpoint. Any price may be null.
type restBar struct {
	Timestamp int64    `json:"timestamp"`
	Open      *float64 `json:"open"`
	High      *float64 `json:"high"`
	Low       *float64 `json:"low"`
	Close     *float64 `json:"close"`
	Volume    *float64 `json:"volume"`
}

func (f *RESTFetcher) FetchDailyFrame(ctx context.Context, ticker, rng string) (*model.RawFrame, error) {
	if rng == "" {
		rng = DefaultRange
	}
	params := url.Values{}
	params.Set("symbol", ticker)
	params.Set("range", rng)

	var bars []restBar
	err := f.getJSON(ctx, "/api/v1/bars/daily", params, &bars)
	if isNotFound(err) {
		return &model.RawFrame{Ticker: ticker}, nil
	}
	if err != nil {
		return nil, err
	}

	// Ensure chronological order
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp < bars[j].Timestamp })

	n := len(bars)
	frame := &model.RawFrame{Ticker: ticker, Index: make([]time.Time, n)}
	o, h, l, c, v := make([]*float64, n), make([]*float64, n), make([]*float64, n), make([]*float64, n), make([]*float64, n)
	for i, b := range bars {
		frame.Index[i] = time.Unix(b.Timestamp, 0).UTC()
		o[i], h[i], l[i], c[i], v[i] = b.Open, b.High, b.Low, b.Close, b.Volume
	}
	ohlcvColumns(frame, o, h, l, c, v)
	return frame, nil
}

// FetchFundamentals returns the provider record as-is; numbers arrive as json.Number.
func (f *RESTFetcher) FetchFundamentals(ctx context.Context, ticker string) (model.RawFundamentals, error) {
	params := url.Values{}
	params.Set("symbol", ticker)

	var raw map[string]any
	err := f.getJSON(ctx, "/api/v1/fundamentals", params, &raw)
	if isNotFound(err) {
		return model.RawFundamentals{}, nil
	}
	if err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return model.RawFundamentals(raw), nil
}
