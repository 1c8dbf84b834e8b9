package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"StockLens/internal/model"
)

const (
	DefaultYahooBaseURL = "https://query1.finance.yahoo.com"
	// DefaultYahooCookieURL hands out the session cookie the crumb is bound to.
	DefaultYahooCookieURL = "https://fc.yahoo.com"

	crumbPath = "/v1/test/getcrumb"
)

// fundamentalsModules are merged in this order; the first module carrying a key wins.
var fundamentalsModules = []string{"summaryDetail", "defaultKeyStatistics", "financialData", "price"}

// YahooFetcher implements Fetcher using the Yahoo Finance chart and quoteSummary APIs.
// quoteSummary requires a crumb tied to a session cookie; both are obtained lazily and
// the crumb is cached until the endpoint rejects it.
type YahooFetcher struct {
	httpSource

	cookieURL string
	mu        sync.Mutex
	crumb     string
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(opts ...Option) *YahooFetcher {
	f := &YahooFetcher{
		httpSource: newHTTPSource("yahoo", DefaultYahooBaseURL, opts),
		cookieURL:  DefaultYahooCookieURL,
	}
	if f.client.Jar == nil {
		jar, _ := cookiejar.New(nil) // never fails with nil options
		f.client.Jar = jar
	}
	return f
}

func (f *YahooFetcher) Name() string { return "yahoo" }

// yahooChart is the response structure from Yahoo Finance chart API.
// Quote arrays hold null on days without a print.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GMTOffset int    `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *yahooError `json:"error"`
	} `json:"chart"`
}

type yahooError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// FetchDailyFrame downloads daily bars. Timestamps are shifted into the exchange's
// UTC offset so each bar lands on its trading day.
func (f *YahooFetcher) FetchDailyFrame(ctx context.Context, ticker, rng string) (*model.RawFrame, error) {
	if rng == "" {
		rng = DefaultRange
	}
	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("range", rng)

	frame := &model.RawFrame{Ticker: ticker}

	var chart yahooChart
	err := f.getJSON(ctx, "/v8/finance/chart/"+url.PathEscape(ticker), params, &chart)
	if isNotFound(err) {
		f.logger.Debug().Str("ticker", ticker).Msg("yahoo: unknown ticker")
		return frame, nil
	}
	if err != nil {
		return nil, err
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return frame, nil
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	loc := time.FixedZone("", result.Meta.GMTOffset)

	n := len(result.Timestamp)
	frame.Index = make([]time.Time, n)
	for i, ts := range result.Timestamp {
		frame.Index[i] = time.Unix(ts, 0).In(loc)
	}
	ohlcvColumns(frame, pad(quote.Open, n), pad(quote.High, n), pad(quote.Low, n), pad(quote.Close, n), pad(quote.Volume, n))
	return frame, nil
}

// yahooQuoteSummary carries each requested module as a loose object.
type yahooQuoteSummary struct {
	QuoteSummary struct {
		Result []map[string]map[string]any `json:"result"`
		Error  *yahooError                 `json:"error"`
	} `json:"quoteSummary"`
}

// FetchFundamentals merges the quoteSummary modules into one flat record.
// {"raw": x, "fmt": "..."} wrappers are unwrapped to x; empty objects are dropped.
// A rejected crumb is refreshed once.
func (f *YahooFetcher) FetchFundamentals(ctx context.Context, ticker string) (model.RawFundamentals, error) {
	var summary yahooQuoteSummary
	err := f.getQuoteSummary(ctx, ticker, false, &summary)
	if isUnauthorized(err) {
		f.logger.Debug().Str("ticker", ticker).Msg("yahoo: crumb rejected, refreshing")
		summary = yahooQuoteSummary{}
		err = f.getQuoteSummary(ctx, ticker, true, &summary)
	}
	if isNotFound(err) {
		return model.RawFundamentals{}, nil
	}
	if err != nil {
		return nil, err
	}
	if summary.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", summary.QuoteSummary.Error.Description)
	}

	raw := model.RawFundamentals{}
	if len(summary.QuoteSummary.Result) == 0 {
		return raw, nil
	}
	modules := summary.QuoteSummary.Result[0]
	for _, name := range fundamentalsModules {
		for key, v := range modules[name] {
			if _, seen := raw[key]; seen {
				continue
			}
			if obj, ok := v.(map[string]any); ok {
				inner, hasRaw := obj["raw"]
				if !hasRaw {
					continue
				}
				v = inner
			}
			if num, ok := v.(json.Number); ok {
				if fv, err := num.Float64(); err == nil {
					v = fv
				}
			}
			raw[key] = v
		}
	}
	return raw, nil
}

func (f *YahooFetcher) getQuoteSummary(ctx context.Context, ticker string, refresh bool, out *yahooQuoteSummary) error {
	crumb, err := f.sessionCrumb(ctx, refresh)
	if err != nil {
		return err
	}
	params := url.Values{}
	params.Set("modules", strings.Join(fundamentalsModules, ","))
	params.Set("crumb", crumb)
	return f.getJSON(ctx, "/v10/finance/quoteSummary/"+url.PathEscape(ticker), params, out)
}

// sessionCrumb returns the cached crumb, or obtains a session cookie and a new crumb when
// none is cached or refresh is set.
func (f *YahooFetcher) sessionCrumb(ctx context.Context, refresh bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.crumb != "" && !refresh {
		return f.crumb, nil
	}
	f.crumb = ""

	// The cookie endpoint answers with an error status but still sets the cookie.
	resp, err := f.get(ctx, f.cookieURL, "cookie")
	if err == nil {
		resp.Body.Close()
	} else if !isAPIError(err) {
		f.logger.Warn().Err(err).Msg("yahoo: session cookie request failed")
	}

	crumb, err := f.getText(ctx, crumbPath)
	if err != nil {
		return "", fmt.Errorf("yahoo crumb: %w", err)
	}
	if crumb == "" || strings.ContainsAny(crumb, "<{") {
		return "", fmt.Errorf("yahoo crumb: unexpected response %q", crumb)
	}
	f.crumb = crumb
	return crumb, nil
}

func isAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

func isUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) &&
		(apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden)
}

func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// pad returns vals extended with nils to length n, tolerating short upstream arrays.
func pad(vals []*float64, n int) []*float64 {
	if len(vals) >= n {
		return vals[:n]
	}
	out := make([]*float64, n)
	copy(out, vals)
	return out
}
