package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"StockLens/internal/logging"
	"StockLens/internal/model"
)

const (
	// DefaultRange is the history window requested for daily bars.
	DefaultRange     = "1y"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 2 // requests per second
)

// Fetcher retrieves raw market data for a ticker.
type Fetcher interface {
	// FetchDailyFrame returns daily OHLCV bars covering rng (e.g. "1y").
	// An unknown ticker yields an empty frame, not an error.
	FetchDailyFrame(ctx context.Context, ticker, rng string) (*model.RawFrame, error)
	FetchFundamentals(ctx context.Context, ticker string) (model.RawFundamentals, error)
	Name() string
}

// APIError is a non-200 response from an upstream provider.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error: %s (status: %d, endpoint: %s)", e.Provider, e.Message, e.StatusCode, e.Endpoint)
}

// Option configures an HTTP-backed fetcher.
type Option func(*httpSource)

// WithBaseURL overrides the provider base URL.
func WithBaseURL(baseURL string) Option {
	return func(s *httpSource) {
		if baseURL != "" {
			s.baseURL = baseURL
		}
	}
}

// WithProxy routes requests through proxyURL. Invalid URLs are ignored.
func WithProxy(proxyURL string) Option {
	return func(s *httpSource) {
		if proxyURL == "" {
			return
		}
		if u, err := url.Parse(proxyURL); err == nil {
			s.client.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
		}
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(s *httpSource) {
		if timeout > 0 {
			s.client.Timeout = timeout
		}
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(requestsPerSecond float64) Option {
	return func(s *httpSource) {
		if requestsPerSecond > 0 {
			burst := int(requestsPerSecond)
			if burst < 1 {
				burst = 1
			}
			s.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *httpSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// httpSource holds the plumbing shared by the HTTP fetchers.
type httpSource struct {
	provider string
	baseURL  string
	apiKey   string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *logging.Logger
}

func newHTTPSource(provider, baseURL string, opts []Option) httpSource {
	s := httpSource{
		provider: provider,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: DefaultTimeout},
		limiter:  rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:   logging.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// get performs a rate-limited GET of rawURL. Any status other than 200 is an *APIError.
func (s *httpSource) get(ctx context.Context, rawURL, endpoint string) (*http.Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	s.logger.Debug().Str("provider", s.provider).Str("endpoint", endpoint).Msg("upstream request")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s fetch: %w", s.provider, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &APIError{
			Provider:   s.provider,
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   endpoint,
		}
	}
	return resp, nil
}

// getJSON performs a rate-limited GET against the base URL and decodes the body into out.
func (s *httpSource) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	reqURL := s.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	resp, err := s.get(ctx, reqURL, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%s decode: %w", s.provider, err)
	}
	return nil
}

// getText performs a rate-limited GET against the base URL and returns the trimmed body.
func (s *httpSource) getText(ctx context.Context, path string) (string, error) {
	resp, err := s.get(ctx, s.baseURL+path, path)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("%s read: %w", s.provider, err)
	}
	return strings.TrimSpace(string(body)), nil
}

// ohlcvColumns builds the (field, ticker) column set used by every fetcher.
func ohlcvColumns(frame *model.RawFrame, o, h, l, c, v []*float64) {
	frame.AddColumn(model.ColumnKey{"Open", frame.Ticker}, o)
	frame.AddColumn(model.ColumnKey{"High", frame.Ticker}, h)
	frame.AddColumn(model.ColumnKey{"Low", frame.Ticker}, l)
	frame.AddColumn(model.ColumnKey{"Close", frame.Ticker}, c)
	frame.AddColumn(model.ColumnKey{"Volume", frame.Ticker}, v)
}

// NewFetcher builds the fetcher for a provider name: "yahoo", "rest" or "mock".
func NewFetcher(provider, baseURL, apiKey string, opts ...Option) (Fetcher, error) {
	switch provider {
	case "", "yahoo":
		return NewYahooFetcher(append([]Option{WithBaseURL(baseURL)}, opts...)...), nil
	case "rest":
		if baseURL == "" {
			return nil, fmt.Errorf("rest provider requires a base url")
		}
		return NewRESTFetcher(baseURL, apiKey, opts...), nil
	case "mock":
		return &MockFetcher{Price: 1000}, nil
	default:
		return nil, fmt.Errorf("unknown data source %q", provider)
	}
}
