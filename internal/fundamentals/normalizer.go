// Package fundamentals normalizes loosely typed provider fundamentals into display strings.
//
// The fallback chains below (forward before trailing PER, derived before reported dividend
// yield, the 0.5 fraction-vs-percent threshold) are heuristics inferred from inconsistent
// upstream data. They are kept as policy; change them only with new requirements.
package fundamentals

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"StockLens/internal/logging"
	"StockLens/internal/model"
)

// Upstream field names.
const (
	KeyForwardPE           = "forwardPE"
	KeyTrailingPE          = "trailingPE"
	KeyPriceToBook         = "priceToBook"
	KeyMarketCap           = "marketCap"
	KeyCurrentPrice        = "currentPrice"
	KeyRegularMarketPrice  = "regularMarketPrice"
	KeyDividendRate        = "dividendRate"
	KeyDividendYield       = "dividendYield"
	KeyTrailingDividendYld = "trailingAnnualDividendYield"
	KeyPayoutRatio         = "payoutRatio"
	KeyExDividendDate      = "exDividendDate"
	KeyReturnOnEquity      = "returnOnEquity"
	KeyReturnOnAssets      = "returnOnAssets"
)

const (
	fractionYieldThreshold = 0.5

	trillion            = 1e12
	hundredMillion      = 1e8
	trillionLabel       = "兆円"
	hundredMillionLabel = "億円"

	exDividendLayout = "01-02"
)

// Snapshot field names used in FieldError.
const (
	FieldPER            = "per"
	FieldPBR            = "pbr"
	FieldMarketCap      = "market_cap"
	FieldDividendYield  = "dividend_yield"
	FieldPayoutRatio    = "payout_ratio"
	FieldExDividendDate = "ex_div_date"
	FieldROE            = "roe"
	FieldROA            = "roa"
)

// FieldError reports a snapshot field that degraded to the unavailable sentinel.
type FieldError struct {
	Field string
	Err   error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e FieldError) Unwrap() error { return e.Err }

// Normalizer maps raw fundamentals records to FundamentalsSnapshot.
type Normalizer struct {
	// Location is used to render the ex-dividend date.
	Location *time.Location
	logger   *logging.Logger
}

// NewNormalizer creates a Normalizer. A nil location means time.Local.
func NewNormalizer(loc *time.Location, logger *logging.Logger) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = logging.NewSilentLogger()
	}
	return &Normalizer{Location: loc, logger: logger}
}

// Normalize resolves every field independently. A field whose raw value cannot be used is
// set to model.Unavailable, logged and reported in the returned slice; the snapshot is
// always complete.
func (n *Normalizer) Normalize(raw model.RawFundamentals) (*model.FundamentalsSnapshot, []FieldError) {
	snap := model.UnavailableFundamentals()
	var failures []FieldError

	rules := []struct {
		field string
		dst   *string
		fn    func(rawRecord) (string, error)
	}{
		{FieldPER, &snap.PER, formatPER},
		{FieldPBR, &snap.PBR, formatPBR},
		{FieldMarketCap, &snap.MarketCap, formatMarketCap},
		{FieldDividendYield, &snap.DividendYield, formatDividendYield},
		{FieldPayoutRatio, &snap.PayoutRatio, formatPayoutRatio},
		{FieldExDividendDate, &snap.ExDividendDate, n.formatExDividendDate},
		{FieldROE, &snap.ROE, percentOf(KeyReturnOnEquity)},
		{FieldROA, &snap.ROA, percentOf(KeyReturnOnAssets)},
	}

	rec := rawRecord(raw)
	for _, r := range rules {
		v, err := safely(r.fn, rec)
		if err != nil {
			n.logger.Warn().Str("field", r.field).Err(err).Msg("fundamentals field unavailable")
			failures = append(failures, FieldError{Field: r.field, Err: err})
			continue
		}
		*r.dst = v
	}
	return snap, failures
}

// safely runs a rule, turning a panic into an error so one field cannot abort the rest.
func safely(fn func(rawRecord) (string, error), rec rawRecord) (out string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(rec)
}

func formatPER(rec rawRecord) (string, error) {
	per, ok, err := rec.first(KeyForwardPE, KeyTrailingPE)
	if !ok {
		return model.Unavailable, err
	}
	return fmt.Sprintf("%.2f", per), nil
}

func formatPBR(rec rawRecord) (string, error) {
	pbr, ok, err := rec.truthy(KeyPriceToBook)
	if err != nil || !ok {
		return model.Unavailable, err
	}
	return fmt.Sprintf("%.2f", pbr), nil
}

func formatMarketCap(rec rawRecord) (string, error) {
	mcap, ok, err := rec.truthy(KeyMarketCap)
	if err != nil || !ok {
		return model.Unavailable, err
	}
	if mcap >= trillion {
		return fmt.Sprintf("%.2f %s", mcap/trillion, trillionLabel), nil
	}
	return fmt.Sprintf("%.0f %s", mcap/hundredMillion, hundredMillionLabel), nil
}

// formatDividendYield prefers rate / price, which tracks the forecast yield more closely
// than the provider's trailing figure, and falls back to the reported yield.
func formatDividendYield(rec rawRecord) (string, error) {
	price, okPrice, errPrice := rec.first(KeyCurrentPrice, KeyRegularMarketPrice)
	rate, okRate, errRate := rec.truthy(KeyDividendRate)
	if okPrice && okRate {
		return fmt.Sprintf("%.2f %%", rate/price*100), nil
	}

	dy, ok, err := rec.first(KeyDividendYield, KeyTrailingDividendYld)
	if !ok {
		return model.Unavailable, errors.Join(errPrice, errRate, err)
	}
	return fmt.Sprintf("%.2f %%", ScaleYield(dy)), nil
}

// ScaleYield reads a reported yield below 0.5 as a fraction and anything else as a percentage.
func ScaleYield(dy float64) float64 {
	if dy < fractionYieldThreshold {
		return dy * 100
	}
	return dy
}

// formatPayoutRatio treats zero as a reported value.
func formatPayoutRatio(rec rawRecord) (string, error) {
	payout, ok, err := rec.present(KeyPayoutRatio)
	if err != nil || !ok {
		return model.Unavailable, err
	}
	return fmt.Sprintf("%.2f %%", payout*100), nil
}

func (n *Normalizer) formatExDividendDate(rec rawRecord) (string, error) {
	ts, ok, err := rec.truthy(KeyExDividendDate)
	if err != nil || !ok {
		return model.Unavailable, err
	}
	return time.Unix(int64(ts), 0).In(n.Location).Format(exDividendLayout), nil
}

func percentOf(key string) func(rawRecord) (string, error) {
	return func(rec rawRecord) (string, error) {
		v, ok, err := rec.truthy(key)
		if err != nil || !ok {
			return model.Unavailable, err
		}
		return fmt.Sprintf("%.2f %%", v*100), nil
	}
}

type rawRecord model.RawFundamentals

// present reports whether key holds a usable number. Absent, null and NaN are not present.
func (r rawRecord) present(key string) (float64, bool, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	if math.IsNaN(f) {
		return 0, false, nil
	}
	return f, true, nil
}

// truthy is present with zero also counting as not reported.
func (r rawRecord) truthy(key string) (float64, bool, error) {
	f, ok, err := r.present(key)
	if err != nil || !ok || f == 0 {
		return 0, false, err
	}
	return f, true, nil
}

// first returns the first truthy value among keys. A key that cannot be converted is
// skipped; its error is returned only when no key yields a value.
func (r rawRecord) first(keys ...string) (float64, bool, error) {
	var firstErr error
	for _, k := range keys {
		f, ok, err := r.truthy(k)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			return f, true, nil
		}
	}
	return 0, false, firstErr
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return math.NaN(), nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		s := strings.TrimSpace(n)
		if s == "" || strings.EqualFold(s, "N/A") {
			return math.NaN(), nil
		}
		return strconv.ParseFloat(s, 64)
	case map[string]any:
		// {"raw": 0.028, "fmt": "2.80%"} as served by some endpoints
		if raw, ok := n["raw"]; ok {
			return toFloat(raw)
		}
		return 0, fmt.Errorf("unsupported object value")
	default:
		return 0, fmt.Errorf("unsupported value type %T", v)
	}
}
