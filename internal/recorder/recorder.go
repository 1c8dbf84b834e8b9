package recorder

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"StockLens/internal/model"
)

const tableSuffix = "_prices"

var (
	// ErrNotFound is returned by Read when no snapshot was ever written for the ticker.
	ErrNotFound = errors.New("snapshot not found")
	// ErrInvalidTicker is returned when a ticker sanitizes to an empty name.
	ErrInvalidTicker = errors.New("invalid ticker")
	// ErrMisaligned is returned by Write when indicator rows do not follow the series dates.
	ErrMisaligned = errors.New("indicator rows misaligned with series")
)

// SnapshotStore persists the latest cleaned series and indicators per ticker.
// Each Write fully replaces whatever was stored for the ticker before.
type SnapshotStore interface {
	Write(ticker string, series *model.Series, rows []model.IndicatorRow) error
	Read(ticker string) ([]model.SnapshotRow, error)
	TableName(ticker string) (string, error)
	Close() error
}

// TableName derives the per-ticker table name: "^" is dropped, any other character
// outside [A-Za-z0-9] becomes "_", and "_prices" is appended. "^N225" -> "N225_prices",
// "7203.T" -> "7203_T_prices".
func TableName(ticker string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(ticker) {
		switch {
		case r == '^':
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if strings.Trim(b.String(), "_") == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidTicker, ticker)
	}
	return b.String() + tableSuffix, nil
}

// joinRows pairs each point with its indicator row. Rows beyond the series are ignored;
// a missing row leaves the indicators undefined. A row dated differently from its point
// is an error.
func joinRows(series *model.Series, rows []model.IndicatorRow) ([]model.SnapshotRow, error) {
	out := make([]model.SnapshotRow, series.Len())
	for i, p := range series.Points {
		out[i].PricePoint = p
		if i >= len(rows) {
			continue
		}
		if !rows[i].Date.Equal(p.Date) {
			return nil, fmt.Errorf("%w: row %d dated %s, point dated %s", ErrMisaligned, i,
				rows[i].Date.Format(model.DateLayout), p.Date.Format(model.DateLayout))
		}
		out[i].SMA5 = rows[i].SMA5
		out[i].SMA25 = rows[i].SMA25
		out[i].SMA75 = rows[i].SMA75
		out[i].Kairi25 = rows[i].Kairi25
	}
	return out, nil
}
