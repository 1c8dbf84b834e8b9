package model

import (
	"strings"
	"time"
)

// ColumnKey is a possibly multi-level column label, e.g. ["Close", "7203.T"]
// when a batch download returns one column block per ticker.
type ColumnKey []string

// Level0 returns the outermost label.
func (k ColumnKey) Level0() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

func (k ColumnKey) String() string {
	return strings.Join(k, "/")
}

// RawFrame is uncleaned tabular OHLCV data as returned by a market-data provider.
// Values is column-major: Values[c][r] is column c at Index[r]; nil means missing.
type RawFrame struct {
	Ticker  string
	Index   []time.Time
	Columns []ColumnKey
	Values  [][]*float64
}

// AddColumn appends a column. The values slice must have len(f.Index) entries.
func (f *RawFrame) AddColumn(key ColumnKey, values []*float64) {
	f.Columns = append(f.Columns, key)
	f.Values = append(f.Values, values)
}

// Float returns a pointer to v, for building frames.
func Float(v float64) *float64 {
	return &v
}
