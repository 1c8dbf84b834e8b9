package model

import (
	"database/sql"
	"time"
)

// DateLayout is the calendar-day format used on the wire and in storage.
const DateLayout = "2006-01-02"

// PricePoint is a single cleaned daily bar.
type PricePoint struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Series holds the cleaned daily bars of one ticker, ascending by date with unique dates.
type Series struct {
	Ticker string
	Points []PricePoint
}

// Len returns the number of bars.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Points)
}

// Closes returns the close prices in series order.
func (s *Series) Closes() []float64 {
	closes := make([]float64, len(s.Points))
	for i, p := range s.Points {
		closes[i] = p.Close
	}
	return closes
}

// IndicatorRow carries the derived indicators for one date.
// A field is invalid until its rolling window is full.
type IndicatorRow struct {
	Date    time.Time
	SMA5    sql.NullFloat64
	SMA25   sql.NullFloat64
	SMA75   sql.NullFloat64
	Kairi25 sql.NullFloat64
}

// TimeValue is one point of an exported indicator series.
type TimeValue struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

// Candle is the presentation form of a PricePoint.
type Candle struct {
	Time  string  `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// VolumeEntry is one entry of the volume ranking.
type VolumeEntry struct {
	Date   time.Time
	Volume int64
}

// StatsSummary holds the price extremes and the volume ranking of a series.
type StatsSummary struct {
	MaxPrice      float64
	MaxDate       time.Time
	MinPrice      float64
	MinDate       time.Time
	VolumeRanking []VolumeEntry
}

// SpikeDateGroup is a run of high-volume dates at most two calendar days apart.
type SpikeDateGroup []time.Time

// Strings returns the group members formatted as calendar days.
func (g SpikeDateGroup) Strings() []string {
	out := make([]string, len(g))
	for i, d := range g {
		out[i] = d.Format(DateLayout)
	}
	return out
}

// SnapshotRow is one persisted row: a bar plus its indicators.
type SnapshotRow struct {
	PricePoint
	SMA5    sql.NullFloat64
	SMA25   sql.NullFloat64
	SMA75   sql.NullFloat64
	Kairi25 sql.NullFloat64
}

// CalendarDay truncates t to its calendar day in t's own location and returns it as UTC midnight.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
