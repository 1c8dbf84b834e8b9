package calculator

import (
	"database/sql"
	"errors"

	"StockLens/internal/model"
)

// Moving-average windows exported with every snapshot.
const (
	ShortWindow  = 5
	MediumWindow = 25
	LongWindow   = 75
)

// CalculateSMA computes the simple moving average of the given prices over the specified period.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errors.New("not enough data for SMA calculation")
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// RollingSMA returns the trailing SMA at every index. Entries before the window is full are invalid.
func RollingSMA(prices []float64, period int) []sql.NullFloat64 {
	out := make([]sql.NullFloat64, len(prices))
	for i := range prices {
		if ma, err := CalculateSMA(prices[:i+1], period); err == nil {
			out[i] = sql.NullFloat64{Float64: ma, Valid: true}
		}
	}
	return out
}

// Kairi returns the percentage deviation of price from its moving average.
// Invalid when the average is invalid or zero.
func Kairi(price float64, ma sql.NullFloat64) sql.NullFloat64 {
	if !ma.Valid || ma.Float64 == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: (price - ma.Float64) / ma.Float64 * 100, Valid: true}
}

// ComputeIndicators derives SMA5/25/75 and the 25-day kairi for each point, aligned 1:1 with the series.
func ComputeIndicators(series *model.Series) []model.IndicatorRow {
	if series.Len() == 0 {
		return nil
	}
	closes := series.Closes()
	sma5 := RollingSMA(closes, ShortWindow)
	sma25 := RollingSMA(closes, MediumWindow)
	sma75 := RollingSMA(closes, LongWindow)

	rows := make([]model.IndicatorRow, len(closes))
	for i, p := range series.Points {
		rows[i] = model.IndicatorRow{
			Date:    p.Date,
			SMA5:    sma5[i],
			SMA25:   sma25[i],
			SMA75:   sma75[i],
			Kairi25: Kairi(p.Close, sma25[i]),
		}
	}
	return rows
}

// IndicatorSeries holds each indicator as a date/value list with undefined points omitted.
type IndicatorSeries struct {
	SMA5    []model.TimeValue
	SMA25   []model.TimeValue
	SMA75   []model.TimeValue
	Kairi25 []model.TimeValue
}

// ExportIndicators splits indicator rows into per-field series, dropping invalid values.
func ExportIndicators(rows []model.IndicatorRow) IndicatorSeries {
	out := IndicatorSeries{
		SMA5:    []model.TimeValue{},
		SMA25:   []model.TimeValue{},
		SMA75:   []model.TimeValue{},
		Kairi25: []model.TimeValue{},
	}
	for _, r := range rows {
		ts := r.Date.Format(model.DateLayout)
		out.SMA5 = appendValid(out.SMA5, ts, r.SMA5)
		out.SMA25 = appendValid(out.SMA25, ts, r.SMA25)
		out.SMA75 = appendValid(out.SMA75, ts, r.SMA75)
		out.Kairi25 = appendValid(out.Kairi25, ts, r.Kairi25)
	}
	return out
}

func appendValid(dst []model.TimeValue, ts string, v sql.NullFloat64) []model.TimeValue {
	if !v.Valid {
		return dst
	}
	return append(dst, model.TimeValue{Time: ts, Value: v.Float64})
}
