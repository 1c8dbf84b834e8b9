package pipeline

import (
	"StockLens/internal/calculator"
	"StockLens/internal/model"
)

// Result is the presentation payload of one pipeline run.
type Result struct {
	RunID   string            `json:"run_id"`
	Ticker  string            `json:"ticker"`
	Candles []model.Candle    `json:"candles"`
	SMA5    []model.TimeValue `json:"sma5"`
	SMA25   []model.TimeValue `json:"sma25"`
	SMA75   []model.TimeValue `json:"sma75"`
	Kairi25 []model.TimeValue `json:"kairi25"`
	Stats   Stats             `json:"stats"`

	// Series and Summary are kept for in-process consumers such as the text report.
	Series  *model.Series       `json:"-"`
	Summary *model.StatsSummary `json:"-"`
	// FieldFailures lists fundamentals fields that degraded to N/A.
	FieldFailures []string `json:"-"`
}

// Stats carries the extremes, the volume ranking and the fundamentals fields flattened
// into one object.
type Stats struct {
	MaxPrice      float64        `json:"max_price"`
	MaxDate       string         `json:"max_date"`
	MinPrice      float64        `json:"min_price"`
	MinDate       string         `json:"min_date"`
	VolumeRanking []RankedVolume `json:"volume_ranking"`
	*model.FundamentalsSnapshot
}

// RankedVolume is the wire form of a VolumeEntry; it is also the input format of the
// volume-groups request.
type RankedVolume struct {
	Date   string `json:"date"`
	Volume int64  `json:"volume"`
}

func buildResult(runID string, series *model.Series, rows []model.IndicatorRow, summary *model.StatsSummary, fund *model.FundamentalsSnapshot) *Result {
	ind := calculator.ExportIndicators(rows)

	candles := make([]model.Candle, series.Len())
	for i, p := range series.Points {
		candles[i] = model.Candle{
			Time:  p.Date.Format(model.DateLayout),
			Open:  p.Open,
			High:  p.High,
			Low:   p.Low,
			Close: p.Close,
		}
	}

	return &Result{
		RunID:   runID,
		Ticker:  series.Ticker,
		Candles: candles,
		SMA5:    ind.SMA5,
		SMA25:   ind.SMA25,
		SMA75:   ind.SMA75,
		Kairi25: ind.Kairi25,
		Stats: Stats{
			MaxPrice:             summary.MaxPrice,
			MaxDate:              summary.MaxDate.Format(model.DateLayout),
			MinPrice:             summary.MinPrice,
			MinDate:              summary.MinDate.Format(model.DateLayout),
			VolumeRanking:        ToRankedVolumes(summary.VolumeRanking),
			FundamentalsSnapshot: fund,
		},
		Series:  series,
		Summary: summary,
	}
}

// ToRankedVolumes converts a ranking to its wire form.
func ToRankedVolumes(ranking []model.VolumeEntry) []RankedVolume {
	out := make([]RankedVolume, len(ranking))
	for i, e := range ranking {
		out[i] = RankedVolume{Date: e.Date.Format(model.DateLayout), Volume: e.Volume}
	}
	return out
}
