package calculator

import (
	"time"

	"StockLens/internal/model"
)

var baseDay = time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)

func day(s string) time.Time {
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

// generateSeries builds consecutive daily bars from closes; high/low straddle the close by 1.
func generateSeries(closes []float64) *model.Series {
	points := make([]model.PricePoint, len(closes))
	for i, c := range closes {
		points[i] = model.PricePoint{
			Date:   baseDay.AddDate(0, 0, i),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}
	return &model.Series{Ticker: "TEST", Points: points}
}

func linearCloses(n int, start, step float64) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = start + float64(i)*step
	}
	return closes
}
