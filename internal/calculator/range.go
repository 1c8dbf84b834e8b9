package calculator

import (
	"errors"
	"math"
	"sort"

	"StockLens/internal/model"
)

// RankingSize is the number of entries kept in the volume ranking.
const RankingSize = 10

// ExtractStats scans the series for the highest high, the lowest low and the largest volumes.
// Ties on an extreme resolve to the earliest date; volume ties keep series order.
func ExtractStats(series *model.Series) (*model.StatsSummary, error) {
	if series.Len() == 0 {
		return nil, errors.New("no daily bars provided")
	}

	stats := &model.StatsSummary{
		MaxPrice: math.Inf(-1),
		MinPrice: math.Inf(1),
	}
	for _, p := range series.Points {
		if p.High > stats.MaxPrice {
			stats.MaxPrice = p.High
			stats.MaxDate = p.Date
		}
		if p.Low < stats.MinPrice {
			stats.MinPrice = p.Low
			stats.MinDate = p.Date
		}
	}

	stats.VolumeRanking = RankVolume(series.Points, RankingSize)
	return stats, nil
}

// RankVolume returns the n points with the greatest volume, descending, stable on ties.
func RankVolume(points []model.PricePoint, n int) []model.VolumeEntry {
	sorted := make([]model.PricePoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Volume > sorted[j].Volume })

	if len(sorted) > n {
		sorted = sorted[:n]
	}
	ranking := make([]model.VolumeEntry, len(sorted))
	for i, p := range sorted {
		ranking[i] = model.VolumeEntry{Date: p.Date, Volume: int64(p.Volume)}
	}
	return ranking
}
