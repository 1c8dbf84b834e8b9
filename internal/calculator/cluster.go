package calculator

import (
	"errors"
	"sort"
	"time"

	"StockLens/internal/model"
)

// MaxSpikeGapDays is the largest calendar-day gap that keeps two spike dates in one group
// (one quiet day in between still counts as the same event window).
const MaxSpikeGapDays = 2

// ErrNoGroups is returned when there are no dates to cluster.
var ErrNoGroups = errors.New("no volume spike dates to group")

// GroupSpikeDates sorts the dates and splits them wherever consecutive dates are more than
// MaxSpikeGapDays calendar days apart. Groups come back in chronological order.
func GroupSpikeDates(dates []time.Time) ([]model.SpikeDateGroup, error) {
	if len(dates) == 0 {
		return nil, ErrNoGroups
	}

	sorted := make([]time.Time, len(dates))
	for i, d := range dates {
		sorted[i] = model.CalendarDay(d)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	var groups []model.SpikeDateGroup
	current := model.SpikeDateGroup{sorted[0]}
	for i := 1; i < len(sorted); i++ {
		if daysBetween(sorted[i-1], sorted[i]) <= MaxSpikeGapDays {
			current = append(current, sorted[i])
			continue
		}
		groups = append(groups, current)
		current = model.SpikeDateGroup{sorted[i]}
	}
	groups = append(groups, current)
	return groups, nil
}

// GroupVolumeRanking clusters the dates of a volume ranking.
func GroupVolumeRanking(ranking []model.VolumeEntry) ([]model.SpikeDateGroup, error) {
	dates := make([]time.Time, len(ranking))
	for i, e := range ranking {
		dates[i] = e.Date
	}
	return GroupSpikeDates(dates)
}

// daysBetween counts calendar days from a to b; both must be UTC midnights.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
