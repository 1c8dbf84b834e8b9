package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"StockLens/internal/calculator"
	"StockLens/internal/model"
)

// ErrInvalidDate is returned when a ranking entry carries an unparseable date.
var ErrInvalidDate = errors.New("invalid ranking date")

// GroupRanking clusters the dates of a ranking posted back by a client.
// Volumes are ignored; only the dates matter. Empty input yields calculator.ErrNoGroups.
func GroupRanking(ranking []RankedVolume) ([]model.SpikeDateGroup, error) {
	dates := make([]time.Time, 0, len(ranking))
	for _, e := range ranking {
		d, err := time.Parse(model.DateLayout, strings.TrimSpace(e.Date))
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDate, e.Date)
		}
		dates = append(dates, d)
	}
	return calculator.GroupSpikeDates(dates)
}
