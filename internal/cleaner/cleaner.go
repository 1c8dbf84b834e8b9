// Package cleaner turns raw provider frames into validated daily series.
package cleaner

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"StockLens/internal/model"
)

// ErrNoData means the query succeeded but no usable rows remain.
var ErrNoData = errors.New("no data found")

var requiredFields = []string{"open", "high", "low", "close"}

// Clean flattens the frame's columns to their outermost level, drops rows missing
// any of open/high/low/close and returns the remaining rows as a date-ascending series.
// Missing volume reads as zero. When two rows fall on the same calendar day the later
// row in frame order wins.
func Clean(frame *model.RawFrame) (*model.Series, error) {
	if frame == nil || len(frame.Index) == 0 {
		return nil, ErrNoData
	}

	cols := flatten(frame)
	for _, f := range requiredFields {
		if _, ok := cols[f]; !ok {
			return nil, fmt.Errorf("%w: column %q missing", ErrNoData, f)
		}
	}

	byDay := make(map[int64]int, len(frame.Index))
	points := make([]model.PricePoint, 0, len(frame.Index))
	for r, ts := range frame.Index {
		o, okO := cell(cols["open"], r)
		h, okH := cell(cols["high"], r)
		l, okL := cell(cols["low"], r)
		c, okC := cell(cols["close"], r)
		if !okO || !okH || !okL || !okC {
			continue
		}
		v, _ := cell(cols["volume"], r)

		p := model.PricePoint{
			Date:   model.CalendarDay(ts),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: v,
		}
		key := p.Date.Unix()
		if i, dup := byDay[key]; dup {
			points[i] = p
			continue
		}
		byDay[key] = len(points)
		points = append(points, p)
	}

	if len(points) == 0 {
		return nil, ErrNoData
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return &model.Series{Ticker: frame.Ticker, Points: points}, nil
}

// flatten maps each lower-cased level-0 label to its column values.
// The first column carrying a given label wins.
func flatten(frame *model.RawFrame) map[string][]*float64 {
	cols := make(map[string][]*float64, len(frame.Columns))
	for i, key := range frame.Columns {
		if i >= len(frame.Values) {
			break
		}
		name := strings.ToLower(strings.TrimSpace(key.Level0()))
		if _, seen := cols[name]; seen {
			continue
		}
		cols[name] = frame.Values[i]
	}
	return cols
}

func cell(col []*float64, row int) (float64, bool) {
	if row >= len(col) || col[row] == nil {
		return 0, false
	}
	v := *col[row]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
