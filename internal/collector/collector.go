package collector

import (
	"context"
	"math"
	"time"

	"StockLens/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price        float64
	Days         int
	End          time.Time
	Frame        *model.RawFrame
	Fundamentals model.RawFundamentals
	Err          error
	FundErr      error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyFrame(_ context.Context, ticker, _ string) (*model.RawFrame, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Frame != nil {
		return m.Frame, nil
	}
	days := m.Days
	if days <= 0 {
		days = 245
	}
	end := m.End
	if end.IsZero() {
		end = time.Now()
	}
	price := m.Price
	if price <= 0 {
		price = 1000
	}
	return generateMockFrame(ticker, price, days, end), nil
}

func (m *MockFetcher) FetchFundamentals(_ context.Context, _ string) (model.RawFundamentals, error) {
	if m.FundErr != nil {
		return nil, m.FundErr
	}
	if m.Fundamentals != nil {
		return m.Fundamentals, nil
	}
	return model.RawFundamentals{
		"trailingPE":     15.2,
		"priceToBook":    1.1,
		"marketCap":      m.Price * 1.5e9,
		"dividendYield":  0.025,
		"payoutRatio":    0.35,
		"returnOnEquity": 0.09,
		"returnOnAssets": 0.04,
	}, nil
}

// generateMockFrame builds count weekday bars ending at end with a gentle oscillation
// around basePrice.
func generateMockFrame(ticker string, basePrice float64, count int, end time.Time) *model.RawFrame {
	dates := make([]time.Time, 0, count)
	for d := model.CalendarDay(end); len(dates) < count; d = d.AddDate(0, 0, -1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		dates = append(dates, d)
	}

	frame := &model.RawFrame{Ticker: ticker, Index: make([]time.Time, count)}
	o, h, l, c, v := make([]*float64, count), make([]*float64, count), make([]*float64, count), make([]*float64, count), make([]*float64, count)
	for i := 0; i < count; i++ {
		frame.Index[i] = dates[count-1-i]
		p := basePrice * (1 + 0.05*math.Sin(float64(i)/15))
		o[i] = model.Float(p * 0.999)
		h[i] = model.Float(p * 1.005)
		l[i] = model.Float(p * 0.995)
		c[i] = model.Float(p)
		v[i] = model.Float(float64(1_000_000 + (i*7919)%500_000))
	}
	ohlcvColumns(frame, o, h, l, c, v)
	return frame
}
