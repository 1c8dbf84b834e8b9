// Package report renders pipeline output as plain text.
package report

import (
	"fmt"
	"strings"

	"StockLens/internal/model"
	"StockLens/internal/pipeline"
)

// FormatSpikeGroups lists one group per line as "- d1, d2, ...".
func FormatSpikeGroups(groups []model.SpikeDateGroup) string {
	lines := make([]string, len(groups))
	for i, g := range groups {
		lines[i] = "- " + strings.Join(g.Strings(), ", ")
	}
	return strings.Join(lines, "\n")
}

// FormatRunSummary formats a pipeline result for the terminal.
func FormatRunSummary(res *pipeline.Result) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 %s | run %s\n\n", res.Ticker, res.RunID))

	// Latest bar and averages
	if n := len(res.Candles); n > 0 {
		last := res.Candles[n-1]
		b.WriteString(fmt.Sprintf("Last close: %.2f (%s)\n", last.Close, last.Time))
	}
	b.WriteString(fmt.Sprintf("SMA5: %s | SMA25: %s | SMA75: %s\n",
		latest(res.SMA5), latest(res.SMA25), latest(res.SMA75)))
	b.WriteString(fmt.Sprintf("Kairi25: %s\n\n", latestPercent(res.Kairi25)))

	st := res.Stats
	b.WriteString(fmt.Sprintf("High: %.2f (%s)\n", st.MaxPrice, st.MaxDate))
	b.WriteString(fmt.Sprintf("Low:  %.2f (%s)\n\n", st.MinPrice, st.MinDate))

	b.WriteString("Volume top 10:\n")
	for i, v := range st.VolumeRanking {
		b.WriteString(fmt.Sprintf("  %2d. %s  %d\n", i+1, v.Date, v.Volume))
	}

	if f := st.FundamentalsSnapshot; f != nil {
		b.WriteString("\nFundamentals:\n")
		b.WriteString(fmt.Sprintf("  Market cap: %s\n", f.MarketCap))
		b.WriteString(fmt.Sprintf("  PER: %s | PBR: %s\n", f.PER, f.PBR))
		b.WriteString(fmt.Sprintf("  Dividend yield: %s | Payout ratio: %s | Ex-div: %s\n",
			f.DividendYield, f.PayoutRatio, f.ExDividendDate))
		b.WriteString(fmt.Sprintf("  ROE: %s | ROA: %s\n", f.ROE, f.ROA))
	}
	if len(res.FieldFailures) > 0 {
		b.WriteString(fmt.Sprintf("  ⚠️ unusable upstream fields: %s\n", strings.Join(res.FieldFailures, ", ")))
	}

	return b.String()
}

func latest(series []model.TimeValue) string {
	if len(series) == 0 {
		return model.Unavailable
	}
	return fmt.Sprintf("%.2f", series[len(series)-1].Value)
}

func latestPercent(series []model.TimeValue) string {
	if len(series) == 0 {
		return model.Unavailable
	}
	return fmt.Sprintf("%+.2f%%", series[len(series)-1].Value)
}
