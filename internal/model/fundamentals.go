package model

// Unavailable is the display sentinel for a fundamentals field that could not be resolved.
const Unavailable = "N/A"

// RawFundamentals is a loosely typed fundamentals record keyed by upstream field name
// (forwardPE, marketCap, dividendYield, ...). Any key may be absent and values may be
// numbers, numeric strings or null.
type RawFundamentals map[string]any

// FundamentalsSnapshot is the normalized, display-ready fundamentals of one ticker.
type FundamentalsSnapshot struct {
	MarketCap      string `json:"market_cap"`
	DividendYield  string `json:"dividend_yield"`
	PayoutRatio    string `json:"payout_ratio"`
	ExDividendDate string `json:"ex_div_date"`
	ROE            string `json:"roe"`
	ROA            string `json:"roa"`
	PER            string `json:"per"`
	PBR            string `json:"pbr"`
}

// UnavailableFundamentals returns a snapshot with every field set to the sentinel.
func UnavailableFundamentals() *FundamentalsSnapshot {
	return &FundamentalsSnapshot{
		MarketCap:      Unavailable,
		DividendYield:  Unavailable,
		PayoutRatio:    Unavailable,
		ExDividendDate: Unavailable,
		ROE:            Unavailable,
		ROA:            Unavailable,
		PER:            Unavailable,
		PBR:            Unavailable,
	}
}
