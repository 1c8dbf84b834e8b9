// Package catalog loads the selectable stock list from stocks.csv.
package catalog

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// IndustryOrder is the display order of known industries. Industries not listed here
// follow in first-seen order.
var IndustryOrder = []string{
	"全体指数",
	"製造業(完成品)",
	"製造業(素材)",
	"商業・サービス",
	"金融・情報通信",
	"化学・医薬品",
	"不動産・建設",
	"運輸・物流",
	"食品",
}

// Stock is one catalog entry.
type Stock struct {
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Industry string `json:"industry"`
}

// Catalog is the loaded stock list.
type Catalog struct {
	Industries []string `json:"industries"`
	Stocks     []Stock  `json:"stocks"`
}

// Default is served when no CSV file exists.
func Default() *Catalog {
	return &Catalog{
		Industries: []string{"全体指数"},
		Stocks:     []Stock{{Ticker: "^N225", Name: "日経平均株価", Industry: "全体指数"}},
	}
}

// Load reads the CSV at path. A missing file yields Default.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Parse reads a ticker,name,industry CSV with a header row. Columns are matched by
// header name; a leading UTF-8 BOM is ignored.
func Parse(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse catalog: missing header")
	}

	idx := map[string]int{}
	for i, h := range records[0] {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range []string{"ticker", "name", "industry"} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("parse catalog: column %q missing", col)
		}
	}

	cat := &Catalog{Stocks: []Stock{}}
	seen := map[string]bool{}
	for _, rec := range records[1:] {
		s := Stock{
			Ticker:   field(rec, idx["ticker"]),
			Name:     field(rec, idx["name"]),
			Industry: field(rec, idx["industry"]),
		}
		if s.Ticker == "" {
			continue
		}
		cat.Stocks = append(cat.Stocks, s)
		if !seen[s.Industry] {
			seen[s.Industry] = true
			cat.Industries = append(cat.Industries, s.Industry)
		}
	}
	sortIndustries(cat.Industries)
	return cat, nil
}

// Tickers returns every ticker in catalog order.
func (c *Catalog) Tickers() []string {
	out := make([]string, len(c.Stocks))
	for i, s := range c.Stocks {
		out[i] = s.Ticker
	}
	return out
}

func sortIndustries(industries []string) {
	rank := func(name string) int {
		for i, known := range IndustryOrder {
			if known == name {
				return i
			}
		}
		return len(IndustryOrder)
	}
	sort.SliceStable(industries, func(i, j int) bool { return rank(industries[i]) < rank(industries[j]) })
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
