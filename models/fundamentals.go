package models

import (
	"math"
	"strconv"
	"strings"
)

// FundamentalSnapshot holds the fundamental ratios of a company at the time of
// an analysis. Every numeric field is optional: nil means the vendor did not
// report it or reported something that does not parse as a finite number.
type FundamentalSnapshot struct {
	Symbol          string   `json:"symbol"`
	Name            string   `json:"name,omitempty"`
	Sector          string   `json:"sector,omitempty"`
	Industry        string   `json:"industry,omitempty"`
	PERatio         *float64 `json:"pe_ratio"`
	EPS             *float64 `json:"eps"`
	BookValue       *float64 `json:"book_value"`
	PEGRatio        *float64 `json:"peg_ratio"`
	ReturnOnEquity  *float64 `json:"return_on_equity"` // fraction, 0.15 = 15%
	DebtToEquity    *float64 `json:"debt_to_equity"`
	PriceToBook     *float64 `json:"price_to_book"`
	MarketCap       *float64 `json:"market_cap"`
	DividendYield   *float64 `json:"dividend_yield"`
	GrossMargin     *float64 `json:"gross_margin"`
	OperatingMargin *float64 `json:"operating_margin"`
	NetMargin       *float64 `json:"net_margin"`
}

// IsEmpty reports whether the snapshot carries no usable information at all.
// A nil snapshot is empty.
func (f *FundamentalSnapshot) IsEmpty() bool {
	if f == nil {
		return true
	}
	if strings.TrimSpace(f.Sector) != "" || strings.TrimSpace(f.Industry) != "" {
		return false
	}
	for _, v := range []*float64{
		f.PERatio, f.EPS, f.BookValue, f.PEGRatio, f.ReturnOnEquity, f.DebtToEquity,
		f.PriceToBook, f.MarketCap, f.DividendYield, f.GrossMargin, f.OperatingMargin, f.NetMargin,
	} {
		if v != nil {
			return false
		}
	}
	return true
}

// Float returns a pointer to v, or nil when v is NaN or infinite.
func Float(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ParseOptionalFloat converts a vendor string into an optional number.
// Empty strings, placeholders such as "None" or "-", and anything that does
// not parse to a finite float yield nil. A trailing "%" scales the value to a
// fraction, so "15%" and "0.15" agree.
func ParseOptionalFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if pct, ok := strings.CutSuffix(s, "%"); ok {
		v, ok := Value(parseNumber(pct))
		if !ok {
			return nil
		}
		return Float(v / 100)
	}
	return parseNumber(s)
}

// ParsePercentPoints reads a vendor percentage such as "0.84%" in points,
// so "0.84%" and "0.84" both give 0.84.
func ParsePercentPoints(s string) *float64 {
	return parseNumber(strings.TrimSuffix(strings.TrimSpace(s), "%"))
}

func parseNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "none", "-", "n/a", "na", "null", "nan":
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return Float(v)
}

// Value dereferences an optional number, reporting whether it was present.
func Value(p *float64) (float64, bool) {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return 0, false
	}
	return *p, true
}
