package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Quote represents the latest traded price for a stock
type Quote struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent float64         `json:"change_percent"`
	Volume        int64           `json:"volume"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
}

// DailyPricePoint is a single trading day's close and volume
type DailyPricePoint struct {
	Date   time.Time `json:"date"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// PriceHistory is a sequence of daily points in no guaranteed order
type PriceHistory []DailyPricePoint

// Sorted returns a chronological copy of the history, oldest first.
// The receiver is never modified.
func (h PriceHistory) Sorted() PriceHistory {
	out := make(PriceHistory, len(h))
	copy(out, h)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// Closes returns the close prices of a chronologically sorted copy of the history
func (h PriceHistory) Closes() []float64 {
	sorted := h.Sorted()
	closes := make([]float64, len(sorted))
	for i, p := range sorted {
		closes[i] = p.Close
	}
	return closes
}

// TechnicalSignals holds the latest technical indicator readings
type TechnicalSignals struct {
	RSI *float64 `json:"rsi"`
}

// EarningsReport is one quarterly earnings record
type EarningsReport struct {
	FiscalDateEnding time.Time `json:"fiscal_date_ending"`
	ReportedEPS      *float64  `json:"reported_eps"`
	EstimatedEPS     *float64  `json:"estimated_eps,omitempty"`
}

// NewsSentiment summarises recent news coverage as a single score in [-1, 1]
type NewsSentiment struct {
	Score        *float64 `json:"score"`
	ArticleCount int      `json:"article_count"`
}

// SearchResult is a symbol lookup match
type SearchResult struct {
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Region   string  `json:"region"`
	Currency string  `json:"currency"`
	Score    float64 `json:"match_score"`
}
