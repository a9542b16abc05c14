package models

import "time"

// ScreenResult is one row of a watchlist screen
type ScreenResult struct {
	Symbol         string         `json:"symbol"`
	Name           string         `json:"name,omitempty"`
	Price          float64        `json:"price,omitempty"`
	Recommendation Recommendation `json:"recommendation,omitempty"`
	Confidence     Confidence     `json:"confidence,omitempty"`
	HealthScore    int            `json:"health_score"`
	Valuation      Valuation      `json:"valuation,omitempty"`
	GoodBuyPrice   float64        `json:"good_buy_price,omitempty"`
	GoodSellPrice  float64        `json:"good_sell_price,omitempty"`
	// ValueScore rates cheapness from P/E, P/B and dividend yield, 0-100
	ValueScore float64 `json:"value_score"`
	// Score ranks the row against the rest of the screen, 0-100
	Score float64 `json:"score"`
	Error string  `json:"error,omitempty"`
}

// Analyzed reports whether the symbol produced a report
func (r ScreenResult) Analyzed() bool {
	return r.Error == ""
}

// ScreenRun is the ranked outcome of screening a set of symbols
type ScreenRun struct {
	Results    []ScreenResult `json:"results"`
	Analyzed   int            `json:"analyzed"`
	Failed     int            `json:"failed"`
	DurationMs int64          `json:"duration_ms"`
	RunAt      time.Time      `json:"run_at"`
}
