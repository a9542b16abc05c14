// Package analysis is the deterministic stock analysis engine. It turns
// fundamentals, RSI, price history, earnings and news sentiment into a health
// score, a recommendation, a buy/sell price band and bull/bear narratives.
//
// Every function in the package is pure: no I/O, no clock reads and no shared
// mutable state. Callers supply the as-of time explicitly.
package analysis

import (
	"time"

	"stockpulse/models"
)

// Input is everything Analyze needs for one symbol.
type Input struct {
	Symbol       string
	Fundamentals *models.FundamentalSnapshot
	Price        float64
	History      models.PriceHistory
	Signals      models.TechnicalSignals
	Earnings     []models.EarningsReport
	News         *models.NewsSentiment
	AsOf         time.Time
}

// Analyze runs the full pipeline: health score, narratives, recommendation
// and price targets. Missing inputs degrade each stage rather than failing.
func Analyze(in Input) models.AnalysisResult {
	rsi := in.Signals.RSI

	var sentiment *float64
	if in.News != nil {
		sentiment = in.News.Score
	}

	health := HealthScore(in.Fundamentals)
	bull := BullCase(in.Fundamentals, rsi, in.Earnings)
	bear := BearCase(in.Fundamentals, rsi, sentiment)
	verdict := Recommend(in.Fundamentals, rsi, health, in.Price, len(bull), len(bear))
	targets, diag := ComputeTargetsWithDiagnostics(in.Fundamentals, in.Price, verdict.Recommendation, verdict.Confidence, in.History, rsi)

	price := 0.0
	if isFinite(in.Price) {
		price = Round2(in.Price)
	}

	return models.AnalysisResult{
		Symbol:               models.NormalizeSymbol(in.Symbol),
		CurrentPrice:         price,
		FinancialHealthScore: health,
		Recommendation:       verdict.Recommendation,
		Confidence:           verdict.Confidence,
		Reason:               verdict.Reason,
		BullCase:             bull,
		BearCase:             bear,
		TargetPrice:          verdict.TargetPrice,
		PriceTargets:         targets,
		Diagnostics:          diag,
		AsOf:                 in.AsOf,
	}
}
