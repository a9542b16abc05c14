package screener

import (
	"sort"

	"stockpulse/models"
)

// ValueScore calculates a composite value score from a fundamentals snapshot.
// Lower P/E and P/B ratios indicate better value, higher dividend yields are favorable.
// Score range: 0-100, where higher is better value. Missing ratios are left
// out of the weighting rather than counted as zero; a loss-making company
// (P/E <= 0) scores nothing on P/E.
func ValueScore(f *models.FundamentalSnapshot) float64 {
	if f == nil {
		return 0
	}

	var total, weight float64
	add := func(score, w float64) {
		total += score * w
		weight += w
	}

	// P/E of 20 or more scores 0
	if f.PERatio != nil {
		pe := *f.PERatio
		if pe > 0 {
			add(max(0, 100-pe*5), 0.5)
		} else {
			add(0, 0.5)
		}
	}

	// P/B of 2.5 or more scores 0
	if f.PriceToBook != nil && *f.PriceToBook > 0 {
		add(max(0, 100-*f.PriceToBook*40), 0.3)
	}

	// yield is a fraction; 5% or more scores 100
	if f.DividendYield != nil {
		add(min(100, max(0, *f.DividendYield*100*20)), 0.2)
	}

	if weight == 0 {
		return 0
	}
	return total / weight
}

var recommendationScore = map[models.Recommendation]float64{
	models.RecommendationBuy:  100,
	models.RecommendationHold: 50,
	models.RecommendationSell: 0,
}

var confidenceWeight = map[models.Confidence]float64{
	models.ConfidenceHigh:   1.0,
	models.ConfidenceMedium: 0.8,
	models.ConfidenceLow:    0.6,
}

// OpportunityScore blends the recommendation, scaled towards neutral by its
// confidence, with financial health and value. Range 0-100.
func OpportunityScore(r models.ScreenResult) float64 {
	if !r.Analyzed() {
		return 0
	}

	rec, ok := recommendationScore[r.Recommendation]
	if !ok {
		rec = 50
	}
	conf, ok := confidenceWeight[r.Confidence]
	if !ok {
		conf = confidenceWeight[models.ConfidenceLow]
	}
	directional := 50 + (rec-50)*conf

	return directional*0.5 + float64(r.HealthScore)*0.3 + r.ValueScore*0.2
}

// Rank scores every result and sorts best first. Failed rows go last and
// ties are broken by symbol so the order is stable between runs.
func Rank(results []models.ScreenResult) {
	for i := range results {
		results[i].Score = OpportunityScore(results[i])
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Analyzed() != b.Analyzed() {
			return a.Analyzed()
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Symbol < b.Symbol
	})
}
