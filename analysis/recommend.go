package analysis

import (
	"strings"

	"stockpulse/models"
)

// DefaultReason is used when no scoring rule fired.
const DefaultReason = "Mixed signals in analysis"

// Verdict is the output of Recommend.
type Verdict struct {
	Recommendation models.Recommendation
	Confidence     models.Confidence
	Reason         string
	// TargetPrice is a naive 12 month target. It is nil for HOLD and is
	// independent of the price target band.
	TargetPrice *float64
	Score       int
}

// Recommend scores the inputs and maps the score onto a recommendation and
// confidence tier.
func Recommend(f *models.FundamentalSnapshot, rsi *float64, healthScore int, price float64, bullCount, bearCount int) Verdict {
	score := 0
	var reasons []string

	switch {
	case healthScore >= 80:
		score += 2
		reasons = append(reasons, "strong fundamentals")
	case healthScore >= 60:
		score++
		reasons = append(reasons, "solid fundamentals")
	case healthScore < 40:
		score--
		reasons = append(reasons, "weak fundamentals")
	}

	if v, ok := models.Value(rsi); ok {
		switch {
		case v < 30:
			score++
			reasons = append(reasons, "oversold technicals")
		case v > 70:
			score--
			reasons = append(reasons, "overbought technicals")
		}
	}

	switch {
	case bullCount > bearCount+1:
		score++
		reasons = append(reasons, "multiple bullish factors")
	case bearCount > bullCount+1:
		score--
		reasons = append(reasons, "multiple risk factors")
	}

	if f != nil {
		if pe, ok := models.Value(f.PERatio); ok {
			switch {
			case pe < 15:
				score++
				reasons = append(reasons, "attractive valuation")
			case pe > 30:
				score--
				reasons = append(reasons, "high valuation")
			}
		}
	}

	v := Verdict{Score: score, Reason: DefaultReason}
	if len(reasons) > 0 {
		v.Reason = strings.Join(reasons, ", ")
	}

	switch {
	case score >= 3:
		v.Recommendation, v.Confidence = models.RecommendationBuy, models.ConfidenceHigh
	case score >= 2:
		v.Recommendation, v.Confidence = models.RecommendationBuy, models.ConfidenceMedium
	case score >= 1:
		v.Recommendation, v.Confidence = models.RecommendationBuy, models.ConfidenceLow
	case score >= -1:
		v.Recommendation, v.Confidence = models.RecommendationHold, models.ConfidenceLow
		if score == 0 {
			v.Confidence = models.ConfidenceMedium
		}
	case score >= -2:
		v.Recommendation, v.Confidence = models.RecommendationSell, models.ConfidenceLow
	default:
		v.Recommendation, v.Confidence = models.RecommendationSell, models.ConfidenceMedium
	}

	if price > 0 && isFinite(price) {
		switch v.Recommendation {
		case models.RecommendationBuy:
			t := Round2(price * 1.15)
			v.TargetPrice = &t
		case models.RecommendationSell:
			t := Round2(price * 0.95)
			v.TargetPrice = &t
		}
	}

	return v
}
