package analysis

import "stockpulse/models"

const baseHealthScore = 50

// HealthScore maps P/E, ROE, D/E and P/B onto a 0-100 score. Each ratio that
// is present adjusts the base of 50 independently; missing ratios contribute
// nothing. P/E between 25 and 30 is a neutral band.
func HealthScore(f *models.FundamentalSnapshot) int {
	if f == nil {
		return baseHealthScore
	}

	score := baseHealthScore

	if pe, ok := models.Value(f.PERatio); ok {
		switch {
		case pe < 15:
			score += 15
		case pe < 25:
			score += 10
		case pe > 30:
			score -= 10
		}
	}

	if roe, ok := models.Value(f.ReturnOnEquity); ok {
		switch {
		case roe > 0.15:
			score += 15
		case roe > 0.10:
			score += 10
		case roe < 0.05:
			score -= 10
		}
	}

	if de, ok := models.Value(f.DebtToEquity); ok {
		switch {
		case de < 0.3:
			score += 10
		case de < 0.5:
			score += 5
		case de > 1.0:
			score -= 10
		}
	}

	if pb, ok := models.Value(f.PriceToBook); ok {
		switch {
		case pb < 1.5:
			score += 10
		case pb < 3.0:
			score += 5
		case pb > 5.0:
			score -= 10
		}
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
