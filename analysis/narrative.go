package analysis

import (
	"fmt"
	"sort"

	"stockpulse/models"
)

// Generic risks used when no metric-driven bear point fires.
const (
	GenericRateRisk       = "Rising interest rate environment could pressure valuations"
	GenericVolatilityRisk = "General market volatility may impact share price"
)

const negativeSentimentThreshold = -0.2

func point(strength models.Strength, format string, args ...any) models.NarrativePoint {
	return models.NarrativePoint{Text: fmt.Sprintf(format, args...), Strength: strength}
}

// BullCase lists the bullish talking points supported by the inputs. Every
// rule is evaluated; the result may be empty.
func BullCase(f *models.FundamentalSnapshot, rsi *float64, earnings []models.EarningsReport) []models.NarrativePoint {
	points := []models.NarrativePoint{}

	if f != nil {
		if pe, ok := models.Value(f.PERatio); ok {
			switch {
			case pe < 15:
				points = append(points, point(models.StrengthStrong, "Attractive valuation with P/E ratio of %.2f", pe))
			case pe < 20:
				points = append(points, point(models.StrengthModerate, "Reasonable valuation with P/E ratio of %.2f", pe))
			}
		}

		if roe, ok := models.Value(f.ReturnOnEquity); ok {
			switch {
			case roe > 0.15:
				points = append(points, point(models.StrengthStrong, "Strong return on equity of %.1f%%", roe*100))
			case roe > 0.10:
				points = append(points, point(models.StrengthModerate, "Solid return on equity of %.1f%%", roe*100))
			}
		}
	}

	if v, ok := models.Value(rsi); ok && v < 30 {
		points = append(points, point(models.StrengthModerate, "Oversold RSI of %.1f suggests a potential rebound", v))
	}

	if f != nil {
		if de, ok := models.Value(f.DebtToEquity); ok && de < 0.3 {
			points = append(points, point(models.StrengthStrong, "Conservative balance sheet with debt-to-equity of %.2f", de))
		}
	}

	if latest, previous, ok := lastTwoEPS(earnings); ok && latest > previous {
		points = append(points, point(models.StrengthStrong, "Quarterly EPS grew from $%.2f to $%.2f", previous, latest))
	}

	return points
}

// BearCase lists the risks supported by the inputs. It never returns an
// empty list: when no rule fires the two generic market risks are returned.
func BearCase(f *models.FundamentalSnapshot, rsi *float64, newsSentiment *float64) []models.NarrativePoint {
	points := []models.NarrativePoint{}

	if f != nil {
		if pe, ok := models.Value(f.PERatio); ok {
			switch {
			case pe > 30:
				points = append(points, point(models.StrengthModerate, "Premium valuation with P/E ratio of %.2f leaves little room for error", pe))
			case pe > 25:
				points = append(points, point(models.StrengthWeak, "Elevated P/E ratio of %.2f above the market average", pe))
			case pe > 20:
				points = append(points, point(models.StrengthWeak, "P/E ratio of %.2f is above the long-term market average", pe))
			}
		}

		if de, ok := models.Value(f.DebtToEquity); ok {
			switch {
			case de > 2:
				points = append(points, point(models.StrengthStrong, "High leverage with debt-to-equity of %.2f", de))
			case de > 1:
				points = append(points, point(models.StrengthModerate, "Elevated debt-to-equity of %.2f", de))
			case de > 0.5:
				points = append(points, point(models.StrengthWeak, "Moderate debt load with debt-to-equity of %.2f", de))
			}
		}
	}

	if v, ok := models.Value(rsi); ok {
		switch {
		case v > 70:
			points = append(points, point(models.StrengthModerate, "Overbought RSI of %.1f signals a possible pullback", v))
		case v > 60:
			points = append(points, point(models.StrengthWeak, "RSI of %.1f is approaching overbought territory", v))
		}
	}

	if f != nil {
		if roe, ok := models.Value(f.ReturnOnEquity); ok {
			switch {
			case roe < 0:
				points = append(points, point(models.StrengthStrong, "Negative return on equity of %.1f%%", roe*100))
			case roe < 0.05:
				points = append(points, point(models.StrengthModerate, "Weak return on equity of %.1f%%", roe*100))
			case roe < 0.10:
				points = append(points, point(models.StrengthWeak, "Below-average return on equity of %.1f%%", roe*100))
			}
		}

		if pb, ok := models.Value(f.PriceToBook); ok {
			switch {
			case pb > 5:
				points = append(points, point(models.StrengthModerate, "High price-to-book ratio of %.2f", pb))
			case pb > 3:
				points = append(points, point(models.StrengthWeak, "Price-to-book ratio of %.2f is above value territory", pb))
			}
		}

		if risk, ok := sectorRisk(ClassifySector(f.Sector)); ok {
			points = append(points, point(models.StrengthWeak, "%s", risk))
		}

		if mc, ok := models.Value(f.MarketCap); ok && mc > 0 {
			switch {
			case mc < 2e9:
				points = append(points, point(models.StrengthModerate, "Small-cap company with $%.2fB market cap may see higher volatility", mc/1e9))
			case mc < 10e9:
				points = append(points, point(models.StrengthWeak, "Mid-cap company with $%.2fB market cap carries more risk than large caps", mc/1e9))
			}
		}
	}

	if s, ok := models.Value(newsSentiment); ok && s < negativeSentimentThreshold {
		points = append(points, point(models.StrengthModerate, "Negative news sentiment with a score of %.2f", s))
	}

	if len(points) == 0 {
		points = append(points,
			models.NarrativePoint{Text: GenericRateRisk, Strength: models.StrengthWeak},
			models.NarrativePoint{Text: GenericVolatilityRisk, Strength: models.StrengthWeak},
		)
	}

	return points
}

func sectorRisk(s Sector) (string, bool) {
	switch s {
	case SectorTechnology, SectorSoftware:
		return "Technology sector faces rapid disruption and regulatory scrutiny", true
	case SectorEnergy:
		return "Energy sector is exposed to commodity price swings", true
	case SectorRealEstate:
		return "Real estate is sensitive to interest rate changes", true
	}
	return "", false
}

// lastTwoEPS returns the reported EPS of the two most recent quarters. Both
// must be present.
func lastTwoEPS(earnings []models.EarningsReport) (latest, previous float64, ok bool) {
	if len(earnings) < 2 {
		return 0, 0, false
	}
	sorted := append([]models.EarningsReport(nil), earnings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FiscalDateEnding.After(sorted[j].FiscalDateEnding)
	})

	latest, okLatest := models.Value(sorted[0].ReportedEPS)
	previous, okPrevious := models.Value(sorted[1].ReportedEPS)
	if !okLatest || !okPrevious {
		return 0, 0, false
	}
	return latest, previous, true
}
