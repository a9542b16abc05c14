package analysis

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"stockpulse/models"
)

const (
	// DefaultVolatility is assumed when the history is too short to measure.
	DefaultVolatility = 0.15

	minHistoryPoints   = 20
	volatilityWindow   = 30
	rangeWindow        = 60
	tradingDaysPerYear = 252

	minVolatility = 0.08
	maxVolatility = 0.50
)

// Volatility returns the annualized standard deviation of simple daily returns
// over the last 30 valid closes, clamped to [0.08, 0.50]. Histories with fewer
// than 20 valid points yield DefaultVolatility.
func Volatility(history models.PriceHistory) float64 {
	closes := validCloses(history)
	if len(closes) < minHistoryPoints {
		return DefaultVolatility
	}
	closes = tail(closes, volatilityWindow)

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
	}
	if len(returns) < 2 {
		return DefaultVolatility
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	annual := math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear)
	if !isFinite(annual) {
		return DefaultVolatility
	}
	return clamp(annual, minVolatility, maxVolatility)
}

// SupportResistance returns the 15th and 85th percentile closes of the last
// 60 valid points, bounded to at most 25% below and 35% above price. Short
// histories fall back to a symmetric 10% band around price.
func SupportResistance(history models.PriceHistory, price float64) (support, resistance float64) {
	closes := validCloses(history)
	if len(closes) < minHistoryPoints {
		return price * 0.90, price * 1.10
	}

	window := append([]float64(nil), tail(closes, rangeWindow)...)
	sort.Float64s(window)

	support = math.Max(percentile(window, 0.15), price*0.75)
	resistance = math.Min(percentile(window, 0.85), price*1.35)
	return support, resistance
}

// validCloses returns the positive finite closes in chronological order.
func validCloses(history models.PriceHistory) []float64 {
	sorted := history.Sorted()
	closes := make([]float64, 0, len(sorted))
	for _, p := range sorted {
		if p.Close > 0 && isFinite(p.Close) {
			closes = append(closes, p.Close)
		}
	}
	return closes
}

// percentile picks the element at floor(n*p) of an ascending slice.
func percentile(sorted []float64, p float64) float64 {
	idx := int(math.Floor(float64(len(sorted)) * p))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Round2 rounds half away from zero to two decimal places. Non-finite
// values round to zero.
func Round2(v float64) float64 {
	if !isFinite(v) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// floor2 and ceil2 round toward the side that keeps a clamp intact.
func floor2(v float64) float64 {
	if !isFinite(v) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).RoundFloor(2).Float64()
	return f
}

func ceil2(v float64) float64 {
	if !isFinite(v) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).RoundCeil(2).Float64()
	return f
}
