package analysis

import (
	"math"

	"stockpulse/models"
)

const (
	fairValueFloor   = 0.4
	fairValueCeiling = 2.5

	maxBuyRatio  = 0.95
	minSellRatio = 1.05

	valuationBuffer = 0.03
)

type bandMultiplier struct {
	buy, sell float64
}

var confidenceMultipliers = map[models.Confidence]bandMultiplier{
	models.ConfidenceHigh:   {buy: 0.98, sell: 1.02},
	models.ConfidenceMedium: {buy: 1.0, sell: 1.0},
	models.ConfidenceLow:    {buy: 1.02, sell: 0.98},
}

// FairValue estimates intrinsic value from a blend of an earnings based and a
// book based estimate. It returns price whenever the fundamentals cannot
// support an estimate or the blend lands outside [0.4, 2.5] times price.
func FairValue(f *models.FundamentalSnapshot, price float64) float64 {
	if f.IsEmpty() {
		return price
	}
	pe, okPE := models.Value(f.PERatio)
	eps, okEPS := models.Value(f.EPS)
	if !okPE || pe <= 0 || !okEPS || eps <= 0 {
		return price
	}

	industry := ClassifySector(f.Industry)
	sector := ClassifySector(f.Sector)
	peerPE := TargetPE(industry, sector)

	targetPE := peerPE
	if pe > peerPE {
		targetPE = peerPE * 0.9
	}
	earnings := eps * math.Min(targetPE, peerPE)

	if peg, ok := models.Value(f.PEGRatio); ok && peg > 0 && peg < 3 {
		switch {
		case peg < 1:
			earnings *= 1.1
		case peg > 2:
			earnings *= 0.9
		}
	}

	book := price
	if bv, ok := models.Value(f.BookValue); ok && bv > 0 {
		multiple := 1.8
		if industry.IsFinancial() || sector.IsFinancial() || HasFinancialLabel(f.Industry, f.Sector) {
			multiple = 1.2
		}
		book = bv * multiple
	}

	earningsWeight := 0.6
	if industry.IsGrowth() || sector.IsGrowth() {
		earningsWeight = 0.8
	}
	fair := earnings*earningsWeight + book*(1-earningsWeight)

	if !isFinite(fair) || fair < fairValueFloor*price || fair > fairValueCeiling*price {
		return price
	}
	return fair
}

// ComputeTargets derives the buy/sell band and valuation for a stock. See
// ComputeTargetsWithDiagnostics.
func ComputeTargets(f *models.FundamentalSnapshot, price float64, rec models.Recommendation, conf models.Confidence, history models.PriceHistory, rsi *float64) models.PriceTargets {
	t, _ := ComputeTargetsWithDiagnostics(f, price, rec, conf, history, rsi)
	return t
}

// ComputeTargetsWithDiagnostics derives the buy/sell band from fair value,
// volatility, support/resistance and RSI, then clamps it so buy is at most
// 95% and sell at least 105% of price after rounding. The recommendation does
// not move the band; its conviction reaches the band through conf.
//
// A non-positive or non-finite price yields zero targets classified
// FAIRLY_VALUED.
func ComputeTargetsWithDiagnostics(f *models.FundamentalSnapshot, price float64, rec models.Recommendation, conf models.Confidence, history models.PriceHistory, rsi *float64) (models.PriceTargets, models.Diagnostics) {
	if price <= 0 || !isFinite(price) {
		return models.PriceTargets{CurrentValue: models.ValuationFairlyValued}, models.Diagnostics{}
	}

	fair := FairValue(f, price)
	vol := Volatility(history)
	support, resistance := SupportResistance(history, price)

	discount := clamp(vol*0.6, 0.10, 0.30)
	premium := clamp(vol*0.8, 0.15, 0.40)
	adj := rsiAdjustment(rsi)

	buy := math.Max(fair*(1-discount*adj), support*1.02)
	sell := math.Min(fair*(1+premium/adj), resistance*0.98)

	market := bandMultiplier{buy: 1.0, sell: 1.0}
	if vol > 0.25 {
		market = bandMultiplier{buy: 0.95, sell: 1.05}
	}
	cm, ok := confidenceMultipliers[conf]
	if !ok {
		cm = confidenceMultipliers[models.ConfidenceMedium]
	}
	buy = buy * market.buy * cm.buy
	sell = sell * market.sell * cm.sell

	diag := models.Diagnostics{
		FairValue:     Round2(fair),
		Volatility:    vol,
		Support:       Round2(support),
		Resistance:    Round2(resistance),
		DiscountRate:  discount,
		PremiumRate:   premium,
		RSIAdjustment: adj,
		PreClampBuy:   Round2(buy),
		PreClampSell:  Round2(sell),
		BandInverted:  buy >= sell,
		BandValuation: classifyValuation(price, buy, sell),
	}

	buy = roundBuy(math.Min(buy, maxBuyRatio*price), price)
	sell = roundSell(math.Max(sell, minSellRatio*price), price)

	// Classified on the final band. The clamp keeps price outside both 3%
	// buffers, so this is FAIRLY_VALUED for every positive price;
	// BandValuation carries the reading of the unclamped band.
	return models.PriceTargets{
		GoodBuyPrice:  buy,
		GoodSellPrice: sell,
		CurrentValue:  classifyValuation(price, buy, sell),
	}, diag
}

func rsiAdjustment(rsi *float64) float64 {
	v, ok := models.Value(rsi)
	if !ok {
		return 1.0
	}
	switch {
	case v > 70:
		return 1.15
	case v < 30:
		return 0.85
	}
	return 1.0
}

func classifyValuation(price, buy, sell float64) models.Valuation {
	switch {
	case price <= buy*(1+valuationBuffer):
		return models.ValuationUndervalued
	case price >= sell*(1-valuationBuffer):
		return models.ValuationOvervalued
	}
	return models.ValuationFairlyValued
}

// roundBuy rounds to cents without letting rounding push buy above 95% of price.
func roundBuy(buy, price float64) float64 {
	r := Round2(buy)
	if limit := maxBuyRatio * price; r > limit {
		return floor2(limit)
	}
	return r
}

// roundSell rounds to cents without letting rounding pull sell below 105% of price.
func roundSell(sell, price float64) float64 {
	r := Round2(sell)
	if limit := minSellRatio * price; r < limit {
		return ceil2(limit)
	}
	return r
}
