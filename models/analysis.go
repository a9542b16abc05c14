package models

import "time"

type Recommendation string

const (
	RecommendationBuy  Recommendation = "BUY"
	RecommendationHold Recommendation = "HOLD"
	RecommendationSell Recommendation = "SELL"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

type Strength string

const (
	StrengthStrong   Strength = "STRONG"
	StrengthModerate Strength = "MODERATE"
	StrengthWeak     Strength = "WEAK"
)

type Valuation string

const (
	ValuationUndervalued  Valuation = "UNDERVALUED"
	ValuationFairlyValued Valuation = "FAIRLY_VALUED"
	ValuationOvervalued   Valuation = "OVERVALUED"
)

// NarrativePoint is one bullish or bearish talking point
type NarrativePoint struct {
	Text     string   `json:"text"`
	Strength Strength `json:"strength"`
}

// PriceTargets is the volatility and support/resistance aware trading band
type PriceTargets struct {
	GoodBuyPrice  float64   `json:"good_buy_price"`
	GoodSellPrice float64   `json:"good_sell_price"`
	CurrentValue  Valuation `json:"current_value"`
}

// Diagnostics exposes the intermediate values of the price target pipeline
type Diagnostics struct {
	FairValue     float64 `json:"fair_value"`
	Volatility    float64 `json:"volatility"`
	Support       float64 `json:"support"`
	Resistance    float64 `json:"resistance"`
	DiscountRate  float64 `json:"discount_rate"`
	PremiumRate   float64 `json:"premium_rate"`
	RSIAdjustment float64 `json:"rsi_adjustment"`
	PreClampBuy   float64 `json:"pre_clamp_buy"`
	PreClampSell  float64 `json:"pre_clamp_sell"`
	// BandInverted is set when the buy price was not below the sell price
	// before the final clamp against the current price.
	BandInverted bool `json:"band_inverted"`
	// BandValuation classifies price against the unclamped band.
	BandValuation Valuation `json:"band_valuation"`
}

// AnalysisResult is the output of the deterministic analysis engine
type AnalysisResult struct {
	Symbol               string           `json:"symbol"`
	CurrentPrice         float64          `json:"current_price"`
	FinancialHealthScore int              `json:"financial_health_score"`
	Recommendation       Recommendation   `json:"recommendation"`
	Confidence           Confidence       `json:"confidence"`
	Reason               string           `json:"reason"`
	BullCase             []NarrativePoint `json:"bull_case"`
	BearCase             []NarrativePoint `json:"bear_case"`
	TargetPrice          *float64         `json:"target_price,omitempty"`
	PriceTargets         PriceTargets     `json:"price_targets"`
	Diagnostics          Diagnostics      `json:"diagnostics"`
	AsOf                 time.Time        `json:"as_of"`
}

// ProfessionalAnalysis is the free-form narrative produced by the LLM
type ProfessionalAnalysis struct {
	Summary   string   `json:"summary"`
	Outlook   string   `json:"outlook"`
	Catalysts []string `json:"catalysts"`
	KeyRisks  []string `json:"key_risks"`
	Model     string   `json:"model,omitempty"`
}

// StockReport bundles everything the dashboard shows for one symbol
type StockReport struct {
	Symbol       string                `json:"symbol"`
	Quote        *Quote                `json:"quote"`
	Fundamentals *FundamentalSnapshot  `json:"fundamentals,omitempty"`
	Analysis     AnalysisResult        `json:"analysis"`
	Professional *ProfessionalAnalysis `json:"professional,omitempty"`
	MissingData  []string              `json:"missing_data,omitempty"`
	GeneratedAt  time.Time             `json:"generated_at"`
}
