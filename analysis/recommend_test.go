package analysis

import (
	"testing"

	"stockpulse/models"
)

func TestRecommend_Ladder(t *testing.T) {
	tests := []struct {
		name       string
		f          *models.FundamentalSnapshot
		rsi        *float64
		health     int
		bull, bear int
		wantScore  int
		wantRec    models.Recommendation
		wantConf   models.Confidence
		wantReason string
	}{
		{
			name: "nothing fires", health: 50,
			wantScore: 0, wantRec: models.RecommendationHold, wantConf: models.ConfidenceMedium,
			wantReason: DefaultReason,
		},
		{
			name: "solid fundamentals", health: 65,
			wantScore: 1, wantRec: models.RecommendationBuy, wantConf: models.ConfidenceLow,
			wantReason: "solid fundamentals",
		},
		{
			name: "strong fundamentals", health: 85,
			wantScore: 2, wantRec: models.RecommendationBuy, wantConf: models.ConfidenceMedium,
			wantReason: "strong fundamentals",
		},
		{
			name: "everything bullish", health: 100, rsi: fp(25), bull: 4, bear: 1,
			f:         &models.FundamentalSnapshot{PERatio: fp(10)},
			wantScore: 5, wantRec: models.RecommendationBuy, wantConf: models.ConfidenceHigh,
			wantReason: "strong fundamentals, oversold technicals, multiple bullish factors, attractive valuation",
		},
		{
			name: "weak fundamentals", health: 30,
			wantScore: -1, wantRec: models.RecommendationHold, wantConf: models.ConfidenceLow,
			wantReason: "weak fundamentals",
		},
		{
			name: "weak and overbought", health: 30, rsi: fp(75),
			wantScore: -2, wantRec: models.RecommendationSell, wantConf: models.ConfidenceLow,
			wantReason: "weak fundamentals, overbought technicals",
		},
		{
			name: "everything bearish", health: 20, rsi: fp(80), bull: 0, bear: 5,
			f:         &models.FundamentalSnapshot{PERatio: fp(50)},
			wantScore: -4, wantRec: models.RecommendationSell, wantConf: models.ConfidenceMedium,
			wantReason: "weak fundamentals, overbought technicals, multiple risk factors, high valuation",
		},
		{
			name: "health 40 is not weak", health: 40,
			wantScore: 0, wantRec: models.RecommendationHold, wantConf: models.ConfidenceMedium,
			wantReason: DefaultReason,
		},
		{
			name: "one more bear than bull is not enough", health: 50, bull: 1, bear: 2,
			wantScore: 0, wantRec: models.RecommendationHold, wantConf: models.ConfidenceMedium,
			wantReason: DefaultReason,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Recommend(tt.f, tt.rsi, tt.health, 100, tt.bull, tt.bear)
			if got.Score != tt.wantScore {
				t.Errorf("Score = %d, want %d", got.Score, tt.wantScore)
			}
			if got.Recommendation != tt.wantRec || got.Confidence != tt.wantConf {
				t.Errorf("got %s/%s, want %s/%s", got.Recommendation, got.Confidence, tt.wantRec, tt.wantConf)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.wantReason)
			}
		})
	}
}

func TestRecommend_TargetPrice(t *testing.T) {
	buy := Recommend(nil, nil, 90, 123.45, 0, 0)
	if buy.TargetPrice == nil || *buy.TargetPrice != 141.97 {
		t.Errorf("BUY target = %v, want 141.97", buy.TargetPrice)
	}

	sell := Recommend(nil, fp(90), 10, 80, 0, 3)
	if sell.Recommendation != models.RecommendationSell {
		t.Fatalf("Recommendation = %s, want SELL", sell.Recommendation)
	}
	if sell.TargetPrice == nil || *sell.TargetPrice != 76 {
		t.Errorf("SELL target = %v, want 76", sell.TargetPrice)
	}

	hold := Recommend(nil, nil, 50, 100, 0, 0)
	if hold.TargetPrice != nil {
		t.Errorf("HOLD target = %v, want nil", *hold.TargetPrice)
	}

	noPrice := Recommend(nil, nil, 90, 0, 0, 0)
	if noPrice.TargetPrice != nil {
		t.Errorf("zero price target = %v, want nil", *noPrice.TargetPrice)
	}
}

func TestRecommend_OverboughtNeverBuys(t *testing.T) {
	f := &models.FundamentalSnapshot{PERatio: fp(35)}
	rsi := fp(85)
	health := HealthScore(f)
	bull := BullCase(f, rsi, nil)
	bear := BearCase(f, rsi, nil)

	for _, h := range []int{health, 60, 80, 100} {
		got := Recommend(f, rsi, h, 100, len(bull), len(bear))
		if got.Recommendation == models.RecommendationBuy {
			t.Errorf("health %d: overbought expensive stock got BUY (score %d)", h, got.Score)
		}
	}
}
