package advisor

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"stockpulse/models"
	"stockpulse/services"
)

func newTestAdvisor(market services.MarketDataProvider, llm services.LLMService, cache ReportCache) *Advisor {
	return New(market, llm, cache, Options{
		Timeout:  time.Second,
		CacheTTL: 15 * time.Minute,
		Now:      func() time.Time { return fixedNow },
	})
}

func TestAnalyze_CompleteData(t *testing.T) {
	llm := &mockLLM{response: "Here is my view:\n```json\n{\"summary\": \"Solid franchise.\", \"outlook\": \"Watch services growth.\", \"catalysts\": [\"AI features\"], \"key_risks\": [\"China demand\"]}\n```"}
	a := newTestAdvisor(healthyMarket(), llm, nil)

	report, err := a.Analyze(context.Background(), " aapl ")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if report.Symbol != "AAPL" || report.Analysis.Symbol != "AAPL" {
		t.Errorf("symbol not normalized: %q / %q", report.Symbol, report.Analysis.Symbol)
	}
	if len(report.MissingData) != 0 {
		t.Errorf("expected no missing data, got %v", report.MissingData)
	}
	if !report.GeneratedAt.Equal(fixedNow) || !report.Analysis.AsOf.Equal(fixedNow) {
		t.Errorf("expected injected clock, got %v / %v", report.GeneratedAt, report.Analysis.AsOf)
	}
	if report.Analysis.CurrentPrice != 185.5 {
		t.Errorf("CurrentPrice = %v", report.Analysis.CurrentPrice)
	}
	if report.Analysis.Recommendation == "" || report.Analysis.Confidence == "" {
		t.Errorf("expected a verdict, got %+v", report.Analysis)
	}
	if report.Professional == nil || report.Professional.Summary != "Solid franchise." || report.Professional.Model != "mock-model" {
		t.Errorf("unexpected professional analysis %+v", report.Professional)
	}
	if len(llm.prompts) != 1 || !strings.Contains(llm.prompts[0], "Financial health score") {
		t.Errorf("unexpected prompts %v", llm.prompts)
	}
}

func TestAnalyze_OptionalInputsDegrade(t *testing.T) {
	market := healthyMarket()
	market.failAll = errors.New("vendor down")

	report, err := newTestAdvisor(market, nil, nil).Analyze(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("optional failures must not fail the analysis: %v", err)
	}

	want := []string{MissingEarnings, MissingFundamentals, MissingNews, MissingHistory, MissingRSI}
	if !reflect.DeepEqual(report.MissingData, want) {
		t.Errorf("MissingData = %v, want %v", report.MissingData, want)
	}
	if report.Fundamentals != nil || report.Professional != nil {
		t.Error("expected no fundamentals and no professional analysis")
	}
	if report.Analysis.FinancialHealthScore < 0 || report.Analysis.FinancialHealthScore > 100 {
		t.Errorf("health score out of range: %d", report.Analysis.FinancialHealthScore)
	}
}

func TestAnalyze_EmptyResultsCountAsMissing(t *testing.T) {
	market := healthyMarket()
	market.history = nil
	market.earnings = nil
	market.rsi = nil

	report, err := newTestAdvisor(market, nil, nil).Analyze(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	want := []string{MissingEarnings, MissingHistory, MissingRSI}
	if !reflect.DeepEqual(report.MissingData, want) {
		t.Errorf("MissingData = %v, want %v", report.MissingData, want)
	}
}

func TestAnalyze_QuoteRequired(t *testing.T) {
	tests := []struct {
		name     string
		quote    *models.Quote
		quoteErr error
		wantErr  error
	}{
		{"not found", nil, services.ErrNotFound, ErrSymbolNotFound},
		{"zero price", &models.Quote{Symbol: "AAPL"}, nil, ErrSymbolNotFound},
		{"vendor error", nil, services.ErrServiceUnavailable, services.ErrServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			market := healthyMarket()
			market.quote = tt.quote
			market.quoteErr = tt.quoteErr

			_, err := newTestAdvisor(market, nil, nil).Analyze(context.Background(), "AAPL")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestAnalyze_InvalidSymbol(t *testing.T) {
	a := newTestAdvisor(healthyMarket(), nil, nil)

	for _, symbol := range []string{"", "BAD SYMBOL", "WAYTOOLONGSYMBOL"} {
		if _, err := a.Analyze(context.Background(), symbol); !errors.Is(err, ErrInvalidSymbol) {
			t.Errorf("%q: expected ErrInvalidSymbol, got %v", symbol, err)
		}
	}
}

func TestAnalyze_LLMFailureDegrades(t *testing.T) {
	a := newTestAdvisor(healthyMarket(), &mockLLM{err: errors.New("throttled")}, nil)

	report, err := a.Analyze(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("LLM failure must not fail the analysis: %v", err)
	}
	if report.Professional != nil {
		t.Error("expected no professional analysis")
	}
	if !reflect.DeepEqual(report.MissingData, []string{MissingProfessional}) {
		t.Errorf("MissingData = %v", report.MissingData)
	}
}

func TestAnalyze_Cache(t *testing.T) {
	market := healthyMarket()
	cache := &memCache{}
	a := newTestAdvisor(market, nil, cache)
	ctx := context.Background()

	first, err := a.Analyze(ctx, "AAPL")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if cache.reports["AAPL"] != first || cache.ttl != 15*time.Minute {
		t.Fatalf("report should be cached for the configured TTL, got ttl %v", cache.ttl)
	}

	second, err := a.Analyze(ctx, "AAPL")
	if err != nil || second != first {
		t.Errorf("expected cached report, got %p vs %p (%v)", second, first, err)
	}
	if market.quoteCalls != 1 {
		t.Errorf("cached analysis should not refetch, quote calls = %d", market.quoteCalls)
	}

	fresh, err := a.AnalyzeFresh(ctx, "AAPL")
	if err != nil || fresh == first {
		t.Errorf("AnalyzeFresh should rebuild the report (%v)", err)
	}
	if market.quoteCalls != 2 || cache.reports["AAPL"] != fresh {
		t.Error("AnalyzeFresh should refetch and overwrite the cache")
	}
}

func TestAnalyze_CacheReadErrorFallsThrough(t *testing.T) {
	cache := &memCache{readErr: errors.New("db down")}

	report, err := newTestAdvisor(healthyMarket(), nil, cache).Analyze(context.Background(), "AAPL")
	if err != nil || report == nil {
		t.Fatalf("cache errors must not fail the analysis: %v", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	a := New(healthyMarket(), nil, nil, Options{})
	if a.opts.Timeout != defaultTimeout || a.opts.HistoryDays != defaultHistoryDays || a.opts.Now == nil {
		t.Errorf("unexpected defaults %+v", a.opts)
	}
	if a.HasLLM() {
		t.Error("HasLLM should be false without a model")
	}
}

func TestAnalyze_SharedBuildSurvivesCallerCancel(t *testing.T) {
	market := healthyMarket()
	market.quoteDelay = 200 * time.Millisecond
	a := newTestAdvisor(market, nil, nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := a.Analyze(firstCtx, "AAPL")
		firstErr <- err
	}()

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&market.quoteCalls) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first analysis never reached the quote fetch")
		}
		time.Sleep(time.Millisecond)
	}

	type outcome struct {
		report *models.StockReport
		err    error
	}
	second := make(chan outcome, 1)
	go func() {
		report, err := a.Analyze(context.Background(), "AAPL")
		second <- outcome{report, err}
	}()

	time.Sleep(20 * time.Millisecond)
	cancelFirst()

	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller: expected context.Canceled, got %v", err)
	}

	got := <-second
	if got.err != nil {
		t.Fatalf("live caller failed with another caller's cancellation: %v", got.err)
	}
	if got.report == nil || got.report.Symbol != "AAPL" {
		t.Errorf("unexpected report %+v", got.report)
	}
	if calls := atomic.LoadInt32(&market.quoteCalls); calls != 1 {
		t.Errorf("expected one shared quote fetch, got %d", calls)
	}
}
