package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// newFMPTestService serves canned bodies keyed by request path
func newFMPTestService(t *testing.T, routes map[string]string) *FMPService {
	t.Helper()
	resetBreakers(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apikey") != "fmp-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	svc := NewFMPService("fmp-key", server.URL)
	svc.retry = fastRetry
	return svc
}

const fmpProfileJSON = `[{
	"symbol": "JPM",
	"companyName": "JPMorgan Chase & Co.",
	"price": 198.0,
	"changes": 2.0,
	"mktCap": 570000000000,
	"sector": "Financial Services",
	"industry": "Banks—Diversified"
}]`

func TestNewFMPService_DefaultURL(t *testing.T) {
	svc := NewFMPService("key", "")
	if svc.baseURL != "https://financialmodelingprep.com/api/v3" {
		t.Errorf("baseURL = %s", svc.baseURL)
	}
	if svc.Name() != BreakerFMP {
		t.Errorf("Name() = %s", svc.Name())
	}
}

func TestFMP_GetFundamentals(t *testing.T) {
	svc := newFMPTestService(t, map[string]string{
		"/profile/JPM": fmpProfileJSON,
		"/ratios-ttm/JPM": `[{
			"symbol": "JPM",
			"peRatioTTM": 11.9,
			"pegRatioTTM": null,
			"priceToBookRatioTTM": 1.8,
			"returnOnEquityTTM": 0.16,
			"debtEquityRatioTTM": 1.3,
			"dividendYieldTTM": 0.023,
			"netProfitMarginTTM": 0.31,
			"netIncomePerShareTTM": 16.6
		}]`,
	})

	snap, err := svc.GetFundamentals(context.Background(), "JPM")
	if err != nil {
		t.Fatalf("GetFundamentals failed: %v", err)
	}

	if snap.Sector != "Financial Services" || !strings.HasPrefix(snap.Industry, "Banks") {
		t.Errorf("unexpected labels %q / %q", snap.Sector, snap.Industry)
	}
	if snap.PERatio == nil || *snap.PERatio != 11.9 {
		t.Errorf("PERatio = %v", snap.PERatio)
	}
	if snap.DebtToEquity == nil || *snap.DebtToEquity != 1.3 {
		t.Errorf("DebtToEquity = %v", snap.DebtToEquity)
	}
	if snap.PEGRatio != nil {
		t.Error("null PEG should stay nil")
	}
	if snap.GrossMargin != nil {
		t.Error("absent gross margin should stay nil")
	}
	if snap.MarketCap == nil || *snap.MarketCap != 570000000000 {
		t.Errorf("MarketCap = %v", snap.MarketCap)
	}
}

func TestFMP_GetFundamentals_RatiosMissing(t *testing.T) {
	svc := newFMPTestService(t, map[string]string{
		"/profile/JPM":    fmpProfileJSON,
		"/ratios-ttm/JPM": `[]`,
	})

	snap, err := svc.GetFundamentals(context.Background(), "JPM")
	if err != nil {
		t.Fatalf("missing ratios should degrade, got %v", err)
	}
	if snap.Sector == "" || snap.PERatio != nil {
		t.Errorf("expected labels-only snapshot, got %+v", snap)
	}
}

func TestFMP_GetFundamentals_UnknownSymbol(t *testing.T) {
	svc := newFMPTestService(t, map[string]string{"/profile/NOPE": `[]`})

	if _, err := svc.GetFundamentals(context.Background(), "NOPE"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFMP_GetQuote(t *testing.T) {
	svc := newFMPTestService(t, map[string]string{"/profile/JPM": fmpProfileJSON})

	quote, err := svc.GetQuote(context.Background(), "JPM")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if quote.Price.String() != "198" || quote.PreviousClose.String() != "196" {
		t.Errorf("unexpected prices %s / %s", quote.Price, quote.PreviousClose)
	}
	// 2 / 196 * 100
	if quote.ChangePercent != 1.0204 {
		t.Errorf("ChangePercent = %v, want 1.0204", quote.ChangePercent)
	}
}

func TestFMP_GetDailyHistory(t *testing.T) {
	svc := newFMPTestService(t, map[string]string{
		"/historical-price-full/JPM": `{"symbol": "JPM", "historical": [
			{"date": "2024-03-15", "close": 190.5, "volume": 1000},
			{"date": "2024-03-14", "close": 189.0, "volume": 1000},
			{"date": "2024-03-13", "close": 0, "volume": 1000}
		]}`,
	})

	history, err := svc.GetDailyHistory(context.Background(), "JPM", 120)
	if err != nil {
		t.Fatalf("GetDailyHistory failed: %v", err)
	}
	if len(history) != 2 || history[0].Close != 189.0 || history[1].Close != 190.5 {
		t.Errorf("expected two valid closes oldest first, got %+v", history)
	}
}

func TestFMP_Search(t *testing.T) {
	svc := newFMPTestService(t, map[string]string{
		"/search": `[{"symbol": "JPM", "name": "JPMorgan Chase & Co.", "currency": "USD", "exchangeShortName": "NYSE"}]`,
	})

	results, err := svc.Search(context.Background(), "jpmorgan")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].Symbol != "JPM" || results[0].Region != "NYSE" {
		t.Errorf("unexpected results %+v", results)
	}
}

func TestFMP_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
	}{
		{"rate limited", http.StatusTooManyRequests, 1},
		{"server error retried", http.StatusInternalServerError, 3},
		{"bad request", http.StatusBadRequest, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetBreakers(t)
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			svc := NewFMPService("fmp-key", server.URL)
			svc.retry = fastRetry

			if _, err := svc.GetQuote(context.Background(), "JPM"); err == nil {
				t.Fatal("expected error")
			}
			if calls != tt.wantCalls {
				t.Errorf("expected %d calls, got %d", tt.wantCalls, calls)
			}
		})
	}
}

func TestFMP_RateLimitRetryAfter(t *testing.T) {
	resetBreakers(t)
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(fmpProfileJSON))
	}))
	defer server.Close()

	svc := NewFMPService("fmp-key", server.URL)
	svc.retry = RetryConfig{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Second}

	quote, err := svc.GetQuote(context.Background(), "JPM")
	if err != nil {
		t.Fatalf("expected success after Retry-After, got %v", err)
	}
	if quote.Price.String() != "198" {
		t.Errorf("Price = %s", quote.Price)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestFMP_UnsupportedOperations(t *testing.T) {
	svc := NewFMPService("key", "")
	ctx := context.Background()

	if _, err := svc.GetRSI(ctx, "JPM"); !errors.Is(err, ErrNotSupported) {
		t.Errorf("GetRSI: %v", err)
	}
	if _, err := svc.GetEarnings(ctx, "JPM"); !errors.Is(err, ErrNotSupported) {
		t.Errorf("GetEarnings: %v", err)
	}
	if _, err := svc.GetNewsSentiment(ctx, "JPM"); !errors.Is(err, ErrNotSupported) {
		t.Errorf("GetNewsSentiment: %v", err)
	}
}
