//go:build e2e
// +build e2e

package scenarios

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"stockpulse/advisor"
	"stockpulse/e2e"
	"stockpulse/internal/app"
	"stockpulse/models"
)

func setup(t *testing.T) *e2e.TestHarness {
	t.Helper()

	harness := e2e.NewTestHarness(t)
	if err := harness.Setup(); err != nil {
		t.Fatalf("failed to setup test harness: %v", err)
	}
	t.Cleanup(harness.Teardown)
	return harness
}

func TestAnalysisWorkflow_FullReport(t *testing.T) {
	harness := setup(t)

	resp := harness.DoRequest(http.MethodPost, "/api/analyze", `{"symbol":"aapl"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var report models.StockReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}

	if report.Symbol != "AAPL" {
		t.Errorf("expected normalized symbol AAPL, got %s", report.Symbol)
	}
	if report.Quote == nil || report.Quote.Price.StringFixed(2) != "189.50" {
		t.Errorf("unexpected quote %+v", report.Quote)
	}
	if report.Fundamentals == nil || report.Fundamentals.Name != "Apple Inc" {
		t.Errorf("unexpected fundamentals %+v", report.Fundamentals)
	}
	if len(report.MissingData) != 0 {
		t.Errorf("every input is mocked, got missing %v", report.MissingData)
	}

	a := report.Analysis
	if a.Recommendation == "" || a.Confidence == "" || a.PriceTargets.CurrentValue == "" {
		t.Errorf("analysis fields should be set: %+v", a)
	}
	if a.FinancialHealthScore < 0 || a.FinancialHealthScore > 100 {
		t.Errorf("health score out of range: %d", a.FinancialHealthScore)
	}
	if a.PriceTargets.GoodBuyPrice > a.PriceTargets.GoodSellPrice {
		t.Errorf("buy price %.2f above sell price %.2f", a.PriceTargets.GoodBuyPrice, a.PriceTargets.GoodSellPrice)
	}

	if report.Professional == nil || !strings.Contains(report.Professional.Summary, "high quality") {
		t.Errorf("expected the mocked professional narrative, got %+v", report.Professional)
	}
	if report.Professional != nil && report.Professional.Model != harness.Config().OpenAI.Model {
		t.Errorf("unexpected model %q", report.Professional.Model)
	}
}

func TestAnalysisWorkflow_HTMX(t *testing.T) {
	harness := setup(t)

	resp := harness.DoHTMXRequest(http.MethodPost, "/api/analyze", `{"symbol":"JNJ"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	body := resp.Body.String()
	for _, want := range []string{"Johnson &amp; Johnson", "rec-", "health", "/api/stocks/JNJ/notify"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in analysis card", want)
		}
	}
}

func TestAnalysisWorkflow_InvalidSymbol(t *testing.T) {
	harness := setup(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"empty symbol", `{"symbol":""}`, http.StatusBadRequest},
		{"missing symbol", `{}`, http.StatusBadRequest},
		{"invalid characters", `{"symbol":"AAPL!"}`, http.StatusBadRequest},
		{"too long", `{"symbol":"ABCDEFGHIJK"}`, http.StatusBadRequest},
		{"invalid JSON", `{invalid}`, http.StatusBadRequest},
		{"unknown symbol", `{"symbol":"ZZZZ"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := harness.DoRequest(http.MethodPost, "/api/analyze", tt.body)

			if resp.Code != tt.status {
				t.Errorf("expected status %d, got %d: %s", tt.status, resp.Code, resp.Body.String())
			}
		})
	}
}

func TestAnalysisWorkflow_LLMFailureDegrades(t *testing.T) {
	harness := setup(t)
	harness.MockServer().SetLLMError(errors.New("model overloaded"))

	report, err := harness.App().Analyze(harness.Context(), "AAPL", true)
	if err != nil {
		t.Fatalf("an LLM failure must not fail the analysis: %v", err)
	}
	if report.Professional != nil {
		t.Error("professional analysis should be absent")
	}
	found := false
	for _, name := range report.MissingData {
		if name == advisor.MissingProfessional {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s in missing data, got %v", advisor.MissingProfessional, report.MissingData)
	}
}

func TestAnalysisWorkflow_VendorOutage(t *testing.T) {
	harness := setup(t)
	harness.MockServer().SetAlphaVantageError(errors.New("upstream down"))

	resp := harness.DoRequest(http.MethodPost, "/api/analyze", `{"symbol":"AAPL"}`)
	if resp.Code < 500 {
		t.Errorf("expected a server error during an outage, got %d", resp.Code)
	}

	health := harness.DoRequest(http.MethodGet, "/api/health", "")
	if health.Code != http.StatusOK {
		t.Errorf("health should answer during an outage, got %d", health.Code)
	}
}

func TestQuoteAndSearch(t *testing.T) {
	harness := setup(t)

	resp := harness.DoRequest(http.MethodGet, "/api/stocks/JNJ/quote", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var quote models.Quote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		t.Fatalf("failed to decode quote: %v", err)
	}
	if quote.Price.StringFixed(2) != "151.20" || quote.Source != "alphavantage" {
		t.Errorf("unexpected quote %+v", quote)
	}

	resp = harness.DoRequest(http.MethodGet, "/api/search?q=apple", "")
	var results []models.SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		t.Fatalf("failed to decode results: %v", err)
	}
	if len(results) != 1 || results[0].Symbol != "AAPL" {
		t.Errorf("unexpected search results %+v", results)
	}
}

func TestShareReport(t *testing.T) {
	harness := setup(t)

	resp := harness.DoRequest(http.MethodPost, "/api/stocks/AAPL/notify", `{"chat_id":"12345"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = harness.DoRequest(http.MethodPost, "/api/stocks/JNJ/notify", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	messages := harness.MockServer().Messages()
	if len(messages) != 2 {
		t.Fatalf("expected two telegram messages, got %d", len(messages))
	}
	if messages[0].ChatID != "12345" || !strings.Contains(messages[0].Text, "AAPL") {
		t.Errorf("unexpected first message %+v", messages[0])
	}
	if messages[1].ChatID != harness.Config().Telegram.DefaultChatID {
		t.Errorf("empty chat should use the default chat, got %q", messages[1].ChatID)
	}

	harness.MockServer().SetTelegramError(errors.New("chat not found"))
	if _, err := harness.App().ShareReport(harness.Context(), "AAPL", "nope"); err == nil || errors.Is(err, app.ErrInvalidInput) {
		t.Errorf("expected a delivery error, got %v", err)
	}
}
