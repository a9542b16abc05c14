// Package mocks provides HTTP mock servers for the vendors used in E2E tests.
package mocks

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockServer answers Alpha Vantage, OpenAI chat completion and Telegram
// sendMessage calls from configurable fixtures.
type MockServer struct {
	mu     sync.RWMutex
	server *httptest.Server

	companies    map[string]Company
	professional *Professional
	messages     []TelegramMessage

	// Error injection
	alphaVantageError error
	llmError          error
	telegramError     error

	// Request tracking for assertions
	requestLog []RequestLog
}

// RequestLog records incoming requests for test assertions.
type RequestLog struct {
	Method string
	Path   string
	// Function is the Alpha Vantage function, empty for other vendors
	Function string
	Symbol   string
}

// NewMockServer creates a new mock server with default fixtures.
func NewMockServer() *MockServer {
	m := newMockServer()
	m.server = httptest.NewServer(m)
	return m
}

// NewMockServerOn starts the mock server on a fixed address.
func NewMockServerOn(addr string) (*MockServer, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	m := newMockServer()
	m.server = httptest.NewUnstartedServer(m)
	m.server.Listener.Close()
	m.server.Listener = l
	m.server.Start()
	return m, nil
}

func newMockServer() *MockServer {
	m := &MockServer{
		companies:  make(map[string]Company),
		requestLog: make([]RequestLog, 0),
	}
	m.setDefaults()
	return m
}

// URL returns the mock server's base URL.
func (m *MockServer) URL() string {
	return m.server.URL
}

// AlphaVantageURL is the query endpoint to configure as ALPHA_VANTAGE_BASE_URL.
func (m *MockServer) AlphaVantageURL() string {
	return m.server.URL + "/query"
}

// OpenAIURL is the API root to configure as OPENAI_BASE_URL.
func (m *MockServer) OpenAIURL() string {
	return m.server.URL + "/v1/"
}

// Close shuts down the mock server.
func (m *MockServer) Close() {
	m.server.Close()
}

// ServeHTTP implements http.Handler to route requests to the vendor handlers.
func (m *MockServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	symbol := q.Get("symbol")
	if symbol == "" {
		symbol = q.Get("tickers")
	}

	m.mu.Lock()
	m.requestLog = append(m.requestLog, RequestLog{
		Method:   r.Method,
		Path:     r.URL.Path,
		Function: q.Get("function"),
		Symbol:   symbol,
	})
	m.mu.Unlock()

	path := r.URL.Path
	switch {
	case path == "/query":
		m.handleAlphaVantage(w, r)
	case strings.HasSuffix(path, "/chat/completions"):
		m.handleChatCompletion(w, r)
	case strings.HasPrefix(path, "/bot") && strings.HasSuffix(path, "/sendMessage"):
		m.handleTelegram(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// GetRequestLog returns all logged requests for assertions.
func (m *MockServer) GetRequestLog() []RequestLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RequestLog{}, m.requestLog...)
}

// ClearRequestLog clears the request log.
func (m *MockServer) ClearRequestLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestLog = make([]RequestLog, 0)
}

// CountFunction returns how many Alpha Vantage calls used function.
func (m *MockServer) CountFunction(function string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, req := range m.requestLog {
		if req.Function == function {
			n++
		}
	}
	return n
}

// SetCompany adds or replaces the fixture for a symbol.
func (m *MockServer) SetCompany(c Company) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies[c.Symbol] = c
}

// SetAlphaVantageError makes every Alpha Vantage call fail with a 500.
func (m *MockServer) SetAlphaVantageError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alphaVantageError = err
}

// SetProfessional configures the LLM narrative.
func (m *MockServer) SetProfessional(p *Professional) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.professional = p
}

// SetLLMError makes chat completions fail with a 500.
func (m *MockServer) SetLLMError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.llmError = err
}

// SetTelegramError makes sendMessage fail with a 400.
func (m *MockServer) SetTelegramError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.telegramError = err
}

// Messages returns the Telegram messages received so far.
func (m *MockServer) Messages() []TelegramMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]TelegramMessage{}, m.messages...)
}

func (m *MockServer) setDefaults() {
	m.companies["AAPL"] = Company{
		Symbol:        "AAPL",
		Name:          "Apple Inc",
		Sector:        "TECHNOLOGY",
		Industry:      "ELECTRONIC COMPUTERS",
		Price:         189.50,
		PreviousClose: 187.00,
		PERatio:       29.4,
		PriceToBook:   46.1,
		EPS:           6.43,
		BookValue:     4.11,
		DividendYield: 0.0051,
		ROE:           1.56,
		ProfitMargin:  0.26,
		RSI:           58.2,
		Closes:        generateCloses(120, 170, 0.1),
		Sentiment:     0.21,
	}
	m.companies["JNJ"] = Company{
		Symbol:        "JNJ",
		Name:          "Johnson & Johnson",
		Sector:        "HEALTHCARE",
		Industry:      "PHARMACEUTICAL PREPARATIONS",
		Price:         151.20,
		PreviousClose: 152.00,
		PERatio:       14.8,
		PriceToBook:   5.2,
		EPS:           10.21,
		BookValue:     29.0,
		DividendYield: 0.031,
		ROE:           0.21,
		ProfitMargin:  0.18,
		RSI:           41.5,
		Closes:        generateCloses(120, 160, -0.05),
		Sentiment:     0.05,
	}

	m.professional = &Professional{
		Summary:   "A high quality business priced for continued growth.",
		Outlook:   "Watch services revenue and gross margin over the next two quarters.",
		Catalysts: []string{"Product cycle", "Buyback pace"},
		KeyRisks:  []string{"Regulatory pressure on app store fees"},
	}
}

func (m *MockServer) handleAlphaVantage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	m.mu.RLock()
	err := m.alphaVantageError
	company, known := m.companies[strings.ToUpper(q.Get("symbol")+q.Get("tickers"))]
	companies := make([]Company, 0, len(m.companies))
	for _, c := range m.companies {
		companies = append(companies, c)
	}
	m.mu.RUnlock()

	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var body any
	switch q.Get("function") {
	case "SYMBOL_SEARCH":
		body = searchBody(companies, q.Get("keywords"))
	case "GLOBAL_QUOTE":
		if !known {
			body = map[string]any{"Global Quote": map[string]any{}}
			break
		}
		body = quoteBody(company)
	case "OVERVIEW":
		if !known {
			body = map[string]any{}
			break
		}
		body = overviewBody(company)
	case "TIME_SERIES_DAILY":
		if !known {
			body = map[string]any{"Error Message": "Invalid API call."}
			break
		}
		body = dailyBody(company)
	case "RSI":
		body = rsiBody(company)
	case "EARNINGS":
		body = earningsBody(company)
	case "NEWS_SENTIMENT":
		body = newsBody(company)
	default:
		body = map[string]any{"Error Message": "Invalid API call."}
	}

	writeJSON(w, body)
}

func (m *MockServer) handleChatCompletion(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	err := m.llmError
	professional := m.professional
	m.mu.RUnlock()

	if err != nil {
		http.Error(w, `{"error": {"message": "`+err.Error()+`"}}`, http.StatusInternalServerError)
		return
	}

	var req struct {
		Model string `json:"model"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	content, _ := json.Marshal(professional)
	writeJSON(w, chatCompletion{
		ID:      "chatcmpl-e2e",
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{{
			Message:      chatMessage{Role: "assistant", Content: string(content)},
			FinishReason: "stop",
		}},
	})
}

func (m *MockServer) handleTelegram(w http.ResponseWriter, r *http.Request) {
	var msg TelegramMessage
	raw, _ := io.ReadAll(r.Body)
	if err := json.Unmarshal(raw, &msg); err != nil {
		http.Error(w, `{"ok": false, "description": "bad request"}`, http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	err := m.telegramError
	if err == nil {
		m.messages = append(m.messages, msg)
	}
	m.mu.Unlock()

	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		writeJSON(w, map[string]any{"ok": false, "description": err.Error()})
		return
	}
	writeJSON(w, map[string]any{"ok": true, "result": map[string]any{"message_id": 1}})
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func num(v float64) string {
	return fmt.Sprintf("%.4f", v)
}

func searchBody(companies []Company, keywords string) map[string]any {
	keywords = strings.ToLower(keywords)
	matches := []map[string]string{}
	for _, c := range companies {
		if strings.HasPrefix(strings.ToLower(c.Symbol), keywords) || strings.Contains(strings.ToLower(c.Name), keywords) {
			matches = append(matches, map[string]string{
				"1. symbol":     c.Symbol,
				"2. name":       c.Name,
				"3. type":       "Equity",
				"4. region":     "United States",
				"8. currency":   "USD",
				"9. matchScore": "1.0000",
			})
		}
	}
	return map[string]any{"bestMatches": matches}
}

func quoteBody(c Company) map[string]any {
	change := c.Price - c.PreviousClose
	return map[string]any{"Global Quote": map[string]string{
		"01. symbol":             c.Symbol,
		"02. open":               num(c.PreviousClose),
		"03. high":               num(math.Max(c.Price, c.PreviousClose)),
		"04. low":                num(math.Min(c.Price, c.PreviousClose)),
		"05. price":              num(c.Price),
		"06. volume":             "52000000",
		"07. latest trading day": time.Now().Format("2006-01-02"),
		"08. previous close":     num(c.PreviousClose),
		"09. change":             num(change),
		"10. change percent":     fmt.Sprintf("%.4f%%", change/c.PreviousClose*100),
	}}
}

func overviewBody(c Company) map[string]string {
	return map[string]string{
		"Symbol":               c.Symbol,
		"Name":                 c.Name,
		"Sector":               c.Sector,
		"Industry":             c.Industry,
		"MarketCapitalization": "2900000000000",
		"PERatio":              num(c.PERatio),
		"PEGRatio":             "None",
		"BookValue":            num(c.BookValue),
		"DividendYield":        num(c.DividendYield),
		"EPS":                  num(c.EPS),
		"ProfitMargin":         num(c.ProfitMargin),
		"OperatingMarginTTM":   num(c.ProfitMargin * 1.2),
		"ReturnOnEquityTTM":    num(c.ROE),
		"PriceToBookRatio":     num(c.PriceToBook),
	}
}

func dailyBody(c Company) map[string]any {
	series := make(map[string]map[string]string, len(c.Closes))
	day := time.Now().AddDate(0, 0, -len(c.Closes))
	for _, price := range c.Closes {
		series[day.Format("2006-01-02")] = map[string]string{
			"4. close":  num(price),
			"5. volume": "48000000",
		}
		day = day.AddDate(0, 0, 1)
	}
	return map[string]any{"Time Series (Daily)": series}
}

func rsiBody(c Company) map[string]any {
	return map[string]any{"Technical Analysis: RSI": map[string]any{
		time.Now().AddDate(0, 0, -1).Format("2006-01-02"): map[string]string{"RSI": num(c.RSI)},
	}}
}

func earningsBody(c Company) map[string]any {
	quarters := make([]map[string]string, 0, 4)
	end := time.Now().AddDate(0, -1, 0)
	for i := 0; i < 4; i++ {
		quarters = append(quarters, map[string]string{
			"fiscalDateEnding": end.AddDate(0, -3*i, 0).Format("2006-01-02"),
			"reportedEPS":      num(c.EPS / 4 * 1.05),
			"estimatedEPS":     num(c.EPS / 4),
		})
	}
	return map[string]any{"quarterlyEarnings": quarters}
}

func newsBody(c Company) map[string]any {
	titles := []string{
		"Company Reports Strong Quarterly Earnings",
		"Analyst Upgrades Stock to Buy",
		"Regulators Open Inquiry",
	}
	feed := make([]map[string]any, len(titles))
	for i, title := range titles {
		feed[i] = map[string]any{
			"title":                   title,
			"time_published":          time.Now().Format("20060102T150405"),
			"overall_sentiment_score": c.Sentiment,
			"ticker_sentiment": []map[string]string{{
				"ticker":                 c.Symbol,
				"relevance_score":        "0.8",
				"ticker_sentiment_score": num(c.Sentiment),
			}},
		}
	}
	return map[string]any{"feed": feed}
}

// generateCloses builds a gently trending series with a weekly wobble
func generateCloses(count int, start, drift float64) []float64 {
	closes := make([]float64, count)
	for i := range closes {
		wobble := float64(i%7) - 3
		closes[i] = start + drift*float64(i) + wobble*0.5
	}
	return closes
}
