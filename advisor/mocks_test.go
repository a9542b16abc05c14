package advisor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"stockpulse/models"
	"stockpulse/services"

	"github.com/shopspring/decimal"
)

// mockMarket returns canned data; a nil value with a nil error means "not supported"
type mockMarket struct {
	quote        *models.Quote
	quoteErr     error
	fundamentals *models.FundamentalSnapshot
	history      models.PriceHistory
	rsi          *float64
	earnings     []models.EarningsReport
	news         *models.NewsSentiment
	failAll      error
	quoteCalls   int32
	// quoteDelay holds GetQuote until it elapses or ctx ends
	quoteDelay time.Duration
}

func (m *mockMarket) Name() string { return "mock" }

func (m *mockMarket) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	atomic.AddInt32(&m.quoteCalls, 1)
	if m.quoteDelay > 0 {
		select {
		case <-time.After(m.quoteDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.quoteErr != nil {
		return nil, m.quoteErr
	}
	return m.quote, nil
}

func (m *mockMarket) GetFundamentals(ctx context.Context, symbol string) (*models.FundamentalSnapshot, error) {
	if m.failAll != nil {
		return nil, m.failAll
	}
	if m.fundamentals == nil {
		return nil, services.ErrNotSupported
	}
	return m.fundamentals, nil
}

func (m *mockMarket) GetDailyHistory(ctx context.Context, symbol string, days int) (models.PriceHistory, error) {
	if m.failAll != nil {
		return nil, m.failAll
	}
	return m.history, nil
}

func (m *mockMarket) GetRSI(ctx context.Context, symbol string) (*models.TechnicalSignals, error) {
	if m.failAll != nil {
		return nil, m.failAll
	}
	return &models.TechnicalSignals{RSI: m.rsi}, nil
}

func (m *mockMarket) GetEarnings(ctx context.Context, symbol string) ([]models.EarningsReport, error) {
	if m.failAll != nil {
		return nil, m.failAll
	}
	return m.earnings, nil
}

func (m *mockMarket) GetNewsSentiment(ctx context.Context, symbol string) (*models.NewsSentiment, error) {
	if m.failAll != nil {
		return nil, m.failAll
	}
	if m.news == nil {
		return nil, services.ErrNotSupported
	}
	return m.news, nil
}

func (m *mockMarket) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	return nil, services.ErrNotSupported
}

type mockLLM struct {
	response string
	err      error
	prompts  []string
}

func (m *mockLLM) Model() string { return "mock-model" }

func (m *mockLLM) InvokeWithPrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.prompts = append(m.prompts, userPrompt)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

// memCache is an in-memory ReportCache that ignores expiry
type memCache struct {
	mu      sync.Mutex
	reports map[string]*models.StockReport
	ttl     time.Duration
	readErr error
}

func (c *memCache) GetCachedReport(ctx context.Context, symbol string) (*models.StockReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return nil, c.readErr
	}
	return c.reports[symbol], nil
}

func (c *memCache) SetCachedReport(ctx context.Context, report *models.StockReport, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reports == nil {
		c.reports = map[string]*models.StockReport{}
	}
	c.reports[report.Symbol] = report
	c.ttl = ttl
	return nil
}

func ptr(v float64) *float64 { return &v }

var fixedNow = time.Date(2024, 6, 3, 15, 30, 0, 0, time.UTC)

// healthyMarket is a profitable technology company with complete data
func healthyMarket() *mockMarket {
	history := make(models.PriceHistory, 0, 120)
	start := fixedNow.AddDate(0, 0, -120)
	for i := 0; i < 120; i++ {
		history = append(history, models.DailyPricePoint{
			Date:  start.AddDate(0, 0, i),
			Close: 180 + float64(i%10),
		})
	}

	return &mockMarket{
		quote: &models.Quote{Symbol: "AAPL", Price: decimal.RequireFromString("185.50"), Source: "mock"},
		fundamentals: &models.FundamentalSnapshot{
			Symbol:         "AAPL",
			Name:           "Apple Inc",
			Sector:         "TECHNOLOGY",
			Industry:       "CONSUMER ELECTRONICS",
			PERatio:        ptr(28.5),
			EPS:            ptr(6.5),
			BookValue:      ptr(4.2),
			PEGRatio:       ptr(2.1),
			ReturnOnEquity: ptr(1.5),
			DebtToEquity:   ptr(1.8),
			PriceToBook:    ptr(44),
			NetMargin:      ptr(0.25),
			GrossMargin:    ptr(0.45),
		},
		history: history,
		rsi:     ptr(55),
		earnings: []models.EarningsReport{
			{FiscalDateEnding: fixedNow.AddDate(0, -2, 0), ReportedEPS: ptr(1.6), EstimatedEPS: ptr(1.5)},
		},
		news: &models.NewsSentiment{Score: ptr(0.2), ArticleCount: 12},
	}
}
