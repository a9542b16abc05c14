package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"stockpulse/models"
	"stockpulse/observability"

	"github.com/shopspring/decimal"
)

// FMPService handles communication with Financial Modeling Prep API
type FMPService struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	retry      RetryConfig
}

// NewFMPService creates a new FMPService instance.
// An empty baseURL selects the public v3 endpoint.
func NewFMPService(apiKey, baseURL string) *FMPService {
	if baseURL == "" {
		baseURL = "https://financialmodelingprep.com/api/v3"
	}
	return &FMPService{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		retry:      DefaultRetryConfig,
	}
}

func (s *FMPService) Name() string { return BreakerFMP }

// fmpProfileResponse represents a company profile from the FMP API
type fmpProfileResponse struct {
	Symbol      string   `json:"symbol"`
	CompanyName string   `json:"companyName"`
	Price       float64  `json:"price"`
	Changes     float64  `json:"changes"`
	MktCap      *float64 `json:"mktCap"`
	VolAvg      int64    `json:"volAvg"`
	Sector      string   `json:"sector"`
	Industry    string   `json:"industry"`
}

// fmpRatiosResponse represents trailing twelve month ratios from the FMP API.
// Pointers keep JSON nulls distinct from zero.
type fmpRatiosResponse struct {
	Symbol          string   `json:"symbol"`
	PERatio         *float64 `json:"peRatioTTM"`
	PEGRatio        *float64 `json:"pegRatioTTM"`
	PriceToBook     *float64 `json:"priceToBookRatioTTM"`
	ReturnOnEquity  *float64 `json:"returnOnEquityTTM"`
	DebtToEquity    *float64 `json:"debtEquityRatioTTM"`
	DividendYield   *float64 `json:"dividendYieldTTM"`
	GrossMargin     *float64 `json:"grossProfitMarginTTM"`
	OperatingMargin *float64 `json:"operatingProfitMarginTTM"`
	NetMargin       *float64 `json:"netProfitMarginTTM"`
	EPS             *float64 `json:"netIncomePerShareTTM"`
	BookValue       *float64 `json:"bookValuePerShareTTM"`
}

type fmpHistoricalResponse struct {
	Symbol     string `json:"symbol"`
	Historical []struct {
		Date   string  `json:"date"`
		Close  float64 `json:"close"`
		Volume float64 `json:"volume"`
	} `json:"historical"`
}

type fmpSearchResult struct {
	Symbol            string `json:"symbol"`
	Name              string `json:"name"`
	Currency          string `json:"currency"`
	StockExchange     string `json:"stockExchange"`
	ExchangeShortName string `json:"exchangeShortName"`
}

// get calls an FMP endpoint through the fmp breaker with retries
func (s *FMPService) get(ctx context.Context, operation, path string, params url.Values, out any) error {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerFMP, operation)
	timer := metrics.NewTimer()

	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", s.apiKey)
	reqURL := s.baseURL + path + "?" + params.Encode()

	_, err := WithCircuitBreaker(ctx, BreakerFMP, func() (struct{}, error) {
		return struct{}{}, WithRetry(ctx, s.retry, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return Permanent(fmt.Errorf("failed to create %s request: %w", operation, err))
			}

			resp, err := s.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %w", operation, err)
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				return RetryAfter(fmt.Errorf("%s: rate limit (429)", operation), retryAfterHeader(resp.Header))
			case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
				return Permanent(fmt.Errorf("%s API returned status %d: unauthorized", operation, resp.StatusCode))
			case resp.StatusCode >= 500:
				return fmt.Errorf("%s API returned status %d", operation, resp.StatusCode)
			case resp.StatusCode != http.StatusOK:
				return Permanent(fmt.Errorf("%s API returned status %d", operation, resp.StatusCode))
			}

			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return Permanent(fmt.Errorf("failed to decode %s response: %w", operation, err))
			}
			return nil
		})
	})

	timer.ObserveExternalAPI(BreakerFMP, operation)
	if err != nil {
		metrics.RecordExternalAPIError(BreakerFMP, operation, categorizeAPIError(err))
	}
	return err
}

func (s *FMPService) getProfile(ctx context.Context, symbol string) (*fmpProfileResponse, error) {
	var profiles []fmpProfileResponse
	if err := s.get(ctx, "profile", "/profile/"+url.PathEscape(symbol), nil, &profiles); err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("profile for %s: %w", symbol, ErrNotFound)
	}
	return &profiles[0], nil
}

func (s *FMPService) getRatios(ctx context.Context, symbol string) (*fmpRatiosResponse, error) {
	var ratios []fmpRatiosResponse
	if err := s.get(ctx, "ratios", "/ratios-ttm/"+url.PathEscape(symbol), nil, &ratios); err != nil {
		return nil, err
	}
	if len(ratios) == 0 {
		return nil, fmt.Errorf("ratios for %s: %w", symbol, ErrNotFound)
	}
	return &ratios[0], nil
}

// GetFundamentals combines the company profile with TTM ratios. Missing
// ratios degrade to a labels-only snapshot rather than an error.
func (s *FMPService) GetFundamentals(ctx context.Context, symbol string) (*models.FundamentalSnapshot, error) {
	profile, err := s.getProfile(ctx, symbol)
	if err != nil {
		return nil, err
	}

	snap := &models.FundamentalSnapshot{
		Symbol:    symbol,
		Name:      profile.CompanyName,
		Sector:    profile.Sector,
		Industry:  profile.Industry,
		MarketCap: finite(profile.MktCap),
	}

	ratios, err := s.getRatios(ctx, symbol)
	if err != nil {
		observability.WithSymbol(symbol).Warn("fmp ratios unavailable", "error", err)
		return snap, nil
	}

	snap.PERatio = finite(ratios.PERatio)
	snap.PEGRatio = finite(ratios.PEGRatio)
	snap.PriceToBook = finite(ratios.PriceToBook)
	snap.ReturnOnEquity = finite(ratios.ReturnOnEquity)
	snap.DebtToEquity = finite(ratios.DebtToEquity)
	snap.DividendYield = finite(ratios.DividendYield)
	snap.GrossMargin = finite(ratios.GrossMargin)
	snap.OperatingMargin = finite(ratios.OperatingMargin)
	snap.NetMargin = finite(ratios.NetMargin)
	snap.EPS = finite(ratios.EPS)
	snap.BookValue = finite(ratios.BookValue)

	return snap, nil
}

// GetQuote returns the profile price as a quote
func (s *FMPService) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	profile, err := s.getProfile(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if profile.Price <= 0 {
		return nil, fmt.Errorf("price for %s: %w", symbol, ErrNotFound)
	}

	price := decimal.NewFromFloat(profile.Price)
	change := decimal.NewFromFloat(profile.Changes)
	quote := &models.Quote{
		Symbol:    symbol,
		Price:     price,
		Change:    change,
		Source:    BreakerFMP,
		Timestamp: time.Now(),
	}
	if prev := price.Sub(change); prev.IsPositive() {
		quote.PreviousClose = prev
		quote.ChangePercent, _ = change.Div(prev).Mul(decimal.NewFromInt(100)).Round(4).Float64()
	}
	return quote, nil
}

// GetDailyHistory returns up to days daily closes, oldest first
func (s *FMPService) GetDailyHistory(ctx context.Context, symbol string, days int) (models.PriceHistory, error) {
	params := url.Values{}
	if days > 0 {
		params.Set("timeseries", strconv.Itoa(days))
	}

	var resp fmpHistoricalResponse
	if err := s.get(ctx, "historical", "/historical-price-full/"+url.PathEscape(symbol), params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Historical) == 0 {
		return nil, fmt.Errorf("history for %s: %w", symbol, ErrNotFound)
	}

	history := make(models.PriceHistory, 0, len(resp.Historical))
	for _, h := range resp.Historical {
		date, err := time.Parse("2006-01-02", h.Date)
		if err != nil || h.Close <= 0 {
			continue
		}
		history = append(history, models.DailyPricePoint{Date: date, Close: h.Close, Volume: int64(h.Volume)})
	}

	history = history.Sorted()
	if days > 0 && len(history) > days {
		history = history[len(history)-days:]
	}
	return history, nil
}

// Search looks up symbols by ticker or company name
func (s *FMPService) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", "10")

	var matches []fmpSearchResult
	if err := s.get(ctx, "search", "/search", params, &matches); err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, models.SearchResult{
			Symbol:   m.Symbol,
			Name:     m.Name,
			Type:     "Equity",
			Region:   m.ExchangeShortName,
			Currency: m.Currency,
		})
	}
	return results, nil
}

func (s *FMPService) GetRSI(ctx context.Context, symbol string) (*models.TechnicalSignals, error) {
	return nil, ErrNotSupported
}

func (s *FMPService) GetEarnings(ctx context.Context, symbol string) ([]models.EarningsReport, error) {
	return nil, ErrNotSupported
}

func (s *FMPService) GetNewsSentiment(ctx context.Context, symbol string) (*models.NewsSentiment, error) {
	return nil, ErrNotSupported
}

// finite drops NaN and infinite values from decoded pointers
func finite(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return models.Float(*p)
}
