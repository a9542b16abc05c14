package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"stockpulse/models"
	"stockpulse/observability"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	avDateLayout = "2006-01-02"
	// rsiPeriod is the Wilder lookback used for the daily RSI reading
	rsiPeriod = 14
	// compactPoints is how many daily bars TIME_SERIES_DAILY returns in compact mode
	compactPoints = 100
)

// AlphaVantageService handles communication with Alpha Vantage API
type AlphaVantageService struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	retry      RetryConfig
	limiter    *rate.Limiter
}

// NewAlphaVantageService creates a new AlphaVantageService instance.
// An empty baseURL selects the public endpoint.
func NewAlphaVantageService(apiKey, baseURL string) *AlphaVantageService {
	if baseURL == "" {
		baseURL = "https://www.alphavantage.co/query"
	}
	return &AlphaVantageService{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		retry:      DefaultRetryConfig,
	}
}

// WithRateLimit throttles requests to perMinute with an equal burst.
// A non-positive value disables throttling.
func (s *AlphaVantageService) WithRateLimit(perMinute int) *AlphaVantageService {
	if perMinute <= 0 {
		s.limiter = nil
		return s
	}
	s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	return s
}

func (s *AlphaVantageService) Name() string { return BreakerAlphaVantage }

// avEnvelope captures the in-band error shapes Alpha Vantage returns with a 200
type avEnvelope struct {
	Note         string `json:"Note"`
	Information  string `json:"Information"`
	ErrorMessage string `json:"Error Message"`
}

// query performs a GET against the API and decodes the body into out.
// Calls go through the alphavantage breaker and are retried on transient errors.
func (s *AlphaVantageService) query(ctx context.Context, operation string, params url.Values, out any) error {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlphaVantage, operation)
	timer := metrics.NewTimer()

	params.Set("apikey", s.apiKey)
	reqURL := s.baseURL + "?" + params.Encode()

	_, err := WithCircuitBreaker(ctx, BreakerAlphaVantage, func() (struct{}, error) {
		return struct{}{}, WithRetry(ctx, s.retry, func() error {
			if s.limiter != nil {
				if err := s.limiter.Wait(ctx); err != nil {
					return Permanent(fmt.Errorf("%s rate limiter: %w", operation, err))
				}
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return Permanent(fmt.Errorf("failed to create %s request: %w", operation, err))
			}

			resp, err := s.httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %w", operation, err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("failed to read %s response: %w", operation, err)
			}

			if resp.StatusCode == http.StatusTooManyRequests {
				return RetryAfter(fmt.Errorf("%s: rate limit (429)", operation), retryAfterHeader(resp.Header))
			}
			if resp.StatusCode >= 500 {
				return fmt.Errorf("%s API returned status %d", operation, resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				return Permanent(fmt.Errorf("%s API returned status %d", operation, resp.StatusCode))
			}

			var env avEnvelope
			if err := json.Unmarshal(body, &env); err == nil {
				switch {
				case env.ErrorMessage != "":
					return Permanent(fmt.Errorf("%s: %s: %w", operation, env.ErrorMessage, ErrNotFound))
				case env.Note != "":
					return Permanent(fmt.Errorf("%s: rate limit: %s", operation, env.Note))
				case env.Information != "":
					return Permanent(fmt.Errorf("%s: rate limit: %s", operation, env.Information))
				}
			}

			if err := json.Unmarshal(body, out); err != nil {
				return Permanent(fmt.Errorf("failed to decode %s: %w", operation, err))
			}
			return nil
		})
	})

	timer.ObserveExternalAPI(BreakerAlphaVantage, operation)
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlphaVantage, operation, categorizeAPIError(err))
	}
	return err
}

// OverviewResponse represents the company overview response from Alpha Vantage
type OverviewResponse struct {
	Symbol          string `json:"Symbol"`
	Name            string `json:"Name"`
	Sector          string `json:"Sector"`
	Industry        string `json:"Industry"`
	MarketCap       string `json:"MarketCapitalization"`
	PERatio         string `json:"PERatio"`
	PEGRatio        string `json:"PEGRatio"`
	BookValue       string `json:"BookValue"`
	DividendYield   string `json:"DividendYield"`
	EPS             string `json:"EPS"`
	ProfitMargin    string `json:"ProfitMargin"`
	OperatingMargin string `json:"OperatingMarginTTM"`
	ReturnOnEquity  string `json:"ReturnOnEquityTTM"`
	RevenueTTM      string `json:"RevenueTTM"`
	GrossProfitTTM  string `json:"GrossProfitTTM"`
	PriceToBook     string `json:"PriceToBookRatio"`
}

// toSnapshot maps the overview strings onto optional numbers
func (o OverviewResponse) toSnapshot(symbol string) *models.FundamentalSnapshot {
	snap := &models.FundamentalSnapshot{
		Symbol:          symbol,
		Name:            o.Name,
		Sector:          o.Sector,
		Industry:        o.Industry,
		PERatio:         models.ParseOptionalFloat(o.PERatio),
		EPS:             models.ParseOptionalFloat(o.EPS),
		BookValue:       models.ParseOptionalFloat(o.BookValue),
		PEGRatio:        models.ParseOptionalFloat(o.PEGRatio),
		ReturnOnEquity:  models.ParseOptionalFloat(o.ReturnOnEquity),
		PriceToBook:     models.ParseOptionalFloat(o.PriceToBook),
		MarketCap:       models.ParseOptionalFloat(o.MarketCap),
		DividendYield:   models.ParseOptionalFloat(o.DividendYield),
		OperatingMargin: models.ParseOptionalFloat(o.OperatingMargin),
		NetMargin:       models.ParseOptionalFloat(o.ProfitMargin),
	}

	gross, okGross := models.Value(models.ParseOptionalFloat(o.GrossProfitTTM))
	revenue, okRevenue := models.Value(models.ParseOptionalFloat(o.RevenueTTM))
	if okGross && okRevenue && revenue != 0 {
		snap.GrossMargin = models.Float(gross / revenue)
	}

	return snap
}

// GetFundamentals returns the company overview as a fundamental snapshot
func (s *AlphaVantageService) GetFundamentals(ctx context.Context, symbol string) (*models.FundamentalSnapshot, error) {
	params := url.Values{}
	params.Set("function", "OVERVIEW")
	params.Set("symbol", symbol)

	var overview OverviewResponse
	if err := s.query(ctx, "overview", params, &overview); err != nil {
		return nil, err
	}

	// Unknown symbols come back as an empty object
	if overview.Symbol == "" {
		return nil, fmt.Errorf("overview for %s: %w", symbol, ErrNotFound)
	}

	snap := overview.toSnapshot(symbol)
	if snap.IsEmpty() {
		observability.WithSymbol(symbol).Warn("overview contained no usable fields")
	}
	return snap, nil
}

// QuoteResponse represents a quote from Alpha Vantage
type QuoteResponse struct {
	GlobalQuote struct {
		Symbol        string `json:"01. symbol"`
		Open          string `json:"02. open"`
		High          string `json:"03. high"`
		Low           string `json:"04. low"`
		Price         string `json:"05. price"`
		Volume        string `json:"06. volume"`
		LatestDay     string `json:"07. latest trading day"`
		PrevClose     string `json:"08. previous close"`
		Change        string `json:"09. change"`
		ChangePercent string `json:"10. change percent"`
	} `json:"Global Quote"`
}

// GetQuote returns the latest quote for a symbol
func (s *AlphaVantageService) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)

	var quoteResp QuoteResponse
	if err := s.query(ctx, "quote", params, &quoteResp); err != nil {
		return nil, err
	}

	gq := quoteResp.GlobalQuote
	price, err := decimal.NewFromString(gq.Price)
	if err != nil || !price.IsPositive() {
		return nil, fmt.Errorf("quote for %s: %w", symbol, ErrNotFound)
	}

	quote := &models.Quote{
		Symbol:        symbol,
		Price:         price,
		Open:          parseDecimal(gq.Open),
		High:          parseDecimal(gq.High),
		Low:           parseDecimal(gq.Low),
		PreviousClose: parseDecimal(gq.PrevClose),
		Change:        parseDecimal(gq.Change),
		Source:        BreakerAlphaVantage,
		Timestamp:     time.Now(),
	}
	if pct, ok := models.Value(models.ParsePercentPoints(gq.ChangePercent)); ok {
		quote.ChangePercent = pct
	}
	if gq.Volume != "" {
		if volume, err := strconv.ParseInt(gq.Volume, 10, 64); err == nil {
			quote.Volume = volume
		} else {
			observability.WithSymbol(symbol).Debug("failed to parse volume", "value", gq.Volume, "error", err)
		}
	}
	if day, err := time.Parse(avDateLayout, gq.LatestDay); err == nil {
		quote.Timestamp = day
	}

	return quote, nil
}

type dailySeriesResponse struct {
	Series map[string]struct {
		Close  string `json:"4. close"`
		Volume string `json:"5. volume"`
	} `json:"Time Series (Daily)"`
}

// GetDailyHistory returns up to days daily closes, oldest first
func (s *AlphaVantageService) GetDailyHistory(ctx context.Context, symbol string, days int) (models.PriceHistory, error) {
	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY")
	params.Set("symbol", symbol)
	if days > compactPoints {
		params.Set("outputsize", "full")
	} else {
		params.Set("outputsize", "compact")
	}

	var series dailySeriesResponse
	if err := s.query(ctx, "daily", params, &series); err != nil {
		return nil, err
	}
	if len(series.Series) == 0 {
		return nil, fmt.Errorf("daily series for %s: %w", symbol, ErrNotFound)
	}

	history := make(models.PriceHistory, 0, len(series.Series))
	for day, bar := range series.Series {
		date, err := time.Parse(avDateLayout, day)
		if err != nil {
			continue
		}
		closePrice, ok := models.Value(models.ParseOptionalFloat(bar.Close))
		if !ok {
			continue
		}
		volume, _ := strconv.ParseInt(bar.Volume, 10, 64)
		history = append(history, models.DailyPricePoint{Date: date, Close: closePrice, Volume: volume})
	}

	history = history.Sorted()
	if days > 0 && len(history) > days {
		history = history[len(history)-days:]
	}
	return history, nil
}

type rsiResponse struct {
	Series map[string]struct {
		RSI string `json:"RSI"`
	} `json:"Technical Analysis: RSI"`
}

// GetRSI returns the most recent daily 14-period RSI
func (s *AlphaVantageService) GetRSI(ctx context.Context, symbol string) (*models.TechnicalSignals, error) {
	params := url.Values{}
	params.Set("function", "RSI")
	params.Set("symbol", symbol)
	params.Set("interval", "daily")
	params.Set("time_period", strconv.Itoa(rsiPeriod))
	params.Set("series_type", "close")

	var resp rsiResponse
	if err := s.query(ctx, "rsi", params, &resp); err != nil {
		return nil, err
	}

	// Dates are ISO formatted, so the lexical maximum is the latest reading
	var latest string
	for day := range resp.Series {
		if day > latest {
			latest = day
		}
	}
	if latest == "" {
		return nil, fmt.Errorf("rsi for %s: %w", symbol, ErrNotFound)
	}

	return &models.TechnicalSignals{RSI: models.ParseOptionalFloat(resp.Series[latest].RSI)}, nil
}

type earningsResponse struct {
	QuarterlyEarnings []struct {
		FiscalDateEnding string `json:"fiscalDateEnding"`
		ReportedEPS      string `json:"reportedEPS"`
		EstimatedEPS     string `json:"estimatedEPS"`
	} `json:"quarterlyEarnings"`
}

// GetEarnings returns quarterly earnings, most recent first
func (s *AlphaVantageService) GetEarnings(ctx context.Context, symbol string) ([]models.EarningsReport, error) {
	params := url.Values{}
	params.Set("function", "EARNINGS")
	params.Set("symbol", symbol)

	var resp earningsResponse
	if err := s.query(ctx, "earnings", params, &resp); err != nil {
		return nil, err
	}

	reports := make([]models.EarningsReport, 0, len(resp.QuarterlyEarnings))
	for _, q := range resp.QuarterlyEarnings {
		date, err := time.Parse(avDateLayout, q.FiscalDateEnding)
		if err != nil {
			continue
		}
		reports = append(reports, models.EarningsReport{
			FiscalDateEnding: date,
			ReportedEPS:      models.ParseOptionalFloat(q.ReportedEPS),
			EstimatedEPS:     models.ParseOptionalFloat(q.EstimatedEPS),
		})
	}
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].FiscalDateEnding.After(reports[j].FiscalDateEnding)
	})

	return reports, nil
}

// NewsResponse represents the news sentiment response from Alpha Vantage
type NewsResponse struct {
	Feed []struct {
		Title                 string `json:"title"`
		TimePublished         string `json:"time_published"`
		OverallSentimentScore any    `json:"overall_sentiment_score"`
		TickerSentiment       []struct {
			Ticker         string `json:"ticker"`
			RelevanceScore string `json:"relevance_score"`
			SentimentScore string `json:"ticker_sentiment_score"`
		} `json:"ticker_sentiment"`
	} `json:"feed"`
}

// GetNewsSentiment averages the per-ticker sentiment of recent articles,
// falling back to an article's overall score when it has no ticker entry
func (s *AlphaVantageService) GetNewsSentiment(ctx context.Context, symbol string) (*models.NewsSentiment, error) {
	params := url.Values{}
	params.Set("function", "NEWS_SENTIMENT")
	params.Set("tickers", symbol)
	params.Set("limit", "50")

	var resp NewsResponse
	if err := s.query(ctx, "news", params, &resp); err != nil {
		return nil, err
	}

	var sum float64
	var n int
	for _, item := range resp.Feed {
		var score *float64
		for _, ts := range item.TickerSentiment {
			if strings.EqualFold(ts.Ticker, symbol) {
				score = models.ParseOptionalFloat(ts.SentimentScore)
				break
			}
		}
		if score == nil {
			score = anyToFloat(item.OverallSentimentScore)
		}
		if v, ok := models.Value(score); ok {
			sum += v
			n++
		}
	}

	sentiment := &models.NewsSentiment{ArticleCount: len(resp.Feed)}
	if n > 0 {
		sentiment.Score = models.Float(sum / float64(n))
	}
	return sentiment, nil
}

type searchResponse struct {
	BestMatches []struct {
		Symbol     string `json:"1. symbol"`
		Name       string `json:"2. name"`
		Type       string `json:"3. type"`
		Region     string `json:"4. region"`
		Currency   string `json:"8. currency"`
		MatchScore string `json:"9. matchScore"`
	} `json:"bestMatches"`
}

// Search looks up symbols by ticker prefix or company name
func (s *AlphaVantageService) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	params := url.Values{}
	params.Set("function", "SYMBOL_SEARCH")
	params.Set("keywords", query)

	var resp searchResponse
	if err := s.query(ctx, "search", params, &resp); err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(resp.BestMatches))
	for _, m := range resp.BestMatches {
		score, _ := models.Value(models.ParseOptionalFloat(m.MatchScore))
		results = append(results, models.SearchResult{
			Symbol:   m.Symbol,
			Name:     m.Name,
			Type:     m.Type,
			Region:   m.Region,
			Currency: m.Currency,
			Score:    score,
		})
	}
	return results, nil
}

// parseDecimal returns zero for empty or malformed vendor values
func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// anyToFloat accepts the numbers and numeric strings Alpha Vantage mixes in the news feed
func anyToFloat(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return models.Float(t)
	case string:
		return models.ParseOptionalFloat(t)
	default:
		return nil
	}
}
