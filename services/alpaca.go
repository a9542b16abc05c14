package services

import (
	"context"
	"fmt"
	"time"

	"stockpulse/models"
	"stockpulse/observability"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
)

// alpacaDataClient is the subset of the marketdata client used here (for testing)
type alpacaDataClient interface {
	GetLatestTrade(symbol string, req marketdata.GetLatestTradeRequest) (*marketdata.Trade, error)
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaService serves quotes and daily history from Alpaca market data.
// Fundamentals, indicators and news are not offered by Alpaca.
type AlpacaService struct {
	dataClient alpacaDataClient
	feed       marketdata.Feed
	now        func() time.Time
}

// NewAlpacaService creates a new AlpacaService instance.
// An empty dataURL selects the library default endpoint.
func NewAlpacaService(apiKey, apiSecret, dataURL, feed string) *AlpacaService {
	dataClient := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   dataURL,
	})

	return newAlpacaServiceWithClient(dataClient, feed)
}

func newAlpacaServiceWithClient(client alpacaDataClient, feed string) *AlpacaService {
	f := marketdata.Feed(feed)
	if feed == "" {
		f = marketdata.IEX
	}
	return &AlpacaService{
		dataClient: client,
		feed:       f,
		now:        time.Now,
	}
}

func (s *AlpacaService) Name() string { return BreakerAlpaca }

// alpacaCall wraps a market data call with the breaker and external API metrics
func alpacaCall[T any](ctx context.Context, operation string, fn func() (T, error)) (T, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlpaca, operation)
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, BreakerAlpaca, fn)

	timer.ObserveExternalAPI(BreakerAlpaca, operation)
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlpaca, operation, categorizeAPIError(err))
	}
	return result, err
}

// GetQuote returns the latest trade for a symbol as a quote
func (s *AlpacaService) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	return alpacaCall(ctx, "latest_trade", func() (*models.Quote, error) {
		trade, err := s.dataClient.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{Feed: s.feed})
		if err != nil {
			return nil, fmt.Errorf("failed to get trade for %s: %w", symbol, err)
		}
		if trade == nil || trade.Price <= 0 {
			return nil, fmt.Errorf("latest trade for %s: %w", symbol, ErrNotFound)
		}

		return &models.Quote{
			Symbol:    symbol,
			Price:     decimal.NewFromFloat(trade.Price),
			Volume:    int64(trade.Size),
			Source:    BreakerAlpaca,
			Timestamp: trade.Timestamp,
		}, nil
	})
}

// GetDailyHistory returns up to days daily closes, oldest first
func (s *AlpacaService) GetDailyHistory(ctx context.Context, symbol string, days int) (models.PriceHistory, error) {
	end := s.now()
	// Calendar window wide enough to cover weekends and market holidays
	start := end.AddDate(0, 0, -(days*7/5 + 10))

	return alpacaCall(ctx, "bars", func() (models.PriceHistory, error) {
		bars, err := s.dataClient.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame:  marketdata.OneDay,
			Start:      start,
			End:        end,
			Feed:       s.feed,
			Adjustment: marketdata.Split,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get bars for %s: %w", symbol, err)
		}
		if len(bars) == 0 {
			return nil, fmt.Errorf("bars for %s: %w", symbol, ErrNotFound)
		}

		history := make(models.PriceHistory, 0, len(bars))
		for _, bar := range bars {
			history = append(history, models.DailyPricePoint{
				Date:   bar.Timestamp,
				Close:  bar.Close,
				Volume: int64(bar.Volume),
			})
		}

		history = history.Sorted()
		if days > 0 && len(history) > days {
			history = history[len(history)-days:]
		}
		return history, nil
	})
}

func (s *AlpacaService) GetFundamentals(ctx context.Context, symbol string) (*models.FundamentalSnapshot, error) {
	return nil, ErrNotSupported
}

func (s *AlpacaService) GetRSI(ctx context.Context, symbol string) (*models.TechnicalSignals, error) {
	return nil, ErrNotSupported
}

func (s *AlpacaService) GetEarnings(ctx context.Context, symbol string) ([]models.EarningsReport, error) {
	return nil, ErrNotSupported
}

func (s *AlpacaService) GetNewsSentiment(ctx context.Context, symbol string) (*models.NewsSentiment, error) {
	return nil, ErrNotSupported
}

func (s *AlpacaService) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	return nil, ErrNotSupported
}
