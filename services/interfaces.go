package services

import (
	"context"
	"errors"

	"stockpulse/models"
)

// ErrNotSupported is returned by a provider for data it does not offer.
// FailoverProvider skips such providers without counting a failover.
var ErrNotSupported = errors.New("operation not supported by provider")

// ErrNotFound is returned when a vendor has no data for the symbol
var ErrNotFound = errors.New("no data for symbol")

// MarketDataProvider defines the market data operations a vendor can serve
type MarketDataProvider interface {
	Name() string

	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
	GetFundamentals(ctx context.Context, symbol string) (*models.FundamentalSnapshot, error)
	GetDailyHistory(ctx context.Context, symbol string, days int) (models.PriceHistory, error)
	GetRSI(ctx context.Context, symbol string) (*models.TechnicalSignals, error)
	GetEarnings(ctx context.Context, symbol string) ([]models.EarningsReport, error)
	GetNewsSentiment(ctx context.Context, symbol string) (*models.NewsSentiment, error)
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
}

// LLMService defines the interface for single-shot text generation
type LLMService interface {
	// Model returns the model identifier used for completions
	Model() string
	InvokeWithPrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Notifier delivers plain text messages to a chat
type Notifier interface {
	Send(ctx context.Context, chatID, text string) error
}

// Compile-time interface verification
var _ MarketDataProvider = (*AlphaVantageService)(nil)
var _ MarketDataProvider = (*AlpacaService)(nil)
var _ MarketDataProvider = (*FMPService)(nil)
var _ MarketDataProvider = (*FailoverProvider)(nil)
var _ LLMService = (*BedrockService)(nil)
var _ LLMService = (*OpenAIService)(nil)
var _ Notifier = (*TelegramService)(nil)
