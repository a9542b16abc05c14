package services

import (
	"context"
	"errors"
	"fmt"

	"stockpulse/models"
	"stockpulse/observability"
)

// FailoverProvider asks each vendor in priority order and returns the first
// answer. Vendors that do not offer an operation are skipped silently; any
// other failure is logged, counted as a failover, and the next vendor is tried.
type FailoverProvider struct {
	providers []MarketDataProvider
}

func NewFailoverProvider(providers ...MarketDataProvider) *FailoverProvider {
	return &FailoverProvider{providers: providers}
}

func (f *FailoverProvider) Name() string { return "failover" }

// Providers returns the configured vendor names in priority order
func (f *FailoverProvider) Providers() []string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.Name()
	}
	return names
}

func firstOf[T any](ctx context.Context, f *FailoverProvider, operation, symbol string, call func(MarketDataProvider) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for _, p := range f.providers {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := call(p)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, ErrNotSupported) {
			continue
		}

		lastErr = err
		observability.WithContext(ctx).Warn("market data provider failed",
			"provider", p.Name(),
			"operation", operation,
			"symbol", symbol,
			"error", err)
		observability.GetMetrics().RecordProviderFailover(p.Name(), operation)
	}

	if lastErr == nil {
		return zero, fmt.Errorf("%s: %w", operation, ErrNotSupported)
	}
	return zero, lastErr
}

func (f *FailoverProvider) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	return firstOf(ctx, f, "quote", symbol, func(p MarketDataProvider) (*models.Quote, error) {
		return p.GetQuote(ctx, symbol)
	})
}

func (f *FailoverProvider) GetDailyHistory(ctx context.Context, symbol string, days int) (models.PriceHistory, error) {
	return firstOf(ctx, f, "history", symbol, func(p MarketDataProvider) (models.PriceHistory, error) {
		return p.GetDailyHistory(ctx, symbol, days)
	})
}

func (f *FailoverProvider) GetRSI(ctx context.Context, symbol string) (*models.TechnicalSignals, error) {
	return firstOf(ctx, f, "rsi", symbol, func(p MarketDataProvider) (*models.TechnicalSignals, error) {
		return p.GetRSI(ctx, symbol)
	})
}

func (f *FailoverProvider) GetEarnings(ctx context.Context, symbol string) ([]models.EarningsReport, error) {
	return firstOf(ctx, f, "earnings", symbol, func(p MarketDataProvider) ([]models.EarningsReport, error) {
		return p.GetEarnings(ctx, symbol)
	})
}

func (f *FailoverProvider) GetNewsSentiment(ctx context.Context, symbol string) (*models.NewsSentiment, error) {
	return firstOf(ctx, f, "news", symbol, func(p MarketDataProvider) (*models.NewsSentiment, error) {
		return p.GetNewsSentiment(ctx, symbol)
	})
}

func (f *FailoverProvider) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	return firstOf(ctx, f, "search", query, func(p MarketDataProvider) ([]models.SearchResult, error) {
		return p.Search(ctx, query)
	})
}

// GetFundamentals merges snapshots field by field in priority order: a value
// from an earlier vendor is never overwritten, gaps are filled from later ones.
// Vendors after the first success are only asked while gaps remain.
func (f *FailoverProvider) GetFundamentals(ctx context.Context, symbol string) (*models.FundamentalSnapshot, error) {
	var merged *models.FundamentalSnapshot
	var lastErr error

	for _, p := range f.providers {
		if err := ctx.Err(); err != nil {
			if merged != nil {
				return merged, nil
			}
			return nil, err
		}
		if merged != nil && !hasGaps(merged) {
			break
		}

		snap, err := p.GetFundamentals(ctx, symbol)
		if errors.Is(err, ErrNotSupported) {
			continue
		}
		if err != nil {
			lastErr = err
			observability.WithContext(ctx).Warn("fundamentals provider failed",
				"provider", p.Name(),
				"symbol", symbol,
				"error", err)
			observability.GetMetrics().RecordProviderFailover(p.Name(), "fundamentals")
			continue
		}

		if merged == nil {
			merged = snap
			continue
		}
		fillGaps(merged, snap)
	}

	if merged != nil {
		return merged, nil
	}
	if lastErr == nil {
		return nil, fmt.Errorf("fundamentals: %w", ErrNotSupported)
	}
	return nil, lastErr
}

// snapshotFields lists the optional numbers of a snapshot for merging
func snapshotFields(s *models.FundamentalSnapshot) []**float64 {
	return []**float64{
		&s.PERatio, &s.EPS, &s.BookValue, &s.PEGRatio, &s.ReturnOnEquity, &s.DebtToEquity,
		&s.PriceToBook, &s.MarketCap, &s.DividendYield, &s.GrossMargin, &s.OperatingMargin, &s.NetMargin,
	}
}

func hasGaps(s *models.FundamentalSnapshot) bool {
	if s.Sector == "" || s.Industry == "" {
		return true
	}
	for _, field := range snapshotFields(s) {
		if *field == nil {
			return true
		}
	}
	return false
}

func fillGaps(dst, src *models.FundamentalSnapshot) {
	if dst.Name == "" {
		dst.Name = src.Name
	}
	if dst.Sector == "" {
		dst.Sector = src.Sector
	}
	if dst.Industry == "" {
		dst.Industry = src.Industry
	}
	srcFields := snapshotFields(src)
	for i, field := range snapshotFields(dst) {
		if *field == nil && *srcFields[i] != nil {
			*field = *srcFields[i]
		}
	}
}
