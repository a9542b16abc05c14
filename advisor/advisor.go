// Package advisor gathers market data for a symbol, runs the analysis engine
// over it and optionally asks an LLM for a written professional view.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"stockpulse/analysis"
	"stockpulse/models"
	"stockpulse/observability"
	"stockpulse/services"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Names used in StockReport.MissingData
const (
	MissingFundamentals = "fundamentals"
	MissingHistory      = "price_history"
	MissingRSI          = "rsi"
	MissingEarnings     = "earnings"
	MissingNews         = "news_sentiment"
	MissingProfessional = "professional_analysis"
)

var (
	// ErrInvalidSymbol is returned for symbols that fail validation
	ErrInvalidSymbol = errors.New("invalid symbol")
	// ErrSymbolNotFound is returned when no provider can quote the symbol
	ErrSymbolNotFound = errors.New("symbol not found")
)

// ReportCache stores finished reports between requests
type ReportCache interface {
	GetCachedReport(ctx context.Context, symbol string) (*models.StockReport, error)
	SetCachedReport(ctx context.Context, report *models.StockReport, ttl time.Duration) error
}

// Options tunes an Advisor. Zero values fall back to the defaults below.
type Options struct {
	Timeout     time.Duration
	CacheTTL    time.Duration
	HistoryDays int
	// Now is the clock used for the analysis as-of time
	Now func() time.Time
}

const (
	defaultTimeout     = 30 * time.Second
	defaultHistoryDays = 120
)

type Advisor struct {
	market services.MarketDataProvider
	llm    services.LLMService
	cache  ReportCache
	opts   Options
	group  singleflight.Group
}

// New creates an Advisor. llm and cache may be nil.
func New(market services.MarketDataProvider, llm services.LLMService, cache ReportCache, opts Options) *Advisor {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.HistoryDays <= 0 {
		opts.HistoryDays = defaultHistoryDays
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Advisor{market: market, llm: llm, cache: cache, opts: opts}
}

// HasLLM reports whether professional narratives are enabled
func (a *Advisor) HasLLM() bool { return a.llm != nil }

// Analyze returns a report for symbol, served from the cache when fresh.
// Concurrent requests for the same symbol share one analysis.
func (a *Advisor) Analyze(ctx context.Context, symbol string) (*models.StockReport, error) {
	return a.analyze(ctx, symbol, true)
}

// AnalyzeFresh ignores any cached report and replaces it with a new one
func (a *Advisor) AnalyzeFresh(ctx context.Context, symbol string) (*models.StockReport, error) {
	return a.analyze(ctx, symbol, false)
}

func (a *Advisor) analyze(ctx context.Context, symbol string, useCache bool) (*models.StockReport, error) {
	symbol = models.NormalizeSymbol(symbol)
	if err := models.ValidateSymbol(symbol); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSymbol, err)
	}

	if useCache {
		if report := a.cached(ctx, symbol); report != nil {
			return report, nil
		}
	}

	key := symbol
	if !useCache {
		key = "fresh:" + symbol
	}
	// The shared build outlives any single caller; build bounds it with
	// opts.Timeout and each caller stops waiting when its own ctx ends.
	shared := context.WithoutCancel(ctx)
	ch := a.group.DoChan(key, func() (any, error) {
		return a.build(shared, symbol)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.StockReport), nil
	}
}

func (a *Advisor) cached(ctx context.Context, symbol string) *models.StockReport {
	if a.cache == nil || a.opts.CacheTTL <= 0 {
		return nil
	}
	report, err := a.cache.GetCachedReport(ctx, symbol)
	if err != nil {
		observability.WithContext(ctx).Warn("report cache read failed", "symbol", symbol, "error", err)
		observability.GetMetrics().RecordAnalysisError("cache")
		return nil
	}
	return report
}

// marketData is the raw input gathered for one analysis
type marketData struct {
	quote        *models.Quote
	fundamentals *models.FundamentalSnapshot
	history      models.PriceHistory
	signals      models.TechnicalSignals
	earnings     []models.EarningsReport
	news         *models.NewsSentiment
	missing      []string
}

func (a *Advisor) build(ctx context.Context, symbol string) (*models.StockReport, error) {
	metrics := observability.GetMetrics()
	metrics.RecordAnalysisRequest(symbol)
	timer := metrics.NewTimer()
	log := observability.WithContext(ctx).With("symbol", symbol)

	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	data, err := a.fetch(ctx, symbol)
	if err != nil {
		timer.ObserveAnalysis("error")
		metrics.RecordAnalysisError("fetch")
		return nil, err
	}

	result := analysis.Analyze(analysis.Input{
		Symbol:       symbol,
		Fundamentals: data.fundamentals,
		Price:        data.quote.Price.InexactFloat64(),
		History:      data.history,
		Signals:      data.signals,
		Earnings:     data.earnings,
		News:         data.news,
		AsOf:         a.opts.Now(),
	})
	metrics.RecordAnalysisResult(string(result.Recommendation), string(result.Confidence),
		string(result.PriceTargets.CurrentValue), result.FinancialHealthScore, result.Diagnostics.BandInverted)
	if result.Diagnostics.BandInverted {
		log.Warn("price band inverted before clamp",
			"pre_clamp_buy", result.Diagnostics.PreClampBuy,
			"pre_clamp_sell", result.Diagnostics.PreClampSell)
	}

	report := &models.StockReport{
		Symbol:       symbol,
		Quote:        data.quote,
		Fundamentals: data.fundamentals,
		Analysis:     result,
		MissingData:  data.missing,
		GeneratedAt:  result.AsOf,
	}

	if a.llm != nil {
		professional, err := a.professional(ctx, report)
		if err != nil {
			log.Warn("professional analysis unavailable", "model", a.llm.Model(), "error", err)
			metrics.RecordAnalysisError("llm")
			report.MissingData = append(report.MissingData, MissingProfessional)
		} else {
			report.Professional = professional
		}
	}

	if a.cache != nil && a.opts.CacheTTL > 0 {
		// the request context may be nearly spent; the write gets its own budget
		cacheCtx, cacheCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := a.cache.SetCachedReport(cacheCtx, report, a.opts.CacheTTL); err != nil {
			log.Warn("report cache write failed", "error", err)
			metrics.RecordAnalysisError("cache")
		}
		cacheCancel()
	}

	timer.ObserveAnalysis("success")
	log.Info("analysis complete",
		"recommendation", result.Recommendation,
		"confidence", result.Confidence,
		"health_score", result.FinancialHealthScore,
		"missing", report.MissingData)

	return report, nil
}

// fetch gathers all inputs concurrently. The quote is required and its failure
// cancels the rest; every other input degrades to missing.
func (a *Advisor) fetch(ctx context.Context, symbol string) (*marketData, error) {
	data := &marketData{}
	var mu sync.Mutex

	optional := func(name string, err error) {
		if errors.Is(err, context.Canceled) {
			return
		}
		observability.WithContext(ctx).Debug("optional input unavailable", "symbol", symbol, "input", name, "error", err)
		mu.Lock()
		data.missing = append(data.missing, name)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		quote, err := a.market.GetQuote(gctx, symbol)
		if errors.Is(err, services.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
		}
		if err != nil {
			return fmt.Errorf("failed to fetch quote for %s: %w", symbol, err)
		}
		if !quote.Price.IsPositive() {
			return fmt.Errorf("%w: %s has no price", ErrSymbolNotFound, symbol)
		}
		data.quote = quote
		return nil
	})

	g.Go(func() error {
		f, err := a.market.GetFundamentals(gctx, symbol)
		if err != nil {
			optional(MissingFundamentals, err)
			return nil
		}
		data.fundamentals = f
		return nil
	})

	g.Go(func() error {
		h, err := a.market.GetDailyHistory(gctx, symbol, a.opts.HistoryDays)
		if err == nil && len(h) == 0 {
			err = services.ErrNotFound
		}
		if err != nil {
			optional(MissingHistory, err)
			return nil
		}
		data.history = h
		return nil
	})

	g.Go(func() error {
		s, err := a.market.GetRSI(gctx, symbol)
		if err == nil && (s == nil || s.RSI == nil) {
			err = services.ErrNotFound
		}
		if err != nil {
			optional(MissingRSI, err)
			return nil
		}
		data.signals = *s
		return nil
	})

	g.Go(func() error {
		e, err := a.market.GetEarnings(gctx, symbol)
		if err == nil && len(e) == 0 {
			err = services.ErrNotFound
		}
		if err != nil {
			optional(MissingEarnings, err)
			return nil
		}
		data.earnings = e
		return nil
	})

	g.Go(func() error {
		n, err := a.market.GetNewsSentiment(gctx, symbol)
		if err == nil && (n == nil || n.Score == nil) {
			err = services.ErrNotFound
		}
		if err != nil {
			optional(MissingNews, err)
			return nil
		}
		data.news = n
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Strings(data.missing)
	return data, nil
}
