// Package screener analyzes a list of symbols in parallel and ranks them by
// how attractive each looks right now.
package screener

import (
	"context"
	"sync"
	"time"

	"stockpulse/models"
	"stockpulse/observability"
)

// Analyzer produces a report for one symbol
type Analyzer interface {
	Analyze(ctx context.Context, symbol string) (*models.StockReport, error)
}

// Options bounds a screen
type Options struct {
	MaxConcurrent int
	// Timeout caps the whole screen; symbols still running are reported as failed
	Timeout time.Duration
}

// Screener ranks symbols using full analyses
type Screener struct {
	analyzer Analyzer
	opts     Options
	now      func() time.Time
}

// New creates a Screener
func New(analyzer Analyzer, opts Options) *Screener {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	return &Screener{analyzer: analyzer, opts: opts, now: time.Now}
}

// Screen analyzes every symbol and returns them ranked. A failed analysis
// becomes a row with Error set; the screen itself never fails.
func (s *Screener) Screen(ctx context.Context, symbols []string) *models.ScreenRun {
	start := s.now()

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	results := s.analyzeInParallel(ctx, symbols)
	Rank(results)

	run := &models.ScreenRun{
		Results:    results,
		DurationMs: s.now().Sub(start).Milliseconds(),
		RunAt:      start,
	}
	for _, r := range results {
		if r.Analyzed() {
			run.Analyzed++
		} else {
			run.Failed++
		}
	}

	observability.Info("screen complete",
		"symbols", len(symbols),
		"analyzed", run.Analyzed,
		"failed", run.Failed,
		"duration_ms", run.DurationMs)
	return run
}

// analyzeInParallel runs analyses concurrently with a semaphore limit
func (s *Screener) analyzeInParallel(ctx context.Context, symbols []string) []models.ScreenResult {
	type analysisResult struct {
		index  int
		result models.ScreenResult
	}

	results := make(chan analysisResult, len(symbols))
	sem := make(chan struct{}, s.opts.MaxConcurrent)
	var wg sync.WaitGroup

	for i, symbol := range symbols {
		wg.Add(1)
		go func(idx int, symbol string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results <- analysisResult{idx, failed(symbol, ctx.Err())}
				return
			}

			report, err := s.analyzer.Analyze(ctx, symbol)
			if err != nil {
				observability.Warn("analysis failed for screened symbol",
					"symbol", symbol,
					"error", err)
				results <- analysisResult{idx, failed(symbol, err)}
				return
			}

			results <- analysisResult{idx, fromReport(report)}
		}(i, symbol)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]models.ScreenResult, len(symbols))
	for r := range results {
		out[r.index] = r.result
	}
	return out
}

func failed(symbol string, err error) models.ScreenResult {
	return models.ScreenResult{Symbol: symbol, Error: err.Error()}
}

func fromReport(report *models.StockReport) models.ScreenResult {
	a := report.Analysis
	r := models.ScreenResult{
		Symbol:         report.Symbol,
		Price:          a.CurrentPrice,
		Recommendation: a.Recommendation,
		Confidence:     a.Confidence,
		HealthScore:    a.FinancialHealthScore,
		Valuation:      a.PriceTargets.CurrentValue,
		GoodBuyPrice:   a.PriceTargets.GoodBuyPrice,
		GoodSellPrice:  a.PriceTargets.GoodSellPrice,
		ValueScore:     ValueScore(report.Fundamentals),
	}
	if report.Fundamentals != nil {
		r.Name = report.Fundamentals.Name
	}
	return r
}
