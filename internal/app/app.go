// Package app is the application facade shared by the HTTP handlers. All
// user data is scoped by a caller supplied user ID.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stockpulse/advisor"
	"stockpulse/alerts"
	"stockpulse/config"
	"stockpulse/models"
	"stockpulse/observability"
	"stockpulse/repository"
	"stockpulse/screener"
	"stockpulse/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrBusy                  = errors.New("analysis queue full, too many concurrent requests - try again later")
	ErrDatabaseUnavailable   = errors.New("database not initialized")
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("not found")
	ErrNotificationsDisabled = errors.New("telegram notifications are not configured")
)

// Analyzer produces stock reports
type Analyzer interface {
	Analyze(ctx context.Context, symbol string) (*models.StockReport, error)
	AnalyzeFresh(ctx context.Context, symbol string) (*models.StockReport, error)
	HasLLM() bool
}

// MarketData is the part of the market data layer used outside analysis
type MarketData interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
}

// App holds application dependencies using interfaces for testability.
// repo and notifier may be nil when the database or Telegram is not configured.
type App struct {
	cfg         *config.Config
	repo        repository.Store
	advisor     Analyzer
	market      MarketData
	notifier    services.Notifier
	screener    *screener.Screener
	analysisSem chan struct{}
	health      *HealthCache
}

// New creates a new App
func New(cfg *config.Config, repo repository.Store, analyzer Analyzer, market MarketData, notifier services.Notifier) *App {
	limit := cfg.Analysis.ConcurrencyLimit
	if limit <= 0 {
		limit = 1
	}
	a := &App{
		cfg:         cfg,
		repo:        repo,
		advisor:     analyzer,
		market:      market,
		notifier:    notifier,
		analysisSem: make(chan struct{}, limit),
		health:      NewHealthCache(time.Duration(cfg.Analysis.HealthCacheTTLSeconds) * time.Second),
	}
	if analyzer != nil {
		a.screener = screener.New(analyzer, screener.Options{
			MaxConcurrent: limit,
			Timeout:       cfg.AnalysisTimeout(),
		})
	}
	return a
}

// Shutdown releases the database pool
func (a *App) Shutdown() {
	if a.repo != nil {
		a.repo.Close()
	}
}

// HasDatabase reports whether user data can be stored
func (a *App) HasDatabase() bool { return a.repo != nil }

// HasNotifications reports whether reports can be sent to Telegram
func (a *App) HasNotifications() bool { return a.notifier != nil }

// Analyze returns the report for a symbol. fresh bypasses the report cache.
// At most Analysis.ConcurrencyLimit analyses run at once; extra requests
// fail fast with ErrBusy instead of queueing.
func (a *App) Analyze(ctx context.Context, symbol string, fresh bool) (*models.StockReport, error) {
	if a.advisor == nil {
		return nil, fmt.Errorf("advisor not initialized")
	}

	select {
	case a.analysisSem <- struct{}{}:
		defer func() { <-a.analysisSem }()
	default:
		observability.GetMetrics().RecordAnalysisError("busy")
		return nil, ErrBusy
	}

	var report *models.StockReport
	var err error
	if fresh {
		report, err = a.advisor.AnalyzeFresh(ctx, symbol)
	} else {
		report, err = a.advisor.Analyze(ctx, symbol)
	}
	return report, translate(err)
}

// ShareReport sends the digest of a symbol's report to a Telegram chat.
// An empty chatID uses the configured default chat.
func (a *App) ShareReport(ctx context.Context, symbol, chatID string) (*models.StockReport, error) {
	if a.notifier == nil {
		return nil, ErrNotificationsDisabled
	}

	report, err := a.Analyze(ctx, symbol, false)
	if err != nil {
		return nil, err
	}

	if err := a.notifier.Send(ctx, strings.TrimSpace(chatID), alerts.FormatReport(report)); err != nil {
		if errors.Is(err, services.ErrNoChatID) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("failed to send report: %w", err)
	}
	return report, nil
}

// GetQuote returns the latest price for a symbol
func (a *App) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol, err := parseSymbol(symbol)
	if err != nil {
		return nil, err
	}
	quote, err := a.market.GetQuote(ctx, symbol)
	if errors.Is(err, services.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}
	return quote, err
}

// Search looks up symbols by name or ticker fragment
func (a *App) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", ErrInvalidInput)
	}
	if len(query) > 64 {
		return nil, fmt.Errorf("%w: search query too long (max 64 characters)", ErrInvalidInput)
	}

	results, err := a.market.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []models.SearchResult{}
	}
	return results, nil
}

// GetWatchlist returns the user's watched symbols
func (a *App) GetWatchlist(ctx context.Context, userID string) ([]models.WatchlistItem, error) {
	if a.repo == nil {
		return nil, ErrDatabaseUnavailable
	}
	return a.repo.GetWatchlist(ctx, userID)
}

// AddToWatchlist adds a symbol and returns the updated list
func (a *App) AddToWatchlist(ctx context.Context, userID, symbol string) ([]models.WatchlistItem, error) {
	if a.repo == nil {
		return nil, ErrDatabaseUnavailable
	}
	symbol, err := parseSymbol(symbol)
	if err != nil {
		return nil, err
	}

	added, err := a.repo.AddToWatchlist(ctx, &models.WatchlistItem{UserID: userID, Symbol: symbol, AddedAt: time.Now()})
	if err != nil {
		return nil, err
	}
	if added {
		observability.WithUser(userID).Info("symbol added to watchlist", "symbol", symbol)
	}
	return a.repo.GetWatchlist(ctx, userID)
}

// RemoveFromWatchlist removes a symbol and returns the updated list
func (a *App) RemoveFromWatchlist(ctx context.Context, userID, symbol string) ([]models.WatchlistItem, error) {
	if a.repo == nil {
		return nil, ErrDatabaseUnavailable
	}
	symbol, err := parseSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if err := a.repo.RemoveFromWatchlist(ctx, userID, symbol); err != nil {
		return nil, translate(err)
	}
	return a.repo.GetWatchlist(ctx, userID)
}

// WatchlistSummary analyzes every watched symbol and ranks them. The whole
// screen holds a single analysis slot so it cannot starve single lookups.
func (a *App) WatchlistSummary(ctx context.Context, userID string) (*models.ScreenRun, error) {
	if a.repo == nil {
		return nil, ErrDatabaseUnavailable
	}
	if a.screener == nil {
		return nil, fmt.Errorf("advisor not initialized")
	}

	items, err := a.repo.GetWatchlist(ctx, userID)
	if err != nil {
		return nil, err
	}
	symbols := make([]string, len(items))
	for i, item := range items {
		symbols[i] = item.Symbol
	}

	select {
	case a.analysisSem <- struct{}{}:
		defer func() { <-a.analysisSem }()
	default:
		observability.GetMetrics().RecordAnalysisError("busy")
		return nil, ErrBusy
	}

	run := a.screener.Screen(ctx, symbols)
	observability.WithUser(userID).Info("watchlist summarized",
		"symbols", len(symbols),
		"failed", run.Failed)
	return run, nil
}

// AlertRequest carries the user supplied fields of a new price alert
type AlertRequest struct {
	Symbol      string `json:"symbol"`
	Condition   string `json:"condition"`
	TargetPrice string `json:"target_price"`
	ChatID      string `json:"chat_id"`
}

// GetAlerts returns the user's active and triggered alerts
func (a *App) GetAlerts(ctx context.Context, userID string) ([]models.PriceAlert, error) {
	if a.repo == nil {
		return nil, ErrDatabaseUnavailable
	}
	return a.repo.GetAlerts(ctx, userID)
}

// CreateAlert validates and stores a new price alert
func (a *App) CreateAlert(ctx context.Context, userID string, req AlertRequest) (*models.PriceAlert, error) {
	if a.repo == nil {
		return nil, ErrDatabaseUnavailable
	}
	symbol, err := parseSymbol(req.Symbol)
	if err != nil {
		return nil, err
	}
	target, err := decimal.NewFromString(strings.TrimSpace(req.TargetPrice))
	if err != nil {
		return nil, fmt.Errorf("%w: target price must be a number", ErrInvalidInput)
	}

	condition := models.AlertCondition(strings.ToLower(strings.TrimSpace(req.Condition)))
	alert := models.NewPriceAlert(userID, symbol, condition, target, strings.TrimSpace(req.ChatID))
	if err := alert.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := a.repo.CreateAlert(ctx, alert); err != nil {
		return nil, err
	}
	observability.WithUser(userID).Info("price alert created",
		"symbol", symbol,
		"condition", condition,
		"target", target.String())
	return alert, nil
}

// CancelAlert cancels one of the user's alerts
func (a *App) CancelAlert(ctx context.Context, userID, id string) error {
	if a.repo == nil {
		return ErrDatabaseUnavailable
	}
	alertID, err := ParseUUID(id)
	if err != nil {
		return err
	}
	return translate(a.repo.CancelAlert(ctx, userID, alertID))
}

// GetNotes returns the user's notes, optionally for one symbol
func (a *App) GetNotes(ctx context.Context, userID, symbol string) ([]models.Note, error) {
	if a.repo == nil {
		return nil, ErrDatabaseUnavailable
	}
	if symbol != "" {
		var err error
		if symbol, err = parseSymbol(symbol); err != nil {
			return nil, err
		}
	}
	return a.repo.GetNotes(ctx, userID, symbol)
}

// CreateNote stores a research note for a symbol
func (a *App) CreateNote(ctx context.Context, userID, symbol, body string) (*models.Note, error) {
	if a.repo == nil {
		return nil, ErrDatabaseUnavailable
	}
	symbol, err := parseSymbol(symbol)
	if err != nil {
		return nil, err
	}

	note := models.NewNote(userID, symbol, body)
	if err := note.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := a.repo.CreateNote(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

// UpdateNote replaces the body of one of the user's notes
func (a *App) UpdateNote(ctx context.Context, userID, id, body string) (*models.Note, error) {
	if a.repo == nil {
		return nil, ErrDatabaseUnavailable
	}
	noteID, err := ParseUUID(id)
	if err != nil {
		return nil, err
	}

	note := &models.Note{ID: noteID, UserID: userID, Body: body}
	if err := note.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := a.repo.UpdateNote(ctx, note); err != nil {
		return nil, translate(err)
	}
	return note, nil
}

// DeleteNote removes one of the user's notes
func (a *App) DeleteNote(ctx context.Context, userID, id string) error {
	if a.repo == nil {
		return ErrDatabaseUnavailable
	}
	noteID, err := ParseUUID(id)
	if err != nil {
		return err
	}
	return translate(a.repo.DeleteNote(ctx, userID, noteID))
}

// ParseUUID parses an identifier from a request path
func ParseUUID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid UUID: %v", ErrInvalidInput, err)
	}
	return parsed, nil
}

func parseSymbol(symbol string) (string, error) {
	symbol = models.NormalizeSymbol(symbol)
	if err := models.ValidateSymbol(symbol); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return symbol, nil
}

// translate maps lower layer sentinels onto the App's errors
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, advisor.ErrSymbolNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, advisor.ErrInvalidSymbol):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}

// AnalysisSemCapacity returns the capacity of the analysis semaphore (for testing)
func (a *App) AnalysisSemCapacity() int {
	return cap(a.analysisSem)
}
