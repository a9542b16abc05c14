package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"stockpulse/config"
	"stockpulse/models"
	"stockpulse/repository"
	"stockpulse/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory repository.Store
type memStore struct {
	mu        sync.Mutex
	watchlist map[string][]models.WatchlistItem
	alerts    map[uuid.UUID]*models.PriceAlert
	notes     map[uuid.UUID]*models.Note
	healthErr error
	pings     int
	closed    bool
}

func newMemStore() *memStore {
	return &memStore{
		watchlist: map[string][]models.WatchlistItem{},
		alerts:    map[uuid.UUID]*models.PriceAlert{},
		notes:     map[uuid.UUID]*models.Note{},
	}
}

var _ repository.Store = (*memStore)(nil)

func (m *memStore) Close() { m.closed = true }

func (m *memStore) Health(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pings++
	return m.healthErr
}

func (m *memStore) Migrate(ctx context.Context) error { return nil }

func (m *memStore) GetWatchlist(ctx context.Context, userID string) ([]models.WatchlistItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.WatchlistItem{}, m.watchlist[userID]...), nil
}

func (m *memStore) AddToWatchlist(ctx context.Context, item *models.WatchlistItem) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.watchlist[item.UserID] {
		if existing.Symbol == item.Symbol {
			return false, nil
		}
	}
	m.watchlist[item.UserID] = append(m.watchlist[item.UserID], *item)
	return true, nil
}

func (m *memStore) RemoveFromWatchlist(ctx context.Context, userID, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.watchlist[userID]
	for i, item := range items {
		if item.Symbol == symbol {
			m.watchlist[userID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memStore) CreateAlert(ctx context.Context, alert *models.PriceAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *alert
	m.alerts[alert.ID] = &copied
	return nil
}

func (m *memStore) GetAlerts(ctx context.Context, userID string) ([]models.PriceAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.PriceAlert{}
	for _, a := range m.alerts {
		if a.UserID == userID && a.Status != models.AlertStatusCancelled {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) GetActiveAlerts(ctx context.Context) ([]models.PriceAlert, error) {
	return nil, errors.New("not used")
}

func (m *memStore) ClaimAlert(ctx context.Context, id uuid.UUID, price decimal.Decimal, at time.Time) (bool, error) {
	return false, errors.New("not used")
}

func (m *memStore) ReleaseAlert(ctx context.Context, id uuid.UUID) error {
	return errors.New("not used")
}

func (m *memStore) CancelAlert(ctx context.Context, userID string, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok || a.UserID != userID || a.Status != models.AlertStatusActive {
		return repository.ErrNotFound
	}
	a.Status = models.AlertStatusCancelled
	return nil
}

func (m *memStore) GetNotes(ctx context.Context, userID, symbol string) ([]models.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Note{}
	for _, n := range m.notes {
		if n.UserID == userID && (symbol == "" || n.Symbol == symbol) {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (m *memStore) CreateNote(ctx context.Context, note *models.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *note
	m.notes[note.ID] = &copied
	return nil
}

func (m *memStore) UpdateNote(ctx context.Context, note *models.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.notes[note.ID]
	if !ok || existing.UserID != note.UserID {
		return repository.ErrNotFound
	}
	existing.Body = note.Body
	existing.UpdatedAt = time.Now()
	note.Symbol = existing.Symbol
	note.CreatedAt = existing.CreatedAt
	note.UpdatedAt = existing.UpdatedAt
	return nil
}

func (m *memStore) DeleteNote(ctx context.Context, userID string, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.notes[id]
	if !ok || existing.UserID != userID {
		return repository.ErrNotFound
	}
	delete(m.notes, id)
	return nil
}

func (m *memStore) GetCachedReport(ctx context.Context, symbol string) (*models.StockReport, error) {
	return nil, nil
}

func (m *memStore) SetCachedReport(ctx context.Context, report *models.StockReport, ttl time.Duration) error {
	return nil
}

func (m *memStore) InvalidateReport(ctx context.Context, symbol string) error { return nil }

func (m *memStore) CleanExpiredCache(ctx context.Context) (int64, error) { return 0, nil }

// fakeAnalyzer returns a canned report or error. When block is set each
// call waits on it, which lets tests hold the analysis semaphore.
type fakeAnalyzer struct {
	report *models.StockReport
	err    error
	llm    bool
	block  chan struct{}

	mu          sync.Mutex
	cachedCalls int
	freshCalls  int
}

func (f *fakeAnalyzer) run(ctx context.Context, symbol string) (*models.StockReport, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.report != nil {
		return f.report, nil
	}
	return &models.StockReport{Symbol: models.NormalizeSymbol(symbol)}, nil
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, symbol string) (*models.StockReport, error) {
	f.mu.Lock()
	f.cachedCalls++
	f.mu.Unlock()
	return f.run(ctx, symbol)
}

func (f *fakeAnalyzer) AnalyzeFresh(ctx context.Context, symbol string) (*models.StockReport, error) {
	f.mu.Lock()
	f.freshCalls++
	f.mu.Unlock()
	return f.run(ctx, symbol)
}

func (f *fakeAnalyzer) HasLLM() bool { return f.llm }

type fakeMarket struct {
	quote   *models.Quote
	results []models.SearchResult
	err     error
}

func (f *fakeMarket) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.quote, nil
}

func (f *fakeMarket) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	return f.results, f.err
}

type sentMessage struct {
	chatID string
	text   string
}

type fakeNotifier struct {
	sent []sentMessage
	err  error
}

func (f *fakeNotifier) Send(ctx context.Context, chatID, text string) error {
	if f.err != nil {
		return f.err
	}
	if chatID == "" {
		chatID = "default-chat"
	}
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

var _ services.Notifier = (*fakeNotifier)(nil)

// testConfig returns a test configuration
func testConfig() *config.Config {
	return config.NewTestConfig()
}

// testApp creates an App over an in-memory store
func testApp() (*App, *memStore, *fakeAnalyzer) {
	store := newMemStore()
	analyzer := &fakeAnalyzer{}
	return New(testConfig(), store, analyzer, &fakeMarket{}, nil), store, analyzer
}
