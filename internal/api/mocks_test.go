package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"stockpulse/config"
	"stockpulse/internal/app"
	"stockpulse/models"
	"stockpulse/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// fakeStore keeps user data in memory
type fakeStore struct {
	mu        sync.Mutex
	watchlist map[string][]models.WatchlistItem
	alerts    []models.PriceAlert
	notes     []models.Note
}

func newFakeStore() *fakeStore {
	return &fakeStore{watchlist: map[string][]models.WatchlistItem{}}
}

var _ repository.Store = (*fakeStore)(nil)

func (s *fakeStore) Close()                            {}
func (s *fakeStore) Health(ctx context.Context) error  { return nil }
func (s *fakeStore) Migrate(ctx context.Context) error { return nil }

func (s *fakeStore) GetWatchlist(ctx context.Context, userID string) ([]models.WatchlistItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.WatchlistItem{}, s.watchlist[userID]...), nil
}

func (s *fakeStore) AddToWatchlist(ctx context.Context, item *models.WatchlistItem) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.watchlist[item.UserID] {
		if existing.Symbol == item.Symbol {
			return false, nil
		}
	}
	s.watchlist[item.UserID] = append(s.watchlist[item.UserID], *item)
	return true, nil
}

func (s *fakeStore) RemoveFromWatchlist(ctx context.Context, userID, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.watchlist[userID]
	for i, item := range items {
		if item.Symbol == symbol {
			s.watchlist[userID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *fakeStore) CreateAlert(ctx context.Context, alert *models.PriceAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, *alert)
	return nil
}

func (s *fakeStore) GetAlerts(ctx context.Context, userID string) ([]models.PriceAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.PriceAlert{}
	for _, a := range s.alerts {
		if a.UserID == userID && a.Status != models.AlertStatusCancelled {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) GetActiveAlerts(ctx context.Context) ([]models.PriceAlert, error) {
	return nil, nil
}

func (s *fakeStore) ClaimAlert(ctx context.Context, id uuid.UUID, price decimal.Decimal, at time.Time) (bool, error) {
	return false, nil
}

func (s *fakeStore) ReleaseAlert(ctx context.Context, id uuid.UUID) error { return nil }

func (s *fakeStore) CancelAlert(ctx context.Context, userID string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID == id && s.alerts[i].UserID == userID && s.alerts[i].Status == models.AlertStatusActive {
			s.alerts[i].Status = models.AlertStatusCancelled
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *fakeStore) GetNotes(ctx context.Context, userID, symbol string) ([]models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Note{}
	for _, n := range s.notes {
		if n.UserID == userID && (symbol == "" || n.Symbol == symbol) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateNote(ctx context.Context, note *models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, *note)
	return nil
}

func (s *fakeStore) UpdateNote(ctx context.Context, note *models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notes {
		if s.notes[i].ID == note.ID && s.notes[i].UserID == note.UserID {
			s.notes[i].Body = note.Body
			note.Symbol = s.notes[i].Symbol
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *fakeStore) DeleteNote(ctx context.Context, userID string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notes {
		if s.notes[i].ID == id && s.notes[i].UserID == userID {
			s.notes = append(s.notes[:i], s.notes[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *fakeStore) GetCachedReport(ctx context.Context, symbol string) (*models.StockReport, error) {
	return nil, nil
}

func (s *fakeStore) SetCachedReport(ctx context.Context, report *models.StockReport, ttl time.Duration) error {
	return nil
}

func (s *fakeStore) InvalidateReport(ctx context.Context, symbol string) error { return nil }

func (s *fakeStore) CleanExpiredCache(ctx context.Context) (int64, error) { return 0, nil }

type fakeAnalyzer struct {
	err        error
	freshCalls int
}

func (f *fakeAnalyzer) report(symbol string) *models.StockReport {
	return &models.StockReport{
		Symbol: models.NormalizeSymbol(symbol),
		Analysis: models.AnalysisResult{
			Recommendation: models.RecommendationHold,
			Confidence:     models.ConfidenceMedium,
			PriceTargets:   models.PriceTargets{GoodBuyPrice: 90, GoodSellPrice: 120, CurrentValue: models.ValuationFairlyValued},
		},
	}
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, symbol string) (*models.StockReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.report(symbol), nil
}

func (f *fakeAnalyzer) AnalyzeFresh(ctx context.Context, symbol string) (*models.StockReport, error) {
	f.freshCalls++
	return f.Analyze(ctx, symbol)
}

func (f *fakeAnalyzer) HasLLM() bool { return false }

type fakeMarket struct {
	err error
}

func (f *fakeMarket) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Quote{Symbol: symbol, Price: decimal.NewFromInt(100), Source: "test"}, nil
}

func (f *fakeMarket) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []models.SearchResult{{Symbol: "AAPL", Name: "Apple Inc."}}, nil
}

type fakeNotifier struct {
	chats []string
}

func (f *fakeNotifier) Send(ctx context.Context, chatID, text string) error {
	f.chats = append(f.chats, chatID)
	return nil
}

// testConfig returns a test configuration
func testConfig() *config.Config {
	return config.NewTestConfig()
}

// testEnv bundles an App built from fakes
type testEnv struct {
	store    *fakeStore
	analyzer *fakeAnalyzer
	market   *fakeMarket
	notifier *fakeNotifier
}

func newTestEnv() *testEnv {
	return &testEnv{
		store:    newFakeStore(),
		analyzer: &fakeAnalyzer{},
		market:   &fakeMarket{},
		notifier: &fakeNotifier{},
	}
}

func (e *testEnv) app() *app.App {
	return app.New(testConfig(), e.store, e.analyzer, e.market, e.notifier)
}

// testRouter creates a Chi router with test config for testing
func testRouter(application *app.App) http.Handler {
	cfg := testConfig()
	return NewRouter(NewHandler(application, cfg), cfg)
}
