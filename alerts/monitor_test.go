package alerts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"stockpulse/models"
	"stockpulse/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memStore keeps alerts in memory with the same claim semantics as the database
type memStore struct {
	mu       sync.Mutex
	alerts   map[uuid.UUID]*models.PriceAlert
	released []uuid.UUID
	loadErr  error
}

func newMemStore(alerts ...*models.PriceAlert) *memStore {
	s := &memStore{alerts: map[uuid.UUID]*models.PriceAlert{}}
	for _, a := range alerts {
		s.alerts[a.ID] = a
	}
	return s
}

func (s *memStore) GetActiveAlerts(ctx context.Context) ([]models.PriceAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	var out []models.PriceAlert
	for _, a := range s.alerts {
		if a.Status == models.AlertStatusActive {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *memStore) ClaimAlert(ctx context.Context, id uuid.UUID, price decimal.Decimal, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok || a.Status != models.AlertStatusActive {
		return false, nil
	}
	a.Trigger(price, at)
	return true, nil
}

func (s *memStore) ReleaseAlert(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = append(s.released, id)
	if a, ok := s.alerts[id]; ok {
		a.Status = models.AlertStatusActive
		a.TriggeredAt = nil
		a.TriggerPrice = nil
	}
	return nil
}

type stubQuotes struct {
	prices map[string]string
	calls  map[string]int
}

func (q *stubQuotes) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if q.calls == nil {
		q.calls = map[string]int{}
	}
	q.calls[symbol]++
	p, ok := q.prices[symbol]
	if !ok {
		return nil, services.ErrNotFound
	}
	return &models.Quote{Symbol: symbol, Price: decimal.RequireFromString(p)}, nil
}

type recordingNotifier struct {
	messages map[string][]string
	err      error
}

func (n *recordingNotifier) Send(ctx context.Context, chatID, text string) error {
	if n.err != nil {
		return n.err
	}
	if n.messages == nil {
		n.messages = map[string][]string{}
	}
	n.messages[chatID] = append(n.messages[chatID], text)
	return nil
}

func alertOf(symbol string, cond models.AlertCondition, target, chat string) *models.PriceAlert {
	return models.NewPriceAlert("u1", symbol, cond, decimal.RequireFromString(target), chat)
}

func TestCheckOnce_TriggersMatchingAlerts(t *testing.T) {
	above := alertOf("AAPL", models.AlertConditionAbove, "190", "100")
	below := alertOf("AAPL", models.AlertConditionBelow, "150", "100")
	msftBelow := alertOf("MSFT", models.AlertConditionBelow, "400", "200")

	store := newMemStore(above, below, msftBelow)
	quotes := &stubQuotes{prices: map[string]string{"AAPL": "191.20", "MSFT": "399.99"}}
	notifier := &recordingNotifier{}

	result, err := NewMonitor(store, quotes, notifier).CheckOnce(context.Background())
	if err != nil {
		t.Fatalf("CheckOnce failed: %v", err)
	}

	if result.Evaluated != 3 || result.Triggered != 2 || result.Notified != 2 || result.Failed != 0 {
		t.Errorf("unexpected result %+v", result)
	}
	if quotes.calls["AAPL"] != 1 {
		t.Errorf("expected one quote per symbol, got %d", quotes.calls["AAPL"])
	}
	if above.Status != models.AlertStatusTriggered || !above.TriggerPrice.Equal(decimal.RequireFromString("191.20")) {
		t.Errorf("above alert should be triggered, got %+v", above)
	}
	if below.Status != models.AlertStatusActive {
		t.Error("below alert should stay active")
	}
	if len(notifier.messages["100"]) != 1 || !strings.Contains(notifier.messages["100"][0], "AAPL has risen above 190.00") {
		t.Errorf("unexpected messages %v", notifier.messages)
	}
	if len(notifier.messages["200"]) != 1 {
		t.Errorf("expected MSFT notification, got %v", notifier.messages)
	}

	again, _ := NewMonitor(store, quotes, notifier).CheckOnce(context.Background())
	if again.Triggered != 0 {
		t.Errorf("triggered alerts must not fire twice, got %+v", again)
	}
}

func TestCheckOnce_NotificationFailureReleases(t *testing.T) {
	alert := alertOf("AAPL", models.AlertConditionAbove, "100", "100")
	store := newMemStore(alert)
	notifier := &recordingNotifier{err: errors.New("telegram down")}

	result, err := NewMonitor(store, &stubQuotes{prices: map[string]string{"AAPL": "120"}}, notifier).CheckOnce(context.Background())
	if err != nil {
		t.Fatalf("CheckOnce failed: %v", err)
	}
	if result.Failed != 1 || result.Triggered != 0 {
		t.Errorf("unexpected result %+v", result)
	}
	if alert.Status != models.AlertStatusActive || len(store.released) != 1 {
		t.Error("alert should be released for the next check")
	}
}

func TestCheckOnce_NoChatKeepsTriggered(t *testing.T) {
	alert := alertOf("AAPL", models.AlertConditionAbove, "100", "")
	store := newMemStore(alert)
	notifier := &recordingNotifier{err: services.ErrNoChatID}

	result, _ := NewMonitor(store, &stubQuotes{prices: map[string]string{"AAPL": "120"}}, notifier).CheckOnce(context.Background())
	if result.Triggered != 1 || alert.Status != models.AlertStatusTriggered || len(store.released) != 0 {
		t.Errorf("alert without a chat should stay triggered, got %+v / %s", result, alert.Status)
	}
}

func TestCheckOnce_WithoutNotifier(t *testing.T) {
	alert := alertOf("AAPL", models.AlertConditionBelow, "100", "")
	store := newMemStore(alert)

	result, err := NewMonitor(store, &stubQuotes{prices: map[string]string{"AAPL": "99"}}, nil).CheckOnce(context.Background())
	if err != nil {
		t.Fatalf("CheckOnce failed: %v", err)
	}
	if result.Triggered != 1 || result.Notified != 0 || alert.Status != models.AlertStatusTriggered {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestCheckOnce_QuoteFailure(t *testing.T) {
	store := newMemStore(alertOf("NOPE", models.AlertConditionAbove, "1", "1"), alertOf("NOPE", models.AlertConditionBelow, "5", "1"))

	result, err := NewMonitor(store, &stubQuotes{}, &recordingNotifier{}).CheckOnce(context.Background())
	if err != nil {
		t.Fatalf("quote failures should not abort the check: %v", err)
	}
	if result.Failed != 2 {
		t.Errorf("expected both alerts counted as failed, got %+v", result)
	}
}

func TestCheckOnce_StoreError(t *testing.T) {
	store := newMemStore()
	store.loadErr = errors.New("db down")

	if _, err := NewMonitor(store, &stubQuotes{}, nil).CheckOnce(context.Background()); err == nil {
		t.Error("expected error when alerts cannot be loaded")
	}
}

func TestMonitor_StartRejectsBadSchedule(t *testing.T) {
	m := NewMonitor(newMemStore(), &stubQuotes{}, nil)
	if err := m.Start("not a schedule"); err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestMonitor_StartStop(t *testing.T) {
	m := NewMonitor(newMemStore(), &stubQuotes{}, nil)
	if err := m.Start("@every 1h"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.Stop(ctx)
}
