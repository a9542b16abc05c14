// Package alerts evaluates price alerts on a schedule and notifies their owners.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"stockpulse/models"
	"stockpulse/observability"
	"stockpulse/services"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

// Store is the persistence the monitor needs
type Store interface {
	GetActiveAlerts(ctx context.Context) ([]models.PriceAlert, error)
	ClaimAlert(ctx context.Context, id uuid.UUID, price decimal.Decimal, at time.Time) (bool, error)
	ReleaseAlert(ctx context.Context, id uuid.UUID) error
}

// QuoteSource supplies current prices
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
}

// CheckResult summarises one evaluation pass
type CheckResult struct {
	Evaluated int
	Triggered int
	Notified  int
	Failed    int
}

const checkTimeout = 2 * time.Minute

// Monitor checks active alerts against live quotes
type Monitor struct {
	store    Store
	quotes   QuoteSource
	notifier services.Notifier
	cron     *cron.Cron
	now      func() time.Time

	mu      sync.Mutex
	running bool
}

// NewMonitor creates a Monitor. A nil notifier still marks alerts as triggered.
func NewMonitor(store Store, quotes QuoteSource, notifier services.Notifier) *Monitor {
	return &Monitor{
		store:    store,
		quotes:   quotes,
		notifier: notifier,
		cron:     cron.New(),
		now:      time.Now,
	}
}

// Start schedules periodic checks using a standard cron spec or @every descriptor
func (m *Monitor) Start(schedule string) error {
	if _, err := m.cron.AddFunc(schedule, m.runScheduled); err != nil {
		return fmt.Errorf("invalid alert schedule %q: %w", schedule, err)
	}

	m.cron.Start()
	observability.Info("alert monitor started", "schedule", schedule, "notifications", m.notifier != nil)
	return nil
}

// Stop halts scheduling and waits for a running check until ctx is done
func (m *Monitor) Stop(ctx context.Context) {
	select {
	case <-m.cron.Stop().Done():
	case <-ctx.Done():
		observability.Warn("alert monitor stop timed out")
	}
	observability.Info("alert monitor stopped")
}

func (m *Monitor) runScheduled() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		observability.Warn("previous alert check still running, skipping")
		return
	}
	m.running = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	result, err := m.CheckOnce(ctx)
	if err != nil {
		observability.Error("alert check failed", "error", err)
		return
	}
	if result.Triggered > 0 || result.Failed > 0 {
		observability.Info("alert check complete",
			"evaluated", result.Evaluated,
			"triggered", result.Triggered,
			"notified", result.Notified,
			"failed", result.Failed)
	}
}

// CheckOnce evaluates every active alert. Quotes are fetched once per symbol;
// an alert that fires is claimed before notifying so it fires only once, and
// released again if the notification could not be delivered.
func (m *Monitor) CheckOnce(ctx context.Context) (CheckResult, error) {
	var result CheckResult
	metrics := observability.GetMetrics()

	active, err := m.store.GetActiveAlerts(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to load active alerts: %w", err)
	}
	metrics.RecordAlertCheck(len(active))
	result.Evaluated = len(active)

	bySymbol := make(map[string][]models.PriceAlert)
	var symbols []string
	for _, a := range active {
		if _, ok := bySymbol[a.Symbol]; !ok {
			symbols = append(symbols, a.Symbol)
		}
		bySymbol[a.Symbol] = append(bySymbol[a.Symbol], a)
	}

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		quote, err := m.quotes.GetQuote(ctx, symbol)
		if err != nil {
			observability.WithSymbol(symbol).Warn("alert quote unavailable", "error", err)
			result.Failed += len(bySymbol[symbol])
			continue
		}

		for i := range bySymbol[symbol] {
			alert := &bySymbol[symbol][i]
			if !alert.Matches(quote.Price) {
				continue
			}
			switch m.fire(ctx, alert, quote.Price) {
			case fireNotified:
				result.Triggered++
				result.Notified++
			case fireSilent:
				result.Triggered++
			case fireFailed:
				result.Failed++
			}
		}
	}

	return result, nil
}

type fireOutcome int

const (
	fireSkipped fireOutcome = iota
	fireSilent
	fireNotified
	fireFailed
)

func (m *Monitor) fire(ctx context.Context, alert *models.PriceAlert, price decimal.Decimal) fireOutcome {
	log := observability.WithSymbol(alert.Symbol).With("alert_id", alert.ID, "user_id", alert.UserID)

	claimed, err := m.store.ClaimAlert(ctx, alert.ID, price, m.now())
	if err != nil {
		log.Error("failed to claim alert", "error", err)
		return fireFailed
	}
	if !claimed {
		return fireSkipped
	}
	alert.Trigger(price, m.now())
	observability.GetMetrics().RecordAlertTriggered(string(alert.Condition))

	if m.notifier == nil {
		log.Info("alert triggered", "price", price.String())
		return fireSilent
	}

	if err := m.notifier.Send(ctx, alert.ChatID, FormatAlert(alert, price)); err != nil {
		if errors.Is(err, services.ErrNoChatID) {
			// nowhere to deliver; keep it triggered so it does not fire every cycle
			log.Warn("alert triggered without a chat to notify")
			return fireSilent
		}
		log.Warn("alert notification failed, releasing alert", "error", err)
		if releaseErr := m.store.ReleaseAlert(ctx, alert.ID); releaseErr != nil {
			log.Error("failed to release alert", "error", releaseErr)
		}
		return fireFailed
	}

	log.Info("alert triggered and notified", "price", price.String())
	return fireNotified
}
