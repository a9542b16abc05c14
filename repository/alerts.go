package repository

import (
	"context"
	"fmt"
	"time"

	"stockpulse/models"
	"stockpulse/observability"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const alertColumns = `id, user_id, symbol, condition, target_price, chat_id, status, triggered_at, trigger_price, created_at`

// CreateAlert stores a new price alert
func (r *Repository) CreateAlert(ctx context.Context, alert *models.PriceAlert) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("insert", "price_alerts")

	_, err := r.db.Exec(ctx, `
		INSERT INTO price_alerts (`+alertColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, alert.ID, alert.UserID, alert.Symbol, alert.Condition, alert.TargetPrice, alert.ChatID,
		alert.Status, alert.TriggeredAt, nullDecimal(alert.TriggerPrice), alert.CreatedAt)
	if err != nil {
		metrics.RecordDBError("insert", "price_alerts")
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// GetAlerts returns every alert the user owns, newest first
func (r *Repository) GetAlerts(ctx context.Context, userID string) ([]models.PriceAlert, error) {
	return r.queryAlerts(ctx, `
		SELECT `+alertColumns+`
		FROM price_alerts
		WHERE user_id = $1 AND status <> 'cancelled'
		ORDER BY created_at DESC
	`, userID)
}

// GetActiveAlerts returns all active alerts across users, grouped by symbol
func (r *Repository) GetActiveAlerts(ctx context.Context) ([]models.PriceAlert, error) {
	return r.queryAlerts(ctx, `
		SELECT `+alertColumns+`
		FROM price_alerts
		WHERE status = 'active'
		ORDER BY symbol, created_at
	`)
}

func (r *Repository) queryAlerts(ctx context.Context, sql string, args ...any) ([]models.PriceAlert, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "price_alerts")

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		metrics.RecordDBError("select", "price_alerts")
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.PriceAlert{}
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			metrics.RecordDBError("select", "price_alerts")
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, *alert)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordDBError("select", "price_alerts")
		return nil, fmt.Errorf("failed to read alerts: %w", err)
	}
	return alerts, nil
}

// ClaimAlert marks an active alert as triggered at the given price. It returns
// false when another evaluator got there first, so each alert fires once.
func (r *Repository) ClaimAlert(ctx context.Context, id uuid.UUID, price decimal.Decimal, at time.Time) (bool, error) {
	if err := r.checkDB(); err != nil {
		return false, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("update", "price_alerts")

	tag, err := r.db.Exec(ctx, `
		UPDATE price_alerts
		SET status = 'triggered', triggered_at = $2, trigger_price = $3
		WHERE id = $1 AND status = 'active'
	`, id, at, price)
	if err != nil {
		metrics.RecordDBError("update", "price_alerts")
		return false, fmt.Errorf("failed to claim alert: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseAlert puts a claimed alert back to active, used when delivery failed
func (r *Repository) ReleaseAlert(ctx context.Context, id uuid.UUID) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("update", "price_alerts")

	_, err := r.db.Exec(ctx, `
		UPDATE price_alerts
		SET status = 'active', triggered_at = NULL, trigger_price = NULL
		WHERE id = $1 AND status = 'triggered'
	`, id)
	if err != nil {
		metrics.RecordDBError("update", "price_alerts")
		return fmt.Errorf("failed to release alert: %w", err)
	}
	return nil
}

// CancelAlert cancels one of the user's alerts; ErrNotFound if it is not theirs
func (r *Repository) CancelAlert(ctx context.Context, userID string, id uuid.UUID) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("update", "price_alerts")

	tag, err := r.db.Exec(ctx, `
		UPDATE price_alerts SET status = 'cancelled'
		WHERE id = $1 AND user_id = $2 AND status <> 'cancelled'
	`, id, userID)
	if err != nil {
		metrics.RecordDBError("update", "price_alerts")
		return fmt.Errorf("failed to cancel alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAlert(row pgx.Row) (*models.PriceAlert, error) {
	var a models.PriceAlert
	var triggerPrice decimal.NullDecimal

	err := row.Scan(&a.ID, &a.UserID, &a.Symbol, &a.Condition, &a.TargetPrice, &a.ChatID,
		&a.Status, &a.TriggeredAt, &triggerPrice, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if triggerPrice.Valid {
		a.TriggerPrice = &triggerPrice.Decimal
	}
	return &a, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
