package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stockpulse/models"
	"stockpulse/observability"

	"github.com/jackc/pgx/v5"
)

// GetCachedReport returns the cached report for a symbol, or nil when absent or expired
func (r *Repository) GetCachedReport(ctx context.Context, symbol string) (*models.StockReport, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "report_cache")

	var data []byte

	// Let the database handle expiry check to avoid timezone issues
	err := r.db.QueryRow(ctx, `
		SELECT report FROM report_cache
		WHERE symbol = $1 AND expires_at > NOW()
	`, symbol).Scan(&data)
	if isNoRows(err) {
		metrics.RecordCacheMiss("report")
		return nil, nil
	}
	if err != nil {
		metrics.RecordDBError("select", "report_cache")
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	var report models.StockReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached report: %w", err)
	}

	metrics.RecordCacheHit("report")
	return &report, nil
}

// SetCachedReport stores a report for ttl, replacing any previous entry
func (r *Repository) SetCachedReport(ctx context.Context, report *models.StockReport, ttl time.Duration) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("upsert", "report_cache")

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO report_cache (symbol, report, expires_at)
		VALUES ($1, $2, NOW() + make_interval(secs => $3))
		ON CONFLICT (symbol)
		DO UPDATE SET report = EXCLUDED.report, expires_at = EXCLUDED.expires_at, created_at = NOW()
	`, report.Symbol, data, ttl.Seconds())
	if err != nil {
		metrics.RecordDBError("upsert", "report_cache")
		return fmt.Errorf("failed to set cache: %w", err)
	}

	return nil
}

// InvalidateReport removes the cached report for a symbol
func (r *Repository) InvalidateReport(ctx context.Context, symbol string) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `DELETE FROM report_cache WHERE symbol = $1`, symbol)
	if err != nil {
		observability.GetMetrics().RecordDBError("delete", "report_cache")
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return nil
}

// CleanExpiredCache removes all expired cache entries
func (r *Repository) CleanExpiredCache(ctx context.Context) (int64, error) {
	if err := r.checkDB(); err != nil {
		return 0, err
	}
	result, err := r.db.Exec(ctx, `DELETE FROM report_cache WHERE expires_at < NOW()`)
	if err != nil {
		observability.GetMetrics().RecordDBError("delete", "report_cache")
		return 0, fmt.Errorf("failed to clean expired cache: %w", err)
	}
	return result.RowsAffected(), nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
