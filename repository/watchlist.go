package repository

import (
	"context"
	"fmt"

	"stockpulse/models"
	"stockpulse/observability"
)

// GetWatchlist returns the user's symbols, oldest first
func (r *Repository) GetWatchlist(ctx context.Context, userID string) ([]models.WatchlistItem, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "watchlist_items")

	rows, err := r.db.Query(ctx, `
		SELECT user_id, symbol, added_at
		FROM watchlist_items
		WHERE user_id = $1
		ORDER BY added_at, symbol
	`, userID)
	if err != nil {
		metrics.RecordDBError("select", "watchlist_items")
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	items := []models.WatchlistItem{}
	for rows.Next() {
		var item models.WatchlistItem
		if err := rows.Scan(&item.UserID, &item.Symbol, &item.AddedAt); err != nil {
			metrics.RecordDBError("select", "watchlist_items")
			return nil, fmt.Errorf("failed to scan watchlist item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordDBError("select", "watchlist_items")
		return nil, fmt.Errorf("failed to read watchlist: %w", err)
	}

	return items, nil
}

// AddToWatchlist inserts the symbol for the user. Adding a symbol twice keeps
// the original timestamp and reports added=false.
func (r *Repository) AddToWatchlist(ctx context.Context, item *models.WatchlistItem) (bool, error) {
	if err := r.checkDB(); err != nil {
		return false, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("insert", "watchlist_items")

	tag, err := r.db.Exec(ctx, `
		INSERT INTO watchlist_items (user_id, symbol, added_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, symbol) DO NOTHING
	`, item.UserID, item.Symbol, item.AddedAt)
	if err != nil {
		metrics.RecordDBError("insert", "watchlist_items")
		return false, fmt.Errorf("failed to add to watchlist: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// RemoveFromWatchlist deletes the symbol; ErrNotFound if the user was not watching it
func (r *Repository) RemoveFromWatchlist(ctx context.Context, userID, symbol string) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("delete", "watchlist_items")

	tag, err := r.db.Exec(ctx, `DELETE FROM watchlist_items WHERE user_id = $1 AND symbol = $2`, userID, symbol)
	if err != nil {
		metrics.RecordDBError("delete", "watchlist_items")
		return fmt.Errorf("failed to remove from watchlist: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
