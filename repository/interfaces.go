package repository

import (
	"context"
	"time"

	"stockpulse/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store defines all repository operations
type Store interface {
	// Health and lifecycle
	Close()
	Health(ctx context.Context) error
	Migrate(ctx context.Context) error

	// Watchlist
	GetWatchlist(ctx context.Context, userID string) ([]models.WatchlistItem, error)
	AddToWatchlist(ctx context.Context, item *models.WatchlistItem) (bool, error)
	RemoveFromWatchlist(ctx context.Context, userID, symbol string) error

	// Price alerts
	CreateAlert(ctx context.Context, alert *models.PriceAlert) error
	GetAlerts(ctx context.Context, userID string) ([]models.PriceAlert, error)
	GetActiveAlerts(ctx context.Context) ([]models.PriceAlert, error)
	ClaimAlert(ctx context.Context, id uuid.UUID, price decimal.Decimal, at time.Time) (bool, error)
	ReleaseAlert(ctx context.Context, id uuid.UUID) error
	CancelAlert(ctx context.Context, userID string, id uuid.UUID) error

	// Notes
	GetNotes(ctx context.Context, userID, symbol string) ([]models.Note, error)
	CreateNote(ctx context.Context, note *models.Note) error
	UpdateNote(ctx context.Context, note *models.Note) error
	DeleteNote(ctx context.Context, userID string, id uuid.UUID) error

	// Report cache
	GetCachedReport(ctx context.Context, symbol string) (*models.StockReport, error)
	SetCachedReport(ctx context.Context, report *models.StockReport, ttl time.Duration) error
	InvalidateReport(ctx context.Context, symbol string) error
	CleanExpiredCache(ctx context.Context) (int64, error)
}

// Compile-time interface verification
var _ Store = (*Repository)(nil)
