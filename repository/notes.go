package repository

import (
	"context"
	"fmt"

	"stockpulse/models"
	"stockpulse/observability"

	"github.com/google/uuid"
)

// GetNotes returns the user's notes, newest first. An empty symbol returns all of them.
func (r *Repository) GetNotes(ctx context.Context, userID, symbol string) ([]models.Note, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "notes")

	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, symbol, body, created_at, updated_at
		FROM notes
		WHERE user_id = $1 AND ($2 = '' OR symbol = $2)
		ORDER BY created_at DESC
	`, userID, symbol)
	if err != nil {
		metrics.RecordDBError("select", "notes")
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	notes := []models.Note{}
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.Symbol, &n.Body, &n.CreatedAt, &n.UpdatedAt); err != nil {
			metrics.RecordDBError("select", "notes")
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordDBError("select", "notes")
		return nil, fmt.Errorf("failed to read notes: %w", err)
	}
	return notes, nil
}

func (r *Repository) CreateNote(ctx context.Context, note *models.Note) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("insert", "notes")

	_, err := r.db.Exec(ctx, `
		INSERT INTO notes (id, user_id, symbol, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, note.ID, note.UserID, note.Symbol, note.Body, note.CreatedAt, note.UpdatedAt)
	if err != nil {
		metrics.RecordDBError("insert", "notes")
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

// UpdateNote replaces the body of one of the user's notes and refreshes note.UpdatedAt
func (r *Repository) UpdateNote(ctx context.Context, note *models.Note) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("update", "notes")

	err := r.db.QueryRow(ctx, `
		UPDATE notes SET body = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING symbol, created_at, updated_at
	`, note.ID, note.UserID, note.Body).Scan(&note.Symbol, &note.CreatedAt, &note.UpdatedAt)
	if isNoRows(err) {
		return ErrNotFound
	}
	if err != nil {
		metrics.RecordDBError("update", "notes")
		return fmt.Errorf("failed to update note: %w", err)
	}
	return nil
}

func (r *Repository) DeleteNote(ctx context.Context, userID string, id uuid.UUID) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("delete", "notes")

	tag, err := r.db.Exec(ctx, `DELETE FROM notes WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		metrics.RecordDBError("delete", "notes")
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
