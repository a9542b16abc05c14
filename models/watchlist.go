package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type WatchlistItem struct {
	UserID  string    `json:"user_id"`
	Symbol  string    `json:"symbol"`
	AddedAt time.Time `json:"added_at"`
}

type Note struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	Symbol    string    `json:"symbol"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MaxNoteLength bounds the size of a note body in bytes
const MaxNoteLength = 10_000

func NewNote(userID, symbol, body string) *Note {
	now := time.Now()
	return &Note{
		ID:        uuid.New(),
		UserID:    userID,
		Symbol:    symbol,
		Body:      body,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (n *Note) Validate() error {
	if strings.TrimSpace(n.Body) == "" {
		return fmt.Errorf("note body is required")
	}
	if len(n.Body) > MaxNoteLength {
		return fmt.Errorf("note too long (max %d characters)", MaxNoteLength)
	}
	return nil
}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.-]+$`)

// NormalizeSymbol upper-cases and trims a ticker symbol
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ValidateSymbol checks a normalized ticker symbol
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}

	if len(symbol) > 10 {
		return fmt.Errorf("symbol too long (max 10 characters)")
	}

	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format (alphanumeric, dots, and dashes only)")
	}

	return nil
}
