package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PriceAlert struct {
	ID          uuid.UUID       `json:"id"`
	UserID      string          `json:"user_id"`
	Symbol      string          `json:"symbol"`
	Condition   AlertCondition  `json:"condition"`
	TargetPrice decimal.Decimal `json:"target_price"`
	ChatID      string          `json:"chat_id"`
	Status      AlertStatus     `json:"status"`
	TriggeredAt *time.Time      `json:"triggered_at,omitempty"`
	// TriggerPrice is the quote that fired the alert
	TriggerPrice *decimal.Decimal `json:"trigger_price,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

type AlertCondition string

const (
	AlertConditionAbove AlertCondition = "above"
	AlertConditionBelow AlertCondition = "below"
)

type AlertStatus string

const (
	AlertStatusActive    AlertStatus = "active"
	AlertStatusTriggered AlertStatus = "triggered"
	AlertStatusCancelled AlertStatus = "cancelled"
)

func NewPriceAlert(userID, symbol string, condition AlertCondition, target decimal.Decimal, chatID string) *PriceAlert {
	return &PriceAlert{
		ID:          uuid.New(),
		UserID:      userID,
		Symbol:      symbol,
		Condition:   condition,
		TargetPrice: target,
		ChatID:      chatID,
		Status:      AlertStatusActive,
		CreatedAt:   time.Now(),
	}
}

// Validate checks the user supplied fields of an alert
func (a *PriceAlert) Validate() error {
	if a.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if a.Condition != AlertConditionAbove && a.Condition != AlertConditionBelow {
		return fmt.Errorf("condition must be %q or %q", AlertConditionAbove, AlertConditionBelow)
	}
	if !a.TargetPrice.IsPositive() {
		return fmt.Errorf("target price must be positive")
	}
	return nil
}

// Matches reports whether the given price satisfies the alert condition.
// Only active alerts can match.
func (a *PriceAlert) Matches(price decimal.Decimal) bool {
	if a.Status != AlertStatusActive {
		return false
	}
	switch a.Condition {
	case AlertConditionAbove:
		return price.GreaterThanOrEqual(a.TargetPrice)
	case AlertConditionBelow:
		return price.LessThanOrEqual(a.TargetPrice)
	}
	return false
}

func (a *PriceAlert) Trigger(price decimal.Decimal, at time.Time) {
	a.TriggeredAt = &at
	a.TriggerPrice = &price
	a.Status = AlertStatusTriggered
}
