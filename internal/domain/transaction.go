package domain

import (
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal" // Exact decimal arithmetic for money
)

// StatusCompleted is the default transaction status
const StatusCompleted = "completed"

// Transaction Model
type Transaction struct {
	ID              uint            `gorm:"primaryKey" json:"id"`                               // Primary key
	UserID          uint            `gorm:"not null;index" json:"userId"`                       // Foreign key to User
	FromCurrency    string          `gorm:"size:3;not null" json:"fromCurrency"`                // Source currency code
	ToCurrency      string          `gorm:"size:3;not null" json:"toCurrency"`                  // Target currency code
	Amount          decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`          // Amount in FromCurrency
	ConvertedAmount decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"convertedAmount"` // Amount in ToCurrency
	ExchangeRate    decimal.Decimal `gorm:"type:decimal(18,6);not null" json:"exchangeRate"`    // Rate applied
	Date            time.Time       `gorm:"not null" json:"date"`                               // When the exchange happened (UTC)
	Status          string          `gorm:"size:30;not null;default:completed" json:"status"`   // Transaction status
}

var (
	minAmount = decimal.RequireFromString("0.01")
	minRate   = decimal.RequireFromString("0.000001")
)

// ApplyDefaults fills Date and Status when they are unset
func (t *Transaction) ApplyDefaults(now time.Time) {
	if t.Date.IsZero() {
		t.Date = now.UTC()
	}
	if t.Status == "" {
		t.Status = StatusCompleted
	}
}

// Validate checks the per-field constraints of a transaction.
// ConvertedAmount is not checked against Amount * ExchangeRate.
func (t *Transaction) Validate() error {
	switch {
	case t.FromCurrency == "" || utf8.RuneCountInString(t.FromCurrency) > 3:
		return fieldError("fromCurrency", "must be 1 to 3 characters")
	case t.ToCurrency == "" || utf8.RuneCountInString(t.ToCurrency) > 3:
		return fieldError("toCurrency", "must be 1 to 3 characters")
	case t.Amount.LessThan(minAmount):
		return fieldError("amount", "must be at least 0.01")
	case t.ConvertedAmount.LessThan(minAmount):
		return fieldError("convertedAmount", "must be at least 0.01")
	case t.ExchangeRate.LessThan(minRate):
		return fieldError("exchangeRate", "must be at least 0.000001")
	case t.Status == "" || utf8.RuneCountInString(t.Status) > 30:
		return fieldError("status", "must be 1 to 30 characters")
	}
	return nil
}
