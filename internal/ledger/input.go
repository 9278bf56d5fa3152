package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyID           = errors.New("coin id must not be empty")
	ErrNonPositiveAmount = errors.New("amount must be greater than zero")
	ErrNegativePrice     = errors.New("purchase price must not be negative")
)

// HoldingInput describes one acquisition of a coin.
type HoldingInput struct {
	ID            string
	Symbol        string
	Name          string
	Image         string
	Amount        decimal.Decimal
	PurchasePrice decimal.Decimal
	// PurchaseDate defaults to the time of the acquisition when zero.
	PurchaseDate time.Time
}

// Validate checks the input before it is handed to Acquire.
func (input HoldingInput) Validate() error {
	if input.ID == "" {
		return ErrEmptyID
	}

	if !input.Amount.IsPositive() {
		return ErrNonPositiveAmount
	}

	if input.PurchasePrice.IsNegative() {
		return ErrNegativePrice
	}

	return nil
}
