// Package model defines the records shared between the ledger, the stores
// and the presentation layer.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding is one coin position in the portfolio.
//
// The JSON field names match the layout written by earlier versions of the
// app, so stored portfolios can be read back unchanged.
type Holding struct {
	ID            string           `json:"id"`
	Symbol        string           `json:"symbol"`
	Name          string           `json:"name"`
	Image         string           `json:"image"`
	Amount        decimal.Decimal  `json:"amount"`
	PurchasePrice decimal.Decimal  `json:"purchasePrice"`
	PurchaseDate  time.Time        `json:"purchaseDate"`
	CurrentPrice  *decimal.Decimal `json:"currentPrice,omitempty"`
}

// Clone returns a copy of the holding which shares no pointers with it.
func (h Holding) Clone() Holding {
	if h.CurrentPrice != nil {
		price := *h.CurrentPrice
		h.CurrentPrice = &price
	}

	return h
}

// MarkPrice returns the live price when known, or the purchase price.
func (h Holding) MarkPrice() decimal.Decimal {
	if h.CurrentPrice != nil {
		return *h.CurrentPrice
	}

	return h.PurchasePrice
}

// Value is the amount held at the mark price.
func (h Holding) Value() decimal.Decimal {
	return h.Amount.Mul(h.MarkPrice())
}

// Cost is the amount held at the purchase price.
func (h Holding) Cost() decimal.Decimal {
	return h.Amount.Mul(h.PurchasePrice)
}

// Coin is market data for a single coin.
type Coin struct {
	ID                       string          `json:"id"`
	Symbol                   string          `json:"symbol"`
	Name                     string          `json:"name"`
	Image                    string          `json:"image"`
	CurrentPrice             decimal.Decimal `json:"currentPrice"`
	MarketCap                decimal.Decimal `json:"marketCap"`
	MarketCapRank            int             `json:"marketCapRank"`
	PriceChange24h           decimal.Decimal `json:"priceChange24h"`
	PriceChangePercentage24h decimal.Decimal `json:"priceChangePercentage24h"`
	TotalVolume              decimal.Decimal `json:"totalVolume"`
	High24h                  decimal.Decimal `json:"high24h"`
	Low24h                   decimal.Decimal `json:"low24h"`
	LastUpdated              time.Time       `json:"lastUpdated"`
}
