package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SymbolKind distinguishes equity and crypto symbols for quotes and search.
type SymbolKind string

const (
	SymbolKindStock  SymbolKind = "stock"
	SymbolKindCrypto SymbolKind = "crypto"
)

// Quote is a single price observation returned by a price client.
// Currency is empty when the source does not report one.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Currency  Currency        `json:"currency,omitempty"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
}

// Suggestion is one symbol search hit.
type Suggestion struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange,omitempty"`
}

// RefreshResult reports the outcome of one price refresh.
type RefreshResult struct {
	Requested int       `json:"requested"`
	Updated   int       `json:"updated"`
	Failed    []string  `json:"failed,omitempty"`
	Skipped   string    `json:"skipped,omitempty"`
	At        time.Time `json:"at"`
}
