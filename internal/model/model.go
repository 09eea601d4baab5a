// Package model defines the domain value objects persisted by cachedb.
// All monetary values use shopspring/decimal; money is never float64.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// CurrencyType classifies a currency.
type CurrencyType string

const (
	CurrencyTypeCrypto          CurrencyType = "CRYPTO"
	CurrencyTypeFiat            CurrencyType = "FIAT"
	CurrencyTypeCommodityBacked CurrencyType = "COMMODITY_BACKED"
)

var validCurrencyTypes = map[CurrencyType]bool{
	CurrencyTypeCrypto:          true,
	CurrencyTypeFiat:            true,
	CurrencyTypeCommodityBacked: true,
}

var (
	ErrInvalidCurrency     = errors.New("model: invalid currency")
	ErrInvalidInstrumentID = errors.New("model: invalid instrument id")
)

// Currency is keyed by its code (e.g. "USD", "BTC").
type Currency struct {
	Code         string       `json:"code" db:"code"`
	Precision    uint8        `json:"precision" db:"precision"`
	ISO4217      uint16       `json:"iso4217" db:"iso4217"` // 0 for non-ISO currencies
	Name         string       `json:"name" db:"name"`
	CurrencyType CurrencyType `json:"currency_type" db:"currency_type"`
}

// Validate checks the invariants a currency must satisfy before it is queued.
func (c Currency) Validate() error {
	if strings.TrimSpace(c.Code) == "" {
		return fmt.Errorf("%w: empty code", ErrInvalidCurrency)
	}
	if c.Precision > 16 {
		return fmt.Errorf("%w: precision %d exceeds 16", ErrInvalidCurrency, c.Precision)
	}
	if !validCurrencyTypes[c.CurrencyType] {
		return fmt.Errorf("%w: unsupported type %q", ErrInvalidCurrency, c.CurrencyType)
	}
	return nil
}

// InstrumentID identifies a tradable instrument as SYMBOL.VENUE.
type InstrumentID struct {
	Symbol string `json:"symbol"`
	Venue  string `json:"venue"`
}

// ParseInstrumentID parses "BTCUSDT.BINANCE" style identifiers. The venue is
// everything after the last dot, so symbols may themselves contain dots.
func ParseInstrumentID(s string) (InstrumentID, error) {
	idx := strings.LastIndex(s, ".")
	if idx <= 0 || idx == len(s)-1 {
		return InstrumentID{}, fmt.Errorf("%w: %q", ErrInvalidInstrumentID, s)
	}
	return InstrumentID{Symbol: s[:idx], Venue: s[idx+1:]}, nil
}

// MustInstrumentID is ParseInstrumentID for literals; it panics on bad input.
func MustInstrumentID(s string) InstrumentID {
	id, err := ParseInstrumentID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id InstrumentID) String() string {
	return id.Symbol + "." + id.Venue
}

// IsZero reports whether the id is unset.
func (id InstrumentID) IsZero() bool {
	return id.Symbol == "" && id.Venue == ""
}

// MarshalText implements encoding.TextMarshaler so ids serialise as strings.
func (id InstrumentID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *InstrumentID) UnmarshalText(b []byte) error {
	parsed, err := ParseInstrumentID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
