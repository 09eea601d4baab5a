package persist

import (
	"context"
	"encoding/json"

	"github.com/atmx/cachedb/internal/model"
	"github.com/atmx/cachedb/internal/store"
)

// Command kinds that are not instrument variants.
const (
	KindGeneral  = "general"
	KindCurrency = "currency"
)

// Command is one pending write. Implementations are immutable once queued
// and each maps to exactly one storage operation.
type Command interface {
	// Kind is "general", "currency", or the instrument variant tag.
	Kind() string

	// Key is the natural identity the write is keyed by.
	Key() string

	// Apply performs the single upsert this command describes.
	Apply(ctx context.Context, w store.Writer) error

	// Payload encodes the command for the dead-letter table.
	Payload() ([]byte, error)

	isCommand()
}

// GeneralUpsert writes an opaque blob under a key.
type GeneralUpsert struct {
	key   string
	value []byte
}

// NewGeneralUpsert copies value so later mutation by the caller cannot
// change what is persisted.
func NewGeneralUpsert(key string, value []byte) GeneralUpsert {
	return GeneralUpsert{key: key, value: append([]byte(nil), value...)}
}

func (c GeneralUpsert) Kind() string             { return KindGeneral }
func (c GeneralUpsert) Key() string              { return c.key }
func (c GeneralUpsert) Payload() ([]byte, error) { return append([]byte(nil), c.value...), nil }
func (GeneralUpsert) isCommand()                 {}

func (c GeneralUpsert) Apply(ctx context.Context, w store.Writer) error {
	return w.UpsertGeneral(ctx, c.key, c.value)
}

// CurrencyUpsert writes a currency keyed by code.
type CurrencyUpsert struct {
	currency model.Currency
}

func NewCurrencyUpsert(c model.Currency) CurrencyUpsert {
	return CurrencyUpsert{currency: c}
}

func (c CurrencyUpsert) Kind() string             { return KindCurrency }
func (c CurrencyUpsert) Key() string              { return c.currency.Code }
func (c CurrencyUpsert) Payload() ([]byte, error) { return json.Marshal(c.currency) }
func (CurrencyUpsert) isCommand()                 {}

func (c CurrencyUpsert) Apply(ctx context.Context, w store.Writer) error {
	return w.UpsertCurrency(ctx, c.currency)
}

// InstrumentUpsert writes an instrument to its variant's table.
type InstrumentUpsert struct {
	instrument model.Instrument
}

// NewInstrumentUpsert snapshots inst so the queued command is unaffected by
// later changes to the caller's value.
func NewInstrumentUpsert(inst model.Instrument) InstrumentUpsert {
	return InstrumentUpsert{instrument: model.CloneInstrument(inst)}
}

func (c InstrumentUpsert) Kind() string             { return string(c.instrument.Kind()) }
func (c InstrumentUpsert) Key() string              { return c.instrument.ID().String() }
func (c InstrumentUpsert) Payload() ([]byte, error) { return model.MarshalInstrument(c.instrument) }
func (InstrumentUpsert) isCommand()                 {}

func (c InstrumentUpsert) Apply(ctx context.Context, w store.Writer) error {
	return w.UpsertInstrument(ctx, c.instrument)
}
