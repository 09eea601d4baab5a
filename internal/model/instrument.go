package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/shopspring/decimal"
)

// InstrumentKind is the variant tag of an Instrument.
type InstrumentKind string

const (
	KindCryptoFuture    InstrumentKind = "CRYPTO_FUTURE"
	KindCryptoPerpetual InstrumentKind = "CRYPTO_PERPETUAL"
	KindCurrencyPair    InstrumentKind = "CURRENCY_PAIR"
	KindEquity          InstrumentKind = "EQUITY"
	KindFuturesContract InstrumentKind = "FUTURES_CONTRACT"
	KindFuturesSpread   InstrumentKind = "FUTURES_SPREAD"
	KindOptionsContract InstrumentKind = "OPTIONS_CONTRACT"
	KindOptionsSpread   InstrumentKind = "OPTIONS_SPREAD"
)

// InstrumentKinds returns every known variant tag in a stable order.
func InstrumentKinds() []InstrumentKind {
	return []InstrumentKind{
		KindCryptoFuture,
		KindCryptoPerpetual,
		KindCurrencyPair,
		KindEquity,
		KindFuturesContract,
		KindFuturesSpread,
		KindOptionsContract,
		KindOptionsSpread,
	}
}

var ErrUnknownInstrumentKind = errors.New("model: unknown instrument kind")

// AssetClass of a dated derivative's underlying.
type AssetClass string

const (
	AssetClassFX             AssetClass = "FX"
	AssetClassEquity         AssetClass = "EQUITY"
	AssetClassCommodity      AssetClass = "COMMODITY"
	AssetClassDebt           AssetClass = "DEBT"
	AssetClassIndex          AssetClass = "INDEX"
	AssetClassCryptocurrency AssetClass = "CRYPTOCURRENCY"
	AssetClassAlternative    AssetClass = "ALTERNATIVE"
)

// OptionKind is CALL or PUT.
type OptionKind string

const (
	OptionKindCall OptionKind = "CALL"
	OptionKindPut  OptionKind = "PUT"
)

// Instrument is the sealed union of the eight tradable instrument variants.
// Only types in this package implement it.
type Instrument interface {
	Kind() InstrumentKind
	ID() InstrumentID
	Common() *InstrumentBase
	isInstrument()
}

// InstrumentBase holds the fields every variant shares.
// Timestamps are UNIX nanoseconds.
type InstrumentBase struct {
	InstrumentID   InstrumentID    `json:"id"`
	RawSymbol      string          `json:"raw_symbol"`
	QuoteCurrency  string          `json:"quote_currency"`
	PricePrecision uint8           `json:"price_precision"`
	SizePrecision  uint8           `json:"size_precision"`
	PriceIncrement decimal.Decimal `json:"price_increment"`
	SizeIncrement  decimal.Decimal `json:"size_increment"`
	Multiplier     decimal.Decimal `json:"multiplier"`
	LotSize        decimal.Decimal `json:"lot_size"`
	MarginInit     decimal.Decimal `json:"margin_init"`
	MarginMaint    decimal.Decimal `json:"margin_maint"`
	MakerFee       decimal.Decimal `json:"maker_fee"`
	TakerFee       decimal.Decimal `json:"taker_fee"`
	TsEvent        int64           `json:"ts_event"`
	TsInit         int64           `json:"ts_init"`
}

func (b *InstrumentBase) ID() InstrumentID        { return b.InstrumentID }
func (b *InstrumentBase) Common() *InstrumentBase { return b }

// CryptoFuture is a dated crypto future, optionally inverse.
type CryptoFuture struct {
	InstrumentBase
	Underlying         string `json:"underlying"`
	SettlementCurrency string `json:"settlement_currency"`
	IsInverse          bool   `json:"is_inverse"`
	Activation         int64  `json:"activation_ns"`
	Expiration         int64  `json:"expiration_ns"`
}

// CryptoPerpetual is a perpetual swap.
type CryptoPerpetual struct {
	InstrumentBase
	BaseCurrency       string `json:"base_currency"`
	SettlementCurrency string `json:"settlement_currency"`
	IsInverse          bool   `json:"is_inverse"`
}

// CurrencyPair is a spot FX or crypto pair.
type CurrencyPair struct {
	InstrumentBase
	BaseCurrency string `json:"base_currency"`
}

// Equity is a listed share.
type Equity struct {
	InstrumentBase
	ISIN string `json:"isin"`
}

// FuturesContract is a dated exchange-traded future.
type FuturesContract struct {
	InstrumentBase
	AssetClass AssetClass `json:"asset_class"`
	Exchange   string     `json:"exchange"`
	Underlying string     `json:"underlying"`
	Activation int64      `json:"activation_ns"`
	Expiration int64      `json:"expiration_ns"`
}

// FuturesSpread is an exchange-defined futures strategy.
type FuturesSpread struct {
	InstrumentBase
	AssetClass   AssetClass `json:"asset_class"`
	Exchange     string     `json:"exchange"`
	Underlying   string     `json:"underlying"`
	StrategyType string     `json:"strategy_type"`
	Activation   int64      `json:"activation_ns"`
	Expiration   int64      `json:"expiration_ns"`
}

// OptionsContract is a single-leg listed option.
type OptionsContract struct {
	InstrumentBase
	AssetClass  AssetClass      `json:"asset_class"`
	Exchange    string          `json:"exchange"`
	Underlying  string          `json:"underlying"`
	OptionKind  OptionKind      `json:"option_kind"`
	StrikePrice decimal.Decimal `json:"strike_price"`
	Activation  int64           `json:"activation_ns"`
	Expiration  int64           `json:"expiration_ns"`
}

// OptionsSpread is an exchange-defined options strategy.
type OptionsSpread struct {
	InstrumentBase
	AssetClass   AssetClass `json:"asset_class"`
	Exchange     string     `json:"exchange"`
	Underlying   string     `json:"underlying"`
	StrategyType string     `json:"strategy_type"`
	Activation   int64      `json:"activation_ns"`
	Expiration   int64      `json:"expiration_ns"`
}

func (*CryptoFuture) Kind() InstrumentKind    { return KindCryptoFuture }
func (*CryptoPerpetual) Kind() InstrumentKind { return KindCryptoPerpetual }
func (*CurrencyPair) Kind() InstrumentKind    { return KindCurrencyPair }
func (*Equity) Kind() InstrumentKind          { return KindEquity }
func (*FuturesContract) Kind() InstrumentKind { return KindFuturesContract }
func (*FuturesSpread) Kind() InstrumentKind   { return KindFuturesSpread }
func (*OptionsContract) Kind() InstrumentKind { return KindOptionsContract }
func (*OptionsSpread) Kind() InstrumentKind   { return KindOptionsSpread }

func (*CryptoFuture) isInstrument()    {}
func (*CryptoPerpetual) isInstrument() {}
func (*CurrencyPair) isInstrument()    {}
func (*Equity) isInstrument()          {}
func (*FuturesContract) isInstrument() {}
func (*FuturesSpread) isInstrument()   {}
func (*OptionsContract) isInstrument() {}
func (*OptionsSpread) isInstrument()   {}

// newInstrument allocates an empty value for each variant tag.
var newInstrument = map[InstrumentKind]func() Instrument{
	KindCryptoFuture:    func() Instrument { return &CryptoFuture{} },
	KindCryptoPerpetual: func() Instrument { return &CryptoPerpetual{} },
	KindCurrencyPair:    func() Instrument { return &CurrencyPair{} },
	KindEquity:          func() Instrument { return &Equity{} },
	KindFuturesContract: func() Instrument { return &FuturesContract{} },
	KindFuturesSpread:   func() Instrument { return &FuturesSpread{} },
	KindOptionsContract: func() Instrument { return &OptionsContract{} },
	KindOptionsSpread:   func() Instrument { return &OptionsSpread{} },
}

func init() {
	for _, k := range InstrumentKinds() {
		if _, ok := newInstrument[k]; !ok {
			panic(fmt.Sprintf("model: no constructor for instrument kind %s", k))
		}
	}
}

// NewInstrument returns a zero value of the variant named by kind.
func NewInstrument(kind InstrumentKind) (Instrument, error) {
	fn, ok := newInstrument[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstrumentKind, kind)
	}
	return fn(), nil
}

// ValidateInstrument checks the shared invariants plus the dated/option
// specific ones.
func ValidateInstrument(inst Instrument) error {
	if inst == nil {
		return fmt.Errorf("%w: nil instrument", ErrInvalidInstrumentID)
	}
	b := inst.Common()
	if b.InstrumentID.Symbol == "" || b.InstrumentID.Venue == "" {
		return fmt.Errorf("%w: %q", ErrInvalidInstrumentID, b.InstrumentID.String())
	}
	if !b.PriceIncrement.IsPositive() {
		return fmt.Errorf("model: %s price_increment must be positive", b.InstrumentID)
	}
	if !b.SizeIncrement.IsPositive() {
		return fmt.Errorf("model: %s size_increment must be positive", b.InstrumentID)
	}
	if b.Multiplier.IsNegative() {
		return fmt.Errorf("model: %s multiplier must not be negative", b.InstrumentID)
	}

	switch v := inst.(type) {
	case *CryptoFuture:
		return checkExpiry(b.InstrumentID, v.Activation, v.Expiration)
	case *FuturesContract:
		return checkExpiry(b.InstrumentID, v.Activation, v.Expiration)
	case *FuturesSpread:
		return checkExpiry(b.InstrumentID, v.Activation, v.Expiration)
	case *OptionsSpread:
		return checkExpiry(b.InstrumentID, v.Activation, v.Expiration)
	case *OptionsContract:
		if v.OptionKind != OptionKindCall && v.OptionKind != OptionKindPut {
			return fmt.Errorf("model: %s option_kind %q is not CALL or PUT", b.InstrumentID, v.OptionKind)
		}
		if !v.StrikePrice.IsPositive() {
			return fmt.Errorf("model: %s strike_price must be positive", b.InstrumentID)
		}
		return checkExpiry(b.InstrumentID, v.Activation, v.Expiration)
	}
	return nil
}

func checkExpiry(id InstrumentID, activation, expiration int64) error {
	if expiration != 0 && expiration < activation {
		return fmt.Errorf("model: %s expiration precedes activation", id)
	}
	return nil
}

// envelope is the tagged JSON form of an Instrument.
type envelope struct {
	Kind       InstrumentKind  `json:"kind"`
	Instrument json.RawMessage `json:"instrument"`
}

// MarshalInstrument encodes inst with its variant tag so it can be decoded
// back into the same concrete type.
func MarshalInstrument(inst Instrument) ([]byte, error) {
	body, err := json.Marshal(inst)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", inst.Kind(), err)
	}
	return json.Marshal(envelope{Kind: inst.Kind(), Instrument: body})
}

// UnmarshalInstrument is the inverse of MarshalInstrument.
func UnmarshalInstrument(data []byte) (Instrument, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal instrument envelope: %w", err)
	}
	inst, err := NewInstrument(env.Kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(env.Instrument, inst); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", env.Kind, err)
	}
	return inst, nil
}

// CloneInstrument returns a copy of inst that shares no mutable state with
// it. Decimal fields are immutable values, so a struct copy suffices.
func CloneInstrument(inst Instrument) Instrument {
	v := reflect.ValueOf(inst).Elem()
	cp := reflect.New(v.Type())
	cp.Elem().Set(v)
	return cp.Interface().(Instrument)
}
