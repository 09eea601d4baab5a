package store

import (
	"fmt"
	"strings"

	"github.com/atmx/cachedb/internal/model"
)

// column describes one instrument table column. NUMERIC columns are written
// from decimal strings and read back as TEXT.
type column struct {
	name    string
	numeric bool
}

// baseColumns are shared by every instrument table, in scan order.
var baseColumns = []column{
	{name: "id"},
	{name: "raw_symbol"},
	{name: "quote_currency"},
	{name: "price_precision"},
	{name: "size_precision"},
	{name: "price_increment", numeric: true},
	{name: "size_increment", numeric: true},
	{name: "multiplier", numeric: true},
	{name: "lot_size", numeric: true},
	{name: "margin_init", numeric: true},
	{name: "margin_maint", numeric: true},
	{name: "maker_fee", numeric: true},
	{name: "taker_fee", numeric: true},
	{name: "ts_event"},
	{name: "ts_init"},
}

func baseValues(b *model.InstrumentBase) []any {
	return []any{
		b.InstrumentID.String(),
		b.RawSymbol,
		b.QuoteCurrency,
		int16(b.PricePrecision),
		int16(b.SizePrecision),
		b.PriceIncrement.String(),
		b.SizeIncrement.String(),
		b.Multiplier.String(),
		b.LotSize.String(),
		b.MarginInit.String(),
		b.MarginMaint.String(),
		b.MakerFee.String(),
		b.TakerFee.String(),
		b.TsEvent,
		b.TsInit,
	}
}

func baseTargets(base *model.InstrumentBase, b *binder) []any {
	return []any{
		b.instrumentID(&base.InstrumentID),
		&base.RawSymbol,
		&base.QuoteCurrency,
		b.uint8(&base.PricePrecision),
		b.uint8(&base.SizePrecision),
		b.decimal(&base.PriceIncrement),
		b.decimal(&base.SizeIncrement),
		b.decimal(&base.Multiplier),
		b.decimal(&base.LotSize),
		b.decimal(&base.MarginInit),
		b.decimal(&base.MarginMaint),
		b.decimal(&base.MakerFee),
		b.decimal(&base.TakerFee),
		&base.TsEvent,
		&base.TsInit,
	}
}

// instrumentCodec encodes and decodes one instrument variant against its
// own table. values and targets receive only instruments of codec.kind.
type instrumentCodec struct {
	kind    model.InstrumentKind
	table   string
	columns []column
	values  func(model.Instrument) []any
	targets func(model.Instrument, *binder) []any

	upsertSQL string
	selectSQL string
	pointSQL  string
}

func (c *instrumentCodec) allColumns() []column {
	cols := make([]column, 0, len(baseColumns)+len(c.columns))
	cols = append(cols, baseColumns...)
	return append(cols, c.columns...)
}

func (c *instrumentCodec) args(inst model.Instrument) []any {
	return append(baseValues(inst.Common()), c.values(inst)...)
}

// decode scans one row into a fresh instance of the codec's variant.
func (c *instrumentCodec) decode(row interface{ Scan(...any) error }) (model.Instrument, error) {
	inst, err := model.NewInstrument(c.kind)
	if err != nil {
		return nil, err
	}
	var b binder
	dest := append(baseTargets(inst.Common(), &b), c.targets(inst, &b)...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if err := b.resolve(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.table, err)
	}
	return inst, nil
}

// build renders the codec's statements. others are the tables of every
// other variant: an id lives in exactly one variant table, so the upsert
// evicts it from the rest within the same statement.
func (c *instrumentCodec) build(others []string) {
	cols := c.allColumns()
	names := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	selects := make([]string, len(cols))
	updates := make([]string, 0, len(cols)-1)
	for i, col := range cols {
		names[i] = col.name
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		selects[i] = col.name
		if col.numeric {
			placeholders[i] += "::NUMERIC"
			selects[i] += "::TEXT"
		}
		if col.name != "id" {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col.name, col.name))
		}
	}

	evictions := make([]string, len(others))
	for i, table := range others {
		evictions[i] = fmt.Sprintf("evict_%d AS (DELETE FROM %s WHERE id = $1)", i, table)
	}
	var with string
	if len(evictions) > 0 {
		with = "WITH " + strings.Join(evictions, ", ") + " "
	}

	c.upsertSQL = fmt.Sprintf(
		`%sINSERT INTO %s (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s`,
		with, c.table, strings.Join(names, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", "),
	)
	c.selectSQL = fmt.Sprintf(`SELECT %s FROM %s ORDER BY id`, strings.Join(selects, ", "), c.table)
	c.pointSQL = fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, strings.Join(selects, ", "), c.table)
}

// InstrumentTable returns the table that stores instruments of kind.
func InstrumentTable(kind model.InstrumentKind) (string, error) {
	c, ok := codecs[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", model.ErrUnknownInstrumentKind, kind)
	}
	return c.table, nil
}

// InstrumentColumns returns the column names of kind's table in scan order.
func InstrumentColumns(kind model.InstrumentKind) ([]string, error) {
	c, err := codecFor(kind)
	if err != nil {
		return nil, err
	}
	cols := c.allColumns()
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.name
	}
	return names, nil
}

func codecFor(kind model.InstrumentKind) (*instrumentCodec, error) {
	c, ok := codecs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownInstrumentKind, kind)
	}
	return c, nil
}

var codecs = map[model.InstrumentKind]*instrumentCodec{}

func init() {
	for _, c := range codecList {
		others := make([]string, 0, len(codecList)-1)
		for _, o := range codecList {
			if o != c {
				others = append(others, o.table)
			}
		}
		c.build(others)
		codecs[c.kind] = c
	}
	for _, k := range model.InstrumentKinds() {
		if _, ok := codecs[k]; !ok {
			panic(fmt.Sprintf("store: no codec registered for instrument kind %s", k))
		}
	}
	if len(codecs) != len(model.InstrumentKinds()) {
		panic("store: codec registered for unknown instrument kind")
	}
}

var codecList = []*instrumentCodec{
	{
		kind:  model.KindCryptoFuture,
		table: "instrument_crypto_future",
		columns: []column{
			{name: "underlying"}, {name: "settlement_currency"}, {name: "is_inverse"},
			{name: "activation_ns"}, {name: "expiration_ns"},
		},
		values: func(i model.Instrument) []any {
			v := i.(*model.CryptoFuture)
			return []any{v.Underlying, v.SettlementCurrency, v.IsInverse, v.Activation, v.Expiration}
		},
		targets: func(i model.Instrument, _ *binder) []any {
			v := i.(*model.CryptoFuture)
			return []any{&v.Underlying, &v.SettlementCurrency, &v.IsInverse, &v.Activation, &v.Expiration}
		},
	},
	{
		kind:  model.KindCryptoPerpetual,
		table: "instrument_crypto_perpetual",
		columns: []column{
			{name: "base_currency"}, {name: "settlement_currency"}, {name: "is_inverse"},
		},
		values: func(i model.Instrument) []any {
			v := i.(*model.CryptoPerpetual)
			return []any{v.BaseCurrency, v.SettlementCurrency, v.IsInverse}
		},
		targets: func(i model.Instrument, _ *binder) []any {
			v := i.(*model.CryptoPerpetual)
			return []any{&v.BaseCurrency, &v.SettlementCurrency, &v.IsInverse}
		},
	},
	{
		kind:    model.KindCurrencyPair,
		table:   "instrument_currency_pair",
		columns: []column{{name: "base_currency"}},
		values: func(i model.Instrument) []any {
			return []any{i.(*model.CurrencyPair).BaseCurrency}
		},
		targets: func(i model.Instrument, _ *binder) []any {
			return []any{&i.(*model.CurrencyPair).BaseCurrency}
		},
	},
	{
		kind:    model.KindEquity,
		table:   "instrument_equity",
		columns: []column{{name: "isin"}},
		values: func(i model.Instrument) []any {
			return []any{i.(*model.Equity).ISIN}
		},
		targets: func(i model.Instrument, _ *binder) []any {
			return []any{&i.(*model.Equity).ISIN}
		},
	},
	{
		kind:  model.KindFuturesContract,
		table: "instrument_futures_contract",
		columns: []column{
			{name: "asset_class"}, {name: "exchange"}, {name: "underlying"},
			{name: "activation_ns"}, {name: "expiration_ns"},
		},
		values: func(i model.Instrument) []any {
			v := i.(*model.FuturesContract)
			return []any{string(v.AssetClass), v.Exchange, v.Underlying, v.Activation, v.Expiration}
		},
		targets: func(i model.Instrument, b *binder) []any {
			v := i.(*model.FuturesContract)
			return []any{text(b, &v.AssetClass), &v.Exchange, &v.Underlying, &v.Activation, &v.Expiration}
		},
	},
	{
		kind:  model.KindFuturesSpread,
		table: "instrument_futures_spread",
		columns: []column{
			{name: "asset_class"}, {name: "exchange"}, {name: "underlying"}, {name: "strategy_type"},
			{name: "activation_ns"}, {name: "expiration_ns"},
		},
		values: func(i model.Instrument) []any {
			v := i.(*model.FuturesSpread)
			return []any{string(v.AssetClass), v.Exchange, v.Underlying, v.StrategyType, v.Activation, v.Expiration}
		},
		targets: func(i model.Instrument, b *binder) []any {
			v := i.(*model.FuturesSpread)
			return []any{text(b, &v.AssetClass), &v.Exchange, &v.Underlying, &v.StrategyType, &v.Activation, &v.Expiration}
		},
	},
	{
		kind:  model.KindOptionsContract,
		table: "instrument_options_contract",
		columns: []column{
			{name: "asset_class"}, {name: "exchange"}, {name: "underlying"}, {name: "option_kind"},
			{name: "strike_price", numeric: true}, {name: "activation_ns"}, {name: "expiration_ns"},
		},
		values: func(i model.Instrument) []any {
			v := i.(*model.OptionsContract)
			return []any{string(v.AssetClass), v.Exchange, v.Underlying, string(v.OptionKind),
				v.StrikePrice.String(), v.Activation, v.Expiration}
		},
		targets: func(i model.Instrument, b *binder) []any {
			v := i.(*model.OptionsContract)
			return []any{text(b, &v.AssetClass), &v.Exchange, &v.Underlying, text(b, &v.OptionKind),
				b.decimal(&v.StrikePrice), &v.Activation, &v.Expiration}
		},
	},
	{
		kind:  model.KindOptionsSpread,
		table: "instrument_options_spread",
		columns: []column{
			{name: "asset_class"}, {name: "exchange"}, {name: "underlying"}, {name: "strategy_type"},
			{name: "activation_ns"}, {name: "expiration_ns"},
		},
		values: func(i model.Instrument) []any {
			v := i.(*model.OptionsSpread)
			return []any{string(v.AssetClass), v.Exchange, v.Underlying, v.StrategyType, v.Activation, v.Expiration}
		},
		targets: func(i model.Instrument, b *binder) []any {
			v := i.(*model.OptionsSpread)
			return []any{text(b, &v.AssetClass), &v.Exchange, &v.Underlying, &v.StrategyType, &v.Activation, &v.Expiration}
		},
	},
}
