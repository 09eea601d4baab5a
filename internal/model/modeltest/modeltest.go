// Package modeltest provides sample currencies and instruments for tests.
package modeltest

import (
	"github.com/shopspring/decimal"

	"github.com/atmx/cachedb/internal/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// USD returns a fiat currency.
func USD() model.Currency {
	return model.Currency{Code: "USD", Precision: 2, ISO4217: 840, Name: "United States dollar", CurrencyType: model.CurrencyTypeFiat}
}

// BTC returns a crypto currency.
func BTC() model.Currency {
	return model.Currency{Code: "BTC", Precision: 8, Name: "Bitcoin", CurrencyType: model.CurrencyTypeCrypto}
}

// Base returns a populated InstrumentBase for id.
func Base(id string) model.InstrumentBase {
	iid := model.MustInstrumentID(id)
	return model.InstrumentBase{
		InstrumentID:   iid,
		RawSymbol:      iid.Symbol,
		QuoteCurrency:  "USD",
		PricePrecision: 2,
		SizePrecision:  3,
		PriceIncrement: d("0.01"),
		SizeIncrement:  d("0.001"),
		Multiplier:     d("1"),
		LotSize:        d("1"),
		MarginInit:     d("0.05"),
		MarginMaint:    d("0.025"),
		MakerFee:       d("0.0002"),
		TakerFee:       d("0.0004"),
		TsEvent:        1_700_000_000_000_000_000,
		TsInit:         1_700_000_000_000_000_001,
	}
}

func CryptoFuture() *model.CryptoFuture {
	return &model.CryptoFuture{
		InstrumentBase:     Base("BTCUSDT-240329.BINANCE"),
		Underlying:         "BTC",
		SettlementCurrency: "USDT",
		Activation:         1_700_000_000_000_000_000,
		Expiration:         1_711_670_400_000_000_000,
	}
}

func CryptoPerpetual() *model.CryptoPerpetual {
	return &model.CryptoPerpetual{
		InstrumentBase:     Base("BTCUSDT-PERP.BINANCE"),
		BaseCurrency:       "BTC",
		SettlementCurrency: "USDT",
	}
}

func CurrencyPair() *model.CurrencyPair {
	return &model.CurrencyPair{
		InstrumentBase: Base("EUR/USD.SIM"),
		BaseCurrency:   "EUR",
	}
}

func Equity() *model.Equity {
	return &model.Equity{
		InstrumentBase: Base("AAPL.XNAS"),
		ISIN:           "US0378331005",
	}
}

func FuturesContract() *model.FuturesContract {
	return &model.FuturesContract{
		InstrumentBase: Base("ESZ4.XCME"),
		AssetClass:     model.AssetClassIndex,
		Exchange:       "XCME",
		Underlying:     "ES",
		Activation:     1_700_000_000_000_000_000,
		Expiration:     1_734_652_800_000_000_000,
	}
}

func FuturesSpread() *model.FuturesSpread {
	return &model.FuturesSpread{
		InstrumentBase: Base("ESM4-ESU4.XCME"),
		AssetClass:     model.AssetClassIndex,
		Exchange:       "XCME",
		Underlying:     "ES",
		StrategyType:   "EQ",
		Activation:     1_700_000_000_000_000_000,
		Expiration:     1_718_928_000_000_000_000,
	}
}

func OptionsContract() *model.OptionsContract {
	return &model.OptionsContract{
		InstrumentBase: Base("AAPL211217C00150000.OPRA"),
		AssetClass:     model.AssetClassEquity,
		Exchange:       "GMNI",
		Underlying:     "AAPL",
		OptionKind:     model.OptionKindCall,
		StrikePrice:    d("149.00"),
		Activation:     1_631_836_800_000_000_000,
		Expiration:     1_639_699_200_000_000_000,
	}
}

func OptionsSpread() *model.OptionsSpread {
	return &model.OptionsSpread{
		InstrumentBase: Base("UD:U$: GN 2534559.XCME"),
		AssetClass:     model.AssetClassFX,
		Exchange:       "XCME",
		Underlying:     "SR3",
		StrategyType:   "GN",
		Activation:     1_699_999_800_000_000_000,
		Expiration:     1_700_000_000_000_000_000,
	}
}

// Instruments returns one instrument of every variant, in
// model.InstrumentKinds order.
func Instruments() []model.Instrument {
	return []model.Instrument{
		CryptoFuture(),
		CryptoPerpetual(),
		CurrencyPair(),
		Equity(),
		FuturesContract(),
		FuturesSpread(),
		OptionsContract(),
		OptionsSpread(),
	}
}
