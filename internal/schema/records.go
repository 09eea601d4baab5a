package schema

import "time"

// GeneralRecord is the generic key/value table.
type GeneralRecord struct {
	ID    string `gorm:"column:id;primaryKey"`
	Value []byte `gorm:"column:value;type:bytea;not null"`
}

func (GeneralRecord) TableName() string { return "general" }

// CurrencyRecord is keyed by currency code.
type CurrencyRecord struct {
	Code         string `gorm:"column:code;primaryKey"`
	Precision    int16  `gorm:"column:precision;type:smallint;not null"`
	ISO4217      int32  `gorm:"column:iso4217;not null"`
	Name         string `gorm:"column:name;not null"`
	CurrencyType string `gorm:"column:currency_type;not null"`
}

func (CurrencyRecord) TableName() string { return "currency" }

// InstrumentBase holds the columns shared by every instrument table.
type InstrumentBase struct {
	ID             string `gorm:"column:id;primaryKey"`
	RawSymbol      string `gorm:"column:raw_symbol;not null"`
	QuoteCurrency  string `gorm:"column:quote_currency;not null"`
	PricePrecision int16  `gorm:"column:price_precision;type:smallint;not null"`
	SizePrecision  int16  `gorm:"column:size_precision;type:smallint;not null"`
	PriceIncrement string `gorm:"column:price_increment;type:numeric;not null"`
	SizeIncrement  string `gorm:"column:size_increment;type:numeric;not null"`
	Multiplier     string `gorm:"column:multiplier;type:numeric;not null"`
	LotSize        string `gorm:"column:lot_size;type:numeric;not null"`
	MarginInit     string `gorm:"column:margin_init;type:numeric;not null"`
	MarginMaint    string `gorm:"column:margin_maint;type:numeric;not null"`
	MakerFee       string `gorm:"column:maker_fee;type:numeric;not null"`
	TakerFee       string `gorm:"column:taker_fee;type:numeric;not null"`
	TsEvent        int64  `gorm:"column:ts_event;not null"`
	TsInit         int64  `gorm:"column:ts_init;not null"`
}

type CryptoFutureRecord struct {
	InstrumentBase     `gorm:"embedded"`
	Underlying         string `gorm:"column:underlying;not null"`
	SettlementCurrency string `gorm:"column:settlement_currency;not null"`
	IsInverse          bool   `gorm:"column:is_inverse;not null"`
	ActivationNs       int64  `gorm:"column:activation_ns;not null"`
	ExpirationNs       int64  `gorm:"column:expiration_ns;not null"`
}

func (CryptoFutureRecord) TableName() string { return "instrument_crypto_future" }

type CryptoPerpetualRecord struct {
	InstrumentBase     `gorm:"embedded"`
	BaseCurrency       string `gorm:"column:base_currency;not null"`
	SettlementCurrency string `gorm:"column:settlement_currency;not null"`
	IsInverse          bool   `gorm:"column:is_inverse;not null"`
}

func (CryptoPerpetualRecord) TableName() string { return "instrument_crypto_perpetual" }

type CurrencyPairRecord struct {
	InstrumentBase `gorm:"embedded"`
	BaseCurrency   string `gorm:"column:base_currency;not null"`
}

func (CurrencyPairRecord) TableName() string { return "instrument_currency_pair" }

type EquityRecord struct {
	InstrumentBase `gorm:"embedded"`
	ISIN           string `gorm:"column:isin;not null"`
}

func (EquityRecord) TableName() string { return "instrument_equity" }

type FuturesContractRecord struct {
	InstrumentBase `gorm:"embedded"`
	AssetClass     string `gorm:"column:asset_class;not null"`
	Exchange       string `gorm:"column:exchange;not null"`
	Underlying     string `gorm:"column:underlying;not null"`
	ActivationNs   int64  `gorm:"column:activation_ns;not null"`
	ExpirationNs   int64  `gorm:"column:expiration_ns;not null"`
}

func (FuturesContractRecord) TableName() string { return "instrument_futures_contract" }

type FuturesSpreadRecord struct {
	InstrumentBase `gorm:"embedded"`
	AssetClass     string `gorm:"column:asset_class;not null"`
	Exchange       string `gorm:"column:exchange;not null"`
	Underlying     string `gorm:"column:underlying;not null"`
	StrategyType   string `gorm:"column:strategy_type;not null"`
	ActivationNs   int64  `gorm:"column:activation_ns;not null"`
	ExpirationNs   int64  `gorm:"column:expiration_ns;not null"`
}

func (FuturesSpreadRecord) TableName() string { return "instrument_futures_spread" }

type OptionsContractRecord struct {
	InstrumentBase `gorm:"embedded"`
	AssetClass     string `gorm:"column:asset_class;not null"`
	Exchange       string `gorm:"column:exchange;not null"`
	Underlying     string `gorm:"column:underlying;not null"`
	OptionKind     string `gorm:"column:option_kind;not null"`
	StrikePrice    string `gorm:"column:strike_price;type:numeric;not null"`
	ActivationNs   int64  `gorm:"column:activation_ns;not null"`
	ExpirationNs   int64  `gorm:"column:expiration_ns;not null"`
}

func (OptionsContractRecord) TableName() string { return "instrument_options_contract" }

type OptionsSpreadRecord struct {
	InstrumentBase `gorm:"embedded"`
	AssetClass     string `gorm:"column:asset_class;not null"`
	Exchange       string `gorm:"column:exchange;not null"`
	Underlying     string `gorm:"column:underlying;not null"`
	StrategyType   string `gorm:"column:strategy_type;not null"`
	ActivationNs   int64  `gorm:"column:activation_ns;not null"`
	ExpirationNs   int64  `gorm:"column:expiration_ns;not null"`
}

func (OptionsSpreadRecord) TableName() string { return "instrument_options_spread" }

// DeadLetterRecord holds commands the worker gave up on.
type DeadLetterRecord struct {
	ID       string    `gorm:"column:id;type:uuid;primaryKey"`
	Kind     string    `gorm:"column:kind;not null"`
	Key      string    `gorm:"column:key;not null"`
	Payload  []byte    `gorm:"column:payload;type:bytea"`
	Error    string    `gorm:"column:error;not null"`
	Attempts int       `gorm:"column:attempts;not null"`
	FailedAt time.Time `gorm:"column:failed_at;type:timestamptz;not null;index"`
}

func (DeadLetterRecord) TableName() string { return "dead_letter" }
