// Package schema creates and migrates the cachedb tables.
//
// The record structs mirror the columns written by the store package.
// They are only used for AutoMigrate; reads and writes go through pgx.
package schema

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/atmx/cachedb/internal/model"
)

// InstrumentRecords maps each instrument kind to the record describing its
// table.
var InstrumentRecords = map[model.InstrumentKind]any{
	model.KindCryptoFuture:    &CryptoFutureRecord{},
	model.KindCryptoPerpetual: &CryptoPerpetualRecord{},
	model.KindCurrencyPair:    &CurrencyPairRecord{},
	model.KindEquity:          &EquityRecord{},
	model.KindFuturesContract: &FuturesContractRecord{},
	model.KindFuturesSpread:   &FuturesSpreadRecord{},
	model.KindOptionsContract: &OptionsContractRecord{},
	model.KindOptionsSpread:   &OptionsSpreadRecord{},
}

// Records returns every table record in migration order.
func Records() []any {
	records := []any{&GeneralRecord{}, &CurrencyRecord{}}
	for _, kind := range model.InstrumentKinds() {
		records = append(records, InstrumentRecords[kind])
	}
	return append(records, &DeadLetterRecord{})
}

// Migrate connects to dsn and creates or updates every table.
func Migrate(ctx context.Context, dsn string) error {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve raw DB: %w", err)
	}
	defer sqlDB.Close()

	if err := db.WithContext(ctx).AutoMigrate(Records()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
