package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/atmx/cachedb/internal/model"
)

// Querier is satisfied by both *pgx.Conn (the worker's dedicated write
// connection) and *pgxpool.Pool (the shared read pool).
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Decimal values are stored as NUMERIC and read back as TEXT for exact
// precision.
type PostgresStore struct {
	db Querier
}

// NewPostgresStore creates a PostgreSQL-backed store over db.
func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

const (
	upsertGeneralSQL = `INSERT INTO general (id, value) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET value = EXCLUDED.value`

	selectGeneralSQL = `SELECT id, value FROM general`

	upsertCurrencySQL = `INSERT INTO currency (code, precision, iso4217, name, currency_type)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET
			precision = EXCLUDED.precision,
			iso4217 = EXCLUDED.iso4217,
			name = EXCLUDED.name,
			currency_type = EXCLUDED.currency_type`

	selectCurrencySQL = `SELECT code, precision, iso4217, name, currency_type FROM currency`

	insertDeadLetterSQL = `INSERT INTO dead_letter (id, kind, key, payload, error, attempts, failed_at)
		VALUES ($1::UUID, $2, $3, $4, $5, $6, $7)`

	selectDeadLetterSQL = `SELECT id::TEXT, kind, key, payload, error, attempts, failed_at
		FROM dead_letter ORDER BY failed_at DESC LIMIT $1`
)

// --- Writer ---

func (s *PostgresStore) UpsertGeneral(ctx context.Context, key string, value []byte) error {
	_, err := s.db.Exec(ctx, upsertGeneralSQL, key, value)
	return queryErr("upsert general "+key, err)
}

func (s *PostgresStore) UpsertCurrency(ctx context.Context, c model.Currency) error {
	_, err := s.db.Exec(ctx, upsertCurrencySQL,
		c.Code, int16(c.Precision), int32(c.ISO4217), c.Name, string(c.CurrencyType),
	)
	return queryErr("upsert currency "+c.Code, err)
}

func (s *PostgresStore) UpsertInstrument(ctx context.Context, inst model.Instrument) error {
	c, err := codecFor(inst.Kind())
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, c.upsertSQL, c.args(inst)...)
	return queryErr(fmt.Sprintf("upsert %s %s", c.table, inst.ID()), err)
}

func (s *PostgresStore) WriteDeadLetter(ctx context.Context, dl DeadLetter) error {
	_, err := s.db.Exec(ctx, insertDeadLetterSQL,
		dl.ID.String(), dl.Kind, dl.Key, dl.Payload, dl.Error, dl.Attempts, dl.FailedAt,
	)
	return queryErr("insert dead letter "+dl.ID.String(), err)
}

// --- Reader ---

func (s *PostgresStore) LoadGeneral(ctx context.Context) (map[string][]byte, error) {
	rows, err := s.db.Query(ctx, selectGeneralSQL)
	if err != nil {
		return nil, queryErr("load general", err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, queryErr("load general", err)
		}
		out[key] = value
	}
	return out, queryErr("load general", rows.Err())
}

func (s *PostgresStore) LoadCurrency(ctx context.Context, code string) (*model.Currency, error) {
	c, err := scanCurrency(s.db.QueryRow(ctx, selectCurrencySQL+` WHERE code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, queryErr("load currency "+code, err)
	}
	return &c, nil
}

func (s *PostgresStore) LoadCurrencies(ctx context.Context) ([]model.Currency, error) {
	rows, err := s.db.Query(ctx, selectCurrencySQL+` ORDER BY code`)
	if err != nil {
		return nil, queryErr("load currencies", err)
	}
	defer rows.Close()

	var currencies []model.Currency
	for rows.Next() {
		c, err := scanCurrency(rows)
		if err != nil {
			return nil, queryErr("load currencies", err)
		}
		currencies = append(currencies, c)
	}
	return currencies, queryErr("load currencies", rows.Err())
}

func (s *PostgresStore) LoadInstrument(ctx context.Context, id model.InstrumentID) (model.Instrument, error) {
	for _, kind := range model.InstrumentKinds() {
		c := codecs[kind]
		inst, err := c.decode(s.db.QueryRow(ctx, c.pointSQL, id.String()))
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, queryErr(fmt.Sprintf("load %s %s", c.table, id), err)
		}
		return inst, nil
	}
	return nil, nil
}

func (s *PostgresStore) LoadInstruments(ctx context.Context) ([]model.Instrument, error) {
	var out []model.Instrument
	for _, kind := range model.InstrumentKinds() {
		c := codecs[kind]
		batch, err := s.loadTable(ctx, c)
		if err != nil {
			return nil, queryErr("load "+c.table, err)
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (s *PostgresStore) loadTable(ctx context.Context, c *instrumentCodec) ([]model.Instrument, error) {
	rows, err := s.db.Query(ctx, c.selectSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Instrument
	for rows.Next() {
		inst, err := c.decode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (s *PostgresStore) LoadDeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	rows, err := s.db.Query(ctx, selectDeadLetterSQL, limit)
	if err != nil {
		return nil, queryErr("load dead letters", err)
	}
	defer rows.Close()

	var out []DeadLetter
	for rows.Next() {
		var dl DeadLetter
		var id string
		if err := rows.Scan(&id, &dl.Kind, &dl.Key, &dl.Payload, &dl.Error, &dl.Attempts, &dl.FailedAt); err != nil {
			return nil, queryErr("load dead letters", err)
		}
		if dl.ID, err = uuid.Parse(id); err != nil {
			return nil, queryErr("load dead letters", err)
		}
		out = append(out, dl)
	}
	return out, queryErr("load dead letters", rows.Err())
}

// rowScanner reads one row from either pgx.Row or pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCurrency(row rowScanner) (model.Currency, error) {
	var c model.Currency
	var precision int16
	var iso int32
	var currencyType string
	if err := row.Scan(&c.Code, &precision, &iso, &c.Name, &currencyType); err != nil {
		return model.Currency{}, err
	}
	c.Precision = uint8(precision)
	c.ISO4217 = uint16(iso)
	c.CurrencyType = model.CurrencyType(currencyType)
	return c, nil
}
