// Package store defines the persistence gateway for cachedb.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache for point lookups), and in-memory (for testing and development).
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atmx/cachedb/internal/model"
)

// ErrQuery matches every *QueryError via errors.Is.
var ErrQuery = errors.New("store: query failed")

// QueryError reports a failed read or write statement.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

func (e *QueryError) Is(target error) bool { return target == ErrQuery }

func queryErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &QueryError{Op: op, Err: err}
}

// Writer applies a single upsert per call. Every call is one atomic
// statement; repeated calls with the same identity overwrite.
type Writer interface {
	// UpsertGeneral stores an opaque blob under key.
	UpsertGeneral(ctx context.Context, key string, value []byte) error

	// UpsertCurrency stores a currency keyed by its code.
	UpsertCurrency(ctx context.Context, currency model.Currency) error

	// UpsertInstrument stores an instrument in its variant's table.
	UpsertInstrument(ctx context.Context, instrument model.Instrument) error
}

// Reader is the queue-bypassing read path used for cache hydration and
// point lookups. Missing rows are reported as nil results, not errors.
type Reader interface {
	// --- Generic key/value ---

	// LoadGeneral returns the full general table.
	LoadGeneral(ctx context.Context) (map[string][]byte, error)

	// --- Currencies ---

	// LoadCurrency returns the currency with the given code, or nil.
	LoadCurrency(ctx context.Context, code string) (*model.Currency, error)

	// LoadCurrencies returns every stored currency.
	LoadCurrencies(ctx context.Context) ([]model.Currency, error)

	// --- Instruments ---

	// LoadInstrument searches all variant tables for id, or returns nil.
	LoadInstrument(ctx context.Context, id model.InstrumentID) (model.Instrument, error)

	// LoadInstruments returns every stored instrument across all variants.
	LoadInstruments(ctx context.Context) ([]model.Instrument, error)
}

// DeadLetter is a command the worker gave up on after exhausting retries.
type DeadLetter struct {
	ID       uuid.UUID `json:"id"`
	Kind     string    `json:"kind"`
	Key      string    `json:"key"`
	Payload  []byte    `json:"payload"`
	Error    string    `json:"error"`
	Attempts int       `json:"attempts"`
	FailedAt time.Time `json:"failed_at"`
}

// DeadLetterWriter records commands that could not be applied.
type DeadLetterWriter interface {
	WriteDeadLetter(ctx context.Context, dl DeadLetter) error
}

// DeadLetterReader lists recorded dead letters, newest first.
type DeadLetterReader interface {
	LoadDeadLetters(ctx context.Context, limit int) ([]DeadLetter, error)
}

// Store is the full gateway: both sides plus the dead-letter table.
type Store interface {
	Reader
	Writer
	DeadLetterWriter
	DeadLetterReader
}
