package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/cachedb/internal/model"
)

// CachedReader wraps a primary Reader (PostgreSQL) with a Redis read-through
// cache for point lookups.
//
// Readers only fill an absent key (SETNX). The persistence worker overwrites
// the key with the value it just committed (PutCurrency, PutInstrument), so a
// reader that loaded an older row before the flush cannot replace the newer
// entry.
type CachedReader struct {
	primary Reader
	rdb     redis.Cmdable
	ttl     time.Duration
	logger  *slog.Logger
}

// NewCachedReader creates a cached wrapper around a primary reader. A nil
// logger uses slog.Default().
func NewCachedReader(primary Reader, rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) *CachedReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedReader{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
		logger:  logger,
	}
}

// --- Read-through (check cache first) ---

func (r *CachedReader) LoadCurrency(ctx context.Context, code string) (*model.Currency, error) {
	key := currencyKey(code)
	if data, ok := r.get(ctx, key); ok {
		var c model.Currency
		if json.Unmarshal(data, &c) == nil {
			return &c, nil
		}
	}

	// Cache miss: read from primary.
	c, err := r.primary.LoadCurrency(ctx, code)
	if err != nil || c == nil {
		return c, err
	}

	if data, err := json.Marshal(c); err == nil {
		r.fill(ctx, key, data)
	}
	return c, nil
}

func (r *CachedReader) LoadInstrument(ctx context.Context, id model.InstrumentID) (model.Instrument, error) {
	key := instrumentKey(id)
	if data, ok := r.get(ctx, key); ok {
		if inst, err := model.UnmarshalInstrument(data); err == nil {
			return inst, nil
		}
	}

	inst, err := r.primary.LoadInstrument(ctx, id)
	if err != nil || inst == nil {
		return inst, err
	}

	if data, err := model.MarshalInstrument(inst); err == nil {
		r.fill(ctx, key, data)
	}
	return inst, nil
}

func (r *CachedReader) get(ctx context.Context, key string) ([]byte, bool) {
	data, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Debug("redis get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

// fill caches a value loaded from the primary unless a newer one is already
// there.
func (r *CachedReader) fill(ctx context.Context, key string, data []byte) {
	if err := r.rdb.SetNX(ctx, key, data, r.ttl).Err(); err != nil {
		r.logger.Debug("redis fill failed", "key", key, "error", err)
	}
}

// --- Passthrough (not cached) ---

func (r *CachedReader) LoadGeneral(ctx context.Context) (map[string][]byte, error) {
	return r.primary.LoadGeneral(ctx)
}

func (r *CachedReader) LoadCurrencies(ctx context.Context) ([]model.Currency, error) {
	return r.primary.LoadCurrencies(ctx)
}

func (r *CachedReader) LoadInstruments(ctx context.Context) ([]model.Instrument, error) {
	return r.primary.LoadInstruments(ctx)
}

// --- Refresh after a write ---

// PutCurrency stores the committed value of c, replacing any cached copy.
func (r *CachedReader) PutCurrency(ctx context.Context, c model.Currency) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, currencyKey(c.Code), data, r.ttl).Err()
}

// PutInstrument stores the committed value of inst, replacing any cached copy.
func (r *CachedReader) PutInstrument(ctx context.Context, inst model.Instrument) error {
	data, err := model.MarshalInstrument(inst)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, instrumentKey(inst.ID()), data, r.ttl).Err()
}

func (r *CachedReader) InvalidateCurrency(ctx context.Context, code string) error {
	return r.rdb.Del(ctx, currencyKey(code)).Err()
}

func (r *CachedReader) InvalidateInstrument(ctx context.Context, id model.InstrumentID) error {
	return r.rdb.Del(ctx, instrumentKey(id)).Err()
}

func currencyKey(code string) string             { return fmt.Sprintf("cachedb:currency:%s", code) }
func instrumentKey(id model.InstrumentID) string { return fmt.Sprintf("cachedb:instrument:%s", id) }
