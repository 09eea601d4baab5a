package persist

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/atmx/cachedb/internal/model"
)

// Event describes a command that reached the store.
type Event struct {
	Kind string    `json:"kind"`
	Key  string    `json:"key"`
	At   time.Time `json:"at"`

	Command Command `json:"-"`
}

// Observer is notified by the worker after each command is persisted.
// Implementations run on the worker goroutine and must not block.
type Observer interface {
	OnPersisted(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) OnPersisted(ctx context.Context, ev Event) { f(ctx, ev) }

// CacheRefresher keeps a read cache in step with the store;
// store.CachedReader implements it.
type CacheRefresher interface {
	PutCurrency(ctx context.Context, c model.Currency) error
	PutInstrument(ctx context.Context, inst model.Instrument) error
	InvalidateCurrency(ctx context.Context, code string) error
	InvalidateInstrument(ctx context.Context, id model.InstrumentID) error
}

// RefreshOnPersist returns an Observer that writes the committed value of
// every persisted currency and instrument into the cache. Observers run on
// the worker goroutine in commit order, so the cache ends on the latest
// value. When the write fails the entry is evicted instead.
func RefreshOnPersist(cache CacheRefresher, logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return ObserverFunc(func(ctx context.Context, ev Event) {
		var err error
		switch cmd := ev.Command.(type) {
		case CurrencyUpsert:
			if err = cache.PutCurrency(ctx, cmd.currency); err != nil {
				err = errors.Join(err, cache.InvalidateCurrency(ctx, cmd.currency.Code))
			}
		case InstrumentUpsert:
			if err = cache.PutInstrument(ctx, cmd.instrument); err != nil {
				err = errors.Join(err, cache.InvalidateInstrument(ctx, cmd.instrument.ID()))
			}
		default:
			return
		}
		if err != nil {
			logger.Warn("cache refresh failed", "kind", ev.Kind, "key", ev.Key, "error", err)
		}
	})
}
