// Package persist is the write-behind bridge between the trading cache and
// PostgreSQL.
//
// A Handle is the producer side: Add, AddCurrency and AddInstrument queue
// commands and return as soon as the command is admitted, blocking only
// while the queue is full. A single Worker drains the queue in arrival
// order over one dedicated write session. Reads bypass the queue and go
// straight to the read pool, so a read issued right after an enqueue may
// not observe it until the next flush.
//
// Shutdown is cooperative: every Handle reference (see Clone) must be
// closed before the worker performs its final flush and exits.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/cachedb/internal/config"
	"github.com/atmx/cachedb/internal/database"
	"github.com/atmx/cachedb/internal/metrics"
	"github.com/atmx/cachedb/internal/model"
	"github.com/atmx/cachedb/internal/store"
)

// ErrNoDeadLetters is returned by LoadDeadLetters when the read store does
// not expose the dead-letter table.
var ErrNoDeadLetters = errors.New("persist: dead letters not readable from this store")

// Handle is one producer reference to a running worker plus the shared read
// path. It is safe for concurrent use.
type Handle struct {
	q       *queue
	worker  *Worker
	reader  store.Reader
	letters store.DeadLetterReader
	res     *resources

	closed atomic.Bool
}

// resources are released once the worker has exited.
type resources struct {
	once     sync.Once
	cleanups []func()
}

func (r *resources) release() {
	r.once.Do(func() {
		for i := len(r.cleanups) - 1; i >= 0; i-- {
			r.cleanups[i]()
		}
	})
}

// Option configures Start and Connect.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	observers []Observer
	rdb       redis.Cmdable
	cacheTTL  time.Duration
	session   Session
	cleanups  []func()
}

// WithLogger sets the logger used by the worker.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithObserver registers an observer notified after each persisted command.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

// WithReadCache puts a Redis read-through cache in front of point lookups.
// Cached entries are refreshed after the corresponding command is
// persisted.
func WithReadCache(rdb redis.Cmdable, ttl time.Duration) Option {
	return func(o *options) {
		o.rdb = rdb
		o.cacheTTL = ttl
	}
}

// WithCleanup registers fn to run once the worker has exited and the handle
// is shut down.
func WithCleanup(fn func()) Option {
	return func(o *options) { o.cleanups = append(o.cleanups, fn) }
}

func withSession(s Session) Option {
	return func(o *options) { o.session = s }
}

// Start creates the queue and worker over an arbitrary read store and write
// dialer, and starts the worker.
func Start(cfg Config, reader store.Reader, dial Dialer, opts ...Option) *Handle {
	cfg = cfg.withDefaults()

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	letters, _ := reader.(store.DeadLetterReader)
	if o.rdb != nil {
		cached := store.NewCachedReader(reader, o.rdb, o.cacheTTL, o.logger)
		reader = cached
		o.observers = append(o.observers, RefreshOnPersist(cached, o.logger))
	}

	w := newWorker(cfg, dial, o.session, o.observers, o.logger)
	q := newQueue(cfg.Capacity, w.done)
	w.queue = q.ch
	w.Start()

	return &Handle{
		q:       q,
		worker:  w,
		reader:  reader,
		letters: letters,
		res:     &resources{cleanups: o.cleanups},
	}
}

// Connect opens the read pool and the write session against PostgreSQL and
// starts the worker. Failure to reach the database is a *ConnectionError.
func Connect(ctx context.Context, pg config.PostgresConfig, cfg Config, opts ...Option) (*Handle, error) {
	target := fmt.Sprintf("%s:%d/%s", pg.Host, pg.Port, pg.DBName)

	pool, err := database.Connect(ctx, pg)
	if err != nil {
		return nil, &ConnectionError{Target: target, Err: err}
	}

	dial := PostgresDialer(pg)
	sess, err := dial(ctx)
	if err != nil {
		pool.Close()
		return nil, &ConnectionError{Target: target, Err: err}
	}

	opts = append(opts, withSession(sess), WithCleanup(pool.Close))
	return Start(cfg, store.NewPostgresStore(pool), dial, opts...), nil
}

// --- Enqueue ---

// Add queues an upsert of value under key in the general table.
func (h *Handle) Add(ctx context.Context, key string, value []byte) error {
	return h.Enqueue(ctx, NewGeneralUpsert(key, value))
}

// AddCurrency queues an upsert of c keyed by its code.
func (h *Handle) AddCurrency(ctx context.Context, c model.Currency) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return h.Enqueue(ctx, NewCurrencyUpsert(c))
}

// AddInstrument queues an upsert of inst into its variant's table.
func (h *Handle) AddInstrument(ctx context.Context, inst model.Instrument) error {
	if err := model.ValidateInstrument(inst); err != nil {
		return err
	}
	return h.Enqueue(ctx, NewInstrumentUpsert(inst))
}

// Enqueue admits cmd to the queue, blocking while it is full. It returns a
// *SendError once this handle is closed or the worker has exited.
func (h *Handle) Enqueue(ctx context.Context, cmd Command) error {
	if h.closed.Load() {
		return &SendError{Kind: cmd.Kind(), Key: cmd.Key()}
	}
	return h.q.send(ctx, cmd)
}

// --- Lifecycle ---

// Clone returns an additional producer reference. The worker keeps running
// until every reference is closed.
func (h *Handle) Clone() (*Handle, error) {
	if h.closed.Load() || !h.q.acquire() {
		return nil, ErrSend
	}
	return &Handle{
		q:       h.q,
		worker:  h.worker,
		reader:  h.reader,
		letters: h.letters,
		res:     h.res,
	}, nil
}

// Close releases this producer reference. Closing the last reference lets
// the worker drain and exit. Reads remain available until Shutdown.
func (h *Handle) Close() error {
	if h.closed.CompareAndSwap(false, true) {
		h.q.release()
	}
	return nil
}

// Done is closed once the worker has exited.
func (h *Handle) Done() <-chan struct{} { return h.worker.Done() }

// Wait joins the worker: it blocks until the worker has flushed everything
// and exited, or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	return h.worker.Wait(ctx)
}

// Shutdown closes this reference, waits for the worker to drain, then
// releases the read pool. If ctx expires first the worker is aborted and
// the remaining commands are dropped.
//
// Releasing the reference can wait on producers blocked on a full queue;
// ctx bounds that wait too.
func (h *Handle) Shutdown(ctx context.Context) error {
	closed := make(chan struct{})
	go func() {
		h.Close()
		close(closed)
	}()

	var err error
	select {
	case <-closed:
		err = h.Wait(ctx)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		h.worker.Abort()
		<-h.worker.Done()
		<-closed
	}
	h.res.release()
	return err
}

// Abort stops the worker immediately without draining.
func (h *Handle) Abort() { h.worker.Abort() }

// Stats returns the worker counters.
func (h *Handle) Stats() Stats { return h.worker.Stats() }

// --- Read path ---

// Load returns the full general table.
func (h *Handle) Load(ctx context.Context) (map[string][]byte, error) {
	defer metrics.ObserveRead("load", time.Now())
	return h.reader.LoadGeneral(ctx)
}

// LoadCurrency returns the currency for code, or nil if none is stored.
func (h *Handle) LoadCurrency(ctx context.Context, code string) (*model.Currency, error) {
	defer metrics.ObserveRead("load_currency", time.Now())
	return h.reader.LoadCurrency(ctx, code)
}

// LoadCurrencies returns every stored currency.
func (h *Handle) LoadCurrencies(ctx context.Context) ([]model.Currency, error) {
	defer metrics.ObserveRead("load_currencies", time.Now())
	return h.reader.LoadCurrencies(ctx)
}

// LoadInstrument returns the instrument for id as its concrete variant, or
// nil if none is stored.
func (h *Handle) LoadInstrument(ctx context.Context, id model.InstrumentID) (model.Instrument, error) {
	defer metrics.ObserveRead("load_instrument", time.Now())
	return h.reader.LoadInstrument(ctx, id)
}

// LoadInstruments returns every stored instrument.
func (h *Handle) LoadInstruments(ctx context.Context) ([]model.Instrument, error) {
	defer metrics.ObserveRead("load_instruments", time.Now())
	return h.reader.LoadInstruments(ctx)
}

// LoadDeadLetters returns up to limit dead letters, newest first.
func (h *Handle) LoadDeadLetters(ctx context.Context, limit int) ([]store.DeadLetter, error) {
	if h.letters == nil {
		return nil, ErrNoDeadLetters
	}
	defer metrics.ObserveRead("load_dead_letters", time.Now())
	return h.letters.LoadDeadLetters(ctx, limit)
}
