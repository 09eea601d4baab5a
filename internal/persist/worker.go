package persist

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/atmx/cachedb/internal/metrics"
	"github.com/atmx/cachedb/internal/model"
	"github.com/atmx/cachedb/internal/store"
)

// Default worker settings.
const (
	DefaultBatchSize    = 500
	DefaultWriteTimeout = 5 * time.Second
	DefaultMaxRetries   = 3
)

// errApplyPanic marks a command whose Apply panicked.
var errApplyPanic = errors.New("persist: apply panicked")

// Config holds queue and worker settings.
type Config struct {
	// Capacity bounds the queue; enqueue blocks when it is full.
	Capacity int

	// FlushInterval is the minimum time between flushes. Zero flushes as
	// soon as anything is buffered.
	FlushInterval time.Duration

	// BatchSize forces a flush once this many commands are buffered.
	BatchSize int

	// WriteTimeout bounds each individual statement.
	WriteTimeout time.Duration

	// MaxRetries is the number of retries after the first failed attempt
	// before a command is dead-lettered.
	MaxRetries int

	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
}

// DefaultConfig returns the default worker settings.
func DefaultConfig() Config {
	return Config{
		Capacity:        DefaultCapacity,
		BatchSize:       DefaultBatchSize,
		WriteTimeout:    DefaultWriteTimeout,
		MaxRetries:      DefaultMaxRetries,
		RetryBackoff:    DefaultRetryBackoff,
		RetryBackoffMax: DefaultRetryBackoffMax,
	}
}

func (c Config) withDefaults() Config {
	if c.Capacity < 1 {
		c.Capacity = DefaultCapacity
	}
	if c.FlushInterval < 0 {
		c.FlushInterval = 0
	}
	if c.BatchSize < 1 {
		c.BatchSize = DefaultBatchSize
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.RetryBackoffMax < c.RetryBackoff {
		c.RetryBackoffMax = c.RetryBackoff
	}
	return c
}

// Stats is a snapshot of worker counters.
type Stats struct {
	Received     uint64 `json:"received"`
	Persisted    uint64 `json:"persisted"`
	Retries      uint64 `json:"retries"`
	DialFailures uint64 `json:"dial_failures"`
	DeadLettered uint64 `json:"dead_lettered"`
	Dropped      uint64 `json:"dropped"`
	Flushes      uint64 `json:"flushes"`
}

// Worker is the single consumer of the queue. It owns the write session
// and applies commands in arrival order.
type Worker struct {
	cfg       Config
	logger    *slog.Logger
	queue     <-chan Command
	dial      Dialer
	observers []Observer

	session   Session
	buf       []Command
	lastFlush time.Time
	timer     *time.Timer
	timerC    <-chan time.Time

	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	done      chan struct{}

	received     atomic.Uint64
	persisted    atomic.Uint64
	retries      atomic.Uint64
	dialFailures atomic.Uint64
	deadLettered atomic.Uint64
	dropped      atomic.Uint64
	flushes      atomic.Uint64
}

func newWorker(cfg Config, dial Dialer, session Session, observers []Observer, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		cfg:       cfg,
		logger:    logger.With("component", "persist-worker"),
		dial:      dial,
		session:   session,
		observers: observers,
		buf:       make([]Command, 0, cfg.BatchSize),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Start launches the worker goroutine. Later calls are no-ops.
func (w *Worker) Start() {
	w.startOnce.Do(func() {
		w.logger.Info("persistence worker started",
			"capacity", w.cfg.Capacity,
			"flush_interval", w.cfg.FlushInterval,
			"batch_size", w.cfg.BatchSize,
			"write_timeout", w.cfg.WriteTimeout,
		)
		go w.run()
	})
}

// Done is closed after the worker has performed its final flush and exited.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Wait blocks until the worker exits or ctx is done.
func (w *Worker) Wait(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Abort stops the worker without draining. Buffered and queued commands
// are dropped and counted.
func (w *Worker) Abort() { w.cancel() }

// Stats returns current counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Received:     w.received.Load(),
		Persisted:    w.persisted.Load(),
		Retries:      w.retries.Load(),
		DialFailures: w.dialFailures.Load(),
		DeadLettered: w.deadLettered.Load(),
		Dropped:      w.dropped.Load(),
		Flushes:      w.flushes.Load(),
	}
}

func (w *Worker) run() {
	defer close(w.done)
	defer w.closeSession()
	defer w.disarm()

	w.lastFlush = time.Now()

	for {
		select {
		case cmd, ok := <-w.queue:
			if !ok {
				w.terminate()
				return
			}
			w.append(cmd)
			open := true
			if w.cfg.FlushInterval == 0 {
				open = w.drainReady()
			}
			if w.due(time.Now()) {
				w.flush()
			} else {
				w.arm()
			}
			if !open {
				w.terminate()
				return
			}

		case now := <-w.timerC:
			w.timerC = nil
			if w.due(now) {
				w.flush()
			} else {
				w.arm()
			}

		case <-w.ctx.Done():
			w.drop(len(w.buf) + len(w.queue))
			w.buf = nil
			return
		}
	}
}

func (w *Worker) append(cmd Command) {
	w.buf = append(w.buf, cmd)
	w.received.Add(1)
	metrics.QueueDepth.Set(float64(len(w.queue)))
	metrics.BufferedCommands.Set(float64(len(w.buf)))
}

// drainReady moves commands that are already queued into the buffer, up to
// BatchSize, without blocking. It reports false if the queue was observed
// closed.
func (w *Worker) drainReady() bool {
	for len(w.buf) < w.cfg.BatchSize {
		select {
		case cmd, ok := <-w.queue:
			if !ok {
				return false
			}
			w.append(cmd)
		default:
			return true
		}
	}
	return true
}

func (w *Worker) due(now time.Time) bool {
	if len(w.buf) == 0 {
		return false
	}
	if w.cfg.FlushInterval == 0 || len(w.buf) >= w.cfg.BatchSize {
		return true
	}
	return now.Sub(w.lastFlush) >= w.cfg.FlushInterval
}

// arm schedules a wake-up for when the buffer becomes due by age.
func (w *Worker) arm() {
	if w.timerC != nil || len(w.buf) == 0 || w.cfg.FlushInterval == 0 {
		return
	}
	d := w.cfg.FlushInterval - time.Since(w.lastFlush)
	if d < 0 {
		d = 0
	}
	w.timer = time.NewTimer(d)
	w.timerC = w.timer.C
}

func (w *Worker) disarm() {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = nil
	w.timerC = nil
}

func (w *Worker) terminate() {
	w.logger.Info("queue closed, draining", "buffered", len(w.buf))
	w.flush()
	w.logger.Info("persistence worker stopped",
		"persisted", w.persisted.Load(),
		"dead_lettered", w.deadLettered.Load(),
		"dropped", w.dropped.Load(),
	)
}

func (w *Worker) drop(n int) {
	if n == 0 {
		return
	}
	w.dropped.Add(uint64(n))
	w.logger.Warn("persistence worker aborted, commands dropped", "count", n)
}

// flush applies the whole buffer in arrival order.
func (w *Worker) flush() {
	w.disarm()
	if len(w.buf) == 0 {
		return
	}

	batch := w.buf
	w.buf = make([]Command, 0, w.cfg.BatchSize)

	start := time.Now()
	for i, cmd := range batch {
		if w.ctx.Err() != nil {
			w.drop(len(batch) - i)
			break
		}
		w.persist(cmd)
	}
	w.lastFlush = time.Now()

	w.flushes.Add(1)
	metrics.FlushDuration.Observe(time.Since(start).Seconds())
	metrics.FlushSize.Observe(float64(len(batch)))
	metrics.BufferedCommands.Set(float64(len(w.buf)))

	w.logger.Debug("flushed buffer",
		"commands", len(batch),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// persist applies one command, retrying transient failures with backoff,
// and dead-letters it once retries are exhausted. Losing the write session
// is not charged to the command: the worker redials until the session is
// back or the worker is aborted.
func (w *Worker) persist(cmd Command) {
	bo := newBackoff(w.cfg.RetryBackoff, w.cfg.RetryBackoffMax)

	var err error
	attempts := 0
	for {
		sess, serr := w.waitSession()
		if serr != nil {
			w.drop(1)
			return
		}

		attempts++
		if err = w.apply(sess, cmd); err == nil {
			w.persisted.Add(1)
			metrics.CommandsPersisted.WithLabelValues(cmd.Kind()).Inc()
			w.notify(cmd)
			return
		}
		metrics.WriteFailures.WithLabelValues(cmd.Kind()).Inc()

		if sess.Broken() {
			w.closeSession()
			if !errors.Is(err, context.DeadlineExceeded) {
				attempts--
				w.logger.Warn("write session lost, reconnecting",
					"kind", cmd.Kind(),
					"key", cmd.Key(),
					"error", err,
				)
				continue
			}
		}

		if permanent(err) || attempts > w.cfg.MaxRetries || w.ctx.Err() != nil {
			break
		}

		delay := bo.Next()
		w.retries.Add(1)
		w.logger.Warn("write failed, retrying",
			"kind", cmd.Kind(),
			"key", cmd.Key(),
			"attempt", attempts,
			"delay", delay,
			"error", err,
		)
		select {
		case <-time.After(delay):
		case <-w.ctx.Done():
		}
	}

	w.deadLetter(cmd, err, attempts)
}

// apply runs a single statement bounded by WriteTimeout.
func (w *Worker) apply(sess Session, cmd Command) (err error) {
	ctx, cancel := context.WithTimeout(w.ctx, w.cfg.WriteTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s %q: %v", errApplyPanic, cmd.Kind(), cmd.Key(), r)
		}
	}()

	return cmd.Apply(ctx, sess)
}

// waitSession returns the open write session, dialing with backoff until
// one opens. It fails only when the worker is aborted.
func (w *Worker) waitSession() (Session, error) {
	if w.session != nil {
		return w.session, nil
	}

	bo := newBackoff(w.cfg.RetryBackoff, w.cfg.RetryBackoffMax)
	for failures := 0; ; failures++ {
		sess, err := w.dialOnce()
		if err == nil {
			if failures > 0 {
				w.logger.Info("write session re-established", "failed_dials", failures)
			} else {
				w.logger.Info("write session established")
			}
			w.session = sess
			return sess, nil
		}
		if w.ctx.Err() != nil {
			return nil, w.ctx.Err()
		}

		delay := bo.Next()
		w.dialFailures.Add(1)
		metrics.SessionDialFailures.Inc()
		w.logger.Warn("write session unavailable, redialing",
			"attempt", failures+1,
			"delay", delay,
			"buffered", len(w.buf),
			"error", err,
		)
		select {
		case <-time.After(delay):
		case <-w.ctx.Done():
			return nil, w.ctx.Err()
		}
	}
}

func (w *Worker) dialOnce() (Session, error) {
	ctx, cancel := context.WithTimeout(w.ctx, w.cfg.WriteTimeout)
	defer cancel()
	return w.dial(ctx)
}

func (w *Worker) closeSession() {
	if w.session == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.WriteTimeout)
	defer cancel()
	if err := w.session.Close(ctx); err != nil {
		w.logger.Warn("close write session", "error", err)
	}
	w.session = nil
}

func (w *Worker) deadLetter(cmd Command, cause error, attempts int) {
	payload, err := cmd.Payload()
	if err != nil {
		w.logger.Warn("encode dead letter payload", "kind", cmd.Kind(), "key", cmd.Key(), "error", err)
	}

	dl := store.DeadLetter{
		ID:       uuid.New(),
		Kind:     cmd.Kind(),
		Key:      cmd.Key(),
		Payload:  payload,
		Error:    cause.Error(),
		Attempts: attempts,
		FailedAt: time.Now().UTC(),
	}

	w.deadLettered.Add(1)
	metrics.DeadLetters.WithLabelValues(cmd.Kind()).Inc()
	w.logger.Error("command dead-lettered",
		"id", dl.ID,
		"kind", dl.Kind,
		"key", dl.Key,
		"attempts", attempts,
		"error", cause,
	)

	lost := func(err error) {
		w.logger.Error("dead letter lost",
			"id", dl.ID,
			"payload_bytes", len(payload),
			"payload_base64", base64.StdEncoding.EncodeToString(payload),
			"error", err,
		)
	}

	for {
		sess, err := w.waitSession()
		if err != nil {
			lost(err)
			return
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), w.cfg.WriteTimeout)
		err = sess.WriteDeadLetter(ctx, dl)
		cancel()
		if err == nil {
			return
		}
		broken := sess.Broken()
		if broken {
			w.closeSession()
		}
		if !broken || errors.Is(err, context.DeadlineExceeded) {
			lost(err)
			return
		}
	}
}

func (w *Worker) notify(cmd Command) {
	if len(w.observers) == 0 {
		return
	}
	ev := Event{Kind: cmd.Kind(), Key: cmd.Key(), At: time.Now().UTC(), Command: cmd}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), w.cfg.WriteTimeout)
	defer cancel()
	for _, obs := range w.observers {
		obs.OnPersisted(ctx, ev)
	}
}

// permanent reports errors that retrying cannot fix: invalid commands,
// panics, and PostgreSQL data, integrity and schema errors.
func permanent(err error) bool {
	switch {
	case errors.Is(err, errApplyPanic),
		errors.Is(err, model.ErrUnknownInstrumentKind),
		errors.Is(err, model.ErrInvalidCurrency),
		errors.Is(err, model.ErrInvalidInstrumentID):
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		for _, class := range []string{"22", "23", "42"} {
			if strings.HasPrefix(pgErr.Code, class) {
				return true
			}
		}
	}
	return false
}
