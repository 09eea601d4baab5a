package persist

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/atmx/cachedb/internal/config"
	"github.com/atmx/cachedb/internal/database"
	"github.com/atmx/cachedb/internal/store"
)

// Session is the write side owned exclusively by the worker.
type Session interface {
	store.Writer
	store.DeadLetterWriter

	// Broken reports that the session can no longer be used and must be
	// replaced before the next attempt.
	Broken() bool

	Close(ctx context.Context) error
}

// Dialer opens a new write session.
type Dialer func(ctx context.Context) (Session, error)

// pgSession runs the gateway over a single dedicated connection.
type pgSession struct {
	*store.PostgresStore
	conn *pgx.Conn
}

func (s *pgSession) Broken() bool { return s.conn.IsClosed() }

func (s *pgSession) Close(ctx context.Context) error { return s.conn.Close(ctx) }

// PostgresDialer dials a fresh pgx connection per session.
func PostgresDialer(cfg config.PostgresConfig) Dialer {
	return func(ctx context.Context) (Session, error) {
		conn, err := database.DialWriter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &pgSession{PostgresStore: store.NewPostgresStore(conn), conn: conn}, nil
	}
}

// StoreWriter is the write surface a Session needs from a store.
type StoreWriter interface {
	store.Writer
	store.DeadLetterWriter
}

// storeSession adapts an already-open store, such as store.MemoryStore, to
// a Session. Closing it leaves the store untouched.
type storeSession struct {
	StoreWriter
}

func (storeSession) Broken() bool                { return false }
func (storeSession) Close(context.Context) error { return nil }

// StoreDialer returns a Dialer that always hands out w.
func StoreDialer(w StoreWriter) Dialer {
	return func(context.Context) (Session, error) {
		return storeSession{StoreWriter: w}, nil
	}
}
