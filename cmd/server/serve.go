package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/atmx/cachedb/internal/api"
	"github.com/atmx/cachedb/internal/metrics"
	"github.com/atmx/cachedb/internal/notify"
	"github.com/atmx/cachedb/internal/persist"
)

const shutdownTimeout = 30 * time.Second

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the write-behind worker and the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), *cfgPath)
		},
	}
}

func serve(ctx context.Context, cfgPath string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := setup(ctx, cfgPath)
	if err != nil {
		return err
	}
	if err := prepareDatabase(ctx, cfg.Postgres, logger); err != nil {
		return err
	}

	// --- WebSocket hub ---
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := notify.NewHub(logger)
	go hub.Run(hubCtx)

	opts := []persist.Option{
		persist.WithLogger(logger),
		persist.WithObserver(hub),
	}

	// Redis read-through cache for point lookups, if configured.
	if cfg.Redis.URL != "" {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid redis.url: %w", err)
		}
		rdb := redis.NewClient(opt)
		opts = append(opts,
			persist.WithReadCache(rdb, cfg.Redis.TTL),
			persist.WithCleanup(func() { rdb.Close() }),
		)
		logger.Info("redis read cache enabled", "ttl", cfg.Redis.TTL)
	}

	handle, err := persist.Connect(ctx, cfg.Postgres, queueConfig(cfg.Queue), opts...)
	if err != nil {
		return err
	}
	logger.Info("connected to PostgreSQL",
		"host", cfg.Postgres.Host,
		"dbname", cfg.Postgres.DBName,
		"flush_interval", cfg.Queue.FlushInterval,
	)

	svc := api.NewService(handle, logger)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)

	// CORS middleware for browser clients.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		select {
		case <-handle.Done():
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"worker stopped","service":"cachedb"}`))
		default:
			w.Write([]byte(`{"status":"ok","service":"cachedb"}`))
		}
	})

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ws", hub.HandleWS)

		// Request timeouts apply to the REST surface only; the WebSocket
		// stays open.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			svc.Routes(r)
		})
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("cachedb listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down cachedb...")
	case runErr = <-serveErr:
		logger.Error("server error", "err", runErr)
	case <-handle.Done():
		runErr = errors.New("persistence worker exited unexpectedly")
		logger.Error(runErr.Error())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}
	// Producers are gone; drain whatever is still queued.
	if err := handle.Shutdown(shutdownCtx); err != nil {
		logger.Error("persistence shutdown incomplete, pending commands dropped", "err", err, "stats", handle.Stats())
	}
	stopHub()

	st := handle.Stats()
	logger.Info("cachedb stopped",
		"persisted", st.Persisted,
		"dead_lettered", st.DeadLettered,
		"dropped", st.Dropped,
	)
	fmt.Fprintln(os.Stderr, "cachedb stopped")
	return runErr
}
