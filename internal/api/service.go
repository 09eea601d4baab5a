// Package api exposes the cache bridge over HTTP: enqueue endpoints that
// feed the write-behind queue and read endpoints that hit the store
// directly.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atmx/cachedb/internal/model"
	"github.com/atmx/cachedb/internal/persist"
	"github.com/atmx/cachedb/internal/store"
)

const (
	maxBodyBytes       = 1 << 20
	defaultLetterLimit = 100
)

// Cache is the surface of a persist.Handle used by the HTTP handlers.
type Cache interface {
	Add(ctx context.Context, key string, value []byte) error
	AddCurrency(ctx context.Context, c model.Currency) error
	AddInstrument(ctx context.Context, inst model.Instrument) error

	Load(ctx context.Context) (map[string][]byte, error)
	LoadCurrency(ctx context.Context, code string) (*model.Currency, error)
	LoadCurrencies(ctx context.Context) ([]model.Currency, error)
	LoadInstrument(ctx context.Context, id model.InstrumentID) (model.Instrument, error)
	LoadInstruments(ctx context.Context) ([]model.Instrument, error)
	LoadDeadLetters(ctx context.Context, limit int) ([]store.DeadLetter, error)

	Stats() persist.Stats
}

// Service handles cache HTTP requests.
type Service struct {
	cache  Cache
	logger *slog.Logger
}

// NewService creates a new API service.
func NewService(cache Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cache: cache, logger: logger}
}

// Routes registers the /api/v1 endpoints on r.
func (s *Service) Routes(r chi.Router) {
	r.Get("/stats", s.GetStats)

	r.Get("/general", s.ListGeneral)
	r.Put("/general/{key}", s.PutGeneral)

	r.Get("/currencies", s.ListCurrencies)
	r.Post("/currencies", s.PostCurrency)
	r.Get("/currencies/{code}", s.GetCurrency)

	r.Get("/instruments", s.ListInstruments)
	r.Post("/instruments", s.PostInstrument)
	r.Get("/instruments/*", s.GetInstrument)

	r.Get("/dead-letters", s.ListDeadLetters)
}

// AcceptedResponse is returned once a command has been queued.
type AcceptedResponse struct {
	Status string `json:"status"`
	Kind   string `json:"kind"`
	Key    string `json:"key"`
}

// --- Enqueue handlers ---

// PutGeneral handles PUT /api/v1/general/{key}. The raw request body is
// stored as the value.
func (s *Service) PutGeneral(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		writeError(w, "key is required", http.StatusBadRequest)
		return
	}

	value, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.cache.Add(r.Context(), key, value); err != nil {
		s.enqueueFailed(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, AcceptedResponse{Status: "queued", Kind: persist.KindGeneral, Key: key})
}

// PostCurrency handles POST /api/v1/currencies.
func (s *Service) PostCurrency(w http.ResponseWriter, r *http.Request) {
	var c model.Currency
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&c); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.cache.AddCurrency(r.Context(), c); err != nil {
		s.enqueueFailed(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, AcceptedResponse{Status: "queued", Kind: persist.KindCurrency, Key: c.Code})
}

// PostInstrument handles POST /api/v1/instruments. The body is the tagged
// form {"kind": "...", "instrument": {...}}.
func (s *Service) PostInstrument(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	inst, err := model.UnmarshalInstrument(body)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.cache.AddInstrument(r.Context(), inst); err != nil {
		s.enqueueFailed(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, AcceptedResponse{
		Status: "queued",
		Kind:   string(inst.Kind()),
		Key:    inst.ID().String(),
	})
}

// enqueueFailed maps enqueue errors: a closed queue means persistence is
// unavailable, anything else is a rejected command.
func (s *Service) enqueueFailed(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, persist.ErrSend):
		s.logger.Warn("enqueue rejected, persistence unavailable", "error", err)
		writeError(w, "persistence unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, "queue full, request cancelled", http.StatusServiceUnavailable)
	default:
		writeError(w, err.Error(), http.StatusBadRequest)
	}
}

// --- Read handlers ---

// ListGeneral handles GET /api/v1/general. Values are base64 encoded.
func (s *Service) ListGeneral(w http.ResponseWriter, r *http.Request) {
	all, err := s.cache.Load(r.Context())
	if err != nil {
		s.readFailed(w, "failed to load general table", err)
		return
	}
	if all == nil {
		all = map[string][]byte{}
	}
	writeJSON(w, http.StatusOK, all)
}

// ListCurrencies handles GET /api/v1/currencies.
func (s *Service) ListCurrencies(w http.ResponseWriter, r *http.Request) {
	currencies, err := s.cache.LoadCurrencies(r.Context())
	if err != nil {
		s.readFailed(w, "failed to load currencies", err)
		return
	}
	if currencies == nil {
		currencies = []model.Currency{}
	}
	writeJSON(w, http.StatusOK, currencies)
}

// GetCurrency handles GET /api/v1/currencies/{code}.
func (s *Service) GetCurrency(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	c, err := s.cache.LoadCurrency(r.Context(), code)
	if err != nil {
		s.readFailed(w, "failed to load currency", err)
		return
	}
	if c == nil {
		writeError(w, "currency not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ListInstruments handles GET /api/v1/instruments.
func (s *Service) ListInstruments(w http.ResponseWriter, r *http.Request) {
	instruments, err := s.cache.LoadInstruments(r.Context())
	if err != nil {
		s.readFailed(w, "failed to load instruments", err)
		return
	}

	out := make([]json.RawMessage, 0, len(instruments))
	for _, inst := range instruments {
		data, err := model.MarshalInstrument(inst)
		if err != nil {
			s.readFailed(w, "failed to encode instrument", err)
			return
		}
		out = append(out, data)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetInstrument handles GET /api/v1/instruments/{id}. The id may contain
// slashes (EUR/USD.SIM), so it is taken from the wildcard.
func (s *Service) GetInstrument(w http.ResponseWriter, r *http.Request) {
	raw, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil {
		writeError(w, "invalid instrument id", http.StatusBadRequest)
		return
	}
	id, err := model.ParseInstrumentID(raw)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	inst, err := s.cache.LoadInstrument(r.Context(), id)
	if err != nil {
		s.readFailed(w, "failed to load instrument", err)
		return
	}
	if inst == nil {
		writeError(w, "instrument not found", http.StatusNotFound)
		return
	}

	data, err := model.MarshalInstrument(inst)
	if err != nil {
		s.readFailed(w, "failed to encode instrument", err)
		return
	}
	writeJSON(w, http.StatusOK, json.RawMessage(data))
}

// ListDeadLetters handles GET /api/v1/dead-letters?limit=N.
func (s *Service) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit := defaultLetterLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	letters, err := s.cache.LoadDeadLetters(r.Context(), limit)
	if err != nil {
		if errors.Is(err, persist.ErrNoDeadLetters) {
			writeError(w, err.Error(), http.StatusNotImplemented)
			return
		}
		s.readFailed(w, "failed to load dead letters", err)
		return
	}
	if letters == nil {
		letters = []store.DeadLetter{}
	}
	writeJSON(w, http.StatusOK, letters)
}

// GetStats handles GET /api/v1/stats.
func (s *Service) GetStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.Stats())
}

func (s *Service) readFailed(w http.ResponseWriter, message string, err error) {
	s.logger.Error(message, "error", err)
	writeError(w, message, http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
