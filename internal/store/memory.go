package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/atmx/cachedb/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
//
// Instruments are kept in their tagged JSON form so callers never share
// pointers with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	general     map[string][]byte
	currencies  map[string]model.Currency
	instruments map[string][]byte
	deadLetters []DeadLetter
	history     []string
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		general:     make(map[string][]byte),
		currencies:  make(map[string]model.Currency),
		instruments: make(map[string][]byte),
	}
}

func (s *MemoryStore) UpsertGeneral(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.general[key] = append([]byte(nil), value...)
	s.history = append(s.history, "general:"+key)
	return nil
}

func (s *MemoryStore) UpsertCurrency(_ context.Context, c model.Currency) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currencies[c.Code] = c
	s.history = append(s.history, "currency:"+c.Code)
	return nil
}

func (s *MemoryStore) UpsertInstrument(_ context.Context, inst model.Instrument) error {
	if _, err := codecFor(inst.Kind()); err != nil {
		return err
	}
	data, err := model.MarshalInstrument(inst)
	if err != nil {
		return queryErr("upsert instrument", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.instruments[inst.ID().String()] = data
	s.history = append(s.history, fmt.Sprintf("%s:%s", inst.Kind(), inst.ID()))
	return nil
}

func (s *MemoryStore) WriteDeadLetter(_ context.Context, dl DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deadLetters = append(s.deadLetters, dl)
	return nil
}

func (s *MemoryStore) LoadGeneral(_ context.Context) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]byte, len(s.general))
	for k, v := range s.general {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}

func (s *MemoryStore) LoadCurrency(_ context.Context, code string) (*model.Currency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.currencies[code]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *MemoryStore) LoadCurrencies(_ context.Context) ([]model.Currency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Currency, 0, len(s.currencies))
	for _, c := range s.currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *MemoryStore) LoadInstrument(_ context.Context, id model.InstrumentID) (model.Instrument, error) {
	s.mu.RLock()
	data, ok := s.instruments[id.String()]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	inst, err := model.UnmarshalInstrument(data)
	if err != nil {
		return nil, queryErr("load instrument "+id.String(), err)
	}
	return inst, nil
}

func (s *MemoryStore) LoadInstruments(_ context.Context) ([]model.Instrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.instruments))
	for id := range s.instruments {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]model.Instrument, 0, len(ids))
	for _, id := range ids {
		inst, err := model.UnmarshalInstrument(s.instruments[id])
		if err != nil {
			return nil, queryErr("load instruments", err)
		}
		out = append(out, inst)
	}
	return out, nil
}

func (s *MemoryStore) LoadDeadLetters(_ context.Context, limit int) ([]DeadLetter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]DeadLetter, 0, len(s.deadLetters))
	for i := len(s.deadLetters) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, s.deadLetters[i])
	}
	return out, nil
}

// History returns "kind:key" for every applied upsert in application order.
func (s *MemoryStore) History() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.history...)
}
