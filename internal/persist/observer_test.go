package persist

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/atmx/cachedb/internal/model"
	"github.com/atmx/cachedb/internal/model/modeltest"
)

type recordingCache struct {
	calls  []string
	putErr error
}

func (r *recordingCache) PutCurrency(_ context.Context, c model.Currency) error {
	r.calls = append(r.calls, "put currency:"+c.Code)
	return r.putErr
}

func (r *recordingCache) PutInstrument(_ context.Context, inst model.Instrument) error {
	r.calls = append(r.calls, "put instrument:"+inst.ID().String())
	return r.putErr
}

func (r *recordingCache) InvalidateCurrency(_ context.Context, code string) error {
	r.calls = append(r.calls, "del currency:"+code)
	return nil
}

func (r *recordingCache) InvalidateInstrument(_ context.Context, id model.InstrumentID) error {
	r.calls = append(r.calls, "del instrument:"+id.String())
	return nil
}

func persisted(cmd Command) Event {
	return Event{Kind: cmd.Kind(), Key: cmd.Key(), Command: cmd}
}

func TestRefreshOnPersist(t *testing.T) {
	cache := &recordingCache{}
	obs := RefreshOnPersist(cache, nil)
	ctx := context.Background()

	obs.OnPersisted(ctx, persisted(NewGeneralUpsert("k", []byte("v"))))
	obs.OnPersisted(ctx, persisted(NewCurrencyUpsert(modeltest.USD())))
	obs.OnPersisted(ctx, persisted(NewInstrumentUpsert(modeltest.Equity())))

	want := []string{"put currency:USD", "put instrument:AAPL.XNAS"}
	if !reflect.DeepEqual(cache.calls, want) {
		t.Errorf("calls = %v, want %v", cache.calls, want)
	}
}

func TestRefreshOnPersist_FailedPutEvicts(t *testing.T) {
	cache := &recordingCache{putErr: errors.New("redis down")}
	obs := RefreshOnPersist(cache, nil)
	ctx := context.Background()

	obs.OnPersisted(ctx, persisted(NewCurrencyUpsert(modeltest.USD())))
	obs.OnPersisted(ctx, persisted(NewInstrumentUpsert(modeltest.Equity())))

	want := []string{
		"put currency:USD", "del currency:USD",
		"put instrument:AAPL.XNAS", "del instrument:AAPL.XNAS",
	}
	if !reflect.DeepEqual(cache.calls, want) {
		t.Errorf("calls = %v, want %v", cache.calls, want)
	}
}

func TestRefreshOnPersist_IgnoresEventsWithoutCommand(t *testing.T) {
	cache := &recordingCache{}
	obs := RefreshOnPersist(cache, nil)

	obs.OnPersisted(context.Background(), Event{Kind: KindCurrency, Key: "USD"})

	if len(cache.calls) != 0 {
		t.Errorf("calls = %v", cache.calls)
	}
}
