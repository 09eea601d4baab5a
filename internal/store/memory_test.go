package store_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/atmx/cachedb/internal/model"
	"github.com/atmx/cachedb/internal/model/modeltest"
	"github.com/atmx/cachedb/internal/store"
)

func TestMemoryStore_GeneralOverwrite(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()

	if err := ms.UpsertGeneral(ctx, "A", []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := ms.UpsertGeneral(ctx, "A", []byte{4, 5, 6}); err != nil {
		t.Fatal(err)
	}

	got, err := ms.LoadGeneral(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string][]byte{"A": {4, 5, 6}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("LoadGeneral = %v, want %v", got, want)
	}
}

func TestMemoryStore_CurrencyIdempotent(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	usd := modeltest.USD()

	for i := 0; i < 2; i++ {
		if err := ms.UpsertCurrency(ctx, usd); err != nil {
			t.Fatal(err)
		}
	}

	all, _ := ms.LoadCurrencies(ctx)
	if len(all) != 1 || all[0] != usd {
		t.Errorf("LoadCurrencies = %+v, want [%+v]", all, usd)
	}
}

func TestMemoryStore_NotFoundIsEmpty(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()

	c, err := ms.LoadCurrency(ctx, "JPY")
	if err != nil || c != nil {
		t.Errorf("LoadCurrency(missing) = %v, %v; want nil, nil", c, err)
	}
	inst, err := ms.LoadInstrument(ctx, model.MustInstrumentID("NOPE.SIM"))
	if err != nil || inst != nil {
		t.Errorf("LoadInstrument(missing) = %v, %v; want nil, nil", inst, err)
	}
}

func TestMemoryStore_InstrumentsKeepVariant(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()

	for _, inst := range modeltest.Instruments() {
		if err := ms.UpsertInstrument(ctx, inst); err != nil {
			t.Fatalf("%s: %v", inst.Kind(), err)
		}
	}

	all, err := ms.LoadInstruments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 8 {
		t.Fatalf("LoadInstruments returned %d, want 8", len(all))
	}

	opt := modeltest.OptionsContract()
	got, err := ms.LoadInstrument(ctx, opt.ID())
	if err != nil {
		t.Fatal(err)
	}
	oc, ok := got.(*model.OptionsContract)
	if !ok {
		t.Fatalf("LoadInstrument returned %T, want *model.OptionsContract", got)
	}
	if !oc.StrikePrice.Equal(opt.StrikePrice) {
		t.Errorf("strike = %s, want %s", oc.StrikePrice, opt.StrikePrice)
	}
}

func TestMemoryStore_VariantChangeReplacesInstrument(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()

	pair := modeltest.CurrencyPair()
	eq := &model.Equity{InstrumentBase: pair.InstrumentBase, ISIN: "XS0000000001"}
	ms.UpsertInstrument(ctx, pair)
	ms.UpsertInstrument(ctx, eq)

	all, err := ms.LoadInstruments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Kind() != model.KindEquity {
		t.Fatalf("LoadInstruments = %+v, want one equity", all)
	}
}

func TestMemoryStore_HistoryOrder(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()

	ms.UpsertGeneral(ctx, "k1", nil)
	ms.UpsertCurrency(ctx, modeltest.BTC())
	ms.UpsertInstrument(ctx, modeltest.Equity())
	ms.UpsertGeneral(ctx, "k2", nil)

	want := []string{"general:k1", "currency:BTC", "EQUITY:AAPL.XNAS", "general:k2"}
	if got := ms.History(); !reflect.DeepEqual(got, want) {
		t.Errorf("History = %v, want %v", got, want)
	}
}

func TestMemoryStore_DeadLettersNewestFirst(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()

	ms.WriteDeadLetter(ctx, store.DeadLetter{Key: "first"})
	ms.WriteDeadLetter(ctx, store.DeadLetter{Key: "second"})
	ms.WriteDeadLetter(ctx, store.DeadLetter{Key: "third"})

	got, _ := ms.LoadDeadLetters(ctx, 2)
	if len(got) != 2 || got[0].Key != "third" || got[1].Key != "second" {
		t.Errorf("LoadDeadLetters = %+v", got)
	}
}
