package store_test

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atmx/cachedb/internal/model"
	"github.com/atmx/cachedb/internal/model/modeltest"
	"github.com/atmx/cachedb/internal/persist"
	"github.com/atmx/cachedb/internal/schema"
	"github.com/atmx/cachedb/internal/store"
)

// testPool connects to CACHEDB_TEST_DATABASE_URL, migrates the schema and
// empties every table. Tests are skipped when the variable is unset.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("CACHEDB_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CACHEDB_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	if err := schema.Migrate(ctx, dsn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	tables := []string{"general", "currency", "dead_letter"}
	for _, kind := range model.InstrumentKinds() {
		table, _ := store.InstrumentTable(kind)
		tables = append(tables, table)
	}
	if _, err := pool.Exec(ctx, "TRUNCATE "+strings.Join(tables, ", ")); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}

func uuidFor(i int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", i))
}

func TestPostgres_GeneralOverwrite(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	ps := store.NewPostgresStore(pool)

	ps.UpsertGeneral(ctx, "A", []byte{1, 2, 3})
	ps.UpsertGeneral(ctx, "A", []byte{4, 5, 6})

	got, err := ps.LoadGeneral(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string][]byte{"A": {4, 5, 6}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("LoadGeneral = %v, want %v", got, want)
	}
}

func TestPostgres_CurrencyRoundTrip(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	ps := store.NewPostgresStore(pool)

	for _, c := range []model.Currency{modeltest.USD(), modeltest.BTC(), modeltest.USD()} {
		if err := ps.UpsertCurrency(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ps.LoadCurrency(ctx, "BTC")
	if err != nil || got == nil || *got != modeltest.BTC() {
		t.Errorf("LoadCurrency(BTC) = %+v, %v", got, err)
	}
	all, _ := ps.LoadCurrencies(ctx)
	if len(all) != 2 {
		t.Errorf("LoadCurrencies returned %d, want 2", len(all))
	}
	missing, err := ps.LoadCurrency(ctx, "JPY")
	if err != nil || missing != nil {
		t.Errorf("LoadCurrency(missing) = %v, %v; want nil, nil", missing, err)
	}
}

func TestPostgres_InstrumentsRoundTrip(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	ps := store.NewPostgresStore(pool)

	for _, inst := range modeltest.Instruments() {
		if err := ps.UpsertInstrument(ctx, inst); err != nil {
			t.Fatalf("%s: %v", inst.Kind(), err)
		}
	}

	for _, inst := range modeltest.Instruments() {
		t.Run(string(inst.Kind()), func(t *testing.T) {
			got, err := ps.LoadInstrument(ctx, inst.ID())
			if err != nil {
				t.Fatal(err)
			}
			if reflect.TypeOf(got) != reflect.TypeOf(inst) {
				t.Fatalf("LoadInstrument returned %T, want %T", got, inst)
			}
			want, _ := model.MarshalInstrument(inst)
			have, _ := model.MarshalInstrument(got)
			if string(want) != string(have) {
				t.Errorf("round trip mismatch\nwant %s\ngot  %s", want, have)
			}
		})
	}

	all, err := ps.LoadInstruments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(modeltest.Instruments()) {
		t.Errorf("LoadInstruments returned %d", len(all))
	}
}

func TestPostgres_VariantChangeReplacesInstrument(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	ps := store.NewPostgresStore(pool)

	pair := modeltest.CurrencyPair()
	eq := &model.Equity{InstrumentBase: pair.InstrumentBase, ISIN: "XS0000000001"}
	for _, inst := range []model.Instrument{pair, eq} {
		if err := ps.UpsertInstrument(ctx, inst); err != nil {
			t.Fatalf("%s: %v", inst.Kind(), err)
		}
	}

	all, err := ps.LoadInstruments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Kind() != model.KindEquity {
		t.Fatalf("LoadInstruments = %+v, want one equity", all)
	}
	got, err := ps.LoadInstrument(ctx, pair.ID())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := got.(*model.Equity); !ok {
		t.Errorf("LoadInstrument returned %T, want *model.Equity", got)
	}
}

func TestPostgres_DeadLetters(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	ps := store.NewPostgresStore(pool)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, key := range []string{"first", "second"} {
		err := ps.WriteDeadLetter(ctx, store.DeadLetter{
			ID:       uuidFor(i),
			Kind:     persist.KindGeneral,
			Key:      key,
			Payload:  []byte(key),
			Error:    "boom",
			Attempts: 4,
			FailedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	got, err := ps.LoadDeadLetters(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Key != "second" || got[0].ID != uuidFor(1) {
		t.Errorf("LoadDeadLetters = %+v", got)
	}
}

// Two producers enqueue three instrument variants through the worker; all
// three come back from the read path as their concrete types.
func TestPostgres_ConcurrentProducersThroughWorker(t *testing.T) {
	pool := testPool(t)
	ps := store.NewPostgresStore(pool)

	h := persist.Start(persist.DefaultConfig(), ps, persist.StoreDialer(ps))
	second, err := h.Clone()
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.AddInstrument(ctx, modeltest.Equity())
		h.AddInstrument(ctx, modeltest.CryptoPerpetual())
	}()
	go func() {
		defer wg.Done()
		second.AddInstrument(ctx, modeltest.OptionsContract())
		second.Close()
	}()
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		t.Fatal(err)
	}

	want := map[model.InstrumentKind]bool{
		model.KindEquity:          true,
		model.KindCryptoPerpetual: true,
		model.KindOptionsContract: true,
	}
	all, err := ps.LoadInstruments(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != len(want) {
		t.Fatalf("LoadInstruments returned %d, want %d", len(all), len(want))
	}
	for _, inst := range all {
		if !want[inst.Kind()] {
			t.Errorf("unexpected %s %s", inst.Kind(), inst.ID())
		}
	}
}
