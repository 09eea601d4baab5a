package store

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/atmx/cachedb/internal/model"
	"github.com/atmx/cachedb/internal/model/modeltest"
)

// fakeRow feeds encoded upsert arguments back into scan targets, standing in
// for a round trip through PostgreSQL.
type fakeRow struct {
	values []any
}

func (r fakeRow) Scan(dest ...any) error {
	if len(dest) != len(r.values) {
		return fmt.Errorf("scan: %d targets for %d values", len(dest), len(r.values))
	}
	for i, d := range dest {
		dv := reflect.ValueOf(d).Elem()
		sv := reflect.ValueOf(r.values[i])
		if !sv.Type().AssignableTo(dv.Type()) {
			return fmt.Errorf("scan column %d: cannot assign %s to %s", i, sv.Type(), dv.Type())
		}
		dv.Set(sv)
	}
	return nil
}

func TestEveryKindHasCodec(t *testing.T) {
	tables := make(map[string]bool)
	for _, kind := range model.InstrumentKinds() {
		table, err := InstrumentTable(kind)
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if tables[table] {
			t.Errorf("table %s registered twice", table)
		}
		tables[table] = true
	}
}

func TestInstrumentTable_UnknownKind(t *testing.T) {
	_, err := InstrumentTable("BOND")
	if !errors.Is(err, model.ErrUnknownInstrumentKind) {
		t.Errorf("expected ErrUnknownInstrumentKind, got %v", err)
	}
}

func TestCodecSQLShape(t *testing.T) {
	for _, inst := range modeltest.Instruments() {
		c := codecs[inst.Kind()]
		t.Run(c.table, func(t *testing.T) {
			args := c.args(inst)
			cols := c.allColumns()
			if len(args) != len(cols) {
				t.Fatalf("args = %d, columns = %d", len(args), len(cols))
			}
			if !strings.Contains(c.upsertSQL, fmt.Sprintf("$%d", len(cols))) {
				t.Errorf("upsert missing placeholder $%d: %s", len(cols), c.upsertSQL)
			}
			if strings.Contains(c.upsertSQL, fmt.Sprintf("$%d", len(cols)+1)) {
				t.Errorf("upsert has extra placeholders: %s", c.upsertSQL)
			}
			if !strings.Contains(c.upsertSQL, "ON CONFLICT (id) DO UPDATE SET") {
				t.Errorf("upsert is not an upsert: %s", c.upsertSQL)
			}
			if strings.Contains(c.upsertSQL, "id = EXCLUDED.id") {
				t.Errorf("upsert must not rewrite the key: %s", c.upsertSQL)
			}
			if !strings.HasPrefix(c.pointSQL, "SELECT id, raw_symbol") || !strings.HasSuffix(c.pointSQL, "WHERE id = $1") {
				t.Errorf("unexpected point query: %s", c.pointSQL)
			}
		})
	}
}

func TestUpsertEvictsOtherVariants(t *testing.T) {
	for _, kind := range model.InstrumentKinds() {
		c := codecs[kind]
		t.Run(c.table, func(t *testing.T) {
			for _, other := range codecList {
				evict := fmt.Sprintf("DELETE FROM %s WHERE id = $1", other.table)
				has := strings.Contains(c.upsertSQL, evict)
				if other == c && has {
					t.Errorf("upsert deletes from its own table: %s", c.upsertSQL)
				}
				if other != c && !has {
					t.Errorf("upsert does not evict from %s: %s", other.table, c.upsertSQL)
				}
			}
			if !strings.HasPrefix(c.upsertSQL, "WITH ") {
				t.Errorf("evictions must share the upsert statement: %s", c.upsertSQL)
			}
		})
	}
}

func TestCodecRoundTripPreservesVariant(t *testing.T) {
	for _, inst := range modeltest.Instruments() {
		c := codecs[inst.Kind()]
		t.Run(c.table, func(t *testing.T) {
			got, err := c.decode(fakeRow{values: c.args(inst)})
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if reflect.TypeOf(got) != reflect.TypeOf(inst) {
				t.Fatalf("decoded %T, want %T", got, inst)
			}

			want, _ := model.MarshalInstrument(inst)
			have, _ := model.MarshalInstrument(got)
			if string(want) != string(have) {
				t.Errorf("round trip mismatch\nwant %s\ngot  %s", want, have)
			}
		})
	}
}

func TestDecodeRejectsBadNumeric(t *testing.T) {
	inst := modeltest.Equity()
	c := codecs[inst.Kind()]
	args := c.args(inst)
	args[5] = "not-a-number" // price_increment

	if _, err := c.decode(fakeRow{values: args}); err == nil {
		t.Error("expected error for malformed NUMERIC text")
	}
}

func TestQueryErrorMatching(t *testing.T) {
	cause := errors.New("connection reset")
	err := queryErr("load general", cause)

	if !errors.Is(err, ErrQuery) {
		t.Error("expected errors.Is(err, ErrQuery)")
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is(err, cause)")
	}
	var qe *QueryError
	if !errors.As(err, &qe) || qe.Op != "load general" {
		t.Errorf("unexpected QueryError: %+v", qe)
	}
	if queryErr("noop", nil) != nil {
		t.Error("queryErr(nil) must be nil")
	}
}
