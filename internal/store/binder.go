package store

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atmx/cachedb/internal/model"
)

// binder hands out intermediate scan targets for columns that do not map
// directly onto model fields (NUMERIC read back as TEXT, SMALLINT precisions,
// textual ids) and converts them once the row has been scanned.
type binder struct {
	fixups []func() error
}

func (b *binder) decimal(dst *decimal.Decimal) any {
	var s string
	b.fixups = append(b.fixups, func() error {
		v, err := decimal.NewFromString(s)
		if err != nil {
			return fmt.Errorf("parse numeric %q: %w", s, err)
		}
		*dst = v
		return nil
	})
	return &s
}

func (b *binder) uint8(dst *uint8) any {
	var v int16
	b.fixups = append(b.fixups, func() error {
		if v < 0 || v > 255 {
			return fmt.Errorf("value %d out of range for uint8", v)
		}
		*dst = uint8(v)
		return nil
	})
	return &v
}

func (b *binder) instrumentID(dst *model.InstrumentID) any {
	var s string
	b.fixups = append(b.fixups, func() error {
		id, err := model.ParseInstrumentID(s)
		if err != nil {
			return err
		}
		*dst = id
		return nil
	})
	return &s
}

// text binds named string types such as model.AssetClass.
func text[T ~string](b *binder, dst *T) any {
	var s string
	b.fixups = append(b.fixups, func() error {
		*dst = T(s)
		return nil
	})
	return &s
}

func (b *binder) resolve() error {
	for _, fn := range b.fixups {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}
