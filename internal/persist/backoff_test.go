package persist

import (
	"testing"
	"time"
)

func TestBackoffDoublesAndCaps(t *testing.T) {
	b := newBackoff(100*time.Millisecond, 400*time.Millisecond)

	bounds := []time.Duration{100, 200, 400, 400, 400}
	for i, base := range bounds {
		base *= time.Millisecond
		d := b.Next()
		lo := time.Duration(float64(base) * 0.8)
		hi := time.Duration(float64(base) * 1.2)
		if d < lo || d > hi {
			t.Errorf("Next() #%d = %v, want within [%v, %v]", i, d, lo, hi)
		}
	}

	b.Reset()
	if d := b.Next(); d > 120*time.Millisecond {
		t.Errorf("Next() after Reset = %v, want about 100ms", d)
	}
}

func TestBackoffDefaults(t *testing.T) {
	b := newBackoff(0, 0)
	if b.initial != DefaultRetryBackoff || b.max != DefaultRetryBackoff {
		t.Errorf("newBackoff(0, 0) = %+v", b)
	}
}
