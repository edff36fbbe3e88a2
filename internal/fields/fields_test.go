package fields

import (
	"math"
	"testing"

	"claritysim/internal/api"
)

func f64(v float64) *float64 { return &v }

func percentSpec(min, max float64) api.FieldSpec {
	return api.FieldSpec{
		Key:  "drop_pct",
		Type: api.FieldPercent,
		Min:  f64(min),
		Max:  f64(max),
	}
}

func TestPercentRoundTripWithinBounds(t *testing.T) {
	spec := percentSpec(0.05, 0.9)
	for x := 0.05; x <= 0.9; x += 0.0137 {
		display := StorageToDisplay(spec, x)
		stored, ok := DisplayToStorage(spec, display)
		if !ok {
			t.Fatalf("round trip rejected %g", x)
		}
		// Display rounds to two decimal places, so the round trip may move
		// the value by at most half a display unit in storage space.
		if math.Abs(stored-x) > 0.00005 {
			t.Fatalf("round trip drifted: %g -> %g -> %g", x, display, stored)
		}
	}
}

func TestPercentClampsInStorageSpace(t *testing.T) {
	spec := percentSpec(0.05, 0.9)

	stored, ok := DisplayToStorage(spec, 200)
	if !ok {
		t.Fatalf("expected 200 to be accepted and clamped")
	}
	if stored != 0.9 {
		t.Fatalf("expected 0.9, got %g", stored)
	}

	stored, ok = DisplayToStorage(spec, 1)
	if !ok || stored != 0.05 {
		t.Fatalf("expected low input to clamp to 0.05, got %g (ok=%t)", stored, ok)
	}

	// 120% converts to 1.20 first, then clamps against the fraction bound.
	stored, _ = DisplayToStorage(spec, 120)
	if stored != 0.9 {
		t.Fatalf("expected 120%% to clamp to 0.9, got %g", stored)
	}
}

func TestNonFiniteRejected(t *testing.T) {
	spec := api.FieldSpec{Key: "n", Type: api.FieldNumber, Min: f64(0), Max: f64(10)}
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, ok := DisplayToStorage(spec, v); ok {
			t.Fatalf("expected %v to be rejected", v)
		}
	}
}

func TestNumberAndDaysIdentity(t *testing.T) {
	num := api.FieldSpec{Key: "n", Type: api.FieldNumber, Min: f64(1), Max: f64(100)}
	if got := StorageToDisplay(num, 42); got != 42 {
		t.Fatalf("number display should be identity, got %g", got)
	}
	stored, ok := DisplayToStorage(num, 250)
	if !ok || stored != 100 {
		t.Fatalf("expected clamp to 100, got %g", stored)
	}

	days := api.FieldSpec{Key: "d", Type: api.FieldDays, Min: f64(1), Max: f64(365)}
	v, ok := ApplyInput(days, "400")
	if !ok {
		t.Fatalf("expected days input accepted")
	}
	if v != 365 {
		t.Fatalf("expected days clamped to 365, got %v", v)
	}
	if _, ok := ApplyInput(days, "not-a-number"); ok {
		t.Fatalf("expected unparseable days input rejected")
	}
}

func TestTextIdentity(t *testing.T) {
	spec := api.FieldSpec{Key: "note", Type: api.FieldText}
	v, ok := ApplyInput(spec, "  keep me verbatim  ")
	if !ok || v != "  keep me verbatim  " {
		t.Fatalf("text must pass through untouched, got %v", v)
	}
}

func TestDisplayBoundsScaleForPercent(t *testing.T) {
	spec := percentSpec(0.05, 0.9)
	spec.Step = f64(0.01)
	min, max, step := DisplayBounds(spec)
	if *min != 5 || *max != 90 || *step != 1 {
		t.Fatalf("expected display bounds 5..90 step 1, got %g..%g step %g", *min, *max, *step)
	}

	num := api.FieldSpec{Key: "n", Type: api.FieldNumber, Min: f64(2), Max: f64(8)}
	nmin, nmax, _ := DisplayBounds(num)
	if *nmin != 2 || *nmax != 8 {
		t.Fatalf("number bounds must not scale")
	}
}

func TestDefaultsShareBoundSemantics(t *testing.T) {
	spec := percentSpec(0.05, 0.9)
	spec.Default = 1.5

	got := DefaultValue(spec, nil)
	if got != 0.9 {
		t.Fatalf("expected out-of-range default clamped to 0.9, got %v", got)
	}

	spec.Default = nil
	got = DefaultValue(spec, map[string]any{"drop_pct": 0.2})
	if got != 0.2 {
		t.Fatalf("expected template default 0.2, got %v", got)
	}

	got = DefaultValue(spec, nil)
	if got != 0.05 {
		t.Fatalf("expected missing default to land on the min bound, got %v", got)
	}
}
