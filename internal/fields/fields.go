// Package fields converts intervention parameters between their display
// representation (what an operator types) and their storage representation
// (what the backend persists), clamping to the bounds a template declares.
//
// Percent fields are stored as unit fractions and displayed multiplied by
// 100. Clamping always happens in storage space after conversion: rounding a
// display value first could let an edge value cross the true bound.
package fields

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"claritysim/internal/api"
)

// displayPlaces is the display precision for percent values.
const displayPlaces = 2

// Clamp bounds v to the declared storage-space limits, when present.
func Clamp(v float64, min, max *float64) float64 {
	if min != nil && v < *min {
		v = *min
	}
	if max != nil && v > *max {
		v = *max
	}
	return v
}

// StorageToDisplay converts a stored value to its display form.
// Numbers and days pass through; percents scale to whole percent rounded to
// two decimal places. Text fields never reach this path.
func StorageToDisplay(spec api.FieldSpec, stored float64) float64 {
	if spec.Type != api.FieldPercent {
		return stored
	}
	d := decimal.NewFromFloat(stored).Mul(decimal.NewFromInt(100)).Round(displayPlaces)
	f, _ := d.Float64()
	return f
}

// DisplayToStorage converts a typed display value to its storage form and
// clamps it to the spec's storage-space bounds. Non-finite input is rejected
// with ok=false and must leave the draft unchanged.
func DisplayToStorage(spec api.FieldSpec, display float64) (float64, bool) {
	if math.IsNaN(display) || math.IsInf(display, 0) {
		return 0, false
	}
	v := display
	if spec.Type == api.FieldPercent {
		d := decimal.NewFromFloat(display).Div(decimal.NewFromInt(100))
		v, _ = d.Float64()
	}
	return Clamp(v, spec.Min, spec.Max), true
}

// DisplayBounds returns the bounds of the display control itself. For percent
// fields the declared storage bounds scale by 100; other numeric fields use
// them as-is.
func DisplayBounds(spec api.FieldSpec) (min, max, step *float64) {
	if spec.Type != api.FieldPercent {
		return spec.Min, spec.Max, spec.Step
	}
	scale := func(p *float64) *float64 {
		if p == nil {
			return nil
		}
		v := *p * 100
		return &v
	}
	return scale(spec.Min), scale(spec.Max), scale(spec.Step)
}

// ApplyInput interprets raw operator input for a field and returns the value
// to store. Text is taken verbatim. Numeric input that does not parse or is
// not finite is rejected with ok=false.
func ApplyInput(spec api.FieldSpec, raw string) (any, bool) {
	if spec.Type == api.FieldText {
		return raw, true
	}
	display, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, false
	}
	stored, ok := DisplayToStorage(spec, display)
	if !ok {
		return nil, false
	}
	if spec.Type == api.FieldDays {
		return int(math.Round(stored)), true
	}
	return stored, true
}

// DefaultValue resolves the stored default for a field, preferring the
// field's own default over the template-level defaults bag, and running it
// through the same bound semantics as live edits.
func DefaultValue(spec api.FieldSpec, templateDefaults map[string]any) any {
	var raw any
	if spec.Default != nil {
		raw = spec.Default
	} else if templateDefaults != nil {
		raw = templateDefaults[spec.Key]
	}

	if spec.Type == api.FieldText {
		if s, ok := raw.(string); ok {
			return s
		}
		return ""
	}

	f, ok := toFloat(raw)
	if !ok {
		f = 0
		if spec.Min != nil {
			f = *spec.Min
		}
	}
	f = Clamp(f, spec.Min, spec.Max)
	if spec.Type == api.FieldDays {
		return int(math.Round(f))
	}
	return f
}

// FormatValue renders a stored value for operator display.
func FormatValue(spec api.FieldSpec, stored any) string {
	if spec.Type == api.FieldText {
		if s, ok := stored.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", stored)
	}
	f, ok := toFloat(stored)
	if !ok {
		return fmt.Sprintf("%v", stored)
	}
	if spec.Type == api.FieldPercent {
		return fmt.Sprintf("%g%%", StorageToDisplay(spec, f))
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
