// Package generate assembles deterministic generation requests from the
// committed editor controls. Every numeric field is clamped after unit
// conversion, so a value typed as "120%" becomes 1.20 first and is then
// bounded in fraction space.
package generate

import (
	"time"

	"claritysim/internal/api"
)

// Declared bounds for the request payload.
const (
	MinDays = 1
	MaxDays = 3650

	MinShockDays = 1
	MaxShockDays = 365

	MinRevenueDrop = 0.05
	MaxRevenueDrop = 0.9

	MinExpenseSpike = 0.05
	MaxExpenseSpike = 5.0

	MaxSeed = 1<<31 - 1
)

const dateLayout = "2006-01-02"

// Controls are the committed generation settings. Percent controls carry
// display values (whole percent); conversion happens during Build.
type Controls struct {
	StartDate    string
	Days         int
	Mode         api.GenerateMode
	Seed         int64
	EnableShocks bool

	ShockDays              int
	RevenueDropDisplayPct  float64
	ExpenseSpikeDisplayPct float64
}

// Build produces exactly one request from the controls. It is pure: the same
// controls always yield an identical payload.
func Build(c Controls) api.GenerateRequest {
	req := api.GenerateRequest{
		StartDate:    c.StartDate,
		Days:         clampInt(c.Days, MinDays, MaxDays),
		Mode:         c.Mode,
		Seed:         clampSeed(c.Seed),
		EnableShocks: c.EnableShocks,
	}
	if req.Mode != api.ModeReplace && req.Mode != api.ModeAppend {
		req.Mode = api.ModeAppend
	}
	if !c.EnableShocks {
		return req
	}
	req.ShockDays = clampInt(c.ShockDays, MinShockDays, MaxShockDays)
	req.RevenueDropPct = clampFloat(c.RevenueDropDisplayPct/100, MinRevenueDrop, MaxRevenueDrop)
	req.ExpenseSpikePct = clampFloat(c.ExpenseSpikeDisplayPct/100, MinExpenseSpike, MaxExpenseSpike)
	return req
}

// QuickRange returns start/days for a "last N days" helper. It only computes
// control values; it never issues the request itself.
func QuickRange(now time.Time, days int) (startDate string, clampedDays int) {
	clampedDays = clampInt(days, MinDays, MaxDays)
	start := now.UTC().AddDate(0, 0, -clampedDays)
	return start.Format(dateLayout), clampedDays
}

// QuickRangeOption pairs a convenience-window label with its day count.
type QuickRangeOption struct {
	Label string
	Days  int
}

// QuickRanges lists the offered convenience windows in display order.
func QuickRanges() []QuickRangeOption {
	return []QuickRangeOption{
		{Label: "30d", Days: 30},
		{Label: "90d", Days: 90},
		{Label: "180d", Days: 180},
		{Label: "1y", Days: 365},
		{Label: "2y", Days: 730},
	}
}

// QuickRangeDays resolves a window label to its day count.
func QuickRangeDays(label string) (int, bool) {
	for _, opt := range QuickRanges() {
		if opt.Label == label {
			return opt.Days, true
		}
	}
	return 0, false
}

// Destructive reports whether the mode rewrites existing history and must be
// confirmed by the operator.
func Destructive(mode api.GenerateMode) bool {
	return mode == api.ModeReplace
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampSeed(seed int64) int64 {
	if seed < 0 {
		return 0
	}
	if seed > MaxSeed {
		return MaxSeed
	}
	return seed
}
