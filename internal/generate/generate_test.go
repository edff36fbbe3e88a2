package generate

import (
	"encoding/json"
	"testing"
	"time"

	"claritysim/internal/api"
)

func TestBuildClampsAfterConversion(t *testing.T) {
	req := Build(Controls{
		StartDate:              "2024-01-01",
		Days:                   5000,
		Mode:                   api.ModeAppend,
		Seed:                   -7,
		EnableShocks:           true,
		ShockDays:              900,
		RevenueDropDisplayPct:  120, // converts to 1.20, then clamps to 0.9
		ExpenseSpikeDisplayPct: 1,   // converts to 0.01, then clamps to 0.05
	})

	if req.Days != MaxDays {
		t.Fatalf("expected days clamped to %d, got %d", MaxDays, req.Days)
	}
	if req.Seed != 0 {
		t.Fatalf("expected negative seed clamped to 0, got %d", req.Seed)
	}
	if req.ShockDays != MaxShockDays {
		t.Fatalf("expected shock days clamped to %d, got %d", MaxShockDays, req.ShockDays)
	}
	if req.RevenueDropPct != MaxRevenueDrop {
		t.Fatalf("expected revenue drop clamped to %g, got %g", MaxRevenueDrop, req.RevenueDropPct)
	}
	if req.ExpenseSpikePct != MinExpenseSpike {
		t.Fatalf("expected expense spike clamped to %g, got %g", MinExpenseSpike, req.ExpenseSpikePct)
	}
}

func TestShockFieldsOmittedWhenDisabled(t *testing.T) {
	req := Build(Controls{
		StartDate:              "2024-01-01",
		Days:                   30,
		Mode:                   api.ModeReplace,
		Seed:                   42,
		EnableShocks:           false,
		ShockDays:              900,
		RevenueDropDisplayPct:  120,
		ExpenseSpikeDisplayPct: 500,
	})

	if req.ShockDays != 0 || req.RevenueDropPct != 0 || req.ExpenseSpikePct != 0 {
		t.Fatalf("shock fields must be zero when shocks are disabled: %+v", req)
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	for _, field := range []string{"shock_days", "revenue_drop_pct", "expense_spike_pct"} {
		if containsField(data, field) {
			t.Fatalf("payload must omit %s when shocks are disabled: %s", field, data)
		}
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	controls := Controls{
		StartDate:    "2024-01-01",
		Days:         30,
		Mode:         api.ModeReplace,
		Seed:         42,
		EnableShocks: false,
	}

	a, err := json.Marshal(Build(controls))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := json.Marshal(Build(controls))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("identical controls must build identical payloads:\n%s\n%s", a, b)
	}
}

func TestUnknownModeFallsBackToAppend(t *testing.T) {
	req := Build(Controls{StartDate: "2024-01-01", Days: 30, Mode: "rewrite_everything"})
	if req.Mode != api.ModeAppend {
		t.Fatalf("unknown mode must fall back to append, got %s", req.Mode)
	}
}

func TestQuickRange(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	start, days := QuickRange(now, 30)
	if days != 30 {
		t.Fatalf("expected 30 days, got %d", days)
	}
	if start != "2024-05-16" {
		t.Fatalf("expected start 30 days back, got %s", start)
	}

	if _, days = QuickRange(now, 100000); days != MaxDays {
		t.Fatalf("quick range must respect the day bound, got %d", days)
	}
}

func TestQuickRangesOrderedShortestFirst(t *testing.T) {
	opts := QuickRanges()
	want := []string{"30d", "90d", "180d", "1y", "2y"}
	if len(opts) != len(want) {
		t.Fatalf("expected %d ranges, got %d", len(want), len(opts))
	}
	for i, opt := range opts {
		if opt.Label != want[i] {
			t.Fatalf("range %d: expected %s, got %s", i, want[i], opt.Label)
		}
		if i > 0 && opt.Days <= opts[i-1].Days {
			t.Fatalf("ranges must grow: %s (%d) after %s (%d)",
				opt.Label, opt.Days, opts[i-1].Label, opts[i-1].Days)
		}
	}

	days, ok := QuickRangeDays("1y")
	if !ok || days != 365 {
		t.Fatalf("expected 1y -> 365, got %d ok=%v", days, ok)
	}
	if _, ok := QuickRangeDays("5y"); ok {
		t.Fatalf("unknown label must miss")
	}
}

func TestDestructive(t *testing.T) {
	if !Destructive(api.ModeReplace) {
		t.Fatalf("replace_from_start rewrites history and is destructive")
	}
	if Destructive(api.ModeAppend) {
		t.Fatalf("append must not be destructive")
	}
}

func containsField(data []byte, field string) bool {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return false
	}
	_, ok := m[field]
	return ok
}
