package api

// FieldType enumerates the typed parameter kinds an intervention template can declare.
type FieldType string

const (
	FieldNumber  FieldType = "number"
	FieldPercent FieldType = "percent"
	FieldText    FieldType = "text"
	FieldDays    FieldType = "days"
)

// FieldSpec describes one typed parameter of an intervention template.
// Min/Max/Step are expressed in storage units and are optional.
type FieldSpec struct {
	Key     string    `json:"key"`
	Label   string    `json:"label"`
	Type    FieldType `json:"type"`
	Default any       `json:"default,omitempty"`
	Min     *float64  `json:"min,omitempty"`
	Max     *float64  `json:"max,omitempty"`
	Step    *float64  `json:"step,omitempty"`
}

// ScenarioTemplate is a baseline world preset from the scenario catalog.
type ScenarioTemplate struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Defaults    map[string]any `json:"defaults"`
}

// InterventionTemplate is a catalog entry describing one kind of timed modifier.
type InterventionTemplate struct {
	Kind        string         `json:"kind"`
	Label       string         `json:"label"`
	Description string         `json:"description"`
	Defaults    map[string]any `json:"defaults"`
	Fields      []FieldSpec    `json:"fields"`
}

// BaselinePlan is the steady-state configuration of one synthetic business.
// StoryVersion is server-assigned and echoed back on save so the backend can
// detect concurrent edits. StoryText is server-generated and read-only.
type BaselinePlan struct {
	ScenarioID   string         `json:"scenario_id"`
	StoryVersion int64          `json:"story_version"`
	Plan         map[string]any `json:"plan"`
	StoryText    string         `json:"story_text,omitempty"`
}

// PlanUpdate is the payload for saving a baseline plan.
type PlanUpdate struct {
	ScenarioID   string         `json:"scenario_id"`
	StoryVersion int64          `json:"story_version"`
	Plan         map[string]any `json:"plan"`
}

// Intervention is a persisted timed modifier layered onto the baseline.
// ID is server-assigned and empty until first save. DurationDays nil means
// the intervention is open-ended.
type Intervention struct {
	ID           string         `json:"id,omitempty"`
	Kind         string         `json:"kind"`
	Name         string         `json:"name"`
	StartDate    string         `json:"start_date"`
	DurationDays *int           `json:"duration_days"`
	Params       map[string]any `json:"params"`
	Enabled      bool           `json:"enabled"`
	UpdatedAt    string         `json:"updated_at,omitempty"`
}

// InterventionUpdate is the payload for creating or saving an intervention.
type InterventionUpdate struct {
	Kind         string         `json:"kind,omitempty"`
	Name         string         `json:"name"`
	StartDate    string         `json:"start_date"`
	DurationDays *int           `json:"duration_days"`
	Params       map[string]any `json:"params"`
	Enabled      bool           `json:"enabled"`
}

// GenerateMode selects how generated history relates to existing events.
type GenerateMode string

const (
	// ModeReplace rewrites all history from the start date forward.
	ModeReplace GenerateMode = "replace_from_start"
	// ModeAppend extends existing history without touching prior events.
	ModeAppend GenerateMode = "append"
)

// GenerateRequest is the single payload describing what synthetic history to
// produce. Shock fields are only present when EnableShocks is true.
type GenerateRequest struct {
	StartDate    string       `json:"start_date"`
	Days         int          `json:"days"`
	Mode         GenerateMode `json:"mode"`
	Seed         int64        `json:"seed"`
	EnableShocks bool         `json:"enable_shocks"`

	ShockDays       int     `json:"shock_days,omitempty"`
	RevenueDropPct  float64 `json:"revenue_drop_pct,omitempty"`
	ExpenseSpikePct float64 `json:"expense_spike_pct,omitempty"`
}

// GenerateResult reports what the synthesis service actually did.
type GenerateResult struct {
	Inserted int `json:"inserted"`
	Deleted  int `json:"deleted"`
}

// TruthEvent is one entry in the read-only audit trail of applied history.
type TruthEvent struct {
	Date   string         `json:"date"`
	Kind   string         `json:"kind"`
	Detail map[string]any `json:"detail,omitempty"`
}
