package harness

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"claritysim/internal/api"
)

// StubBackend is an in-memory monitoring backend serving the simulation
// endpoints over HTTP, so smoke tests can exercise the real binary without a
// live deployment.
type StubBackend struct {
	mu sync.Mutex

	Scenarios []api.ScenarioTemplate
	Templates []api.InterventionTemplate

	plans         map[string]api.BaselinePlan
	interventions map[string][]api.Intervention
	truth         map[string][]api.TruthEvent
	nextID        int

	server *httptest.Server
}

// StartStubBackend returns a running stub seeded with a small catalog and one
// business. The server shuts down with the test.
func StartStubBackend(t *testing.T, businessID string) *StubBackend {
	t.Helper()

	day30 := 30.0
	dropMin, dropMax := 0.05, 0.9
	b := &StubBackend{
		Scenarios: []api.ScenarioTemplate{
			{ID: "steady_cafe", Name: "Steady Cafe", Description: "Stable revenue, modest seasonality."},
			{ID: "boom_town", Name: "Boom Town", Description: "Aggressive growth with volatile expenses."},
		},
		Templates: []api.InterventionTemplate{
			{
				Kind:  "revenue_drop",
				Label: "Revenue drop",
				Fields: []api.FieldSpec{
					{Key: "drop_pct", Label: "Drop", Type: api.FieldPercent, Default: 0.2, Min: &dropMin, Max: &dropMax},
					{Key: "ramp_days", Label: "Ramp", Type: api.FieldDays, Default: 7.0, Max: &day30},
				},
			},
		},
		plans: map[string]api.BaselinePlan{
			businessID: {
				ScenarioID:   "steady_cafe",
				StoryVersion: 1,
				Plan:         map[string]any{"burn_multiplier": 1.0, "seasonality": "mild"},
			},
		},
		interventions: map[string][]api.Intervention{
			businessID: {
				{ID: "iv-1", Kind: "revenue_drop", Name: "Slow spring", StartDate: "2024-03-01",
					Params: map[string]any{"drop_pct": 0.2}, Enabled: true, UpdatedAt: "2024-03-01T00:00:00Z"},
			},
		},
		truth: map[string][]api.TruthEvent{
			businessID: {{Date: "2024-01-01", Kind: "baseline_generated"}},
		},
		nextID: 2,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/sim/scenarios", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, b.Scenarios)
	})
	mux.HandleFunc("GET /api/sim/templates", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, b.Templates)
	})
	mux.HandleFunc("GET /api/businesses/{id}/sim/plan", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		plan, ok := b.plans[r.PathValue("id")]
		if !ok {
			writeError(w, http.StatusNotFound, "unknown business")
			return
		}
		writeJSON(w, plan)
	})
	mux.HandleFunc("PUT /api/businesses/{id}/sim/plan", func(w http.ResponseWriter, r *http.Request) {
		var update api.PlanUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		id := r.PathValue("id")
		plan := b.plans[id]
		if update.StoryVersion != plan.StoryVersion {
			writeError(w, http.StatusConflict, "story version mismatch")
			return
		}
		plan.ScenarioID = update.ScenarioID
		plan.Plan = update.Plan
		plan.StoryVersion++
		b.plans[id] = plan
		writeJSON(w, plan)
	})
	mux.HandleFunc("GET /api/businesses/{id}/sim/interventions", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.interventions[r.PathValue("id")]
		if list == nil {
			list = []api.Intervention{}
		}
		writeJSON(w, list)
	})
	mux.HandleFunc("POST /api/businesses/{id}/sim/interventions", func(w http.ResponseWriter, r *http.Request) {
		var payload api.InterventionUpdate
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		id := r.PathValue("id")
		iv := api.Intervention{
			ID:           fmt.Sprintf("iv-%d", b.nextID),
			Kind:         payload.Kind,
			Name:         payload.Name,
			StartDate:    payload.StartDate,
			DurationDays: payload.DurationDays,
			Params:       payload.Params,
			Enabled:      payload.Enabled,
			UpdatedAt:    "2024-06-01T00:00:00Z",
		}
		b.nextID++
		b.interventions[id] = append(b.interventions[id], iv)
		writeJSON(w, iv)
	})
	mux.HandleFunc("PUT /api/businesses/{id}/sim/interventions/{ivID}", func(w http.ResponseWriter, r *http.Request) {
		var patch api.InterventionUpdate
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.interventions[r.PathValue("id")]
		for i := range list {
			if list[i].ID != r.PathValue("ivID") {
				continue
			}
			list[i].Name = patch.Name
			list[i].StartDate = patch.StartDate
			list[i].DurationDays = patch.DurationDays
			list[i].Params = patch.Params
			list[i].Enabled = patch.Enabled
			writeJSON(w, list[i])
			return
		}
		writeError(w, http.StatusNotFound, "unknown intervention")
	})
	mux.HandleFunc("DELETE /api/businesses/{id}/sim/interventions/{ivID}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		id := r.PathValue("id")
		list := b.interventions[id]
		for i := range list {
			if list[i].ID == r.PathValue("ivID") {
				b.interventions[id] = append(list[:i], list[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		writeError(w, http.StatusNotFound, "unknown intervention")
	})
	mux.HandleFunc("POST /api/businesses/{id}/sim/generate", func(w http.ResponseWriter, r *http.Request) {
		var req api.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		id := r.PathValue("id")
		result := api.GenerateResult{Inserted: req.Days * 3}
		if req.Mode == api.ModeReplace {
			result.Deleted = 42
		}
		b.truth[id] = append(b.truth[id], api.TruthEvent{
			Date: req.StartDate,
			Kind: "events_generated",
			Detail: map[string]any{
				"mode": string(req.Mode),
				"days": req.Days,
				"seed": req.Seed,
			},
		})
		writeJSON(w, result)
	})
	mux.HandleFunc("GET /api/businesses/{id}/sim/truth", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, b.truth[r.PathValue("id")])
	})

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

// URL returns the base URL of the running stub.
func (b *StubBackend) URL() string {
	return b.server.URL
}

// Interventions returns the current persisted list for a business.
func (b *StubBackend) Interventions(businessID string) []api.Intervention {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]api.Intervention(nil), b.interventions[businessID]...)
}

// Plan returns the current persisted plan for a business.
func (b *StubBackend) Plan(businessID string) api.BaselinePlan {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.plans[businessID]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
