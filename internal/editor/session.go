// Package editor coordinates the scenario simulation control surface for one
// business: the combined catalog/plan/intervention load, the draft stores,
// and every mutating action against the backend.
//
// At most one mutating operation is in flight at a time, gated by an
// idle|busy flag that is always released on the way out. Loads carry a
// monotonic sequence number so a stale load finishing after a newer one
// (rapid business switching) is discarded instead of applied.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"claritysim/internal/api"
	"claritysim/internal/audit"
	"claritysim/internal/catalog"
	"claritysim/internal/drafts"
	"claritysim/internal/fields"
	"claritysim/internal/generate"
	"claritysim/internal/planedit"
)

const dateLayout = "2006-01-02"

var (
	// ErrBusy is returned when a mutating action is already in flight.
	ErrBusy = errors.New("another operation is in flight")
	// ErrConfirmationRequired is returned by destructive actions invoked
	// without explicit operator confirmation.
	ErrConfirmationRequired = errors.New("confirmation required")
	// ErrStaleLoad marks a load whose results were discarded because a newer
	// load started before it finished.
	ErrStaleLoad = errors.New("load superseded by a newer load")
)

// Backend is the slice of the API client the session drives.
type Backend interface {
	GetScenarioCatalog(ctx context.Context) ([]api.ScenarioTemplate, error)
	GetInterventionLibrary(ctx context.Context) ([]api.InterventionTemplate, error)
	GetSimPlan(ctx context.Context, businessID string) (*api.BaselinePlan, error)
	PutSimPlan(ctx context.Context, businessID string, update api.PlanUpdate) (*api.BaselinePlan, error)
	ListSimInterventions(ctx context.Context, businessID string) ([]api.Intervention, error)
	CreateSimIntervention(ctx context.Context, businessID string, payload api.InterventionUpdate) (*api.Intervention, error)
	UpdateSimIntervention(ctx context.Context, businessID, id string, patch api.InterventionUpdate) (*api.Intervention, error)
	DeleteSimIntervention(ctx context.Context, businessID, id string) error
	GenerateSimEvents(ctx context.Context, businessID string, req api.GenerateRequest) (*api.GenerateResult, error)
	GetSimTruth(ctx context.Context, businessID string) ([]api.TruthEvent, error)
}

// Session is the editor state for one business at a time.
type Session struct {
	backend Backend
	trail   *audit.Trail

	// afterSave lets the host surface refresh dependent views after any
	// successful mutation (health summaries, refresh counters).
	afterSave func()

	// now is swappable for tests.
	now func() time.Time

	mu         sync.Mutex
	businessID string
	busy       bool
	loadSeq    int64

	cat           *catalog.Catalog
	plan          *planedit.Model
	interventions []api.Intervention
	draftStore    *drafts.Store
}

// Option configures a Session.
type Option func(*Session)

// WithAuditTrail records every mutation in the given trail.
func WithAuditTrail(t *audit.Trail) Option {
	return func(s *Session) { s.trail = t }
}

// WithAfterSave installs the post-mutation notification hook.
func WithAfterSave(fn func()) Option {
	return func(s *Session) { s.afterSave = fn }
}

// WithClock overrides the session's time source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession returns an unloaded session for the given business.
func NewSession(backend Backend, businessID string, opts ...Option) *Session {
	s := &Session{
		backend:    backend,
		businessID: businessID,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BusinessID returns the business the session currently targets.
func (s *Session) BusinessID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.businessID
}

// Catalog returns the loaded catalog cache.
func (s *Session) Catalog() *catalog.Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cat
}

// Plan returns the baseline plan model.
func (s *Session) Plan() *planedit.Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plan
}

// Interventions returns the persisted collection from the last load.
func (s *Session) Interventions() []api.Intervention {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.Intervention(nil), s.interventions...)
}

// Drafts returns the intervention draft store.
func (s *Session) Drafts() *drafts.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draftStore
}

// Busy reports whether a mutating operation is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Load fetches the catalog, plan, and interventions together and rebuilds
// editor state. The catalog is fetched only once per session. A load that
// finishes after a newer one started is discarded with ErrStaleLoad.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	s.loadSeq++
	seq := s.loadSeq
	businessID := s.businessID
	cached := s.cat
	s.mu.Unlock()

	cat := cached
	if cat == nil {
		loaded, err := catalog.Load(ctx, s.backend)
		if err != nil {
			return err
		}
		cat = loaded
	}

	plan, err := s.backend.GetSimPlan(ctx, businessID)
	if err != nil {
		return fmt.Errorf("load plan: %w", err)
	}
	list, err := s.backend.ListSimInterventions(ctx, businessID)
	if err != nil {
		return fmt.Errorf("load interventions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.loadSeq {
		return ErrStaleLoad
	}
	s.cat = cat
	s.plan = planedit.New(*plan)
	s.interventions = list
	if s.draftStore == nil {
		s.draftStore = drafts.NewStore(list)
	} else {
		s.draftStore.Rebuild(list)
	}
	return nil
}

// SwitchBusiness re-targets the session and reloads. The catalog cache is
// kept; plan and drafts are rebuilt for the new business.
func (s *Session) SwitchBusiness(ctx context.Context, businessID string) error {
	s.mu.Lock()
	s.businessID = businessID
	s.mu.Unlock()
	return s.Load(ctx)
}

// beginMutation flips the gate to busy, failing when an operation is
// already in flight. The caller must defer endMutation on every path.
func (s *Session) beginMutation() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	return nil
}

func (s *Session) endMutation() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func (s *Session) notifyAfterSave() {
	if s.afterSave != nil {
		s.afterSave()
	}
}

// record is best-effort: audit problems never fail the operation itself.
func (s *Session) record(action string, payload any) {
	if s.trail == nil {
		return
	}
	_ = s.trail.Record(s.BusinessID(), action, payload)
}

// SavePlan submits the drafted plan. Unparseable text fails before any
// network I/O. On success the whole editor state reloads from the server,
// which is the only way story_version advances.
func (s *Session) SavePlan(ctx context.Context) error {
	s.mu.Lock()
	plan := s.plan
	businessID := s.businessID
	s.mu.Unlock()
	if plan == nil {
		return errors.New("no plan loaded")
	}

	payload, err := plan.SavePayload()
	if err != nil {
		return err
	}

	if err := s.beginMutation(); err != nil {
		return err
	}
	defer s.endMutation()

	if _, err := s.backend.PutSimPlan(ctx, businessID, payload); err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	s.record("plan_saved", map[string]any{
		"scenario_id":   payload.ScenarioID,
		"story_version": payload.StoryVersion,
	})
	s.notifyAfterSave()
	return s.Load(ctx)
}

// ChangeScenario submits the currently drafted plan object together with the
// newly chosen preset, preserving in-progress baseline edits across the
// switch.
func (s *Session) ChangeScenario(ctx context.Context, scenarioID string) error {
	s.mu.Lock()
	plan := s.plan
	cat := s.cat
	businessID := s.businessID
	s.mu.Unlock()
	if plan == nil {
		return errors.New("no plan loaded")
	}
	if _, ok := cat.Scenario(scenarioID); !ok {
		return fmt.Errorf("unknown scenario %q", scenarioID)
	}

	payload, err := plan.ScenarioPayload(scenarioID)
	if err != nil {
		return err
	}

	if err := s.beginMutation(); err != nil {
		return err
	}
	defer s.endMutation()

	if _, err := s.backend.PutSimPlan(ctx, businessID, payload); err != nil {
		return fmt.Errorf("change scenario: %w", err)
	}
	s.record("scenario_changed", map[string]any{"scenario_id": scenarioID})
	s.notifyAfterSave()
	return s.Load(ctx)
}

// AddFromTemplate creates a new intervention seeded with the template's
// defaults and today's date. Defaults pass through the same field transforms
// as live edits, so both paths share one bound semantics.
func (s *Session) AddFromTemplate(ctx context.Context, kind, name string) error {
	s.mu.Lock()
	cat := s.cat
	businessID := s.businessID
	s.mu.Unlock()

	tmpl, ok := cat.Template(kind)
	if !ok {
		return fmt.Errorf("unknown intervention template %q", kind)
	}
	if name == "" {
		name = tmpl.Label
	}

	params := map[string]any{}
	for _, spec := range tmpl.Fields {
		params[spec.Key] = fields.DefaultValue(spec, tmpl.Defaults)
	}

	payload := api.InterventionUpdate{
		Kind:      kind,
		Name:      name,
		StartDate: s.now().UTC().Format(dateLayout),
		Params:    params,
		Enabled:   true,
	}

	if err := s.beginMutation(); err != nil {
		return err
	}
	defer s.endMutation()

	created, err := s.backend.CreateSimIntervention(ctx, businessID, payload)
	if err != nil {
		return fmt.Errorf("add intervention: %w", err)
	}
	s.record("intervention_added", map[string]any{"id": created.ID, "kind": kind})
	s.notifyAfterSave()
	return s.Load(ctx)
}

// SaveIntervention submits the full draft for one intervention. A clean
// draft is never submitted; the call is a no-op.
func (s *Session) SaveIntervention(ctx context.Context, id string) error {
	s.mu.Lock()
	store := s.draftStore
	businessID := s.businessID
	s.mu.Unlock()
	if store == nil {
		return errors.New("no interventions loaded")
	}
	if !store.IsDirty(id) {
		return nil
	}

	payload, err := store.SavePayload(id)
	if err != nil {
		return err
	}

	if err := s.beginMutation(); err != nil {
		return err
	}
	defer s.endMutation()

	if _, err := s.backend.UpdateSimIntervention(ctx, businessID, id, payload); err != nil {
		return fmt.Errorf("save intervention %s: %w", id, err)
	}
	s.record("intervention_saved", map[string]any{"id": id})
	s.notifyAfterSave()
	return s.Load(ctx)
}

// Generate fires one event-synthesis request built from the committed
// controls. Replace mode rewrites history from the start date forward and
// must be confirmed. The service's counts are returned verbatim.
func (s *Session) Generate(ctx context.Context, controls generate.Controls, confirmed bool) (*api.GenerateResult, error) {
	req := generate.Build(controls)
	if generate.Destructive(req.Mode) && !confirmed {
		return nil, ErrConfirmationRequired
	}

	if err := s.beginMutation(); err != nil {
		return nil, err
	}
	defer s.endMutation()

	result, err := s.backend.GenerateSimEvents(ctx, s.BusinessID(), req)
	if err != nil {
		return nil, fmt.Errorf("generate events: %w", err)
	}
	s.record("events_generated", map[string]any{
		"mode":     string(req.Mode),
		"days":     req.Days,
		"seed":     req.Seed,
		"inserted": result.Inserted,
		"deleted":  result.Deleted,
	})
	s.notifyAfterSave()
	return result, nil
}

// Truth returns the read-only audit trail of applied history.
func (s *Session) Truth(ctx context.Context) ([]api.TruthEvent, error) {
	return s.backend.GetSimTruth(ctx, s.BusinessID())
}
