// Package drafts holds the mutable working copies of a business's persisted
// interventions. Each draft shadows one persisted record, keyed by its stable
// id rather than list position, and dirtiness is a structural comparison
// against the last-known persisted snapshot instead of an imperative flag.
package drafts

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"claritysim/internal/api"
)

// FieldPatch stages changes to an intervention's top-level attributes. Nil
// pointers leave the attribute untouched. ClearDuration marks the
// intervention open-ended (duration_days null).
type FieldPatch struct {
	Name          *string
	StartDate     *string
	DurationDays  *int
	ClearDuration bool
	Enabled       *bool
}

// Store is the draft shadow of one business's intervention collection.
type Store struct {
	persisted map[string]api.Intervention
	working   map[string]api.Intervention
	order     []string
}

// NewStore builds drafts as deep copies of the persisted records.
func NewStore(list []api.Intervention) *Store {
	s := &Store{}
	s.Rebuild(list)
	return s
}

// Rebuild replaces every draft and snapshot from a freshly loaded
// collection. Runs after every successful save, delete, or bulk action so
// draft state never drifts from what the server holds.
func (s *Store) Rebuild(list []api.Intervention) {
	s.persisted = make(map[string]api.Intervention, len(list))
	s.working = make(map[string]api.Intervention, len(list))
	s.order = s.order[:0]
	for _, iv := range list {
		if iv.ID == "" {
			continue
		}
		s.persisted[iv.ID] = cloneIntervention(iv)
		s.working[iv.ID] = cloneIntervention(iv)
		s.order = append(s.order, iv.ID)
	}
}

// IDs returns draft ids in load order.
func (s *Store) IDs() []string {
	return append([]string(nil), s.order...)
}

// Draft returns a copy of the working draft for the given id.
func (s *Store) Draft(id string) (api.Intervention, bool) {
	iv, ok := s.working[id]
	if !ok {
		return api.Intervention{}, false
	}
	return cloneIntervention(iv), true
}

// Persisted returns a copy of the last-loaded server record for the given id.
func (s *Store) Persisted(id string) (api.Intervention, bool) {
	iv, ok := s.persisted[id]
	if !ok {
		return api.Intervention{}, false
	}
	return cloneIntervention(iv), true
}

// UpdateField merges staged top-level changes into a draft.
func (s *Store) UpdateField(id string, patch FieldPatch) error {
	iv, ok := s.working[id]
	if !ok {
		return fmt.Errorf("no draft for intervention %s", id)
	}
	if patch.Name != nil {
		iv.Name = *patch.Name
	}
	if patch.StartDate != nil {
		iv.StartDate = *patch.StartDate
	}
	if patch.ClearDuration {
		iv.DurationDays = nil
	} else if patch.DurationDays != nil {
		d := *patch.DurationDays
		iv.DurationDays = &d
	}
	if patch.Enabled != nil {
		iv.Enabled = *patch.Enabled
	}
	s.working[id] = iv
	return nil
}

// UpdateParam merges a single value into a draft's params bag, leaving other
// params untouched.
func (s *Store) UpdateParam(id, key string, value any) error {
	iv, ok := s.working[id]
	if !ok {
		return fmt.Errorf("no draft for intervention %s", id)
	}
	if iv.Params == nil {
		iv.Params = map[string]any{}
	}
	iv.Params[key] = value
	s.working[id] = iv
	return nil
}

// IsDirty reports whether the draft differs structurally from its persisted
// counterpart. UpdatedAt is advisory and ignored.
func (s *Store) IsDirty(id string) bool {
	draft, ok := s.working[id]
	if !ok {
		return false
	}
	persisted, ok := s.persisted[id]
	if !ok {
		return true
	}
	return !reflect.DeepEqual(normalizeRecord(draft), normalizeRecord(persisted))
}

// DirtyIDs returns ids of all dirty drafts in load order.
func (s *Store) DirtyIDs() []string {
	var ids []string
	for _, id := range s.order {
		if s.IsDirty(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Revert resets a draft to a fresh copy of the persisted record.
func (s *Store) Revert(id string) error {
	iv, ok := s.persisted[id]
	if !ok {
		return fmt.Errorf("no persisted intervention %s", id)
	}
	s.working[id] = cloneIntervention(iv)
	return nil
}

// SavePayload returns the full update payload for a draft. Drafts only reach
// the network through this path; an abandoned dirty draft is never submitted.
func (s *Store) SavePayload(id string) (api.InterventionUpdate, error) {
	iv, ok := s.working[id]
	if !ok {
		return api.InterventionUpdate{}, fmt.Errorf("no draft for intervention %s", id)
	}
	iv = cloneIntervention(iv)
	return api.InterventionUpdate{
		Name:         iv.Name,
		StartDate:    iv.StartDate,
		DurationDays: iv.DurationDays,
		Params:       iv.Params,
		Enabled:      iv.Enabled,
	}, nil
}

// Diff renders a unified diff of the persisted record against the draft.
// A clean draft yields an empty string.
func (s *Store) Diff(id string) (string, error) {
	draft, ok := s.working[id]
	if !ok {
		return "", fmt.Errorf("no draft for intervention %s", id)
	}
	persisted, ok := s.persisted[id]
	if !ok {
		return "", fmt.Errorf("no persisted intervention %s", id)
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(renderForDiff(persisted)),
		B:        difflib.SplitLines(renderForDiff(draft)),
		FromFile: "persisted/" + id,
		ToFile:   "draft/" + id,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("diff %s: %w", id, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	return text, nil
}

// normalizeRecord reduces a record to canonical JSON-typed comparable fields.
type comparableRecord struct {
	Name         string
	StartDate    string
	DurationDays *int
	Enabled      bool
	Params       map[string]any
}

func normalizeRecord(iv api.Intervention) comparableRecord {
	rec := comparableRecord{
		Name:      iv.Name,
		StartDate: iv.StartDate,
		Enabled:   iv.Enabled,
		Params:    normalizeBag(iv.Params),
	}
	if iv.DurationDays != nil {
		d := *iv.DurationDays
		rec.DurationDays = &d
	}
	return rec
}

func renderForDiff(iv api.Intervention) string {
	rec := normalizeRecord(iv)
	duration := "ongoing"
	if rec.DurationDays != nil {
		duration = fmt.Sprintf("%d", *rec.DurationDays)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "name: %s\n", rec.Name)
	fmt.Fprintf(&b, "start_date: %s\n", rec.StartDate)
	fmt.Fprintf(&b, "duration_days: %s\n", duration)
	fmt.Fprintf(&b, "enabled: %t\n", rec.Enabled)
	keys := make([]string, 0, len(rec.Params))
	for k := range rec.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "params.%s: %v\n", k, rec.Params[k])
	}
	return b.String()
}

func cloneIntervention(iv api.Intervention) api.Intervention {
	out := iv
	if iv.DurationDays != nil {
		d := *iv.DurationDays
		out.DurationDays = &d
	}
	out.Params = cloneBag(iv.Params)
	return out
}

func cloneBag(bag map[string]any) map[string]any {
	if bag == nil {
		return map[string]any{}
	}
	out := normalizeBag(bag)
	if out == nil {
		return map[string]any{}
	}
	return out
}

// normalizeBag round-trips a bag through JSON so equality comparisons do not
// depend on the concrete numeric types callers used.
func normalizeBag(bag map[string]any) map[string]any {
	if bag == nil {
		return map[string]any{}
	}
	data, err := json.Marshal(bag)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}
