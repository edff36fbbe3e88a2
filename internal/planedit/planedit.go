// Package planedit maintains the dual representation of a business's
// baseline plan: the structured attribute bag and its editable JSON text.
//
// The two views sync through a one-directional parse pipeline. Editing the
// text attempts a parse on every change; only a successful parse replaces the
// object. Formatting re-serializes the object back to canonical text. The
// views never share a mutable reference.
package planedit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"claritysim/internal/api"
)

// Model is the editor state for one business's baseline plan.
type Model struct {
	persisted api.BaselinePlan

	draftScenarioID string
	draftObj        map[string]any
	draftText       string
	parseErr        error
}

// New builds a model from the server's plan, initializing both views.
func New(persisted api.BaselinePlan) *Model {
	m := &Model{}
	m.Reset(persisted)
	return m
}

// Reset replaces all state from a freshly loaded server plan. Any unsaved
// edits are discarded; this runs after every successful save or reload.
func (m *Model) Reset(persisted api.BaselinePlan) {
	m.persisted = persisted
	m.draftScenarioID = persisted.ScenarioID
	m.draftObj = cloneBag(persisted.Plan)
	m.draftText = canonicalText(m.draftObj)
	m.parseErr = nil
}

// Persisted returns the last server-confirmed plan.
func (m *Model) Persisted() api.BaselinePlan {
	return m.persisted
}

// ScenarioID returns the drafted scenario preset id.
func (m *Model) ScenarioID() string {
	return m.draftScenarioID
}

// SetScenarioID stages a different scenario preset. The drafted plan object
// is kept so in-progress edits survive the switch.
func (m *Model) SetScenarioID(id string) {
	m.draftScenarioID = id
}

// Text returns the current editable text view.
func (m *Model) Text() string {
	return m.draftText
}

// Object returns the last successfully parsed plan object.
func (m *Model) Object() map[string]any {
	return m.draftObj
}

// Err returns the active parse error, or nil when the text is valid.
func (m *Model) Err() error {
	return m.parseErr
}

// SetText replaces the text view and attempts a parse. On success the object
// view is replaced and any prior error clears. On failure the object keeps
// its last valid value and the error is retained until corrected.
func (m *Model) SetText(text string) {
	m.draftText = text
	obj, err := parseBag(text)
	if err != nil {
		m.parseErr = err
		return
	}
	m.draftObj = obj
	m.parseErr = nil
}

// Format re-serializes the valid object back to canonical text (sorted keys,
// two-space indent). It refuses to touch anything while the text is invalid.
func (m *Model) Format() error {
	if m.parseErr != nil {
		return fmt.Errorf("cannot format: %w", m.parseErr)
	}
	m.draftText = canonicalText(m.draftObj)
	return nil
}

// Revert discards all unsaved changes, restoring both views and the scenario
// choice from the last server-confirmed plan.
func (m *Model) Revert() {
	m.Reset(m.persisted)
}

// Dirty reports whether the draft differs from the persisted plan.
func (m *Model) Dirty() bool {
	if m.draftScenarioID != m.persisted.ScenarioID {
		return true
	}
	return !reflect.DeepEqual(normalizeBag(m.draftObj), normalizeBag(m.persisted.Plan))
}

// SavePayload assembles the save request. It fails while a parse error is
// active so unparseable text can never silently discard edits.
func (m *Model) SavePayload() (api.PlanUpdate, error) {
	if m.parseErr != nil {
		return api.PlanUpdate{}, fmt.Errorf("plan text is not valid: %w", m.parseErr)
	}
	return api.PlanUpdate{
		ScenarioID:   m.draftScenarioID,
		StoryVersion: m.persisted.StoryVersion,
		Plan:         cloneBag(m.draftObj),
	}, nil
}

// ScenarioPayload assembles the save request for a scenario switch: the newly
// chosen preset id paired with the currently drafted plan object, so
// in-progress baseline edits are preserved rather than overwritten by the new
// preset's defaults.
func (m *Model) ScenarioPayload(scenarioID string) (api.PlanUpdate, error) {
	if m.parseErr != nil {
		return api.PlanUpdate{}, fmt.Errorf("plan text is not valid: %w", m.parseErr)
	}
	return api.PlanUpdate{
		ScenarioID:   scenarioID,
		StoryVersion: m.persisted.StoryVersion,
		Plan:         cloneBag(m.draftObj),
	}, nil
}

func parseBag(text string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}
	if obj == nil {
		// "null" decodes into a nil map without an error.
		return nil, fmt.Errorf("parse plan: expected an object, got null")
	}
	if dec.More() {
		return nil, fmt.Errorf("parse plan: trailing content after object")
	}
	return obj, nil
}

func canonicalText(obj map[string]any) string {
	if obj == nil {
		obj = map[string]any{}
	}
	data, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data) + "\n"
}

// cloneBag deep-copies an attribute bag through a JSON round trip so the two
// views never alias nested maps or slices.
func cloneBag(bag map[string]any) map[string]any {
	if bag == nil {
		return map[string]any{}
	}
	data, err := json.Marshal(bag)
	if err != nil {
		return map[string]any{}
	}
	out, err := parseBag(string(data))
	if err != nil {
		return map[string]any{}
	}
	return out
}

// normalizeBag reduces a bag to canonical JSON types so structural equality
// is independent of how values were produced (json.Number vs float64, etc.).
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
