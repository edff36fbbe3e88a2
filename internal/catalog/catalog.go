// Package catalog holds the session-scoped cache of scenario presets and
// intervention templates. Both lists load once and are read-only afterwards.
package catalog

import (
	"context"
	"fmt"
	"sort"

	"claritysim/internal/api"
)

// Source is the slice of the backend client the catalog needs.
type Source interface {
	GetScenarioCatalog(ctx context.Context) ([]api.ScenarioTemplate, error)
	GetInterventionLibrary(ctx context.Context) ([]api.InterventionTemplate, error)
}

// Catalog is the loaded lookup table.
type Catalog struct {
	Scenarios []api.ScenarioTemplate
	Templates []api.InterventionTemplate

	scenarioByID   map[string]api.ScenarioTemplate
	templateByKind map[string]api.InterventionTemplate
}

// Load fetches both catalog lists and builds the lookup maps.
func Load(ctx context.Context, src Source) (*Catalog, error) {
	scenarios, err := src.GetScenarioCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load scenario catalog: %w", err)
	}
	templates, err := src.GetInterventionLibrary(ctx)
	if err != nil {
		return nil, fmt.Errorf("load intervention library: %w", err)
	}
	return build(scenarios, templates), nil
}

func build(scenarios []api.ScenarioTemplate, templates []api.InterventionTemplate) *Catalog {
	c := &Catalog{
		Scenarios:      scenarios,
		Templates:      templates,
		scenarioByID:   make(map[string]api.ScenarioTemplate),
		templateByKind: make(map[string]api.InterventionTemplate),
	}
	for _, s := range scenarios {
		c.scenarioByID[s.ID] = s
	}
	for _, t := range templates {
		c.templateByKind[t.Kind] = t
	}
	return c
}

// Scenario returns the preset for the given id, if present.
func (c *Catalog) Scenario(id string) (api.ScenarioTemplate, bool) {
	if c == nil {
		return api.ScenarioTemplate{}, false
	}
	s, ok := c.scenarioByID[id]
	return s, ok
}

// Template returns the intervention template for the given kind, if present.
func (c *Catalog) Template(kind string) (api.InterventionTemplate, bool) {
	if c == nil {
		return api.InterventionTemplate{}, false
	}
	t, ok := c.templateByKind[kind]
	return t, ok
}

// Field returns the field spec for the given template kind and param key.
func (c *Catalog) Field(kind, key string) (api.FieldSpec, bool) {
	tmpl, ok := c.Template(kind)
	if !ok {
		return api.FieldSpec{}, false
	}
	for _, f := range tmpl.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return api.FieldSpec{}, false
}

// ScenarioIDs returns all preset ids in stable order.
func (c *Catalog) ScenarioIDs() []string {
	ids := make([]string, 0, len(c.scenarioByID))
	for id := range c.scenarioByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// TemplateKinds returns all template kinds in stable order.
func (c *Catalog) TemplateKinds() []string {
	kinds := make([]string, 0, len(c.templateByKind))
	for kind := range c.templateByKind {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
