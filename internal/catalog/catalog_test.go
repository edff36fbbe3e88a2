package catalog

import (
	"context"
	"errors"
	"testing"

	"claritysim/internal/api"
)

type stubSource struct {
	scenarios []api.ScenarioTemplate
	templates []api.InterventionTemplate

	scenarioErr error
	templateErr error

	scenarioCalls int
	templateCalls int
}

func (s *stubSource) GetScenarioCatalog(ctx context.Context) ([]api.ScenarioTemplate, error) {
	s.scenarioCalls++
	return s.scenarios, s.scenarioErr
}

func (s *stubSource) GetInterventionLibrary(ctx context.Context) ([]api.InterventionTemplate, error) {
	s.templateCalls++
	return s.templates, s.templateErr
}

func TestLoadBuildsLookups(t *testing.T) {
	src := &stubSource{
		scenarios: []api.ScenarioTemplate{
			{ID: "boom_town", Name: "Boom Town"},
			{ID: "steady_cafe", Name: "Steady Cafe"},
		},
		templates: []api.InterventionTemplate{
			{
				Kind: "revenue_drop",
				Fields: []api.FieldSpec{
					{Key: "drop_pct", Type: api.FieldPercent},
				},
			},
		},
	}

	cat, err := Load(context.Background(), src)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if _, ok := cat.Scenario("steady_cafe"); !ok {
		t.Fatalf("expected steady_cafe in catalog")
	}
	if _, ok := cat.Scenario("missing"); ok {
		t.Fatalf("unexpected scenario hit")
	}
	if _, ok := cat.Template("revenue_drop"); !ok {
		t.Fatalf("expected revenue_drop template")
	}

	field, ok := cat.Field("revenue_drop", "drop_pct")
	if !ok || field.Type != api.FieldPercent {
		t.Fatalf("expected percent field, got %+v ok=%v", field, ok)
	}
	if _, ok := cat.Field("revenue_drop", "nope"); ok {
		t.Fatalf("unexpected field hit")
	}
	if _, ok := cat.Field("nope", "drop_pct"); ok {
		t.Fatalf("unexpected template hit")
	}
}

func TestLoadPropagatesSourceErrors(t *testing.T) {
	boom := errors.New("backend down")

	if _, err := Load(context.Background(), &stubSource{scenarioErr: boom}); !errors.Is(err, boom) {
		t.Fatalf("expected scenario error, got %v", err)
	}
	if _, err := Load(context.Background(), &stubSource{templateErr: boom}); !errors.Is(err, boom) {
		t.Fatalf("expected template error, got %v", err)
	}
}

func TestStableOrdering(t *testing.T) {
	src := &stubSource{
		scenarios: []api.ScenarioTemplate{{ID: "zeta"}, {ID: "alpha"}, {ID: "mid"}},
		templates: []api.InterventionTemplate{{Kind: "late"}, {Kind: "early"}},
	}
	cat, err := Load(context.Background(), src)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	ids := cat.ScenarioIDs()
	if len(ids) != 3 || ids[0] != "alpha" || ids[2] != "zeta" {
		t.Fatalf("scenario ids must be sorted, got %v", ids)
	}
	kinds := cat.TemplateKinds()
	if len(kinds) != 2 || kinds[0] != "early" {
		t.Fatalf("template kinds must be sorted, got %v", kinds)
	}
}

func TestNilCatalogLookupsMiss(t *testing.T) {
	var cat *Catalog
	if _, ok := cat.Scenario("x"); ok {
		t.Fatalf("nil catalog must miss")
	}
	if _, ok := cat.Template("x"); ok {
		t.Fatalf("nil catalog must miss")
	}
}
