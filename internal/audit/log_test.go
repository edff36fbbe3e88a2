package audit

import (
	"database/sql"
	"path/filepath"
	"testing"
)

func TestRecordWritesEvent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trail.db")
	trail := NewTrail(dbPath)
	if trail.SessionID == "" {
		t.Fatalf("expected a session id")
	}

	err := trail.Record("biz-1", "plan_saved", map[string]any{"scenario_id": "steady_cafe"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := trail.Record("biz-1", "events_generated", nil); err != nil {
		t.Fatalf("record second: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	rows, err := db.Query("SELECT business_id, action, payload_json FROM sim_events ORDER BY id")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var got []string
	for rows.Next() {
		var businessID, action, payload string
		if err := rows.Scan(&businessID, &action, &payload); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got = append(got, businessID+"/"+action)
		if action == "plan_saved" && payload != `{"scenario_id":"steady_cafe"}` {
			t.Fatalf("unexpected payload %s", payload)
		}
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(got) != 2 || got[0] != "biz-1/plan_saved" || got[1] != "biz-1/events_generated" {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestNilTrailResolvesEnvPath(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "env.db")
	t.Setenv("CLARITYSIM_AUDIT_DB", dbPath)

	var trail *Trail
	if err := trail.Record("biz-1", "intervention_saved", nil); err != nil {
		t.Fatalf("record: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM sim_events").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 event, got %d", count)
	}
}
