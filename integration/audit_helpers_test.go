package integration_test

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func loadAuditActions(t *testing.T, dbPath string) map[string]int {
	t.Helper()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open audit db: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	rows, err := db.Query("SELECT action, COUNT(*) FROM sim_events GROUP BY action")
	if err != nil {
		t.Fatalf("query audit events: %v", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	actions := make(map[string]int)
	for rows.Next() {
		var action string
		var count int
		if err := rows.Scan(&action, &count); err != nil {
			t.Fatalf("scan audit event: %v", err)
		}
		actions[action] = count
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate audit events: %v", err)
	}
	return actions
}

func requireAuditEvents(t *testing.T, dbPath string, want []string) {
	t.Helper()
	actions := loadAuditActions(t, dbPath)
	for _, action := range want {
		if actions[action] == 0 {
			t.Fatalf("missing audit event %s in %s", action, dbPath)
		}
	}
}
