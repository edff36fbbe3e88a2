// Package audit records every mutating control-plane action in a local
// SQLite trail so an operator can reconstruct what was done to a business's
// synthetic history and when.
package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const defaultTrailPath = "audit/claritysim.db"

// Trail writes audit events to a SQLite file. Each Trail carries a session id
// so interleaved operator sessions stay distinguishable.
type Trail struct {
	DBPath    string
	SessionID string
}

// NewTrail returns a Trail bound to the provided DB path with a fresh
// session id.
func NewTrail(dbPath string) *Trail {
	return &Trail{
		DBPath:    dbPath,
		SessionID: uuid.NewString(),
	}
}

// Record writes one audit event for a business-scoped action.
func (t *Trail) Record(businessID, action string, payload any) error {
	path := ""
	session := ""
	if t != nil {
		path = t.DBPath
		session = t.SessionID
	}
	resolved, err := resolveTrailPath(path)
	if err != nil {
		return err
	}
	return writeEvent(resolved, session, businessID, action, payload)
}

func resolveTrailPath(dbPath string) (string, error) {
	if dbPath == "" {
		dbPath = os.Getenv("CLARITYSIM_AUDIT_DB")
	}
	if dbPath == "" {
		dbPath = defaultTrailPath
	}
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("resolve audit db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return "", fmt.Errorf("ensure audit db dir: %w", err)
	}
	return absPath, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sim_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts DATETIME NOT NULL,
			session_id TEXT NOT NULL,
			business_id TEXT NOT NULL,
			action TEXT NOT NULL,
			payload_json TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

func writeEvent(dbPath, sessionID, businessID, action string, payload any) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open audit db: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := ensureSchema(db); err != nil {
		return err
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = db.Exec(
		"INSERT INTO sim_events (ts, session_id, business_id, action, payload_json) VALUES (?, ?, ?, ?, ?)",
		time.Now().UTC(),
		sessionID,
		businessID,
		action,
		string(payloadJSON),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	return nil
}
