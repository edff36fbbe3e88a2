package profile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CLARITYSIM_BACKEND_URL", "")
	t.Setenv("CLARITYSIM_TOKEN", "")
	t.Setenv("CLARITYSIM_BUSINESS", "")
	t.Setenv("CLARITYSIM_AUDIT_DB", "")
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	path := writeProfile(t, `
backend_url: https://clarity.example.com/
token: tok-abc
business_id: biz-7
audit_db: /tmp/audit.db
`)

	p, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.BackendURL != "https://clarity.example.com" {
		t.Fatalf("trailing slash must be trimmed, got %q", p.BackendURL)
	}
	if p.Token != "tok-abc" || p.BusinessID != "biz-7" || p.AuditDB != "/tmp/audit.db" {
		t.Fatalf("unexpected profile %+v", p)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeProfile(t, `
backend_url: https://file.example.com
business_id: biz-file
`)
	t.Setenv("CLARITYSIM_BACKEND_URL", "https://env.example.com")
	t.Setenv("CLARITYSIM_BUSINESS", "biz-env")

	p, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.BackendURL != "https://env.example.com" {
		t.Fatalf("environment must win, got %q", p.BackendURL)
	}
	if p.BusinessID != "biz-env" {
		t.Fatalf("environment must win for business, got %q", p.BusinessID)
	}
}

func TestMissingFileWithEnvIsFine(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLARITYSIM_BACKEND_URL", "https://env-only.example.com")

	p, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.BackendURL != "https://env-only.example.com" {
		t.Fatalf("unexpected backend %q", p.BackendURL)
	}
}

func TestMissingBackendURLFailsValidation(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	if err == nil {
		t.Fatalf("expected validation failure")
	}
	var errs ValidationErrors
	if !errors.As(err, &errs) {
		t.Fatalf("expected ValidationErrors, got %T: %v", err, err)
	}
	if len(errs) != 1 || errs[0].Field != "backend_url" {
		t.Fatalf("unexpected errors %+v", errs)
	}
}

func TestUnparseableURLFailsValidation(t *testing.T) {
	clearEnv(t)
	path := writeProfile(t, "backend_url: not-a-url\n")

	_, err := Load(path)
	var errs ValidationErrors
	if !errors.As(err, &errs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
}

func TestBrokenYAMLIsAnError(t *testing.T) {
	clearEnv(t)
	path := writeProfile(t, "backend_url: [unclosed\n")

	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
