package integration_test

import (
	"strings"
	"testing"

	"claritysim/integration/harness"
)

const testBusiness = "biz-smoke"

func TestCLISmoke(t *testing.T) {
	cli := harness.StartCLI(t, testBusiness)

	stdout, stderr, code := cli.Run("--help")
	if code != 0 {
		t.Fatalf("claritysim --help exit code %d\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}
	if !strings.Contains(stdout+stderr, "scenario simulation control plane") {
		t.Fatalf("expected help header\nstdout:\n%s\nstderr:\n%s", stdout, stderr)
	}

	stdout, stderr, code = cli.Run("catalog", "list")
	if code != 0 {
		t.Fatalf("catalog list exit code %d\nstderr:\n%s", code, stderr)
	}
	if !strings.Contains(stdout, "steady_cafe") || !strings.Contains(stdout, "revenue_drop") {
		t.Fatalf("catalog list missing seeded entries:\n%s", stdout)
	}

	stdout, stderr, code = cli.Run("iv", "list")
	if code != 0 {
		t.Fatalf("iv list exit code %d\nstderr:\n%s", code, stderr)
	}
	if !strings.Contains(stdout, "Slow spring") {
		t.Fatalf("iv list missing seeded intervention:\n%s", stdout)
	}

	_, stderr, code = cli.Run("iv", "add", "revenue_drop", "--name", "Smoke drop")
	if code != 0 {
		t.Fatalf("iv add exit code %d\nstderr:\n%s", code, stderr)
	}
	list := cli.Backend().Interventions(testBusiness)
	if len(list) != 2 {
		t.Fatalf("expected 2 interventions after add, got %d", len(list))
	}

	requireAuditEvents(t, cli.AuditDBPath(), []string{"intervention_added"})
}

func TestCLIGenerateSmoke(t *testing.T) {
	cli := harness.StartCLI(t, testBusiness)

	// Replace mode without --yes must refuse before any request is made.
	_, stderr, code := cli.Run("generate", "--start", "2024-01-01", "--days", "90", "--mode", "replace_from_start")
	if code == 0 {
		t.Fatalf("unconfirmed replace must fail")
	}
	if !strings.Contains(stderr, "--yes") {
		t.Fatalf("expected confirmation hint, got:\n%s", stderr)
	}

	stdout, stderr, code := cli.Run("generate", "--start", "2024-01-01", "--days", "90", "--mode", "replace_from_start", "--yes")
	if code != 0 {
		t.Fatalf("generate exit code %d\nstderr:\n%s", code, stderr)
	}
	if !strings.Contains(stdout, "inserted=270") || !strings.Contains(stdout, "deleted=42") {
		t.Fatalf("unexpected generate output:\n%s", stdout)
	}

	stdout, stderr, code = cli.Run("truth")
	if code != 0 {
		t.Fatalf("truth exit code %d\nstderr:\n%s", code, stderr)
	}
	if !strings.Contains(stdout, "events_generated") {
		t.Fatalf("truth missing generation record:\n%s", stdout)
	}

	requireAuditEvents(t, cli.AuditDBPath(), []string{"events_generated"})
}

func TestCLIRejectsUnresolvableAuditPath(t *testing.T) {
	cli := harness.StartCLI(t, testBusiness)
	cli.Setenv("CLARITYSIM_AUDIT_DB", "~nosuchuser/audit.db")

	_, stderr, code := cli.Run("iv", "list")
	if code == 0 {
		t.Fatalf("unresolvable audit db path must fail")
	}
	if !strings.Contains(stderr, "audit db path") {
		t.Fatalf("expected audit path error, got:\n%s", stderr)
	}
}
