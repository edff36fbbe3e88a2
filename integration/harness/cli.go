// Package harness drives the real claritysim binary against an in-memory
// stub backend. It owns the pieces every smoke test needs: the compiled
// binary, a running StubBackend, a temp config root, and the CLARITYSIM_*
// environment tying them together.
package harness

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
)

var binOnce sync.Once
var binPath string
var binErr error

// CLI is one smoke-test session: a built binary pointed at a stub backend
// for a single business, with its own config root and audit trail.
type CLI struct {
	t          *testing.T
	binPath    string
	workDir    string
	configRoot string
	businessID string
	backend    *StubBackend
	extraEnv   map[string]string
}

// StartCLI builds the binary (once per test run), starts a stub backend
// seeded for businessID, and wires a fresh config root.
func StartCLI(t *testing.T, businessID string) *CLI {
	t.Helper()
	return &CLI{
		t:          t,
		binPath:    buildBinary(t),
		workDir:    t.TempDir(),
		configRoot: t.TempDir(),
		businessID: businessID,
		backend:    StartStubBackend(t, businessID),
		extraEnv:   map[string]string{},
	}
}

// Backend returns the stub the binary talks to, for seeding and assertions.
func (c *CLI) Backend() *StubBackend {
	return c.backend
}

// AuditDBPath returns where this session's audit trail lands.
func (c *CLI) AuditDBPath() string {
	return filepath.Join(c.configRoot, "audit", "claritysim.db")
}

// Setenv overrides one environment variable for subsequent Run calls.
func (c *CLI) Setenv(key, value string) {
	c.extraEnv[key] = value
}

// Run executes the binary with the backend and config root wired through the
// environment, returning stdout, stderr, and the exit code.
func (c *CLI) Run(args ...string) (string, string, int) {
	c.t.Helper()

	cmd := exec.Command(c.binPath, args...)
	cmd.Dir = c.workDir
	cmd.Env = append(os.Environ(),
		"CLARITYSIM_HOME="+c.configRoot,
		"CLARITYSIM_BACKEND_URL="+c.backend.URL(),
		"CLARITYSIM_BUSINESS="+c.businessID,
		"CLARITYSIM_TOKEN=smoke-token",
	)
	for k, v := range c.extraEnv {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		ee, ok := err.(*exec.ExitError)
		if !ok {
			c.t.Fatalf("run %s: %v", c.binPath, err)
		}
		exitCode = ee.ExitCode()
	}
	return stdout.String(), stderr.String(), exitCode
}

// buildBinary compiles cmd/claritysim once per test run.
func buildBinary(t *testing.T) string {
	t.Helper()

	binOnce.Do(func() {
		_, file, _, ok := runtime.Caller(0)
		if !ok {
			binErr = fmt.Errorf("runtime.Caller failed")
			return
		}
		root := filepath.Dir(filepath.Dir(filepath.Dir(file)))
		if _, err := os.Stat(filepath.Join(root, "go.mod")); err != nil {
			binErr = fmt.Errorf("verify repo root: %w", err)
			return
		}

		dir, err := os.MkdirTemp("", "claritysim-bin-")
		if err != nil {
			binErr = fmt.Errorf("create temp dir: %w", err)
			return
		}
		out := filepath.Join(dir, "claritysim")

		cmd := exec.Command("go", "build", "-o", out, "./cmd/claritysim")
		cmd.Dir = root
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			binErr = fmt.Errorf("go build failed: %w\nstderr:\n%s", err, stderr.String())
			return
		}
		binPath = out
	})

	if binErr != nil {
		t.Fatalf("build claritysim binary: %v", binErr)
	}
	return binPath
}
