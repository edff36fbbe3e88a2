// Package workspace resolves the operator's on-disk layout: where the
// connection profile lives and where local state such as the audit trail is
// kept. Everything hangs off one config root, ~/.config/claritysim by
// default.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Workspace defines the local paths claritysim reads and writes.
type Workspace struct {
	Root        string
	ProfilePath string
	AuditDir    string
	AuditDBPath string
}

// Default resolves the standard config root, honoring CLARITYSIM_HOME when
// set. The root is not required to exist yet.
func Default() (*Workspace, error) {
	root := strings.TrimSpace(os.Getenv("CLARITYSIM_HOME"))
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		root = filepath.Join(home, ".config", "claritysim")
	}
	return Resolve(root)
}

// Resolve expands the config root and lays out the standard paths under it.
func Resolve(root string) (*Workspace, error) {
	abs, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}
	return &Workspace{
		Root:        abs,
		ProfilePath: filepath.Join(abs, "profile.yml"),
		AuditDir:    filepath.Join(abs, "audit"),
		AuditDBPath: filepath.Join(abs, "audit", "claritysim.db"),
	}, nil
}

// EnsureDirs creates the config root and audit directory.
func (w *Workspace) EnsureDirs() error {
	if w == nil {
		return fmt.Errorf("workspace is nil")
	}
	for _, dir := range []string{w.Root, w.AuditDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure %s: %w", dir, err)
		}
	}
	return nil
}

// ResolvePath returns an absolute path, resolving relative paths from the
// config root and expanding a leading tilde.
func (w *Workspace) ResolvePath(path string) (string, error) {
	if w == nil {
		return "", fmt.Errorf("workspace is nil")
	}
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	expanded, err := expandHome(path)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(expanded) {
		return filepath.Clean(expanded), nil
	}
	return filepath.Abs(filepath.Join(w.Root, expanded))
}

func resolveRoot(root string) (string, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return "", fmt.Errorf("config root is required")
	}
	expanded, err := expandHome(root)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve config root: %w", err)
	}
	return abs, nil
}

func expandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:]), nil
	}
	return "", fmt.Errorf("unsupported home expansion: %s", path)
}
