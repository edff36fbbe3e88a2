// Package profile loads the operator's connection profile: which monitoring
// backend to talk to, which business to operate on by default, and where the
// audit trail lives. A YAML file provides the base values and environment
// variables override them.
package profile

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type rawProfile struct {
	BackendURL string `yaml:"backend_url"`
	Token      string `yaml:"token"`
	BusinessID string `yaml:"business_id"`
	AuditDB    string `yaml:"audit_db"`
}

type envOverrides struct {
	BackendURL string `env:"CLARITYSIM_BACKEND_URL"`
	Token      string `env:"CLARITYSIM_TOKEN"`
	BusinessID string `env:"CLARITYSIM_BUSINESS"`
	AuditDB    string `env:"CLARITYSIM_AUDIT_DB"`
}

// Profile is the resolved operator configuration.
type Profile struct {
	BackendURL string
	Token      string
	BusinessID string
	AuditDB    string
}

// ValidationError captures a single field-specific profile problem.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("profile: %s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates multiple profile problems.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "\n")
}

// Load reads the profile file (when present), applies environment overrides,
// and validates the result. A missing file is fine as long as the
// environment supplies the required values.
func Load(path string) (*Profile, error) {
	var raw rawProfile
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read profile %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse profile %s: %w", path, err)
		}
	}

	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if overrides.BackendURL != "" {
		raw.BackendURL = overrides.BackendURL
	}
	if overrides.Token != "" {
		raw.Token = overrides.Token
	}
	if overrides.BusinessID != "" {
		raw.BusinessID = overrides.BusinessID
	}
	if overrides.AuditDB != "" {
		raw.AuditDB = overrides.AuditDB
	}

	return validate(raw)
}

func validate(raw rawProfile) (*Profile, error) {
	var errs ValidationErrors

	backendURL := strings.TrimSpace(raw.BackendURL)
	if backendURL == "" {
		errs = append(errs, ValidationError{
			Field:   "backend_url",
			Message: "backend URL is required (set backend_url or CLARITYSIM_BACKEND_URL)",
		})
	} else if u, err := url.Parse(backendURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "backend_url",
			Message: fmt.Sprintf("invalid URL %q", backendURL),
		})
	}

	if len(errs) > 0 {
		return nil, errs
	}

	return &Profile{
		BackendURL: strings.TrimRight(backendURL, "/"),
		Token:      strings.TrimSpace(raw.Token),
		BusinessID: strings.TrimSpace(raw.BusinessID),
		AuditDB:    strings.TrimSpace(raw.AuditDB),
	}, nil
}
