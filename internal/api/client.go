package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a typed REST client for the simulation endpoints of the
// monitoring backend.
type Client struct {
	BaseURL string
	Token   string

	HTTPClient *http.Client
}

// New returns a Client for the given backend base URL.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// GetScenarioCatalog returns the available baseline world presets.
func (c *Client) GetScenarioCatalog(ctx context.Context) ([]ScenarioTemplate, error) {
	var out []ScenarioTemplate
	if err := c.do(ctx, http.MethodGet, "/api/sim/scenarios", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetInterventionLibrary returns the available intervention templates.
func (c *Client) GetInterventionLibrary(ctx context.Context) ([]InterventionTemplate, error) {
	var out []InterventionTemplate
	if err := c.do(ctx, http.MethodGet, "/api/sim/templates", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSimPlan returns the baseline plan for a business.
func (c *Client) GetSimPlan(ctx context.Context, businessID string) (*BaselinePlan, error) {
	var out BaselinePlan
	if err := c.do(ctx, http.MethodGet, c.businessPath(businessID, "plan"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PutSimPlan saves the baseline plan and returns the server's copy.
func (c *Client) PutSimPlan(ctx context.Context, businessID string, update PlanUpdate) (*BaselinePlan, error) {
	var out BaselinePlan
	if err := c.do(ctx, http.MethodPut, c.businessPath(businessID, "plan"), update, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSimInterventions returns the persisted interventions for a business.
func (c *Client) ListSimInterventions(ctx context.Context, businessID string) ([]Intervention, error) {
	var out []Intervention
	if err := c.do(ctx, http.MethodGet, c.businessPath(businessID, "interventions"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSimIntervention creates a new intervention and returns the stored record.
func (c *Client) CreateSimIntervention(ctx context.Context, businessID string, payload InterventionUpdate) (*Intervention, error) {
	var out Intervention
	if err := c.do(ctx, http.MethodPost, c.businessPath(businessID, "interventions"), payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSimIntervention saves changes to an existing intervention.
func (c *Client) UpdateSimIntervention(ctx context.Context, businessID, id string, patch InterventionUpdate) (*Intervention, error) {
	var out Intervention
	path := c.businessPath(businessID, "interventions") + "/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodPut, path, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteSimIntervention removes an intervention permanently.
func (c *Client) DeleteSimIntervention(ctx context.Context, businessID, id string) error {
	path := c.businessPath(businessID, "interventions") + "/" + url.PathEscape(id)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// GenerateSimEvents asks the synthesis service to (re)produce history.
func (c *Client) GenerateSimEvents(ctx context.Context, businessID string, req GenerateRequest) (*GenerateResult, error) {
	var out GenerateResult
	if err := c.do(ctx, http.MethodPost, c.businessPath(businessID, "generate"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSimTruth returns the read-only audit trail of applied history.
func (c *Client) GetSimTruth(ctx context.Context, businessID string) ([]TruthEvent, error) {
	var out []TruthEvent
	if err := c.do(ctx, http.MethodGet, c.businessPath(businessID, "truth"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) businessPath(businessID, suffix string) string {
	return "/api/businesses/" + url.PathEscape(businessID) + "/sim/" + suffix
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: %s", method, path, errorText(resp))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorText pulls a usable message out of an error response, preferring the
// backend's {"error": "..."} shape over raw status text.
func errorText(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(data) == 0 {
		return resp.Status
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Error != "" {
			return fmt.Sprintf("%s: %s", resp.Status, payload.Error)
		}
		if payload.Message != "" {
			return fmt.Sprintf("%s: %s", resp.Status, payload.Message)
		}
	}
	text := strings.TrimSpace(string(data))
	if len(text) > 200 {
		text = text[:200]
	}
	if text == "" {
		return resp.Status
	}
	return fmt.Sprintf("%s: %s", resp.Status, text)
}
