// Package api is the REST client for the match backend. The WebSocket
// channel carries live event traffic; everything fetched or validated out
// of band goes through here.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/matchdesk/console/internal/flow"
	"github.com/matchdesk/console/internal/model"
)

// Client handles REST communication with the match backend: session
// hydration, substitution validation and the reset endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the match backend is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthcheck", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &model.TransportError{Op: "healthcheck", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// FetchMatch returns the authoritative match snapshot: status, clock
// anchors, accumulated seconds and rosters.
func (c *Client) FetchMatch(ctx context.Context, matchID string) (model.MatchSnapshot, error) {
	var snap model.MatchSnapshot
	err := c.getJSON(ctx, fmt.Sprintf("/api/v1/matches/%s", matchID), &snap)
	return snap, err
}

// FetchEvents returns the match's event list for timeline hydration.
func (c *Client) FetchEvents(ctx context.Context, matchID string) ([]model.MatchEvent, error) {
	var events []model.MatchEvent
	err := c.getJSON(ctx, fmt.Sprintf("/api/v1/matches/%s/events", matchID), &events)
	return events, err
}

// ValidateSubstitution asks the backend whether a substitution is legal.
// The flow controller blocks emission on an invalid verdict.
func (c *Client) ValidateSubstitution(ctx context.Context, teamID, playerOff, playerOn string, period int) (flow.SubstitutionVerdict, error) {
	body := map[string]any{
		"teamId":    teamID,
		"playerOff": playerOff,
		"playerOn":  playerOn,
		"period":    period,
	}

	var verdict flow.SubstitutionVerdict
	if err := c.postJSON(ctx, "/api/v1/substitutions/validate", body, &verdict); err != nil {
		return flow.SubstitutionVerdict{}, err
	}
	return verdict, nil
}

// ResetMatch clears the match server-side. The backend requires the
// confirmation text to match the match id exactly.
func (c *Client) ResetMatch(ctx context.Context, matchID, confirmation string) (model.MatchSnapshot, error) {
	body := map[string]any{
		"confirmation": confirmation,
	}

	var snap model.MatchSnapshot
	if err := c.postJSON(ctx, fmt.Sprintf("/api/v1/matches/%s/reset", matchID), body, &snap); err != nil {
		return model.MatchSnapshot{}, err
	}
	return snap, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &model.TransportError{Op: "GET " + path, Err: err}
	}
	defer resp.Body.Close()

	return decodeResponse(resp, path, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &model.TransportError{Op: "POST " + path, Err: err}
	}
	defer resp.Body.Close()

	return decodeResponse(resp, path, out)
}

// decodeResponse maps status codes onto the error taxonomy and decodes
// the payload. 422 carries field-level validation reasons.
func decodeResponse(resp *http.Response, path string, out any) error {
	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		var ve struct {
			Message string            `json:"message"`
			Fields  map[string]string `json:"fields"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&ve); err != nil {
			return &model.ValidationError{Message: fmt.Sprintf("request to %s rejected", path)}
		}
		return &model.ValidationError{Message: ve.Message, Fields: ve.Fields}
	case resp.StatusCode != http.StatusOK:
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
