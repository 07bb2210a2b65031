// file: internal/provider/strava/client.go

package strava

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"fitness-connect/internal/logger"
	"fitness-connect/internal/provider"
)

const providerID = "strava"

const requestTimeout = 15 * time.Second

// Client talks to the Strava v3 API. It implements
// provider.MeasurementTarget and provider.AthleteService; Strava is never a
// measurement source in this tool.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a Strava API client. baseURL is the API root
// (e.g. https://www.strava.com/api/v3).
func NewClient(baseURL string, log *logger.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     log,
	}
}

// PushMeasurement updates the athlete's weight on Strava.
// Only weight in kilograms is supported.
func (c *Client) PushMeasurement(ctx context.Context, accessToken string, m *provider.Measurement) error {
	if m == nil {
		return fmt.Errorf("measurement is nil")
	}
	if m.Kind != provider.MetricWeight {
		return provider.Unsupported(providerID, fmt.Sprintf("push %s", m.Kind))
	}
	if m.Unit != "kg" {
		return provider.NewRemoteError(providerID, "push weight", http.StatusBadRequest,
			fmt.Errorf("unsupported unit %q, want kg", m.Unit))
	}

	form := url.Values{}
	form.Set("weight", strconv.FormatFloat(m.Value, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/athlete",
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build weight update request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.logger.Debug("pushing weight", "provider", providerID, "weightKg", m.Value)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.NewTransportError(providerID, "push weight", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return provider.NewRemoteError(providerID, "push weight", resp.StatusCode,
			fmt.Errorf("weight update rejected"))
	}

	return nil
}

// AthleteProfile fetches the authenticated athlete's profile
func (c *Client) AthleteProfile(ctx context.Context, accessToken string) (*provider.AthleteProfile, error) {
	var p provider.AthleteProfile
	if err := c.getJSON(ctx, accessToken, "/athlete", "get athlete profile", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// AthleteStats fetches lifetime statistics for the authenticated athlete.
// Strava keys stats by athlete ID, so this resolves the profile first.
func (c *Client) AthleteStats(ctx context.Context, accessToken string) (*provider.AthleteStats, error) {
	p, err := c.AthleteProfile(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	var s provider.AthleteStats
	path := fmt.Sprintf("/athletes/%d/stats", p.ID)
	if err := c.getJSON(ctx, accessToken, path, "get athlete stats", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// getJSON performs an authenticated GET and decodes the JSON response
func (c *Client) getJSON(ctx context.Context, accessToken, path, op string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.NewTransportError(providerID, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return provider.NewRemoteError(providerID, op, resp.StatusCode,
			fmt.Errorf("unexpected HTTP status"))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return provider.NewTransportError(providerID, op, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", op, err)
	}

	return nil
}
