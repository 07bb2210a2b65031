// file: internal/provider/withings/client.go

package withings

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"fitness-connect/internal/logger"
	"fitness-connect/internal/provider"
)

const providerID = "withings"

// Withings measure API constants
const (
	measurePath = "/measure"

	actionGetMeas   = "getmeas"
	measTypeWeight  = 1 // weight in kg, scaled by unit exponent
	categoryMeasure = 1 // real measurements, not user objectives
)

// Withings wraps API errors in a 200 response with a non-zero status field.
// These are the auth-related status codes.
const (
	statusOK = 0

	statusInvalidToken   = 401
	statusUnauthorized   = 100
	statusInvalidSession = 102
	statusTooManyCalls   = 601
)

const requestTimeout = 15 * time.Second

// Client fetches body measurements from the Withings API.
// It implements provider.MeasurementSource only; Withings is never a push
// target in this tool.
type Client struct {
	baseURL    string
	httpClient *http.Client
	lookback   time.Duration
	logger     *logger.Logger
}

// NewClient creates a Withings API client. baseURL is the API root
// (e.g. https://wbsapi.withings.net). A zero lookback fetches the latest
// measurement regardless of age; a positive lookback restricts the query to
// measurements updated within that window.
func NewClient(baseURL string, lookback time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		lookback:   lookback,
		logger:     log,
	}
}

type measureResponse struct {
	Status int         `json:"status"`
	Error  string      `json:"error"`
	Body   measureBody `json:"body"`
}

type measureBody struct {
	MeasureGrps []measureGroup `json:"measuregrps"`
}

type measureGroup struct {
	Date     int64          `json:"date"`
	Measures []measureValue `json:"measures"`
}

type measureValue struct {
	Value int64 `json:"value"`
	Type  int   `json:"type"`
	Unit  int   `json:"unit"` // decimal exponent: real value = Value * 10^Unit
}

// LatestMeasurement returns the most recent weight measurement.
func (c *Client) LatestMeasurement(ctx context.Context, accessToken string, kind provider.MetricKind) (*provider.Measurement, error) {
	if kind != provider.MetricWeight {
		return nil, provider.Unsupported(providerID, fmt.Sprintf("get latest %s", kind))
	}

	params := url.Values{}
	params.Set("action", actionGetMeas)
	params.Set("meastype", strconv.Itoa(measTypeWeight))
	params.Set("category", strconv.Itoa(categoryMeasure))
	if c.lookback > 0 {
		params.Set("lastupdate", strconv.FormatInt(time.Now().Add(-c.lookback).Unix(), 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+measurePath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build measure request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	c.logger.Debug("fetching measurements", "provider", providerID, "lookback", c.lookback)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, provider.NewTransportError(providerID, "get measurements", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, provider.NewRemoteError(providerID, "get measurements", resp.StatusCode,
			fmt.Errorf("unexpected HTTP status"))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.NewTransportError(providerID, "get measurements", err)
	}

	var mr measureResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		return nil, fmt.Errorf("failed to decode measure response: %w", err)
	}

	if mr.Status != statusOK {
		return nil, apiError(mr.Status, mr.Error)
	}

	return latestWeight(mr.Body.MeasureGrps)
}

// latestWeight picks the newest weight reading out of the measure groups
func latestWeight(groups []measureGroup) (*provider.Measurement, error) {
	var (
		newest    *measureValue
		newestAt  int64
		haveValue bool
	)

	for i := range groups {
		g := &groups[i]
		if haveValue && g.Date <= newestAt {
			continue
		}
		for j := range g.Measures {
			m := &g.Measures[j]
			if m.Type != measTypeWeight {
				continue
			}
			newest = m
			newestAt = g.Date
			haveValue = true
			break
		}
	}

	if !haveValue {
		return nil, provider.ErrNotAvailable
	}

	return &provider.Measurement{
		Provider:   providerID,
		Kind:       provider.MetricWeight,
		Value:      float64(newest.Value) * math.Pow10(newest.Unit),
		Unit:       "kg",
		ObservedAt: time.Unix(newestAt, 0).UTC(),
	}, nil
}

// apiError maps a Withings envelope status to the error taxonomy
func apiError(status int, message string) error {
	if message == "" {
		message = "withings API error"
	}
	err := fmt.Errorf("%s (withings status %d)", message, status)

	switch status {
	case statusInvalidToken, statusUnauthorized, statusInvalidSession:
		return provider.NewRemoteError(providerID, "get measurements", http.StatusUnauthorized, err)
	case statusTooManyCalls:
		return provider.NewRemoteError(providerID, "get measurements", http.StatusTooManyRequests, err)
	default:
		return provider.NewRemoteError(providerID, "get measurements", http.StatusBadRequest, err)
	}
}
