// file: internal/provider/withings/client_test.go

package withings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fitness-connect/internal/logger"
	"fitness-connect/internal/provider"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestLatestMeasurementPicksNewestGroup(t *testing.T) {
	older := time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC).Unix()
	newer := time.Date(2024, 3, 2, 7, 0, 0, 0, time.UTC).Unix()

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token-123" {
			t.Errorf("Authorization header = %q", got)
		}
		q := r.URL.Query()
		if q.Get("action") != "getmeas" || q.Get("meastype") != "1" || q.Get("category") != "1" {
			t.Errorf("unexpected query params: %v", q)
		}

		fmt.Fprintf(w, `{
			"status": 0,
			"body": {
				"measuregrps": [
					{"date": %d, "measures": [{"value": 72400, "type": 1, "unit": -3}]},
					{"date": %d, "measures": [{"value": 73100, "type": 1, "unit": -3}]}
				]
			}
		}`, newer, older)
	})

	c := NewClient(srv.URL, 0, logger.NewNopLogger())
	m, err := c.LatestMeasurement(context.Background(), "token-123", provider.MetricWeight)
	if err != nil {
		t.Fatalf("LatestMeasurement() failed: %v", err)
	}

	if m.Value != 72.4 {
		t.Errorf("value = %v, want 72.4", m.Value)
	}
	if m.Unit != "kg" {
		t.Errorf("unit = %q, want kg", m.Unit)
	}
	if m.ObservedAt.Unix() != newer {
		t.Errorf("observedAt = %v, want the newer group", m.ObservedAt)
	}
	if m.Provider != "withings" || m.Kind != provider.MetricWeight {
		t.Errorf("identity = %s/%s", m.Provider, m.Kind)
	}
}

func TestLatestMeasurementSkipsNonWeightMeasures(t *testing.T) {
	at := time.Date(2024, 3, 2, 7, 0, 0, 0, time.UTC).Unix()

	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		// type 6 is body fat percentage; only type 1 counts
		fmt.Fprintf(w, `{
			"status": 0,
			"body": {
				"measuregrps": [
					{"date": %d, "measures": [
						{"value": 213, "type": 6, "unit": -1},
						{"value": 815, "type": 1, "unit": -1}
					]}
				]
			}
		}`, at)
	})

	c := NewClient(srv.URL, 0, logger.NewNopLogger())
	m, err := c.LatestMeasurement(context.Background(), "t", provider.MetricWeight)
	if err != nil {
		t.Fatalf("LatestMeasurement() failed: %v", err)
	}
	if m.Value != 81.5 {
		t.Errorf("value = %v, want 81.5", m.Value)
	}
}

func TestLatestMeasurementNoData(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": 0, "body": {"measuregrps": []}}`)
	})

	c := NewClient(srv.URL, 0, logger.NewNopLogger())
	_, err := c.LatestMeasurement(context.Background(), "t", provider.MetricWeight)
	if !errors.Is(err, provider.ErrNotAvailable) {
		t.Errorf("error = %v, want ErrNotAvailable", err)
	}
}

func TestLatestMeasurementLookbackParam(t *testing.T) {
	var gotLastUpdate string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotLastUpdate = r.URL.Query().Get("lastupdate")
		fmt.Fprint(w, `{"status": 0, "body": {"measuregrps": []}}`)
	})

	c := NewClient(srv.URL, 24*time.Hour, logger.NewNopLogger())
	c.LatestMeasurement(context.Background(), "t", provider.MetricWeight)

	if gotLastUpdate == "" {
		t.Errorf("lastupdate param not sent for a non-zero lookback")
	}
}

func TestLatestMeasurementEnvelopeErrors(t *testing.T) {
	tests := []struct {
		name           string
		withingsStatus int
		wantStatus     int
		wantTransient  bool
	}{
		{name: "invalid token", withingsStatus: 401, wantStatus: 401, wantTransient: false},
		{name: "unauthorized", withingsStatus: 100, wantStatus: 401, wantTransient: false},
		{name: "too many calls", withingsStatus: 601, wantStatus: 429, wantTransient: true},
		{name: "other error", withingsStatus: 503, wantStatus: 400, wantTransient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintf(w, `{"status": %d, "error": "withings says no"}`, tt.withingsStatus)
			})

			c := NewClient(srv.URL, 0, logger.NewNopLogger())
			_, err := c.LatestMeasurement(context.Background(), "t", provider.MetricWeight)

			var re *provider.RemoteError
			if !errors.As(err, &re) {
				t.Fatalf("error = %v, want RemoteError", err)
			}
			if re.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", re.StatusCode, tt.wantStatus)
			}
			if re.Transient != tt.wantTransient {
				t.Errorf("transient = %v, want %v", re.Transient, tt.wantTransient)
			}
		})
	}
}

func TestLatestMeasurementHTTPError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	c := NewClient(srv.URL, 0, logger.NewNopLogger())
	_, err := c.LatestMeasurement(context.Background(), "t", provider.MetricWeight)

	var re *provider.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("error = %v, want RemoteError", err)
	}
	if !re.Transient {
		t.Errorf("HTTP 502 must be transient")
	}
}

func TestLatestMeasurementUnsupportedKind(t *testing.T) {
	c := NewClient("http://unused", 0, logger.NewNopLogger())
	_, err := c.LatestMeasurement(context.Background(), "t", provider.MetricKind("heartrate"))
	if err == nil {
		t.Fatalf("unsupported metric kind accepted")
	}
	if provider.IsTransient(err) {
		t.Errorf("unsupported kind must be a permanent error")
	}
}
