// file: internal/provider/types.go

package provider

import "time"

// MetricKind identifies the kind of measurement being synced
type MetricKind string

const (
	// MetricWeight is a body weight reading in kilograms
	MetricWeight MetricKind = "weight"
)

// Measurement is a single timestamped metric reading fetched from a
// provider. It is immutable once fetched; the provider remains the source
// of truth.
type Measurement struct {
	Provider   string     `json:"provider"`
	Kind       MetricKind `json:"kind"`
	Value      float64    `json:"value"`
	Unit       string     `json:"unit"`
	ObservedAt time.Time  `json:"observedAt"`
}

// AthleteProfile is a read-only projection of the athlete's profile on the
// activity-tracking provider. Fetched on demand for display, never persisted.
type AthleteProfile struct {
	ID        int64   `json:"id"`
	Username  string  `json:"username"`
	FirstName string  `json:"firstname"`
	LastName  string  `json:"lastname"`
	City      string  `json:"city"`
	Country   string  `json:"country"`
	Weight    float64 `json:"weight"`
	FTP       int     `json:"ftp"`
}

// ActivityTotals aggregates activity statistics for one sport
type ActivityTotals struct {
	Count         int64   `json:"count"`
	Distance      float64 `json:"distance"`
	MovingTime    float64 `json:"moving_time"`
	ElapsedTime   float64 `json:"elapsed_time"`
	ElevationGain float64 `json:"elevation_gain"`
}

// AthleteStats is a read-only projection of the athlete's lifetime stats
type AthleteStats struct {
	BiggestRideDistance float64        `json:"biggest_ride_distance"`
	AllRideTotals       ActivityTotals `json:"all_ride_totals"`
	AllRunTotals        ActivityTotals `json:"all_run_totals"`
	AllSwimTotals       ActivityTotals `json:"all_swim_totals"`
	YTDRideTotals       ActivityTotals `json:"ytd_ride_totals"`
	YTDRunTotals        ActivityTotals `json:"ytd_run_totals"`
}
