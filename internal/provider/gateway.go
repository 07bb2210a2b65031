// file: internal/provider/gateway.go

package provider

import "context"

// Provider clients implement a subset of the capability interfaces below.
// Every operation takes the access token explicitly: token lifecycle is the
// authenticator's job, data access is the gateway's, and the two never mix.

// MeasurementSource fetches the latest measurement of a kind.
// Returns ErrNotAvailable when the provider holds no data for the kind.
type MeasurementSource interface {
	LatestMeasurement(ctx context.Context, accessToken string, kind MetricKind) (*Measurement, error)
}

// MeasurementTarget accepts a measurement push
type MeasurementTarget interface {
	PushMeasurement(ctx context.Context, accessToken string, m *Measurement) error
}

// AthleteService exposes read-only athlete projections
type AthleteService interface {
	AthleteProfile(ctx context.Context, accessToken string) (*AthleteProfile, error)
	AthleteStats(ctx context.Context, accessToken string) (*AthleteStats, error)
}

// AsSource resolves the measurement-source capability of a client,
// returning a permanent unsupported-operation error when absent.
func AsSource(providerID string, client any) (MeasurementSource, error) {
	if s, ok := client.(MeasurementSource); ok {
		return s, nil
	}
	return nil, Unsupported(providerID, "get latest measurement")
}

// AsTarget resolves the measurement-target capability of a client
func AsTarget(providerID string, client any) (MeasurementTarget, error) {
	if t, ok := client.(MeasurementTarget); ok {
		return t, nil
	}
	return nil, Unsupported(providerID, "push measurement")
}

// AsAthleteService resolves the athlete read capability of a client
func AsAthleteService(providerID string, client any) (AthleteService, error) {
	if a, ok := client.(AthleteService); ok {
		return a, nil
	}
	return nil, Unsupported(providerID, "get athlete data")
}
