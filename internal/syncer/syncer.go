// file: internal/syncer/syncer.go

package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fitness-connect/internal/auth"
	"fitness-connect/internal/credential"
	"fitness-connect/internal/logger"
	"fitness-connect/internal/metrics"
	"fitness-connect/internal/provider"
)

// Outcome is the terminal state of one sync run
type Outcome string

const (
	OutcomeSynced            Outcome = "synced"
	OutcomeUpToDate          Outcome = "up-to-date"
	OutcomeSourceUnavailable Outcome = "source-unavailable"
	OutcomeAuthFailure       Outcome = "auth-failure"
	OutcomePushFailed        Outcome = "push-failed"
)

// Result reports the terminal outcome of a sync run. Provider names the
// offending provider for auth failures; Err carries the underlying error
// for the failure outcomes.
type Result struct {
	Outcome     Outcome
	Measurement *provider.Measurement
	Provider    string
	Err         error
}

// ExitCode maps a result to the process exit code contract: success for
// Synced/UpToDate, distinct non-zero codes for the failure outcomes so
// scripted callers can branch.
func (r *Result) ExitCode() int {
	switch r.Outcome {
	case OutcomeSynced, OutcomeUpToDate:
		return 0
	case OutcomeAuthFailure:
		return 2
	case OutcomePushFailed:
		return 3
	case OutcomeSourceUnavailable:
		return 4
	default:
		return 1
	}
}

// CredentialProvider yields a valid credential for a provider, refreshing
// it first when needed. Satisfied by *auth.Authenticator.
type CredentialProvider interface {
	EnsureValid(ctx context.Context, providerID string) (*credential.Credential, error)
}

// Config wires one orchestrator run
type Config struct {
	SourceID string
	TargetID string
	Source   provider.MeasurementSource
	Target   provider.MeasurementTarget
	Kind     provider.MetricKind

	MaxAttempts    int
	InitialBackoff time.Duration
}

// Orchestrator runs the pull-then-push sync state machine: acquire
// credentials, fetch the latest source measurement, short-circuit on the
// marker, push to the target with bounded retries, then commit the marker.
type Orchestrator struct {
	cfg     Config
	creds   CredentialProvider
	markers MarkerStore
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// New creates an orchestrator. metrics may be nil.
func New(cfg Config, creds CredentialProvider, markers MarkerStore, log *logger.Logger, m *metrics.Metrics) *Orchestrator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	return &Orchestrator{
		cfg:     cfg,
		creds:   creds,
		markers: markers,
		logger:  log,
		metrics: m,
	}
}

// Run performs a single sync attempt and reports its terminal outcome.
func (o *Orchestrator) Run(ctx context.Context) *Result {
	start := time.Now()
	res := o.run(ctx)

	o.metrics.IncSync(string(res.Outcome))
	o.metrics.ObserveSyncDuration(string(res.Outcome), time.Since(start).Seconds())
	if res.Outcome == OutcomeSynced || res.Outcome == OutcomeUpToDate {
		o.metrics.MarkSyncSuccess(time.Now())
	}

	return res
}

func (o *Orchestrator) run(ctx context.Context) *Result {
	// AcquireCredentials: both sides must hold valid tokens before any data
	// call is made. A dead target must not cost source API quota, so the
	// target credential is checked first.
	targetCred, err := o.creds.EnsureValid(ctx, o.cfg.TargetID)
	if err != nil {
		return o.authFailure(o.cfg.TargetID, err)
	}

	sourceCred, err := o.creds.EnsureValid(ctx, o.cfg.SourceID)
	if err != nil {
		return o.authFailure(o.cfg.SourceID, err)
	}

	// FetchSource
	meas, err := o.cfg.Source.LatestMeasurement(ctx, sourceCred.AccessToken, o.cfg.Kind)
	if err != nil {
		if errors.Is(err, provider.ErrNotAvailable) {
			o.logger.Info("nothing to sync", "source", o.cfg.SourceID, "metric", o.cfg.Kind)
			return &Result{Outcome: OutcomeSourceUnavailable, Provider: o.cfg.SourceID}
		}
		o.logger.Error("failed to fetch source measurement",
			"source", o.cfg.SourceID, "metric", o.cfg.Kind, "error", err)
		return &Result{Outcome: OutcomeSourceUnavailable, Provider: o.cfg.SourceID, Err: err}
	}

	// CheckMarker
	marker, err := o.markers.Load(ctx, o.cfg.Kind)
	if err != nil {
		// The marker is a dedup optimization; a corrupt or unreadable one
		// must not block the sync. Proceed as if no sync was recorded.
		o.logger.Warn("failed to load sync marker, proceeding without it",
			"metric", o.cfg.Kind, "error", err)
		marker = &Marker{Kind: o.cfg.Kind}
	}

	if marker.Covers(meas) {
		o.logger.Info("already up to date",
			"metric", o.cfg.Kind,
			"lastSyncedAt", marker.LastSyncedAt,
			"lastSyncedValue", marker.LastSyncedValue)
		return &Result{Outcome: OutcomeUpToDate, Measurement: meas}
	}

	// PushTarget
	if err := o.pushWithRetry(ctx, targetCred, meas); err != nil {
		o.logger.Error("push failed",
			"target", o.cfg.TargetID, "metric", o.cfg.Kind, "error", err)
		return &Result{Outcome: OutcomePushFailed, Provider: o.cfg.TargetID, Err: err}
	}

	// CommitMarker: only after the confirmed push. A failed commit leaves
	// at-least-once semantics intact (the next run re-pushes), so it does
	// not fail the run.
	next := &Marker{Kind: o.cfg.Kind, LastSyncedAt: meas.ObservedAt, LastSyncedValue: meas.Value}
	if err := o.markers.Save(ctx, next); err != nil {
		o.logger.Error("failed to commit sync marker", "metric", o.cfg.Kind, "error", err)
	}

	o.logger.Info("measurement synced",
		"source", o.cfg.SourceID,
		"target", o.cfg.TargetID,
		"metric", o.cfg.Kind,
		"value", meas.Value,
		"unit", meas.Unit,
		"observedAt", meas.ObservedAt)

	return &Result{Outcome: OutcomeSynced, Measurement: meas}
}

// pushWithRetry retries transient push failures with bounded exponential
// backoff. Permanent errors surface immediately.
func (o *Orchestrator) pushWithRetry(ctx context.Context, cred *credential.Credential, meas *provider.Measurement) error {
	backoff := o.cfg.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		lastErr = o.cfg.Target.PushMeasurement(ctx, cred.AccessToken, meas)
		if lastErr == nil {
			return nil
		}
		if !provider.IsTransient(lastErr) {
			return lastErr
		}
		if attempt == o.cfg.MaxAttempts {
			break
		}

		o.logger.Warn("transient push failure, retrying",
			"target", o.cfg.TargetID,
			"attempt", attempt,
			"backoff", backoff,
			"error", lastErr)
		o.metrics.IncPushRetry()

		select {
		case <-ctx.Done():
			return fmt.Errorf("push cancelled: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return fmt.Errorf("push failed after %d attempts: %w", o.cfg.MaxAttempts, lastErr)
}

// authFailure classifies credential acquisition errors
func (o *Orchestrator) authFailure(providerID string, err error) *Result {
	switch {
	case errors.Is(err, credential.ErrNotFound):
		o.logger.Error("provider is not registered",
			"provider", providerID,
			"hint", fmt.Sprintf("run 'fitness-connect register --provider %s'", providerID))
	default:
		var expired *auth.AuthExpiredError
		if errors.As(err, &expired) {
			o.logger.Error("provider authorization expired, re-registration required",
				"provider", providerID)
		} else {
			o.logger.Error("failed to acquire credentials", "provider", providerID, "error", err)
		}
	}
	return &Result{Outcome: OutcomeAuthFailure, Provider: providerID, Err: err}
}
