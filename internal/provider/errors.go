// file: internal/provider/errors.go

package provider

import (
	"errors"
	"fmt"
)

// ErrNotAvailable indicates the source has no measurement to sync.
// This is a normal "nothing to do" condition, not a failure.
var ErrNotAvailable = errors.New("no measurement available")

// RemoteError describes a failed provider API operation, classified as
// Transient (safe to retry) or Permanent (not retried within a sync run).
type RemoteError struct {
	Provider   string
	Op         string
	StatusCode int // 0 when the request never produced a response
	Transient  bool
	Err        error
}

func (e *RemoteError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s failed (%s, status %d): %v", e.Provider, e.Op, kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s failed (%s): %v", e.Provider, e.Op, kind, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// NewRemoteError builds a RemoteError from an HTTP status, classifying
// 429 and 5xx as transient and everything else as permanent.
func NewRemoteError(providerID, op string, statusCode int, err error) *RemoteError {
	return &RemoteError{
		Provider:   providerID,
		Op:         op,
		StatusCode: statusCode,
		Transient:  transientStatus(statusCode),
		Err:        err,
	}
}

// NewTransportError wraps a network-level failure, which is always
// considered transient.
func NewTransportError(providerID, op string, err error) *RemoteError {
	return &RemoteError{
		Provider:  providerID,
		Op:        op,
		Transient: true,
		Err:       err,
	}
}

// Unsupported reports that a provider does not implement an operation.
// Classified permanent so callers never retry it.
func Unsupported(providerID, op string) *RemoteError {
	return &RemoteError{
		Provider: providerID,
		Op:       op,
		Err:      fmt.Errorf("operation not supported"),
	}
}

// IsTransient reports whether err is a retryable remote error
func IsTransient(err error) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Transient
}

func transientStatus(statusCode int) bool {
	return statusCode == 429 || statusCode >= 500
}
