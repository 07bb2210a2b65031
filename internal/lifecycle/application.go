// file: internal/lifecycle/application.go

// Package lifecycle provides lifecycle management for the watch daemon:
// graceful shutdown on SIGINT/SIGTERM and configuration reload via SIGHUP.
package lifecycle

import "context"

// Application is a runnable long-lived process that supports graceful
// shutdown and reload. The watch daemon implements this interface.
type Application interface {
	// Run starts the application and blocks until the context is
	// cancelled. Normal shutdown returns nil; a fatal error ends the
	// process.
	Run(ctx context.Context) error

	// Close gracefully shuts down the application: stops the scheduler,
	// finishes any in-flight sync run, shuts down the metrics server, and
	// drains the event publisher. Idempotent and safe to call repeatedly.
	Close() error
}
