// file: internal/lifecycle/lifecycle.go

package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fitness-connect/internal/logger"
)

// RunWithReload runs an application with automatic reload on SIGHUP.
// It handles the complete lifecycle: initial startup, graceful shutdown on
// SIGTERM/SIGINT, reload on SIGHUP, and error propagation.
//
// createApp is called on initial startup and on each reload so the fresh
// instance picks up configuration changes. If createApp fails, the process
// exits with the error.
func RunWithReload(createApp func() (Application, error), log *logger.Logger) error {
	reloadCount := 0

	for {
		if reloadCount > 0 {
			log.Info("reloading", "reloadCount", reloadCount)
		}

		shutdownSig := make(chan os.Signal, 1)
		reloadSig := make(chan os.Signal, 1)
		signal.Notify(shutdownSig, os.Interrupt, syscall.SIGTERM)
		signal.Notify(reloadSig, syscall.SIGHUP)

		application, err := createApp()
		if err != nil {
			signal.Stop(shutdownSig)
			signal.Stop(reloadSig)
			if reloadCount > 0 {
				log.Error("failed to reload, process will exit",
					"reloadCount", reloadCount, "error", err)
			}
			return fmt.Errorf("failed to create application: %w", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() {
			errCh <- application.Run(ctx)
		}()

		var shouldReload bool
		var runErr error

		select {
		case sig := <-shutdownSig:
			log.Info("shutdown signal received", "signal", sig)

		case <-reloadSig:
			log.Info("SIGHUP received, reloading configuration")
			shouldReload = true
			reloadCount++

		case runErr = <-errCh:
			if runErr != nil {
				log.Error("application stopped with error", "error", runErr)
			}
		}

		cancel()
		signal.Stop(shutdownSig)
		signal.Stop(reloadSig)

		closeStart := time.Now()
		if closeErr := application.Close(); closeErr != nil {
			log.Error("error during application close",
				"error", closeErr, "duration", time.Since(closeStart))
		} else {
			log.Debug("application closed", "duration", time.Since(closeStart))
		}

		if !shouldReload {
			log.Info("shutdown complete")
			return runErr
		}
	}
}
