// file: cmd/fitness-connect/cmd/sync.go
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fitness-connect/internal/events"
	"fitness-connect/internal/syncer"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync: pull the latest measurement and push it to the target",
	Long: `The sync command performs a single pull-then-push run. It refreshes
expired tokens on both providers, fetches the latest source measurement,
skips the push when nothing changed since the last sync, and otherwise
pushes the value to the target and records the new sync marker.

Exit codes: 0 synced or already up to date, 2 authorization failure,
3 push failed, 4 source unavailable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lookback, _ := cmd.Flags().GetDuration("lookback")

		rt, err := newRuntime(nil, nil)
		if err != nil {
			return err
		}
		defer rt.logger.Sync()

		if lookback > 0 {
			rt.cfg.Sync.Lookback = lookback
		}

		orch, err := rt.orchestrator()
		if err != nil {
			return err
		}

		res := orch.Run(cmd.Context())

		if rt.cfg.Events.Enabled {
			if pub, err := events.NewPublisher(&rt.cfg.Events, rt.logger); err != nil {
				rt.logger.Warn("event publisher unavailable", "error", err)
			} else {
				pub.PublishResult(res)
				pub.Close()
			}
		}

		printResult(res)

		if code := res.ExitCode(); code != 0 {
			rt.logger.Sync()
			os.Exit(code)
		}
		return nil
	},
}

// printResult writes the user-facing outcome line
func printResult(res *syncer.Result) {
	switch res.Outcome {
	case syncer.OutcomeSynced:
		m := res.Measurement
		fmt.Printf("Synced %s: %.1f %s (observed %s)\n",
			m.Kind, m.Value, m.Unit, m.ObservedAt.Local().Format(time.RFC3339))
	case syncer.OutcomeUpToDate:
		fmt.Println("Already up to date, nothing pushed.")
	case syncer.OutcomeSourceUnavailable:
		if res.Err == nil {
			fmt.Println("Nothing to sync: the source has no measurement for the period.")
		} else {
			fmt.Fprintf(os.Stderr, "Fetch from %s failed: %v\n", res.Provider, res.Err)
		}
	case syncer.OutcomeAuthFailure:
		fmt.Fprintf(os.Stderr, "Authorization failed for %s: %v\n", res.Provider, res.Err)
	case syncer.OutcomePushFailed:
		fmt.Fprintf(os.Stderr, "Push to %s failed: %v\n", res.Provider, res.Err)
	}
}

func init() {
	syncCmd.Flags().Duration("lookback", 0, "Only consider source measurements updated within this window (0 = latest ever)")
}
