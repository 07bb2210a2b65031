// file: cmd/fitness-connect/main.go
package main

import (
	"os"

	"github.com/spf13/cobra"

	"fitness-connect/cmd/fitness-connect/cmd"
)

var rootCmd = &cobra.Command{
	Use:   "fitness-connect",
	Short: "Sync fitness measurements between providers",
	Long: `fitness-connect pulls the latest body-weight measurement from a
body-metrics provider (Withings) and pushes it to an activity-tracking
provider (Strava), handling OAuth2 registration and token refresh for both.`,
	// If a subcommand is not provided, default to showing help.
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	cmd.AddCommands(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra prints the error, so we just need to exit
		os.Exit(1)
	}
}
