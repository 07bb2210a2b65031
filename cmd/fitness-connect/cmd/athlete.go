// file: cmd/fitness-connect/cmd/athlete.go
package cmd

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"fitness-connect/internal/provider"
)

var athleteCmd = &cobra.Command{
	Use:   "athlete",
	Short: "Display athlete data from the target provider",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var athleteProfileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the authenticated athlete's profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(nil, nil)
		if err != nil {
			return err
		}
		defer rt.logger.Sync()

		svc, targetID, err := rt.athleteService()
		if err != nil {
			return err
		}

		cred, err := rt.auth.EnsureValid(cmd.Context(), targetID)
		if err != nil {
			return err
		}

		profile, err := svc.AthleteProfile(cmd.Context(), cred.AccessToken)
		if err != nil {
			return err
		}

		printProfile(profile)
		return nil
	},
}

var athleteStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the authenticated athlete's lifetime statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(nil, nil)
		if err != nil {
			return err
		}
		defer rt.logger.Sync()

		svc, targetID, err := rt.athleteService()
		if err != nil {
			return err
		}

		cred, err := rt.auth.EnsureValid(cmd.Context(), targetID)
		if err != nil {
			return err
		}

		stats, err := svc.AthleteStats(cmd.Context(), cred.AccessToken)
		if err != nil {
			return err
		}

		printStats(stats)
		return nil
	},
}

var athleteSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show profile and statistics together",
	Long: `The summary command fetches the athlete profile and statistics
concurrently (the two reads are independent) and displays them together.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(nil, nil)
		if err != nil {
			return err
		}
		defer rt.logger.Sync()

		svc, targetID, err := rt.athleteService()
		if err != nil {
			return err
		}

		cred, err := rt.auth.EnsureValid(cmd.Context(), targetID)
		if err != nil {
			return err
		}

		profile, stats, err := fetchConcurrently(cmd.Context(), svc, cred.AccessToken)
		if err != nil {
			return err
		}

		printProfile(profile)
		fmt.Println()
		printStats(stats)
		return nil
	},
}

// fetchConcurrently runs the two independent reads in parallel and
// collects both results before returning.
func fetchConcurrently(ctx context.Context, svc provider.AthleteService, token string) (*provider.AthleteProfile, *provider.AthleteStats, error) {
	var (
		wg         sync.WaitGroup
		profile    *provider.AthleteProfile
		stats      *provider.AthleteStats
		profileErr error
		statsErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		profile, profileErr = svc.AthleteProfile(ctx, token)
	}()
	go func() {
		defer wg.Done()
		stats, statsErr = svc.AthleteStats(ctx, token)
	}()
	wg.Wait()

	if profileErr != nil {
		return nil, nil, profileErr
	}
	if statsErr != nil {
		return nil, nil, statsErr
	}
	return profile, stats, nil
}

func printProfile(p *provider.AthleteProfile) {
	fmt.Printf("Athlete: %s %s (@%s)\n", p.FirstName, p.LastName, p.Username)
	if p.City != "" || p.Country != "" {
		fmt.Printf("Location: %s, %s\n", p.City, p.Country)
	}
	if p.Weight > 0 {
		fmt.Printf("Weight: %.1f kg\n", p.Weight)
	}
	if p.FTP > 0 {
		fmt.Printf("FTP: %d W\n", p.FTP)
	}
}

func printStats(s *provider.AthleteStats) {
	fmt.Println("Lifetime totals:")
	printTotals("Rides", &s.AllRideTotals)
	printTotals("Runs", &s.AllRunTotals)
	printTotals("Swims", &s.AllSwimTotals)
	fmt.Println("Year to date:")
	printTotals("Rides", &s.YTDRideTotals)
	printTotals("Runs", &s.YTDRunTotals)
}

func printTotals(label string, t *provider.ActivityTotals) {
	fmt.Printf("  %-6s %5d activities, %8.1f km, %6.1f h moving\n",
		label, t.Count, t.Distance/1000, t.MovingTime/3600)
}

func init() {
	athleteCmd.AddCommand(athleteProfileCmd)
	athleteCmd.AddCommand(athleteStatsCmd)
	athleteCmd.AddCommand(athleteSummaryCmd)
}
