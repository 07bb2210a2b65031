// file: cmd/fitness-connect/cmd/root.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"

	"fitness-connect/config"
	"fitness-connect/internal/auth"
	"fitness-connect/internal/credential"
	"fitness-connect/internal/logger"
	"fitness-connect/internal/metrics"
	"fitness-connect/internal/provider"
	"fitness-connect/internal/provider/strava"
	"fitness-connect/internal/provider/withings"
	"fitness-connect/internal/syncer"
)

var configPath string

// AddCommands adds all the subcommands to the root command.
func AddCommands(root *cobra.Command) {
	registerGlobalFlags(root.PersistentFlags())

	root.AddCommand(initCmd)
	root.AddCommand(registerCmd)
	root.AddCommand(syncCmd)
	root.AddCommand(athleteCmd)
	root.AddCommand(watchCmd)
}

// registerGlobalFlags binds flags shared by every subcommand
func registerGlobalFlags(fs *flag.FlagSet) {
	fs.StringVar(&configPath, "config", "config.yaml", "path to config file")
}

// runtime bundles everything a command needs, built from the config file
type runtime struct {
	cfg     *config.Config
	logger  *logger.Logger
	store   *credential.FileStore
	auth    *auth.Authenticator
	metrics *metrics.Metrics
}

// newRuntime loads config and wires the shared components. prompt may be
// nil for commands that never register, and m may be nil when metrics are
// not collected.
func newRuntime(prompt auth.CodePrompt, m *metrics.Metrics) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	store := credential.NewFileStore(cfg.Storage.CredentialsDir)
	authenticator := auth.New(store, cfg.Providers, cfg.Sync.Skew, prompt, log, m)

	return &runtime{
		cfg:     cfg,
		logger:  log,
		store:   store,
		auth:    authenticator,
		metrics: m,
	}, nil
}

// client constructs the concrete API client for a configured provider
func (r *runtime) client(id string) (any, error) {
	p, err := r.cfg.Provider(id)
	if err != nil {
		return nil, err
	}

	switch p.ID {
	case "withings":
		return withings.NewClient(p.APIURL, r.cfg.Sync.Lookback, r.logger), nil
	case "strava":
		return strava.NewClient(p.APIURL, r.logger), nil
	default:
		return nil, fmt.Errorf("no client implementation for provider %q", p.ID)
	}
}

// orchestrator wires a sync orchestrator from the configured source/target
func (r *runtime) orchestrator() (*syncer.Orchestrator, error) {
	sourceClient, err := r.client(r.cfg.Sync.Source)
	if err != nil {
		return nil, err
	}
	targetClient, err := r.client(r.cfg.Sync.Target)
	if err != nil {
		return nil, err
	}

	source, err := provider.AsSource(r.cfg.Sync.Source, sourceClient)
	if err != nil {
		return nil, err
	}
	target, err := provider.AsTarget(r.cfg.Sync.Target, targetClient)
	if err != nil {
		return nil, err
	}

	markers := syncer.NewFileMarkerStore(r.cfg.Storage.MarkerDir)

	return syncer.New(syncer.Config{
		SourceID:       r.cfg.Sync.Source,
		TargetID:       r.cfg.Sync.Target,
		Source:         source,
		Target:         target,
		Kind:           provider.MetricKind(r.cfg.Sync.Metric),
		MaxAttempts:    r.cfg.Sync.Retry.MaxAttempts,
		InitialBackoff: r.cfg.Sync.Retry.InitialBackoff,
	}, r.auth, markers, r.logger, r.metrics), nil
}

// athleteService resolves the athlete read capability of the sync target
func (r *runtime) athleteService() (provider.AthleteService, string, error) {
	targetID := r.cfg.Sync.Target
	client, err := r.client(targetID)
	if err != nil {
		return nil, "", err
	}
	svc, err := provider.AsAthleteService(targetID, client)
	if err != nil {
		return nil, "", err
	}
	return svc, targetID, nil
}
