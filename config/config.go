// file: config/config.go

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Well-known provider endpoints, applied as defaults when the config file
// only supplies client credentials for a provider.
const (
	withingsAuthURL  = "https://account.withings.com/oauth2_user/authorize2"
	withingsTokenURL = "https://wbsapi.withings.net/v2/oauth2"
	withingsAPIURL   = "https://wbsapi.withings.net"

	stravaAuthURL  = "https://www.strava.com/oauth/authorize"
	stravaTokenURL = "https://www.strava.com/oauth/token"
	stravaAPIURL   = "https://www.strava.com/api/v3"
)

// Config represents the complete fitness-connect configuration
type Config struct {
	Logging   LogConfig        `mapstructure:"logging"`
	Storage   StorageConfig    `mapstructure:"storage"`
	Providers []ProviderConfig `mapstructure:"providers"`
	Sync      SyncConfig       `mapstructure:"sync"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
	Events    EventsConfig     `mapstructure:"events"`
	Watch     WatchConfig      `mapstructure:"watch"`
}

// LogConfig controls the zap logger
type LogConfig struct {
	Level      string `mapstructure:"level"`      // debug, info, warn, error
	Encoding   string `mapstructure:"encoding"`   // json or console
	OutputPath string `mapstructure:"outputPath"` // file path or "stdout"
}

// StorageConfig defines where credentials and sync markers live on disk
type StorageConfig struct {
	CredentialsDir string `mapstructure:"credentialsDir"`
	MarkerDir      string `mapstructure:"markerDir"`
}

// ProviderConfig describes one OAuth2 provider and its API endpoint
type ProviderConfig struct {
	ID           string   `mapstructure:"id"`
	ClientID     string   `mapstructure:"clientId"`
	ClientSecret string   `mapstructure:"clientSecret"`
	AuthURL      string   `mapstructure:"authUrl"`
	TokenURL     string   `mapstructure:"tokenUrl"`
	RedirectURL  string   `mapstructure:"redirectUrl"`
	Scopes       []string `mapstructure:"scopes"`
	APIURL       string   `mapstructure:"apiUrl"`
}

// SyncConfig selects the source/target pair and tunes the sync run
type SyncConfig struct {
	Source   string        `mapstructure:"source"`
	Target   string        `mapstructure:"target"`
	Metric   string        `mapstructure:"metric"`
	Skew     time.Duration `mapstructure:"skew"`     // refresh tokens this close to expiry
	Lookback time.Duration `mapstructure:"lookback"` // 0 = latest measurement regardless of age
	Retry    RetryConfig   `mapstructure:"retry"`
}

// RetryConfig bounds the push retry loop
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"maxAttempts"`
	InitialBackoff time.Duration `mapstructure:"initialBackoff"`
}

// MetricsConfig for optional Prometheus metrics (watch mode)
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// EventsConfig for the optional NATS sync-event publisher
type EventsConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	URLs    []string `mapstructure:"urls"`
	Subject string   `mapstructure:"subject"` // subject prefix for outcome events

	// Authentication (choose one method)
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	Token     string `mapstructure:"token"`
	NKeySeed  string `mapstructure:"nkeySeed"`
	CredsFile string `mapstructure:"credsFile"`

	TLS struct {
		Enable   bool   `mapstructure:"enable"`
		CertFile string `mapstructure:"certFile"`
		KeyFile  string `mapstructure:"keyFile"`
		CAFile   string `mapstructure:"caFile"`
		Insecure bool   `mapstructure:"insecure"`
	} `mapstructure:"tls"`
}

// WatchConfig schedules repeated sync runs in watch mode
type WatchConfig struct {
	Every time.Duration `mapstructure:"every"`
	Cron  string        `mapstructure:"cron"` // standard 5-field cron expression
}

// Load reads configuration from file using Viper
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	// Environment variable support
	v.SetEnvPrefix("FITNESS_CONNECT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Provider returns the configuration for a provider by ID
func (c *Config) Provider(id string) (*ProviderConfig, error) {
	for i := range c.Providers {
		if c.Providers[i].ID == id {
			return &c.Providers[i], nil
		}
	}
	return nil, fmt.Errorf("provider %q is not configured", id)
}

// setDefaults applies sensible defaults
func setDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Encoding == "" {
		cfg.Logging.Encoding = "console"
	}
	if cfg.Logging.OutputPath == "" {
		cfg.Logging.OutputPath = "stderr"
	}

	stateDir := defaultStateDir()
	if cfg.Storage.CredentialsDir == "" {
		cfg.Storage.CredentialsDir = filepath.Join(stateDir, "credentials")
	}
	if cfg.Storage.MarkerDir == "" {
		cfg.Storage.MarkerDir = filepath.Join(stateDir, "markers")
	}

	if cfg.Sync.Source == "" {
		cfg.Sync.Source = "withings"
	}
	if cfg.Sync.Target == "" {
		cfg.Sync.Target = "strava"
	}
	if cfg.Sync.Metric == "" {
		cfg.Sync.Metric = "weight"
	}
	if cfg.Sync.Skew == 0 {
		cfg.Sync.Skew = 60 * time.Second
	}
	if cfg.Sync.Retry.MaxAttempts == 0 {
		cfg.Sync.Retry.MaxAttempts = 3
	}
	if cfg.Sync.Retry.InitialBackoff == 0 {
		cfg.Sync.Retry.InitialBackoff = 500 * time.Millisecond
	}

	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":2113"
	}

	if cfg.Events.Subject == "" {
		cfg.Events.Subject = "fitness.sync"
	}
	if cfg.Events.Enabled && len(cfg.Events.URLs) == 0 {
		cfg.Events.URLs = []string{"nats://localhost:4222"}
	}

	if cfg.Watch.Every == 0 && cfg.Watch.Cron == "" {
		cfg.Watch.Every = 6 * time.Hour
	}

	for i := range cfg.Providers {
		applyProviderDefaults(&cfg.Providers[i])
	}
}

// applyProviderDefaults fills in endpoints for well-known providers and
// falls back to <ID>_CLIENT_ID / <ID>_CLIENT_SECRET environment variables
// for the OAuth application credentials.
func applyProviderDefaults(p *ProviderConfig) {
	switch p.ID {
	case "withings":
		if p.AuthURL == "" {
			p.AuthURL = withingsAuthURL
		}
		if p.TokenURL == "" {
			p.TokenURL = withingsTokenURL
		}
		if p.APIURL == "" {
			p.APIURL = withingsAPIURL
		}
		if len(p.Scopes) == 0 {
			p.Scopes = []string{"user.metrics"}
		}
	case "strava":
		if p.AuthURL == "" {
			p.AuthURL = stravaAuthURL
		}
		if p.TokenURL == "" {
			p.TokenURL = stravaTokenURL
		}
		if p.APIURL == "" {
			p.APIURL = stravaAPIURL
		}
		if len(p.Scopes) == 0 {
			p.Scopes = []string{"profile:write", "profile:read_all"}
		}
	}

	envPrefix := strings.ToUpper(strings.ReplaceAll(p.ID, "-", "_"))
	if p.ClientID == "" {
		p.ClientID = os.Getenv(envPrefix + "_CLIENT_ID")
	}
	if p.ClientSecret == "" {
		p.ClientSecret = os.Getenv(envPrefix + "_CLIENT_SECRET")
	}
	if p.RedirectURL == "" {
		p.RedirectURL = "http://localhost/exchange_token"
	}
}

// defaultStateDir resolves the per-user state directory
func defaultStateDir() string {
	if dir := os.Getenv("FITNESS_CONNECT_HOME"); dir != "" {
		return dir
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return ".fitness-connect"
	}
	return filepath.Join(base, "fitness-connect")
}

// validate ensures configuration is valid
func validate(cfg *Config) error {
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}
	if cfg.Logging.Encoding != "json" && cfg.Logging.Encoding != "console" {
		return fmt.Errorf("invalid log encoding: %s", cfg.Logging.Encoding)
	}

	if cfg.Sync.Source == cfg.Sync.Target {
		return fmt.Errorf("sync source and target must be different providers")
	}

	seen := make(map[string]bool, len(cfg.Providers))
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if p.ID == "" {
			return fmt.Errorf("provider %d: id is required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate provider id: %s", p.ID)
		}
		seen[p.ID] = true
		if p.AuthURL == "" || p.TokenURL == "" {
			return fmt.Errorf("provider %s: authUrl and tokenUrl are required", p.ID)
		}
		if p.APIURL == "" {
			return fmt.Errorf("provider %s: apiUrl is required", p.ID)
		}
	}

	if cfg.Sync.Retry.MaxAttempts < 1 {
		return fmt.Errorf("sync.retry.maxAttempts must be at least 1")
	}

	if cfg.Watch.Cron != "" {
		if _, err := cron.ParseStandard(cfg.Watch.Cron); err != nil {
			return fmt.Errorf("invalid watch.cron expression %q: %w", cfg.Watch.Cron, err)
		}
	}

	if cfg.Events.Enabled {
		authCount := 0
		if cfg.Events.Username != "" {
			authCount++
		}
		if cfg.Events.Token != "" {
			authCount++
		}
		if cfg.Events.NKeySeed != "" {
			authCount++
		}
		if cfg.Events.CredsFile != "" {
			authCount++
		}
		if authCount > 1 {
			return fmt.Errorf("events: only one NATS authentication method may be set")
		}
	}

	return nil
}
