// file: internal/events/publisher.go

package events

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nkeys"

	"fitness-connect/config"
	"fitness-connect/internal/logger"
	"fitness-connect/internal/syncer"
)

const (
	natsReconnectWait = 50 * time.Millisecond
	flushTimeout      = 2 * time.Second
)

// SyncEvent is the wire payload published after each sync run
type SyncEvent struct {
	Outcome    string    `json:"outcome"`
	Metric     string    `json:"metric,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	Value      float64   `json:"value,omitempty"`
	Unit       string    `json:"unit,omitempty"`
	ObservedAt time.Time `json:"observedAt"`
	At         time.Time `json:"at"`
	Error      string    `json:"error,omitempty"`
}

// Publisher emits sync outcome events to NATS. Purely observational:
// publish failures are logged, never fed back into the sync result.
type Publisher struct {
	conn    *nats.Conn
	subject string
	logger  *logger.Logger
}

// NewPublisher connects to NATS using the events configuration.
func NewPublisher(cfg *config.EventsConfig, log *logger.Logger) (*Publisher, error) {
	opts, err := buildNATSOptions(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build NATS options: %w", err)
	}

	conn, err := nats.Connect(strings.Join(cfg.URLs, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Info("event publisher connected", "url", conn.ConnectedUrl(), "subjectPrefix", cfg.Subject)

	return &Publisher{
		conn:    conn,
		subject: cfg.Subject,
		logger:  log,
	}, nil
}

// PublishResult emits an event for one sync run on <prefix>.<outcome>.
func (p *Publisher) PublishResult(res *syncer.Result) {
	event := eventFor(res)
	subject := subjectFor(p.subject, res.Outcome)

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to encode sync event", "error", err)
		return
	}

	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Error("failed to publish sync event", "subject", subject, "error", err)
		return
	}
	if err := p.conn.FlushTimeout(flushTimeout); err != nil {
		p.logger.Warn("sync event flush timed out", "subject", subject, "error", err)
		return
	}

	p.logger.Debug("sync event published", "subject", subject)
}

// Close drains the connection.
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("failed to drain NATS connection", "error", err)
	}
}

// eventFor maps a sync result to its event payload
func eventFor(res *syncer.Result) *SyncEvent {
	event := &SyncEvent{
		Outcome:  string(res.Outcome),
		Provider: res.Provider,
		At:       time.Now().UTC(),
	}
	if res.Measurement != nil {
		event.Metric = string(res.Measurement.Kind)
		event.Value = res.Measurement.Value
		event.Unit = res.Measurement.Unit
		event.ObservedAt = res.Measurement.ObservedAt
	}
	if res.Err != nil {
		event.Error = res.Err.Error()
	}
	return event
}

// subjectFor builds the outcome-specific subject under the prefix
func subjectFor(prefix string, outcome syncer.Outcome) string {
	return prefix + "." + string(outcome)
}

// buildNATSOptions creates NATS connection options with auth and TLS
func buildNATSOptions(cfg *config.EventsConfig, log *logger.Logger) ([]nats.Option, error) {
	var opts []nats.Option

	opts = append(opts,
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Debug("NATS connection closed")
		}),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(natsReconnectWait),
	)

	// Authentication (choose one method)
	switch {
	case cfg.CredsFile != "":
		log.Info("using NATS creds file authentication", "credsFile", cfg.CredsFile)
		opts = append(opts, nats.UserCredentials(cfg.CredsFile))
	case cfg.NKeySeed != "":
		log.Info("using NATS NKey authentication")
		kp, err := nkeys.FromSeed([]byte(cfg.NKeySeed))
		if err != nil {
			return nil, fmt.Errorf("invalid NKey seed: %w", err)
		}
		pub, err := kp.PublicKey()
		if err != nil {
			return nil, fmt.Errorf("failed to derive NKey public key: %w", err)
		}
		opts = append(opts, nats.Nkey(pub, kp.Sign))
	case cfg.Token != "":
		log.Info("using NATS token authentication")
		opts = append(opts, nats.Token(cfg.Token))
	case cfg.Username != "":
		log.Info("using NATS username/password authentication", "username", cfg.Username)
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	// TLS configuration
	if cfg.TLS.Enable {
		log.Info("enabling TLS", "insecure", cfg.TLS.Insecure)

		tlsConfig := &tls.Config{
			InsecureSkipVerify: cfg.TLS.Insecure,
		}

		if cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != "" {
			cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load TLS cert/key: %w", err)
			}
			tlsConfig.Certificates = []tls.Certificate{cert}
		}

		if cfg.TLS.CAFile != "" {
			opts = append(opts, nats.RootCAs(cfg.TLS.CAFile))
		}

		opts = append(opts, nats.Secure(tlsConfig))
	}

	return opts, nil
}
