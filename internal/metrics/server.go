// file: internal/metrics/server.go

package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fitness-connect/internal/logger"
)

const (
	readHeaderTimeout = 5 * time.Second
)

// Server exposes the Prometheus registry over HTTP for watch mode.
type Server struct {
	srv    *http.Server
	logger *logger.Logger
}

// NewServer creates a metrics HTTP server serving /metrics from reg.
func NewServer(addr string, reg *prometheus.Registry, log *logger.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		logger: log,
	}
}

// Start serves in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info("starting metrics server", "address", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server error", "error", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("stopping metrics server")
	return s.srv.Shutdown(ctx)
}
