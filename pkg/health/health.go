// Package health runs the per-service admin endpoint: a JSON /health
// handler and the Prometheus /metrics handler. The liveness gauge lets a
// supervisor distinguish a stuck retry loop from a live one even though
// both keep the process up.
package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var lastIteration = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "churn",
		Name:      "loop_last_iteration_timestamp_seconds",
		Help:      "Unix time of the last completed loop iteration per service.",
	},
	[]string{"service"},
)

func init() {
	prometheus.MustRegister(lastIteration)
}

// Beat records a completed loop iteration for the named service.
func Beat(service string) {
	lastIteration.WithLabelValues(service).SetToCurrentTime()
}

// Server is the admin HTTP server for one service.
type Server struct {
	service string
	srv     *http.Server
}

// NewServer builds the admin server on the given port.
func NewServer(service, port string) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","service":%q,"timestamp":%q}`,
			service, time.Now().Format(time.RFC3339))
	})
	mux.Handle("/metrics", promhttp.Handler())

	return &Server{
		service: service,
		srv: &http.Server{
			Addr:         ":" + port,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start serves until Shutdown is called. Errors other than a clean
// shutdown are returned to the caller's goroutine.
func (s *Server) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
