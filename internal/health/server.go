// Package health serves the liveness endpoint and the Prometheus metrics.
package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const shutdownTimeout = 3 * time.Second

type Server struct {
	addr   string
	log    logr.Logger
	checks map[string]healthz.Checker
}

// New returns a server exposing /healthz and /metrics on addr. A ping check is always included.
func New(addr string, log logr.Logger, checks map[string]healthz.Checker) *Server {
	all := map[string]healthz.Checker{"ping": healthz.Ping}
	for name, check := range checks {
		all[name] = check
	}
	return &Server{addr: addr, log: log, checks: all}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/healthz", http.StripPrefix("/healthz", &healthz.Handler{Checks: s.checks}))
	mux.Handle("/healthz/", http.StripPrefix("/healthz", &healthz.Handler{Checks: s.checks}))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	return mux
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			s.log.Error(err, "health server shutdown")
		}
	}()

	s.log.Info("serving health and metrics", "addr", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}
