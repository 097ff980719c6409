package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/haziq21/letter-boxed-solver/pkg/api"
	"github.com/haziq21/letter-boxed-solver/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the archive over HTTP",
		Long: `Serves GET /puzzles (the published view), POST /puzzles (one upstream
payload), /healthz and Prometheus metrics on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ln, err := net.Listen("tcp", a.cfg.Server.Addr)
			if err != nil {
				return err
			}
			return a.serve(cmd.Context(), ln)
		},
	}
	cmd.Flags().String("addr", "", "listen address")
	bindFlag(cmd, "addr", "server.addr")
	return cmd
}

// handler wires the API over an instrumented store and exposes reg on /metrics.
func (a *app) handler(reg *prometheus.Registry) (http.Handler, error) {
	m, err := store.NewMetrics(reg)
	if err != nil {
		return nil, err
	}
	s := store.Instrument(a.store, m, a.cfg.Store.Backend)

	sy, err := a.syncer()
	if err != nil {
		return nil, err
	}
	sy.Store = s

	mux := http.NewServeMux()
	api.NewServer(s, sy, a.logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux, nil
}

// serve runs until ctx is canceled, then drains in-flight requests.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	h, err := a.handler(reg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      h,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     zap.NewStdLog(a.logger),
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", zap.String("addr", ln.Addr().String()), zap.String("backend", a.cfg.Store.Backend))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

