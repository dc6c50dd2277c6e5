package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const pushJobName = "storemap"

// pinger is satisfied by *pgxpool.Pool.
type pinger interface {
	Ping(ctx context.Context) error
}

// newMonitoringMux builds the health check and metrics endpoints.
func newMonitoringMux(ctx context.Context, log *slog.Logger, reg *prometheus.Registry, dtb pinger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(writer http.ResponseWriter, req *http.Request) {
		log.DebugContext(ctx, "Performing health checks...")
		status, body := http.StatusOK, "OK"
		if err := dtb.Ping(req.Context()); err != nil {
			status, body = http.StatusServiceUnavailable, "DB ping failed"
		}
		writer.WriteHeader(status)
		if _, err := writer.Write([]byte(body)); err != nil {
			log.ErrorContext(ctx, "failed to write reply", "error", err)
		}

		log.DebugContext(ctx, "Health checks completed", "status", status)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return mux
}

// startMonitoringServer serves health check and metrics endpoints while the run is in progress.
//
// Parameters:
// - ctx: A context.Context for logging.
// - log: A logger for logging server events and errors.
// - reg: A registry with Prometheus collectors.
// - dtb: The database pool, pinged by the health check.
// - port: The port number on which the server will listen.
func startMonitoringServer(
	ctx context.Context,
	log *slog.Logger,
	reg *prometheus.Registry,
	dtb pinger,
	port int,
) *http.Server {
	readTimeout := 5
	writeTimeout := 10
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      newMonitoringMux(ctx, log, reg, dtb),
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
	}

	go func() {
		log.InfoContext(ctx, "Starting monitoring server", "port", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.ErrorContext(ctx, "Monitoring server failed", "error", err)
		}
	}()

	return server
}

// detached returns a short-lived context that survives cancellation of ctx.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	const timeout = 10 * time.Second
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

func shutdownMonitoringServer(ctx context.Context, log *slog.Logger, server *http.Server) {
	shutdownCtx, cancel := detached(ctx)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.ErrorContext(ctx, "Failed to stop monitoring server", "error", err)
	}
}

// pushMetrics sends the metrics of a finished run to a Prometheus Pushgateway.
// Failures are logged only, the run itself is already complete.
func pushMetrics(ctx context.Context, log *slog.Logger, reg prometheus.Gatherer, url, runID string) {
	pushCtx, cancel := detached(ctx)
	defer cancel()

	err := push.New(url, pushJobName).
		Gatherer(reg).
		Grouping("run_id", runID).
		PushContext(pushCtx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to push metrics", "url", url, "error", err)
		return
	}

	log.InfoContext(ctx, "Metrics pushed", "url", url)
}
