// Package metrics registers the monitor's Prometheus instrumentation and
// optionally serves it over HTTP. Recording is always safe: with Init never
// called, every recorder is a no-op.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "shutdown_alarm_monitor_"

	// readHeaderTimeout bounds header reads on the metrics listener.
	readHeaderTimeout = 5 * time.Second

	// shutdownTimeout bounds graceful shutdown of the metrics listener.
	shutdownTimeout = 3 * time.Second
)

//nolint:gochecknoglobals // Process-wide metric handles, registered once.
var (
	registerOnce sync.Once

	alarmEventsTotal      *prometheus.CounterVec
	shutdownRequestsTotal *prometheus.CounterVec
	busReadErrorsTotal    *prometheus.CounterVec
)

// Init registers the monitor metrics with the default registry.
func Init() {
	registerOnce.Do(func() {
		alarmEventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alarm_events_total",
				Help: "Alarm state machine events by alarm kind and event",
			},
			[]string{"kind", "event"},
		)

		shutdownRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "shutdown_requests_total",
				Help: "Shutdown requests by result",
			},
			[]string{"result"},
		)

		busReadErrorsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "bus_read_errors_total",
				Help: "Failed bus property reads by error class",
			},
			[]string{"class"},
		)

		prometheus.MustRegister(alarmEventsTotal, shutdownRequestsTotal, busReadErrorsTotal)
	})
}

// AlarmEvent counts one state machine event for an alarm kind.
func AlarmEvent(kind, event string) {
	if alarmEventsTotal != nil {
		alarmEventsTotal.WithLabelValues(kind, event).Inc()
	}
}

// ShutdownRequest counts one shutdown request with its result.
func ShutdownRequest(result string) {
	if shutdownRequestsTotal != nil {
		shutdownRequestsTotal.WithLabelValues(result).Inc()
	}
}

// BusReadError counts one failed property read by error class.
func BusReadError(class string) {
	if busReadErrorsTotal != nil {
		busReadErrorsTotal.WithLabelValues(class).Inc()
	}
}

// Serve exposes /metrics on the provided address until the context is
// canceled. It blocks; callers run it on its own goroutine.
func Serve(ctx context.Context, address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)

		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	}
}
