// Package metrics provides Prometheus metrics for the ledger service.
package metrics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/genomechain/genome-ledger/internal/chain"
)

const namespace = "genome"

var (
	// Set once by Init. Record functions are no-ops until then.
	requestsTotal       atomic.Pointer[prometheus.CounterVec]
	requestDuration     atomic.Pointer[prometheus.HistogramVec]
	authFailuresTotal   atomic.Pointer[prometheus.CounterVec]
	transactionsTotal   atomic.Pointer[prometheus.CounterVec]
	transactionDuration atomic.Pointer[prometheus.HistogramVec]
	revertsTotal        atomic.Pointer[prometheus.CounterVec]
	eventsTotal         atomic.Pointer[prometheus.CounterVec]
)

// Init registers all collectors with reg. Call it once at startup.
func Init(reg prometheus.Registerer, version string) error {
	requestsTotalVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the API",
		},
		[]string{"method", "path", "status"},
	)
	requestDurationVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	authFailuresTotalVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "auth_failures_total",
			Help:      "Total number of authentication failures",
		},
		[]string{"reason"},
	)
	transactionsTotalVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transactions_total",
			Help:      "Transactions executed, by method and outcome",
		},
		[]string{"method", "outcome"},
	)
	transactionDurationVec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transaction_duration_seconds",
			Help:      "Time spent executing a transaction, including sinks",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"method"},
	)
	revertsTotalVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "reverts_total",
			Help:      "Reverted transactions, by error code",
		},
		[]string{"code"},
	)
	eventsTotalVec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "events_total",
			Help:      "Events emitted by committed transactions",
		},
		[]string{"event"},
	)
	infoGaugeVec := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "info",
			Help:      "Ledger service version information",
		},
		[]string{"version"},
	)

	collectors := []struct {
		name string
		c    prometheus.Collector
	}{
		{"requestsTotal", requestsTotalVec},
		{"requestDuration", requestDurationVec},
		{"authFailuresTotal", authFailuresTotalVec},
		{"transactionsTotal", transactionsTotalVec},
		{"transactionDuration", transactionDurationVec},
		{"revertsTotal", revertsTotalVec},
		{"eventsTotal", eventsTotalVec},
		{"info", infoGaugeVec},
	}
	for _, c := range collectors {
		if err := reg.Register(c.c); err != nil {
			return fmt.Errorf("failed to register %s: %w", c.name, err)
		}
	}
	infoGaugeVec.WithLabelValues(version).Set(1)

	requestsTotal.Store(requestsTotalVec)
	requestDuration.Store(requestDurationVec)
	authFailuresTotal.Store(authFailuresTotalVec)
	transactionsTotal.Store(transactionsTotalVec)
	transactionDuration.Store(transactionDurationVec)
	revertsTotal.Store(revertsTotalVec)
	eventsTotal.Store(eventsTotalVec)

	return nil
}

// RecordRequest increments the requests counter. path must already be normalized.
func RecordRequest(method, path, statusCode string) {
	if counter := requestsTotal.Load(); counter != nil {
		counter.WithLabelValues(method, path, statusCode).Inc()
	}
}

// RecordRequestDuration records the latency for a request in seconds.
func RecordRequestDuration(method, path, statusCode string, durationSeconds float64) {
	if histogram := requestDuration.Load(); histogram != nil {
		histogram.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
	}
}

// RecordAuthFailure increments the auth failures counter.
// Reasons in use: "missing_key", "invalid_key", "master_key_locked", "admin_required".
func RecordAuthFailure(reason string) {
	if counter := authFailuresTotal.Load(); counter != nil {
		counter.WithLabelValues(reason).Inc()
	}
}

// ObserveTransaction records one engine transaction. It matches chain.Observer.
func ObserveTransaction(method string, err error, elapsed time.Duration) {
	outcome := "committed"
	if err != nil {
		outcome = "reverted"
		if counter := revertsTotal.Load(); counter != nil {
			counter.WithLabelValues(string(chain.CodeOf(err))).Inc()
		}
	}
	if counter := transactionsTotal.Load(); counter != nil {
		counter.WithLabelValues(method, outcome).Inc()
	}
	if histogram := transactionDuration.Load(); histogram != nil {
		histogram.WithLabelValues(method).Observe(elapsed.Seconds())
	}
}

// EventCounter is a chain.Sink that counts committed events by name.
type EventCounter struct{}

// Publish implements chain.Sink.
func (EventCounter) Publish(_ context.Context, events []chain.Event) error {
	counter := eventsTotal.Load()
	if counter == nil {
		return nil
	}
	for _, e := range events {
		counter.WithLabelValues(e.Name).Inc()
	}
	return nil
}

// Handler returns an HTTP handler for Prometheus metrics in text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a metrics handler serving the given registry.
func HandlerFor(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// GetMetricsText returns the Prometheus text-format output from a registry.
func GetMetricsText(reg prometheus.Gatherer) (string, error) {
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(w, req)

	body, err := io.ReadAll(w.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read metrics output: %w", err)
	}
	return string(body), nil
}
