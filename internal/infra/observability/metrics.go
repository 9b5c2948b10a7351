package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/billzap/billzap-go/internal/domain"
)

// Metrics holds all Prometheus metrics for the billing engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration    *prometheus.HistogramVec
	externalErrors     *prometheus.CounterVec
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	runsTotal          *prometheus.CounterVec
	invoicesProcessed  prometheus.Counter
	messagesSent       *prometheus.CounterVec
	notificationErrors *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billzap_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billzap_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billzap_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billzap_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billzap_runs_total",
				Help: "Total daily routine runs by final state.",
			},
			[]string{"status"},
		),
		invoicesProcessed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "billzap_invoices_processed_total",
				Help: "Total invoices evaluated across runs.",
			},
		),
		messagesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billzap_messages_sent_total",
				Help: "Total notification messages delivered, by stage.",
			},
			[]string{"stage"},
		),
		notificationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billzap_notification_errors_total",
				Help: "Total per-invoice notification failures, by kind.",
			},
			[]string{"kind"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrRun increments the run counter with the run's final state.
func (m *Metrics) IncrRun(status string) {
	m.runsTotal.WithLabelValues(status).Inc()
}

// AddInvoicesProcessed records invoices evaluated in one run.
func (m *Metrics) AddInvoicesProcessed(n int) {
	m.invoicesProcessed.Add(float64(n))
}

// IncrMessageSent increments the delivered-message counter for a stage.
func (m *Metrics) IncrMessageSent(stage string) {
	m.messagesSent.WithLabelValues(stage).Inc()
}

// IncrNotificationError increments the notification failure counter.
// kind is one of "transport", "template", "render".
func (m *Metrics) IncrNotificationError(kind string) {
	m.notificationErrors.WithLabelValues(kind).Inc()
}

// GetBillingSnapshot returns a snapshot of billing metrics suitable for
// the GET /v1/metrics/billing endpoint.
func (m *Metrics) GetBillingSnapshot() *domain.BillingMetrics {
	completed := getCounterValue(m.runsTotal, "completed")
	failed := getCounterValue(m.runsTotal, "failed")

	invoices := getPlainCounterValue(m.invoicesProcessed)
	sent := getCounterValue(m.messagesSent, string(domain.StagePreventive)) +
		getCounterValue(m.messagesSent, string(domain.StageDueDate)) +
		getCounterValue(m.messagesSent, string(domain.StageOverdue))
	notifErrors := getCounterValue(m.notificationErrors, "transport") +
		getCounterValue(m.notificationErrors, "template") +
		getCounterValue(m.notificationErrors, "render")

	cacheHits := getCounterValue(m.cacheHits, "customer")
	cacheMisses := getCounterValue(m.cacheMisses, "customer")

	cacheHitRate := float64(0)
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.BillingMetrics{
		TotalRuns:          int64(completed + failed),
		CompletedRuns:      int64(completed),
		FailedRuns:         int64(failed),
		InvoicesProcessed:  int64(invoices),
		MessagesSent:       int64(sent),
		NotificationErrors: int64(notifErrors),
		CacheHitRate:       cacheHitRate,
		Period:             "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getPlainCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
