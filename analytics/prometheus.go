package analytics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scorekit/core"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem sets the subsystem for all metrics.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithHistogramBuckets sets custom histogram buckets for latency metrics.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithRegistry sets the Prometheus registry metrics are registered on.
func WithRegistry(r *prometheus.Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}

// Manager manages the Prometheus metrics of the scoring engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	// Core business metrics
	eventsIngested  *prometheus.CounterVec
	pointsAwarded   *prometheus.CounterVec
	syntheticEvents *prometheus.CounterVec
	duplicatesSeen  prometheus.Counter
	badgesAwarded   prometheus.Counter
	levelsReached   prometheus.Counter

	// Leaderboard rebuild metrics
	rebuildDuration prometheus.Histogram
	rebuildBoards   prometheus.Gauge
	rebuildLastUnix prometheus.Gauge

	// HTTP performance metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager creates a metrics manager with its own registry unless one
// is supplied with an option.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "scorekit",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.eventsIngested = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_ingested_total",
		Help:      "Total number of scored events by category",
	}, []string{"category"})

	m.pointsAwarded = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "points_awarded_total",
		Help:      "Total points awarded by category",
	}, []string{"category"})

	m.syntheticEvents = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "synthetic_events_total",
		Help:      "Total engine-generated events by type",
	}, []string{"event_type"})

	m.duplicatesSeen = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "duplicate_events_total",
		Help:      "Total duplicate events skipped during batch ingestion",
	})

	m.badgesAwarded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "badges_awarded_total",
		Help:      "Total achievement badges awarded",
	})

	m.levelsReached = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "level_ups_total",
		Help:      "Total level-up events",
	})

	m.rebuildDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "leaderboard",
		Name:      "rebuild_duration_seconds",
		Help:      "Histogram of full leaderboard rebuild durations",
		Buckets:   m.histogramBuckets,
	})

	m.rebuildBoards = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "leaderboard",
		Name:      "boards_built",
		Help:      "Number of boards produced by the last rebuild",
	})

	m.rebuildLastUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "leaderboard",
		Name:      "last_rebuild_unix",
		Help:      "Unix timestamp of the last completed rebuild",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration by endpoint, method and status code",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
}

// OnEvent implements Hook; it counts every scored event as it lands.
func (m *Manager) OnEvent(e core.SuccessEvent) {
	m.eventsIngested.WithLabelValues(string(e.Category)).Inc()
	m.pointsAwarded.WithLabelValues(string(e.Category)).Add(float64(e.Points))
	if e.Synthetic {
		m.syntheticEvents.WithLabelValues(string(e.EventType)).Inc()
	}
	switch e.EventType {
	case core.EventBadgeEarned:
		m.badgesAwarded.Inc()
	case core.EventLevelUp:
		m.levelsReached.Inc()
	}
}

// ObserveDuplicate records a skipped duplicate event.
func (m *Manager) ObserveDuplicate() { m.duplicatesSeen.Inc() }

// ObserveRebuild records a completed leaderboard rebuild.
func (m *Manager) ObserveRebuild(d time.Duration, boards int) {
	m.rebuildDuration.Observe(d.Seconds())
	m.rebuildBoards.Set(float64(boards))
	m.rebuildLastUnix.Set(float64(time.Now().Unix()))
}

// ObserveHTTP records one served HTTP request.
func (m *Manager) ObserveHTTP(endpoint, method string, status int, d time.Duration) {
	code := strconv.Itoa(status)
	m.httpRequests.WithLabelValues(endpoint, method, code).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, code).Observe(d.Seconds())
}

// Handler exposes the registry in Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

var _ Hook = (*Manager)(nil)
