package observe

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/slicestore/pkg/store"
)

// MetricsConfig configures the Prometheus observer.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "slicestore").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for set duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus observer.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "slicestore",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics records store activity as Prometheus metrics.
type Metrics struct {
	setsTotal        *prometheus.CounterVec
	setDuration      prometheus.Histogram
	dispatchTotal    *prometheus.CounterVec
	callbacksInvoked prometheus.Counter
	faultsTotal      *prometheus.CounterVec
	subscribedKeys   prometheus.Gauge
	subscriptions    prometheus.Gauge
}

// NewMetrics registers the store metrics and returns the observer.
// Registering twice against the same registry panics, as with promauto.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		setsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "sets_total",
			Help:        "Total number of Set calls",
			ConstLabels: config.ConstLabels,
		}, []string{"scope", "status"}),

		setDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "set_duration_seconds",
			Help:        "Set duration in seconds, including notification",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		dispatchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "notifications_total",
			Help:        "Total number of notification passes",
			ConstLabels: config.ConstLabels,
		}, []string{"scope"}),

		callbacksInvoked: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "callbacks_invoked_total",
			Help:        "Total number of subscriber callbacks invoked",
			ConstLabels: config.ConstLabels,
		}),

		faultsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "faults_total",
			Help:        "Total number of recovered faults by kind",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		subscribedKeys: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "subscribed_keys",
			Help:        "Number of named keys with at least one subscriber",
			ConstLabels: config.ConstLabels,
		}),

		subscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "subscriptions",
			Help:        "Number of live subscriptions",
			ConstLabels: config.ConstLabels,
		}),
	}
}

func scopeLabel(global bool) string {
	if global {
		return "global"
	}
	return "keyed"
}

// ObserveSet implements store.Observer.
func (m *Metrics) ObserveSet(ev store.SetEvent) {
	status := "ok"
	if ev.Err != nil {
		status = "error"
		m.faultsTotal.WithLabelValues("setter").Inc()
	}
	m.setsTotal.WithLabelValues(scopeLabel(ev.Global), status).Inc()
	m.setDuration.Observe(ev.Duration.Seconds())
}

// ObserveDispatch implements store.Observer.
func (m *Metrics) ObserveDispatch(ev store.DispatchEvent) {
	m.dispatchTotal.WithLabelValues(scopeLabel(ev.Global)).Inc()
	m.callbacksInvoked.Add(float64(ev.Invoked))
	if n := len(ev.Faults); n > 0 {
		m.faultsTotal.WithLabelValues("notification").Add(float64(n))
	}
}

// ObserveRegistry implements store.Observer.
func (m *Metrics) ObserveRegistry(ev store.RegistryEvent) {
	switch ev.Op {
	case store.RegistrySubscribed:
		m.subscriptions.Inc()
	case store.RegistryUnsubscribed:
		m.subscriptions.Dec()
	case store.RegistryFault:
		m.faultsTotal.WithLabelValues("subscription").Inc()
	}
	m.subscribedKeys.Set(float64(ev.Keys))
}
