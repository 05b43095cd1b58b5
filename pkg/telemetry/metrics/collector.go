package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config contains configuration for the metrics collector.
type Config struct {
	// Enabled turns metric recording on. Disabled collectors are no-ops.
	Enabled bool

	// Namespace is the Prometheus namespace. Default: "polaris".
	Namespace string

	// Subsystem is the Prometheus subsystem. Default: "superpose".
	Subsystem string

	// DurationBuckets are the operation latency histogram buckets in
	// seconds. Defaults cover the sub-millisecond to low-millisecond range.
	DurationBuckets []float64
}

// Collector registers and records all evaluator metrics. A nil Collector is
// safe to call; every method no-ops.
type Collector struct {
	config   Config
	registry *prometheus.Registry

	resolutions        *prometheus.CounterVec
	operationDuration  *prometheus.HistogramVec
	uncertaintyLambda  prometheus.Gauge
	tradeOffConstant   prometheus.Histogram
	casConflicts       prometheus.Counter
	downstreamFailures *prometheus.CounterVec
	integrityFailures  prometheus.Counter
}

// NewCollector creates a metrics collector registered against the given
// registry. A nil registry creates a fresh one.
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "polaris"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "superpose"
	}
	if len(cfg.DurationBuckets) == 0 {
		// Covers 100µs through 50ms operation latencies
		cfg.DurationBuckets = []float64{0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01, 0.025, 0.05}
	}

	c := &Collector{
		config:   cfg,
		registry: registry,

		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "resolutions_total",
			Help:      "Policy resolutions by reason and terminal state.",
		}, []string{"reason", "state"}),

		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "operation_duration_seconds",
			Help:      "End-to-end latency per service operation.",
			Buckets:   cfg.DurationBuckets,
		}, []string{"operation"}),

		uncertaintyLambda: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "uncertainty_lambda",
			Help:      "Current global uncertainty parameter.",
		}),

		tradeOffConstant: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "trade_off_constant",
			Help:      "Empirical trade-off constant K = latency_ms * accuracy_estimate.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),

		casConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cas_conflicts_total",
			Help:      "Compare-and-swap conflicts observed during resolution.",
		}),

		downstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "downstream_failures_total",
			Help:      "Compliance backend failures by policy criticality.",
		}, []string{"criticality"}),

		integrityFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "integrity_failures_total",
			Help:      "Entanglement tag verification failures.",
		}),
	}

	registry.MustRegister(
		c.resolutions,
		c.operationDuration,
		c.uncertaintyLambda,
		c.tradeOffConstant,
		c.casConflicts,
		c.downstreamFailures,
		c.integrityFailures,
	)

	return c
}

// RecordResolution counts one resolution by reason and terminal state.
func (c *Collector) RecordResolution(reason, state string) {
	if c == nil || !c.config.Enabled {
		return
	}
	c.resolutions.WithLabelValues(reason, state).Inc()
}

// RecordOperation observes the end-to-end latency of one service operation.
func (c *Collector) RecordOperation(operation string, duration time.Duration) {
	if c == nil || !c.config.Enabled {
		return
	}
	c.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetLambda updates the λ gauge.
func (c *Collector) SetLambda(lambda float64) {
	if c == nil || !c.config.Enabled {
		return
	}
	c.uncertaintyLambda.Set(lambda)
}

// RecordTradeOff observes one trade-off constant K.
func (c *Collector) RecordTradeOff(k float64) {
	if c == nil || !c.config.Enabled {
		return
	}
	c.tradeOffConstant.Observe(k)
}

// RecordCASConflict counts one lost compare-and-swap race.
func (c *Collector) RecordCASConflict() {
	if c == nil || !c.config.Enabled {
		return
	}
	c.casConflicts.Inc()
}

// RecordDownstreamFailure counts one compliance backend failure.
func (c *Collector) RecordDownstreamFailure(criticality string) {
	if c == nil || !c.config.Enabled {
		return
	}
	c.downstreamFailures.WithLabelValues(criticality).Inc()
}

// RecordIntegrityFailure counts one entanglement verification failure.
func (c *Collector) RecordIntegrityFailure() {
	if c == nil || !c.config.Enabled {
		return
	}
	c.integrityFailures.Inc()
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
