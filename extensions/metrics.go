package extensions

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pumped-fn/flowcompose"
)

// Outcome label values of flowcompose_invocations_total.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// MetricsExtension records Prometheus metrics for flow calls and unit
// invocations. Cache hits are counted separately and never reach the
// invocation counter.
type MetricsExtension struct {
	flowcompose.BaseExtension

	invocations *prometheus.CounterVec
	cacheHits   *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	panics      *prometheus.CounterVec
}

// NewMetricsExtension creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetricsExtension(reg prometheus.Registerer) (*MetricsExtension, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	e := &MetricsExtension{
		BaseExtension: flowcompose.NewBaseExtension("metrics"),
		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowcompose_invocations_total",
				Help: "Total number of flow and unit invocations",
			},
			[]string{"flow", "unit", "op", "outcome"},
		),
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowcompose_cache_hits_total",
				Help: "Invocations answered from a per-call cache",
			},
			[]string{"flow", "unit"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowcompose_invocation_duration_seconds",
				Help:    "Duration of flow and unit invocations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"flow", "unit", "op"},
		),
		panics: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowcompose_flow_panics_total",
				Help: "Flow calls that ended in a recovered panic",
			},
			[]string{"flow"},
		),
	}

	for _, c := range []prometheus.Collector{e.invocations, e.cacheHits, e.duration, e.panics} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Order runs metrics outside other extensions so their overhead is measured.
func (e *MetricsExtension) Order() int {
	return 10
}

func (e *MetricsExtension) Wrap(next func() (any, error), op *flowcompose.Operation) (any, error) {
	start := time.Now()
	result, err := next()

	flow := op.Context.Flow()
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	e.invocations.WithLabelValues(flow, op.Name, string(op.Kind), outcome).Inc()
	e.duration.WithLabelValues(flow, op.Name, string(op.Kind)).Observe(time.Since(start).Seconds())
	return result, err
}

func (e *MetricsExtension) OnCacheHit(op *flowcompose.Operation) {
	e.cacheHits.WithLabelValues(op.Context.Flow(), op.Name).Inc()
}

func (e *MetricsExtension) OnFlowPanic(c *flowcompose.Context, recovered any, stack []byte) error {
	e.panics.WithLabelValues(c.Flow()).Inc()
	return nil
}
