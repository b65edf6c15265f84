package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/de-tools/compliance-engine/pkg/models/domain"
)

const namespace = "compliance_engine"

// Recorder holds the engine's Prometheus collectors. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	gatherer prometheus.Gatherer

	verdicts    *prometheus.CounterVec
	retirements *prometheus.CounterVec
	audits      *prometheus.CounterVec
	records     *prometheus.CounterVec
	errors      *prometheus.CounterVec
	invocations *prometheus.HistogramVec
}

// NewRecorder registers the collectors on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	return NewRecorderWith(reg, reg)
}

func NewRecorderWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		gatherer: gatherer,
		verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verdicts_submitted_total",
			Help:      "Verdicts committed to the rule-state service",
		}, []string{"rule", "compliance_type"}),
		retirements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retirements_total",
			Help:      "Previously reported resources retired as NOT_APPLICABLE",
		}, []string{"rule"}),
		audits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drift_audits_total",
			Help:      "Drift audit outcomes",
		}, []string{"compliance_type"}),
		records: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_records_total",
			Help:      "Records delivered to the compliance stream",
		}, []string{"whitelisted"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocation_errors_total",
			Help:      "Failed rule invocations by error code",
		}, []string{"rule", "code"}),
		invocations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_duration_seconds",
			Help:      "Wall time of one rule invocation",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"rule"}),
	}
}

func (r *Recorder) Submitted(rule string, verdicts []domain.Verdict) {
	if r == nil {
		return
	}
	for _, v := range verdicts {
		r.verdicts.WithLabelValues(rule, string(v.ComplianceType)).Inc()
	}
}

func (r *Recorder) Retired(rule string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.retirements.WithLabelValues(rule).Add(float64(n))
}

func (r *Recorder) Audited(ct domain.ComplianceType) {
	if r == nil {
		return
	}
	r.audits.WithLabelValues(string(ct)).Inc()
}

func (r *Recorder) Streamed(state domain.WhitelistState) {
	if r == nil {
		return
	}
	r.records.WithLabelValues(string(state)).Inc()
}

func (r *Recorder) Failed(rule, code string) {
	if r == nil {
		return
	}
	r.errors.WithLabelValues(rule, code).Inc()
}

func (r *Recorder) Observe(rule string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.invocations.WithLabelValues(rule).Observe(elapsed.Seconds())
}

// Handler exposes the collectors in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil || r.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
