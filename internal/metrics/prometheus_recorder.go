package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "nightlybuilder"

// Build durations are measured in minutes to hours.
var targetBuckets = []float64{60, 300, 600, 1200, 1800, 3600, 5400, 7200, 10800, 14400}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	targetDuration   *prom.HistogramVec
	targetOutcomes   *prom.CounterVec
	transferDuration *prom.HistogramVec
	transferResults  *prom.CounterVec
	queueDepth       *prom.GaugeVec
	runDuration      *prom.HistogramVec
	runOutcomes      *prom.CounterVec
}

// NewPrometheusRecorder constructs the metrics and registers them with reg
// (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		targetDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "target_build_duration_seconds",
			Help:      "Duration of the build command per target",
			Buckets:   targetBuckets,
		}, []string{"target"}),
		targetOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "target_outcomes_total",
			Help:      "Target outcomes by terminal status",
		}, []string{"status"}),
		transferDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "transfer_duration_seconds",
			Help:      "Duration of individual artifact transfers",
			Buckets:   prom.ExponentialBuckets(0.5, 2, 12),
		}, []string{"destination"}),
		transferResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Artifact transfers by destination and result",
		}, []string{"destination", "result"}),
		queueDepth: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatch_queue_depth",
			Help:      "Artifacts waiting in a destination queue",
		}, []string{"destination"}),
		runDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total run duration",
			Buckets:   targetBuckets,
		}, []string{"workflow"}),
		runOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Runs by workflow and outcome",
		}, []string{"workflow", "outcome"}),
	}
	reg.MustRegister(pr.targetDuration, pr.targetOutcomes, pr.transferDuration, pr.transferResults,
		pr.queueDepth, pr.runDuration, pr.runOutcomes)
	return pr
}

func (p *PrometheusRecorder) ObserveTargetDuration(target string, d time.Duration) {
	if p == nil {
		return
	}
	p.targetDuration.WithLabelValues(target).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncTargetOutcome(status string) {
	if p == nil {
		return
	}
	p.targetOutcomes.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) ObserveTransferDuration(destination string, d time.Duration) {
	if p == nil {
		return
	}
	p.transferDuration.WithLabelValues(destination).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncTransferResult(destination string, result TransferResult) {
	if p == nil {
		return
	}
	p.transferResults.WithLabelValues(destination, string(result)).Inc()
}

func (p *PrometheusRecorder) SetQueueDepth(destination string, n int) {
	if p == nil {
		return
	}
	p.queueDepth.WithLabelValues(destination).Set(float64(n))
}

func (p *PrometheusRecorder) ObserveRunDuration(workflow string, d time.Duration) {
	if p == nil {
		return
	}
	p.runDuration.WithLabelValues(workflow).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(workflow string, outcome RunOutcome) {
	if p == nil {
		return
	}
	p.runOutcomes.WithLabelValues(workflow, string(outcome)).Inc()
}
