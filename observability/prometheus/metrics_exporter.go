package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-display-runner/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every collector when none is given.
const DefaultNamespace = "displayrunner"

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
	PumpBuckets     []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	taskDurationSeconds *prom.HistogramVec
	taskFailedTotal     *prom.CounterVec
	taskRejectedTotal   *prom.CounterVec
	queueDepth          *prom.GaugeVec
	pumpDurationSeconds *prom.HistogramVec
	pumpErrorsTotal     *prom.CounterVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}
	pumpBuckets := opts.PumpBuckets
	if len(pumpBuckets) == 0 {
		// Pump steps are sub-millisecond when healthy
		pumpBuckets = prom.ExponentialBuckets(0.00005, 4, 8)
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Time spent applying one task on the event loop.",
		Buckets:   buckets,
	}, []string{"loop", "kind"})
	failedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_failed_total",
		Help:      "Total number of tasks whose application failed.",
	}, []string{"loop", "kind", "reason"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_rejected_total",
		Help:      "Total number of calls refused before enqueue.",
	}, []string{"loop", "reason"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Tasks drained in the most recent loop iteration.",
	}, []string{"loop"})
	pumpVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "pump_duration_seconds",
		Help:      "Time spent in one display event pump step.",
		Buckets:   pumpBuckets,
	}, []string{"loop"})
	pumpErrVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "pump_errors_total",
		Help:      "Total number of failed pump steps.",
	}, []string{"loop"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if failedVec, err = registerCollector(reg, failedVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}
	if pumpVec, err = registerCollector(reg, pumpVec); err != nil {
		return nil, err
	}
	if pumpErrVec, err = registerCollector(reg, pumpErrVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		taskDurationSeconds: durationVec,
		taskFailedTotal:     failedVec,
		taskRejectedTotal:   rejectedVec,
		queueDepth:          queueDepthVec,
		pumpDurationSeconds: pumpVec,
		pumpErrorsTotal:     pumpErrVec,
	}, nil
}

// RecordTaskDuration records task application duration.
func (m *MetricsExporter) RecordTaskDuration(loopName string, kind core.TaskKind, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDurationSeconds.WithLabelValues(normalizeLabel(loopName, "unknown"), kind.String()).Observe(duration.Seconds())
}

// RecordTaskFailed records a failed task application.
func (m *MetricsExporter) RecordTaskFailed(loopName string, kind core.TaskKind, reason string) {
	if m == nil {
		return
	}
	m.taskFailedTotal.WithLabelValues(normalizeLabel(loopName, "unknown"), kind.String(), normalizeLabel(reason, "unknown")).Inc()
}

// RecordTaskRejected records task rejection events.
func (m *MetricsExporter) RecordTaskRejected(loopName string, reason string) {
	if m == nil {
		return
	}
	m.taskRejectedTotal.WithLabelValues(normalizeLabel(loopName, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

// RecordQueueDepth records queue depth.
func (m *MetricsExporter) RecordQueueDepth(loopName string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(loopName, "unknown")).Set(float64(depth))
}

// RecordPump records one pump step and counts it if it failed.
func (m *MetricsExporter) RecordPump(loopName string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	name := normalizeLabel(loopName, "unknown")
	m.pumpDurationSeconds.WithLabelValues(name).Observe(duration.Seconds())
	if err != nil {
		m.pumpErrorsTotal.WithLabelValues(name).Inc()
	}
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
