package optimizer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sternrassler/pdf-image-optimizer/pkg/policy"
)

// ImageOptimizationEvent records one completed optimization.
type ImageOptimizationEvent struct {
	OperationID   string
	ContentType   policy.ContentType
	Duration      time.Duration
	Success       bool
	OriginalSize  int64
	OptimizedSize int64
	CacheHit      bool
}

// FallbackOperationEvent records a call resolved via fallback.
type FallbackOperationEvent struct {
	OperationID  string
	ContentType  policy.ContentType
	Duration     time.Duration
	Reason       string
	OriginalSize int64
}

// PerformanceMetricEvent records a raw timing observation.
type PerformanceMetricEvent struct {
	OperationID string
	Stage       string
	Duration    time.Duration
	Success     bool
	Bytes       int64
}

// Sink consumes metric events fire-and-forget. Implementations must never
// block or panic the pipeline; the orchestrator additionally isolates sink
// calls so a faulty sink cannot fail an optimization.
type Sink interface {
	RecordOptimization(ImageOptimizationEvent)
	RecordFallback(FallbackOperationEvent)
	RecordPerformance(PerformanceMetricEvent)
}

// Prometheus metrics for orchestrator operations.
var (
	optimizationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imgopt_optimizations_total",
		Help: "Total optimizeImageForPDF calls by content type and outcome",
	}, []string{"content_type", "outcome"}) // "success", "cached", "fallback", "failure"

	optimizationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "imgopt_optimization_duration_seconds",
		Help:    "End-to-end optimizeImageForPDF duration by content type",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"content_type"})

	fallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imgopt_fallbacks_total",
		Help: "Total fallback operations by reason",
	}, []string{"reason"})
)

// PrometheusSink exports events as Prometheus metrics.
type PrometheusSink struct{}

// RecordOptimization implements Sink.
func (PrometheusSink) RecordOptimization(ev ImageOptimizationEvent) {
	outcome := "failure"
	switch {
	case ev.Success && ev.CacheHit:
		outcome = "cached"
	case ev.Success:
		outcome = "success"
	}
	optimizationsTotal.WithLabelValues(string(ev.ContentType), outcome).Inc()
	optimizationDuration.WithLabelValues(string(ev.ContentType)).Observe(ev.Duration.Seconds())
}

// RecordFallback implements Sink.
func (PrometheusSink) RecordFallback(ev FallbackOperationEvent) {
	optimizationsTotal.WithLabelValues(string(ev.ContentType), "fallback").Inc()
	fallbacksTotal.WithLabelValues(ev.Reason).Inc()
	optimizationDuration.WithLabelValues(string(ev.ContentType)).Observe(ev.Duration.Seconds())
}

// RecordPerformance implements Sink.
func (PrometheusSink) RecordPerformance(PerformanceMetricEvent) {
	// Stage timings are already covered by the engine and orchestrator
	// histograms; the event shape exists for external sinks.
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RecordOptimization(ImageOptimizationEvent) {}
func (NopSink) RecordFallback(FallbackOperationEvent)     {}
func (NopSink) RecordPerformance(PerformanceMetricEvent)  {}
