package metrics

import (
	"time"

	"github.com/covlens/covlens/internal/core/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics instruments the worker-side extraction pipeline. It
// satisfies the pipeline observer port, so the processing use case stays
// free of prometheus imports.
type PipelineMetrics struct {
	Registry *prometheus.Registry

	DocumentsProcessed *prometheus.CounterVec
	ProcessDuration    prometheus.Histogram
	RowsExtracted      prometheus.Counter
	MappingsTotal      *prometheus.CounterVec
	WarningsTotal      *prometheus.CounterVec
	GuardrailHits      *prometheus.CounterVec
	ProjectionsTotal   *prometheus.CounterVec
	QueueLagSeconds    prometheus.Histogram
}

func NewPipelineMetrics() *PipelineMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &PipelineMetrics{
		Registry: reg,
		DocumentsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covlens",
			Subsystem: "pipeline",
			Name:      "documents_total",
			Help:      "Processed proposal documents by terminal status.",
		}, []string{"status"}),
		ProcessDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "covlens",
			Subsystem: "pipeline",
			Name:      "process_duration_seconds",
			Help:      "Wall-clock time to process one proposal document.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		RowsExtracted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "covlens",
			Subsystem: "pipeline",
			Name:      "rows_extracted_total",
			Help:      "Coverage rows extracted from proposal documents.",
		}),
		MappingsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covlens",
			Subsystem: "pipeline",
			Name:      "mappings_total",
			Help:      "Mapping outcomes by status.",
		}, []string{"status"}),
		WarningsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covlens",
			Subsystem: "pipeline",
			Name:      "extraction_warnings_total",
			Help:      "Extraction warnings by field.",
		}, []string{"field"}),
		GuardrailHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covlens",
			Subsystem: "pipeline",
			Name:      "guardrail_violations_total",
			Help:      "Records rejected by a guardrail check.",
		}, []string{"check"}),
		ProjectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "covlens",
			Subsystem: "pipeline",
			Name:      "scope_projections_total",
			Help:      "Disease scope projections into the lineage graph.",
		}, []string{"outcome"}),
		QueueLagSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "covlens",
			Subsystem: "pipeline",
			Name:      "queue_lag_seconds",
			Help:      "Delay between event publication and worker pickup.",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 60, 300},
		}),
	}
}

// ObserveQueueLag records how long an ingestion event waited between
// publication and worker pickup.
func (m *PipelineMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		lag = 0
	}
	m.QueueLagSeconds.Observe(lag.Seconds())
}

// ObserveDocumentOutcome classifies one processed document. Batch-fatal
// reference faults count apart from per-document failures: they indict the
// reference data, not the document.
func (m *PipelineMetrics) ObserveDocumentOutcome(err error) {
	switch {
	case err == nil:
		m.DocumentsProcessed.WithLabelValues("ready").Inc()
	case domain.IsFatal(err):
		m.DocumentsProcessed.WithLabelValues("aborted").Inc()
	default:
		m.DocumentsProcessed.WithLabelValues("failed").Inc()
	}
}

func (m *PipelineMetrics) ObserveExtraction(documentID string, rows int) {
	m.RowsExtracted.Add(float64(rows))
}

func (m *PipelineMetrics) ObserveMapping(status domain.MappingStatus) {
	m.MappingsTotal.WithLabelValues(string(status)).Inc()
}

func (m *PipelineMetrics) ObserveWarning(warning domain.ExtractionWarning) {
	m.WarningsTotal.WithLabelValues(warning.Field).Inc()
}

func (m *PipelineMetrics) ObserveGuardrail(check string) {
	m.GuardrailHits.WithLabelValues(check).Inc()
}

func (m *PipelineMetrics) ObserveProjection(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ProjectionsTotal.WithLabelValues(outcome).Inc()
}
