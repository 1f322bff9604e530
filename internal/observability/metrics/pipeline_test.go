package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/covlens/covlens/internal/core/domain"
)

func TestObserveQueueLag(t *testing.T) {
	m := NewPipelineMetrics()
	m.ObserveQueueLag(250 * time.Millisecond)
	m.ObserveQueueLag(-time.Second) // clock skew between publisher and worker

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "covlens_pipeline_queue_lag_seconds" {
			continue
		}
		hist := mf.GetMetric()[0].GetHistogram()
		if got := hist.GetSampleCount(); got != 2 {
			t.Fatalf("queue lag sample count = %d, want 2", got)
		}
		if got := hist.GetSampleSum(); got != 0.25 {
			t.Fatalf("queue lag sample sum = %v, want 0.25 (negative lag clamps to zero)", got)
		}
		return
	}
	t.Fatalf("queue lag histogram not registered")
}

func TestObserveDocumentOutcome(t *testing.T) {
	m := NewPipelineMetrics()
	m.ObserveDocumentOutcome(nil)
	m.ObserveDocumentOutcome(domain.WrapError(domain.ErrMappingTableUnavailable, "load mapping table snapshot", errors.New("workbook missing")))
	m.ObserveDocumentOutcome(domain.WrapError(domain.ErrReferenceDataCorrupt, "build reference snapshot", errors.New("duplicate canonical coverage")))
	m.ObserveDocumentOutcome(errors.New("pdf extraction failed"))

	for status, want := range map[string]float64{"ready": 1, "aborted": 2, "failed": 1} {
		if got := testutil.ToFloat64(m.DocumentsProcessed.WithLabelValues(status)); got != want {
			t.Fatalf("status %s count = %v, want %v", status, got, want)
		}
	}
}
