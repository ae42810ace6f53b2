package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once               sync.Once
	chunkOutcomes      *prom.CounterVec
	fragmentsPersisted *prom.CounterVec
	parseRetries       *prom.CounterVec
	renderResults      *prom.CounterVec
	renderDuration     *prom.HistogramVec
	chunkDuration      *prom.HistogramVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.chunkOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docweaver",
			Name:      "chunk_outcomes_total",
			Help:      "Processed chunks by stage and outcome",
		}, []string{"stage", "outcome"})
		pr.fragmentsPersisted = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docweaver",
			Name:      "fragments_persisted_total",
			Help:      "Fragments persisted by stage",
		}, []string{"stage"})
		pr.parseRetries = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docweaver",
			Name:      "parse_retries_total",
			Help:      "Bounded re-parse attempts for malformed model output",
		}, []string{"stage"})
		pr.renderResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docweaver",
			Name:      "render_results_total",
			Help:      "Render outcomes by document key",
		}, []string{"document_key", "result"})
		pr.renderDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docweaver",
			Name:      "render_duration_seconds",
			Help:      "Duration of full document renders",
			Buckets:   prom.DefBuckets,
		}, []string{"document_key"})
		pr.chunkDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docweaver",
			Name:      "chunk_duration_seconds",
			Help:      "Duration of per-chunk assembly handling",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		reg.MustRegister(pr.chunkOutcomes, pr.fragmentsPersisted, pr.parseRetries,
			pr.renderResults, pr.renderDuration, pr.chunkDuration)
	})
	return pr
}

func (p *PrometheusRecorder) IncChunkOutcome(stage string, outcome ChunkOutcome) {
	if p == nil || p.chunkOutcomes == nil {
		return
	}
	p.chunkOutcomes.WithLabelValues(stage, string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncFragmentPersisted(stage string) {
	if p == nil || p.fragmentsPersisted == nil {
		return
	}
	p.fragmentsPersisted.WithLabelValues(stage).Inc()
}

func (p *PrometheusRecorder) IncParseRetry(stage string) {
	if p == nil || p.parseRetries == nil {
		return
	}
	p.parseRetries.WithLabelValues(stage).Inc()
}

func (p *PrometheusRecorder) IncRenderResult(documentKey string, result RenderResult) {
	if p == nil || p.renderResults == nil {
		return
	}
	p.renderResults.WithLabelValues(documentKey, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveRenderDuration(documentKey string, d time.Duration) {
	if p == nil || p.renderDuration == nil {
		return
	}
	p.renderDuration.WithLabelValues(documentKey).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveChunkDuration(stage string, d time.Duration) {
	if p == nil || p.chunkDuration == nil {
		return
	}
	p.chunkDuration.WithLabelValues(stage).Observe(d.Seconds())
}
