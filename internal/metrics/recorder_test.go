package metrics

import (
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// TestNoopRecorderIsSafe ensures the noop recorder can be called freely.
func TestNoopRecorderIsSafe(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.IncChunkOutcome("thesis", OutcomeCompleted)
	r.IncFragmentPersisted("thesis")
	r.IncParseRetry("thesis")
	r.IncRenderResult("business_case", RenderSuccess)
	r.ObserveRenderDuration("business_case", time.Second)
	r.ObserveChunkDuration("thesis", time.Second)
}

// TestPrometheusRecorderRegisters verifies all collectors register and count.
func TestPrometheusRecorderRegisters(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewPrometheusRecorder(reg)

	r.IncChunkOutcome("thesis", OutcomeCompleted)
	r.IncChunkOutcome("thesis", OutcomeRetryable)
	r.IncFragmentPersisted("thesis")
	r.IncParseRetry("thesis")
	r.IncRenderResult("business_case", RenderSuccess)
	r.ObserveRenderDuration("business_case", 250*time.Millisecond)
	r.ObserveChunkDuration("thesis", 10*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"docweaver_chunk_outcomes_total",
		"docweaver_fragments_persisted_total",
		"docweaver_parse_retries_total",
		"docweaver_render_results_total",
		"docweaver_render_duration_seconds",
		"docweaver_chunk_duration_seconds",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

// TestNilReceiverGuards ensures a nil PrometheusRecorder never panics.
func TestNilReceiverGuards(t *testing.T) {
	var p *PrometheusRecorder
	p.IncChunkOutcome("thesis", OutcomeFatal)
	p.IncFragmentPersisted("thesis")
	p.IncParseRetry("thesis")
	p.IncRenderResult("doc", RenderFailed)
	p.ObserveRenderDuration("doc", time.Second)
	p.ObserveChunkDuration("thesis", time.Second)
}

// TestOutcomeLabels pins the label spellings consumers alert on.
func TestOutcomeLabels(t *testing.T) {
	for _, o := range []ChunkOutcome{OutcomeCompleted, OutcomeContinuation, OutcomeRetryable, OutcomeFatal} {
		if strings.ToLower(string(o)) != string(o) {
			t.Errorf("outcome label %q must be lower-case", o)
		}
	}
}
