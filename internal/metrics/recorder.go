// Package metrics provides observability hooks for the assembly and render
// pipelines. The NoopRecorder is the default so components never need nil
// checks; a Prometheus-backed recorder is swapped in when configured.
package metrics

import "time"

// ChunkOutcome enumerates the orchestrator's per-chunk outcomes for counters.
type ChunkOutcome string

const (
	OutcomeCompleted    ChunkOutcome = "completed"
	OutcomeContinuation ChunkOutcome = "continuation"
	OutcomeRetryable    ChunkOutcome = "retryable"
	OutcomeFatal        ChunkOutcome = "fatal"
)

// RenderResult enumerates render worker outcomes.
type RenderResult string

const (
	RenderSuccess RenderResult = "success"
	RenderFailed  RenderResult = "failed"
)

// Recorder defines observability hooks for the assembly and render
// pipelines. Implementations may forward to Prometheus, OpenTelemetry, etc.
// All methods must be safe on the NoopRecorder so injection stays optional.
type Recorder interface {
	IncChunkOutcome(stage string, outcome ChunkOutcome)
	IncFragmentPersisted(stage string)
	IncParseRetry(stage string)
	IncRenderResult(documentKey string, result RenderResult)
	ObserveRenderDuration(documentKey string, d time.Duration)
	ObserveChunkDuration(stage string, d time.Duration)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncChunkOutcome(string, ChunkOutcome)        {}
func (NoopRecorder) IncFragmentPersisted(string)                 {}
func (NoopRecorder) IncParseRetry(string)                        {}
func (NoopRecorder) IncRenderResult(string, RenderResult)        {}
func (NoopRecorder) ObserveRenderDuration(string, time.Duration) {}
func (NoopRecorder) ObserveChunkDuration(string, time.Duration)  {}
