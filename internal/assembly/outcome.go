package assembly

// Status is the explicit per-chunk result consumed by the job system's
// state machine instead of exception-style control flow.
type Status string

const (
	// StatusCompleted: the chunk was persisted and the model stopped on
	// its own; the document chain is finished.
	StatusCompleted Status = "completed"
	// StatusContinuationNeeded: the chunk was persisted but the model ran
	// out of tokens; the caller should request another model call.
	StatusContinuationNeeded Status = "continuation_needed"
	// StatusRetryable: nothing was persisted; the same logical step should
	// be re-run with the incremented attempt counter.
	StatusRetryable Status = "retryable"
	// StatusFatal: nothing further may happen for this chunk; the error
	// propagates to the job system.
	StatusFatal Status = "fatal"
)

// Outcome is the result of handling one chunk.
type Outcome struct {
	Status           Status
	FragmentID       string // set when a fragment was persisted
	DocumentIdentity string // root fragment id, set when known
	Reason           string // populated for retryable and fatal outcomes
	NextAttempt      int    // populated for retryable outcomes
}
