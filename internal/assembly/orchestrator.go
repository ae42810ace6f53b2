// Package assembly decides, once per completed model call, whether the
// response is complete, needs continuation, or is malformed; persists the
// fragment and its identity bookkeeping; and triggers rendering.
package assembly

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	derrors "git.home.luguber.info/inful/docweaver/internal/errors"
	"git.home.luguber.info/inful/docweaver/internal/files"
	"git.home.luguber.info/inful/docweaver/internal/fragment"
	"git.home.luguber.info/inful/docweaver/internal/logfields"
	"git.home.luguber.info/inful/docweaver/internal/metastore"
	"git.home.luguber.info/inful/docweaver/internal/metrics"
	"git.home.luguber.info/inful/docweaver/internal/notify"
	"git.home.luguber.info/inful/docweaver/internal/queue"
	"git.home.luguber.info/inful/docweaver/internal/retry"
	"git.home.luguber.info/inful/docweaver/internal/sanitize"
)

// Chunk is one completed model call handed to the orchestrator by the job
// system. For continuations the job system supplies the parent fragment and
// the root identity; for root chunks both are empty.
type Chunk struct {
	ProjectID   string
	SessionID   string
	Stage       string
	Iteration   int
	DocumentKey string
	ModelSlug   string
	// Attempt counts re-runs of this logical step after malformed output.
	Attempt int
	// EditVersion is the chunk's chain position, assigned by the job system.
	EditVersion int

	FinishReason string // raw provider finish string
	Body         []byte // raw model output

	// TargetFragmentID is the fragment this chunk continues ("" for root).
	TargetFragmentID string
	// RootIdentity is the document identity supplied by the caller. It is
	// required for continuations and ignored for roots, whose identity is
	// always their own id.
	RootIdentity string
	SourceGroup  string

	// Pass-through credential context for the asynchronous render step.
	WalletID string
	UserJWT  string
	ModelID  string
}

// KindRegistry declares which document kinds render to markdown.
type KindRegistry interface {
	IsMarkdownKind(documentKey string) bool
}

// Orchestrator runs the per-chunk state machine. All collaborators are
// injected; there is no ambient state.
type Orchestrator struct {
	gateway  *files.Gateway
	meta     metastore.Store
	enqueuer queue.Enqueuer
	notifier notify.Notifier
	kinds    KindRegistry
	recorder metrics.Recorder
	logger   *slog.Logger
	policy   retry.Policy

	now   func() time.Time
	newID func() string
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Gateway  *files.Gateway
	Meta     metastore.Store
	Enqueuer queue.Enqueuer
	Notifier notify.Notifier
	Kinds    KindRegistry
	Recorder metrics.Recorder
	Logger   *slog.Logger
	// Policy bounds re-runs after malformed model output.
	Policy retry.Policy
}

// New creates an Orchestrator.
func New(deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Recorder == nil {
		deps.Recorder = metrics.NoopRecorder{}
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NopNotifier{}
	}
	if deps.Policy == (retry.Policy{}) {
		deps.Policy = retry.DefaultPolicy()
	}
	return &Orchestrator{
		gateway:  deps.Gateway,
		meta:     deps.Meta,
		enqueuer: deps.Enqueuer,
		notifier: deps.Notifier,
		kinds:    deps.Kinds,
		recorder: deps.Recorder,
		logger:   deps.Logger,
		policy:   deps.Policy,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.NewString() },
	}
}

// HandleChunk runs the state machine for one chunk. The returned error is
// nil for completed and continuation outcomes; retryable and fatal outcomes
// carry the underlying cause so the job system can apply its own
// retry/backoff policy.
func (o *Orchestrator) HandleChunk(ctx context.Context, chunk Chunk) (Outcome, error) {
	started := o.now()
	defer func() {
		o.recorder.ObserveChunkDuration(chunk.Stage, o.now().Sub(started))
	}()

	finish := fragment.ClassifyFinishReason(chunk.FinishReason)

	// Parse before anything else: a malformed body is never persisted and
	// never treated as a continuation signal.
	if _, err := sanitize.Payload(chunk.Body); err != nil {
		return o.malformed(chunk, err)
	}

	// Continuations must arrive with the root identity; there is nothing
	// safe to persist against without it.
	if chunk.TargetFragmentID != "" && chunk.RootIdentity == "" {
		err := derrors.MissingDocumentIdentity("continuation chunk has no root identity")
		return o.fatal(chunk, err)
	}

	frag := o.buildFragment(chunk)
	spec := files.PathSpec{
		ProjectID: chunk.ProjectID,
		SessionID: chunk.SessionID,
		Iteration: chunk.Iteration,
		Stage:     chunk.Stage,
	}
	if err := o.gateway.StoreFragment(ctx, spec, frag, chunk.Body); err != nil {
		return o.fatal(chunk, err)
	}
	o.recorder.IncFragmentPersisted(chunk.Stage)

	// Re-persist and read back the relationships map. A write that loses
	// the stage key leaves no identity to render against, which is fatal.
	persisted, err := o.meta.UpdateRelationships(ctx, frag.ID, frag.Relationships)
	if err != nil {
		return o.fatal(chunk, derrors.PersistenceFailure(err, "persisting document relationships"))
	}
	identity := persisted.Root(chunk.Stage)
	if identity == "" {
		err := derrors.MissingDocumentIdentity("persisted relationships lost the stage key")
		return o.fatal(chunk, err)
	}

	if err := o.enqueueRender(ctx, chunk, frag, identity); err != nil {
		return o.fatal(chunk, err)
	}

	o.notifyChunk(ctx, chunk, frag, identity, finish)

	outcome := Outcome{
		Status:           StatusContinuationNeeded,
		FragmentID:       frag.ID,
		DocumentIdentity: identity,
	}
	if finish.Complete() {
		outcome.Status = StatusCompleted
	}
	o.recorder.IncChunkOutcome(chunk.Stage, outcomeMetric(outcome.Status))

	o.logger.Info("chunk assembled",
		logfields.FragmentID(frag.ID),
		logfields.DocumentIdentity(identity),
		logfields.Stage(chunk.Stage),
		logfields.Outcome(string(outcome.Status)))
	return outcome, nil
}

// buildFragment materializes the chunk as a fragment row. Root chunks get a
// self-referential relationships entry, silently overwriting anything the
// caller pre-populated: the root's identity is authoritative, never
// externally supplied. Continuations copy the root identity and never write
// their own id there.
func (o *Orchestrator) buildFragment(chunk Chunk) *fragment.Fragment {
	id := o.newID()
	rel := fragment.Relationships{}
	if chunk.TargetFragmentID == "" {
		rel[fragment.StageKey(chunk.Stage)] = id
	} else {
		rel[fragment.StageKey(chunk.Stage)] = chunk.RootIdentity
	}
	if chunk.SourceGroup != "" {
		rel[fragment.SourceGroupKey] = chunk.SourceGroup
	}

	return &fragment.Fragment{
		ID:            id,
		SessionID:     chunk.SessionID,
		Stage:         chunk.Stage,
		Iteration:     chunk.Iteration,
		EditVersion:   chunk.EditVersion,
		CreatedAt:     o.now(),
		TargetID:      chunk.TargetFragmentID,
		IsLatestEdit:  true,
		Relationships: rel,
		DocumentKey:   chunk.DocumentKey,
		ModelSlug:     chunk.ModelSlug,
		Attempt:       chunk.Attempt,
	}
}

// enqueueRender submits a render request for markdown kinds. The request is
// validated before the publish; a validation failure aborts the chunk so it
// can never be reported successful while silently unrendered.
func (o *Orchestrator) enqueueRender(ctx context.Context, chunk Chunk, frag *fragment.Fragment, identity string) error {
	if o.kinds == nil || !o.kinds.IsMarkdownKind(chunk.DocumentKey) {
		return nil
	}
	req := queue.RenderRequest{
		ProjectID:            chunk.ProjectID,
		SessionID:            chunk.SessionID,
		IterationNumber:      chunk.Iteration,
		StageSlug:            chunk.Stage,
		DocumentIdentity:     identity,
		DocumentKey:          chunk.DocumentKey,
		SourceContributionID: frag.ID,
		WalletID:             chunk.WalletID,
		UserJWT:              chunk.UserJWT,
		ModelID:              chunk.ModelID,
	}
	if err := req.Validate(); err != nil {
		return err
	}
	return o.enqueuer.Enqueue(ctx, req)
}

func (o *Orchestrator) notifyChunk(ctx context.Context, chunk Chunk, frag *fragment.Fragment, identity string, finish fragment.FinishReason) {
	eventType := notify.EventChunkCompleted
	if finish.Complete() {
		eventType = notify.EventDocumentCompleted
	}
	event := notify.Event{
		Type:             eventType,
		SessionID:        chunk.SessionID,
		Stage:            chunk.Stage,
		Iteration:        chunk.Iteration,
		DocumentKey:      chunk.DocumentKey,
		DocumentIdentity: identity,
		FragmentID:       frag.ID,
	}
	if err := o.notifier.Publish(ctx, event); err != nil {
		// The fragment is already persisted and the render enqueued;
		// failing the chunk now would duplicate both on redelivery.
		o.logger.Error("failed to publish chunk event",
			slog.String("type", eventType),
			logfields.FragmentID(frag.ID),
			logfields.Error(err))
	}
}

func (o *Orchestrator) malformed(chunk Chunk, cause error) (Outcome, error) {
	err := derrors.MalformedJSON(cause)
	if chunk.Attempt >= o.policy.MaxRetries {
		o.recorder.IncChunkOutcome(chunk.Stage, metrics.OutcomeFatal)
		fatal := derrors.Wrap(err, derrors.CategoryMalformedJSON, derrors.SeverityFatal,
			"parse retries exhausted")
		return Outcome{Status: StatusFatal, Reason: fatal.Message}, fatal
	}

	o.recorder.IncParseRetry(chunk.Stage)
	o.recorder.IncChunkOutcome(chunk.Stage, metrics.OutcomeRetryable)
	o.logger.Warn("malformed model output, retrying step",
		logfields.Stage(chunk.Stage),
		logfields.DocumentKey(chunk.DocumentKey),
		logfields.Attempt(chunk.Attempt),
		logfields.Error(err))
	return Outcome{
		Status:      StatusRetryable,
		Reason:      err.Message,
		NextAttempt: chunk.Attempt + 1,
	}, err
}

func (o *Orchestrator) fatal(chunk Chunk, err error) (Outcome, error) {
	o.recorder.IncChunkOutcome(chunk.Stage, metrics.OutcomeFatal)
	o.logger.Error("chunk handling failed",
		logfields.Stage(chunk.Stage),
		logfields.DocumentKey(chunk.DocumentKey),
		logfields.Error(err))
	return Outcome{Status: StatusFatal, Reason: err.Error()}, err
}

func outcomeMetric(s Status) metrics.ChunkOutcome {
	switch s {
	case StatusCompleted:
		return metrics.OutcomeCompleted
	case StatusContinuationNeeded:
		return metrics.OutcomeContinuation
	case StatusRetryable:
		return metrics.OutcomeRetryable
	default:
		return metrics.OutcomeFatal
	}
}
