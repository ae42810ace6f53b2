// Package worker consumes render requests: it resolves the document's
// fragment chain, merges the parsed payloads in chain order, renders the
// template, and persists the markdown artifact. Processing is idempotent:
// every render recomputes from the full fragment set, so at-least-once
// delivery and the reconciliation sweep are both safe.
package worker

import (
	"context"
	"log/slog"
	"time"

	derrors "git.home.luguber.info/inful/docweaver/internal/errors"
	"git.home.luguber.info/inful/docweaver/internal/files"
	"git.home.luguber.info/inful/docweaver/internal/logfields"
	"git.home.luguber.info/inful/docweaver/internal/metrics"
	"git.home.luguber.info/inful/docweaver/internal/notify"
	"git.home.luguber.info/inful/docweaver/internal/queue"
	"git.home.luguber.info/inful/docweaver/internal/render"
	"git.home.luguber.info/inful/docweaver/internal/resolver"
	"git.home.luguber.info/inful/docweaver/internal/sanitize"
)

// TemplateSource resolves templates for a stage and document kind.
type TemplateSource interface {
	Lookup(stage, documentKey string) (*render.Template, bool)
}

// Worker processes render requests.
type Worker struct {
	resolver  *resolver.Resolver
	templates TemplateSource
	gateway   *files.Gateway
	notifier  notify.Notifier
	recorder  metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// Deps bundles the worker's collaborators.
type Deps struct {
	Resolver  *resolver.Resolver
	Templates TemplateSource
	Gateway   *files.Gateway
	Notifier  notify.Notifier
	Recorder  metrics.Recorder
	Logger    *slog.Logger
}

// New creates a Worker.
func New(deps Deps) *Worker {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Recorder == nil {
		deps.Recorder = metrics.NoopRecorder{}
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NopNotifier{}
	}
	return &Worker{
		resolver:  deps.Resolver,
		templates: deps.Templates,
		gateway:   deps.Gateway,
		notifier:  deps.Notifier,
		recorder:  deps.Recorder,
		logger:    deps.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ProcessRenderRequest renders one document end to end. On failure the
// previous rendered artifact, if any, is left untouched.
func (w *Worker) ProcessRenderRequest(ctx context.Context, req queue.RenderRequest) error {
	// Requests may be replayed or hand-built; validate again before any
	// side effect.
	if err := req.Validate(); err != nil {
		return err
	}

	started := w.now()
	w.publish(ctx, notify.Event{
		Type:             notify.EventRenderStarted,
		SessionID:        req.SessionID,
		Stage:            req.StageSlug,
		Iteration:        req.IterationNumber,
		DocumentKey:      req.DocumentKey,
		DocumentIdentity: req.DocumentIdentity,
		FragmentID:       req.SourceContributionID,
	})

	tpl, ok := w.templates.Lookup(req.StageSlug, req.DocumentKey)
	if !ok {
		err := derrors.RenderFailure(nil, "no template declared for document kind")
		return w.fail(ctx, req, err)
	}

	resolved, err := w.resolver.Resolve(ctx, req.DocumentRef())
	if err != nil {
		return w.fail(ctx, req, err)
	}

	payloads := make([]*sanitize.Object, 0, len(resolved))
	for _, rf := range resolved {
		payloads = append(payloads, render.PayloadFromBody(rf.Body))
	}
	merged := render.MergePayloads(payloads)

	markdown, err := render.Render(tpl, merged)
	if err != nil {
		return w.fail(ctx, req, derrors.RenderFailure(err, "rendering document"))
	}

	spec := files.PathSpec{
		ProjectID: req.ProjectID,
		SessionID: req.SessionID,
		Iteration: req.IterationNumber,
		Stage:     req.StageSlug,
	}
	path, err := w.gateway.StoreRendered(ctx, spec, req.DocumentKey, []byte(markdown))
	if err != nil {
		return w.fail(ctx, req, err)
	}

	w.publish(ctx, notify.Event{
		Type:             notify.EventRenderChunkCompleted,
		SessionID:        req.SessionID,
		Stage:            req.StageSlug,
		Iteration:        req.IterationNumber,
		DocumentKey:      req.DocumentKey,
		DocumentIdentity: req.DocumentIdentity,
		FragmentID:       req.SourceContributionID,
	})
	w.publish(ctx, notify.Event{
		Type:             notify.EventRenderCompleted,
		SessionID:        req.SessionID,
		Stage:            req.StageSlug,
		Iteration:        req.IterationNumber,
		DocumentKey:      req.DocumentKey,
		DocumentIdentity: req.DocumentIdentity,
		FragmentID:       req.SourceContributionID,
		Path:             path,
		Title:            render.DocumentTitle([]byte(markdown)),
	})

	duration := w.now().Sub(started)
	w.recorder.IncRenderResult(req.DocumentKey, metrics.RenderSuccess)
	w.recorder.ObserveRenderDuration(req.DocumentKey, duration)
	w.logger.Info("document rendered",
		logfields.DocumentIdentity(req.DocumentIdentity),
		logfields.DocumentKey(req.DocumentKey),
		logfields.Path(path),
		slog.Int("fragments", len(resolved)),
		slog.Duration(logfields.KeyDuration, duration))
	return nil
}

// Run consumes render requests from the queue until the context is
// cancelled.
func (w *Worker) Run(ctx context.Context, q *queue.NATSQueue, durable string) error {
	return q.Consume(ctx, durable, w.ProcessRenderRequest)
}

func (w *Worker) fail(ctx context.Context, req queue.RenderRequest, err error) error {
	w.recorder.IncRenderResult(req.DocumentKey, metrics.RenderFailed)
	w.publish(ctx, notify.Event{
		Type:             notify.EventRenderFailed,
		SessionID:        req.SessionID,
		Stage:            req.StageSlug,
		Iteration:        req.IterationNumber,
		DocumentKey:      req.DocumentKey,
		DocumentIdentity: req.DocumentIdentity,
		FragmentID:       req.SourceContributionID,
		Reason:           err.Error(),
	})
	w.logger.Error("render failed",
		logfields.DocumentIdentity(req.DocumentIdentity),
		logfields.DocumentKey(req.DocumentKey),
		logfields.Error(err))
	return err
}

func (w *Worker) publish(ctx context.Context, event notify.Event) {
	if err := w.notifier.Publish(ctx, event); err != nil {
		w.logger.Error("failed to publish render event",
			slog.String("type", event.Type),
			logfields.Error(err))
	}
}
