package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/docweaver/internal/logfields"
	"git.home.luguber.info/inful/docweaver/internal/metastore"
	"git.home.luguber.info/inful/docweaver/internal/queue"
)

// KindRegistry declares which document kinds render to markdown.
type KindRegistry interface {
	IsMarkdownKind(documentKey string) bool
}

// Sweeper periodically re-enqueues renders for documents that received
// fragment writes recently. Rendering is idempotent, so a redundant sweep
// render is harmless; a sweep after a dropped render request repairs the
// artifact.
type Sweeper struct {
	meta      metastore.Store
	enqueuer  queue.Enqueuer
	kinds     KindRegistry
	window    time.Duration
	interval  time.Duration
	logger    *slog.Logger
	scheduler gocron.Scheduler
}

// NewSweeper creates a sweeper that every interval re-enqueues documents
// active within the window.
func NewSweeper(meta metastore.Store, enqueuer queue.Enqueuer, kinds KindRegistry, interval, window time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Sweeper{
		meta:      meta,
		enqueuer:  enqueuer,
		kinds:     kinds,
		window:    window,
		interval:  interval,
		logger:    logger,
		scheduler: scheduler,
	}, nil
}

// Start schedules the periodic sweep.
func (s *Sweeper) Start() error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() { s.Sweep(context.Background()) }),
		gocron.WithName("render-reconciliation"),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule reconciliation sweep: %w", err)
	}
	s.scheduler.Start()
	s.logger.Info("reconciliation sweep scheduled",
		slog.Duration("interval", s.interval),
		slog.Duration("window", s.window))
	return nil
}

// Stop shuts the scheduler down.
func (s *Sweeper) Stop() error {
	return s.scheduler.Shutdown()
}

// Sweep enqueues one render per recently active markdown document. Failures
// on individual documents are logged and do not stop the sweep; the next
// run retries them.
func (s *Sweeper) Sweep(ctx context.Context) {
	since := time.Now().Add(-s.window)
	active, err := s.meta.ListActiveSince(ctx, since)
	if err != nil {
		s.logger.Error("reconciliation sweep query failed", logfields.Error(err))
		return
	}

	enqueued := 0
	for _, act := range active {
		if !s.kinds.IsMarkdownKind(act.Ref.Key) {
			continue
		}
		req := queue.RenderRequest{
			ProjectID:        act.ProjectID,
			SessionID:        act.Ref.SessionID,
			IterationNumber:  act.Ref.Iteration,
			StageSlug:        act.Ref.Stage,
			DocumentIdentity: act.Ref.Identity,
			DocumentKey:      act.Ref.Key,
			// A sweep render is not triggered by any one chunk; it
			// originates at the document root.
			SourceContributionID: act.Ref.Identity,
		}
		if err := s.enqueuer.Enqueue(ctx, req); err != nil {
			s.logger.Error("failed to enqueue sweep render",
				logfields.DocumentIdentity(act.Ref.Identity),
				logfields.Error(err))
			continue
		}
		enqueued++
	}
	if enqueued > 0 {
		s.logger.Info("reconciliation sweep enqueued renders", slog.Int("count", enqueued))
	}
}
