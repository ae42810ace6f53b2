package assembly

import (
	"context"
	"errors"
	"log/slog"

	derrors "git.home.luguber.info/inful/docweaver/internal/errors"
	"git.home.luguber.info/inful/docweaver/internal/files"
	"git.home.luguber.info/inful/docweaver/internal/fragment"
	"git.home.luguber.info/inful/docweaver/internal/logfields"
	"git.home.luguber.info/inful/docweaver/internal/metastore"
)

// EditRequest replaces a model fragment's body with user-authored content.
// The body may be markdown prose; it is not required to parse as JSON.
type EditRequest struct {
	ProjectID          string
	SessionID          string
	Stage              string
	Iteration          int
	DocumentKey        string
	OriginalFragmentID string
	Body               []byte

	WalletID string
	UserJWT  string
	ModelID  string
}

// HandleEdit persists a user edit. The edit keeps the original's chain
// position (same edit_version) and copies its document identity; earlier
// edits of the same original are marked superseded. A re-render is enqueued
// so the artifact reflects the edit.
func (o *Orchestrator) HandleEdit(ctx context.Context, req EditRequest) (Outcome, error) {
	original, err := o.meta.Get(ctx, req.OriginalFragmentID)
	if err != nil {
		var notFound metastore.ErrFragmentNotFound
		if errors.As(err, &notFound) {
			return o.fatalEdit(req, derrors.DocumentNotFound(req.OriginalFragmentID))
		}
		return o.fatalEdit(req, derrors.PersistenceFailure(err, "loading original fragment"))
	}

	identity := original.DocumentIdentity()
	if identity == "" {
		err := derrors.MissingDocumentIdentity("original fragment has no document identity")
		return o.fatalEdit(req, err)
	}

	// Supersede every earlier edit of this original.
	chain, err := o.meta.ListChain(ctx, metastore.ChainQuery{
		SessionID: req.SessionID,
		Iteration: req.Iteration,
		Stage:     req.Stage,
		Identity:  identity,
	})
	if err != nil {
		return o.fatalEdit(req, derrors.PersistenceFailure(err, "listing document chain"))
	}
	for _, f := range chain {
		if f.OriginalID == original.ID && f.IsLatestEdit {
			if err := o.meta.MarkSuperseded(ctx, f.ID); err != nil {
				return o.fatalEdit(req, derrors.PersistenceFailure(err, "superseding previous edit"))
			}
		}
	}

	edit := &fragment.Fragment{
		ID:            o.newID(),
		SessionID:     req.SessionID,
		Stage:         req.Stage,
		Iteration:     req.Iteration,
		EditVersion:   original.EditVersion, // keeps the original's chain position
		CreatedAt:     o.now(),
		TargetID:      original.TargetID,
		IsLatestEdit:  true,
		OriginalID:    original.ID,
		Relationships: original.Relationships.Clone(),
		DocumentKey:   req.DocumentKey,
		ModelSlug:     original.ModelSlug,
	}
	spec := files.PathSpec{
		ProjectID: req.ProjectID,
		SessionID: req.SessionID,
		Iteration: req.Iteration,
		Stage:     req.Stage,
	}
	if err := o.gateway.StoreFragment(ctx, spec, edit, req.Body); err != nil {
		return o.fatalEdit(req, err)
	}
	o.recorder.IncFragmentPersisted(req.Stage)

	chunk := Chunk{
		ProjectID:   req.ProjectID,
		SessionID:   req.SessionID,
		Stage:       req.Stage,
		Iteration:   req.Iteration,
		DocumentKey: req.DocumentKey,
		WalletID:    req.WalletID,
		UserJWT:     req.UserJWT,
		ModelID:     req.ModelID,
	}
	if err := o.enqueueRender(ctx, chunk, edit, identity); err != nil {
		return o.fatalEdit(req, err)
	}
	o.notifyChunk(ctx, chunk, edit, identity, fragment.FinishStop)

	o.recorder.IncChunkOutcome(req.Stage, outcomeMetric(StatusCompleted))
	o.logger.Info("user edit persisted",
		logfields.FragmentID(edit.ID),
		slog.String("original_fragment_id", original.ID),
		logfields.DocumentIdentity(identity))

	return Outcome{
		Status:           StatusCompleted,
		FragmentID:       edit.ID,
		DocumentIdentity: identity,
	}, nil
}

func (o *Orchestrator) fatalEdit(req EditRequest, err error) (Outcome, error) {
	o.recorder.IncChunkOutcome(req.Stage, outcomeMetric(StatusFatal))
	o.logger.Error("edit handling failed",
		logfields.Stage(req.Stage),
		slog.String("original_fragment_id", req.OriginalFragmentID),
		logfields.Error(err))
	return Outcome{Status: StatusFatal, Reason: err.Error()}, err
}
