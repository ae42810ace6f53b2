// Package queue carries render requests from the orchestrator to the render
// worker with at-least-once delivery. Requests are validated before any
// side-effecting call: a request with no document key or identity must fail
// loudly instead of producing a job that silently never renders.
package queue

import (
	"context"

	"github.com/go-playground/validator/v10"

	derrors "git.home.luguber.info/inful/docweaver/internal/errors"
	"git.home.luguber.info/inful/docweaver/internal/fragment"
)

// RenderRequest asks the worker to (re)render one document. The identity is
// always the root fragment id; SourceContributionID is the fragment that
// triggered this request, which for continuations differs from the identity.
type RenderRequest struct {
	ProjectID            string `json:"projectId" validate:"required"`
	SessionID            string `json:"sessionId" validate:"required"`
	IterationNumber      int    `json:"iterationNumber" validate:"gte=0"`
	StageSlug            string `json:"stageSlug" validate:"required"`
	DocumentIdentity     string `json:"documentIdentity" validate:"required"`
	DocumentKey          string `json:"documentKey" validate:"required"`
	SourceContributionID string `json:"sourceContributionId" validate:"required"`

	// Pass-through context for later asynchronous execution.
	WalletID string `json:"walletId,omitempty"`
	UserJWT  string `json:"user_jwt,omitempty"`
	ModelID  string `json:"model_id,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the request before any side effect. Missing document key
// and identity get their own categories since they are the failures most
// likely to be swallowed upstream.
func (r *RenderRequest) Validate() error {
	if r.DocumentKey == "" {
		return derrors.MissingDocumentKey("render request has no document key")
	}
	if r.DocumentIdentity == "" {
		return derrors.MissingDocumentIdentity("render request has no document identity")
	}
	if err := validate.Struct(r); err != nil {
		return derrors.Wrap(err, derrors.CategoryValidation, derrors.SeverityFatal,
			"render request failed validation")
	}
	return nil
}

// DocumentRef converts the request into the resolver's document reference.
func (r *RenderRequest) DocumentRef() fragment.DocumentRef {
	return fragment.DocumentRef{
		SessionID: r.SessionID,
		Iteration: r.IterationNumber,
		Stage:     r.StageSlug,
		Identity:  r.DocumentIdentity,
		Key:       r.DocumentKey,
	}
}

// Enqueuer submits render requests for asynchronous processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, req RenderRequest) error
	Close() error
}
