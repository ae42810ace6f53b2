package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "git.home.luguber.info/inful/docweaver/internal/errors"
)

func validRequest() RenderRequest {
	return RenderRequest{
		ProjectID:            "proj-1",
		SessionID:            "sess-1",
		IterationNumber:      1,
		StageSlug:            "thesis",
		DocumentIdentity:     "root-1",
		DocumentKey:          "business_case",
		SourceContributionID: "frag-2",
	}
}

func TestValidateAcceptsCompleteRequest(t *testing.T) {
	req := validRequest()
	assert.NoError(t, req.Validate())
}

func TestValidateMissingDocumentKey(t *testing.T) {
	req := validRequest()
	req.DocumentKey = ""
	err := req.Validate()
	require.Error(t, err)
	assert.True(t, derrors.IsCategory(err, derrors.CategoryMissingDocumentKey))
}

func TestValidateMissingDocumentIdentity(t *testing.T) {
	req := validRequest()
	req.DocumentIdentity = ""
	err := req.Validate()
	require.Error(t, err)
	assert.True(t, derrors.IsCategory(err, derrors.CategoryMissingDocumentIdentity))
}

func TestValidateMissingScope(t *testing.T) {
	req := validRequest()
	req.SessionID = ""
	err := req.Validate()
	require.Error(t, err)
	assert.True(t, derrors.IsCategory(err, derrors.CategoryValidation))
}

func TestMemQueueValidatesBeforeAccepting(t *testing.T) {
	q := NewMemQueue()
	bad := validRequest()
	bad.DocumentKey = ""
	require.Error(t, q.Enqueue(context.Background(), bad))
	assert.Empty(t, q.Requests())

	require.NoError(t, q.Enqueue(context.Background(), validRequest()))
	assert.Len(t, q.Requests(), 1)
}

func TestDocumentRef(t *testing.T) {
	req := validRequest()
	ref := req.DocumentRef()
	assert.Equal(t, "sess-1", ref.SessionID)
	assert.Equal(t, 1, ref.Iteration)
	assert.Equal(t, "thesis", ref.Stage)
	assert.Equal(t, "root-1", ref.Identity)
	assert.Equal(t, "business_case", ref.Key)
}
