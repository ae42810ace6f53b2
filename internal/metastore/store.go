// Package metastore persists fragment metadata rows and answers the
// resolver's chain query: equality on session and iteration plus containment
// on the relationships map keyed by the upper-cased stage name, ordered by
// (edit_version, created_at).
package metastore

import (
	"context"
	"time"

	"git.home.luguber.info/inful/docweaver/internal/fragment"
)

// ChainQuery selects every fragment belonging to one logical document.
type ChainQuery struct {
	SessionID string
	Iteration int
	Stage     string // slug; normalized to the upper-cased key internally
	Identity  string // root fragment id
}

// DocumentActivity summarizes recent fragment writes for one document, used
// by the reconciliation sweep.
type DocumentActivity struct {
	ProjectID  string
	Ref        fragment.DocumentRef
	LastRecord time.Time
}

// Store is the metadata store interface consumed by the resolver and the
// orchestrator.
type Store interface {
	// Insert appends a new fragment row. Fragment ids are unique; inserting
	// a duplicate id is an error.
	Insert(ctx context.Context, f *fragment.Fragment) error

	// Get returns one fragment by id, or ErrFragmentNotFound.
	Get(ctx context.Context, id string) (*fragment.Fragment, error)

	// ListChain returns all fragments of one document ordered ascending by
	// (edit_version, created_at). Fragments of other documents in the same
	// session are never returned.
	ListChain(ctx context.Context, q ChainQuery) ([]*fragment.Fragment, error)

	// UpdateRelationships replaces a fragment's relationships map and
	// returns the persisted value so callers can verify the stage key
	// survived the write.
	UpdateRelationships(ctx context.Context, id string, rel fragment.Relationships) (fragment.Relationships, error)

	// MarkSuperseded flips is_latest_edit to false on the given fragment.
	// This is the only permitted row mutation besides UpdateRelationships.
	MarkSuperseded(ctx context.Context, id string) error

	// ListActiveSince returns one entry per document that received fragment
	// writes at or after the given time.
	ListActiveSince(ctx context.Context, since time.Time) ([]DocumentActivity, error)

	// Close closes the underlying database.
	Close() error
}

// ErrFragmentNotFound is returned when a fragment id doesn't exist.
type ErrFragmentNotFound struct {
	ID string
}

func (e ErrFragmentNotFound) Error() string {
	return "fragment not found: " + e.ID
}
