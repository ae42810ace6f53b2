// Package fragment defines the data model shared by the resolver, the
// orchestrator, and the stores: one fragment is one persisted unit of model
// output, and a document is the chain of fragments rooted at its identity.
package fragment

import (
	"strings"
	"time"
)

// Relationships maps an upper-cased stage key to the id of the root fragment
// for that document within the stage. It may additionally carry the opaque
// "source_group" key, which is used only for filename disambiguation and
// never for ordering or identity.
type Relationships map[string]string

// SourceGroupKey is the one non-stage key allowed in a Relationships map.
const SourceGroupKey = "source_group"

// StageKey normalizes a stage slug to the canonical relationships key.
// Fragment rows store and query the relationships map by this key.
func StageKey(stageSlug string) string {
	return strings.ToUpper(strings.TrimSpace(stageSlug))
}

// Root returns the document identity recorded for the given stage, or ""
// when the stage key is absent.
func (r Relationships) Root(stageSlug string) string {
	if r == nil {
		return ""
	}
	return r[StageKey(stageSlug)]
}

// SourceGroup returns the opaque source group key, if any.
func (r Relationships) SourceGroup() string {
	if r == nil {
		return ""
	}
	return r[SourceGroupKey]
}

// Clone returns a copy safe to mutate.
func (r Relationships) Clone() Relationships {
	if r == nil {
		return nil
	}
	out := make(Relationships, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Fragment is one persisted unit of model output. Rows are append-only:
// the only permitted mutation is flipping IsLatestEdit to false when a newer
// edit of the same origin supersedes this one.
type Fragment struct {
	ID             string
	ProjectID      string
	SessionID      string
	Stage          string // upper-cased stage key
	Iteration      int
	EditVersion    int // chain position; ascending within a document
	CreatedAt      time.Time
	TargetID       string // parent reference: the fragment this one edits or continues ("" for root)
	IsLatestEdit   bool
	OriginalID     string // set when this fragment is a user edit of a model fragment
	Relationships  Relationships
	DocumentKey    string // logical output kind
	ModelSlug      string
	Attempt        int
	StorageBucket  string
	StoragePath    string
	FileName       string
	RawPath        string // object-store path of the raw model response body
}

// IsRoot reports whether the fragment has no parent reference. By definition
// the root's own id equals the document identity.
func (f *Fragment) IsRoot() bool {
	return f.TargetID == ""
}

// DocumentIdentity returns the root fragment id this fragment belongs to
// within its own stage, or "" if the relationships entry is missing.
func (f *Fragment) DocumentIdentity() string {
	return f.Relationships.Root(f.Stage)
}

// IsUserEdit reports whether this fragment is a user edit replacing a model
// fragment's body.
func (f *Fragment) IsUserEdit() bool {
	return f.OriginalID != ""
}

// DocumentRef identifies one logical document within a stage and iteration.
type DocumentRef struct {
	SessionID string
	Iteration int
	Stage     string // stage slug; normalized via StageKey at query time
	Identity  string // root fragment id
	Key       string // logical output kind (document key)
}

// FinishReason classifies how a model call ended.
type FinishReason string

const (
	// FinishStop means the model completed its output.
	FinishStop FinishReason = "stop"
	// FinishLength means the model ran out of tokens and the document
	// needs a continuation call.
	FinishLength FinishReason = "length"
	// FinishUnknown covers any other provider-specific value; treated as
	// needing continuation, never as malformed content.
	FinishUnknown FinishReason = "unknown"
)

// Complete reports whether the model finished on its own terms.
func (r FinishReason) Complete() bool {
	return r == FinishStop
}

// ClassifyFinishReason maps a raw provider finish string onto the small set
// the orchestrator's state machine understands.
func ClassifyFinishReason(raw string) FinishReason {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "stop", "end_turn", "complete":
		return FinishStop
	case "length", "max_tokens", "max_output_tokens":
		return FinishLength
	default:
		return FinishUnknown
	}
}
