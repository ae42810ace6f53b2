package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeySessionID        = "session_id"
	KeyStage            = "stage"
	KeyIteration        = "iteration"
	KeyDocumentKey      = "document_key"
	KeyDocumentIdentity = "document_identity"
	KeyFragmentID       = "fragment_id"
	KeyAttempt          = "attempt"
	KeyOutcome          = "outcome"
	KeyPath             = "path"
	KeyDuration         = "duration"
	KeyError            = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func SessionID(id string) slog.Attr        { return slog.String(KeySessionID, id) }
func Stage(slug string) slog.Attr          { return slog.String(KeyStage, slug) }
func Iteration(n int) slog.Attr            { return slog.Int(KeyIteration, n) }
func DocumentKey(key string) slog.Attr     { return slog.String(KeyDocumentKey, key) }
func DocumentIdentity(id string) slog.Attr { return slog.String(KeyDocumentIdentity, id) }
func FragmentID(id string) slog.Attr       { return slog.String(KeyFragmentID, id) }
func Attempt(n int) slog.Attr              { return slog.Int(KeyAttempt, n) }
func Outcome(status string) slog.Attr      { return slog.String(KeyOutcome, status) }
func Path(p string) slog.Attr              { return slog.String(KeyPath, p) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
