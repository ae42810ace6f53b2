// Package files owns the hierarchical storage layout for fragments and
// rendered documents, and the gateway that persists both. Paths are
// deterministic functions of the document's identifiers so repeated renders
// overwrite rather than accumulate.
package files

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
)

// PathSpec carries the identifiers a storage path is derived from.
type PathSpec struct {
	ProjectID string
	SessionID string
	Iteration int
	Stage     string
}

// rawResponsesDir holds fragment bodies as they came from the model;
// documentsDir holds rendered markdown artifacts.
const (
	rawResponsesDir = "raw_responses"
	documentsDir    = "documents"
)

func (s PathSpec) prefix() string {
	return path.Join(
		s.ProjectID,
		"sessions", s.SessionID,
		fmt.Sprintf("iteration_%d", s.Iteration),
		strings.ToLower(strings.TrimSpace(s.Stage)),
	)
}

// FragmentFileName builds the stored filename for a fragment body. The
// fragment id keeps names unique within a document; the source group, when
// present, contributes a short hash so parallel generations of the same
// model stay tellable apart at a glance. Neither affects ordering.
func FragmentFileName(modelSlug, fragmentID string, attempt int, sourceGroup string) string {
	slug := sanitizeSegment(modelSlug)
	if slug == "" {
		slug = "model"
	}
	name := fmt.Sprintf("%s_%s_attempt%d", slug, sanitizeSegment(fragmentID), attempt)
	if sourceGroup != "" {
		name += "_" + shortHash(sourceGroup)
	}
	return name + ".json"
}

// FragmentPath returns the object-store path for a fragment body.
func FragmentPath(spec PathSpec, fileName string) string {
	return path.Join(spec.prefix(), rawResponsesDir, fileName)
}

// RenderedPath returns the deterministic object-store path for a rendered
// document. The same (project, session, iteration, stage, key) always maps
// to the same path.
func RenderedPath(spec PathSpec, documentKey string) string {
	return path.Join(spec.prefix(), documentsDir, sanitizeSegment(documentKey)+".md")
}

// shortHash returns the first 8 hex characters of the value's SHA-256.
func shortHash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])[:8]
}

// sanitizeSegment keeps a path segment free of separators and whitespace.
func sanitizeSegment(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ':
			return '-'
		}
		return r
	}, s)
}
