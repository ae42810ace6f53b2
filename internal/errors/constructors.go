package errors

// Convenience constructors for the pipeline's error taxonomy.

// MalformedJSON reports model output that failed to parse even after
// sanitization. It is retryable: the job system re-runs the same logical
// step with an incremented attempt counter. It must never be treated as a
// continuation signal.
func MalformedJSON(cause error) *WeaverError {
	return &WeaverError{
		Category:  CategoryMalformedJSON,
		Severity:  SeverityError,
		Message:   "model output is not valid JSON",
		Cause:     cause,
		Retryable: true,
	}
}

// DocumentNotFound reports that no fragments exist for a document identity.
// Fatal to the render call.
func DocumentNotFound(identity string) *WeaverError {
	e := New(CategoryDocumentNotFound, SeverityFatal, "no fragments found for document")
	return e.WithContext("document_identity", identity)
}

// ContentUnavailable reports a failed download of a required fragment body.
// Fatal: a partial render must never be produced.
func ContentUnavailable(cause error, fragmentID string) *WeaverError {
	e := Wrap(cause, CategoryContentUnavailable, SeverityFatal, "fragment content could not be downloaded")
	return e.WithContext("fragment_id", fragmentID)
}

// MissingDocumentIdentity reports a render request with no resolvable root
// identity. Raised before any side-effecting call.
func MissingDocumentIdentity(message string) *WeaverError {
	return New(CategoryMissingDocumentIdentity, SeverityFatal, message)
}

// MissingDocumentKey reports a render request with no document key.
// Raised before any side-effecting call.
func MissingDocumentKey(message string) *WeaverError {
	return New(CategoryMissingDocumentKey, SeverityFatal, message)
}

// PersistenceFailure reports a storage or database write failure. Fatal,
// always propagated to the caller.
func PersistenceFailure(cause error, message string) *WeaverError {
	return Wrap(cause, CategoryPersistence, SeverityFatal, message)
}

// RenderFailure reports a failure inside the template rendering step.
func RenderFailure(cause error, message string) *WeaverError {
	return Wrap(cause, CategoryRender, SeverityFatal, message)
}
