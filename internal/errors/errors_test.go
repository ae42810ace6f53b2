package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestWeaverErrorFormatting(t *testing.T) {
	e := New(CategoryValidation, SeverityFatal, "document key is required")
	want := "validation (fatal): document key is required"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}

	cause := stderrors.New("disk full")
	wrapped := Wrap(cause, CategoryPersistence, SeverityFatal, "upload failed")
	if got := wrapped.Error(); got != "persistence (fatal): upload failed: disk full" {
		t.Errorf("wrapped Error() = %q", got)
	}
	if !stderrors.Is(wrapped, cause) {
		t.Error("wrapped error should unwrap to cause")
	}
}

func TestMalformedJSONIsRetryable(t *testing.T) {
	e := MalformedJSON(stderrors.New("unexpected end of input"))
	if !IsRetryable(e) {
		t.Error("malformed JSON must be retryable")
	}
	if !IsCategory(e, CategoryMalformedJSON) {
		t.Error("category mismatch")
	}
}

func TestFatalCategoriesAreNotRetryable(t *testing.T) {
	cases := []*WeaverError{
		DocumentNotFound("doc-1"),
		ContentUnavailable(stderrors.New("404"), "frag-1"),
		MissingDocumentIdentity("no identity"),
		MissingDocumentKey("no key"),
		PersistenceFailure(stderrors.New("db down"), "insert failed"),
	}
	for _, e := range cases {
		if IsRetryable(e) {
			t.Errorf("%s should not be retryable", e.Category)
		}
	}
}

func TestIsCategoryThroughWrapping(t *testing.T) {
	inner := DocumentNotFound("doc-2")
	outer := fmt.Errorf("render aborted: %w", inner)
	if !IsCategory(outer, CategoryDocumentNotFound) {
		t.Error("IsCategory should see through fmt.Errorf wrapping")
	}
	if GetCategory(outer) != CategoryDocumentNotFound {
		t.Error("GetCategory should see through fmt.Errorf wrapping")
	}
	if GetCategory(stderrors.New("plain")) != CategoryInternal {
		t.Error("plain errors default to internal category")
	}
}
