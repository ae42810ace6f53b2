package logfields

import (
	"errors"
	"testing"
)

func TestErrorNil(t *testing.T) {
	attr := Error(nil)
	if attr.Key != KeyError {
		t.Fatalf("expected key %q, got %q", KeyError, attr.Key)
	}
	if attr.Value.String() != "" {
		t.Fatalf("expected empty value, got %q", attr.Value.String())
	}
}

func TestErrorNonNil(t *testing.T) {
	attr := Error(errors.New("boom"))
	if attr.Value.String() != "boom" {
		t.Fatalf("expected boom, got %q", attr.Value.String())
	}
}

func TestFieldKeys(t *testing.T) {
	if SessionID("s").Key != KeySessionID {
		t.Fatal("session key mismatch")
	}
	if DocumentIdentity("d").Key != KeyDocumentIdentity {
		t.Fatal("identity key mismatch")
	}
	if Attempt(2).Value.Int64() != 2 {
		t.Fatal("attempt value mismatch")
	}
}
