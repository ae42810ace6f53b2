package version

import "testing"

func TestDefaultsAreOverridable(t *testing.T) {
	// ldflags replace these at build time; the defaults must stay plain
	// vars so -X can reach them.
	if Version == "" || BuildTime == "" || GitCommit == "" {
		t.Fatal("build info vars must not be empty")
	}
}
