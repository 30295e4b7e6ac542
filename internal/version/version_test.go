package version

import "testing"

func TestString(t *testing.T) {
	origV, origSHA, origBuilt := Version, GitSHA, BuildTime
	defer func() { Version, GitSHA, BuildTime = origV, origSHA, origBuilt }()

	Version, GitSHA, BuildTime = "v0.3.0", "abc1234", "2026-01-01T00:00:00Z"
	want := "v0.3.0 (commit abc1234, built 2026-01-01T00:00:00Z)"
	if got := String(); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
	if got := Short(); got != "v0.3.0" {
		t.Errorf("Expected v0.3.0, got %q", got)
	}
}

func TestShort_Default(t *testing.T) {
	if got := Short(); len(got) < len("dev") || got[:3] != "dev" {
		t.Errorf("Expected default version to start with dev, got %q", got)
	}
}
