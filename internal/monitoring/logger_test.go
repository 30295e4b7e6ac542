package monitoring

import (
	"bytes"
	"testing"
)

func TestSetLogger(t *testing.T) {
	// Save original logger
	original := Logf
	defer func() { Logf = original }()

	// Test setting a custom logger
	called := false
	customLogger := func(format string, v ...interface{}) {
		called = true
	}

	SetLogger(customLogger)
	Logf("test message")

	if !called {
		t.Error("Custom logger was not called")
	}

	// Test setting nil logger (should create no-op)
	SetLogger(nil)
	// This should not panic
	Logf("test message")

	// Verify the logger is a no-op by checking it doesn't panic
	// and doesn't call anything
	noOpCalled := false
	testLogger := func(format string, v ...interface{}) {
		noOpCalled = true
	}
	SetLogger(testLogger)
	// First verify our test logger works
	Logf("test")
	if !noOpCalled {
		t.Error("Test logger should have been called")
	}

	// Now set to nil and verify it doesn't call our logger
	noOpCalled = false
	SetLogger(nil)
	Logf("test")
	if noOpCalled {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestLogf_Default(t *testing.T) {
	// Test that Logf is not nil by default
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}

	// Test that we can call it without panic
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logf panicked: %v", r)
		}
	}()

	Logf("test message: %s", "value")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"quiet", LevelQuiet, false},
		{"ops", LevelOps, false},
		{" Diag ", LevelDiag, false},
		{"TRACE", LevelTrace, false},
		{"verbose", LevelQuiet, true},
		{"", LevelQuiet, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLevelString(t *testing.T) {
	if got := LevelDiag.String(); got != "diag" {
		t.Errorf("Expected diag, got %s", got)
	}
	if got := Level(9).String(); got != "Level(9)" {
		t.Errorf("Expected Level(9), got %s", got)
	}
}

func TestStreams(t *testing.T) {
	var buf bytes.Buffer
	tests := []struct {
		level                        Level
		wantOps, wantDiag, wantTrace bool
	}{
		{LevelQuiet, false, false, false},
		{LevelOps, true, false, false},
		{LevelDiag, true, true, false},
		{LevelTrace, true, true, true},
	}
	for _, tt := range tests {
		ops, diag, trace := Streams(tt.level, &buf)
		if (ops != nil) != tt.wantOps || (diag != nil) != tt.wantDiag || (trace != nil) != tt.wantTrace {
			t.Errorf("Streams(%v) = ops:%v diag:%v trace:%v", tt.level, ops != nil, diag != nil, trace != nil)
		}
	}
}
