package sqlite

import (
	"errors"
	"testing"
	"time"
)

func TestIsSQLiteBusy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"locked", errors.New("database is locked"), true},
		{"busy code", errors.New("sqlite: step: SQLITE_BUSY"), true},
		{"wrapped", errors.Join(errors.New("insert"), errors.New("database is locked (5)")), true},
		{"other", errors.New("no such table: detections"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isSQLiteBusy(tt.err); got != tt.want {
				t.Errorf("isSQLiteBusy(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryOnBusy_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := retryOnBusy(func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestRetryOnBusy_GivesUp(t *testing.T) {
	calls := 0
	start := time.Now()
	err := retryOnBusy(func() error {
		calls++
		return errors.New("SQLITE_BUSY")
	})
	if err == nil {
		t.Fatal("Expected error after exhausting retries")
	}
	if calls != busyMaxAttempts {
		t.Errorf("Expected %d calls, got %d", busyMaxAttempts, calls)
	}
	// 10 + 20 + 40 + 80 ms of backoff.
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("Expected backoff of at least 150ms, got %v", elapsed)
	}
}

func TestRetryOnBusy_NonBusyErrorReturnedImmediately(t *testing.T) {
	sentinel := errors.New("constraint failed")
	calls := 0
	err := retryOnBusy(func() error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("Expected sentinel error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}
