package gateway

import (
	"errors"
	"testing"
	"time"
)

func TestRetryPolicyClassification(t *testing.T) {
	p := DefaultRetryPolicy()

	if !p.ShouldRetry(errors.New("connection refused"), 1) {
		t.Error("connection errors should be retryable")
	}
	if !p.ShouldRetry(errors.New("request failed with status 503"), 1) {
		t.Error("server errors should be retryable")
	}
	if p.ShouldRetry(errors.New("unauthorized"), 1) {
		t.Error("auth errors should not be retryable")
	}
	if p.ShouldRetry(errors.New("timeout"), p.MaxAttempts+1) {
		t.Error("attempts past MaxAttempts should not retry")
	}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	p := &RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
	}
	if d := p.NextDelay(1); d != time.Second {
		t.Errorf("attempt 1: expected 1s, got %s", d)
	}
	if d := p.NextDelay(2); d != 2*time.Second {
		t.Errorf("attempt 2: expected 2s, got %s", d)
	}
	if d := p.NextDelay(10); d != 5*time.Second {
		t.Errorf("attempt 10: expected cap at 5s, got %s", d)
	}
}

func TestRetryPolicyExecute(t *testing.T) {
	p := &RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		Multiplier:   1.0,
		MaxDelay:     time.Millisecond,
	}

	calls := 0
	err := p.Execute(func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}

	calls = 0
	err = p.Execute(func() error {
		calls++
		return errors.New("invalid payload")
	})
	if err == nil {
		t.Fatal("expected permanent error to surface")
	}
	if calls != 1 {
		t.Errorf("permanent error should not retry, got %d attempts", calls)
	}
}
