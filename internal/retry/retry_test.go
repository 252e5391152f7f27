package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSucceedsFirstTry(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Factor: 2}

	err := p.Do(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestRetriesUntilSuccess(t *testing.T) {
	calls := 0
	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Factor: 2}

	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
}

func TestExhaustsAttempts(t *testing.T) {
	calls := 0
	wantErr := errors.New("permanent")
	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Factor: 2}

	err := p.Do(context.Background(), func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("Do returned %v, want %v", err, wantErr)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
}

func TestContextCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := Policy{MaxAttempts: 5, BaseDelay: time.Hour, Factor: 2}

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := p.Do(ctx, func() error {
		calls++
		return errors.New("failing")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do returned %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times before cancel, want 1", calls)
	}
}

func TestZeroValuePolicyRunsOnce(t *testing.T) {
	calls := 0
	var p Policy

	p.Do(context.Background(), func() error {
		calls++
		return errors.New("nope")
	})
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}
