package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// instantSleep records requested delays without actually sleeping.
func instantSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestBackoffDelayMonotonicAndCapped(t *testing.T) {
	e := New(Config{
		MaxRetries:    10,
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      200 * time.Millisecond,
		BackoffFactor: 2,
	})

	var prevBase time.Duration
	for attempt := 1; attempt <= 10; attempt++ {
		base := 10 * time.Millisecond
		for i := 1; i < attempt; i++ {
			base *= 2
		}
		if base > 200*time.Millisecond {
			base = 200 * time.Millisecond
		}

		d := e.backoffDelay(attempt)

		// Jitter is additive, so the delay sits in [base, base*1.1].
		if d < base || d > base+base/10 {
			t.Errorf("attempt %d: delay %v outside [%v, %v]", attempt, d, base, base+base/10)
		}

		// Deterministic bases are non-decreasing and bounded by the cap.
		if base < prevBase {
			t.Errorf("attempt %d: base %v decreased from %v", attempt, base, prevBase)
		}
		prevBase = base
	}
}

func TestRetryCeiling(t *testing.T) {
	e := New(Config{MaxRetries: 3, InitialDelay: time.Millisecond, BackoffFactor: 2})
	var delays []time.Duration
	e.sleep = instantSleep(&delays)

	original := errors.New("network timeout")
	calls := 0

	err := e.Do(context.Background(), func(context.Context) error {
		calls++
		return original
	})

	if calls != 4 {
		t.Errorf("operation invoked %d times, want 4 (maxRetries+1)", calls)
	}
	if err != original {
		t.Errorf("final error = %v, want original error instance", err)
	}
	if len(delays) != 3 {
		t.Errorf("slept %d times, want 3", len(delays))
	}

	state := e.State()
	if state.Retrying {
		t.Error("Retrying should be false after exhaustion")
	}
	if state.LastErr != original {
		t.Errorf("State.LastErr = %v, want original error", state.LastErr)
	}
}

func TestNonRetryableShortCircuit(t *testing.T) {
	e := New(Config{MaxRetries: 5, InitialDelay: time.Millisecond})
	var delays []time.Duration
	e.sleep = instantSleep(&delays)

	structural := errors.New("album not found")
	calls := 0

	err := e.Do(context.Background(), func(context.Context) error {
		calls++
		return structural
	})

	if calls != 1 {
		t.Errorf("operation invoked %d times, want exactly 1", calls)
	}
	if err != structural {
		t.Errorf("error = %v, want the structural error unchanged", err)
	}
	if len(delays) != 0 {
		t.Errorf("slept %d times, want 0", len(delays))
	}
}

func TestSucceedsAfterTransientFailures(t *testing.T) {
	e := New(Config{MaxRetries: 2, InitialDelay: 10 * time.Millisecond, BackoffFactor: 2})
	var delays []time.Duration
	e.sleep = instantSleep(&delays)

	calls := 0
	result, err := Do(context.Background(), e, func(context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", errors.New("network timeout")
		}
		return "albums", nil
	})

	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if result != "albums" {
		t.Errorf("result = %q, want %q", result, "albums")
	}
	if calls != 3 {
		t.Errorf("operation invoked %d times, want 3", calls)
	}

	state := e.State()
	if state.Retrying {
		t.Error("Retrying should be false after success")
	}
	if state.LastErr != nil {
		t.Errorf("State.LastErr = %v, want nil after success", state.LastErr)
	}
}

func TestSuccessDoesNotConsumeRetries(t *testing.T) {
	e := New(Config{MaxRetries: 5, InitialDelay: time.Millisecond})
	var delays []time.Duration
	e.sleep = instantSleep(&delays)

	calls := 0
	err := e.Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})

	if err != nil || calls != 1 || len(delays) != 0 {
		t.Errorf("err=%v calls=%d sleeps=%d, want nil/1/0", err, calls, len(delays))
	}
}

func TestPanicNormalized(t *testing.T) {
	e := New(Config{MaxRetries: 3, InitialDelay: time.Millisecond})
	var delays []time.Duration
	e.sleep = instantSleep(&delays)

	calls := 0
	err := e.Do(context.Background(), func(context.Context) error {
		calls++
		panic("not an error value")
	})

	if !errors.Is(err, ErrPanic) {
		t.Errorf("error = %v, want ErrPanic", err)
	}
	if calls != 1 {
		t.Errorf("panicking operation invoked %d times, want 1 (panic is not retryable)", calls)
	}
}

func TestContextCancelDuringBackoff(t *testing.T) {
	e := New(Config{MaxRetries: 3, InitialDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	calls := 0
	err := e.Do(ctx, func(context.Context) error {
		calls++
		return errors.New("network timeout")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("operation invoked %d times, want 1", calls)
	}
}

func TestDefaultRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network timeout", errors.New("network timeout"), true},
		{"fetch failure", errors.New("failed to fetch page"), true},
		{"connection refused", errors.New("connection refused"), true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"not found", errors.New("photo not found"), false},
		{"invalid input", errors.New("invalid page number"), false},
		{"wrapped not found", fmt.Errorf("load failed: %w", errors.New("not found")), false},
		{"canceled", context.Canceled, false},
		{"panic sentinel", ErrPanic, false},
		{"opaque", errors.New("something odd"), false},
		{"temporary marker", temporaryErr{}, true},
		{"permanent marker", permanentErr{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultRetryable(tt.err); got != tt.want {
				t.Errorf("DefaultRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

type temporaryErr struct{}

func (temporaryErr) Error() string   { return "backend hiccup" }
func (temporaryErr) Temporary() bool { return true }

type permanentErr struct{}

func (permanentErr) Error() string   { return "network timeout" }
func (permanentErr) Temporary() bool { return false }
