package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net"
	"strings"
	"sync"
	"time"

	"photoflow/internal/logging"
	"photoflow/internal/metrics"
)

// ErrPanic is the normalized error surfaced when a wrapped operation
// panics instead of returning an error.
var ErrPanic = errors.New("operation panicked")

// jitterFraction is the maximum additive jitter applied to a computed
// backoff delay (10% of the capped delay).
const jitterFraction = 0.1

// Config controls the retry behavior of an Executor.
type Config struct {
	// MaxRetries is the number of re-attempts after the first try.
	// An operation is invoked at most MaxRetries+1 times.
	MaxRetries int

	// InitialDelay is the backoff delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the computed backoff delay. The cap is applied
	// before jitter.
	MaxDelay time.Duration

	// BackoffFactor is the multiplicative growth factor between
	// successive delays.
	BackoffFactor float64

	// Retryable decides whether an error is worth retrying. Nil means
	// DefaultRetryable.
	Retryable func(error) bool

	// Name labels the operation in logs and metrics.
	Name string
}

// DefaultConfig returns the retry policy used by the paginated loader:
// three retries with 500ms initial delay doubling up to 10s.
func DefaultConfig() Config {
	return Config{
		MaxRetries:    3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2,
		Name:          "operation",
	}
}

// State is a snapshot of an executor's progress through a single Do
// call. It is reset at the start of each call and surfaces to callers
// for UI feedback ("attempt N of M").
type State struct {
	Attempt  int
	LastErr  error
	Retrying bool
}

// Executor wraps asynchronous operations with bounded retries and
// exponential backoff plus jitter. The zero value is not usable; use New.
type Executor struct {
	cfg Config

	mu    sync.Mutex
	state State

	// sleep is replaced in tests to observe delays without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Executor. Zero-valued config fields fall back to
// DefaultConfig values.
func New(cfg Config) *Executor {
	def := DefaultConfig()
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.BackoffFactor <= 1 {
		cfg.BackoffFactor = def.BackoffFactor
	}
	if cfg.Retryable == nil {
		cfg.Retryable = DefaultRetryable
	}
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	return &Executor{cfg: cfg, sleep: sleepContext}
}

// State returns a snapshot of the current retry state.
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Executor) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Do runs op, retrying on retryable failures until success or
// exhaustion. On success the result is returned immediately without
// consuming remaining retries. On terminal failure the last error is
// returned unchanged so callers can distinguish the root cause.
//
// The backoff sleep and the operation both honor ctx; cancellation
// aborts the sequence with the context's error.
func (e *Executor) Do(ctx context.Context, op func(context.Context) error) error {
	e.setState(State{})

	var lastErr error
	attempt := 0
	for ; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			e.setState(State{Attempt: attempt, LastErr: lastErr, Retrying: true})
			metrics.RetryAttemptsTotal.WithLabelValues(e.cfg.Name).Inc()

			delay := e.backoffDelay(attempt)
			logging.Debug("retry: %s attempt %d/%d in %v (last error: %v)",
				e.cfg.Name, attempt, e.cfg.MaxRetries, delay, lastErr)

			if err := e.sleep(ctx, delay); err != nil {
				e.setState(State{Attempt: attempt, LastErr: err, Retrying: false})
				return err
			}
		}

		err := runGuarded(ctx, op)
		if err == nil {
			e.setState(State{Attempt: attempt, LastErr: nil, Retrying: false})
			return nil
		}

		lastErr = err
		if attempt >= e.cfg.MaxRetries || !e.cfg.Retryable(err) {
			break
		}
	}

	if e.cfg.Retryable(lastErr) {
		metrics.RetryExhaustedTotal.WithLabelValues(e.cfg.Name).Inc()
		logging.Warn("retry: %s failed after %d attempts: %v",
			e.cfg.Name, e.cfg.MaxRetries+1, lastErr)
	}

	e.setState(State{Attempt: attempt, LastErr: lastErr, Retrying: false})
	return lastErr
}

// Do runs op through exec and returns its typed result. It is the
// generic companion to Executor.Do for operations that produce a value.
func Do[T any](ctx context.Context, exec *Executor, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := exec.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// backoffDelay computes the delay before the given retry attempt
// (attempt >= 1): InitialDelay * BackoffFactor^(attempt-1), capped at
// MaxDelay, plus up to 10% additive jitter. The cap is applied before
// the jitter.
func (e *Executor) backoffDelay(attempt int) time.Duration {
	base := float64(e.cfg.InitialDelay) * math.Pow(e.cfg.BackoffFactor, float64(attempt-1))
	if capped := float64(e.cfg.MaxDelay); base > capped {
		base = capped
	}
	jitter := rand.Float64() * jitterFraction * base
	return time.Duration(base + jitter)
}

// runGuarded invokes op, converting a panic into ErrPanic so a
// misbehaving collaborator cannot take down the retry loop.
func runGuarded(ctx context.Context, op func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("retry: recovered panic in operation: %v", r)
			err = ErrPanic
		}
	}()
	return op(ctx)
}

// sleepContext pauses for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DefaultRetryable classifies an error as transient or structural.
// Structural failures (not found, validation) are never retried;
// network- and timeout-class failures are.
func DefaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPanic) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Errors can mark themselves transient.
	var tmp interface{ Temporary() bool }
	if errors.As(err, &tmp) {
		return tmp.Temporary()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())

	// Structural conditions win over transient-looking wording.
	for _, s := range []string{"not found", "invalid", "unauthorized", "forbidden"} {
		if strings.Contains(msg, s) {
			return false
		}
	}

	for _, s := range []string{
		"network", "timeout", "timed out", "fetch",
		"connection", "unavailable", "reset by peer", "temporarily",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}

	return false
}
