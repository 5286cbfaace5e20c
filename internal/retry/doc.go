/*
Package retry wraps a single asynchronous operation with bounded
retries, exponential backoff, and a pluggable retry predicate.

# Behavior

An Executor invokes its operation up to MaxRetries+1 times. Before each
re-attempt it sleeps for

	min(InitialDelay * BackoffFactor^(attempt-1), MaxDelay)

plus up to 10% additive jitter, so synchronized callers do not produce
retry storms. Success returns immediately without consuming remaining
retries. A failure that the predicate rejects, or that exhausts the
budget, surfaces the last underlying error unchanged — the retry
machinery never substitutes its own error for the root cause. A panic
inside the operation is normalized to ErrPanic.

# Error classification

DefaultRetryable treats network- and timeout-class failures as
transient and everything structural (not found, validation) as
terminal. Errors may implement Temporary() bool to opt in or out
explicitly; the single-item fetch collaborator uses this to keep
not-found responses out of the retry path.

# Observability

Executor.State exposes {Attempt, LastErr, Retrying} so a host interface
can render "attempt N of M" while a retry sequence is in progress.
Attempt counts and exhaustions are recorded in Prometheus under the
operation's configured name.

# Usage

	exec := retry.New(retry.Config{
	    MaxRetries:    2,
	    InitialDelay:  time.Second,
	    BackoffFactor: 2,
	    Name:          "album-page",
	})

	page, err := retry.Do(ctx, exec, func(ctx context.Context) (*paging.Page[Album], error) {
	    return fetcher.FetchPage(ctx, 1, 12)
	})
*/
package retry
