package loader

import (
	"context"
	"sync"

	"photoflow/internal/logging"
	"photoflow/internal/metrics"
	"photoflow/internal/paging"
	"photoflow/internal/retry"
	"photoflow/internal/scroll"
)

// PageFetcher is the page-fetch collaborator. Implementations must be
// idempotent for a given (page, pageSize) and must return accurate
// HasNextPage metadata.
type PageFetcher[T any] interface {
	FetchPage(ctx context.Context, page, pageSize int) (*paging.Page[T], error)
}

// Config controls a Loader.
type Config struct {
	// PageSize requested from the fetcher. Defaults to 12, the album
	// grid's natural batch.
	PageSize int

	// Retry is the per-fetch retry policy. Zero value means the
	// default transient-only policy.
	Retry retry.Config
}

// Status is the loader state surfaced to the presentation layer.
type Status struct {
	IsLoading   bool
	HasNextPage bool
	Err         error
	Retrying    bool
	RetryCount  int
}

// Loader accumulates pages of items in order, routing every fetch
// through the retry executor. Items are append-only on successful page
// loads and replaced wholesale by Refresh.
type Loader[T any] struct {
	fetcher  PageFetcher[T]
	exec     *retry.Executor
	pageSize int

	mu         sync.Mutex
	items      []T
	page       int // highest successfully loaded page, 0 before Refresh
	hasNext    bool
	loading    bool
	err        error
	failedPage int // page to re-attempt after a terminal failure, 0 = none
}

// New creates a Loader over the given page-fetch collaborator.
func New[T any](fetcher PageFetcher[T], cfg Config) *Loader[T] {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 12
	}
	rc := cfg.Retry
	if rc.Name == "" {
		rc.Name = "page-fetch"
	}
	return &Loader[T]{
		fetcher:  fetcher,
		exec:     retry.New(rc),
		pageSize: cfg.PageSize,
		hasNext:  true,
	}
}

// Refresh discards the accumulated items, resets hasNextPage, and
// loads page 1 from scratch.
func (l *Loader[T]) Refresh(ctx context.Context) error {
	l.mu.Lock()
	if l.loading {
		l.mu.Unlock()
		return nil
	}
	l.loading = true
	l.items = nil
	l.page = 0
	l.hasNext = true
	l.err = nil
	l.failedPage = 0
	l.mu.Unlock()

	return l.fetchInto(ctx, 1, true)
}

// LoadMore fetches the next page and appends its items. It is a no-op
// while a fetch is in flight or when there is no next page.
func (l *Loader[T]) LoadMore(ctx context.Context) error {
	l.mu.Lock()
	if l.loading || !l.hasNext {
		l.mu.Unlock()
		return nil
	}
	l.loading = true
	next := l.page + 1
	l.mu.Unlock()

	return l.fetchInto(ctx, next, false)
}

// Retry re-attempts exactly the page that last failed, leaving the
// already-accumulated items untouched. A page-1 failure retries as a
// fresh load.
func (l *Loader[T]) Retry(ctx context.Context) error {
	l.mu.Lock()
	failed := l.failedPage
	loading := l.loading
	l.mu.Unlock()

	if loading || failed == 0 {
		return nil
	}
	if failed == 1 {
		return l.Refresh(ctx)
	}

	l.mu.Lock()
	if l.loading {
		l.mu.Unlock()
		return nil
	}
	l.loading = true
	l.mu.Unlock()

	return l.fetchInto(ctx, failed, false)
}

// fetchInto runs the retry-wrapped fetch for one page and folds the
// result into the accumulated state. The loading flag is already set.
func (l *Loader[T]) fetchInto(ctx context.Context, pageNum int, replace bool) error {
	page, err := retry.Do(ctx, l.exec, func(ctx context.Context) (*paging.Page[T], error) {
		return l.fetcher.FetchPage(ctx, pageNum, l.pageSize)
	})

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loading = false

	if err != nil {
		// Terminal failure: remember the page for Retry, keep the
		// accumulated items intact.
		l.err = err
		l.failedPage = pageNum
		metrics.LoaderPagesTotal.WithLabelValues("error").Inc()
		logging.Warn("loader: page %d failed: %v", pageNum, err)
		return err
	}

	if replace {
		l.items = page.Items
	} else {
		l.items = append(l.items, page.Items...)
	}
	l.page = pageNum
	l.hasNext = page.Pagination.HasNextPage
	l.err = nil
	l.failedPage = 0

	metrics.LoaderPagesTotal.WithLabelValues("success").Inc()
	metrics.LoaderItemsAccumulated.Set(float64(len(l.items)))
	logging.Debug("loader: page %d loaded, %d items accumulated, hasNext=%v",
		pageNum, len(l.items), l.hasNext)
	return nil
}

// Items returns a copy of the accumulated item list in load order.
func (l *Loader[T]) Items() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// Status returns the loader state, including the retry executor's
// live attempt count for "attempt N of M" feedback.
func (l *Loader[T]) Status() Status {
	rs := l.exec.State()

	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{
		IsLoading:   l.loading,
		HasNextPage: l.hasNext,
		Err:         l.err,
		Retrying:    rs.Retrying,
		RetryCount:  rs.Attempt,
	}
}

// Controller builds an infinite-scroll controller whose fetch callback
// is this loader's LoadMore, keeping the two state machines in sync:
// when a page reports no successor the controller is suppressed too.
func (l *Loader[T]) Controller(ctx context.Context) *scroll.Controller {
	var c *scroll.Controller
	c = scroll.New(ctx, func(ctx context.Context) error {
		err := l.LoadMore(ctx)
		c.SetHasNextPage(l.Status().HasNextPage)
		return err
	})
	return c
}
