package scroll

import (
	"context"
	"sync"

	"photoflow/internal/logging"
)

// State is the controller's position in its loading state machine.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateError   State = "error"
)

// Visibility is one report from the viewport visibility primitive for
// the attached sentinel element.
type Visibility struct {
	Intersecting bool
	Ratio        float64
}

// VisibilitySource is the narrow interface to the host's viewport
// primitive. Subscribe registers a callback for visibility reports and
// returns a cancel function that fully releases the observation.
type VisibilitySource interface {
	Subscribe(fn func(Visibility)) (cancel func())
}

// FetchFunc loads the next page. The controller guarantees at most one
// invocation is in flight at a time.
type FetchFunc func(ctx context.Context) error

// Status is the controller state surfaced to the presentation layer.
type Status struct {
	State       State
	Loading     bool
	HasNextPage bool
	Err         error
}

// Controller turns sentinel visibility transitions into next-page
// fetches. It is an explicit state machine: the host calls
// HandleVisibility (or Attach with a source that does), and the
// controller decides whether a fetch fires.
type Controller struct {
	ctx   context.Context
	fetch FetchFunc

	mu          sync.Mutex
	state       State
	loading     bool
	hasNext     bool
	err         error
	wasVisible  bool
	unsubscribe func()

	// settled is closed when an in-flight fetch resolves; replaced on
	// each fetch start. Tests use it to wait deterministically.
	settled chan struct{}
}

// New creates a controller in the idle state with hasNextPage true.
// ctx bounds every fetch the controller starts.
func New(ctx context.Context, fetch FetchFunc) *Controller {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Controller{
		ctx:     ctx,
		fetch:   fetch,
		state:   StateIdle,
		hasNext: true,
	}
}

// HandleVisibility is the notify entry point for viewport reports. A
// fetch fires only on a not-visible to visible transition while
// hasNextPage is set and no fetch is in flight; reports arriving while
// loading are dropped, not queued.
func (c *Controller) HandleVisibility(v Visibility) {
	c.mu.Lock()

	entered := v.Intersecting && !c.wasVisible
	c.wasVisible = v.Intersecting

	if !entered || c.loading || !c.hasNext {
		c.mu.Unlock()
		return
	}

	c.startLocked()
}

// LoadMore manually requests the next page with the same guards as the
// automatic path. It is a no-op while loading or when there is no next
// page, so a host can always offer a fallback button.
func (c *Controller) LoadMore() {
	c.mu.Lock()

	if c.loading || !c.hasNext {
		c.mu.Unlock()
		return
	}

	c.startLocked()
}

// startLocked begins a fetch. The caller holds c.mu; startLocked
// releases it.
func (c *Controller) startLocked() {
	c.loading = true
	c.state = StateLoading
	c.err = nil
	settled := make(chan struct{})
	c.settled = settled
	c.mu.Unlock()

	go func() {
		err := c.fetch(c.ctx)

		c.mu.Lock()
		c.loading = false
		if err != nil {
			c.state = StateError
			c.err = err
			logging.Debug("scroll: fetch failed: %v", err)
		} else {
			c.state = StateIdle
		}
		c.mu.Unlock()

		close(settled)
	}()
}

// SetHasNextPage records whether further pages exist. Setting false
// suppresses all automatic and manual fetches until Reset.
func (c *Controller) SetHasNextPage(hasNext bool) {
	c.mu.Lock()
	c.hasNext = hasNext
	c.mu.Unlock()
}

// Reset returns the controller to its initial idle state with
// hasNextPage true. It does not interrupt an in-flight fetch.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.hasNext = true
	c.err = nil
	c.wasVisible = false
	if !c.loading {
		c.state = StateIdle
	}
	c.mu.Unlock()
}

// Attach subscribes the controller to a visibility source, releasing
// any previous subscription first. Attaching nil only releases — the
// sentinel reference changing to nothing must still drop the old
// observation.
func (c *Controller) Attach(src VisibilitySource) {
	c.mu.Lock()
	release := c.unsubscribe
	c.unsubscribe = nil
	c.wasVisible = false
	c.mu.Unlock()

	if release != nil {
		release()
	}
	if src == nil {
		return
	}

	cancel := src.Subscribe(c.HandleVisibility)

	c.mu.Lock()
	c.unsubscribe = cancel
	c.mu.Unlock()
}

// Detach releases the current visibility subscription, if any.
func (c *Controller) Detach() {
	c.Attach(nil)
}

// Status returns a snapshot for the presentation layer.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:       c.state,
		Loading:     c.loading,
		HasNextPage: c.hasNext,
		Err:         c.err,
	}
}

// wait blocks until the most recently started fetch settles. Test
// helper; returns immediately if no fetch was started.
func (c *Controller) wait() {
	c.mu.Lock()
	settled := c.settled
	c.mu.Unlock()
	if settled != nil {
		<-settled
	}
}
