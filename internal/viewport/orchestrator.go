package viewport

import (
	"context"
	"sync"

	"photoflow/internal/preload"
)

// Mode selects how the preload window relates to the focus index.
type Mode int

const (
	// ModeGrid preloads a window of upcoming items ahead of the focus,
	// matching a scrolling album grid.
	ModeGrid Mode = iota
	// ModeViewer centers the window on the focus, matching a
	// single-photo viewer where the user can step both ways.
	ModeViewer
)

const (
	defaultPreloadAhead = 10
	defaultFullResLimit = 3

	// Full-resolution prefetches ride along at reduced importance so
	// they never outrank a thumbnail at the same distance.
	fullResImportanceScale = 0.5
)

// Item is one displayable entry the host UI knows about. FullURL is
// optional; when empty the item only has a thumbnail to preload.
type Item struct {
	ThumbURL string
	FullURL  string
}

// Preloader is the slice of the preload cache the orchestrator uses.
type Preloader interface {
	SmartPreload(ctx context.Context, items []preload.SmartItem) []preload.Result
}

// Config configures an Orchestrator.
type Config struct {
	Cache        Preloader
	Mode         Mode
	PreloadAhead int  // window size, default 10
	FullRes      bool // also prefetch full-resolution images
	FullResLimit int  // cap on full-resolution prefetches, default 3
}

// Orchestrator decides what to preload from the host UI's current item
// list and focus position. The host calls NotifyItems and NotifyFocus
// explicitly; the orchestrator recomputes the preload window on each
// call and hands it to the cache in the background.
type Orchestrator struct {
	cache   Preloader
	mode    Mode
	ahead   int
	fullRes bool
	fullCap int

	mu    sync.Mutex
	items []Item
	focus int

	dispatches sync.WaitGroup
}

// New creates an Orchestrator. Zero window and cap values take the
// defaults.
func New(cfg Config) *Orchestrator {
	if cfg.PreloadAhead <= 0 {
		cfg.PreloadAhead = defaultPreloadAhead
	}
	if cfg.FullResLimit <= 0 {
		cfg.FullResLimit = defaultFullResLimit
	}
	return &Orchestrator{
		cache:   cfg.Cache,
		mode:    cfg.Mode,
		ahead:   cfg.PreloadAhead,
		fullRes: cfg.FullRes,
		fullCap: cfg.FullResLimit,
	}
}

// NotifyItems replaces the item list, clamps the focus into the new
// bounds, and schedules a preload pass.
func (o *Orchestrator) NotifyItems(ctx context.Context, items []Item) {
	o.mu.Lock()
	o.items = append([]Item(nil), items...)
	if o.focus >= len(o.items) {
		o.focus = max(0, len(o.items)-1)
	}
	plan := o.planLocked()
	o.mu.Unlock()
	o.dispatch(ctx, plan)
}

// NotifyFocus moves the focus index and schedules a preload pass.
// Out-of-range indexes are clamped.
func (o *Orchestrator) NotifyFocus(ctx context.Context, index int) {
	o.mu.Lock()
	if index < 0 {
		index = 0
	}
	if n := len(o.items); index >= n && n > 0 {
		index = n - 1
	}
	o.focus = index
	plan := o.planLocked()
	o.mu.Unlock()
	o.dispatch(ctx, plan)
}

// SetMode switches between grid and viewer windows without moving the
// focus.
func (o *Orchestrator) SetMode(m Mode) {
	o.mu.Lock()
	o.mode = m
	o.mu.Unlock()
}

// planLocked computes the preload window for the current items, focus,
// and mode. Thumbnails are scored by linear decay with distance from
// the focus; the focus and its immediate neighbours carry the
// user-interaction signal. Full-resolution prefetches, when enabled,
// cover the closest items only, at reduced importance.
func (o *Orchestrator) planLocked() []preload.SmartItem {
	n := len(o.items)
	if n == 0 {
		return nil
	}

	lo, hi := o.focus, o.focus+o.ahead
	if o.mode == ModeViewer {
		lo = o.focus - o.ahead/2
		hi = o.focus + (o.ahead+1)/2
	}
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}

	var plan []preload.SmartItem
	fullLeft := 0
	if o.fullRes {
		fullLeft = o.fullCap
	}

	// Walk outward from the focus so closer items are submitted first
	// and the full-resolution budget goes to the nearest ones.
	for _, i := range outwardIndexes(o.focus, lo, hi) {
		item := o.items[i]
		dist := i - o.focus
		if dist < 0 {
			dist = -dist
		}
		importance := 1 - float64(dist)/float64(o.ahead+1)
		interacting := dist <= 1

		if item.ThumbURL != "" {
			plan = append(plan, preload.SmartItem{
				URL:             item.ThumbURL,
				Importance:      importance,
				UserInteraction: interacting,
			})
		}
		if fullLeft > 0 && item.FullURL != "" {
			plan = append(plan, preload.SmartItem{
				URL:        item.FullURL,
				Importance: importance * fullResImportanceScale,
			})
			fullLeft--
		}
	}
	return plan
}

// outwardIndexes yields focus, focus+1, focus-1, focus+2, ... limited
// to [lo, hi].
func outwardIndexes(focus, lo, hi int) []int {
	out := make([]int, 0, hi-lo+1)
	if focus >= lo && focus <= hi {
		out = append(out, focus)
	}
	for d := 1; ; d++ {
		right, left := focus+d, focus-d
		if right > hi && left < lo {
			break
		}
		if right <= hi {
			out = append(out, right)
		}
		if left >= lo {
			out = append(out, left)
		}
	}
	return out
}

// dispatch hands the plan to the cache without blocking the notifier.
func (o *Orchestrator) dispatch(ctx context.Context, plan []preload.SmartItem) {
	if len(plan) == 0 || o.cache == nil {
		return
	}
	o.dispatches.Add(1)
	go func() {
		defer o.dispatches.Done()
		o.cache.SmartPreload(ctx, plan)
	}()
}

// wait blocks until all dispatched preload passes settle. Used by
// tests.
func (o *Orchestrator) wait() {
	o.dispatches.Wait()
}
