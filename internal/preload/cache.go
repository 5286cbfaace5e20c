package preload

import (
	"container/heap"
	"container/list"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"photoflow/internal/logging"
	"photoflow/internal/metrics"
)

// bytesPerPixel estimates the decoded footprint of a cached image.
const bytesPerPixel = 4

// lowMemoryFloorGB is the device-memory threshold below which new
// loads are refused.
const lowMemoryFloorGB = 1.0

// Config controls a Cache.
type Config struct {
	// MaxConcurrent is the number of loader workers. Defaults to 4.
	MaxConcurrent int

	// LoadTimeout bounds how long a waiter blocks on a single load.
	// The load itself is not cancelled when the timeout fires.
	// Defaults to 30s.
	LoadTimeout time.Duration

	// MaxCacheBytes bounds the estimated cache footprint; least
	// recently used entries are evicted past it. Defaults to 100MB.
	MaxCacheBytes int64

	// Signals supplies environment hints for admission control.
	// Nil means unconstrained.
	Signals SignalSource

	// Loader performs the actual image fetch. Nil means an HTTP
	// loader with default settings.
	Loader ImageLoader
}

type entry struct {
	url    string
	width  int
	height int
	size   int64
	elem   *list.Element
}

// flight is one in-progress load shared by all concurrent requests for
// the same URL.
type flight struct {
	url      string
	done     chan struct{}
	result   Result
	reported bool // stats already recorded (by the worker or a timed-out waiter)
}

type job struct {
	url      string
	priority Priority
	seq      uint64
	flight   *flight
}

// jobQueue is a max-heap on (priority, FIFO within priority).
type jobQueue []*job

func (q jobQueue) Len() int { return len(q) }
func (q jobQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].seq < q[j].seq
}
func (q jobQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *jobQueue) Push(x any)   { *q = append(*q, x.(*job)) }

func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	j := old[n-1]
	*q = old[:n-1]
	return j
}

// Cache preloads and holds image resources ahead of need. It is an
// explicitly constructed, dependency-injected instance: the
// composition root owns it and passes it to consumers, so tests can
// run independent caches side by side.
type Cache struct {
	cfg Config

	mu         sync.Mutex
	cond       *sync.Cond
	entries    map[string]*entry
	lru        *list.List // front = most recently used
	totalBytes int64
	inflight   map[string]*flight
	queue      jobQueue
	seq        uint64
	closed     bool

	stats Stats
}

// NewCache creates a preload cache and starts its worker pool.
func NewCache(cfg Config) *Cache {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 30 * time.Second
	}
	if cfg.MaxCacheBytes <= 0 {
		cfg.MaxCacheBytes = 100 * 1024 * 1024
	}
	if cfg.Loader == nil {
		cfg.Loader = NewHTTPLoader(nil)
	}

	c := &Cache{
		cfg:      cfg,
		entries:  make(map[string]*entry),
		lru:      list.New(),
		inflight: make(map[string]*flight),
	}
	c.cond = sync.NewCond(&c.mu)

	for i := 0; i < cfg.MaxConcurrent; i++ {
		go c.worker()
	}
	return c
}

// Preload loads one URL at the given priority. A cached hit returns
// immediately with zero duration; a load already underway for the same
// URL is shared (single-flight); otherwise a new timed load is
// scheduled, subject to admission control.
func (c *Cache) Preload(ctx context.Context, url string, priority Priority) Result {
	f, res, started := c.start(url, priority)
	if !started {
		return res
	}
	return c.await(ctx, f)
}

// PreloadBatch preloads a set of URLs, high priority first, FIFO
// within a tier, bounded by the worker pool. Results are returned in
// the order the items were given.
func (c *Cache) PreloadBatch(ctx context.Context, items []Item) []Result {
	// Enqueue in priority order so the pool starts the most important
	// loads first even when it drains faster than we submit.
	sorted := append([]Item(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	flights := make(map[string]*flight, len(sorted))
	immediate := make(map[string]Result, len(sorted))
	for _, it := range sorted {
		if _, seen := flights[it.URL]; seen {
			continue
		}
		if _, seen := immediate[it.URL]; seen {
			continue
		}
		f, res, started := c.start(it.URL, it.Priority)
		if started {
			flights[it.URL] = f
		} else {
			immediate[it.URL] = res
		}
	}

	results := make([]Result, len(items))
	for i, it := range items {
		if res, ok := immediate[it.URL]; ok {
			results[i] = res
			continue
		}
		results[i] = c.await(ctx, flights[it.URL])
	}
	return results
}

// SmartPreload orders items by user-interaction first, then importance
// descending, maps each to a priority tier, and delegates to
// PreloadBatch.
func (c *Cache) SmartPreload(ctx context.Context, items []SmartItem) []Result {
	sorted := append([]SmartItem(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].UserInteraction != sorted[j].UserInteraction {
			return sorted[i].UserInteraction
		}
		return sorted[i].Importance > sorted[j].Importance
	})

	batch := make([]Item, len(sorted))
	for i, it := range sorted {
		batch[i] = Item{URL: it.URL, Priority: tierFor(it.Importance, it.UserInteraction)}
	}
	return c.PreloadBatch(ctx, batch)
}

// start resolves a URL to either an immediate result (hit or skip) or
// a flight to wait on. started=false means res is final.
func (c *Cache) start(url string, priority Priority) (f *flight, res Result, started bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, Result{URL: url, Err: ErrClosed}, false
	}

	// Cache hit: zero duration, nothing scheduled.
	if e, ok := c.entries[url]; ok {
		c.lru.MoveToFront(e.elem)
		c.recordLocked(outcomeHit, 0)
		return nil, Result{
			URL: url, Success: true,
			Width: e.width, Height: e.height, Size: e.size,
		}, false
	}

	// Single-flight: share the load already underway.
	if f, ok := c.inflight[url]; ok {
		return f, Result{}, true
	}

	if err := c.admitLocked(); err != nil {
		c.recordLocked(outcomeSkipped, 0)
		logging.Debug("preload: %s refused: %v", url, err)
		return nil, Result{URL: url, Skipped: true, Err: err}, false
	}

	f = &flight{url: url, done: make(chan struct{})}
	c.inflight[url] = f
	c.seq++
	heap.Push(&c.queue, &job{url: url, priority: priority, seq: c.seq, flight: f})
	metrics.PreloadQueueDepth.Set(float64(c.queue.Len()))
	c.cond.Signal()
	return f, Result{}, true
}

// admitLocked applies admission control before a new network load.
func (c *Cache) admitLocked() error {
	if c.cfg.Signals != nil {
		s := c.cfg.Signals.Signals()
		if s.SaveData {
			return fmt.Errorf("%w: data saver enabled", ErrSkipped)
		}
		if s.DeviceMemoryGB > 0 && s.DeviceMemoryGB < lowMemoryFloorGB {
			return fmt.Errorf("%w: low device memory (%.2f GB)", ErrSkipped, s.DeviceMemoryGB)
		}
	}
	if c.totalBytes >= c.cfg.MaxCacheBytes {
		return fmt.Errorf("%w: cache footprint %d bytes at limit", ErrSkipped, c.totalBytes)
	}
	return nil
}

// await blocks until the flight settles, the per-load timeout fires,
// or ctx is cancelled. A timeout or cancellation reports failure to
// this waiter only; the load itself continues and may still populate
// the cache.
func (c *Cache) await(ctx context.Context, f *flight) Result {
	timer := time.NewTimer(c.cfg.LoadTimeout)
	defer timer.Stop()

	select {
	case <-f.done:
		c.mu.Lock()
		res := f.result
		c.mu.Unlock()
		return res
	case <-timer.C:
		c.mu.Lock()
		if !f.reported {
			f.reported = true
			c.recordLocked(outcomeFailed, c.cfg.LoadTimeout)
		}
		c.mu.Unlock()
		return Result{URL: f.url, Duration: c.cfg.LoadTimeout, Err: ErrLoadTimeout}
	case <-ctx.Done():
		return Result{URL: f.url, Err: ctx.Err()}
	}
}

// worker pulls the highest-priority job and performs its load. Loads
// run under a background context: once started they are deliberately
// not cancellable (see package docs).
func (c *Cache) worker() {
	for {
		c.mu.Lock()
		for c.queue.Len() == 0 && !c.closed {
			c.cond.Wait()
		}
		if c.closed {
			c.mu.Unlock()
			return
		}
		j := heap.Pop(&c.queue).(*job)
		metrics.PreloadQueueDepth.Set(float64(c.queue.Len()))
		c.mu.Unlock()

		start := time.Now()
		img, err := c.cfg.Loader.Load(context.Background(), j.url)
		duration := time.Since(start)

		c.mu.Lock()
		delete(c.inflight, j.url)

		if err != nil {
			j.flight.result = Result{URL: j.url, Duration: duration, Err: err}
			if !j.flight.reported {
				j.flight.reported = true
				c.recordLocked(outcomeFailed, duration)
			}
			logging.Debug("preload: %s failed after %v: %v", j.url, duration, err)
		} else {
			size := int64(img.Width) * int64(img.Height) * bytesPerPixel
			c.insertLocked(j.url, img.Width, img.Height, size)
			j.flight.result = Result{
				URL: j.url, Success: true, Duration: duration,
				Width: img.Width, Height: img.Height, Size: size,
			}
			if !j.flight.reported {
				j.flight.reported = true
				c.recordLocked(outcomeSuccess, duration)
			}
		}
		c.mu.Unlock()

		close(j.flight.done)
	}
}

// insertLocked registers a loaded image and evicts least recently used
// entries past the footprint bound.
func (c *Cache) insertLocked(url string, width, height int, size int64) {
	if _, ok := c.entries[url]; ok {
		return
	}

	e := &entry{url: url, width: width, height: height, size: size}
	e.elem = c.lru.PushFront(e)
	c.entries[url] = e
	c.totalBytes += size

	for c.totalBytes > c.cfg.MaxCacheBytes && c.lru.Len() > 1 {
		oldest := c.lru.Back()
		victim := oldest.Value.(*entry)
		c.lru.Remove(oldest)
		delete(c.entries, victim.url)
		c.totalBytes -= victim.size
		metrics.PreloadEvictionsTotal.Inc()
		logging.Debug("preload: evicted %s (%d bytes)", victim.url, victim.size)
	}

	metrics.PreloadCacheSize.Set(float64(c.totalBytes))
	metrics.PreloadCacheEntries.Set(float64(len(c.entries)))
}

type outcome int

const (
	outcomeHit outcome = iota
	outcomeSuccess
	outcomeFailed
	outcomeSkipped
)

// recordLocked updates the running aggregates for one completed
// attempt. The hit rate is maintained incrementally as a running
// ratio rather than recomputed from scratch.
func (c *Cache) recordLocked(o outcome, d time.Duration) {
	c.stats.Total++

	isHit := 0.0
	switch o {
	case outcomeHit:
		isHit = 1.0
		c.stats.Successful++
		metrics.PreloadAttemptsTotal.WithLabelValues("hit").Inc()
	case outcomeSuccess:
		c.stats.Successful++
		c.stats.TotalTime += d
		metrics.PreloadAttemptsTotal.WithLabelValues("success").Inc()
		metrics.PreloadDuration.Observe(d.Seconds())
	case outcomeFailed:
		c.stats.Failed++
		c.stats.TotalTime += d
		metrics.PreloadAttemptsTotal.WithLabelValues("failed").Inc()
	case outcomeSkipped:
		c.stats.Skipped++
		metrics.PreloadAttemptsTotal.WithLabelValues("skipped").Inc()
	}

	if loads := c.stats.Successful + c.stats.Failed; loads > 0 {
		c.stats.AverageTime = c.stats.TotalTime / time.Duration(loads)
	}
	c.stats.CacheHitRate += (isHit - c.stats.CacheHitRate) / float64(c.stats.Total)
}

// Stats returns a snapshot of the running aggregates.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Info returns the cache's current occupancy.
func (c *Cache) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Info{
		Entries:   len(c.entries),
		SizeBytes: c.totalBytes,
		InFlight:  len(c.inflight),
		Queued:    c.queue.Len(),
	}
}

// Cached reports whether a URL is resident, without touching LRU order
// or statistics.
func (c *Cache) Cached(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[url]
	return ok
}

// Clear drops every cached entry and resets the statistics. In-flight
// loads are unaffected and may repopulate the cache afterwards.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
	c.lru.Init()
	c.totalBytes = 0
	c.stats = Stats{}

	metrics.PreloadCacheSize.Set(0)
	metrics.PreloadCacheEntries.Set(0)
}

// Close stops the worker pool. Jobs still queued settle with ErrClosed
// so no waiter blocks past shutdown.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true

	var drained []*job
	for c.queue.Len() > 0 {
		drained = append(drained, heap.Pop(&c.queue).(*job))
	}
	for _, j := range drained {
		delete(c.inflight, j.url)
		j.flight.result = Result{URL: j.url, Err: ErrClosed}
		j.flight.reported = true
	}
	metrics.PreloadQueueDepth.Set(0)
	c.cond.Broadcast()
	c.mu.Unlock()

	for _, j := range drained {
		close(j.flight.done)
	}
}
