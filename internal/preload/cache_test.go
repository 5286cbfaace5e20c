package preload

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeLoader is a controllable ImageLoader that records call order.
type fakeLoader struct {
	mu    sync.Mutex
	delay time.Duration
	gate  chan struct{} // when non-nil, Load blocks until closed
	fail  map[string]error
	calls []string
}

func (l *fakeLoader) Load(_ context.Context, url string) (*ImageInfo, error) {
	l.mu.Lock()
	l.calls = append(l.calls, url)
	gate := l.gate
	err := l.fail[url]
	delay := l.delay
	l.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return &ImageInfo{Width: 100, Height: 100}, nil
}

func (l *fakeLoader) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

func (l *fakeLoader) callOrder() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func newTestCache(t *testing.T, cfg Config) (*Cache, *fakeLoader) {
	t.Helper()
	fl := &fakeLoader{}
	if cfg.Loader == nil {
		cfg.Loader = fl
	}
	if cfg.LoadTimeout == 0 {
		cfg.LoadTimeout = 2 * time.Second
	}
	c := NewCache(cfg)
	t.Cleanup(c.Close)
	return c, fl
}

func TestPreloadAndHit(t *testing.T) {
	c, fl := newTestCache(t, Config{MaxConcurrent: 2})

	res := c.Preload(context.Background(), "a.png", PriorityHigh)
	if !res.Success {
		t.Fatalf("first preload failed: %+v", res)
	}
	if res.Width != 100 || res.Height != 100 {
		t.Errorf("dimensions = %dx%d, want 100x100", res.Width, res.Height)
	}
	if res.Size != 100*100*4 {
		t.Errorf("size estimate = %d, want %d", res.Size, 100*100*4)
	}

	hit := c.Preload(context.Background(), "a.png", PriorityLow)
	if !hit.Success || hit.Duration != 0 {
		t.Errorf("cache hit = %+v, want success with zero duration", hit)
	}
	if fl.callCount() != 1 {
		t.Errorf("loader called %d times, want 1", fl.callCount())
	}

	stats := c.Stats()
	if stats.Total != 2 || stats.Successful != 2 {
		t.Errorf("stats = %+v, want total=2 successful=2", stats)
	}
	if stats.CacheHitRate != 0.5 {
		t.Errorf("hit rate = %v, want 0.5", stats.CacheHitRate)
	}
}

func TestSingleFlight(t *testing.T) {
	c, fl := newTestCache(t, Config{MaxConcurrent: 4})
	fl.mu.Lock()
	fl.gate = make(chan struct{})
	fl.mu.Unlock()

	var wg sync.WaitGroup
	results := make([]Result, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Preload(context.Background(), "a.png", PriorityHigh)
		}(i)
	}

	// Give both callers time to reach the in-flight map, then release.
	time.Sleep(20 * time.Millisecond)
	close(fl.gate)
	wg.Wait()

	if fl.callCount() != 1 {
		t.Errorf("loader called %d times for concurrent requests, want 1", fl.callCount())
	}
	for i, res := range results {
		if !res.Success {
			t.Errorf("caller %d result = %+v, want success", i, res)
		}
	}
}

func TestBatchPriorityOrdering(t *testing.T) {
	c, fl := newTestCache(t, Config{MaxConcurrent: 1})
	fl.mu.Lock()
	fl.delay = 5 * time.Millisecond
	fl.mu.Unlock()

	results := c.PreloadBatch(context.Background(), []Item{
		{URL: "low.png", Priority: PriorityLow},
		{URL: "high.png", Priority: PriorityHigh},
		{URL: "medium.png", Priority: PriorityMedium},
	})

	for _, res := range results {
		if !res.Success {
			t.Fatalf("batch item %s failed: %v", res.URL, res.Err)
		}
	}

	order := fl.callOrder()
	pos := map[string]int{}
	for i, url := range order {
		pos[url] = i
	}
	if pos["high.png"] > pos["medium.png"] || pos["medium.png"] > pos["low.png"] {
		t.Errorf("load order = %v, want high before medium before low", order)
	}

	// Results align with the submitted order regardless of load order.
	if results[0].URL != "low.png" || results[1].URL != "high.png" || results[2].URL != "medium.png" {
		t.Errorf("result order does not match input order: %+v", results)
	}
}

func TestSmartPreloadTiers(t *testing.T) {
	tests := []struct {
		name        string
		importance  float64
		interaction bool
		want        Priority
	}{
		{"interaction forces high", 0.1, true, PriorityHigh},
		{"high importance", 0.8, false, PriorityHigh},
		{"medium importance", 0.5, false, PriorityMedium},
		{"low importance", 0.2, false, PriorityLow},
		{"boundary 0.7 is medium", 0.7, false, PriorityMedium},
		{"boundary 0.3 is low", 0.3, false, PriorityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tierFor(tt.importance, tt.interaction); got != tt.want {
				t.Errorf("tierFor(%v, %v) = %v, want %v", tt.importance, tt.interaction, got, tt.want)
			}
		})
	}
}

func TestSmartPreloadOrdersByInteractionThenImportance(t *testing.T) {
	c, fl := newTestCache(t, Config{MaxConcurrent: 1})
	fl.mu.Lock()
	fl.delay = 5 * time.Millisecond
	fl.mu.Unlock()

	c.SmartPreload(context.Background(), []SmartItem{
		{URL: "far.png", Importance: 0.2},
		{URL: "near.png", Importance: 0.9},
		{URL: "current.png", Importance: 0.5, UserInteraction: true},
	})

	order := fl.callOrder()
	if len(order) != 3 || order[0] != "current.png" || order[1] != "near.png" || order[2] != "far.png" {
		t.Errorf("load order = %v, want [current.png near.png far.png]", order)
	}
}

func TestAdmissionSaveData(t *testing.T) {
	c, fl := newTestCache(t, Config{
		MaxConcurrent: 1,
		Signals:       StaticSource{SaveData: true},
	})

	res := c.Preload(context.Background(), "a.png", PriorityHigh)
	if res.Success || !res.Skipped {
		t.Errorf("result = %+v, want skipped", res)
	}
	if !errors.Is(res.Err, ErrSkipped) {
		t.Errorf("err = %v, want ErrSkipped", res.Err)
	}
	if fl.callCount() != 0 {
		t.Errorf("loader called %d times under data saver, want 0", fl.callCount())
	}

	stats := c.Stats()
	if stats.Skipped != 1 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want skipped=1 failed=0 (a skip is not a failure)", stats)
	}
}

func TestAdmissionLowDeviceMemory(t *testing.T) {
	c, fl := newTestCache(t, Config{
		MaxConcurrent: 1,
		Signals:       StaticSource{DeviceMemoryGB: 0.5},
	})

	res := c.Preload(context.Background(), "a.png", PriorityHigh)
	if !res.Skipped {
		t.Errorf("result = %+v, want skipped on low device memory", res)
	}
	if fl.callCount() != 0 {
		t.Error("loader should not run under low device memory")
	}
}

func TestUnknownSignalsAreUnconstrained(t *testing.T) {
	c, _ := newTestCache(t, Config{
		MaxConcurrent: 1,
		Signals:       StaticSource{}, // all zero values
	})

	res := c.Preload(context.Background(), "a.png", PriorityHigh)
	if !res.Success {
		t.Errorf("result = %+v, want success with absent signals", res)
	}
}

func TestEvictionBoundsFootprint(t *testing.T) {
	// Each 100x100 image estimates to 40000 bytes; cap at two entries.
	c, _ := newTestCache(t, Config{MaxConcurrent: 1, MaxCacheBytes: 90000})

	for _, url := range []string{"a.png", "b.png", "c.png"} {
		if res := c.Preload(context.Background(), url, PriorityHigh); !res.Success {
			t.Fatalf("preload %s failed: %+v", url, res)
		}
	}

	info := c.Info()
	if info.SizeBytes > 90000 {
		t.Errorf("footprint %d exceeds bound 90000", info.SizeBytes)
	}
	if info.Entries != 2 {
		t.Errorf("entries = %d, want 2 after eviction", info.Entries)
	}
	if c.Cached("a.png") {
		t.Error("a.png should have been evicted as least recently used")
	}
	if !c.Cached("c.png") {
		t.Error("c.png should be resident")
	}
}

func TestFailureDoesNotThrow(t *testing.T) {
	c, fl := newTestCache(t, Config{MaxConcurrent: 1})
	loadErr := errors.New("decode failure")
	fl.mu.Lock()
	fl.fail = map[string]error{"broken.png": loadErr}
	fl.mu.Unlock()

	res := c.Preload(context.Background(), "broken.png", PriorityHigh)
	if res.Success || res.Skipped {
		t.Errorf("result = %+v, want plain failure", res)
	}
	if !errors.Is(res.Err, loadErr) {
		t.Errorf("err = %v, want the loader's error", res.Err)
	}

	stats := c.Stats()
	if stats.Failed != 1 || stats.Total != 1 {
		t.Errorf("stats = %+v, want failed=1 total=1", stats)
	}
	if c.Cached("broken.png") {
		t.Error("failed load must not populate the cache")
	}
}

func TestTimeoutReportsFailureButLoadCompletes(t *testing.T) {
	c, fl := newTestCache(t, Config{MaxConcurrent: 1, LoadTimeout: 10 * time.Millisecond})
	fl.mu.Lock()
	fl.delay = 60 * time.Millisecond
	fl.mu.Unlock()

	res := c.Preload(context.Background(), "slow.png", PriorityHigh)
	if res.Success {
		t.Fatalf("result = %+v, want timeout failure", res)
	}
	if !errors.Is(res.Err, ErrLoadTimeout) {
		t.Errorf("err = %v, want ErrLoadTimeout", res.Err)
	}

	// The underlying load is not cancelled; it settles and populates
	// the cache for the next request.
	deadline := time.Now().Add(2 * time.Second)
	for !c.Cached("slow.png") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !c.Cached("slow.png") {
		t.Fatal("timed-out load never populated the cache")
	}

	// The attempt was counted once, as a failure.
	stats := c.Stats()
	if stats.Failed != 1 {
		t.Errorf("stats = %+v, want the timed-out attempt counted once as failed", stats)
	}

	hit := c.Preload(context.Background(), "slow.png", PriorityLow)
	if !hit.Success || hit.Duration != 0 {
		t.Errorf("follow-up = %+v, want cache hit", hit)
	}
}

func TestClearResetsEverything(t *testing.T) {
	c, _ := newTestCache(t, Config{MaxConcurrent: 1})

	c.Preload(context.Background(), "a.png", PriorityHigh)
	c.Clear()

	if info := c.Info(); info.Entries != 0 || info.SizeBytes != 0 {
		t.Errorf("info after Clear = %+v, want empty", info)
	}
	if stats := c.Stats(); stats != (Stats{}) {
		t.Errorf("stats after Clear = %+v, want zero", stats)
	}
	if c.Cached("a.png") {
		t.Error("entry survived Clear")
	}
}

func TestAverageTimeTracksLoads(t *testing.T) {
	c, fl := newTestCache(t, Config{MaxConcurrent: 1})
	fl.mu.Lock()
	fl.delay = 5 * time.Millisecond
	fl.mu.Unlock()

	c.Preload(context.Background(), "a.png", PriorityHigh)
	c.Preload(context.Background(), "b.png", PriorityHigh)

	stats := c.Stats()
	if stats.AverageTime <= 0 {
		t.Errorf("average time = %v, want > 0", stats.AverageTime)
	}
	if stats.TotalTime < stats.AverageTime {
		t.Errorf("total %v less than average %v", stats.TotalTime, stats.AverageTime)
	}
}
