package viewport

import (
	"context"
	"sync"
	"testing"

	"photoflow/internal/preload"
)

// recordingPreloader captures every SmartPreload batch it receives.
type recordingPreloader struct {
	mu      sync.Mutex
	batches [][]preload.SmartItem
}

func (r *recordingPreloader) SmartPreload(_ context.Context, items []preload.SmartItem) []preload.Result {
	r.mu.Lock()
	r.batches = append(r.batches, append([]preload.SmartItem(nil), items...))
	r.mu.Unlock()
	return nil
}

func (r *recordingPreloader) last() []preload.SmartItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.batches) == 0 {
		return nil
	}
	return r.batches[len(r.batches)-1]
}

func (r *recordingPreloader) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func gridItems(n int) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{
			ThumbURL: thumbURL(i),
			FullURL:  fullURL(i),
		}
	}
	return items
}

func thumbURL(i int) string { return "/thumb/" + string(rune('a'+i)) }
func fullURL(i int) string  { return "/full/" + string(rune('a'+i)) }

func planByURL(plan []preload.SmartItem) map[string]preload.SmartItem {
	out := make(map[string]preload.SmartItem, len(plan))
	for _, it := range plan {
		out[it.URL] = it
	}
	return out
}

func TestGridWindowIsBounded(t *testing.T) {
	rec := &recordingPreloader{}
	o := New(Config{Cache: rec, Mode: ModeGrid, PreloadAhead: 5})

	o.NotifyItems(context.Background(), gridItems(20))
	o.wait()

	plan := planByURL(rec.last())
	// Focus 0, window [0, 5]: six thumbnails, nothing beyond.
	for i := 0; i <= 5; i++ {
		if _, ok := plan[thumbURL(i)]; !ok {
			t.Errorf("thumbnail %d missing from window", i)
		}
	}
	if _, ok := plan[thumbURL(6)]; ok {
		t.Error("thumbnail 6 is outside the window")
	}
}

func TestImportanceDecaysWithDistance(t *testing.T) {
	rec := &recordingPreloader{}
	o := New(Config{Cache: rec, Mode: ModeGrid, PreloadAhead: 5})

	o.NotifyItems(context.Background(), gridItems(20))
	o.wait()

	plan := planByURL(rec.last())
	prev := 2.0
	for i := 0; i <= 5; i++ {
		it := plan[thumbURL(i)]
		if it.Importance >= prev {
			t.Errorf("importance at distance %d = %v, want strictly below %v", i, it.Importance, prev)
		}
		if it.Importance <= 0 || it.Importance > 1 {
			t.Errorf("importance at distance %d = %v, want in (0, 1]", i, it.Importance)
		}
		prev = it.Importance
	}
}

func TestInteractionMarksFocusNeighbours(t *testing.T) {
	rec := &recordingPreloader{}
	o := New(Config{Cache: rec, Mode: ModeViewer, PreloadAhead: 6})

	o.NotifyItems(context.Background(), gridItems(20))
	o.NotifyFocus(context.Background(), 10)
	o.wait()

	plan := planByURL(rec.last())
	for i := 9; i <= 11; i++ {
		if !plan[thumbURL(i)].UserInteraction {
			t.Errorf("item %d within one of focus, want user interaction set", i)
		}
	}
	if plan[thumbURL(12)].UserInteraction {
		t.Error("item two away from focus must not carry user interaction")
	}
}

func TestViewerWindowCentersOnFocus(t *testing.T) {
	rec := &recordingPreloader{}
	o := New(Config{Cache: rec, Mode: ModeViewer, PreloadAhead: 4})

	o.NotifyItems(context.Background(), gridItems(20))
	o.NotifyFocus(context.Background(), 10)
	o.wait()

	plan := planByURL(rec.last())
	for i := 8; i <= 12; i++ {
		if _, ok := plan[thumbURL(i)]; !ok {
			t.Errorf("item %d missing from centered window", i)
		}
	}
	for _, i := range []int{7, 13} {
		if _, ok := plan[thumbURL(i)]; ok {
			t.Errorf("item %d is outside the centered window", i)
		}
	}
}

func TestFullResCappedAndNearest(t *testing.T) {
	rec := &recordingPreloader{}
	o := New(Config{
		Cache:        rec,
		Mode:         ModeGrid,
		PreloadAhead: 8,
		FullRes:      true,
		FullResLimit: 2,
	})

	o.NotifyItems(context.Background(), gridItems(20))
	o.wait()

	plan := planByURL(rec.last())
	var fulls int
	for url := range plan {
		if len(url) >= 6 && url[:6] == "/full/" {
			fulls++
		}
	}
	if fulls != 2 {
		t.Fatalf("full-resolution prefetches = %d, want 2", fulls)
	}
	// The budget goes to the items nearest the focus.
	for _, i := range []int{0, 1} {
		if _, ok := plan[fullURL(i)]; !ok {
			t.Errorf("full-resolution prefetch for nearest item %d missing", i)
		}
	}

	// Full-resolution importance stays below the same item's thumbnail.
	if f, th := plan[fullURL(0)], plan[thumbURL(0)]; f.Importance >= th.Importance {
		t.Errorf("full importance %v not below thumbnail importance %v", f.Importance, th.Importance)
	}
	if plan[fullURL(0)].UserInteraction {
		t.Error("full-resolution prefetch must not carry the interaction signal")
	}
}

func TestFullResDisabledByDefault(t *testing.T) {
	rec := &recordingPreloader{}
	o := New(Config{Cache: rec, Mode: ModeGrid, PreloadAhead: 5})

	o.NotifyItems(context.Background(), gridItems(10))
	o.wait()

	for _, it := range rec.last() {
		if len(it.URL) >= 6 && it.URL[:6] == "/full/" {
			t.Fatalf("unexpected full-resolution prefetch %s", it.URL)
		}
	}
}

func TestEmptyListIsQuiet(t *testing.T) {
	rec := &recordingPreloader{}
	o := New(Config{Cache: rec})

	o.NotifyItems(context.Background(), nil)
	o.NotifyFocus(context.Background(), 3)
	o.wait()

	if rec.count() != 0 {
		t.Errorf("dispatched %d batches for an empty list, want 0", rec.count())
	}
}

func TestFocusClampedToBounds(t *testing.T) {
	rec := &recordingPreloader{}
	o := New(Config{Cache: rec, Mode: ModeViewer, PreloadAhead: 4})

	o.NotifyItems(context.Background(), gridItems(5))
	o.NotifyFocus(context.Background(), 50)
	o.wait()

	plan := planByURL(rec.last())
	if _, ok := plan[thumbURL(4)]; !ok {
		t.Error("clamped focus should cover the last item")
	}
	if !plan[thumbURL(4)].UserInteraction {
		t.Error("clamped focus item should carry the interaction signal")
	}
}

func TestNotifyItemsShrinkKeepsFocusValid(t *testing.T) {
	rec := &recordingPreloader{}
	o := New(Config{Cache: rec, Mode: ModeViewer, PreloadAhead: 4})

	o.NotifyItems(context.Background(), gridItems(20))
	o.NotifyFocus(context.Background(), 15)
	o.NotifyItems(context.Background(), gridItems(3))
	o.wait()

	plan := planByURL(rec.last())
	for i := 0; i < 3; i++ {
		if _, ok := plan[thumbURL(i)]; !ok {
			t.Errorf("item %d missing after the list shrank", i)
		}
	}
}

func TestEveryNotifySchedulesAPass(t *testing.T) {
	rec := &recordingPreloader{}
	o := New(Config{Cache: rec, Mode: ModeGrid, PreloadAhead: 3})

	ctx := context.Background()
	o.NotifyItems(ctx, gridItems(10))
	o.NotifyFocus(ctx, 2)
	o.NotifyFocus(ctx, 4)
	o.wait()

	if rec.count() != 3 {
		t.Errorf("dispatched %d batches, want 3", rec.count())
	}
}
