package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"photoflow/internal/library"
	"photoflow/internal/logging"
	"photoflow/internal/media"
	"photoflow/internal/memory"
	"photoflow/internal/metrics"
	"photoflow/internal/workers"
)

const (
	// Number of photos to upsert per transaction
	batchSize = 500

	// Minimum photos to index before marking the server ready
	minPhotosForReady = 100

	// Delay between batches to let queries through
	batchDelay = 10 * time.Millisecond

	// Extra delay per batch while the memory monitor throttles
	throttleDelay = 250 * time.Millisecond

	// Default polling interval for change detection
	defaultPollInterval = 30 * time.Second
)

// Indexer scans the photo directory, groups photos into date albums,
// and keeps the library store in sync with the filesystem.
type Indexer struct {
	store         *library.Store
	photosDir     string
	indexInterval time.Duration
	pollInterval  time.Duration
	monitor       *memory.Monitor
	probeWorkers  int
	stopChan      chan struct{}

	indexMu              sync.Mutex
	isIndexing           bool
	lastIndexTime        time.Time
	initialIndexComplete bool
	initialIndexError    error
	startTime            time.Time

	photosIndexed atomic.Int64
	albumsIndexed atomic.Int64

	// Last known state for lightweight change detection
	stateMu            sync.RWMutex
	lastRootModTime    time.Time
	lastTopLevelCount  int
	lastSubdirModTimes map[string]time.Time
}

// New creates an Indexer over the photo directory. monitor may be nil.
func New(store *library.Store, photosDir string, indexInterval time.Duration, monitor *memory.Monitor) *Indexer {
	return &Indexer{
		store:              store,
		photosDir:          photosDir,
		indexInterval:      indexInterval,
		pollInterval:       defaultPollInterval,
		monitor:            monitor,
		probeWorkers:       workers.ForIO(16),
		stopChan:           make(chan struct{}),
		startTime:          time.Now(),
		lastSubdirModTimes: make(map[string]time.Time),
	}
}

// SetPollInterval sets the interval for polling-based change detection.
func (idx *Indexer) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		idx.pollInterval = interval
	}
}

// Start kicks off the initial index in the background, then runs
// change-detection polling and periodic full re-indexes.
func (idx *Indexer) Start() {
	go func() {
		logging.Info("Starting initial index in background...")
		if err := idx.Index(); err != nil {
			logging.Error("Initial index error: %v", err)
			idx.indexMu.Lock()
			idx.initialIndexError = err
			idx.indexMu.Unlock()
		}
	}()

	go idx.pollForChanges()
	go idx.periodicIndex()
}

// Stop stops the indexing process.
func (idx *Indexer) Stop() {
	close(idx.stopChan)
}

// IsReady returns true once enough of the library is indexed to serve
// traffic, or the initial index has finished.
func (idx *Indexer) IsReady() bool {
	if idx.photosIndexed.Load() >= minPhotosForReady {
		return true
	}

	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.initialIndexComplete
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Ready             bool      `json:"ready"`
	Indexing          bool      `json:"indexing"`
	StartTime         time.Time `json:"startTime"`
	Uptime            string    `json:"uptime"`
	LastIndexed       time.Time `json:"lastIndexed,omitempty"`
	InitialIndexError string    `json:"initialIndexError,omitempty"`
	PhotosIndexed     int64     `json:"photosIndexed"`
	AlbumsIndexed     int64     `json:"albumsIndexed"`
}

// GetHealthStatus returns detailed health information.
func (idx *Indexer) GetHealthStatus() HealthStatus {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	status := HealthStatus{
		Ready:         idx.initialIndexComplete || idx.photosIndexed.Load() >= minPhotosForReady,
		Indexing:      idx.isIndexing,
		StartTime:     idx.startTime,
		Uptime:        time.Since(idx.startTime).String(),
		LastIndexed:   idx.lastIndexTime,
		PhotosIndexed: idx.photosIndexed.Load(),
		AlbumsIndexed: idx.albumsIndexed.Load(),
	}

	if idx.initialIndexError != nil {
		status.InitialIndexError = idx.initialIndexError.Error()
	}
	return status
}

// IsIndexing reports whether an index run is currently in progress.
func (idx *Indexer) IsIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()
	return idx.isIndexing
}

// TriggerIndex starts an index run in the background.
func (idx *Indexer) TriggerIndex() {
	go func() {
		if err := idx.Index(); err != nil {
			logging.Error("Triggered index error: %v", err)
		}
	}()
}

// periodicIndex runs full re-indexes on the configured interval.
func (idx *Indexer) periodicIndex() {
	if idx.indexInterval <= 0 {
		return
	}

	ticker := time.NewTicker(idx.indexInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := idx.Index(); err != nil {
				logging.Error("Periodic index error: %v", err)
			}
		case <-idx.stopChan:
			return
		}
	}
}

// pollForChanges periodically checks for file changes.
func (idx *Indexer) pollForChanges() {
	for !idx.IsReady() {
		select {
		case <-time.After(1 * time.Second):
		case <-idx.stopChan:
			return
		}
	}

	logging.Info("Starting change detection polling (interval: %v)", idx.pollInterval)

	ticker := time.NewTicker(idx.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			changed, err := idx.detectChanges()
			if err != nil {
				logging.Error("Error detecting changes: %v", err)
				continue
			}
			if changed {
				logging.Info("Photo changes detected, triggering re-index")
				if err := idx.Index(); err != nil {
					logging.Error("Re-index after change detection failed: %v", err)
				}
			}
		case <-idx.stopChan:
			logging.Info("Change detection polling stopped")
			return
		}
	}
}

// detectChanges performs a lightweight check for filesystem changes:
// root mtime, top-level entry count, and subdirectory mtimes. It never
// walks the whole tree, which matters on NFS.
func (idx *Indexer) detectChanges() (bool, error) {
	rootInfo, err := os.Stat(idx.photosDir)
	if err != nil {
		return false, fmt.Errorf("failed to stat photos directory: %w", err)
	}

	idx.stateMu.RLock()
	lastRootModTime := idx.lastRootModTime
	lastTopLevelCount := idx.lastTopLevelCount
	idx.stateMu.RUnlock()

	if rootInfo.ModTime().After(lastRootModTime) {
		logging.Debug("Root directory modified: %v > %v", rootInfo.ModTime(), lastRootModTime)
		return true, nil
	}

	entries, err := os.ReadDir(idx.photosDir)
	if err != nil {
		return false, fmt.Errorf("failed to read photos directory: %w", err)
	}

	topLevelCount := 0
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), ".") {
			topLevelCount++
		}
	}

	if topLevelCount != lastTopLevelCount {
		logging.Debug("Top-level count changed: %d -> %d", lastTopLevelCount, topLevelCount)
		return true, nil
	}

	return idx.checkSubdirectories(entries), nil
}

func (idx *Indexer) checkSubdirectories(entries []fs.DirEntry) bool {
	idx.stateMu.RLock()
	lastSubdirModTimes := idx.lastSubdirModTimes
	idx.stateMu.RUnlock()

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		info, err := os.Stat(filepath.Join(idx.photosDir, entry.Name()))
		if err != nil {
			continue
		}

		lastMod, exists := lastSubdirModTimes[entry.Name()]
		if !exists {
			logging.Debug("New subdirectory detected: %s", entry.Name())
			return true
		}
		if info.ModTime().After(lastMod) {
			logging.Debug("Subdirectory %s modified: %v > %v", entry.Name(), info.ModTime(), lastMod)
			return true
		}
	}
	return false
}

// updateLastKnownState caches the filesystem state after indexing.
func (idx *Indexer) updateLastKnownState() {
	rootInfo, err := os.Stat(idx.photosDir)
	if err != nil {
		logging.Warn("Failed to stat photos directory for state update: %v", err)
		return
	}

	entries, err := os.ReadDir(idx.photosDir)
	if err != nil {
		logging.Warn("Failed to read photos directory for state update: %v", err)
		return
	}

	topLevelCount := 0
	subdirModTimes := make(map[string]time.Time)
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		topLevelCount++

		if entry.IsDir() {
			if info, err := os.Stat(filepath.Join(idx.photosDir, entry.Name())); err == nil {
				subdirModTimes[entry.Name()] = info.ModTime()
			}
		}
	}

	idx.stateMu.Lock()
	idx.lastRootModTime = rootInfo.ModTime()
	idx.lastTopLevelCount = topLevelCount
	idx.lastSubdirModTimes = subdirModTimes
	idx.stateMu.Unlock()
}

// Index performs a full index of the photo directory.
func (idx *Indexer) Index() error {
	if !idx.tryStartIndexing() {
		logging.Info("Index already in progress, skipping...")
		return nil
	}
	defer idx.finishIndexing()

	metrics.IndexerIsRunning.Set(1)
	defer metrics.IndexerIsRunning.Set(0)
	metrics.IndexerRunsTotal.Inc()

	startTime := time.Now()
	logging.Info("Starting photo indexing...")

	idx.photosIndexed.Store(0)
	idx.albumsIndexed.Store(0)

	found, err := idx.scan()
	if err != nil {
		metrics.IndexerErrors.Inc()
		return err
	}

	if err := idx.persist(found, startTime); err != nil {
		metrics.IndexerErrors.Inc()
		return err
	}

	if err := idx.refreshStats(startTime); err != nil {
		logging.Error("Error refreshing library stats: %v", err)
		metrics.IndexerErrors.Inc()
	}

	idx.updateLastKnownState()

	idx.indexMu.Lock()
	idx.lastIndexTime = time.Now()
	idx.indexMu.Unlock()

	metrics.IndexerLastRunDuration.Set(time.Since(startTime).Seconds())
	logging.Info("Indexing complete: %d photos in %d albums (%v)",
		idx.photosIndexed.Load(), idx.albumsIndexed.Load(), time.Since(startTime).Round(time.Millisecond))
	return nil
}

// scan walks the photo directory and probes each image's dimensions
// with a bounded worker pool. Probe failures are logged and skipped;
// one unreadable file must not abort the pass.
func (idx *Indexer) scan() ([]library.Photo, error) {
	var paths []string
	err := filepath.WalkDir(idx.photosDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Warn("Walk error at %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != idx.photosDir {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !media.IsImage(path) {
			return nil
		}

		select {
		case <-idx.stopChan:
			return fs.SkipAll
		default:
		}

		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk failed: %w", err)
	}

	logging.Info("Found %d photos, probing with %d workers", len(paths), idx.probeWorkers)

	photos := make([]library.Photo, len(paths))
	keep := make([]bool, len(paths))

	var wg sync.WaitGroup
	sem := make(chan struct{}, idx.probeWorkers)
	for i, path := range paths {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, path string) {
			defer wg.Done()
			defer func() { <-sem }()

			info, err := os.Stat(path)
			if err != nil {
				logging.Warn("Failed to stat %s: %v", path, err)
				return
			}

			p := library.Photo{
				Name:     filepath.Base(path),
				Path:     path,
				Size:     info.Size(),
				TakenAt:  info.ModTime(),
				MimeType: media.MimeType(path),
			}
			if w, h, err := media.Probe(path); err == nil {
				p.Width, p.Height = w, h
			} else {
				logging.Debug("Probe failed for %s: %v", path, err)
			}

			photos[i] = p
			keep[i] = true
		}(i, path)
	}
	wg.Wait()

	out := photos[:0]
	for i := range photos {
		if keep[i] {
			out = append(out, photos[i])
		}
	}
	return out, nil
}

// persist writes the scanned photos in batched transactions, creating
// a date album per capture day, then removes records for files that
// disappeared.
func (idx *Indexer) persist(photos []library.Photo, indexStart time.Time) error {
	for start := 0; start < len(photos); start += batchSize {
		select {
		case <-idx.stopChan:
			return nil
		default:
		}

		end := start + batchSize
		if end > len(photos) {
			end = len(photos)
		}

		if err := idx.persistBatch(photos[start:end]); err != nil {
			return err
		}

		delay := batchDelay
		if idx.monitor != nil && idx.monitor.ShouldThrottle() {
			delay += throttleDelay
		}
		time.Sleep(delay)
	}

	// Cleanup in its own transaction so a failure does not roll back
	// the upserts.
	tx, err := idx.store.BeginBatch()
	if err != nil {
		return fmt.Errorf("begin cleanup batch: %w", err)
	}

	removed, err := idx.store.DeleteMissingPhotos(tx, indexStart)
	if err == nil {
		_, err = idx.store.DeleteEmptyAlbums(tx)
	}
	if endErr := idx.store.EndBatch(tx, err); endErr != nil {
		return fmt.Errorf("cleanup failed: %w", endErr)
	}
	if removed > 0 {
		logging.Info("Removed %d photos no longer on disk", removed)
	}
	return nil
}

func (idx *Indexer) persistBatch(batch []library.Photo) error {
	tx, err := idx.store.BeginBatch()
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}

	albumIDs := make(map[string]int64)
	var batchErr error
	for i := range batch {
		p := &batch[i]
		date := p.TakenAt.Format("2006-01-02")

		albumID, ok := albumIDs[date]
		if !ok {
			albumID, batchErr = idx.store.UpsertAlbum(tx, date, albumTitle(p.TakenAt))
			if batchErr != nil {
				break
			}
			albumIDs[date] = albumID
			idx.albumsIndexed.Add(1)
		}

		p.AlbumID = albumID
		if batchErr = idx.store.UpsertPhoto(tx, p); batchErr != nil {
			break
		}
		idx.photosIndexed.Add(1)
		metrics.IndexerPhotosProcessed.Inc()
	}

	return idx.store.EndBatch(tx, batchErr)
}

// refreshStats recounts the library and caches the result.
func (idx *Indexer) refreshStats(startTime time.Time) error {
	stats, err := idx.store.CountStats(context.Background())
	if err != nil {
		return err
	}
	stats.LastIndexed = time.Now()
	stats.IndexDuration = time.Since(startTime).Round(time.Millisecond).String()
	idx.store.UpdateStats(stats)

	// An album spanning two batches is counted once here.
	idx.albumsIndexed.Store(int64(stats.TotalAlbums))
	return nil
}

func (idx *Indexer) tryStartIndexing() bool {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	if idx.isIndexing {
		return false
	}
	idx.isIndexing = true
	return true
}

func (idx *Indexer) finishIndexing() {
	idx.indexMu.Lock()
	defer idx.indexMu.Unlock()

	idx.isIndexing = false
	idx.initialIndexComplete = true
}

// albumTitle formats an album's display title from its date.
func albumTitle(t time.Time) string {
	return t.Format("January 2, 2006")
}
