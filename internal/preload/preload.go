package preload

import (
	"errors"
	"time"
)

// Priority orders preload work. Higher priorities are dequeued first;
// within a tier, submission order is preserved.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

// String returns the priority's wire name.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}

// ErrSkipped marks a preload that admission control refused. A skip is
// not a failure: it is a deliberate decision not to spend bandwidth or
// memory.
var ErrSkipped = errors.New("skipped due to constraints")

// ErrLoadTimeout is reported to a waiter whose load did not settle
// within the configured timeout. The underlying load keeps running and
// may still populate the cache afterwards.
var ErrLoadTimeout = errors.New("image load timed out")

// ErrClosed is reported for jobs still queued when the cache shuts down.
var ErrClosed = errors.New("preload cache closed")

// Item is one entry in a batch preload request.
type Item struct {
	URL      string
	Priority Priority
}

// SmartItem is one entry in an importance-scored preload request.
// Importance is 0..1; UserInteraction forces the high tier.
type SmartItem struct {
	URL             string
	Importance      float64
	UserInteraction bool
}

// Result reports the outcome of a single preload attempt. The cache
// never fails a caller through an error return: a missing preload is
// an optimization miss, not a correctness problem, so all outcomes are
// encoded here.
type Result struct {
	URL      string
	Success  bool
	Skipped  bool
	Duration time.Duration
	Width    int
	Height   int
	Size     int64
	Err      error
}

// Stats are the cache's running aggregates. They are updated
// incrementally on every completed attempt and reset only by Clear.
type Stats struct {
	Total        int
	Successful   int
	Failed       int
	Skipped      int
	TotalTime    time.Duration
	AverageTime  time.Duration
	CacheHitRate float64
}

// Info describes the cache's current occupancy.
type Info struct {
	Entries   int
	SizeBytes int64
	InFlight  int
	Queued    int
}

// tierFor maps an importance score and interaction signal to a
// priority tier: interaction or importance above 0.7 is high, above
// 0.3 medium, everything else low.
func tierFor(importance float64, userInteraction bool) Priority {
	switch {
	case userInteraction || importance > 0.7:
		return PriorityHigh
	case importance > 0.3:
		return PriorityMedium
	default:
		return PriorityLow
	}
}
