package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Coalescer is the single-owner debouncer for file watcher churn. Rather
// than tracking per-path event types, it keeps a set of pending absolute
// paths and the time of the most recent event. A timer repeatedly checks
// whether the quiet window has elapsed; once it has and the pending set is
// non-empty, it resolves one path to its project root and emits a single
// index command for that root, then clears the set.
type Coalescer struct {
	window  time.Duration
	pending map[string]struct{}

	mu        sync.Mutex
	lastEvent time.Time
	timer     *time.Timer
	stopped   bool

	output chan string
}

// NewCoalescer creates a coalescer with the given debounce window.
func NewCoalescer(window time.Duration) *Coalescer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Coalescer{
		window:  window,
		pending: make(map[string]struct{}),
		output:  make(chan string, 10),
	}
}

// Add records path as pending and (re)schedules the debounce check.
func (c *Coalescer) Add(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}

	c.pending[path] = struct{}{}
	c.lastEvent = time.Now()
	c.scheduleCheckLocked(c.window)
}

// scheduleCheckLocked arms the debounce timer. Callers must hold c.mu.
func (c *Coalescer) scheduleCheckLocked(d time.Duration) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(d, c.check)
}

// check runs when the debounce timer fires. If events have arrived since
// the timer was armed, it reschedules for the remaining quiet time instead
// of flushing early.
func (c *Coalescer) check() {
	c.mu.Lock()

	if c.stopped || len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}

	elapsed := time.Since(c.lastEvent)
	if elapsed < c.window {
		c.scheduleCheckLocked(c.window - elapsed)
		c.mu.Unlock()
		return
	}

	var picked string
	for p := range c.pending {
		picked = p
		break
	}
	count := len(c.pending)
	c.pending = make(map[string]struct{})
	c.mu.Unlock()

	root := FindProjectRoot(picked)
	slog.Info("coalesced file changes, re-indexing",
		slog.Int("pending_paths", count),
		slog.String("root", root),
	)

	select {
	case c.output <- root:
	default:
		slog.Warn("coalescer output full, dropping index command", slog.String("root", root))
	}
}

// Output returns the channel of project roots to re-index. Exactly one
// root is sent per settled burst of changes.
func (c *Coalescer) Output() <-chan string {
	return c.output
}

// Stop stops the coalescer and closes the output channel.
// Safe to call multiple times.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
	}
	close(c.output)
}
