package orchestrator

import (
	"sync"
	"time"
)

// archiver owns the deferred post-delivery archives. Every pending
// archive is a tracked timer, so shutdown can cancel them and an archive
// cascade can cancel timers for descendants it already removed.
type archiver struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	archive func(id string)
	stopped bool
}

func newArchiver(archive func(id string)) *archiver {
	return &archiver{
		timers:  make(map[string]*time.Timer),
		archive: archive,
	}
}

// Schedule arms a timer that archives the session after delay.
// Re-scheduling an id resets its timer.
func (a *archiver) Schedule(id string, delay time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	if t, ok := a.timers[id]; ok {
		t.Stop()
	}
	a.timers[id] = time.AfterFunc(delay, func() {
		a.mu.Lock()
		delete(a.timers, id)
		a.mu.Unlock()
		a.archive(id)
	})
}

// Cancel stops the pending archive for id, if any.
func (a *archiver) Cancel(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.timers[id]; ok {
		t.Stop()
		delete(a.timers, id)
	}
}

// Pending returns the number of armed timers.
func (a *archiver) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.timers)
}

// Stop cancels every pending archive and refuses new ones.
func (a *archiver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	for id, t := range a.timers {
		t.Stop()
		delete(a.timers, id)
	}
}
