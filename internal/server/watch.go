package server

import (
	"fmt"
	"log"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ArtifactWatcher watches the paths of logged artifacts and reports
// writes, so UI clients can live-refresh a preview when a session
// rewrites a file it already announced.
type ArtifactWatcher struct {
	watcher  *fsnotify.Watcher
	onChange func(path string)

	mu      sync.Mutex
	watched map[string]bool
	done    chan struct{}
}

// NewArtifactWatcher starts a watcher that calls onChange with the path
// of every written or created watched file.
func NewArtifactWatcher(onChange func(path string)) (*ArtifactWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	aw := &ArtifactWatcher{
		watcher:  w,
		onChange: onChange,
		watched:  make(map[string]bool),
		done:     make(chan struct{}),
	}
	go aw.run()
	return aw, nil
}

func (aw *ArtifactWatcher) run() {
	for {
		select {
		case <-aw.done:
			return
		case event, ok := <-aw.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				aw.onChange(event.Name)
			}
		case err, ok := <-aw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[server] artifact watcher: %v", err)
		}
	}
}

// Add starts watching an artifact path. A path that does not exist yet
// is skipped silently; the session may log it before writing it.
func (aw *ArtifactWatcher) Add(path string) {
	if path == "" {
		return
	}

	aw.mu.Lock()
	defer aw.mu.Unlock()
	if aw.watched[path] {
		return
	}
	if err := aw.watcher.Add(path); err != nil {
		log.Printf("[server] cannot watch artifact %s: %v", path, err)
		return
	}
	aw.watched[path] = true
}

// Close stops the watcher.
func (aw *ArtifactWatcher) Close() error {
	close(aw.done)
	return aw.watcher.Close()
}
