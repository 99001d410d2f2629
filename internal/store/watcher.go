package store

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const (
	debounceDelay  = 500 * time.Millisecond
	suppressWindow = 2 * time.Second
	pollInterval   = 5 * time.Second
)

// Watcher reports out-of-process changes to the store file, so a running
// instance notices mutations made by one-shot CLI invocations against the
// same database.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	onChange func()
	stopChan chan struct{}
	stopOnce sync.Once
	lastMod  time.Time
}

// NewWatcher creates a watcher for the store's file; onChange fires once
// per debounced burst of foreign writes.
func NewWatcher(s *Store, onChange func()) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		store:    s,
		watcher:  watcher,
		onChange: onChange,
		stopChan: make(chan struct{}),
	}
	if stat, err := os.Stat(s.Path()); err == nil {
		w.lastMod = stat.ModTime()
	}
	return w, nil
}

// Start begins watching the store directory, falling back to polling when
// the platform watcher cannot attach.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.store.Path())
	if err := w.watcher.Add(dir); err != nil {
		log.Warn().Err(err).Str("path", dir).Msg("Failed to watch store directory; falling back to polling")
		go w.pollForChanges()
		return nil
	}

	go w.watchForChanges()
	log.Info().Str("path", w.store.Path()).Msg("Started watching store file for external changes")
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		w.watcher.Close()
	})
}

func (w *Watcher) watchForChanges() {
	timer := time.NewTimer(debounceDelay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isStoreFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Coalesce bursts; sqlite touches db, -wal and -shm in quick succession.
			timer.Reset(debounceDelay)

		case <-timer.C:
			w.maybeNotify()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Store watcher error")

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) pollForChanges() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if stat, err := os.Stat(w.store.Path()); err == nil {
				if stat.ModTime().After(w.lastMod) {
					w.lastMod = stat.ModTime()
					w.maybeNotify()
				}
			}

		case <-w.stopChan:
			return
		}
	}
}

// maybeNotify fires onChange unless the store was active locally just now.
// Local operations touch the same file; without the suppression window every
// rebuild's own reads could re-trigger the watcher.
func (w *Watcher) maybeNotify() {
	if time.Since(w.store.LastOperation()) < suppressWindow {
		log.Debug().Msg("Store file change matches recent local activity; ignoring")
		return
	}
	log.Info().Msg("Detected external store file change")
	w.onChange()
}

func (w *Watcher) isStoreFile(name string) bool {
	base := filepath.Base(w.store.Path())
	eventBase := filepath.Base(name)
	return eventBase == base || strings.HasPrefix(eventBase, base+"-")
}
