// Package watcher monitors the directories of local sources and broadcasts
// change events via callbacks.
package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	mfs "github.com/CageChen/filesource/internal/fs"
	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// EventType represents the type of file system event
type EventType int

// File system event types.
const (
	EventCreate EventType = iota
	EventWrite
	EventRemove
	EventRename
)

// String returns the name used on the wire.
func (t EventType) String() string {
	switch t {
	case EventCreate:
		return "create"
	case EventWrite:
		return "update"
	case EventRemove:
		return "remove"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Event is a change to a file of a source. Path is rooted at "/" and
// relative to the source root, like the paths returned by the source.
type Event struct {
	Type   EventType
	Source string
	Path   string
}

// Callback is a function called when file changes occur
type Callback func(Event)

// Target is a watchable source.
type Target interface {
	Name() string
	Root() string
	Watchable() bool
	Excluded(entry mfs.DirEntry) bool
}

// Watcher monitors file system changes below the roots of its targets
type Watcher struct {
	watcher   *fsnotify.Watcher
	targets   []Target
	callbacks []Callback
	mu        sync.RWMutex
	done      chan struct{}
}

// New creates a new file system watcher. Targets that are not watchable are
// ignored.
func New(targets []Target) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	watched := make([]Target, 0, len(targets))
	for _, t := range targets {
		if t.Watchable() {
			watched = append(watched, t)
		}
	}
	return &Watcher{
		watcher: w,
		targets: watched,
		done:    make(chan struct{}),
	}, nil
}

// OnChange registers a callback for file change events
func (w *Watcher) OnChange(cb Callback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Start begins watching every target directory tree
func (w *Watcher) Start() error {
	for _, t := range w.targets {
		w.addTree(t, t.Root())
	}

	go w.eventLoop()
	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) addTree(t Target, dir string) {
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && t.Excluded(mfs.DirEntry{Name: d.Name(), Type: mfs.TypeDir}) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			log.Warnf("cannot watch %s: %v", p, err)
		}
		return nil
	})
	if err != nil {
		log.Warnf("failed to walk source %s at %s: %v", t.Name(), dir, err)
	}
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warnf("watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	t, rel, ok := w.resolve(event.Name)
	if !ok {
		return
	}

	dir := isDir(event.Name)
	if w.excluded(t, rel, dir) {
		return
	}

	var eventType EventType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = EventCreate
		// New directories are watched with everything already in them
		if dir {
			w.addTree(t, event.Name)
			return
		}
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = EventWrite
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = EventRemove
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = EventRename
	default:
		return
	}
	if dir {
		return
	}

	e := Event{
		Type:   eventType,
		Source: t.Name(),
		Path:   rel,
	}

	w.mu.RLock()
	callbacks := make([]Callback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, cb := range callbacks {
		cb(e)
	}
}

// resolve finds the target with the longest root containing name.
func (w *Watcher) resolve(name string) (Target, string, bool) {
	var (
		best    Target
		bestRel string
		bestLen = -1
	)
	for _, t := range w.targets {
		rel, err := filepath.Rel(t.Root(), name)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if l := len(t.Root()); l > bestLen {
			best, bestRel, bestLen = t, "/"+filepath.ToSlash(rel), l
		}
	}
	return best, bestRel, best != nil
}

// excluded applies the target's exclusion to every segment of rel.
func (w *Watcher) excluded(t Target, rel string, dir bool) bool {
	segments := strings.Split(strings.TrimPrefix(rel, "/"), "/")
	for i, seg := range segments {
		typ := mfs.TypeDir
		if i == len(segments)-1 && !dir {
			typ = mfs.TypeFile
		}
		if t.Excluded(mfs.DirEntry{Name: seg, Type: typ}) {
			return true
		}
	}
	return false
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
