package source

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/Swind/go-display-runner/core"
)

// EventKind says what happened to a watched file.
type EventKind int

const (
	FileChanged EventKind = iota
	FileRemoved
)

// Event is one change to an accepted file.
type Event struct {
	Kind EventKind
	Path string
}

// DirWatcher reports changes to files in one directory that pass a filter.
type DirWatcher struct {
	watcher *fsnotify.Watcher
	dir     string
	accept  func(path string) bool
	handler func(Event)
	logger  core.Logger

	done    chan struct{}
	stopped chan struct{}
	mu      sync.Mutex
	running bool
}

// NewDirWatcher creates a watcher for dir. handler runs on the watcher's
// goroutine, one event at a time.
func NewDirWatcher(dir string, accept func(path string) bool, handler func(Event), logger core.Logger) (*DirWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = core.NewNoOpLogger()
	}
	if accept == nil {
		accept = func(string) bool { return true }
	}

	return &DirWatcher{
		watcher: watcher,
		dir:     dir,
		accept:  accept,
		handler: handler,
		logger:  logger,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}, nil
}

// Start begins watching the directory.
func (dw *DirWatcher) Start() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.running {
		return nil
	}

	if err := dw.watcher.Add(dw.dir); err != nil {
		return err
	}
	dw.running = true

	go dw.watch()
	return nil
}

// watch is the main watch loop.
func (dw *DirWatcher) watch() {
	defer close(dw.stopped)

	for {
		select {
		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			if !dw.accept(event.Name) {
				continue
			}

			switch {
			case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
				dw.handler(Event{Kind: FileChanged, Path: event.Name})
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				dw.handler(Event{Kind: FileRemoved, Path: event.Name})
			}

		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			dw.logger.Warn("directory watcher error", core.F("dir", dw.dir), core.F("error", err))

		case <-dw.done:
			return
		}
	}
}

// Stop stops the watcher and waits for the handler to return.
func (dw *DirWatcher) Stop() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if !dw.running {
		return dw.watcher.Close()
	}

	dw.running = false
	close(dw.done)
	err := dw.watcher.Close()
	<-dw.stopped
	return err
}

// ScanDir lists the accepted regular files in dir, sorted by name.
func ScanDir(dir string, accept func(path string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if accept == nil || accept(path) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}
