package main

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow is the quiet period a burst of filesystem events must
// observe before a single notification goes out. It resets on every
// qualifying event.
const debounceWindow = 100 * time.Millisecond

// watchStrategy abstracts over how a directory tree gets registered with the
// platform watcher. Chosen once at startup.
type watchStrategy interface {
	name() string
	add(w *fsnotify.Watcher, root string) error
}

// recursiveStrategy registers only the root and relies on the backend to
// deliver events for the whole subtree.
type recursiveStrategy struct{}

func (recursiveStrategy) name() string { return "recursive" }

func (recursiveStrategy) add(w *fsnotify.Watcher, root string) error {
	return w.Add(root)
}

// walkStrategy discovers every subdirectory up front and watches each one
// individually. Known gap: directories created after startup are not picked
// up; a restart re-discovers them. A watch failure on one subdirectory skips
// that subtree and keeps its siblings.
type walkStrategy struct{}

func (walkStrategy) name() string { return "walk" }

func (walkStrategy) add(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Printf("Warning: cannot enumerate %s: %v", filepath.Base(p), err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.Add(p); err != nil {
			log.Printf("Warning: cannot watch %s: %v", d.Name(), err)
			return filepath.SkipDir
		}
		return nil
	})
}

// platformSupportsRecursiveWatch reports whether the watch backend delivers
// subtree events from a single root watch. fsnotify's inotify, kqueue and
// ReadDirectoryChangesW backends all expose one directory level today; flip
// this per-GOOS once upstream recursive support (fsnotify/fsnotify#18) ships.
func platformSupportsRecursiveWatch() bool {
	return false
}

func pickWatchStrategy() watchStrategy {
	if platformSupportsRecursiveWatch() {
		return recursiveStrategy{}
	}
	return walkStrategy{}
}

// watchRouter observes the artifact folders, filters the event stream down
// to relevant document changes, and debounces bursts into single onChange
// calls carrying the most recently changed file's name.
type watchRouter struct {
	watcher  *fsnotify.Watcher
	strategy watchStrategy
	quiet    time.Duration
	onChange func(file string)

	done      chan struct{}
	closeOnce sync.Once
}

func newWatchRouter(root string, folders []string, quiet time.Duration, onChange func(string)) (*watchRouter, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	r := &watchRouter{
		watcher:  w,
		strategy: pickWatchStrategy(),
		quiet:    quiet,
		onChange: onChange,
		done:     make(chan struct{}),
	}

	watched := 0
	for _, folder := range folders {
		dir := filepath.Join(root, folder)
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := r.strategy.add(w, dir); err != nil {
			log.Printf("Warning: cannot watch %s: %v", folder, err)
			continue
		}
		watched++
	}
	log.Printf("Watching %d folder(s) with %s strategy", watched, r.strategy.name())

	go r.run()
	return r, nil
}

func (r *watchRouter) run() {
	var timer *time.Timer
	var timerC <-chan time.Time
	var lastFile string

	for {
		select {
		case <-r.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if !isRelevantFile(name) {
				continue
			}
			// Last-write-wins: only the most recent name survives the
			// quiet window.
			lastFile = name
			if timer == nil {
				timer = time.NewTimer(r.quiet)
				timerC = timer.C
				continue
			}
			if !timer.Stop() {
				select {
				case <-timerC:
				default:
				}
			}
			timer.Reset(r.quiet)

		case <-timerC:
			timer = nil
			timerC = nil
			r.onChange(lastFile)

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher error: %v", err)
		}
	}
}

func (r *watchRouter) close() {
	r.closeOnce.Do(func() {
		close(r.done)
		if err := r.watcher.Close(); err != nil {
			log.Printf("Warning: failed to close watcher: %v", err)
		}
	})
}

// isRelevantFile filters the raw event stream: dotfiles, editor backup and
// swap artifacts, and anything outside the served format whitelist are
// dropped before they can reset the debounce timer.
func isRelevantFile(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	if strings.HasPrefix(name, "#") && strings.HasSuffix(name, "#") {
		return false
	}
	for _, suffix := range []string{"~", ".swp", ".swx", ".tmp", ".bak", ".orig"} {
		if strings.HasSuffix(name, suffix) {
			return false
		}
	}
	return servedExtensions[strings.ToLower(filepath.Ext(name))]
}
