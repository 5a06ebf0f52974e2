// Package reload watches the configuration file and delivers a freshly
// loaded configuration whenever it changes on disk.
package reload

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Veraticus/kmpscan/pkg/config"
)

// Watcher reloads a config file on change
type Watcher struct {
	path      string
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	onChange  func(*config.Config)
	onError   func(error)

	mu     sync.Mutex
	closed bool
	stop   chan struct{}
	done   chan struct{}
}

// NewWatcher starts watching path. onChange receives every configuration
// that loads and validates; a file that fails to load is reported to
// stderr and the previous configuration stays in effect.
func NewWatcher(path string, debounce time.Duration, onChange func(*config.Config)) (*Watcher, error) {
	return newWatcher(path, debounce, onChange, func(err error) {
		fmt.Fprintf(os.Stderr, "kmpscan: config reload failed: %v\n", err)
	})
}

func newWatcher(path string, debounce time.Duration, onChange func(*config.Config), onError func(error)) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("no config path to watch")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Editors often replace the file rather than write it in place, so the
	// directory is watched and events are filtered by name.
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:      abs,
		watcher:   fw,
		debouncer: NewDebouncer(debounce),
		onChange:  onChange,
		onError:   onError,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	go w.run()

	return w, nil
}

// Path returns the absolute path being watched
func (w *Watcher) Path() string {
	return w.path
}

// Close stops watching. Pending reloads are discarded.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.stop)
	w.debouncer.Stop()
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) run() {
	defer close(w.done)

	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.debouncer.Debounce(w.path, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "kmpscan: config watcher error: %v\n", err)
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return
	}

	// A file that was moved away leaves the current configuration alone
	if _, err := os.Stat(w.path); err != nil {
		return
	}

	cfg, err := config.LoadFrom(w.path)
	if err != nil {
		w.onError(err)
		return
	}

	if os.Getenv("KMPSCAN_DEBUG") == "1" {
		fmt.Fprintf(os.Stderr, "kmpscan: reloaded %s (%d patterns)\n", w.path, len(cfg.Patterns))
	}
	w.onChange(cfg)
}
