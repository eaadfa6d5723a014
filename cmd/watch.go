package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"rehearse/internal/config"
	"rehearse/pkg/logging"
)

// scenarioWatcher reports debounced changes to scenario files and the
// config file.
type scenarioWatcher struct {
	mu sync.Mutex

	watcher  *fsnotify.Watcher
	debounce time.Duration
	files    map[string]bool

	// pending is the latest change waiting for the debounce interval
	pending *time.Timer
	changed []string
}

// newScenarioWatcher watches every directory under paths and the parent
// directory of every file path. Editors often replace files on save, so
// files are matched by name inside watched directories.
func newScenarioWatcher(paths []string, debounce time.Duration) (*scenarioWatcher, error) {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &scenarioWatcher{
		watcher:  watcher,
		debounce: debounce,
		files:    make(map[string]bool),
	}

	for _, p := range paths {
		if err := w.add(p); err != nil {
			watcher.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *scenarioWatcher) add(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		w.files[filepath.Clean(path)] = true
		return w.watch(filepath.Dir(path))
	}
	return filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watch(p)
		}
		return nil
	})
}

func (w *scenarioWatcher) watch(dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	logging.Debug("ScenarioWatcher", "Watching directory: %s", dir)
	return nil
}

// Run emits the changed file names on changes after each quiet period until
// ctx is done. Changes arriving while the receiver is busy are merged into
// the next emission.
func (w *scenarioWatcher) Run(ctx context.Context, changes chan<- []string) {
	defer w.stop()
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event, changes)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("ScenarioWatcher", err, "Filesystem watcher error")
		}
	}
}

func (w *scenarioWatcher) handle(event fsnotify.Event, changes chan<- []string) {
	if !w.relevant(event) {
		return
	}
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watch(event.Name); err != nil {
				logging.Warn("ScenarioWatcher", "Failed to watch new directory %s: %v", event.Name, err)
			}
			return
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.changed = appendUnique(w.changed, event.Name)
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		changed := w.changed
		w.changed = nil
		w.pending = nil
		w.mu.Unlock()

		select {
		case changes <- changed:
			logging.Debug("ScenarioWatcher", "Emitted change for %v", changed)
		default:
			// receiver busy; keep the names for the next emission
			w.mu.Lock()
			for _, name := range changed {
				w.changed = appendUnique(w.changed, name)
			}
			w.mu.Unlock()
			logging.Debug("ScenarioWatcher", "Run in progress, deferring change for %v", changed)
		}
	})
}

func (w *scenarioWatcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Clean(event.Name)
	if w.files[name] {
		return true
	}
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(name); err == nil && info.IsDir() {
			return true
		}
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func (w *scenarioWatcher) stop() {
	w.mu.Lock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.mu.Unlock()
	w.watcher.Close()
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// watchScenarios runs the suite, then re-runs it every time a watched file
// changes until ctx is cancelled. Failed runs are reported and watching
// continues.
func watchScenarios(ctx context.Context, out io.Writer, opts *runOptions, args []string) error {
	configPath := opts.configPath
	if configPath == "" {
		configPath = config.DefaultConfigFile
	}
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return reportConfigError(out, err)
	}
	paths, err := scenarioPaths(args, cfg, opts.configPath)
	if err != nil {
		return err
	}

	watched := append([]string{}, paths...)
	if _, err := os.Stat(configPath); err == nil {
		watched = append(watched, configPath)
	}
	w, err := newScenarioWatcher(watched, opts.debounce)
	if err != nil {
		return fmt.Errorf("failed to watch scenarios: %w", err)
	}

	changes := make(chan []string, 1)
	go w.Run(ctx, changes)

	runAndReport(ctx, out, opts, args)
	fmt.Fprintf(out, "👀 Watching %s for changes (Ctrl+C to stop)\n", strings.Join(watched, ", "))

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\nStopped watching")
			return nil
		case changed := <-changes:
			fmt.Fprintf(out, "\n🔄 Change detected in %s, re-running\n", strings.Join(changed, ", "))
			runAndReport(ctx, out, opts, args)
		}
	}
}

// runAndReport runs once and keeps the error out of the watch loop.
func runAndReport(ctx context.Context, out io.Writer, opts *runOptions, args []string) {
	err := runOnce(ctx, out, opts, args)
	var failed *testsFailedError
	switch {
	case err == nil:
	case errors.As(err, &failed):
		logging.Info("Watch", "Run finished: %v", err)
	default:
		if _, ok := detailedReport(err); !ok {
			fmt.Fprintf(out, "❌ %v\n", err)
		}
	}
}
