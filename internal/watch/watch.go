// Package watch reports batches of source changes under a directory tree.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultIgnore lists directory names never watched.
var DefaultIgnore = []string{".git", "vendor", "node_modules", "tmp"}

// DefaultExtensions lists the file suffixes that trigger a reload.
var DefaultExtensions = []string{".go", ".mod", ".sum", ".sql", ".yaml", ".yml"}

// Options tune a watcher.
type Options struct {
	Root       string
	Extensions []string
	Ignore     []string
	Debounce   time.Duration
}

// Watcher recursively watches Root.
type Watcher struct {
	fs     *fsnotify.Watcher
	opts   Options
	logger *slog.Logger
}

// New starts watching every non-ignored directory under opts.Root.
func New(opts Options, log *slog.Logger) (*Watcher, error) {
	if opts.Root == "" {
		opts.Root = "."
	}
	if opts.Extensions == nil {
		opts.Extensions = DefaultExtensions
	}
	if opts.Ignore == nil {
		opts.Ignore = DefaultIgnore
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{fs: fw, opts: opts, logger: log}
	if err := w.addTree(opts.Root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Run delivers each debounced batch of changed paths to onChange until ctx ends.
func (w *Watcher) Run(ctx context.Context, onChange func([]string)) error {
	pending := map[string]struct{}{}
	timer := time.NewTimer(w.opts.Debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn("watch new directory failed", "path", event.Name, "error", err)
					}
					continue
				}
			}
			if event.Has(fsnotify.Chmod) || !w.relevant(event.Name) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.opts.Debounce)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for path := range pending {
				changed = append(changed, path)
			}
			sort.Strings(changed)
			clear(pending)
			onChange(changed)
		}
	}
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignored(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) ignored(name string) bool {
	return slices.Contains(w.opts.Ignore, name) || (strings.HasPrefix(name, ".") && name != ".")
}

func (w *Watcher) relevant(path string) bool {
	if rel, err := filepath.Rel(w.opts.Root, path); err == nil {
		path = rel
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if slices.Contains(w.opts.Ignore, part) {
			return false
		}
	}
	ext := filepath.Ext(path)
	return slices.Contains(w.opts.Extensions, ext)
}
