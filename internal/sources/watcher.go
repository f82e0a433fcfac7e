package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jonesrussell/gigharvest/internal/logger"
)

// debounceWindow coalesces bursts of filesystem events (editors write
// multiple times per save) into one reload signal.
const debounceWindow = 2 * time.Second

// Watcher signals when the sources directory changes on disk. The
// callback fires between runs only in the sense that it merely signals;
// applying the reload is the registry owner's responsibility and must be
// serialized against active runs.
type Watcher struct {
	dir      string
	logger   logger.Interface
	onChange func()
}

// NewWatcher creates a sources directory watcher.
func NewWatcher(dir string, onChange func(), log logger.Interface) *Watcher {
	return &Watcher{
		dir:      dir,
		logger:   log,
		onChange: onChange,
	}
}

// Watch blocks, invoking the callback after each debounced batch of
// changes, until the context is cancelled.
func (w *Watcher) Watch(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsWatcher.Close()

	if err := fsWatcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	w.logger.Info("Watching sources directory", "dir", w.dir)

	var debounce *time.Timer
	var debounceC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if !relevantEvent(event) {
				continue
			}
			w.logger.Debug("Sources directory changed",
				"file", event.Name,
				"op", event.Op.String(),
			)
			if debounce == nil {
				debounce = time.NewTimer(debounceWindow)
				debounceC = debounce.C
			} else {
				debounce.Reset(debounceWindow)
			}

		case <-debounceC:
			debounce = nil
			debounceC = nil
			w.onChange()

		case watchErr, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Sources watcher error", "error", watchErr)
		}
	}
}

// relevantEvent filters for YAML writes, creations, removals and renames.
func relevantEvent(event fsnotify.Event) bool {
	if !isYAML(strings.ToLower(event.Name)) {
		return false
	}
	return event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) ||
		event.Has(fsnotify.Rename)
}
