// Package filewatcher watches a drop folder and feeds new files into a
// session.
package filewatcher

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// DefaultExtensions are watched when none are configured.
var DefaultExtensions = []string{".pdf", ".txt", ".md", ".html"}

const eventBuffer = 100

// FSNotifyWatcher implements ports.FileWatcher using fsnotify.
type FSNotifyWatcher struct {
	watcher    *fsnotify.Watcher
	extensions map[string]struct{}
	logger     *zap.Logger
}

// NewFSNotifyWatcher creates a new file watcher. Extensions are matched
// case-insensitively, with or without the leading dot.
func NewFSNotifyWatcher(extensions []string, logger *zap.Logger) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	set := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return &FSNotifyWatcher{watcher: w, extensions: set, logger: logger}, nil
}

// Watch adds dir to the watch list and emits events for matching files
// until ctx is done or the watcher is stopped.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	out := make(chan ports.FileEvent, eventBuffer)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				ev, ok := w.translate(raw)
				if !ok {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watcher error", zap.String("dir", dir), zap.Error(err))
			}
		}
	}()
	return out, nil
}

// Stop closes the underlying watcher, which also ends every Watch stream.
func (w *FSNotifyWatcher) Stop() error {
	return w.watcher.Close()
}

// translate maps an fsnotify event onto a FileEvent. A rename reports the
// old name leaving the folder; the new name arrives as its own create.
func (w *FSNotifyWatcher) translate(ev fsnotify.Event) (ports.FileEvent, bool) {
	if !w.isWatchedExtension(ev.Name) {
		return ports.FileEvent{}, false
	}
	var op ports.FileOperation
	switch {
	case ev.Has(fsnotify.Create):
		op = ports.FileCreated
	case ev.Has(fsnotify.Write):
		op = ports.FileModified
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		op = ports.FileDeleted
	default:
		return ports.FileEvent{}, false
	}
	return ports.FileEvent{Path: ev.Name, Operation: op}, true
}

func (w *FSNotifyWatcher) isWatchedExtension(path string) bool {
	_, ok := w.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}
