package localfs

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MrSnakeDoc/snip/internal/logger"
	"github.com/MrSnakeDoc/snip/internal/provider/fileformat"
)

// Watcher turns file changes under the watched roots into debounced calls
// of onChange. A burst of writes produces one call after the quiet period.
type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func(path string)
	log      logger.Logger

	mu      sync.Mutex
	roots   map[string][]string // root -> directories watched for it
	timer   *time.Timer
	pending string
}

// NewWatcher creates a watcher. onChange receives the last changed path of
// each burst and must not block.
func NewWatcher(debounce time.Duration, onChange func(path string), log logger.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	return &Watcher{
		watcher:  w,
		debounce: debounce,
		onChange: onChange,
		log:      log.Named("watcher"),
		roots:    make(map[string][]string),
	}, nil
}

// Sync makes the watched roots equal to dirs. fsnotify is not recursive, so
// every subdirectory present now is watched as well.
func (w *Watcher) Sync(dirs []string) {
	want := make(map[string]struct{}, len(dirs))
	for _, d := range dirs {
		want[filepath.Clean(d)] = struct{}{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for root, watched := range w.roots {
		if _, keep := want[root]; keep {
			continue
		}
		for _, d := range watched {
			_ = w.watcher.Remove(d)
		}
		delete(w.roots, root)
		w.log.Debug("stopped watching", logger.String("dir", root))
	}

	for root := range want {
		if _, ok := w.roots[root]; ok {
			continue
		}
		watched := w.addTree(root)
		if len(watched) == 0 {
			continue
		}
		w.roots[root] = watched
		w.log.Info("watching snippet folder",
			logger.String("dir", root),
			logger.Int("dirs", len(watched)))
	}
}

func (w *Watcher) addTree(root string) []string {
	var watched []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.log.Warn("failed to watch directory", logger.String("dir", path), logger.Error(err))
			return nil
		}
		watched = append(watched, path)
		return nil
	})
	return watched
}

// Run processes events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer func() { _ = w.Close() }()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("watcher error", logger.Error(err))
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if !fileformat.Supported(event.Name) {
		return
	}
	w.log.Debug("snippet file changed",
		logger.String("file", event.Name),
		logger.String("op", event.Op.String()))

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = event.Name
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	path := w.pending
	w.pending = ""
	w.timer = nil
	w.mu.Unlock()

	if path != "" {
		w.onChange(path)
	}
}

// Close stops the watcher and any pending debounce timer.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
