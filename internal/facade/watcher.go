package facade

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/zidane0ma/tagflow/internal/operations"
)

// Watcher is the continuous-ingestion trigger: it watches the organized
// library root and enqueues a low-priority process_videos operation once the
// tree has been quiet for debounceDelay. Downloads land as bursts of writes,
// so the debounce collapses a whole drop into a single ingest run.
type Watcher struct {
	facade        *Facade
	root          string
	logger        *zap.Logger
	debounceDelay time.Duration

	fsw    *fsnotify.Watcher
	stopCh chan struct{}
	wg     sync.WaitGroup

	timerMu sync.Mutex
	timer   *time.Timer
}

// NewWatcher builds a Watcher over root. Start must be called to begin
// watching; Stop tears it down.
func NewWatcher(f *Facade, root string, logger *zap.Logger) *Watcher {
	return &Watcher{
		facade:        f,
		root:          root,
		logger:        logger,
		debounceDelay: 10 * time.Second,
		stopCh:        make(chan struct{}),
	}
}

// Start registers the root and every directory below it, then begins
// consuming events. New directories created while watching are registered as
// they appear, so a freshly added creator folder is covered too.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fs watcher: %w", err)
	}
	w.fsw = fsw

	if err := w.addRecursive(w.root); err != nil {
		fsw.Close()
		return err
	}

	w.wg.Add(1)
	go w.eventLoop()

	w.logger.Info("watching organized root for new media", zap.String("root", w.root))
	return nil
}

// Stop ends the event loop and cancels any pending ingest trigger.
func (w *Watcher) Stop() {
	close(w.stopCh)
	if w.fsw != nil {
		w.fsw.Close()
	}
	w.wg.Wait()

	w.timerMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timerMu.Unlock()
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			return fmt.Errorf("watch %s: %w", path, addErr)
		}
		return nil
	})
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("fs watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory",
					zap.String("path", event.Name), zap.Error(err))
			}
			// A new directory alone carries no media yet; its file events
			// arrive separately now that it's watched.
			return
		}
	}

	w.scheduleIngest()
}

// scheduleIngest (re)arms the debounce timer. Every new event pushes the
// trigger out, so ingestion starts only after the tree settles.
func (w *Watcher) scheduleIngest() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounceDelay, func() {
		select {
		case <-w.stopCh:
			return
		default:
		}
		id := w.facade.StartProcessVideos(operations.PriorityLow)
		w.logger.Info("organized tree changed, ingestion enqueued",
			zap.String("operation_id", id))
	})
}
