package monitoring

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/penwyp/go-booking-timeline/internal/util"
)

// FileEvent reports a change to a watched dataset file
type FileEvent struct {
	Path      string
	Operation string
}

// FileWatcher watches dataset files and emits one event per burst of writes
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	names    map[string]struct{}
	debounce time.Duration
	events   chan FileEvent
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// NewFileWatcher watches the given files. Their parent directories are
// watched so editors that replace the file by rename are still seen.
func NewFileWatcher(paths []string, debounce time.Duration) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &FileWatcher{
		watcher:  watcher,
		names:    make(map[string]struct{}, len(paths)),
		debounce: debounce,
		events:   make(chan FileEvent, 16),
		done:     make(chan struct{}),
	}

	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		fw.names[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return nil, err
		}
	}

	fw.wg.Add(1)
	go fw.processEvents()
	return fw, nil
}

func (fw *FileWatcher) processEvents() {
	defer fw.wg.Done()

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending *FileEvent
	)

	for {
		select {
		case <-fw.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !fw.relevant(event) {
				continue
			}
			pending = &FileEvent{Path: event.Name, Operation: event.Op.String()}
			if fw.debounce <= 0 {
				fw.emit(*pending)
				pending = nil
				continue
			}
			if timer == nil {
				timer = time.NewTimer(fw.debounce)
			} else {
				timer.Reset(fw.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			if pending != nil {
				fw.emit(*pending)
				pending = nil
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			util.LogError("File monitoring error: " + err.Error())
		}
	}
}

func (fw *FileWatcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		abs = event.Name
	}
	_, ok := fw.names[abs]
	return ok
}

func (fw *FileWatcher) emit(ev FileEvent) {
	util.LogDebug("Watcher: dataset changed", util.F("path", ev.Path), util.F("op", ev.Operation))
	select {
	case fw.events <- ev:
	case <-fw.done:
	default:
		// A reload is already queued
	}
}

// Events returns the debounced change events
func (fw *FileWatcher) Events() <-chan FileEvent {
	return fw.events
}

// Close stops watching
func (fw *FileWatcher) Close() error {
	var err error
	fw.once.Do(func() {
		close(fw.done)
		err = fw.watcher.Close()
		fw.wg.Wait()
	})
	return err
}
