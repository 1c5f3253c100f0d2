// Package watch converts containers as they are dropped into a directory.
package watch

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 2 * time.Second

type Watcher struct {
	Dir string
	// Debounce is how long a container must stay untouched before it is
	// converted.
	Debounce time.Duration
	// Ext selects the files to convert, compared without case.
	Ext     string
	Convert func(path string)
	Logger  *log.Logger

	mu        sync.Mutex
	debounced map[string]func(func())
	converted map[string]time.Time
	closed    bool
	wg        sync.WaitGroup
}

func (w *Watcher) logger() *log.Logger {
	if w.Logger == nil {
		return log.Default()
	}
	return w.Logger
}

// Run watches Dir until ctx is cancelled. Conversions already started are
// waited for before it returns.
func (w *Watcher) Run(ctx context.Context) error {
	if w.Convert == nil {
		return errors.New("watch: no Convert func")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(w.Dir); err != nil {
		return err
	}

	w.mu.Lock()
	w.debounced = make(map[string]func(func()))
	w.converted = make(map[string]time.Time)
	w.closed = false
	w.mu.Unlock()

	w.logger().Printf("watching %s", w.Dir)
	defer w.stop()
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger().Printf("watcher error: %v", err)
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Watcher) stop() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if !strings.EqualFold(filepath.Ext(event.Name), w.Ext) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	d, ok := w.debounced[event.Name]
	if !ok {
		delay := w.Debounce
		if delay <= 0 {
			delay = defaultDebounce
		}
		d = debounce.New(delay)
		w.debounced[event.Name] = d
	}
	path := event.Name
	d(func() { w.settle(ctx, path) })
}

// settle converts path unless it was already converted at its current
// modification time.
func (w *Watcher) settle(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	w.mu.Lock()
	if w.closed || ctx.Err() != nil {
		w.mu.Unlock()
		return
	}
	if last, ok := w.converted[path]; ok && last.Equal(info.ModTime()) {
		w.mu.Unlock()
		return
	}
	w.converted[path] = info.ModTime()
	w.wg.Add(1)
	w.mu.Unlock()

	defer w.wg.Done()
	w.logger().Printf("settled %s", filepath.Base(path))
	w.Convert(path)
}
