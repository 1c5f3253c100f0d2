package watch

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherConvertsSettledContainersOnce(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	var converted []string
	calls := make(chan string, 10)
	w := &Watcher{
		Dir:      dir,
		Debounce: 50 * time.Millisecond,
		Ext:      ".mcz",
		Logger:   log.New(io.Discard, "", 0),
		Convert: func(path string) {
			mu.Lock()
			converted = append(converted, filepath.Base(path))
			mu.Unlock()
			calls <- path
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	target := filepath.Join(dir, "set.MCZ")
	f, err := os.Create(target)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := f.Write([]byte("chunk"))
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, f.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	select {
	case path := <-calls:
		assert.Equal(t, target, path)
	case <-time.After(5 * time.Second):
		t.Fatal("container was not converted")
	}

	time.Sleep(200 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"set.MCZ"}, converted)
}

func TestWatcherNeedsConvert(t *testing.T) {
	w := &Watcher{Dir: t.TempDir(), Ext: ".mcz"}
	assert.Error(t, w.Run(context.Background()))
}

func TestWatcherMissingDir(t *testing.T) {
	w := &Watcher{Dir: filepath.Join(t.TempDir(), "missing"), Ext: ".mcz", Convert: func(string) {}}
	assert.Error(t, w.Run(context.Background()))
}
