package resource

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize(t *testing.T) {
	assert.Equal(t, "bg.jpg", Sanitize("bg.jpg"))
	assert.Equal(t, "___.ogg", Sanitize("一二三.ogg"))
	assert.Equal(t, "a_b_c_d_e_f_g_h_i", Sanitize(`a\b/c:d*e?f"g<h>i`))
	assert.Equal(t, "x_y.png", Sanitize("x|y.png"))
	assert.Equal(t, "", Sanitize(""))
}

func TestSanitizeIdempotent(t *testing.T) {
	for _, s := range []string{"", "plain.mp3", "曲 名.ogg", `C:\bg\img.jpg`, "emoji 🎵?.png", "tab\tname", "\x00nul"} {
		once := Sanitize(s)
		assert.Equal(t, once, Sanitize(once), s)
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "___.ogg"), []byte("ogg"), 0o644))

	set := NewSet()
	refs, err := Resolve(dir, "背景.jpg", "一二三.ogg", set)

	assert.Equal(t, Refs{Background: "__.jpg", Audio: "___.ogg"}, refs)
	assert.ErrorIs(t, err, ErrResourceMissing)
	assert.Contains(t, err.Error(), "__.jpg")
	assert.Equal(t, []string{filepath.Join(dir, "___.ogg")}, set.Paths())
}

func TestResolveSkipsEmptyNames(t *testing.T) {
	set := NewSet()
	refs, err := Resolve(t.TempDir(), "", "", set)
	assert.NoError(t, err)
	assert.Equal(t, Refs{}, refs)
	assert.Zero(t, set.Len())
}

func TestSetConcurrentAdd(t *testing.T) {
	dir := t.TempDir()
	set := NewSet()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			set.Add(filepath.Join(dir, fmt.Sprintf("shared-%d.jpg", i%4)))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 4, set.Len())
	assert.False(t, set.Add(filepath.Join(dir, "shared-0.jpg")))
}
