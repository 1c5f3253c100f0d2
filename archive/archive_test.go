package archive

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func writeZip(t *testing.T, dir, name string, files map[string]string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, buildZip(t, files), 0o644))
	return p
}

func TestEntryName(t *testing.T) {
	for in, want := range map[string]string{
		"0/1234.mc":        "1234.mc",
		`charts\song.ogg`:  "song.ogg",
		"曲.ogg":            "_.ogg",
		"bad\xffname.mc":   InvalidNamePlaceholder,
		"dir/..":           "",
		"a:b.jpg":          "a_b.jpg",
		"plain_bg.png":     "plain_bg.png",
		"nested/deep/x.mc": "x.mc",
	} {
		assert.Equal(t, want, EntryName(in), in)
	}
}

func TestReadSkipsDirectories(t *testing.T) {
	data := buildZip(t, map[string]string{"0/": "", "0/a.mc": "{}", "b.ogg": "ogg"})

	entries, err := Read(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "0/a.mc", entries[0].Name)
	assert.Equal(t, []byte("{}"), entries[0].Data)
}

func TestReadRejectsNonZip(t *testing.T) {
	data := []byte("definitely not a zip")
	_, err := Read(bytes.NewReader(data), int64(len(data)))
	assert.ErrorIs(t, err, ErrContainerIO)
}

func TestExtractFlattens(t *testing.T) {
	src := writeZip(t, t.TempDir(), "set.mcz", map[string]string{
		"0/1.mc":     "{}",
		"0/song.ogg": "ogg",
		"0/":         "",
	})
	dir := t.TempDir()

	written, err := Extract(src, dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "1.mc"), filepath.Join(dir, "song.ogg")}, written)

	data, err := os.ReadFile(filepath.Join(dir, "song.ogg"))
	require.NoError(t, err)
	assert.Equal(t, "ogg", string(data))
}

func TestExtractMissingContainer(t *testing.T) {
	_, err := Extract(filepath.Join(t.TempDir(), "absent.mcz"), t.TempDir())
	assert.ErrorIs(t, err, ErrContainerIO)
}

func TestWriteStoresBaseNames(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a", "chart.osu")
	b := filepath.Join(dir, "b", "chart.osu")
	c := filepath.Join(dir, "song.ogg")
	require.NoError(t, os.MkdirAll(filepath.Dir(a), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Dir(b), 0o755))
	require.NoError(t, os.WriteFile(a, []byte("first"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("second"), 0o644))
	require.NoError(t, os.WriteFile(c, []byte("ogg"), 0o644))

	out := filepath.Join(dir, "set.osz")
	require.NoError(t, Write(out, []string{a, b, c}))

	zr, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer zr.Close()

	require.Len(t, zr.File, 2)
	assert.Equal(t, "chart.osu", zr.File[0].Name)
	assert.Equal(t, zip.Store, zr.File[0].Method)
	assert.Equal(t, "song.ogg", zr.File[1].Name)

	entries, err := List(out)
	require.NoError(t, err)
	assert.Equal(t, "first", string(entries[0].Data))
}

func TestWriteRemovesPartialOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "set.osz")

	err := Write(out, []string{filepath.Join(dir, "missing.osu")})
	assert.ErrorIs(t, err, ErrContainerIO)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestScratchCleanup(t *testing.T) {
	dir, cleanup, err := Scratch("mcz2osz-test-")
	require.NoError(t, err)
	require.DirExists(t, dir)

	cleanup()
	cleanup()
	assert.NoDirExists(t, dir)
}
