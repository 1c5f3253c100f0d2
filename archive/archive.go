// Package archive reads and writes the zip containers charts are shipped in.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"mcz2osz/resource"
)

// InvalidNamePlaceholder replaces entry names that are not valid UTF-8.
const InvalidNamePlaceholder = "invalid_utf8_name"

var ErrContainerIO = errors.New("container i/o")

type Entry struct {
	Name string
	Data []byte
}

// List returns the file entries of the container at p in archive order.
func List(p string) ([]Entry, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContainerIO, err)
	}
	return Read(bytes.NewReader(data), int64(len(data)))
}

func Read(r io.ReaderAt, size int64) ([]Entry, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContainerIO, err)
	}

	entries := make([]Entry, 0, len(zr.File))
	for _, file := range zr.File {
		if file.FileInfo().IsDir() {
			continue
		}
		data, err := readFile(file)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Name: file.Name, Data: data})
	}
	return entries, nil
}

func readFile(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrContainerIO, file.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrContainerIO, file.Name, err)
	}
	return data, nil
}

// EntryName flattens an entry name to the file name it is extracted under.
// It returns "" for names that do not name a file.
func EntryName(name string) string {
	if !utf8.ValidString(name) {
		return InvalidNamePlaceholder
	}
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	switch base {
	case ".", "..", "/":
		return ""
	}
	return resource.Sanitize(base)
}

// Extract writes every file entry of the container at p into dir, flattened
// to its sanitized base name, and returns the written paths.
func Extract(p, dir string) ([]string, error) {
	entries, err := List(p)
	if err != nil {
		return nil, err
	}

	var written []string
	for _, e := range entries {
		name := EntryName(e.Name)
		if name == "" {
			continue
		}
		dest := filepath.Join(dir, name)
		if err := os.WriteFile(dest, e.Data, 0o644); err != nil {
			return written, fmt.Errorf("%w: %v", ErrContainerIO, err)
		}
		written = append(written, dest)
	}
	return written, nil
}

// Write stores files uncompressed under their base names. When two files
// share a base name the first one wins.
func Write(p string, files []string) (err error) {
	out, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrContainerIO, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("%w: %v", ErrContainerIO, cerr)
		}
		if err != nil {
			os.Remove(p)
		}
	}()

	zw := zip.NewWriter(out)
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		name := filepath.Base(f)
		if seen[name] {
			continue
		}
		seen[name] = true
		if err := addFile(zw, f, name); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrContainerIO, err)
	}
	return nil
}

func addFile(zw *zip.Writer, src, name string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrContainerIO, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrContainerIO, err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrContainerIO, err)
	}
	header.Name = name
	header.Method = zip.Store

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrContainerIO, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrContainerIO, name, err)
	}
	return nil
}

// Scratch creates a temporary directory. cleanup removes it and is safe to
// call more than once.
func Scratch(prefix string) (dir string, cleanup func(), err error) {
	dir, err = os.MkdirTemp("", prefix)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrContainerIO, err)
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}
