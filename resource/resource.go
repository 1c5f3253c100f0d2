// Package resource decides which files travel with a converted chart.
package resource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var ErrResourceMissing = errors.New("resource missing")

const reserved = `\/:*?"<>|`

// Sanitize replaces non-ASCII and reserved characters with '_', which osu!
// requires of file names inside a beatmap set.
func Sanitize(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	for _, r := range name {
		if r > 0x7f || strings.ContainsRune(reserved, r) {
			sb.WriteByte('_')
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Set is the deduplicated list of files packed into one container. It is
// shared by every chart converted from that container.
type Set struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

func NewSet() *Set {
	return &Set{paths: make(map[string]struct{})}
}

// Add records path and reports whether it was new.
func (s *Set) Add(path string) bool {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.paths[path]; ok {
		return false
	}
	s.paths[path] = struct{}{}
	return true
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paths)
}

// Paths returns the members sorted.
func (s *Set) Paths() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.paths))
	for p := range s.paths {
		out = append(out, p)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}

// Refs are the sanitized names a chart refers to.
type Refs struct {
	Background string
	Audio      string
}

// Resolve sanitizes the background and audio names, looks for them in dir and
// adds the ones found to set. Missing files come back as an error wrapping
// ErrResourceMissing; the returned Refs are valid either way.
func Resolve(dir, background, audio string, set *Set) (Refs, error) {
	refs := Refs{Background: Sanitize(background), Audio: Sanitize(audio)}

	var errs []error
	for _, name := range []string{refs.Background, refs.Audio} {
		if name == "" {
			continue
		}
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			errs = append(errs, fmt.Errorf("%w: %s", ErrResourceMissing, path))
			continue
		}
		if set != nil {
			set.Add(path)
		}
	}
	return refs, errors.Join(errs...)
}
