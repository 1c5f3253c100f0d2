// Package audio reads what the converter wants to know about a song file:
// its tags and, for mp3, its length.
package audio

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/tcolgate/mp3"
)

type Info struct {
	Title    string
	Artist   string
	Format   string
	Duration time.Duration
}

// Probe never fails on a file without tags; the error is reserved for files
// that cannot be opened.
func Probe(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	var info Info
	if meta, err := tag.ReadFrom(f); err == nil {
		info.Title = strings.TrimSpace(meta.Title())
		info.Artist = strings.TrimSpace(meta.Artist())
		info.Format = string(meta.FileType())
	}

	if strings.EqualFold(filepath.Ext(path), ".mp3") {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return info, err
		}
		if d, err := mp3Duration(f); err == nil {
			info.Duration = d
			if info.Format == "" {
				info.Format = string(tag.MP3)
			}
		}
	}
	return info, nil
}

func mp3Duration(r io.Reader) (time.Duration, error) {
	decoder := mp3.NewDecoder(r)
	var frame mp3.Frame
	var skipped int
	var total time.Duration

	for {
		err := decoder.Decode(&frame, &skipped)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
		total += frame.Duration()
	}
	return total, nil
}
