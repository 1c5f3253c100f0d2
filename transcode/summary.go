package transcode

import (
	"fmt"
	"time"

	"golang.org/x/exp/constraints"

	"mcz2osz/dotosu"
)

// Summary describes one converted chart. It is built once and not modified
// afterwards.
type Summary struct {
	Title         string   `json:"title"`
	TitleUnicode  string   `json:"title_unicode"`
	Artist        string   `json:"artist"`
	ArtistUnicode string   `json:"artist_unicode"`
	Creator       string   `json:"creator"`
	Version       string   `json:"version"`
	Columns       int      `json:"columns"`
	MinBPM        float64  `json:"min_bpm"`
	MaxBPM        *float64 `json:"max_bpm,omitempty"`
	Length        int      `json:"length_ms"`
	Notes         int      `json:"notes"`
	Holds         int      `json:"holds"`
	Rating        *float64 `json:"rating,omitempty"`
	Background    string   `json:"background"`

	Audio time.Duration `json:"audio,omitempty"`
}

// Rater estimates the difficulty of a converted chart.
type Rater interface {
	Rate(b *dotosu.Beatmap, modifier float64) (float64, error)
}

type RaterFunc func(b *dotosu.Beatmap, modifier float64) (float64, error)

func (f RaterFunc) Rate(b *dotosu.Beatmap, modifier float64) (float64, error) {
	return f(b, modifier)
}

// Summarize reads the summary off a target chart. A nil rater or a rating
// failure leaves Rating unset.
func Summarize(b *dotosu.Beatmap, rater Rater, modifier float64) Summary {
	s := Summary{
		Title:         b.Metadata.Title,
		TitleUnicode:  b.Metadata.TitleUnicode,
		Artist:        b.Metadata.Artist,
		ArtistUnicode: b.Metadata.ArtistUnicode,
		Creator:       b.Metadata.Creator,
		Version:       b.Metadata.Version,
		Columns:       b.Keys(),
		Background:    b.Metadata.BackgroundFile,
	}

	var bpms []float64
	for _, tp := range b.TimingPoints {
		if tp.TimingChange {
			bpms = append(bpms, 60000/tp.BeatLength)
		}
	}
	if len(bpms) > 0 {
		lo, hi := bounds(bpms)
		s.MinBPM = lo
		if len(bpms) > 1 {
			s.MaxBPM = &hi
		}
	}

	if len(b.HitObjects) > 0 {
		starts := make([]int, len(b.HitObjects))
		lastEnd := 0
		for i, ho := range b.HitObjects {
			starts[i] = ho.StartTime()
			if ho.Kind() == dotosu.KindHold {
				lastEnd = max(lastEnd, ho.EndTime())
				s.Holds++
			}
		}
		first, last := bounds(starts)
		s.Length = max(0, max(last, lastEnd)-first)
		s.Notes = len(b.HitObjects) - s.Holds
	}

	if rater != nil {
		if r, err := rater.Rate(b, modifier); err == nil {
			r = max(0, r)
			s.Rating = &r
		}
	}
	return s
}

func bounds[T constraints.Ordered](vals []T) (lo, hi T) {
	lo, hi = vals[0], vals[0]
	for _, v := range vals[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}

func (s Summary) String() string {
	title := s.Title
	if s.TitleUnicode != "" {
		title = fmt.Sprintf("%s (%s)", s.Title, s.TitleUnicode)
	}
	artist := s.Artist
	if s.ArtistUnicode != "" {
		artist = fmt.Sprintf("%s (%s)", s.Artist, s.ArtistUnicode)
	}
	rating := "N/A"
	if s.Rating != nil {
		rating = fmt.Sprintf("%.4f", *s.Rating)
	}
	return fmt.Sprintf("Title: %s\nArtist: %s\nCreator: %s\nVersion: %s\nColumns: %d\nSR: %s",
		title, artist, s.Creator, s.Version, s.Columns, rating)
}

// ByRating orders summaries by ascending rating, unrated first.
func ByRating(a, b Summary) int {
	switch {
	case a.Rating == nil && b.Rating == nil:
		return 0
	case a.Rating == nil:
		return -1
	case b.Rating == nil:
		return 1
	case *a.Rating < *b.Rating:
		return -1
	case *a.Rating > *b.Rating:
		return 1
	}
	return 0
}
