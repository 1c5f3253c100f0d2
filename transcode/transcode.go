// Package transcode converts one Malody key-mode chart into an osu!mania
// beatmap.
package transcode

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"mcz2osz/audio"
	"mcz2osz/dotosu"
	"mcz2osz/malody"
	"mcz2osz/resource"
	"mcz2osz/timeline"
)

const DefaultOverallDifficulty = 8.0

var ErrUnsupportedMode = errors.New("unsupported mode")

type Transcoder struct {
	// Rater is optional. Without it summaries carry no rating.
	Rater             Rater
	SpeedModifier     float64
	OverallDifficulty float64
	// KeepPreview writes the chart's preview point as is. By default it is
	// moved back by a positive audio offset.
	KeepPreview bool
	// ProbeAudio reads the song file to fill empty titles and the summary's
	// audio length.
	ProbeAudio bool
	Logger     *log.Logger
}

type Result struct {
	Source  string
	Path    string
	Beatmap *dotosu.Beatmap
	Refs    resource.Refs
	Summary Summary
}

func (t *Transcoder) logger() *log.Logger {
	if t.Logger == nil {
		return log.Default()
	}
	return t.Logger
}

func (t *Transcoder) modifier() float64 {
	if t.SpeedModifier <= 0 {
		return 1
	}
	return t.SpeedModifier
}

// Summarize rates b with the transcoder's rater and speed modifier.
func (t *Transcoder) Summarize(b *dotosu.Beatmap) Summary {
	return Summarize(b, t.Rater, t.modifier())
}

// Convert builds the target chart. refs carries the already sanitized file
// names the chart should point at.
func (t *Transcoder) Convert(chart *malody.Chart, refs resource.Refs) (*dotosu.Beatmap, error) {
	if chart.Meta.Mode != malody.ModeKey {
		return nil, fmt.Errorf("%w: mode %d", ErrUnsupportedMode, chart.Meta.Mode)
	}

	tl, err := timeline.Build(tempoEvents(chart), chart.Audio.Offset)
	if err != nil {
		return nil, err
	}

	b := dotosu.NewMania()
	b.General.AudioFilename = refs.Audio
	if p := chart.Meta.Preview; p != nil {
		b.General.PreviewTime = *p
		if !t.KeepPreview && chart.Audio.Offset > 0 && *p > chart.Audio.Offset {
			b.General.PreviewTime -= chart.Audio.Offset
		}
	}

	song := chart.Meta.Song
	b.Metadata.Title = song.RomanisedTitle()
	b.Metadata.TitleUnicode = song.Title
	b.Metadata.Artist = song.RomanisedArtist()
	b.Metadata.ArtistUnicode = song.Artist
	b.Metadata.Creator = chart.Meta.Creator
	b.Metadata.Version = chart.Meta.Version
	b.Metadata.BackgroundFile = refs.Background

	b.Difficulty.CircleSize = float64(chart.Meta.Columns)
	if t.OverallDifficulty > 0 {
		b.Difficulty.OverallDifficulty = t.OverallDifficulty
	}

	b.TimingPoints = timingPoints(tl.TimingPoints(scrollEvents(chart)))
	b.HitObjects = MapNotes(chart.Notes, chart.Meta.Columns, tl)
	return b, nil
}

// File converts the .mc at path and writes <stem>.osu next to it. On success
// the written chart and the files it references are added to set.
func (t *Transcoder) File(path string, set *resource.Set) (*Result, error) {
	chart, err := malody.DecodeFile(path)
	if err != nil {
		return nil, err
	}
	if chart.Meta.Mode != malody.ModeKey {
		return nil, fmt.Errorf("%w: mode %d", ErrUnsupportedMode, chart.Meta.Mode)
	}

	dir := filepath.Dir(path)
	found := resource.NewSet()
	refs, err := resource.Resolve(dir, chart.Meta.Background, chart.Audio.Sound, found)
	if err != nil {
		t.logger().Printf("warning: %s: %v", filepath.Base(path), err)
	}

	b, err := t.Convert(chart, refs)
	if err != nil {
		return nil, err
	}

	var info audio.Info
	if t.ProbeAudio && refs.Audio != "" {
		info, err = audio.Probe(filepath.Join(dir, refs.Audio))
		if err != nil {
			t.logger().Printf("warning: probe %s: %v", refs.Audio, err)
		}
		fillFromTags(b, info)
	}

	osuPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".osu"
	if err := dotosu.EncodeFile(osuPath, b); err != nil {
		return nil, err
	}

	if set != nil {
		for _, p := range found.Paths() {
			set.Add(p)
		}
		set.Add(osuPath)
	}

	summary := t.Summarize(b)
	summary.Audio = info.Duration
	return &Result{
		Source:  path,
		Path:    osuPath,
		Beatmap: b,
		Refs:    refs,
		Summary: summary,
	}, nil
}

func fillFromTags(b *dotosu.Beatmap, info audio.Info) {
	if b.Metadata.Title == "" && info.Title != "" {
		b.Metadata.Title = resource.Sanitize(info.Title)
		if b.Metadata.TitleUnicode == "" {
			b.Metadata.TitleUnicode = info.Title
		}
	}
	if b.Metadata.Artist == "" && info.Artist != "" {
		b.Metadata.Artist = resource.Sanitize(info.Artist)
		if b.Metadata.ArtistUnicode == "" {
			b.Metadata.ArtistUnicode = info.Artist
		}
	}
}
