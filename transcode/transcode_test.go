package transcode

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcz2osz/dotosu"
	"mcz2osz/malody"
	"mcz2osz/resource"
	"mcz2osz/timeline"
)

const chartJSON = `{
  "meta": {
    "creator": "mapper",
    "background": "bg.jpg",
    "version": "4K Normal",
    "preview": 3000,
    "mode": 0,
    "song": {"title": "Song", "artist": "Band"},
    "mode_ext": {"column": 4}
  },
  "time": [{"beat": [0, 0, 1], "bpm": 120}],
  "note": [
    {"beat": [4, 0, 1], "column": 1},
    {"beat": [1, 0, 1], "endbeat": [2, 1, 2], "column": 3},
    {"beat": [0, 0, 1], "sound": "song.ogg", "type": 1}
  ]
}`

func writeChart(t *testing.T, dir, name, doc string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestFileWritesOsuNextToChart(t *testing.T) {
	dir := t.TempDir()
	mc := writeChart(t, dir, "chart.mc", chartJSON)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bg.jpg"), []byte("jpg"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "song.ogg"), []byte("ogg"), 0o644))

	set := resource.NewSet()
	res, err := (&Transcoder{}).File(mc, set)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "chart.osu"), res.Path)
	assert.Equal(t, 3, set.Len())

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "[TimingPoints]\n0,500,4,2,0,10,1,0\n\n[HitObjects]\n")
	assert.Contains(t, text, "\n192,192,2000,1,0,0:0:0:0:")
	assert.Contains(t, text, "\n448,192,500,128,0,1250:0:0:0:0:")
	assert.Contains(t, text, "AudioFilename: song.ogg\n")
	assert.Contains(t, text, "PreviewTime: 3000\n")
	assert.Contains(t, text, "CircleSize:4\n")
	assert.Contains(t, text, `0,0,"bg.jpg",0,0`)

	s := res.Summary
	assert.Equal(t, "Song", s.Title)
	assert.Equal(t, 4, s.Columns)
	assert.InDelta(t, 120, s.MinBPM, 1e-9)
	assert.Nil(t, s.MaxBPM)
	assert.Equal(t, 1500, s.Length)
	assert.Equal(t, 1, s.Notes)
	assert.Equal(t, 1, s.Holds)
	assert.Nil(t, s.Rating)
}

func TestFileRejectsOtherModes(t *testing.T) {
	dir := t.TempDir()
	mc := writeChart(t, dir, "catch.mc", strings.Replace(chartJSON, `"mode": 0`, `"mode": 3`, 1))

	set := resource.NewSet()
	_, err := (&Transcoder{}).File(mc, set)
	assert.ErrorIs(t, err, ErrUnsupportedMode)
	assert.Zero(t, set.Len())

	_, statErr := os.Stat(filepath.Join(dir, "catch.osu"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileConvertsWithMissingResources(t *testing.T) {
	dir := t.TempDir()
	mc := writeChart(t, dir, "chart.mc", chartJSON)

	set := resource.NewSet()
	res, err := (&Transcoder{}).File(mc, set)
	require.NoError(t, err)

	assert.Equal(t, []string{res.Path}, set.Paths())
	assert.Equal(t, "bg.jpg", res.Beatmap.Metadata.BackgroundFile)
	assert.Equal(t, "song.ogg", res.Beatmap.General.AudioFilename)
}

func TestFileReportsParseFailure(t *testing.T) {
	mc := writeChart(t, t.TempDir(), "broken.mc", `{"meta": `)
	_, err := (&Transcoder{}).File(mc, nil)
	assert.ErrorIs(t, err, malody.ErrParse)
}

func TestConvertLeadInOffset(t *testing.T) {
	chart, err := malody.Decode(strings.NewReader(strings.Replace(chartJSON,
		`"type": 1}`, `"type": 1, "offset": 120}`, 1)))
	require.NoError(t, err)

	b, err := (&Transcoder{}).Convert(chart, resource.Refs{})
	require.NoError(t, err)

	require.Len(t, b.TimingPoints, 1)
	assert.Equal(t, 380, b.TimingPoints[0].Time)
	assert.Equal(t, 1880, b.HitObjects[0].StartTime())
	assert.Equal(t, 2880, b.General.PreviewTime)
}

func TestConvertKeepPreview(t *testing.T) {
	chart, err := malody.Decode(strings.NewReader(strings.Replace(chartJSON,
		`"type": 1}`, `"type": 1, "offset": 120}`, 1)))
	require.NoError(t, err)

	b, err := (&Transcoder{KeepPreview: true}).Convert(chart, resource.Refs{})
	require.NoError(t, err)
	assert.Equal(t, 3000, b.General.PreviewTime)

	chart.Audio.Offset = 5000
	b, err = (&Transcoder{}).Convert(chart, resource.Refs{})
	require.NoError(t, err)
	assert.Equal(t, 3000, b.General.PreviewTime)
}

func TestConvertRejectsBadTempo(t *testing.T) {
	chart, err := malody.Decode(strings.NewReader(strings.Replace(chartJSON, `"bpm": 120`, `"bpm": 0`, 1)))
	require.NoError(t, err)

	_, err = (&Transcoder{}).Convert(chart, resource.Refs{})
	assert.ErrorIs(t, err, timeline.ErrInvalidTempo)
}

func TestConvertScrollRows(t *testing.T) {
	doc := strings.Replace(chartJSON, `"note"`, `"effect": [{"beat": [2, 0, 1], "scroll": 0}, {"beat": [6, 0, 1], "scroll": 2}], "note"`, 1)
	chart, err := malody.Decode(strings.NewReader(doc))
	require.NoError(t, err)

	b, err := (&Transcoder{}).Convert(chart, resource.Refs{})
	require.NoError(t, err)

	require.Len(t, b.TimingPoints, 3)
	assert.Equal(t, timeline.StopValue, b.TimingPoints[1].BeatLength)
	assert.Equal(t, 1000, b.TimingPoints[1].Time)
	assert.Equal(t, -50.0, b.TimingPoints[2].BeatLength)
	assert.False(t, b.TimingPoints[2].TimingChange)
}

func TestSummarizeRating(t *testing.T) {
	b := dotosu.NewMania()
	b.Difficulty.CircleSize = 4
	b.TimingPoints = []dotosu.TimingPoint{
		{Time: 0, BeatLength: 500, TimingChange: true},
		{Time: 1000, BeatLength: 250, TimingChange: true},
	}
	b.HitObjects = []dotosu.HitObject{
		dotosu.Note{BaseHO: dotosu.BaseHO{Time: 100}},
		dotosu.Hold{BaseHO: dotosu.BaseHO{Time: 200}, End: 900},
	}

	negative := RaterFunc(func(*dotosu.Beatmap, float64) (float64, error) { return -1, nil })
	s := Summarize(b, negative, 1)
	require.NotNil(t, s.Rating)
	assert.Zero(t, *s.Rating)
	assert.InDelta(t, 120, s.MinBPM, 1e-9)
	require.NotNil(t, s.MaxBPM)
	assert.InDelta(t, 240, *s.MaxBPM, 1e-9)
	assert.Equal(t, 800, s.Length)

	failing := RaterFunc(func(*dotosu.Beatmap, float64) (float64, error) { return 0, errors.New("boom") })
	assert.Nil(t, Summarize(b, failing, 1).Rating)
}

func TestByRatingPutsUnratedFirst(t *testing.T) {
	r := func(v float64) *float64 { return &v }
	list := []Summary{{Version: "hard", Rating: r(3)}, {Version: "none"}, {Version: "easy", Rating: r(1)}}
	slices.SortStableFunc(list, ByRating)

	var got []string
	for _, s := range list {
		got = append(got, s.Version)
	}
	assert.Equal(t, []string{"none", "easy", "hard"}, got)
}

func TestSummaryString(t *testing.T) {
	s := Summary{Title: "Kyokumei", TitleUnicode: "曲名", Artist: "Band", Creator: "me", Version: "4K", Columns: 4}
	assert.Equal(t, "Title: Kyokumei (曲名)\nArtist: Band\nCreator: me\nVersion: 4K\nColumns: 4\nSR: N/A", s.String())
}
