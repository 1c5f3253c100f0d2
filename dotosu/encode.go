package dotosu

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var eventComments = []string{
	"//Break Periods",
	"//Storyboard Layer 0 (Background)",
	"//Storyboard Layer 1 (Fail)",
	"//Storyboard Layer 2 (Pass)",
	"//Storyboard Layer 3 (Foreground)",
	"//Storyboard Layer 4 (Overlay)",
	"//Storyboard Sound Samples",
}

func EncodeFile(path string, b *Beatmap) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, b); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Encode writes b in the v14 text layout with LF line endings. The hit object
// section is not terminated by a newline.
func Encode(w io.Writer, b *Beatmap) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "osu file format v%d\n\n", LATEST_VERSION)

	g := b.General
	fmt.Fprintf(bw, "[General]\nAudioFilename: %s\n", g.AudioFilename)
	fmt.Fprintf(bw, "AudioLeadIn: %d\nPreviewTime: %d\nCountdown: %d\nSampleSet: %s\n",
		g.AudioLeadIn, g.PreviewTime, g.Countdown, cases.Title(language.English).String(g.SampleSet))
	fmt.Fprintf(bw, "StackLeniency: %s\nMode: %d\nLetterboxInBreaks: %d\nSpecialStyle: %d\nWidescreenStoryboard: %d\n\n",
		FormatFloat(g.StackLeniency), g.Mode, boolInt(g.LetterboxInBreaks), boolInt(g.SpecialStyle), boolInt(g.WidescreenStoryboard))

	e := b.Editor
	bw.WriteString("[Editor]\n")
	if len(b.Bookmarks) > 0 {
		marks := make([]string, len(b.Bookmarks))
		for i, m := range b.Bookmarks {
			marks[i] = strconv.Itoa(m)
		}
		fmt.Fprintf(bw, "Bookmarks: %s\n", strings.Join(marks, ","))
	}
	fmt.Fprintf(bw, "DistanceSpacing: %s\nBeatDivisor: %d\nGridSize: %d\nTimelineZoom: %s\n\n",
		FormatFloat(e.DistanceSpacing), e.BeatDivisor, e.GridSize, FormatFloat(e.TimelineZoom))

	m := b.Metadata
	fmt.Fprintf(bw, "[Metadata]\nTitle:%s\nTitleUnicode:%s\nArtist:%s\nArtistUnicode:%s\nCreator:%s\nVersion:%s\n",
		m.Title, m.TitleUnicode, m.Artist, m.ArtistUnicode, m.Creator, m.Version)
	fmt.Fprintf(bw, "Source:%s\nTags:%s\nBeatmapID:%d\nBeatmapSetID:%d\n\n", m.Source, m.Tags, m.BeatmapID, m.BeatmapSetID)

	d := b.Difficulty
	fmt.Fprintf(bw, "[Difficulty]\nHPDrainRate:%s\nCircleSize:%s\nOverallDifficulty:%s\nApproachRate:%s\nSliderMultiplier:%s\nSliderTickRate:%s\n\n",
		FormatFloat(d.HPDrainRate), FormatFloat(d.CircleSize), FormatOD(d.OverallDifficulty),
		FormatFloat(d.ApproachRate), FormatFloat(d.SliderMultiplier), FormatFloat(d.SliderTickRate))

	bw.WriteString("[Events]\n//Background and Video events\n")
	if m.BackgroundFile != "" {
		fmt.Fprintf(bw, "0,0,\"%s\",0,0\n", m.BackgroundFile)
	}
	if m.VideoFile != "" {
		fmt.Fprintf(bw, "Video,0,\"%s\"\n", m.VideoFile)
	}
	bw.WriteString(eventComments[0] + "\n")
	for _, br := range b.Breaks {
		fmt.Fprintf(bw, "2,%d,%d\n", br.Start, br.End)
	}
	for _, c := range eventComments[1:] {
		bw.WriteString(c + "\n")
	}
	bw.WriteString("\n")

	rows := make([]string, len(b.TimingPoints))
	for i, tp := range b.TimingPoints {
		rows[i] = timingRow(tp)
	}
	bw.WriteString("[TimingPoints]\n")
	bw.WriteString(strings.Join(rows, "\n"))

	rows = make([]string, len(b.HitObjects))
	for i, ho := range b.HitObjects {
		rows[i] = objectRow(ho)
	}
	bw.WriteString("\n\n[HitObjects]\n")
	bw.WriteString(strings.Join(rows, "\n"))

	return bw.Flush()
}

func timingRow(tp TimingPoint) string {
	effects := 0
	if tp.Kiai {
		effects = 1
	}
	return fmt.Sprintf("%d,%s,%d,%d,%d,%d,%d,%d",
		tp.Time, FormatFloat(tp.BeatLength), tp.TimeSignature, sampleSetID(tp.SampleSet),
		tp.CustomSampleBank, tp.SampleVolume, boolInt(tp.TimingChange), effects)
}

func objectRow(ho HitObject) string {
	s := ho.Sample()
	sample := fmt.Sprintf("%d:%d:%d:%d:%s", s.NormalSet, s.AdditionSet, s.Index, s.Volume, s.Filename)
	switch ho := ho.(type) {
	case Hold:
		return fmt.Sprintf("%d,%d,%d,%d,%d,%d:%s", ho.X(), MANIA_Y, ho.StartTime(), TypeHold, ho.HitSound(), ho.End, sample)
	default:
		return fmt.Sprintf("%d,%d,%d,%d,%d,%s", ho.X(), MANIA_Y, ho.StartTime(), TypeCircle, ho.HitSound(), sample)
	}
}

// FormatFloat prints the shortest decimal that reads back to v, never in
// exponent form: 500, 0.7, -100000000.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatOD prints whole values without decimals and anything else with one.
func FormatOD(v float64) string {
	if math.Trunc(v) == v {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
