package dotosu

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/exp/constraints"
)

const headerPrefix = "osu file format v"

var ErrHeader = errors.New("invalid .osu header")

func DecodeFile(path string) (*Beatmap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// decoder holds the state carried between lines of one file.
type decoder struct {
	b *Beatmap
	// offset shifts every time in files older than v5.
	offset  int
	section string
	seenAR  bool
}

type setter func(d *decoder, v string)

var sectionKeys = map[string]map[string]setter{
	"general": {
		"audiofilename": func(d *decoder, v string) { d.b.General.AudioFilename = unquotePath(v) },
		"audioleadin":   func(d *decoder, v string) { d.b.General.AudioLeadIn = intOr(v, 0) },
		"previewtime": func(d *decoder, v string) {
			if t := intOr(v, -1); t != -1 {
				d.b.General.PreviewTime = t + d.offset
			} else {
				d.b.General.PreviewTime = -1
			}
		},
		"countdown":            func(d *decoder, v string) { d.b.General.Countdown = intOr(v, 0) },
		"sampleset":            func(d *decoder, v string) { d.b.General.SampleSet = strings.ToLower(v) },
		"stackleniency":        func(d *decoder, v string) { d.b.General.StackLeniency = floatOr(v, 0) },
		"mode":                 func(d *decoder, v string) { d.b.General.Mode = intOr(v, 0) },
		"letterboxinbreaks":    func(d *decoder, v string) { d.b.General.LetterboxInBreaks = v == "1" },
		"specialstyle":         func(d *decoder, v string) { d.b.General.SpecialStyle = v == "1" },
		"widescreenstoryboard": func(d *decoder, v string) { d.b.General.WidescreenStoryboard = v == "1" },
	},
	"editor": {
		"bookmarks": func(d *decoder, v string) {
			for _, p := range strings.Split(v, ",") {
				if p = strings.TrimSpace(p); p != "" {
					d.b.Bookmarks = append(d.b.Bookmarks, intOr(p, 0))
				}
			}
		},
		"distancespacing": func(d *decoder, v string) { d.b.Editor.DistanceSpacing = floatOr(v, 0) },
		"beatdivisor":     func(d *decoder, v string) { d.b.Editor.BeatDivisor = clamp(intOr(v, 4), 1, 16) },
		"gridsize":        func(d *decoder, v string) { d.b.Editor.GridSize = intOr(v, 4) },
		"timelinezoom":    func(d *decoder, v string) { d.b.Editor.TimelineZoom = max(0, floatOr(v, 0)) },
	},
	"metadata": {
		"title":         func(d *decoder, v string) { d.b.Metadata.Title = v },
		"titleunicode":  func(d *decoder, v string) { d.b.Metadata.TitleUnicode = v },
		"artist":        func(d *decoder, v string) { d.b.Metadata.Artist = v },
		"artistunicode": func(d *decoder, v string) { d.b.Metadata.ArtistUnicode = v },
		"creator":       func(d *decoder, v string) { d.b.Metadata.Creator = v },
		"version":       func(d *decoder, v string) { d.b.Metadata.Version = v },
		"source":        func(d *decoder, v string) { d.b.Metadata.Source = v },
		"tags":          func(d *decoder, v string) { d.b.Metadata.Tags = v },
		"beatmapid":     func(d *decoder, v string) { d.b.Metadata.BeatmapID = intOr(v, 0) },
		"beatmapsetid":  func(d *decoder, v string) { d.b.Metadata.BeatmapSetID = intOr(v, 0) },
	},
	"difficulty": {
		"hpdrainrate": func(d *decoder, v string) { d.b.Difficulty.HPDrainRate = floatOr(v, 0) },
		"circlesize":  func(d *decoder, v string) { d.b.Difficulty.CircleSize = floatOr(v, 0) },
		"overalldifficulty": func(d *decoder, v string) {
			d.b.Difficulty.OverallDifficulty = floatOr(v, 0)
			if !d.seenAR {
				d.b.Difficulty.ApproachRate = d.b.Difficulty.OverallDifficulty
			}
		},
		"approachrate": func(d *decoder, v string) {
			d.b.Difficulty.ApproachRate = floatOr(v, 0)
			d.seenAR = true
		},
		"slidermultiplier": func(d *decoder, v string) { d.b.Difficulty.SliderMultiplier = floatOr(v, 1) },
		"slidertickrate":   func(d *decoder, v string) { d.b.Difficulty.SliderTickRate = floatOr(v, 1) },
	},
}

var sectionRows = map[string]func(d *decoder, line string){
	"events":       (*decoder).event,
	"timingpoints": (*decoder).timingPoint,
	"hitobjects":   (*decoder).hitObject,
}

// Decode reads a .osu file of any format version. Unknown sections and keys
// are skipped, as are rows too short to make sense of.
func Decode(r io.Reader) (*Beatmap, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	version, err := readHeader(sc)
	if err != nil {
		return nil, err
	}
	d := &decoder{b: &Beatmap{
		FormatVersion: version,
		General:       General{SampleSet: "normal"},
		Editor:        Editor{BeatDivisor: 4, GridSize: 4},
	}}
	if version < 5 {
		d.offset = EARLY_VERSION_TIMING_OFFSET
	}

	for sc.Scan() {
		d.line(strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	d.b.Difficulty.restrict(d.b.General.Mode)
	return d.b, nil
}

func readHeader(sc *bufio.Scanner) (int, error) {
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if line == "" {
			continue
		}
		if len(line) < len(headerPrefix) || !strings.EqualFold(line[:len(headerPrefix)], headerPrefix) {
			return 0, fmt.Errorf("%w: %q", ErrHeader, line)
		}
		v, err := strconv.Atoi(strings.TrimSpace(line[len(headerPrefix):]))
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrHeader, line, err)
		}
		return v, nil
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("%w: empty file", ErrHeader)
}

func (d *decoder) line(line string) {
	switch {
	case line == "", strings.HasPrefix(line, "//"):
		return
	case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		d.section = strings.ToLower(line[1 : len(line)-1])
		return
	}

	if keys, ok := sectionKeys[d.section]; ok {
		k, v, _ := strings.Cut(line, ":")
		if set, ok := keys[strings.ToLower(strings.TrimSpace(k))]; ok {
			set(d, strings.TrimSpace(v))
		}
		return
	}
	if row, ok := sectionRows[d.section]; ok {
		row(d, line)
	}
}

func (d *decoder) event(line string) {
	f := fields(line)
	if len(f) < 3 {
		d.b.UnhandledEvents = append(d.b.UnhandledEvents, line)
		return
	}
	switch strings.ToLower(f[0]) {
	case "0", "background":
		d.b.Metadata.BackgroundFile = unquotePath(f[2])
	case "1", "video":
		d.b.Metadata.VideoFile = unquotePath(f[2])
	case "2", "break":
		start := intOr(f[1], 0) + d.offset
		end := max(start, intOr(f[2], start)+d.offset)
		d.b.Breaks = append(d.b.Breaks, BreakPeriod{Start: start, End: end})
	default:
		d.b.UnhandledEvents = append(d.b.UnhandledEvents, line)
	}
}

// timingPoint reads time,beatLength,meter,sampleSet,sampleIndex,volume,uninherited,effects.
// Everything after beatLength is optional.
func (d *decoder) timingPoint(line string) {
	f := fields(line)
	if len(f) < 2 {
		return
	}
	tp := TimingPoint{
		Time:             int(floatOr(f[0], 0)) + d.offset,
		BeatLength:       floatOr(f[1], math.NaN()),
		TimeSignature:    intOr(at(f, 2), 4),
		SampleSet:        sampleSetName(intOr(at(f, 3), 1)),
		CustomSampleBank: intOr(at(f, 4), 0),
		SampleVolume:     intOr(at(f, 5), 100),
		TimingChange:     at(f, 6) == "" || at(f, 6) == "1",
		Kiai:             intOr(at(f, 7), 0)&1 != 0,
		ScrollSpeed:      1,
	}
	if tp.TimeSignature == 0 {
		tp.TimeSignature = 4
	}
	if !tp.TimingChange && tp.BeatLength < 0 {
		tp.ScrollSpeed = 100 / -tp.BeatLength
	}
	d.b.TimingPoints = append(d.b.TimingPoints, tp)
}

// hitObject reads x,y,time,type,hitSound and, for holds, endTime:hitSample.
func (d *decoder) hitObject(line string) {
	f := fields(line)
	if len(f) < 4 {
		return
	}
	base := BaseHO{
		PosX:  intOr(f[0], 0),
		Time:  intOr(f[2], 0) + d.offset,
		Sound: HitSoundFlags(intOr(at(f, 4), 0)),
	}

	if HitObjectTypeFlags(intOr(f[3], 0))&TypeHold == 0 {
		if len(f) >= 6 {
			base.SampleHS = hitSample(f[len(f)-1])
		}
		d.b.HitObjects = append(d.b.HitObjects, Note{BaseHO: base})
		return
	}

	end := base.Time
	if len(f) >= 6 {
		endTime, sample, _ := strings.Cut(f[5], ":")
		end = intOr(endTime, 0) + d.offset
		base.SampleHS = hitSample(sample)
	}
	d.b.HitObjects = append(d.b.HitObjects, Hold{BaseHO: base, End: end})
}

// hitSample reads normalSet:additionSet:index:volume:filename.
func hitSample(s string) HitSampleSpec {
	f := strings.Split(s, ":")
	return HitSampleSpec{
		NormalSet:   SampleSet(clamp(intOr(at(f, 0), 0), 0, int(SampleDrum))),
		AdditionSet: SampleSet(clamp(intOr(at(f, 1), 0), 0, int(SampleDrum))),
		Index:       intOr(at(f, 2), 0),
		Volume:      intOr(at(f, 3), 0),
		Filename:    strings.Trim(strings.TrimSpace(at(f, 4)), `"`),
	}
}

func (d *Difficulty) restrict(mode int) {
	d.HPDrainRate = clamp(d.HPDrainRate, 0, 10)
	d.OverallDifficulty = clamp(d.OverallDifficulty, 0, 10)
	d.ApproachRate = clamp(d.ApproachRate, 0, 10)
	if mode == MODE_MANIA {
		d.CircleSize = clamp(d.CircleSize, 1, MAX_MANIA_KEY_COUNT)
	} else {
		d.CircleSize = clamp(d.CircleSize, 0, 10)
	}
	d.SliderMultiplier = clamp(d.SliderMultiplier, 0.4, 3.6)
	d.SliderTickRate = clamp(d.SliderTickRate, 0.5, 8)
}

// Validate reports the fields a playable mania chart cannot do without.
func (b *Beatmap) Validate() error {
	if b.Metadata.Title == "" && b.Metadata.TitleUnicode == "" {
		return errors.New("missing title")
	}
	if b.Metadata.Artist == "" && b.Metadata.ArtistUnicode == "" {
		return errors.New("missing artist")
	}
	if b.General.AudioFilename == "" {
		return errors.New("missing AudioFilename in [General]")
	}
	return b.CheckMania()
}

// fields splits a comma separated row. Quoted values may contain commas.
func fields(line string) []string {
	r := csv.NewReader(strings.NewReader(line))
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	f, err := r.Read()
	if err != nil {
		f = strings.Split(line, ",")
	}
	for i := range f {
		f[i] = strings.TrimSpace(f[i])
	}
	return f
}

func at(f []string, i int) string {
	if i < len(f) {
		return f[i]
	}
	return ""
}

func intOr(s string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return v
	}
	return def
}

func floatOr(s string, def float64) float64 {
	if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return v
	}
	return def
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	return min(max(v, lo), hi)
}

func unquotePath(p string) string {
	return strings.ReplaceAll(strings.Trim(p, `"`), `\`, "/")
}

func sampleSetName(id int) string {
	switch id {
	case 1:
		return "normal"
	case 2:
		return "soft"
	case 3:
		return "drum"
	}
	return "none"
}

func sampleSetID(name string) int {
	switch strings.ToLower(name) {
	case "normal":
		return 1
	case "soft":
		return 2
	case "drum":
		return 3
	}
	return 0
}
