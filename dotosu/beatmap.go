package dotosu

import (
	"errors"
	"fmt"
	"math"
)

const (
	EARLY_VERSION_TIMING_OFFSET = 24
	MAX_MANIA_KEY_COUNT         = 18
	LATEST_VERSION              = 14
	MODE_MANIA                  = 3
	PLAYFIELD_WIDTH             = 512
	MANIA_Y                     = 192
)

var ErrNotMania = errors.New("not an osu!mania beatmap")

// Beatmap is one difficulty of an osu! beatmap set. Only the sections a
// mania chart uses are kept; storyboard events survive as raw lines.
type Beatmap struct {
	FormatVersion int
	General       General
	Editor        Editor
	Metadata      Metadata
	Difficulty    Difficulty

	Breaks          []BreakPeriod
	TimingPoints    []TimingPoint
	HitObjects      []HitObject
	UnhandledEvents []string

	Bookmarks []int
}

type General struct {
	AudioFilename        string
	AudioLeadIn          int
	PreviewTime          int
	SampleSet            string
	StackLeniency        float64
	Mode                 int
	LetterboxInBreaks    bool
	SpecialStyle         bool
	WidescreenStoryboard bool
	Countdown            int
}

type Editor struct {
	DistanceSpacing float64
	BeatDivisor     int
	GridSize        int
	TimelineZoom    float64
}

type Metadata struct {
	Title, TitleUnicode            string
	Artist, ArtistUnicode          string
	Creator, Version, Source, Tags string
	BeatmapID, BeatmapSetID        int
	BackgroundFile, VideoFile      string
}

type Difficulty struct {
	HPDrainRate, CircleSize, OverallDifficulty, ApproachRate float64
	SliderMultiplier, SliderTickRate                         float64
}

type BreakPeriod struct{ Start, End int }

// TimingPoint is a red line when TimingChange is set (BeatLength in ms per
// beat) and a green line otherwise (BeatLength = -100/speed).
type TimingPoint struct {
	Time             int
	BeatLength       float64
	TimeSignature    int
	SampleSet        string
	CustomSampleBank int
	SampleVolume     int
	TimingChange     bool
	Kiai             bool
	ScrollSpeed      float64
}

// NewMania returns the skeleton every converted chart starts from.
func NewMania() *Beatmap {
	return &Beatmap{
		FormatVersion: LATEST_VERSION,
		General: General{
			SampleSet:            "soft",
			StackLeniency:        0.7,
			Mode:                 MODE_MANIA,
			WidescreenStoryboard: true,
		},
		Editor: Editor{
			DistanceSpacing: 1,
			BeatDivisor:     8,
			GridSize:        4,
			TimelineZoom:    2,
		},
		Metadata: Metadata{BeatmapSetID: -1},
		Difficulty: Difficulty{
			HPDrainRate:       8,
			OverallDifficulty: 8,
			ApproachRate:      5,
			SliderMultiplier:  1.4,
			SliderTickRate:    1,
		},
	}
}

func (b *Beatmap) Keys() int {
	return int(b.Difficulty.CircleSize)
}

func (b *Beatmap) CheckMania() error {
	if b.General.Mode != MODE_MANIA {
		return fmt.Errorf("%w: mode %d", ErrNotMania, b.General.Mode)
	}
	if b.Keys() < 1 {
		return fmt.Errorf("%w: %v keys", ErrNotMania, b.Difficulty.CircleSize)
	}
	return nil
}

// ColumnX is the x position of the centre of a column.
func ColumnX(column, keys int) int {
	return int(math.Floor((float64(column) + 0.5) * (PLAYFIELD_WIDTH / float64(keys))))
}

// Column maps an x position back to its column.
func Column(x, keys int) int {
	c := int(math.Floor(float64(x) * float64(keys) / PLAYFIELD_WIDTH))
	return clamp(c, 0, keys-1)
}
