// Package timeline turns beat positions into absolute milliseconds.
//
// A tempo change takes effect at its declared beat, but the time elapsed up
// to that beat is measured under the previous tempo. Times are whole
// milliseconds; intermediate values are truncated toward zero and clamped to
// the unsigned 32-bit range.
package timeline

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrMissingTempoData = errors.New("missing tempo data")
	ErrInvalidTempo     = errors.New("invalid tempo")
)

type Tempo struct {
	Beat float64
	BPM  float64
}

type Breakpoint struct {
	Beat     float64
	Time     int
	Interval float64 // ms per beat
}

type Timeline struct {
	points []Breakpoint
	base   float64
	offset float64
}

// Build anchors the first tempo at ceil(offset/base) beats, the first whole
// beat at or after the lead-in.
func Build(tempos []Tempo, offsetMs int) (*Timeline, error) {
	if len(tempos) == 0 {
		return nil, ErrMissingTempoData
	}
	for _, tp := range tempos {
		if !(tp.BPM > 0) || math.IsInf(tp.BPM, 0) {
			return nil, fmt.Errorf("%w: bpm %v at beat %v", ErrInvalidTempo, tp.BPM, tp.Beat)
		}
	}

	base := 60000 / tempos[0].BPM
	offset := float64(offsetMs)
	startBeat := math.Ceil(offset / base)

	points := make([]Breakpoint, 0, len(tempos))
	points = append(points, Breakpoint{
		Beat:     startBeat,
		Time:     msec(math.Floor(startBeat*base - offset)),
		Interval: base,
	})
	for _, tp := range tempos[1:] {
		prev := points[len(points)-1]
		points = append(points, Breakpoint{
			Beat:     tp.Beat,
			Time:     prev.Time + msec((tp.Beat-prev.Beat)*prev.Interval),
			Interval: 60000 / tp.BPM,
		})
	}
	return &Timeline{points: points, base: base, offset: offset}, nil
}

func (t *Timeline) Breakpoints() []Breakpoint {
	if t == nil {
		return nil
	}
	return t.points
}

// Resolve maps a beat to milliseconds. Beats ahead of the first breakpoint
// are extrapolated from the base tempo and the lead-in offset.
func (t *Timeline) Resolve(beat float64) int {
	if t == nil || len(t.points) == 0 {
		return 0
	}
	if beat < t.points[0].Beat {
		return msec(beat*t.base - t.offset)
	}
	i := sort.Search(len(t.points), func(i int) bool {
		return t.points[i].Beat > beat
	}) - 1
	if i < 0 {
		i = 0
	}
	p := t.points[i]
	return p.Time + msec(math.Floor((beat-p.Beat)*snap(p.Interval)))
}

// snap rounds to 12 decimals so long charts land on the same millisecond as
// the reference converter.
func snap(interval float64) float64 {
	return math.Round(interval*1e12) / 1e12
}

func msec(v float64) int {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= math.MaxUint32:
		return math.MaxUint32
	}
	return int(v)
}
