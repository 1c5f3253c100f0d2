package timeline

import "slices"

// StopValue is written for a zero or negative scroll speed. The target format
// has no way to stop scrolling; a huge negative beat length gets close.
const StopValue = -1e8

type Scroll struct {
	Beat       float64
	Multiplier float64
}

// Point is one timing point of the target chart. Value is ms per beat for a
// tempo point and the negative speed encoding for a scroll point.
type Point struct {
	Time  int
	Value float64
	Tempo bool
}

func ScrollValue(multiplier float64) float64 {
	if multiplier > 0 {
		return -100 / multiplier
	}
	return StopValue
}

func (t *Timeline) Scrolls(scrolls []Scroll) []Point {
	points := make([]Point, 0, len(scrolls))
	for _, s := range scrolls {
		points = append(points, Point{
			Time:  t.Resolve(s.Beat),
			Value: ScrollValue(s.Multiplier),
		})
	}
	return points
}

// Merge interleaves tempo breakpoints and scroll points by time. Scroll points
// before the first tempo breakpoint are dropped. On equal times the tempo
// point comes first.
func Merge(tempo []Breakpoint, scrolls []Point) []Point {
	scrolls = slices.Clone(scrolls)
	if len(tempo) > 0 {
		first := tempo[0].Time
		scrolls = slices.DeleteFunc(scrolls, func(p Point) bool {
			return p.Time < first
		})
	}
	slices.SortStableFunc(scrolls, func(a, b Point) int {
		return a.Time - b.Time
	})

	out := make([]Point, 0, len(tempo)+len(scrolls))
	i, j := 0, 0
	for i < len(tempo) && j < len(scrolls) {
		if tempo[i].Time <= scrolls[j].Time {
			out = append(out, tempoPoint(tempo[i]))
			i++
		} else {
			out = append(out, scrolls[j])
			j++
		}
	}
	for ; i < len(tempo); i++ {
		out = append(out, tempoPoint(tempo[i]))
	}
	return append(out, scrolls[j:]...)
}

func tempoPoint(b Breakpoint) Point {
	return Point{Time: b.Time, Value: b.Interval, Tempo: true}
}

// TimingPoints resolves the scroll events and merges them with the tempo map.
func (t *Timeline) TimingPoints(scrolls []Scroll) []Point {
	return Merge(t.Breakpoints(), t.Scrolls(scrolls))
}
