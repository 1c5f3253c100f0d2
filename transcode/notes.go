package transcode

import (
	"mcz2osz/dotosu"
	"mcz2osz/malody"
	"mcz2osz/timeline"
)

// MapNotes converts playable notes to hit objects. A note with an end beat
// becomes a hold.
func MapNotes(notes []malody.Note, columns int, tl *timeline.Timeline) []dotosu.HitObject {
	objects := make([]dotosu.HitObject, 0, len(notes))
	for _, n := range notes {
		base := dotosu.BaseHO{
			PosX: dotosu.ColumnX(n.Lane(), columns),
			Time: tl.Resolve(n.Beat.Float()),
		}
		if n.IsHold() {
			objects = append(objects, dotosu.Hold{BaseHO: base, End: tl.Resolve(n.EndBeat.Float())})
			continue
		}
		objects = append(objects, dotosu.Note{BaseHO: base})
	}
	return objects
}

func tempoEvents(chart *malody.Chart) []timeline.Tempo {
	out := make([]timeline.Tempo, len(chart.Time))
	for i, t := range chart.Time {
		out[i] = timeline.Tempo{Beat: t.Beat.Float(), BPM: t.BPM}
	}
	return out
}

func scrollEvents(chart *malody.Chart) []timeline.Scroll {
	out := make([]timeline.Scroll, len(chart.Effect))
	for i, e := range chart.Effect {
		out[i] = timeline.Scroll{Beat: e.Beat.Float(), Multiplier: e.Scroll}
	}
	return out
}

func timingPoints(points []timeline.Point) []dotosu.TimingPoint {
	out := make([]dotosu.TimingPoint, len(points))
	for i, p := range points {
		out[i] = dotosu.TimingPoint{
			Time:          p.Time,
			BeatLength:    p.Value,
			TimeSignature: 4,
			SampleSet:     "soft",
			SampleVolume:  10,
			TimingChange:  p.Tempo,
			ScrollSpeed:   1,
		}
		if !p.Tempo {
			out[i].ScrollSpeed = -100 / p.Value
		}
	}
	return out
}
