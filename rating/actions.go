package rating

import (
	"cmp"
	"fmt"
	"slices"

	"mcz2osz/dotosu"
)

// Action is one key press, in playback time.
type Action struct {
	Column int
	Start  float64
	End    float64
	Hold   bool
}

// ConvertBeatmapToActions orders the hit objects by time, then column, and
// scales their times by 1/rate.
func ConvertBeatmapToActions(beatmap *dotosu.Beatmap, rate float64) ([]Action, error) {
	keys := beatmap.Keys()
	actions := make([]Action, 0, len(beatmap.HitObjects))
	for _, object := range beatmap.HitObjects {
		action := Action{
			Column: dotosu.Column(object.X(), keys),
			Start:  float64(object.StartTime()),
		}
		switch object := object.(type) {
		case dotosu.Note:
			action.End = action.Start
		case dotosu.Hold:
			action.End = float64(object.End)
			action.Hold = true
		default:
			return nil, fmt.Errorf("%w: unexpected object %T at %d", ErrRatingUnavailable, object, object.StartTime())
		}
		actions = append(actions, action)
	}

	slices.SortStableFunc(actions, func(a, b Action) int {
		if c := cmp.Compare(a.Start, b.Start); c != 0 {
			return c
		}
		return cmp.Compare(a.Column, b.Column)
	})
	for i := range actions {
		actions[i].Start /= rate
		actions[i].End /= rate
	}
	return actions, nil
}
