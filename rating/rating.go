// Package rating estimates the star rating of an osu!mania chart from note
// density: strain builds up per column and across the whole keyboard, and
// the hardest 400ms sections dominate the result.
package rating

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"mcz2osz/dotosu"
)

const (
	decayWeight = 0.9
	starScaling = 0.018
	maxKeyCount = dotosu.MAX_MANIA_KEY_COUNT
)

var ErrRatingUnavailable = errors.New("rating unavailable")

// Mania is the default rater.
type Mania struct{}

// Rate returns the star rating at the given playback rate.
func (Mania) Rate(beatmap *dotosu.Beatmap, modifier float64) (float64, error) {
	if !(modifier > 0) || math.IsInf(modifier, 0) {
		return 0, fmt.Errorf("%w: speed modifier %v", ErrRatingUnavailable, modifier)
	}
	keys := beatmap.Keys()
	if keys < 1 || keys > maxKeyCount {
		return 0, fmt.Errorf("%w: %d keys", ErrRatingUnavailable, keys)
	}
	if len(beatmap.HitObjects) == 0 {
		return 0, fmt.Errorf("%w: no hit objects", ErrRatingUnavailable)
	}

	actions, err := ConvertBeatmapToActions(beatmap, modifier)
	if err != nil {
		return 0, err
	}

	iter := NewStrainIter(keys)
	for _, action := range actions {
		iter.IterateAction(action)
	}
	iter.Finish()

	return WeightedSum(iter.Peaks) * starScaling, nil
}

// WeightedSum adds the peaks from highest to lowest, each weighted 0.9 times
// the previous one.
func WeightedSum(peaks []float64) float64 {
	sorted := append([]float64(nil), peaks...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	sum := 0.0
	weight := 1.0
	for _, peak := range sorted {
		sum += peak * weight
		weight *= decayWeight
	}
	return sum
}
