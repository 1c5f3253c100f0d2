package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcz2osz/dotosu"
)

func chart(keys int, objects ...dotosu.HitObject) *dotosu.Beatmap {
	b := dotosu.NewMania()
	b.Difficulty.CircleSize = float64(keys)
	b.HitObjects = objects
	return b
}

func note(column, keys, time int) dotosu.HitObject {
	return dotosu.Note{BaseHO: dotosu.BaseHO{PosX: dotosu.ColumnX(column, keys), Time: time}}
}

func hold(column, keys, start, end int) dotosu.HitObject {
	return dotosu.Hold{BaseHO: dotosu.BaseHO{PosX: dotosu.ColumnX(column, keys), Time: start}, End: end}
}

func TestRateTwoNotes(t *testing.T) {
	sr, err := Mania{}.Rate(chart(1, note(0, 1, 0), note(0, 1, 1000)), 1)
	require.NoError(t, err)
	// individual 2, overall 1*0.3 + 1
	assert.InDelta(t, 3.3*0.018, sr, 1e-12)
}

func TestRateSingleObject(t *testing.T) {
	sr, err := Mania{}.Rate(chart(4, note(2, 4, 500)), 1)
	require.NoError(t, err)
	assert.Zero(t, sr)
}

func TestRateFasterIsHarder(t *testing.T) {
	var objects []dotosu.HitObject
	for i := 0; i < 64; i++ {
		objects = append(objects, note(i%4, 4, i*150))
	}
	b := chart(4, objects...)

	normal, err := Mania{}.Rate(b, 1)
	require.NoError(t, err)
	fast, err := Mania{}.Rate(b, 1.5)
	require.NoError(t, err)
	slow, err := Mania{}.Rate(b, 0.75)
	require.NoError(t, err)

	assert.Greater(t, fast, normal)
	assert.Greater(t, normal, slow)
}

func TestRateHeldColumnAddsStrain(t *testing.T) {
	withHold, err := Mania{}.Rate(chart(2, note(0, 2, 0), hold(0, 2, 100, 1000), note(1, 2, 200)), 1)
	require.NoError(t, err)
	withoutHold, err := Mania{}.Rate(chart(2, note(0, 2, 0), note(0, 2, 100), note(1, 2, 200)), 1)
	require.NoError(t, err)

	assert.Greater(t, withHold, withoutHold)
}

func TestRateUnavailable(t *testing.T) {
	_, err := Mania{}.Rate(chart(4), 1)
	assert.ErrorIs(t, err, ErrRatingUnavailable)

	_, err = Mania{}.Rate(chart(4, note(0, 4, 0)), 0)
	assert.ErrorIs(t, err, ErrRatingUnavailable)

	_, err = Mania{}.Rate(chart(0, note(0, 1, 0)), 1)
	assert.ErrorIs(t, err, ErrRatingUnavailable)
}

func TestActionsOrderedByTimeThenColumn(t *testing.T) {
	actions, err := ConvertBeatmapToActions(chart(4, note(3, 4, 100), note(1, 4, 100), hold(0, 4, 50, 400)), 2)
	require.NoError(t, err)

	require.Len(t, actions, 3)
	assert.Equal(t, Action{Column: 0, Start: 25, End: 200, Hold: true}, actions[0])
	assert.Equal(t, 1, actions[1].Column)
	assert.Equal(t, 3, actions[2].Column)
	assert.Equal(t, 50.0, actions[2].Start)
}

func TestWeightedSum(t *testing.T) {
	assert.InDelta(t, 3+2*0.9+1*0.81, WeightedSum([]float64{1, 3, 2}), 1e-12)
	assert.Zero(t, WeightedSum(nil))
}
