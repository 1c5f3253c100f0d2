package rating

import "math"

const (
	individualDecayBase = 0.125
	overallDecayBase    = 0.30
	sectionLength       = 400.0
)

// StrainIter accumulates per-column and overall strain over a sequence of
// actions and records the peak of every section.
type StrainIter struct {
	holdEndTimes      []float64
	individualStrains []float64
	individualStrain  float64
	overallStrain     float64

	prevStart   float64
	count       int
	sectionEnd  float64
	sectionPeak float64

	Peaks []float64
}

func NewStrainIter(keys int) StrainIter {
	return StrainIter{
		holdEndTimes:      make([]float64, keys),
		individualStrains: make([]float64, keys),
		overallStrain:     1,
	}
}

// IterateAction feeds the next action. The first action only anchors the
// timeline; strain is measured from the second onwards.
func (it *StrainIter) IterateAction(action Action) {
	it.count++
	switch it.count {
	case 1:
		it.prevStart = action.Start
		return
	case 2:
		it.sectionEnd = math.Ceil(action.Start/sectionLength) * sectionLength
	}

	for action.Start > it.sectionEnd {
		it.Peaks = append(it.Peaks, it.sectionPeak)
		it.sectionPeak = it.peakAt(it.sectionEnd)
		it.sectionEnd += sectionLength
	}

	strain := it.strainOf(action)
	it.sectionPeak = max(it.sectionPeak, strain)
	it.prevStart = action.Start
}

// Finish closes the section in progress.
func (it *StrainIter) Finish() {
	if it.count > 1 {
		it.Peaks = append(it.Peaks, it.sectionPeak)
	}
}

func (it *StrainIter) strainOf(action Action) float64 {
	delta := action.Start - it.prevStart

	holdFactor := 1.0
	holdAddition := 0.0
	for i, holdEnd := range it.holdEndTimes {
		// releasing over another hold is awkward, unless both end together
		if holdEnd-1 > action.Start && action.End-1 > holdEnd {
			holdAddition = 1
		}
		if math.Abs(action.End-holdEnd) <= 1 {
			holdAddition = 0
		}
		if holdEnd-1 > action.End {
			holdFactor = 1.25
		}
		it.individualStrains[i] = decay(it.individualStrains[i], delta, individualDecayBase)
	}

	it.holdEndTimes[action.Column] = action.End
	it.individualStrains[action.Column] += 2 * holdFactor
	it.individualStrain = it.individualStrains[action.Column]
	it.overallStrain = decay(it.overallStrain, delta, overallDecayBase) + (1+holdAddition)*holdFactor

	return it.individualStrain + it.overallStrain
}

func (it *StrainIter) peakAt(offset float64) float64 {
	elapsed := offset - it.prevStart
	return decay(it.individualStrain, elapsed, individualDecayBase) +
		decay(it.overallStrain, elapsed, overallDecayBase)
}

func decay(value, deltaTime, base float64) float64 {
	return value * math.Pow(base, deltaTime/1000)
}
