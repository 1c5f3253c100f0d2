package card

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"golang.org/x/exp/constraints"
)

// gradientStops are the rating colours from 0 to 10 stars. The two trailing
// stops keep the interpolation in bounds at exactly 10.
var gradientStops = [...][3]float64{
	{79, 192, 255},
	{124, 255, 79},
	{246, 240, 92},
	{255, 78, 111},
	{198, 69, 184},
	{101, 99, 222},
	{0, 0, 0},
	{0, 0, 0},
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	return min(max(v, lo), hi)
}

// Gradient is the badge colour for a star rating.
func Gradient(sr float64) color.RGBA {
	if math.IsNaN(sr) {
		sr = 0
	}
	sr = clamp(sr, 0, 10)
	interval := 10 / float64(len(gradientStops)-2)
	section := int(sr / interval)
	partial := (sr - interval*float64(section)) / 2

	from, to := gradientStops[section], gradientStops[section+1]
	var c [3]uint8
	for i := range c {
		c[i] = uint8(clamp(math.Round(from[i]+(to[i]-from[i])*partial), 0, 255))
	}
	return color.RGBA{R: c[0], G: c[1], B: c[2], A: 0xff}
}

// FormatBPM prints one decimal without trailing zeros, and a range when the
// maximum differs once rounded to that decimal.
func FormatBPM(minBPM float64, maxBPM *float64) string {
	lo := formatDecimal(minBPM)
	if maxBPM == nil || math.Round(*maxBPM*10) == math.Round(minBPM*10) {
		return lo
	}
	return lo + "-" + formatDecimal(*maxBPM)
}

func formatDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', 1, 64)
	return strings.TrimSuffix(s, ".0")
}

// FormatLength prints milliseconds as m:ss.mmm.
func FormatLength(ms int) string {
	ms = max(ms, 0)
	return fmt.Sprintf("%d:%02d.%03d", ms/60000, ms/1000%60, ms%1000)
}

// NoteCounts prints the tap and hold counts with their share of the total.
func NoteCounts(notes, holds int) (tap, long string) {
	total := notes + holds
	share := func(n int) float64 {
		if total == 0 {
			return 0
		}
		return float64(n) / float64(total) * 100
	}
	tap = fmt.Sprintf("%d (%.2f%%)", notes, share(notes))
	long = fmt.Sprintf("%d (%.2f%%) = %d", holds, share(holds), total)
	return tap, long
}
