package deploystatus

import (
	"fmt"
	"math"
)

// Score maps a commits-behind count to a normalized staleness value.
// A non-positive ceiling disables scoring entirely.
func Score(commitsBehind, commitCeiling int) float64 {
	if commitCeiling <= 0 {
		return 0
	}
	return math.Min(float64(commitsBehind)/float64(commitCeiling), 1)
}

// Color anchors for the staleness gradient: bright green (fresh sprout) at
// score 0 fading to pale brown (autumn leaf) at score 1. The dark palette
// uses the same hues with saturation/lightness tuned for dark backgrounds.
const (
	freshHue = 142
	staleHue = 30

	freshSatLight   = 71
	freshLightLight = 45
	staleSatLight   = 40
	staleLightLight = 59

	freshSatDark   = 72
	freshLightDark = 48
	staleSatDark   = 55
	staleLightDark = 58
)

// Color maps a staleness score to a CSS hsl() color string by interpolating
// hue, saturation and lightness independently between the fresh and stale
// anchors. The score is clamped to [0, 1] first.
func Color(score float64, dark bool) string {
	clamped := math.Max(0, math.Min(1, score))

	freshSat, freshLight := freshSatLight, freshLightLight
	staleSat, staleLight := staleSatLight, staleLightLight
	if dark {
		freshSat, freshLight = freshSatDark, freshLightDark
		staleSat, staleLight = staleSatDark, staleLightDark
	}

	h := int(math.Round(freshHue + (staleHue-freshHue)*clamped))
	s := int(math.Round(float64(freshSat) + float64(staleSat-freshSat)*clamped))
	l := int(math.Round(float64(freshLight) + float64(staleLight-freshLight)*clamped))

	return fmt.Sprintf("hsl(%d, %d%%, %d%%)", h, s, l)
}
