package utils

import "time"

// Clamp01 clamps v to the [0, 1] interval.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// EaseOutCubic is the easing curve used by reveal animations: fast at the
// start, settling gently at full opacity. t is normalized animation progress
// in [0, 1]; out-of-range inputs are clamped.
func EaseOutCubic(t float64) float64 {
	t = Clamp01(t)
	u := 1 - t
	return 1 - u*u*u
}

// StaggerDelay computes the reveal delay for the marker at the given render
// index: markers are grouped into chunks of chunkSize, and each marker's
// delay is its position within the chunk times the stagger step. This turns a
// fresh result page into a repeating wave instead of a simultaneous pop.
//
// For chunkSize=4, step=12ms the delays run 0,12,24,36,0,12,24,36,...
func StaggerDelay(index, chunkSize int, step time.Duration) time.Duration {
	if chunkSize <= 0 || index < 0 {
		return 0
	}
	return time.Duration(index%chunkSize) * step
}
