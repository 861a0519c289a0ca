package s3m

import (
	"math"

	"github.com/jtarrio/s3m/internal/s3mdb"
)

type numeric interface {
	int | float64
}

func clampMin[T numeric](v, min T) T {
	if v < min {
		return min
	}
	return v
}

func clampMax[T numeric](v, max T) T {
	if v > max {
		return max
	}
	return v
}

func clamp[T numeric](v, min, max T) T {
	return clampMax(clampMin(v, min), max)
}

// volumeToGain converts a [0, 1] volume to the 0-64 scale
// used by volume slides and retriggers.
func volumeToGain(volume float64) int {
	return int(math.Round(volume * 64))
}

func gainToVolume(gain int) float64 {
	return float64(clamp(gain, 0, 64)) / 64
}

func playbackRate(period int) float64 {
	return s3mdb.PlaybackRate(clampMin(period, 1))
}

// slideTowards moves v towards target by at most step.
func slideTowards(v, target, step int) int {
	if v < target {
		return clampMax(v+step, target)
	}
	if v > target {
		return clampMin(v-step, target)
	}
	return v
}
