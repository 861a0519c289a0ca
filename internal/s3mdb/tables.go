package s3mdb

// ReferencePeriod is the period of C-4, which plays a sample
// at its middle C frequency.
const ReferencePeriod = 1712

// NotePeriods maps semitone indexes (0 is C-0) to periods,
// from the lowest pitch to the highest one.
var NotePeriods = [...]int{
	27392, 25856, 24384, 23040, 21696, 20480, 19328, 18240, 17216, 16256, 15360, 14496,
	13696, 12928, 12192, 11520, 10848, 10240, 9664, 9120, 8608, 8128, 7680, 7248,
	6848, 6464, 6096, 5760, 5424, 5120, 4832, 4560, 4304, 4064, 3840, 3624,
	3424, 3232, 3048, 2880, 2712, 2560, 2416, 2280, 2152, 2032, 1920, 1812,
	1712, 1616, 1524, 1440, 1356, 1280, 1208, 1140, 1076, 1016, 960, 906,
	856, 808, 762, 720, 678, 640, 604, 570, 538, 508, 480, 453,
	428, 404, 381, 360, 339, 320, 302, 285, 269, 254, 240, 226,
	214, 202, 190, 180, 170, 160, 151, 143, 135, 127, 120, 113,
	107, 101, 95, 90, 85, 80, 75, 71, 67, 63, 60, 56,
}

const (
	MaxPeriod = 27392
	MinPeriod = 56
)

// VibratoWave is a half sine wave; negative vibrato positions mirror it.
var VibratoWave = [32]int{
	0, 24, 49, 74, 97, 120, 141, 161,
	180, 197, 212, 224, 235, 244, 250, 253,
	255, 253, 250, 244, 235, 224, 212, 197,
	180, 161, 141, 120, 97, 74, 49, 24,
}

// NotePeriod returns the period for a semitone index.
// The index is clamped to the table.
func NotePeriod(note int) int {
	if note < 0 {
		note = 0
	}
	if note >= len(NotePeriods) {
		note = len(NotePeriods) - 1
	}
	return NotePeriods[note]
}

// FindPeriod returns the index of period in NotePeriods.
// If the period is not in the table, the index of the closest
// lower period (higher pitch) is returned.
func FindPeriod(period int) int {
	lo := 0
	hi := len(NotePeriods)
	for lo < hi {
		mid := (lo + hi) / 2
		seen := NotePeriods[mid]
		if period == seen {
			return mid
		}
		if period > seen {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// PlaybackRate converts a period to a playback rate relative
// to the instrument's middle C frequency.
func PlaybackRate(period int) float64 {
	return ReferencePeriod / float64(period)
}

type retriggerStep struct {
	add int
	mul int
	div int
}

var retriggerSteps = [16]retriggerStep{
	{add: 0}, {add: -1}, {add: -2}, {add: -4}, {add: -8}, {add: -16}, {mul: 2, div: 3}, {mul: 1, div: 2},
	{add: 0}, {add: 1}, {add: 2}, {add: 4}, {add: 8}, {add: 16}, {mul: 3, div: 2}, {mul: 2, div: 1},
}

// RetriggerVolume applies a retrigger volume code (0-15) to a 0-64 volume.
// The result is clamped to [0, 64].
func RetriggerVolume(code uint8, volume int) int {
	step := retriggerSteps[code&0x0f]
	if step.div != 0 {
		volume = volume * step.mul / step.div
	} else {
		volume += step.add
	}
	if volume < 0 {
		return 0
	}
	if volume > 64 {
		return 64
	}
	return volume
}
