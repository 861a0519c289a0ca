package s3m

import (
	"time"

	"github.com/jtarrio/s3m/s3mfile"
)

// Backend is the audio output driven by a Sequencer.
//
// The sequencer calls the backend from the goroutine that runs
// Update or Step; implementations that render audio on another
// goroutine must do their own locking.
type Backend interface {
	// Now returns the backend's monotonic clock.
	// The sequencer uses it to decide how many ticks to process.
	Now() time.Duration

	// NewVoice creates a stopped voice bound to the instrument's sample.
	// Looped instruments must loop between LoopBegin and LoopEnd.
	NewVoice(inst *s3mfile.Instrument) Voice
}

// Voice is a single playing sample.
type Voice interface {
	// SetRate sets the playback rate relative to the
	// instrument's middle C frequency.
	SetRate(rate float64)

	// SetGain sets the volume in [0, 1].
	SetGain(gain float64)

	// SetPan sets the stereo position in [-1, 1].
	SetPan(pan float64)

	// Start begins the playback at the given offset, in seconds
	// at the instrument's middle C frequency.
	Start(offset float64)

	// Stop silences the voice. A stopped voice is never restarted.
	Stop()
}
