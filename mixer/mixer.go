// Package mixer implements a software s3m.Backend that renders
// 16-bit little endian stereo PCM.
//
// A Mixer is an io.Reader, so it can be passed to ebiten/audio
// or oto players directly. Its clock is driven by the amount of
// rendered audio: a sequencer that uses the mixer as a backend
// advances exactly as fast as the audio is consumed.
package mixer

import (
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/jtarrio/s3m"
	"github.com/jtarrio/s3m/s3mfile"
)

const (
	channels       = 2
	bytesPerSample = 2
	bytesPerFrame  = channels * bytesPerSample

	// volumeRamp is the max gain change per frame.
	volumeRamp = 1.0 / 180.0

	// headroom is an amplification heuristic to avoid clipping
	// when many voices play at once.
	headroom = 0.25
)

// Config configures a Mixer.
type Config struct {
	// SampleRate is the output sample rate.
	//
	// A zero value will assume a sample rate of 44100.
	SampleRate int

	// Volume is the global volume scaling, see Mixer.SetVolume.
	//
	// A zero value will use 0.8.
	// Use SetVolume(0) after New to get a silent mixer.
	Volume float64
}

// Mixer mixes the voices created by a sequencer.
//
// All methods are safe for concurrent use: audio libraries call Read
// from their own goroutine, while the voices are controlled from the
// goroutine that runs the sequencer.
type Mixer struct {
	mu sync.Mutex

	sampleRate int
	volume     float64

	// frames is the number of rendered frames; it drives the clock.
	frames int64

	voices []*voice
}

var _ s3m.Backend = (*Mixer)(nil)

func New(config Config) *Mixer {
	applyConfigDefaults(&config)
	return &Mixer{
		sampleRate: config.SampleRate,
		volume:     clamp(config.Volume, 0, 1),
	}
}

func applyConfigDefaults(config *Config) {
	if config.SampleRate == 0 {
		config.SampleRate = 44100
	}
	if config.Volume == 0 {
		config.Volume = 0.8
	}
}

func (m *Mixer) SampleRate() int { return m.sampleRate }

// SetVolume adjusts the global volume scaling.
// The default value is 0.8; a value of 0 disables the sound.
// The value is clamped in [0, 1].
func (m *Mixer) SetVolume(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = clamp(v, 0, 1)
	for _, voice := range m.voices {
		voice.updateTarget()
	}
}

func (m *Mixer) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// Now implements s3m.Backend.
// It returns the duration of the audio rendered so far.
func (m *Mixer) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.framesToDuration(m.frames)
}

func (m *Mixer) framesToDuration(frames int64) time.Duration {
	return time.Duration(frames) * time.Second / time.Duration(m.sampleRate)
}

func (m *Mixer) durationToFrames(d time.Duration) int64 {
	return int64(d) * int64(m.sampleRate) / int64(time.Second)
}

// NewVoice implements s3m.Backend.
func (m *Mixer) NewVoice(inst *s3mfile.Instrument) s3m.Voice {
	return &voice{mixer: m, inst: inst, rate: 1}
}

// ActiveVoices returns the number of voices that are currently sounding.
func (m *Mixer) ActiveVoices() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, v := range m.voices {
		if v.playing {
			n++
		}
	}
	return n
}

// Read puts the next PCM frames into b.
//
// Every frame takes 4 bytes (two 16-bit channels), so a tail of b
// that can't fit a whole frame is left untouched.
// Read never fails: when no voice is playing, it produces silence.
func (m *Mixer) Read(b []byte) (int, error) {
	n := len(b) / bytesPerFrame
	if n == 0 {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.mix(n, func(i int, left, right int16) {
		putPCM(b[i*bytesPerFrame:], uint16(left), uint16(right))
	})
	return n * bytesPerFrame, nil
}

// mix renders n frames, passing each one to put.
// The caller must hold m.mu.
func (m *Mixer) mix(n int, put func(i int, left, right int16)) {
	m.dropStopped()

	for i := 0; i < n; i++ {
		left := 0.0
		right := 0.0
		for _, v := range m.voices {
			if !v.playing {
				continue
			}
			sample := v.nextSample()
			left += sample * v.computed[0]
			right += sample * v.computed[1]
			v.computed[0] = slideTowards(v.computed[0], v.target[0], volumeRamp)
			v.computed[1] = slideTowards(v.computed[1], v.target[1], volumeRamp)
		}
		put(i, toInt16(left), toInt16(right))
	}

	m.frames += int64(n)
}

func (m *Mixer) dropStopped() {
	live := m.voices[:0]
	for _, v := range m.voices {
		if v.playing {
			live = append(live, v)
		}
	}
	for i := len(live); i < len(m.voices); i++ {
		m.voices[i] = nil
	}
	m.voices = live
}

func toInt16(v float64) int16 {
	return int16(clamp(math.Round(v*math.MaxInt16), math.MinInt16, math.MaxInt16))
}

func putPCM(b []byte, left, right uint16) {
	binary.LittleEndian.PutUint16(b[0:], left)
	binary.LittleEndian.PutUint16(b[2:], right)
}
