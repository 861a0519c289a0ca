package mixer

import (
	"math"

	"github.com/jtarrio/s3m/s3mfile"
)

// voice plays a single instrument sample.
// All fields are guarded by mixer.mu.
type voice struct {
	mixer *Mixer
	inst  *s3mfile.Instrument

	// pos is the current frame inside the sample.
	pos  float64
	step float64

	rate float64
	gain float64
	pan  float64

	target   [2]float64
	computed [2]float64

	playing bool
	stopped bool
}

func (v *voice) SetRate(rate float64) {
	v.mixer.mu.Lock()
	defer v.mixer.mu.Unlock()
	v.rate = rate
	v.updateStep()
}

func (v *voice) SetGain(gain float64) {
	v.mixer.mu.Lock()
	defer v.mixer.mu.Unlock()
	v.gain = clamp(gain, 0, 1)
	v.updateTarget()
}

func (v *voice) SetPan(pan float64) {
	v.mixer.mu.Lock()
	defer v.mixer.mu.Unlock()
	v.pan = clamp(pan, -1, 1)
	v.updateTarget()
}

// Start begins the playback; offset is expressed in seconds
// at the instrument's middle C frequency.
func (v *voice) Start(offset float64) {
	m := v.mixer
	m.mu.Lock()
	defer m.mu.Unlock()

	if v.playing || v.stopped {
		return
	}
	v.pos = offset * float64(v.inst.MiddleCFreq)
	if v.pos >= float64(len(v.inst.Sample)) && !v.looped() {
		return
	}
	v.updateStep()
	v.updateTarget()
	v.playing = true
	m.voices = append(m.voices, v)
}

func (v *voice) Stop() {
	v.mixer.mu.Lock()
	defer v.mixer.mu.Unlock()
	v.playing = false
	v.stopped = true
}

func (v *voice) updateStep() {
	v.step = v.rate * float64(v.inst.MiddleCFreq) / float64(v.mixer.sampleRate)
}

func (v *voice) updateTarget() {
	p := (v.pan + 1) / 2
	volume := headroom * v.mixer.volume * v.gain
	v.target[0] = volume * math.Sqrt(1-p)
	v.target[1] = volume * math.Sqrt(p)
}

func (v *voice) looped() bool {
	inst := v.inst
	return inst.Looped && inst.LoopEnd > inst.LoopBegin && inst.LoopEnd <= len(inst.Sample)
}

// nextSample returns a linearly interpolated sample and advances the position.
func (v *voice) nextSample() float64 {
	data := v.inst.Sample
	looped := v.looped()
	end := len(data)
	if looped {
		end = v.inst.LoopEnd
	}

	if v.pos >= float64(end) {
		if !looped {
			v.playing = false
			v.stopped = true
			return 0
		}
		v.wrap()
	}

	i := int(v.pos)
	a := float64(data[i])
	b := 0.0
	switch {
	case i+1 < end:
		b = float64(data[i+1])
	case looped:
		b = float64(data[v.inst.LoopBegin])
	}
	sample := lerp(a, b, v.pos-float64(i))

	v.pos += v.step
	if looped && v.pos >= float64(end) {
		v.wrap()
	}
	return sample
}

func (v *voice) wrap() {
	loopLen := float64(v.inst.LoopEnd - v.inst.LoopBegin)
	begin := float64(v.inst.LoopBegin)
	v.pos = begin + math.Mod(v.pos-begin, loopLen)
}
