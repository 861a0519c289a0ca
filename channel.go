package s3m

import (
	"github.com/jtarrio/s3m/internal/s3mdb"
	"github.com/jtarrio/s3m/s3mfile"
)

// channel runs the effects of a single song channel.
//
// A channel never looks at other channels; everything it needs
// from the sequencer arrives through tickContext.
type channel struct {
	id   int
	name string
	pan  float64

	state   channelState
	pending channelDelta
	info    effectInfo

	// effect is the effect of the current row; it's reset on every row.
	effect s3mdb.Effect

	voice Voice
}

func newChannel(id int, desc s3mfile.Channel) channel {
	return channel{
		id:    id,
		name:  desc.Name,
		pan:   desc.Pan,
		state: initialChannelState(),
	}
}

func (c *channel) beginRow() {
	c.effect = s3mdb.Effect{}
}

// doCommand applies a pattern command on the first tick of a row.
func (c *channel) doCommand(cmd *s3mfile.Command, song *s3mfile.Song, ctx tickContext, b Backend) (rowRequest, error) {
	var req rowRequest

	if n, ok := cmd.Instrument.Get(); ok {
		if inst := song.Instrument(n); inst != nil {
			c.pending.sample = inst
			c.pending.volume = s3mfile.Some(inst.Volume)
		}
	}

	if v, ok := cmd.Volume.Get(); ok {
		c.pending.volume = s3mfile.Some(v)
	}

	if note, ok := cmd.Note.Get(); ok {
		if note == s3mfile.NoteKeyOff {
			c.pending.period = s3mfile.Some(0)
		} else {
			c.pending.period = s3mfile.Some(s3mdb.NotePeriod(note))
		}
	}

	c.effect = s3mdb.Effect{}
	if code, ok := cmd.Effect.Get(); ok {
		e, err := s3mdb.ConvertEffect(code, cmd.Info.Value())
		if err != nil {
			c.pending = channelDelta{}
			return req, err
		}
		c.effect = e
	}

	e := c.effect
	switch e.Op {
	case s3mdb.EffectSetSpeed:
		req.speed = s3mfile.Some(int(e.Arg))

	case s3mdb.EffectJump:
		req.jump = s3mfile.Some(int(e.Arg))

	case s3mdb.EffectBreak:
		req.breakToRow = s3mfile.Some(e.BreakRow())

	case s3mdb.EffectVolumeSlide:
		if e.Arg != 0 {
			c.info.volumeSlide = e.Arg
		}
		c.volumeSlide(ctx)

	case s3mdb.EffectPitchDown:
		if e.Arg != 0 {
			c.info.portamento = e.Arg
		}
		c.pitchDown(ctx)

	case s3mdb.EffectPitchUp:
		if e.Arg != 0 {
			c.info.portamento = e.Arg
		}
		c.pitchUp(ctx)

	case s3mdb.EffectNotePortamento:
		// The note becomes the portamento target instead of being played.
		if period, ok := c.pending.period.Get(); ok {
			c.info.portamentoTarget = period
			c.pending.period = s3mfile.Optional[int]{}
		}
		if e.Arg != 0 {
			c.info.portamento = e.Arg
		}
		c.notePortamento(ctx)

	case s3mdb.EffectVibrato:
		if e.Arg != 0 {
			c.info.vibrato = e.Arg
		}
		c.vibrato(ctx)

	case s3mdb.EffectArpeggio:
		if e.Arg != 0 {
			c.info.arpeggio = e.Arg
		}

	case s3mdb.EffectVibratoVolumeSlide:
		if e.Arg != 0 {
			c.info.volumeSlide = e.Arg
		}

	case s3mdb.EffectSampleOffset:
		c.sampleOffset(e.Arg)

	case s3mdb.EffectRetrigger:
		if e.Arg != 0 {
			c.info.retrigger = e.Arg
		}

	case s3mdb.EffectNoteDelay:
		c.info.noteDelay = e.Arg
		c.info.delayed = c.pending
		c.info.hasDelayed = true
		c.pending = channelDelta{}
	}

	c.commit(b)
	return req, nil
}

// updateEffects runs the current effect on the ticks after the first one.
func (c *channel) updateEffects(ctx tickContext, b Backend) {
	switch c.effect.Op {
	case s3mdb.EffectVolumeSlide:
		c.volumeSlide(ctx)
	case s3mdb.EffectPitchDown:
		c.pitchDown(ctx)
	case s3mdb.EffectPitchUp:
		c.pitchUp(ctx)
	case s3mdb.EffectNotePortamento:
		c.notePortamento(ctx)
	case s3mdb.EffectVibrato:
		c.vibrato(ctx)
	case s3mdb.EffectArpeggio:
		c.arpeggio(ctx)
	case s3mdb.EffectVibratoVolumeSlide:
		c.vibrato(ctx)
		c.volumeSlide(ctx)
	case s3mdb.EffectRetrigger:
		c.retrigger(ctx)
	case s3mdb.EffectNoteDelay:
		c.noteDelay(ctx)
	}
	c.commit(b)
}

// commit merges the pending changes into the channel state
// and forwards the resulting changes to the voice.
func (c *channel) commit(b Backend) {
	d := c.pending
	c.pending = channelDelta{}

	prevPeriod := c.state.period + c.state.periodDelta

	started := false
	if d.sample != nil {
		c.state.sample = d.sample
		c.stopVoice()
		c.voice = b.NewVoice(d.sample)
		started = true
	}

	if v, ok := d.vibratoPos.Get(); ok {
		c.state.vibratoPos = v
	}
	if v, ok := d.offset.Get(); ok {
		c.state.offset = v
	}

	if period, ok := d.period.Get(); ok && period == 0 {
		c.stopVoice()
	} else {
		if ok {
			c.state.period = period
		}
		c.state.periodDelta = d.periodDelta
	}

	volume, volumeChanged := d.volume.Get()
	if volumeChanged {
		c.state.volume = volume
	}

	if c.voice == nil {
		return
	}

	period := c.state.period + c.state.periodDelta
	if started {
		c.voice.SetPan(c.pan)
		c.voice.SetGain(c.state.volume)
		c.voice.SetRate(playbackRate(period))
		c.voice.Start(d.offset.Value())
		return
	}
	if period != prevPeriod {
		c.voice.SetRate(playbackRate(period))
	}
	if volumeChanged {
		c.voice.SetGain(c.state.volume)
	}
}

func (c *channel) stopVoice() {
	if c.voice != nil {
		c.voice.Stop()
		c.voice = nil
	}
}

// stop silences the channel and forgets its current sample.
func (c *channel) stop() {
	c.stopVoice()
	c.state.sample = nil
	c.pending = channelDelta{}
	c.effect = s3mdb.Effect{}
}

// current returns the state the channel would have
// if the pending changes were committed now.
func (c *channel) current() channelState {
	return c.state.merge(c.pending)
}

func (c *channel) volumeSlide(ctx tickContext) {
	gain := volumeToGain(c.current().volume)
	param := c.info.volumeSlide
	up := int(param >> 4)
	down := int(param & 0x0f)
	if ctx.tick == 0 {
		// Fine slides only happen once, on the first tick.
		if down == 0x0f {
			gain += up
		} else if up == 0x0f {
			gain -= down
		}
	} else {
		if down == 0 {
			gain += up
		} else if up == 0 {
			gain -= down
		}
	}
	c.pending.volume = s3mfile.Some(gainToVolume(gain))
}

func (c *channel) pitchDown(ctx tickContext) {
	period := c.current().period + c.pitchSlideAmount(ctx)
	c.pending.period = s3mfile.Some(clampMax(period, s3mdb.MaxPeriod))
}

func (c *channel) pitchUp(ctx tickContext) {
	period := c.current().period - c.pitchSlideAmount(ctx)
	c.pending.period = s3mfile.Some(clampMin(period, s3mdb.MinPeriod))
}

func (c *channel) pitchSlideAmount(ctx tickContext) int {
	param := int(c.info.portamento)
	if ctx.tick == 0 {
		switch param & 0xf0 {
		case 0xf0:
			return (param & 0x0f) * 4
		case 0xe0:
			return param & 0x0f
		}
		return 0
	}
	if param < 0xe0 {
		return param * 4
	}
	return 0
}

func (c *channel) notePortamento(ctx tickContext) {
	period := c.current().period
	target := c.info.portamentoTarget
	if ctx.tick > 0 && target != 0 {
		period = slideTowards(period, target, int(c.info.portamento)*4)
	}
	c.pending.period = s3mfile.Some(period)
}

func (c *channel) vibrato(ctx tickContext) {
	st := c.current()
	speed := int(c.info.vibrato >> 4)
	depth := int(c.info.vibrato & 0x0f)

	pos := st.vibratoPos
	// Negative positions mirror the wave; pos&31 maps [-32, -1] to [0, 31].
	delta := s3mdb.VibratoWave[pos&31] * depth / 128
	if pos < 0 {
		delta = -delta
	}
	if ctx.tick > 0 {
		pos += speed
		if pos > 31 {
			pos -= 64
		}
	}
	c.pending.vibratoPos = s3mfile.Some(pos)
	c.pending.periodDelta = delta * 4
}

func (c *channel) arpeggio(ctx tickContext) {
	step := ctx.tick % 3
	if step == 0 {
		c.pending.periodDelta = 0
		return
	}
	semitones := [2]int{int(c.info.arpeggio >> 4), int(c.info.arpeggio & 0x0f)}
	period := c.current().period
	i := s3mdb.FindPeriod(period) + semitones[step-1]
	i = clamp(i, 0, len(s3mdb.NotePeriods)-1)
	c.pending.periodDelta = s3mdb.NotePeriods[i] - period
}

func (c *channel) sampleOffset(param uint8) {
	sample := c.current().sample
	if sample == nil || sample.MiddleCFreq == 0 {
		return
	}
	c.pending.offset = s3mfile.Some(float64(param) * 256 / float64(sample.MiddleCFreq))
}

func (c *channel) retrigger(ctx tickContext) {
	interval := int(c.info.retrigger & 0x0f)
	if interval == 0 || ctx.tick%interval != 0 {
		return
	}
	c.pending.period = s3mfile.Some(c.state.period)
	c.pending.sample = c.state.sample
	gain := s3mdb.RetriggerVolume(c.info.retrigger>>4, volumeToGain(c.state.volume))
	c.pending.volume = s3mfile.Some(gainToVolume(gain))
}

func (c *channel) noteDelay(ctx tickContext) {
	if !c.info.hasDelayed || ctx.tick != int(c.info.noteDelay) {
		return
	}
	c.pending = c.info.delayed
	c.info.delayed = channelDelta{}
	c.info.hasDelayed = false
}
