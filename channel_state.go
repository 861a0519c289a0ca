package s3m

import (
	"github.com/jtarrio/s3m/internal/s3mdb"
	"github.com/jtarrio/s3m/s3mfile"
)

// channelState is what a channel is currently playing.
type channelState struct {
	sample *s3mfile.Instrument
	period int
	volume float64

	// offset is the start offset of the last started sample, in seconds.
	offset float64

	vibratoPos int

	// periodDelta is added to period by vibrato and arpeggio.
	periodDelta int
}

func initialChannelState() channelState {
	return channelState{period: s3mdb.ReferencePeriod}
}

// channelDelta holds the changes computed during a tick.
// They are merged into the channelState once per tick.
type channelDelta struct {
	// sample is non-nil when a sample must be (re)started.
	sample *s3mfile.Instrument

	// A zero period stops the voice.
	period s3mfile.Optional[int]

	volume     s3mfile.Optional[float64]
	offset     s3mfile.Optional[float64]
	vibratoPos s3mfile.Optional[int]

	// periodDelta is always present; a tick without vibrato
	// or arpeggio resets it.
	periodDelta int
}

func (st channelState) merge(d channelDelta) channelState {
	if d.sample != nil {
		st.sample = d.sample
	}
	if v, ok := d.period.Get(); ok {
		st.period = v
	}
	if v, ok := d.volume.Get(); ok {
		st.volume = v
	}
	if v, ok := d.offset.Get(); ok {
		st.offset = v
	}
	if v, ok := d.vibratoPos.Get(); ok {
		st.vibratoPos = v
	}
	st.periodDelta = d.periodDelta
	return st
}

// effectInfo holds the effect parameters that persist
// until a command sets a new non-zero value.
type effectInfo struct {
	volumeSlide      uint8
	portamento       uint8
	portamentoTarget int
	vibrato          uint8
	arpeggio         uint8
	retrigger        uint8

	noteDelay  uint8
	delayed    channelDelta
	hasDelayed bool
}

// tickContext is the sequencer state visible to the effect processor.
type tickContext struct {
	tick  int
	speed int
}

// rowRequest carries the song flow changes requested by a command.
type rowRequest struct {
	speed      s3mfile.Optional[int]
	jump       s3mfile.Optional[int]
	breakToRow s3mfile.Optional[int]
}
