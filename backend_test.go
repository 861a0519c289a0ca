package s3m_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jtarrio/s3m"
	"github.com/jtarrio/s3m/internal/s3mtest"
	"github.com/jtarrio/s3m/s3mfile"
)

type fakeBackend struct {
	now    time.Duration
	voices []*fakeVoice
}

func (b *fakeBackend) Now() time.Duration { return b.now }

func (b *fakeBackend) NewVoice(inst *s3mfile.Instrument) s3m.Voice {
	v := &fakeVoice{inst: inst}
	b.voices = append(b.voices, v)
	return v
}

// active returns the voices that were started and not stopped yet.
func (b *fakeBackend) active() []*fakeVoice {
	var list []*fakeVoice
	for _, v := range b.voices {
		if v.started && !v.stopped {
			list = append(list, v)
		}
	}
	return list
}

func (b *fakeBackend) last() *fakeVoice {
	if len(b.voices) == 0 {
		return nil
	}
	return b.voices[len(b.voices)-1]
}

type fakeVoice struct {
	inst *s3mfile.Instrument

	rate   float64
	gain   float64
	pan    float64
	offset float64

	started bool
	stopped bool

	rateCalls int
	gainCalls int
}

func (v *fakeVoice) SetRate(rate float64) {
	v.rate = rate
	v.rateCalls++
}

func (v *fakeVoice) SetGain(gain float64) {
	v.gain = gain
	v.gainCalls++
}

func (v *fakeVoice) SetPan(pan float64) { v.pan = pan }

func (v *fakeVoice) Start(offset float64) {
	v.offset = offset
	v.started = true
}

func (v *fakeVoice) Stop() { v.stopped = true }

var c4 = s3mtest.NoteByte(4, 0)

// testModule returns a 4-channel module with one instrument and
// numOrders orders, each one playing its own pattern.
func testModule(numOrders int) *s3mtest.Module {
	m := s3mtest.NewModule(4)
	data := make([]byte, 4096)
	for i := range data {
		data[i] = uint8(i)
	}
	m.Instruments = []s3mtest.Instrument{s3mtest.NewInstrument("square", data)}
	for i := 0; i < numOrders; i++ {
		m.Orders = append(m.Orders, uint8(i))
		m.Patterns = append(m.Patterns, s3mtest.Pattern{})
	}
	return m
}

func newTestSequencer(t *testing.T, m *s3mtest.Module, config s3m.SequencerConfig) (*s3m.Sequencer, *fakeBackend) {
	t.Helper()
	song, err := s3mfile.ParseBytes(m.Bytes())
	require.NoError(t, err)
	b := &fakeBackend{}
	seq := s3m.NewSequencer(song, b, config)
	seq.Start()
	return seq, b
}

func stepN(t *testing.T, seq *s3m.Sequencer, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, seq.Step())
	}
}
