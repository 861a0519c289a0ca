package s3m_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtarrio/s3m"
	"github.com/jtarrio/s3m/internal/s3mtest"
)

type position struct {
	order int
	row   int
}

func recordRows(seq *s3m.Sequencer) *[]position {
	var rows []position
	seq.SetEventHandler(func(e s3m.Event) {
		if e.Kind == s3m.EventRow {
			rows = append(rows, position{e.Order, e.Row})
		}
	})
	return &rows
}

func TestSequencerDefaults(t *testing.T) {
	m := testModule(1)
	m.Speed = 3
	m.Tempo = 150
	seq, _ := newTestSequencer(t, m, s3m.SequencerConfig{})
	assert.Equal(t, 3, seq.Speed())
	assert.Equal(t, 150, seq.Tempo())
	assert.Equal(t, 4, seq.NumChannels())

	m.Speed = 0
	m.Tempo = 0
	seq, _ = newTestSequencer(t, m, s3m.SequencerConfig{})
	assert.Equal(t, 6, seq.Speed())
	assert.Equal(t, 125, seq.Tempo())
	assert.Equal(t, 20*time.Millisecond, seq.TickDuration())

	seq, _ = newTestSequencer(t, m, s3m.SequencerConfig{Speed: 4, Tempo: 250})
	assert.Equal(t, 4, seq.Speed())
	assert.Equal(t, 10*time.Millisecond, seq.TickDuration())
}

func TestSequencerUpdatePumpsElapsedTicks(t *testing.T) {
	seq, b := newTestSequencer(t, testModule(1), s3m.SequencerConfig{Speed: 6, Tempo: 125})

	require.NoError(t, seq.Update())
	assert.Equal(t, time.Duration(0), seq.Elapsed(), "no time has passed yet")

	b.now = 50 * time.Millisecond
	require.NoError(t, seq.Update())
	assert.Equal(t, 60*time.Millisecond, seq.Elapsed())
	assert.Equal(t, 2, seq.CurrentTick())
	assert.Equal(t, 1, seq.Row())

	b.now = 60 * time.Millisecond
	require.NoError(t, seq.Update())
	assert.Equal(t, 60*time.Millisecond, seq.Elapsed())

	b.now = 61 * time.Millisecond
	require.NoError(t, seq.Update())
	assert.Equal(t, 80*time.Millisecond, seq.Elapsed())
}

func TestSequencerStartSkipsBacklog(t *testing.T) {
	seq, b := newTestSequencer(t, testModule(1), s3m.SequencerConfig{})
	seq.Stop()
	b.now = 10 * time.Second
	require.NoError(t, seq.Update())
	assert.Equal(t, time.Duration(0), seq.Elapsed())

	seq.Start()
	require.NoError(t, seq.Update())
	assert.Equal(t, time.Duration(0), seq.Elapsed())
}

func TestSequencerRowsAndOrders(t *testing.T) {
	m := testModule(2)
	seq, _ := newTestSequencer(t, m, s3m.SequencerConfig{Speed: 2})
	rows := recordRows(seq)

	stepN(t, seq, 2*64*2)
	require.Len(t, *rows, 128)
	assert.Equal(t, position{0, 0}, (*rows)[0])
	assert.Equal(t, position{0, 63}, (*rows)[63])
	assert.Equal(t, position{1, 0}, (*rows)[64])
	assert.Equal(t, position{1, 63}, (*rows)[127])
	assert.True(t, seq.IsRunning())

	// The next row is past the end of the song.
	require.NoError(t, seq.Step())
	assert.False(t, seq.IsRunning())
	assert.NoError(t, seq.Err())
}

func TestSequencerLoop(t *testing.T) {
	seq, _ := newTestSequencer(t, testModule(1), s3m.SequencerConfig{Speed: 1, Loop: true})
	rows := recordRows(seq)

	stepN(t, seq, 65)
	assert.True(t, seq.IsRunning())
	assert.Equal(t, position{0, 0}, (*rows)[64])
}

func TestSequencerStopEvent(t *testing.T) {
	seq, _ := newTestSequencer(t, testModule(1), s3m.SequencerConfig{Speed: 1})
	var kinds []s3m.EventKind
	seq.SetEventHandler(func(e s3m.Event) {
		if e.Kind != s3m.EventRow {
			kinds = append(kinds, e.Kind)
		}
	})
	stepN(t, seq, 65)
	seq.Stop()
	assert.Equal(t, []s3m.EventKind{s3m.EventStop}, kinds)
}

func TestSequencerSetSpeed(t *testing.T) {
	m := testModule(1)
	m.Patterns[0].Rows = [][]s3mtest.Event{
		{s3mtest.Effect(0, 1, 3)},
		{s3mtest.Effect(0, 1, 0)},
	}
	seq, _ := newTestSequencer(t, m, s3m.SequencerConfig{Speed: 6})

	require.NoError(t, seq.Step())
	assert.Equal(t, 3, seq.Speed())

	// Rows now last three ticks.
	stepN(t, seq, 2)
	assert.Equal(t, 1, seq.Row())
	require.NoError(t, seq.Step())
	assert.Equal(t, 2, seq.Row())
	assert.Equal(t, 3, seq.Speed(), "a zero speed is ignored")

	seq.SetSpeed(-1)
	assert.Equal(t, 3, seq.Speed())
	seq.SetSpeed(8)
	assert.Equal(t, 8, seq.Speed())
}

func TestSequencerJumpAndBreakPriority(t *testing.T) {
	const (
		jump  = 2 // B
		brk   = 3 // C
		order = 2
		row   = 0x15 // Row 15
	)
	tests := []struct {
		name  string
		first s3mtest.Event
		other s3mtest.Event
		want  position
	}{
		{
			name:  "jump first",
			first: s3mtest.Effect(0, jump, order),
			other: s3mtest.Effect(1, brk, row),
			want:  position{2, 0},
		},
		{
			name:  "break first",
			first: s3mtest.Effect(0, brk, row),
			other: s3mtest.Effect(1, jump, order),
			want:  position{1, 15},
		},
		{
			name:  "stream order wins over channel index",
			first: s3mtest.Effect(1, brk, row),
			other: s3mtest.Effect(0, jump, order),
			want:  position{1, 15},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m := testModule(4)
			m.Patterns[0].Rows = [][]s3mtest.Event{{test.first, test.other}}
			seq, _ := newTestSequencer(t, m, s3m.SequencerConfig{Speed: 1})
			rows := recordRows(seq)

			stepN(t, seq, 2)
			require.Len(t, *rows, 2)
			assert.Equal(t, position{0, 0}, (*rows)[0])
			assert.Equal(t, test.want, (*rows)[1])
		})
	}
}

func TestSequencerJumpAndBreakTargets(t *testing.T) {
	tests := []struct {
		name  string
		event s3mtest.Event
		want  position
	}{
		{"jump out of range", s3mtest.Effect(0, 2, 10), position{0, 0}},
		{"break to row 63", s3mtest.Effect(0, 3, 0x63), position{1, 0}},
		{"break to row 62", s3mtest.Effect(0, 3, 0x62), position{1, 62}},
		{"break without digits", s3mtest.Effect(0, 3, 0x1f), position{1, 25}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m := testModule(2)
			m.Patterns[0].Rows = [][]s3mtest.Event{{test.event}}
			seq, _ := newTestSequencer(t, m, s3m.SequencerConfig{Speed: 1})
			rows := recordRows(seq)

			stepN(t, seq, 2)
			require.Len(t, *rows, 2)
			assert.Equal(t, test.want, (*rows)[1])
		})
	}
}

func TestSequencerBreakOnLastOrderWraps(t *testing.T) {
	m := testModule(1)
	m.Patterns[0].Rows = [][]s3mtest.Event{{s3mtest.Effect(0, 3, 0x04)}}
	seq, _ := newTestSequencer(t, m, s3m.SequencerConfig{Speed: 1})
	rows := recordRows(seq)

	stepN(t, seq, 2)
	assert.Equal(t, position{0, 4}, (*rows)[1])
}

func TestSequencerWaitForCue(t *testing.T) {
	seq, _ := newTestSequencer(t, testModule(3), s3m.SequencerConfig{Speed: 1})

	first := seq.WaitForCue(2, 10)
	second := seq.WaitForCue(2, 10)
	var calls []position
	seq.OnCue(2, 10, func(s *s3m.Sequencer) {
		calls = append(calls, position{s.Order(), s.Row()})
	})
	assert.Equal(t, 3, seq.PendingCues())

	closed := func(ch <-chan struct{}) bool {
		select {
		case <-ch:
			return true
		default:
			return false
		}
	}

	// Rows 0-63 of orders 0 and 1, then rows 0-9 of order 2.
	stepN(t, seq, 64*2+10)
	assert.False(t, closed(first))
	assert.False(t, closed(second))
	assert.Empty(t, calls)

	require.NoError(t, seq.Step())
	assert.True(t, closed(first))
	assert.True(t, closed(second))
	require.Len(t, calls, 1)
	assert.Equal(t, position{2, 10}, calls[0])
	assert.Equal(t, 0, seq.PendingCues())

	stepN(t, seq, 40)
	assert.Len(t, calls, 1)
}

func TestSequencerCueStopsPlayback(t *testing.T) {
	m := testModule(2)
	m.Patterns[0].Rows = [][]s3mtest.Event{{
		s3mtest.Note(0, c4, 1),
		s3mtest.Note(1, c4, 1),
	}}
	seq, b := newTestSequencer(t, m, s3m.SequencerConfig{Speed: 1})
	rows := recordRows(seq)
	seq.OnCue(0, 5, func(s *s3m.Sequencer) { s.Stop() })

	stepN(t, seq, 10)
	assert.False(t, seq.IsRunning())
	assert.Len(t, *rows, 5)
	assert.Empty(t, b.active())
	assert.Equal(t, 5, seq.Row())
}

func TestSequencerStopMidRow(t *testing.T) {
	m := testModule(1)
	m.Patterns[0].Rows = [][]s3mtest.Event{{
		s3mtest.Note(0, c4, 1),
		s3mtest.Note(1, c4, 1).WithEffect(4, 0x01),
		s3mtest.Note(2, c4, 1).WithEffect(8, 0x44),
	}}
	seq, b := newTestSequencer(t, m, s3m.SequencerConfig{Speed: 6})

	stepN(t, seq, 3)
	require.Len(t, b.active(), 3)
	tick := seq.CurrentTick()
	elapsed := seq.Elapsed()

	seq.Stop()
	assert.Empty(t, b.active())
	for i := 0; i < seq.NumChannels(); i++ {
		ch := seq.Channel(i)
		assert.Nil(t, ch.Instrument, "channel %d", ch.Index)
		assert.False(t, ch.Playing, "channel %d", ch.Index)
	}

	b.now = time.Second
	require.NoError(t, seq.Update())
	require.NoError(t, seq.Step())
	assert.Equal(t, tick, seq.CurrentTick())
	assert.Equal(t, elapsed, seq.Elapsed())
	assert.Len(t, b.voices, 3)
}

func TestSequencerUnknownEffect(t *testing.T) {
	tests := []struct {
		name   string
		effect uint8
		info   uint8
		want   error
	}{
		{"effect", 20, 0x80, s3m.ErrUnknownEffect},
		{"subeffect", 19, 0xb2, s3m.ErrUnknownSubeffect},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m := testModule(1)
			m.Patterns[0].Rows = [][]s3mtest.Event{
				{s3mtest.Note(0, c4, 1)},
				{s3mtest.Effect(3, test.effect, test.info)},
			}
			seq, b := newTestSequencer(t, m, s3m.SequencerConfig{Speed: 1})

			require.NoError(t, seq.Step())
			err := seq.Step()
			require.Error(t, err)
			assert.ErrorIs(t, err, test.want)

			var playbackErr *s3m.PlaybackError
			require.True(t, errors.As(err, &playbackErr))
			assert.Equal(t, 0, playbackErr.Order)
			assert.Equal(t, 1, playbackErr.Row)
			assert.Equal(t, 3, playbackErr.Channel)

			assert.False(t, seq.IsRunning())
			assert.Equal(t, err, seq.Err())
			assert.Empty(t, b.active())
		})
	}
}

func TestSequencerUpdateReturnsPlaybackError(t *testing.T) {
	m := testModule(1)
	m.Patterns[0].Rows = [][]s3mtest.Event{{s3mtest.Effect(0, 26, 0)}}
	seq, b := newTestSequencer(t, m, s3m.SequencerConfig{})

	b.now = time.Second
	err := seq.Update()
	assert.ErrorIs(t, err, s3m.ErrUnknownEffect)
	assert.False(t, seq.IsRunning())

	seq.Start()
	assert.NoError(t, seq.Err())
}

func TestSequencerNoteEvents(t *testing.T) {
	m := testModule(1)
	m.Patterns[0].Rows = [][]s3mtest.Event{{
		s3mtest.Note(1, c4, 1).WithVolume(32),
		s3mtest.Note(2, 254, 0),
	}}
	seq, _ := newTestSequencer(t, m, s3m.SequencerConfig{})
	var notes []s3m.Event
	seq.SetEventHandler(func(e s3m.Event) {
		if e.Kind == s3m.EventNote {
			notes = append(notes, e)
		}
	})

	require.NoError(t, seq.Step())
	require.Len(t, notes, 2)

	assert.Equal(t, 1, notes[0].Channel)
	note, inst, vol := notes[0].NoteEventData()
	assert.Equal(t, 48, note)
	assert.Equal(t, 1, inst)
	assert.Equal(t, float32(0.5), vol)

	assert.Equal(t, 2, notes[1].Channel)
	note, inst, _ = notes[1].NoteEventData()
	assert.Equal(t, 254, note)
	assert.Equal(t, 0, inst)
}

func TestSequencerRewind(t *testing.T) {
	m := testModule(1)
	m.Patterns[0].Rows = [][]s3mtest.Event{{s3mtest.Note(0, c4, 1).WithEffect(1, 2)}}
	seq, b := newTestSequencer(t, m, s3m.SequencerConfig{Speed: 4})
	stepN(t, seq, 5)
	require.Equal(t, 2, seq.Speed())

	seq.Rewind()
	assert.Equal(t, 0, seq.Order())
	assert.Equal(t, 0, seq.Row())
	assert.Equal(t, 4, seq.Speed())
	assert.Empty(t, b.active())
	assert.True(t, seq.IsRunning())
}
