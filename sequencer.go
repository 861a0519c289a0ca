package s3m

import (
	"time"

	"github.com/jtarrio/s3m/internal/s3mdb"
	"github.com/jtarrio/s3m/s3mfile"
)

// Sequencer plays a decoded S3M song by driving the voices of a Backend.
//
// The sequencer is not safe for concurrent use: Update, Step and all
// other methods are expected to be called from a single goroutine,
// usually from a frame callback.
type Sequencer struct {
	song    *s3mfile.Song
	backend Backend
	config  SequencerConfig

	channels []channel
	// channelIndex maps an S3M channel index to a channels slice index (or -1).
	channelIndex [32]int

	running bool
	err     error

	order int
	row   int
	tick  int

	speed        int // Ticks per row
	tempo        int
	tickDuration time.Duration

	// Pattern jump/break state for the current row.
	jumped bool
	broken bool

	// played is the backend clock value up to which ticks were processed.
	played  time.Duration
	elapsed time.Duration

	cues         cueRegistry
	eventHandler func(e Event)
}

// SequencerConfig configures a Sequencer.
//
// These settings can't be changed after the sequencer is created,
// with the exception of the speed (see Sequencer.SetSpeed).
type SequencerConfig struct {
	// Speed is the initial number of ticks per row.
	//
	// A zero value will use the song's default speed.
	// If that value is zero as well, a value of 6 will be used.
	Speed uint

	// Tempo sets the tick duration to 2500/Tempo milliseconds.
	//
	// A zero value will use the song's default tempo.
	// If that value is zero as well, a value of 125 will be used.
	Tempo uint

	// Loop makes the song start over after its last order
	// instead of stopping.
	Loop bool
}

// ChannelSnapshot is a read-only view of a channel's committed state.
type ChannelSnapshot struct {
	// Index is the S3M channel index (0-31).
	Index int
	Name  string
	Pan   float64

	// Instrument is the current sample; nil after Stop.
	Instrument *s3mfile.Instrument

	// Playing reports whether the channel has a sounding voice.
	Playing bool

	Period      int
	PeriodDelta int
	Volume      float64

	// Effect describes the current row effect.
	Effect string
}

// NewSequencer creates a stopped sequencer positioned at the start of the song.
func NewSequencer(song *s3mfile.Song, backend Backend, config SequencerConfig) *Sequencer {
	applyConfigDefaults(song, &config)

	s := &Sequencer{
		song:    song,
		backend: backend,
		config:  config,
	}
	for i := range s.channelIndex {
		s.channelIndex[i] = -1
	}
	for _, id := range song.SortedChannels() {
		if id < 0 || id >= len(s.channelIndex) {
			continue
		}
		s.channelIndex[id] = len(s.channels)
		s.channels = append(s.channels, newChannel(id, song.Channels[id]))
	}
	s.rewind()
	return s
}

func applyConfigDefaults(song *s3mfile.Song, config *SequencerConfig) {
	if config.Speed == 0 {
		config.Speed = uint(song.Speed)
		if config.Speed == 0 {
			config.Speed = 6
		}
	}
	if config.Tempo == 0 {
		config.Tempo = uint(song.Tempo)
		if config.Tempo == 0 {
			config.Tempo = 125
		}
	}
}

// Rewind moves the sequencer to the start of the song
// and restores the initial speed. Registered cues are kept.
func (s *Sequencer) Rewind() {
	for i := range s.channels {
		s.channels[i].stop()
	}
	s.rewind()
}

func (s *Sequencer) rewind() {
	s.order = 0
	s.row = 0
	s.speed = int(s.config.Speed)
	s.tempo = int(s.config.Tempo)
	// The first tick must start a new row.
	s.tick = s.speed
	s.jumped = false
	s.broken = false
	s.updateTimings()
}

// SetEventHandler installs an event listener.
//
// f is called synchronously from Step and Update.
func (s *Sequencer) SetEventHandler(f func(e Event)) {
	s.eventHandler = f
}

// Start begins or resumes the playback.
//
// The tick clock is reset to the backend's current time, so the
// first Update after Start processes no backlog.
func (s *Sequencer) Start() {
	if s.running {
		return
	}
	s.err = nil
	s.updateTimings()
	s.played = s.backend.Now()
	s.running = true
}

// Stop halts the playback and silences every channel immediately.
func (s *Sequencer) Stop() {
	wasRunning := s.running
	s.running = false
	for i := range s.channels {
		s.channels[i].stop()
	}
	if wasRunning {
		s.emit(Event{Kind: EventStop, Order: s.order, Row: s.row, Time: s.elapsed})
	}
}

// SetSpeed changes the number of ticks per row.
// Non-positive values are ignored.
func (s *Sequencer) SetSpeed(n int) {
	if n <= 0 {
		return
	}
	s.speed = n
	s.updateTimings()
}

func (s *Sequencer) updateTimings() {
	s.tickDuration = time.Duration(2500 / float64(s.tempo) * float64(time.Millisecond))
}

// WaitForCue returns a channel that is closed when the sequencer
// is about to play the given song position, before any of the
// current row's changes are applied.
//
// The channel is closed exactly once, from inside Step.
func (s *Sequencer) WaitForCue(order, row int) <-chan struct{} {
	done := make(chan struct{})
	s.OnCue(order, row, func(*Sequencer) { close(done) })
	return done
}

// OnCue registers a callback for a song position; see WaitForCue.
//
// The callback runs synchronously and at most once.
// It may call Stop, in which case no more rows are played.
func (s *Sequencer) OnCue(order, row int, f func(s *Sequencer)) {
	s.cues.add(cueKey{order: order, row: row}, f)
}

// PendingCues returns the number of registered callbacks that did not fire yet.
func (s *Sequencer) PendingCues() int { return s.cues.len() }

// Update processes every tick that the backend clock says is due.
//
// It's meant to be called once per frame. A non-nil error is a
// *PlaybackError; the sequencer is stopped when it's returned.
func (s *Sequencer) Update() error {
	now := s.backend.Now()
	for s.running && now > s.played {
		if err := s.Step(); err != nil {
			return err
		}
		s.played += s.tickDuration
	}
	return nil
}

// Step processes exactly one tick, regardless of the backend clock.
//
// It does nothing if the sequencer is stopped.
func (s *Sequencer) Step() error {
	if !s.running {
		return nil
	}

	s.tick++
	if s.tick >= s.speed {
		s.fireCues()
		if !s.running {
			return nil
		}
		if s.row >= s3mfile.RowsPerPattern {
			s.row = 0
			s.order++
		}
		if s.order >= len(s.song.Orders) {
			if !s.config.Loop || len(s.song.Orders) == 0 {
				s.Stop()
				return nil
			}
			s.order = 0
		}
		s.jumped = false
		s.broken = false
		s.tick = 0
		if err := s.dispatchRow(); err != nil {
			s.err = err
			s.Stop()
			return err
		}
		s.row++
	} else {
		s.updateEffects()
	}

	s.elapsed += s.tickDuration
	return nil
}

func (s *Sequencer) fireCues() {
	for _, f := range s.cues.take(cueKey{order: s.order, row: s.row}) {
		f(s)
	}
}

func (s *Sequencer) dispatchRow() error {
	order := s.order
	rowIndex := s.row
	pat := &s.song.Patterns[s.song.Orders[order]]
	row := pat.Row(rowIndex)

	for i := range s.channels {
		s.channels[i].beginRow()
	}

	for i := range row.Commands {
		cmd := &row.Commands[i]
		idx := s.channelIndex[cmd.Channel&0x1f]
		if idx < 0 {
			// Events on disabled channels are not played.
			continue
		}
		ch := &s.channels[idx]
		req, err := ch.doCommand(cmd, s.song, s.tickContext(), s.backend)
		if err != nil {
			return &PlaybackError{Order: order, Row: rowIndex, Channel: cmd.Channel, Err: err}
		}
		s.applyRequest(req)

		if note, ok := cmd.Note.Get(); ok {
			s.emit(Event{
				Kind:    EventNote,
				Channel: cmd.Channel,
				Order:   order,
				Row:     rowIndex,
				Time:    s.elapsed,
				value:   makeNoteEvent(note, cmd.Instrument.Value(), ch.state.volume),
			})
		}
	}

	s.emit(Event{Kind: EventRow, Order: order, Row: rowIndex, Time: s.elapsed})
	return nil
}

func (s *Sequencer) applyRequest(req rowRequest) {
	if speed, ok := req.speed.Get(); ok {
		s.SetSpeed(speed)
	}
	if order, ok := req.jump.Get(); ok {
		s.jumpToOrder(order)
	}
	if row, ok := req.breakToRow.Get(); ok {
		s.breakPattern(row)
	}
}

// jumpToOrder continues the song at the start of the given order.
// Only the first jump or break of a row selects the target.
func (s *Sequencer) jumpToOrder(order int) {
	if !s.jumped && !s.broken {
		s.order = order
		if s.order >= len(s.song.Orders) {
			s.order = 0
		}
		s.row = -1
	}
	s.jumped = true
}

// breakPattern continues the song at the given row of the next order.
// Only the first jump or break of a row selects the target.
func (s *Sequencer) breakPattern(row int) {
	if !s.jumped && !s.broken {
		s.row = row - 1
		if row > 62 {
			s.row = -1
		}
		s.order++
		if s.order >= len(s.song.Orders) {
			s.order = 0
		}
	}
	s.broken = true
}

func (s *Sequencer) updateEffects() {
	ctx := s.tickContext()
	for i := range s.channels {
		s.channels[i].updateEffects(ctx, s.backend)
	}
}

func (s *Sequencer) tickContext() tickContext {
	return tickContext{tick: s.tick, speed: s.speed}
}

func (s *Sequencer) emit(e Event) {
	if s.eventHandler != nil {
		s.eventHandler(e)
	}
}

// IsRunning reports whether the sequencer is playing.
func (s *Sequencer) IsRunning() bool { return s.running }

// Err returns the error that stopped the playback, if any.
func (s *Sequencer) Err() error { return s.err }

// CurrentTick returns the tick number within the current row (0 is the first tick).
func (s *Sequencer) CurrentTick() int { return s.tick }

// Speed returns the number of ticks per row.
func (s *Sequencer) Speed() int { return s.speed }

// Tempo returns the current tempo (see SequencerConfig.Tempo).
func (s *Sequencer) Tempo() int { return s.tempo }

// TickDuration returns the duration of a single tick.
func (s *Sequencer) TickDuration() time.Duration { return s.tickDuration }

// Order returns the current order index.
func (s *Sequencer) Order() int { return s.order }

// Row returns the index of the next row to be played.
func (s *Sequencer) Row() int { return s.row }

// Elapsed returns the song time processed so far.
func (s *Sequencer) Elapsed() time.Duration { return s.elapsed }

// Song returns the song being played.
func (s *Sequencer) Song() *s3mfile.Song { return s.song }

// NumChannels returns the number of enabled channels.
func (s *Sequencer) NumChannels() int { return len(s.channels) }

// Channel returns the state of the i-th enabled channel,
// in ascending S3M channel index order.
func (s *Sequencer) Channel(i int) ChannelSnapshot {
	ch := &s.channels[i]
	return ChannelSnapshot{
		Index:       ch.id,
		Name:        ch.name,
		Pan:         ch.pan,
		Instrument:  ch.state.sample,
		Playing:     ch.voice != nil,
		Period:      ch.state.period,
		PeriodDelta: ch.state.periodDelta,
		Volume:      ch.state.volume,
		Effect:      effectName(ch.effect),
	}
}

func effectName(e s3mdb.Effect) string {
	if e.IsEmpty() {
		return ""
	}
	return e.Op.String()
}
