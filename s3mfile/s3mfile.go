package s3mfile

import (
	"fmt"
	"io"
	"sort"
)

// RowsPerPattern is the number of rows every S3M pattern has.
// Rows past the last stored one are implicitly empty.
const RowsPerPattern = 64

// NoteKeyOff is a Command.Note value that stops the channel's voice.
const NoteKeyOff = 254

// Song is a decoded S3M module.
//
// A Song is never modified after Parse returns it,
// so it can be shared between several sequencers.
type Song struct {
	Name string

	// Volume is the global volume in [0, 1].
	Volume float64

	// Speed is the initial number of ticks per row.
	Speed int

	// Tempo is the initial tempo; a tick lasts 2500/Tempo milliseconds.
	Tempo int

	// Channels maps the S3M channel index (0-31) to its descriptor.
	// Disabled channels are not present.
	Channels map[int]Channel

	// Instruments is indexed by (instrument number - 1).
	// Absent instrument records are kept as nil entries.
	Instruments []*Instrument

	// Orders is the play sequence of pattern indexes.
	Orders []int

	Patterns []Pattern
}

// Channel describes an enabled song channel.
type Channel struct {
	Name string

	// Pan is a stereo position in [-1, 1].
	Pan float64
}

// Instrument is an 8-bit mono PCM sample with its playback settings.
type Instrument struct {
	Name string

	// Volume is the default instrument volume in [0, 1].
	Volume float64

	Looped    bool
	LoopBegin int
	LoopEnd   int

	// MiddleCFreq is the sample rate (Hz) that plays the sample at C-4.
	MiddleCFreq int

	// Sample holds normalized amplitudes in [-1, 1].
	Sample []float32
}

// Pattern is a list of rows; see RowsPerPattern.
type Pattern struct {
	Rows []Row
}

// Row holds the commands played at the same time.
type Row struct {
	Commands []Command
}

// Command is a single channel event inside a pattern row.
type Command struct {
	Channel int

	// Note is a semitone index (0 is C-0, 48 is C-4) or NoteKeyOff.
	Note Optional[int]

	// Instrument is a 1-based instrument number; 0 means "no instrument".
	Instrument Optional[int]

	// Volume is an explicit volume in [0, 1].
	Volume Optional[float64]

	Effect Optional[uint8]
	Info   Optional[uint8]
}

// Optional is a value that may be absent.
type Optional[T any] struct {
	value  T
	exists bool
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, exists: true}
}

// Get returns the stored value and whether it exists.
func (o Optional[T]) Get() (T, bool) { return o.value, o.exists }

// IsSet reports whether a value is stored.
func (o Optional[T]) IsSet() bool { return o.exists }

// Value returns the stored value or a zero value if there is none.
func (o Optional[T]) Value() T { return o.value }

// Row returns the pattern row i.
// Indexes past the stored rows yield an empty row.
func (p *Pattern) Row(i int) Row {
	if i < 0 || i >= len(p.Rows) {
		return Row{}
	}
	return p.Rows[i]
}

// Instrument returns the instrument for a 1-based instrument number.
// It returns nil for 0, out of range numbers and absent instruments.
func (s *Song) Instrument(n int) *Instrument {
	if n <= 0 || n > len(s.Instruments) {
		return nil
	}
	return s.Instruments[n-1]
}

// SortedChannels returns the enabled channel indexes in ascending order.
func (s *Song) SortedChannels() []int {
	ids := make([]int, 0, len(s.Channels))
	for id := range s.Channels {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Parse reads S3M file data and decodes it into a song.
//
// A non-nil error is usually a *ParseError object.
func Parse(r io.Reader) (*Song, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes is like Parse, but it decodes an in-memory file image.
//
// The returned song does not reference data.
func ParseBytes(data []byte) (*Song, error) {
	p := &parser{data: data}
	return p.Parse()
}
