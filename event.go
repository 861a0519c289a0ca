package s3m

import (
	"math"
	"time"
)

// EventKind is an event tag that should be used to differentiate between different event types.
// See Event docs for more info.
type EventKind int

const (
	// EventUnknown is a sentinel value.
	// You should never receive an event of this kind.
	EventUnknown EventKind = iota

	// EventRow is emitted after all commands of a row were dispatched.
	// Order and Row identify the row that was just dispatched.
	EventRow

	// EventNote is emitted for every command that carries a note
	// (including key-offs), right after the command is applied.
	//
	// Use Event.NoteEventData to get the event data.
	EventNote

	// EventStop is emitted once when the sequencer stops,
	// either because of Stop, the end of the song or a playback error.
	EventStop
)

// Event holds a single Sequencer event data.
// This object is an argument to the Sequencer.SetEventHandler function.
//
// Every event has a Time value: the song time when the event happened,
// which is the sum of the durations of all processed ticks.
type Event struct {
	Kind EventKind

	// Channel is the S3M channel index of an EventNote.
	Channel int

	Order int
	Row   int

	Time time.Duration

	value uint64
}

// NoteEventData returns the event data if e.Kind=EventNote.
// The return values are: note, instrument (1-based number), volume.
// If the command has no instrument, 0 is returned.
func (e Event) NoteEventData() (note, instrument int, vol float32) {
	noteBits := e.value & 0xff
	instrumentBits := (e.value >> 8) & 0xff
	volBits := e.value >> 16
	return int(noteBits), int(instrumentBits), math.Float32frombits(uint32(volBits))
}

func makeNoteEvent(note, instrument int, volume float64) uint64 {
	return uint64(note&0xff) | uint64(instrument&0xff)<<8 | uint64(math.Float32bits(float32(volume)))<<16
}
