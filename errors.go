package s3m

import (
	"fmt"

	"github.com/jtarrio/s3m/internal/s3mdb"
)

var (
	// ErrUnknownEffect is reported when a row uses an effect
	// that this player does not implement.
	ErrUnknownEffect = s3mdb.ErrUnknownEffect

	// ErrUnknownSubeffect is like ErrUnknownEffect, but for the S effect family.
	ErrUnknownSubeffect = s3mdb.ErrUnknownSubeffect
)

// PlaybackError stops a sequencer when a row can't be played.
type PlaybackError struct {
	Order   int
	Row     int
	Channel int

	Err error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("order %d, row %d, channel %d: %v", e.Order, e.Row, e.Channel, e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }
