package s3mdb

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEffect reports an effect code that is not implemented.
	ErrUnknownEffect = errors.New("unknown effect")

	// ErrUnknownSubeffect reports an unimplemented S effect.
	ErrUnknownSubeffect = errors.New("unknown subeffect")
)

// Effect is a decoded pattern effect with its parameter byte.
type Effect struct {
	Op  EffectOp
	Arg uint8
}

// EffectOp identifies one of the supported effects.
type EffectOp int

const (
	EffectNone EffectOp = iota

	// Encoding: effect=1 (A)
	// Arg: ticks per row
	EffectSetSpeed

	// Encoding: effect=2 (B)
	// Arg: order index
	EffectJump

	// Encoding: effect=3 (C)
	// Arg: row, two decimal digits packed as nibbles
	EffectBreak

	// Encoding: effect=4 (D)
	// Arg: up/down nibbles; 0xF in the other nibble means "fine"
	EffectVolumeSlide

	// Encoding: effect=5 (E)
	// Arg: slide speed; 0xEx is extra fine, 0xFx is fine
	EffectPitchDown

	// Encoding: effect=6 (F)
	// Arg: slide speed; 0xEx is extra fine, 0xFx is fine
	EffectPitchUp

	// Encoding: effect=7 (G)
	// Arg: slide speed
	EffectNotePortamento

	// Encoding: effect=8 (H)
	// Arg: speed (high nibble) and depth (low nibble)
	EffectVibrato

	// Encoding: effect=10 (J)
	// Arg: two semitone offsets
	EffectArpeggio

	// Encoding: effect=11 (K)
	// Arg: volume slide, as in EffectVolumeSlide
	EffectVibratoVolumeSlide

	// Encoding: effect=15 (O)
	// Arg: sample offset in 256-frame units
	EffectSampleOffset

	// Encoding: effect=17 (Q)
	// Arg: volume change code (high nibble) and interval (low nibble)
	EffectRetrigger

	// Encoding: effect=19 (S), subeffect=0xD
	// Arg: delay in ticks (low nibble)
	EffectNoteDelay
)

var effectNames = [...]string{
	EffectNone:               "none",
	EffectSetSpeed:           "set speed",
	EffectJump:               "position jump",
	EffectBreak:              "pattern break",
	EffectVolumeSlide:        "volume slide",
	EffectPitchDown:          "pitch slide down",
	EffectPitchUp:            "pitch slide up",
	EffectNotePortamento:     "note portamento",
	EffectVibrato:            "vibrato",
	EffectArpeggio:           "arpeggio",
	EffectVibratoVolumeSlide: "vibrato with volume slide",
	EffectSampleOffset:       "sample offset",
	EffectRetrigger:          "retrigger",
	EffectNoteDelay:          "note delay",
}

func (op EffectOp) String() string {
	if op < 0 || int(op) >= len(effectNames) {
		return fmt.Sprintf("EffectOp(%d)", int(op))
	}
	return effectNames[op]
}

// ConvertEffect maps an S3M effect code and its parameter to an Effect.
//
// Code 0 means "no effect".
// Codes that this player does not implement produce ErrUnknownEffect
// or ErrUnknownSubeffect.
func ConvertEffect(code, info uint8) (Effect, error) {
	e := Effect{Arg: info}

	switch code {
	case 0:
		e.Op = EffectNone
	case 1:
		e.Op = EffectSetSpeed
	case 2:
		e.Op = EffectJump
	case 3:
		e.Op = EffectBreak
	case 4:
		e.Op = EffectVolumeSlide
	case 5:
		e.Op = EffectPitchDown
	case 6:
		e.Op = EffectPitchUp
	case 7:
		e.Op = EffectNotePortamento
	case 8:
		e.Op = EffectVibrato
	case 10:
		e.Op = EffectArpeggio
	case 11:
		e.Op = EffectVibratoVolumeSlide
	case 15:
		e.Op = EffectSampleOffset
	case 17:
		e.Op = EffectRetrigger
	case 19:
		switch sub := info >> 4; sub {
		case 0xD:
			e.Op = EffectNoteDelay
			e.Arg = info & 0x0f
		default:
			return Effect{}, fmt.Errorf("%w: S%X", ErrUnknownSubeffect, sub)
		}
	default:
		return Effect{}, fmt.Errorf("%w: %s (%d)", ErrUnknownEffect, EffectLetter(code), code)
	}

	return e, nil
}

// EffectLetter returns the tracker letter for an effect code (1 is "A").
func EffectLetter(code uint8) string {
	if code >= 1 && code <= 26 {
		return string(rune('A' + code - 1))
	}
	return "?"
}

// IsEmpty reports whether e carries no effect.
func (e Effect) IsEmpty() bool { return e.Op == EffectNone }

// Hi returns the high nibble of the argument.
func (e Effect) Hi() uint8 { return e.Arg >> 4 }

// Lo returns the low nibble of the argument.
func (e Effect) Lo() uint8 { return e.Arg & 0x0f }

// BreakRow decodes a pattern break argument.
//
// The nibbles are read as decimal digits, without validating them:
// 0x1F decodes to 25.
func (e Effect) BreakRow() int {
	return int(e.Hi())*10 + int(e.Lo())
}
