// Package s3mtest assembles synthetic S3M file images for tests.
package s3mtest

import (
	"encoding/binary"
)

// Module describes an S3M file to be assembled with Bytes.
//
// The zero value is not a valid file; start from NewModule.
type Module struct {
	Name string

	// Header fields. They are written as is, so tests can put
	// invalid values in them.
	EOFMarker     uint8
	FileType      uint8
	FormatVersion uint16
	Magic         string

	GlobalVolume uint8
	Speed        uint8
	Tempo        uint8
	MasterVolume uint8
	DefaultPan   uint8

	Channels [32]uint8

	// Orders is the raw order list, including 254/255 markers.
	Orders []uint8

	Instruments []Instrument
	Patterns    []Pattern

	// PanTable is written after the parapointers.
	PanTable [32]uint8
}

type Instrument struct {
	Type    uint8
	Name    string
	Magic   string
	Packed  uint8
	Flags   uint8
	Volume  uint8
	C2Spd   uint16
	LoopBeg uint16
	LoopEnd uint16

	// Data is the raw unsigned 8-bit sample.
	Data []byte
}

type Pattern struct {
	Rows [][]Event

	// Raw replaces the encoded rows when it's not nil.
	// The length prefix is computed as len(Raw)+2.
	Raw []byte

	// Empty makes the pattern parapointer 0.
	Empty bool
}

type Event struct {
	Channel uint8

	HasNote    bool
	Note       uint8
	Instrument uint8

	HasVolume bool
	Volume    uint8

	HasEffect bool
	Effect    uint8
	Info      uint8
}

// NewModule returns a valid stereo module with the given number of
// enabled channels (left, right, left, ...), no orders and no patterns.
func NewModule(numChannels int) *Module {
	m := &Module{
		Name:          "test",
		EOFMarker:     0x1a,
		FileType:      16,
		FormatVersion: 2,
		Magic:         "SCRM",
		GlobalVolume:  64,
		Speed:         6,
		Tempo:         125,
		MasterVolume:  0x80 | 48,
	}
	for i := range m.Channels {
		m.Channels[i] = 255
	}
	for i := 0; i < numChannels; i++ {
		if i%2 == 0 {
			m.Channels[i] = uint8(i / 2)
		} else {
			m.Channels[i] = uint8(8 + i/2)
		}
	}
	return m
}

// NewInstrument returns a looped-off PCM instrument with the given data.
func NewInstrument(name string, data []byte) Instrument {
	return Instrument{
		Type:   1,
		Name:   name,
		Magic:  "SCRS",
		Volume: 64,
		C2Spd:  8363,
		Data:   data,
	}
}

// NoteByte encodes an octave/semitone pair the way S3M patterns store notes.
func NoteByte(octave, semitone int) uint8 {
	return uint8(octave<<4 | semitone)
}

// Note makes an event that plays a note with an instrument.
func Note(channel, note, instrument uint8) Event {
	return Event{Channel: channel, HasNote: true, Note: note, Instrument: instrument}
}

// Effect makes an event that only carries an effect.
func Effect(channel, effect, info uint8) Event {
	return Event{Channel: channel, HasEffect: true, Effect: effect, Info: info}
}

func (e Event) WithVolume(v uint8) Event {
	e.HasVolume = true
	e.Volume = v
	return e
}

func (e Event) WithEffect(effect, info uint8) Event {
	e.HasEffect = true
	e.Effect = effect
	e.Info = info
	return e
}

// Encode returns the packed pattern body without its length prefix.
func (p *Pattern) Encode() []byte {
	if p.Raw != nil {
		return p.Raw
	}
	var out []byte
	for _, row := range p.Rows {
		for _, e := range row {
			header := e.Channel & 0x1f
			if e.HasNote {
				header |= 0x20
			}
			if e.HasVolume {
				header |= 0x40
			}
			if e.HasEffect {
				header |= 0x80
			}
			out = append(out, header)
			if e.HasNote {
				out = append(out, e.Note, e.Instrument)
			}
			if e.HasVolume {
				out = append(out, e.Volume)
			}
			if e.HasEffect {
				out = append(out, e.Effect, e.Info)
			}
		}
		out = append(out, 0)
	}
	return out
}

// Bytes assembles the file image.
func (m *Module) Bytes() []byte {
	out := make([]byte, 0x60)
	copy(out[0:28], m.Name)
	out[0x1c] = m.EOFMarker
	out[0x1d] = m.FileType
	binary.LittleEndian.PutUint16(out[0x20:], uint16(len(m.Orders)))
	binary.LittleEndian.PutUint16(out[0x22:], uint16(len(m.Instruments)))
	binary.LittleEndian.PutUint16(out[0x24:], uint16(len(m.Patterns)))
	binary.LittleEndian.PutUint16(out[0x2a:], m.FormatVersion)
	copy(out[0x2c:0x30], m.Magic)
	out[0x30] = m.GlobalVolume
	out[0x31] = m.Speed
	out[0x32] = m.Tempo
	out[0x33] = m.MasterVolume
	out[0x34] = m.DefaultPan
	copy(out[0x40:0x60], m.Channels[:])

	out = append(out, m.Orders...)
	instTable := len(out)
	out = append(out, make([]byte, 2*len(m.Instruments))...)
	patTable := len(out)
	out = append(out, make([]byte, 2*len(m.Patterns))...)
	out = append(out, m.PanTable[:]...)

	instOffsets := make([]int, len(m.Instruments))
	for i := range m.Instruments {
		out = align16(out)
		instOffsets[i] = len(out)
		binary.LittleEndian.PutUint16(out[instTable+i*2:], uint16(len(out)/16))
		out = append(out, make([]byte, 0x50)...)
	}

	for i, inst := range m.Instruments {
		out = align16(out)
		dataPtr := len(out) / 16
		out = append(out, inst.Data...)

		rec := out[instOffsets[i] : instOffsets[i]+0x50]
		rec[0] = inst.Type
		copy(rec[0x01:0x0d], inst.Name)
		rec[0x0d] = uint8(dataPtr >> 16)
		binary.LittleEndian.PutUint16(rec[0x0e:], uint16(dataPtr))
		binary.LittleEndian.PutUint32(rec[0x10:], uint32(len(inst.Data)))
		binary.LittleEndian.PutUint32(rec[0x14:], uint32(inst.LoopBeg))
		binary.LittleEndian.PutUint32(rec[0x18:], uint32(inst.LoopEnd))
		rec[0x1c] = inst.Volume
		rec[0x1e] = inst.Packed
		rec[0x1f] = inst.Flags
		binary.LittleEndian.PutUint32(rec[0x20:], uint32(inst.C2Spd))
		copy(rec[0x30:0x4c], inst.Name)
		copy(rec[0x4c:0x50], inst.Magic)
	}

	for i := range m.Patterns {
		pat := &m.Patterns[i]
		if pat.Empty {
			continue
		}
		out = align16(out)
		binary.LittleEndian.PutUint16(out[patTable+i*2:], uint16(len(out)/16))
		body := pat.Encode()
		var length [2]byte
		binary.LittleEndian.PutUint16(length[:], uint16(len(body)+2))
		out = append(out, length[:]...)
		out = append(out, body...)
	}

	return out
}

func align16(b []byte) []byte {
	for len(b)%16 != 0 {
		b = append(b, 0)
	}
	return b
}
