package s3mfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	headerSize = 0x60

	orderSkip = 254
	orderEnd  = 255

	noteEmpty = 255

	defaultPanSentinel = 252

	leftPan  = -0.6
	rightPan = 0.6
)

type parser struct {
	// Data holds the S3M file input data bytes.
	data []byte

	// Offset is the position of the last read, used for error reporting.
	offset int

	// Song holds the results of S3M parsing.
	song Song

	numOrders      int
	numInstruments int
	numPatterns    int
	masterVolume   uint8
	defaultPan     uint8

	// These fields below are needed for better error reporting.
	stage      string
	stageIndex int
}

func (p *parser) Parse() (song *Song, err error) {
	defer func() {
		rv := recover()
		if rv != nil {
			if panicErr, ok := rv.(*ParseError); ok {
				song = nil
				err = panicErr
			} else {
				panic(rv)
			}
		}
	}()

	p.parseSong()

	return &p.song, nil
}

func (p *parser) startStage(name string) {
	p.stage = name
	p.stageIndex = -1
}

func (p *parser) formatStage() string {
	var b strings.Builder
	b.Grow(len(p.stage) + 8)
	b.WriteString(p.stage)
	if p.stageIndex >= 0 {
		fmt.Fprintf(&b, "[%d]", p.stageIndex)
	}
	return b.String()
}

func (p *parser) errorf(kind error, format string, args ...any) *ParseError {
	text := fmt.Sprintf(format, args...)
	tag := p.formatStage()
	if tag != "" {
		text = tag + ": " + text
	}
	return &ParseError{
		Kind:    kind,
		Message: text,
		Offset:  p.offset,
	}
}

// slice returns data[offset:offset+l] or panics with ErrMalformed
// if the requested range is outside of the file.
func (p *parser) slice(offset, l int, what string) []byte {
	p.offset = offset
	if offset < 0 || l < 0 || offset > len(p.data) || len(p.data)-offset < l {
		panic(p.errorf(ErrMalformed, "unexpected EOF while reading %s", what))
	}
	return p.data[offset : offset+l]
}

func (p *parser) byteAt(offset int, what string) uint8 {
	return p.slice(offset, 1, what)[0]
}

func (p *parser) wordAt(offset int, what string) int {
	return int(binary.LittleEndian.Uint16(p.slice(offset, 2, what)))
}

func (p *parser) stringAt(offset, l int, what string) string {
	b := p.slice(offset, l, what)
	if i := bytes.IndexByte(b, 0); i != -1 {
		b = b[:i]
	}
	return string(b)
}

func (p *parser) parseSong() {
	p.startStage("header")
	p.parseHeader()

	p.startStage("orders")
	p.parseOrders()

	p.startStage("channels")
	p.parseChannels()

	p.startStage("instrument")
	p.song.Instruments = make([]*Instrument, p.numInstruments)
	for i := range p.song.Instruments {
		p.stageIndex = i
		ptr := p.wordAt(p.instrumentPointerTable()+i*2, "instrument parapointer")
		p.song.Instruments[i] = p.parseInstrument(ptr * 16)
	}

	p.startStage("pattern")
	p.song.Patterns = make([]Pattern, p.numPatterns)
	for i := range p.song.Patterns {
		p.stageIndex = i
		ptr := p.wordAt(p.patternPointerTable()+i*2, "pattern parapointer")
		p.song.Patterns[i] = p.parsePattern(ptr * 16)
	}

	p.startStage("orders")
	for i, order := range p.song.Orders {
		p.stageIndex = i
		if order >= p.numPatterns {
			panic(p.errorf(ErrMalformed, "order refers to pattern %d, but there are only %d", order, p.numPatterns))
		}
	}

	p.startStage("panning")
	p.applyPanning()
}

func (p *parser) parseHeader() {
	if b := p.byteAt(0x1c, "EOF marker"); b != 0x1a {
		panic(p.errorf(ErrUnsupportedFormat, "expected 0x1a, found %#02x", b))
	}
	if t := p.byteAt(0x1d, "file type"); t != 16 {
		panic(p.errorf(ErrUnsupportedFormat, "expected module file type 16, found %d", t))
	}
	if v := p.wordAt(0x2a, "file format version"); v != 2 {
		panic(p.errorf(ErrUnsupportedFormat, "expected format version 2, found %d", v))
	}
	if magic := p.stringAt(0x2c, 4, "magic"); magic != "SCRM" {
		panic(p.errorf(ErrUnsupportedFormat, "unexpected magic: %q", magic))
	}

	p.song.Name = p.stringAt(0, 28, "song name")

	p.numOrders = p.wordAt(0x20, "number of orders")
	p.numInstruments = p.wordAt(0x22, "number of instruments")
	p.numPatterns = p.wordAt(0x24, "number of patterns")

	p.song.Volume = float64(p.byteAt(0x30, "global volume")) / 64
	p.song.Speed = int(p.byteAt(0x31, "initial speed"))
	p.song.Tempo = int(p.byteAt(0x32, "initial tempo"))
	p.masterVolume = p.byteAt(0x33, "master volume")
	p.defaultPan = p.byteAt(0x34, "default pan")
}

func (p *parser) instrumentPointerTable() int {
	return headerSize + p.numOrders
}

func (p *parser) patternPointerTable() int {
	return p.instrumentPointerTable() + p.numInstruments*2
}

func (p *parser) panTable() int {
	return p.patternPointerTable() + p.numPatterns*2
}

func (p *parser) parseOrders() {
	orders := p.slice(headerSize, p.numOrders, "order list")
	p.song.Orders = make([]int, 0, len(orders))
	for _, order := range orders {
		if order == orderSkip {
			continue
		}
		if order == orderEnd {
			break
		}
		p.song.Orders = append(p.song.Orders, int(order))
	}
}

func (p *parser) parseChannels() {
	p.song.Channels = make(map[int]Channel, 32)
	settings := p.slice(0x40, 32, "channel settings")
	for i, pan := range settings {
		if pan > 15 {
			continue
		}
		if pan <= 7 {
			p.song.Channels[i] = Channel{Name: fmt.Sprintf("L%d", pan+1), Pan: leftPan}
		} else {
			p.song.Channels[i] = Channel{Name: fmt.Sprintf("R%d", pan-7), Pan: rightPan}
		}
	}
}

func (p *parser) applyPanning() {
	if p.defaultPan == defaultPanSentinel {
		table := p.panTable()
		for i, ch := range p.song.Channels {
			v := p.byteAt(table+i, "channel pan")
			// Bit 5 marks a pan override; otherwise the
			// channel keeps its left/right default.
			if v&0x20 == 0 {
				continue
			}
			ch.Pan = float64(v&0x0f)/7.5 - 1
			p.song.Channels[i] = ch
		}
	}

	if p.masterVolume&0x80 == 0 {
		// A mono song.
		for i, ch := range p.song.Channels {
			ch.Pan = 0
			p.song.Channels[i] = ch
		}
	}
}

func (p *parser) parseInstrument(offset int) *Instrument {
	kind := p.byteAt(offset, "instrument type")
	if kind == 0 {
		return nil
	}
	if kind != 1 {
		panic(p.errorf(ErrUnsupportedInstrument, "unexpected instrument type %d", kind))
	}
	if packed := p.byteAt(offset+0x1e, "packing scheme"); packed != 0 {
		panic(p.errorf(ErrUnsupportedInstrument, "packed samples (%d) are not supported", packed))
	}
	if magic := p.stringAt(offset+0x4c, 4, "instrument magic"); magic != "SCRS" {
		panic(p.errorf(ErrUnsupportedInstrument, "unexpected magic: %q", magic))
	}

	flags := p.byteAt(offset+0x1f, "sample flags")
	if flags&0b110 != 0 {
		panic(p.errorf(ErrUnsupportedSampleType, "stereo or 16-bit sample (flags=%#02x)", flags))
	}

	ptr := int(p.byteAt(offset+0x0d, "sample parapointer (high)"))<<16 +
		p.wordAt(offset+0x0e, "sample parapointer")
	length := p.wordAt(offset+0x10, "sample length")

	inst := &Instrument{
		Name:        p.stringAt(offset+0x30, 28, "instrument name"),
		Volume:      volumeFromByte(p.byteAt(offset+0x1c, "instrument volume")),
		Looped:      flags&0b1 != 0,
		LoopBegin:   p.wordAt(offset+0x14, "loop begin"),
		LoopEnd:     p.wordAt(offset+0x18, "loop end"),
		MiddleCFreq: p.wordAt(offset+0x20, "middle C frequency"),
	}

	raw := p.slice(ptr*16, length, "sample data")
	inst.Sample = make([]float32, len(raw))
	for i, b := range raw {
		inst.Sample[i] = float32(b)/127.5 - 1
	}

	if inst.Looped {
		if inst.LoopEnd > len(inst.Sample) {
			inst.LoopEnd = len(inst.Sample)
		}
		if inst.LoopBegin > inst.LoopEnd {
			inst.LoopBegin = inst.LoopEnd
		}
	}

	return inst
}

func (p *parser) parsePattern(offset int) Pattern {
	var pat Pattern
	if offset == 0 {
		return pat
	}

	length := p.wordAt(offset, "pattern length")
	if length < 2 {
		panic(p.errorf(ErrMalformed, "invalid pattern length: %d", length))
	}
	data := p.slice(offset, length, "pattern data")

	pos := 2
	next := func(what string) uint8 {
		if pos >= len(data) {
			p.offset = offset + pos
			panic(p.errorf(ErrMalformed, "pattern data ended while reading %s", what))
		}
		b := data[pos]
		pos++
		return b
	}

	var commands []Command
	for pos < len(data) {
		c := next("event header")
		if c == 0 {
			pat.Rows = append(pat.Rows, Row{Commands: commands})
			commands = nil
			continue
		}

		cmd := Command{Channel: int(c & 0x1f)}
		if c&0x20 != 0 {
			n := next("note")
			inst := next("instrument")
			switch n {
			case noteEmpty:
			case NoteKeyOff:
				cmd.Note = Some(NoteKeyOff)
			default:
				cmd.Note = Some(int((n%0xf0)>>4)*12 + int(n&0x0f))
				// The instrument is only meaningful together with a note.
				if inst != 0 {
					cmd.Instrument = Some(int(inst))
				}
			}
		}
		if c&0x40 != 0 {
			cmd.Volume = Some(volumeFromByte(next("volume")))
		}
		if c&0x80 != 0 {
			cmd.Effect = Some(next("effect"))
			cmd.Info = Some(next("effect parameter"))
		}
		commands = append(commands, cmd)
	}
	if len(commands) != 0 {
		pat.Rows = append(pat.Rows, Row{Commands: commands})
	}

	return pat
}

// volumeFromByte maps a 0-64 volume byte to [0, 1].
// Values above 64 play at full volume.
func volumeFromByte(v uint8) float64 {
	return float64(min(v, 64)) / 64
}
