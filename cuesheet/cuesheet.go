// Package cuesheet binds named scenes to song positions.
//
// A cue sheet is a YAML document like this one:
//
//	scenes:
//	  - name: startcredits
//	    start: {order: 0, row: 0}
//	    end: {order: 9, row: 64}
//	  - name: planet
//	    start: {order: 4, row: 64}
//	end: {order: 14, row: 0}
//
// Positions use the sequencer cue semantics (see s3m.Sequencer.OnCue),
// so row 64 is a valid position: it's reached right after the last
// row of the order was played. Row 0 of any order but the first is
// only reached through a position jump or a pattern break.
package cuesheet

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jtarrio/s3m"
	"github.com/jtarrio/s3m/s3mfile"
)

// ErrInvalid is reported for cue sheets that can't be bound to a sequencer.
var ErrInvalid = errors.New("invalid cue sheet")

type Position struct {
	Order int `yaml:"order"`
	Row   int `yaml:"row"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%02d", p.Order, p.Row)
}

type Scene struct {
	Name  string    `yaml:"name"`
	Start Position  `yaml:"start"`
	End   *Position `yaml:"end,omitempty"`
}

// Sheet is a parsed cue sheet.
type Sheet struct {
	Scenes []Scene `yaml:"scenes"`

	// End is the position where the playback stops.
	End *Position `yaml:"end,omitempty"`
}

// Handler receives the cue sheet events.
//
// The methods are called synchronously from the sequencer's Step.
type Handler interface {
	SceneStart(name string)
	SceneEnd(name string)

	// End is called right before the sequencer is stopped.
	End()
}

// Load reads and validates the cue sheet at path.
func Load(path string) (*Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and validates a cue sheet.
// Unknown fields are rejected.
func Parse(r io.Reader) (*Sheet, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var sheet Sheet
	if err := dec.Decode(&sheet); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalid)
		}
		return nil, fmt.Errorf("decode cue sheet: %w", err)
	}
	if err := sheet.Validate(); err != nil {
		return nil, err
	}
	return &sheet, nil
}

// Validate checks that scene names are unique and not empty,
// and that every position is inside the song grid.
func (s *Sheet) Validate() error {
	seen := make(map[string]bool, len(s.Scenes))
	for i, scene := range s.Scenes {
		if scene.Name == "" {
			return fmt.Errorf("%w: scenes[%d]: missing name", ErrInvalid, i)
		}
		if seen[scene.Name] {
			return fmt.Errorf("%w: scenes[%d]: duplicated name %q", ErrInvalid, i, scene.Name)
		}
		seen[scene.Name] = true

		if err := validatePosition(scene.Start); err != nil {
			return fmt.Errorf("%w: scene %q: start: %v", ErrInvalid, scene.Name, err)
		}
		if scene.End != nil {
			if err := validatePosition(*scene.End); err != nil {
				return fmt.Errorf("%w: scene %q: end: %v", ErrInvalid, scene.Name, err)
			}
		}
	}
	if s.End != nil {
		if err := validatePosition(*s.End); err != nil {
			return fmt.Errorf("%w: end: %v", ErrInvalid, err)
		}
	}
	return nil
}

func validatePosition(p Position) error {
	if p.Order < 0 {
		return fmt.Errorf("negative order %d", p.Order)
	}
	if p.Row < 0 || p.Row > s3mfile.RowsPerPattern {
		return fmt.Errorf("row %d is out of range", p.Row)
	}
	return nil
}

// Scene returns the scene with the given name.
func (s *Sheet) Scene(name string) (Scene, bool) {
	for _, scene := range s.Scenes {
		if scene.Name == name {
			return scene, true
		}
	}
	return Scene{}, false
}

// Bind registers the sheet cues on seq.
//
// Scenes are bound in the sheet order, so two scenes that share a
// position get their events in that order. The sheet end cue stops seq.
func (s *Sheet) Bind(seq *s3m.Sequencer, h Handler) {
	for _, scene := range s.Scenes {
		name := scene.Name
		seq.OnCue(scene.Start.Order, scene.Start.Row, func(*s3m.Sequencer) {
			h.SceneStart(name)
		})
		if scene.End != nil {
			seq.OnCue(scene.End.Order, scene.End.Row, func(*s3m.Sequencer) {
				h.SceneEnd(name)
			})
		}
	}
	if s.End != nil {
		seq.OnCue(s.End.Order, s.End.Row, func(seq *s3m.Sequencer) {
			h.End()
			seq.Stop()
		})
	}
}
