package mixer

import (
	"fmt"
	"io"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/jtarrio/s3m"
)

// renderChunk is the max number of frames written to the encoder at once.
const renderChunk = 4096

// Render plays seq offline and writes the mixed audio to w as
// a 16-bit stereo WAV file.
//
// seq must use m as its backend. Rendering ends when the sequencer
// stops or when limit worth of audio has been written; a zero limit
// means "until the sequencer stops", which never happens for looped songs.
//
// A playback error stops the rendering; the audio rendered so far
// is still written to w.
func (m *Mixer) Render(seq *s3m.Sequencer, w io.WriteSeeker, limit time.Duration) error {
	enc := wav.NewEncoder(w, m.sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  m.sampleRate,
		},
		Data:           make([]int, 0, renderChunk*channels),
		SourceBitDepth: 16,
	}

	flush := func() error {
		if len(buf.Data) == 0 {
			return nil
		}
		err := enc.Write(buf)
		buf.Data = buf.Data[:0]
		return err
	}

	// The song and the mixer may have been played before;
	// both clocks are measured from their values at this point.
	m.mu.Lock()
	startFrames := m.frames
	m.mu.Unlock()
	startElapsed := seq.Elapsed()

	var playErr error
	seq.Start()
	for seq.IsRunning() {
		played := seq.Elapsed() - startElapsed
		if limit > 0 && played >= limit {
			break
		}
		if err := seq.Step(); err != nil {
			playErr = err
			break
		}
		// Render up to the end of the tick that was just processed.
		played = seq.Elapsed() - startElapsed
		if limit > 0 {
			played = min(played, limit)
		}
		target := startFrames + m.durationToFrames(played)
		if err := m.render(target, buf, flush); err != nil {
			return fmt.Errorf("write WAV: %w", err)
		}
	}
	seq.Stop()

	if err := flush(); err != nil {
		return fmt.Errorf("write WAV: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finish WAV: %w", err)
	}
	return playErr
}

// render mixes frames until the clock reaches target.
func (m *Mixer) render(target int64, buf *audio.IntBuffer, flush func() error) error {
	for {
		m.mu.Lock()
		n := int(min(target-m.frames, renderChunk-int64(len(buf.Data)/channels)))
		if n > 0 {
			m.mix(n, func(_ int, left, right int16) {
				buf.Data = append(buf.Data, int(left), int(right))
			})
		}
		done := m.frames >= target
		m.mu.Unlock()

		if len(buf.Data) >= renderChunk*channels {
			if err := flush(); err != nil {
				return err
			}
		}
		if done {
			return nil
		}
	}
}
