package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/jtarrio/s3m"
	"github.com/jtarrio/s3m/cuesheet"
	"github.com/jtarrio/s3m/mixer"
	"github.com/jtarrio/s3m/s3mfile"
)

// This simple CLI tool plays the specified S3M track using Ebitengine audio player.
// With -wav, it renders the track to a WAV file instead.

func main() {
	cuesFlag := flag.String("cues", "", "path to a YAML cue sheet")
	wavFlag := flag.String("wav", "", "render the track to this WAV file and exit")
	limitFlag := flag.Duration("limit", 0, "max duration to render with -wav (0 means the whole song)")
	loopFlag := flag.Bool("loop", false, "start over after the last order")
	volumeFlag := flag.Float64("volume", 0.8, "output volume in [0, 1]")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: s3mplay [flags] path/to/music.s3m\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	filename := flag.Arg(0)

	f, err := os.Open(filename)
	if err != nil {
		exitf("read S3M file: %v", err)
	}
	song, err := s3mfile.Parse(f)
	f.Close()
	if err != nil {
		exitf("parse S3M file: %v", err)
	}

	var sheet *cuesheet.Sheet
	if *cuesFlag != "" {
		sheet, err = cuesheet.Load(*cuesFlag)
		if err != nil {
			exitf("load cue sheet: %v", err)
		}
	}

	const sampleRate = 44100
	mix := mixer.New(mixer.Config{SampleRate: sampleRate})
	mix.SetVolume(*volumeFlag)
	seq := s3m.NewSequencer(song, mix, s3m.SequencerConfig{Loop: *loopFlag})

	g := &game{
		seq:      seq,
		song:     song,
		filename: filename,
		scenes:   map[string]bool{},
	}
	if sheet != nil {
		sheet.Bind(seq, g)
	}

	if *wavFlag != "" {
		if err := renderWAV(mix, seq, *wavFlag, *limitFlag); err != nil {
			exitf("render WAV: %v", err)
		}
		return
	}

	// Create a sound player using the Ebitengine audio context.
	// The mixer clock follows the audio player, so pausing
	// the player pauses the sequencer as well.
	audioContext := audio.NewContext(sampleRate)
	player, err := audioContext.NewPlayer(mix)
	if err != nil {
		exitf("create audio player: %v", err)
	}
	g.player = player

	seq.Start()
	player.Play()

	ebiten.SetWindowTitle("s3mplay: " + filename)
	if err := ebiten.RunGame(g); err != nil && !errors.Is(err, ebiten.Termination) {
		exitf("%v", err)
	}
	if err := seq.Err(); err != nil {
		exitf("playback: %v", err)
	}
}

func renderWAV(mix *mixer.Mixer, seq *s3m.Sequencer, path string, limit time.Duration) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := mix.Render(seq, out, limit); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "s3mplay: "+format+"\n", args...)
	os.Exit(1)
}

type game struct {
	seq    *s3m.Sequencer
	song   *s3mfile.Song
	player *audio.Player

	filename string

	// scenes holds the names of the cue sheet scenes being played.
	scenes map[string]bool
}

func (g *game) SceneStart(name string) { g.scenes[name] = true }

func (g *game) SceneEnd(name string) { delete(g.scenes, name) }

func (g *game) End() {}

func (g *game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyQ) {
		return ebiten.Termination
	}

	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		if g.player.IsPlaying() {
			g.player.Pause()
		} else {
			g.player.Play()
		}
	}

	if err := g.seq.Update(); err != nil {
		return ebiten.Termination
	}
	if !g.seq.IsRunning() {
		return ebiten.Termination
	}
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	var sb strings.Builder
	if g.player.IsPlaying() {
		fmt.Fprintf(&sb, "Playing %s (%s)\n", g.song.Name, g.filename)
	} else {
		sb.WriteString("Paused... press SPACE\n")
	}
	fmt.Fprintf(&sb, "order %02d/%02d  row %02d  tick %d/%d  tempo %d  time %s\n\n",
		g.seq.Order(), len(g.song.Orders), g.seq.Row(), g.seq.CurrentTick(), g.seq.Speed(),
		g.seq.Tempo(), g.seq.Elapsed().Truncate(100*time.Millisecond))

	for i := 0; i < g.seq.NumChannels(); i++ {
		ch := g.seq.Channel(i)
		inst := "--"
		if ch.Instrument != nil && ch.Playing {
			inst = ch.Instrument.Name
		}
		fmt.Fprintf(&sb, "%-4s vol %2.0f  %-22s %s\n", ch.Name, ch.Volume*64, inst, ch.Effect)
	}

	if len(g.scenes) != 0 {
		sb.WriteString("\nscenes:")
		for _, name := range sortedKeys(g.scenes) {
			sb.WriteString(" " + name)
		}
	}

	ebitenutil.DebugPrint(screen, sb.String())
}

func (g *game) Layout(_, _ int) (int, int) {
	return 640, 480
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
