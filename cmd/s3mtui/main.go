package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ebitengine/oto/v3"

	"github.com/jtarrio/s3m"
	"github.com/jtarrio/s3m/cuesheet"
	"github.com/jtarrio/s3m/mixer"
	"github.com/jtarrio/s3m/s3mfile"
)

// This CLI tool plays an S3M track in the terminal, showing the
// channel state while the song plays.

func main() {
	cuesFlag := flag.String("cues", "", "path to a YAML cue sheet")
	loopFlag := flag.Bool("loop", false, "start over after the last order")
	volumeFlag := flag.Float64("volume", 0.8, "output volume in [0, 1]")
	rateFlag := flag.Int("rate", 44100, "output sample rate")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: s3mtui [flags] path/to/music.s3m\n")
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
		exitf("open file: %v", err)
	}
	song, err := s3mfile.Parse(f)
	f.Close()
	if err != nil {
		exitf("parse S3M file: %v", err)
	}

	mix := mixer.New(mixer.Config{SampleRate: *rateFlag})
	mix.SetVolume(*volumeFlag)
	seq := s3m.NewSequencer(song, mix, s3m.SequencerConfig{Loop: *loopFlag})

	scenes := newSceneTracker()
	if *cuesFlag != "" {
		sheet, err := cuesheet.Load(*cuesFlag)
		if err != nil {
			exitf("load cue sheet: %v", err)
		}
		sheet.Bind(seq, scenes)
	}

	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   mix.SampleRate(),
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		exitf("open audio device: %v", err)
	}
	<-ready

	player := otoCtx.NewPlayer(mix)
	player.SetBufferSize(mix.SampleRate() / 10 * 4) // 100ms buffer
	defer player.Close()

	seq.Start()
	player.Play()

	m := newModel(seq, player, filename, scenes)
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		exitf("%v", err)
	}
	if err := final.(model).err; err != nil {
		exitf("playback: %v", err)
	}
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "s3mtui: "+format+"\n", args...)
	os.Exit(1)
}
