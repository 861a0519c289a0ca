package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ebitengine/oto/v3"

	"github.com/jtarrio/s3m"
)

const volumeBarWidth = 16

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	pausedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	nameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Width(4)
	instStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Width(24)
	fxStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	barStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	sceneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6")).Padding(0, 1)
	channelFrame = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
)

// sceneTracker implements cuesheet.Handler.
// It's shared by all the copies of the model.
type sceneTracker struct {
	active map[string]bool
	ended  bool
}

func newSceneTracker() *sceneTracker {
	return &sceneTracker{active: map[string]bool{}}
}

func (t *sceneTracker) SceneStart(name string) { t.active[name] = true }

func (t *sceneTracker) SceneEnd(name string) { delete(t.active, name) }

func (t *sceneTracker) End() { t.ended = true }

func (t *sceneTracker) names() []string {
	names := make([]string, 0, len(t.active))
	for name := range t.active {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type model struct {
	seq    *s3m.Sequencer
	player *oto.Player
	scenes *sceneTracker

	filename string
	err      error
}

func newModel(seq *s3m.Sequencer, player *oto.Player, filename string, scenes *sceneTracker) model {
	return model{
		seq:      seq,
		player:   player,
		scenes:   scenes,
		filename: filename,
	}
}

// tickMsg is sent once per frame to pump the sequencer.
type tickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second/60, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if err := m.seq.Update(); err != nil {
			m.err = err
			return m, tea.Quit
		}
		if !m.seq.IsRunning() || m.scenes.ended {
			return m, tea.Quit
		}
		return m, tickCmd()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.seq.Stop()
			return m, tea.Quit
		case " ":
			// The mixer clock only advances while the player pulls audio.
			if m.player.IsPlaying() {
				m.player.Pause()
			} else {
				m.player.Play()
			}
		}
	}
	return m, nil
}

func (m model) View() string {
	var sb strings.Builder
	song := m.seq.Song()

	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s  (%s)", song.Name, m.filename)))
	sb.WriteString("\n")
	status := statusStyle.Render("playing")
	if !m.player.IsPlaying() {
		status = pausedStyle.Render("paused")
	}
	sb.WriteString(fmt.Sprintf("%s  order %02d/%02d  row %02d  tick %d/%d  tempo %d  %s\n",
		status, m.seq.Order(), len(song.Orders), m.seq.Row(), m.seq.CurrentTick(), m.seq.Speed(),
		m.seq.Tempo(), m.seq.Elapsed().Truncate(100*time.Millisecond)))

	var rows []string
	for i := 0; i < m.seq.NumChannels(); i++ {
		rows = append(rows, renderChannel(m.seq.Channel(i)))
	}
	sb.WriteString(channelFrame.Render(strings.Join(rows, "\n")))
	sb.WriteString("\n")

	if names := m.scenes.names(); len(names) != 0 {
		for _, name := range names {
			sb.WriteString(sceneStyle.Render(name))
			sb.WriteString(" ")
		}
		sb.WriteString("\n")
	}

	sb.WriteString(dimStyle.Render("space: pause  q: quit"))
	return sb.String()
}

func renderChannel(ch s3m.ChannelSnapshot) string {
	inst := dimStyle.Render("--")
	if ch.Playing && ch.Instrument != nil {
		inst = ch.Instrument.Name
	}
	filled := min(max(int(ch.Volume*volumeBarWidth), 0), volumeBarWidth)
	if !ch.Playing {
		filled = 0
	}
	bar := barStyle.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("·", volumeBarWidth-filled))
	return lipgloss.JoinHorizontal(lipgloss.Top,
		nameStyle.Render(ch.Name), " ",
		bar, " ",
		instStyle.Render(inst), " ",
		fxStyle.Render(ch.Effect),
	)
}
