// Package tui implements the minimal terminal status view for miditui: a
// single-screen transport/mixer readout driven by Bubble Tea, with no
// piano-roll grid or dialog state machines.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zurustar/miditui/pkg/app"
	"github.com/zurustar/miditui/pkg/midi"
	"github.com/zurustar/miditui/pkg/transport"
)

// tickInterval drives both the sequencer and the redraw loop.
const tickInterval = 30 * time.Millisecond

// keyMap is the status view's command set, described in SPEC_FULL §6a.
type keyMap struct {
	Play, Stop, Restart   key.Binding
	SeekBack, SeekForward key.Binding
	Undo, Redo            key.Binding
	NewTrack              key.Binding
	Mute, Solo            key.Binding
	SelectUp, SelectDown  key.Binding
	Quit                  key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Play:         key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		Stop:         key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		Restart:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart")),
		SeekBack:     key.NewBinding(key.WithKeys("["), key.WithHelp("[", "seek back")),
		SeekForward:  key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "seek forward")),
		Undo:         key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "undo")),
		Redo:         key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "redo")),
		NewTrack:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new track")),
		Mute:         key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
		Solo:         key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "solo")),
		SelectUp:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "select track")),
		SelectDown:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "select track")),
		Quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp satisfies help.KeyMap for the footer line.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Play, k.Stop, k.Restart, k.SeekBack, k.SeekForward, k.Undo, k.Redo, k.NewTrack, k.Mute, k.Solo, k.SelectUp, k.Quit}
}

// FullHelp satisfies help.KeyMap; the status view has no expanded help page.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	soloStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

// tickMsg fires on every tickInterval to advance playback.
type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Model is the Bubble Tea model wrapping an *app.App.
type Model struct {
	app  *app.App
	keys keyMap
	help help.Model
}

// New wraps session in a Model ready to run.
func New(session *app.App) Model {
	return Model{app: session, keys: defaultKeyMap(), help: help.New()}
}

// Init starts the tick loop.
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles key presses and the periodic tick.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.app.Update()
		return m, tick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.app.RemoveAutosave()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Play):
			m.app.TogglePlayback()
		case key.Matches(msg, m.keys.Stop):
			m.app.StopPlayback()
		case key.Matches(msg, m.keys.Restart):
			m.app.RestartPlayback()
		case key.Matches(msg, m.keys.SeekBack):
			m.app.SeekByBeats(-1)
		case key.Matches(msg, m.keys.SeekForward):
			m.app.SeekByBeats(1)
		case key.Matches(msg, m.keys.Undo):
			m.app.Undo()
		case key.Matches(msg, m.keys.Redo):
			m.app.Redo()
		case key.Matches(msg, m.keys.NewTrack):
			m.app.AddTrack()
		case key.Matches(msg, m.keys.Mute):
			m.app.ToggleMute(m.app.SelectedTrackIndex())
		case key.Matches(msg, m.keys.Solo):
			m.app.ToggleSolo(m.app.SelectedTrackIndex())
		case key.Matches(msg, m.keys.SelectUp):
			m.app.SelectTrack(m.app.SelectedTrackIndex() - 1)
		case key.Matches(msg, m.keys.SelectDown):
			m.app.SelectTrack(m.app.SelectedTrackIndex() + 1)
		}
	}
	return m, nil
}

// View renders the status screen.
func (m Model) View() string {
	project := m.app.Project()
	tp := m.app.Transport()

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf(" %s ", project.Name)))
	b.WriteString("\n")

	measure, beat, _ := project.TickToPosition(tp.PositionTicks())
	b.WriteString(fmt.Sprintf(
		"%s %s   %s %d/%d   %s %s   %s %d:%d\n",
		labelStyle.Render("Tempo"), fmt.Sprintf("%d BPM", project.Tempo),
		labelStyle.Render("Time"), project.TimeSigNumerator, project.TimeSigDenominator,
		labelStyle.Render("State"), transportLabel(tp.State()),
		labelStyle.Render("Pos"), measure, beat,
	))
	b.WriteString("\n")

	active := m.app.ActiveTracks()
	for i, t := range project.Tracks() {
		b.WriteString(trackLine(i, t, i == m.app.SelectedTrackIndex(), active[i]))
		b.WriteString("\n")
	}

	if status := m.app.Status(); status != "" {
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(status))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

func transportLabel(s transport.State) string {
	return s.String()
}

func trackLine(index int, t *midi.Track, selected, active bool) string {
	cursor := "  "
	if selected {
		cursor = "▸ "
	}

	flags := "   "
	if t.Muted {
		flags = "M  "
	}
	if t.Solo {
		flags = flags[:1] + "S "
	}

	line := fmt.Sprintf("%s%-16s ch%-3d vol%-4d pan%-4d %s", cursor, t.Name, t.Channel, t.Volume, t.Pan, flags)

	switch {
	case active:
		return activeStyle.Render(line)
	case t.Muted:
		return mutedStyle.Render(line)
	case t.Solo:
		return soloStyle.Render(line)
	default:
		return line
	}
}

// Run starts the Bubble Tea program wrapping session.
func Run(session *app.App) error {
	p := tea.NewProgram(New(session), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
