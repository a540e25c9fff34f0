// Package tui provides the Bubble Tea practice interface.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ColonelBlimp/cwtrainer/internal/practice"
	"github.com/ColonelBlimp/cwtrainer/internal/score"
)

// Controller is the part of practice.Controller the UI drives.
type Controller interface {
	Start() error
	Stop()
	State() practice.State
	Text() string
	SetTranscription(s string)
	Score(transcription string) (score.Score, bool)
}

// Config is what the header shows and how the model starts.
type Config struct {
	ShowText   bool
	AudioReady bool
	WPM        int
	Lesson     string
}

// Model implements the Bubble Tea practice UI.
type Model struct {
	ctrl   Controller
	events *Events
	config Config

	input textinput.Model
	width int

	text     []rune
	index    int
	groups   int
	playing  bool
	showText bool
	result   *practice.Result
	status   string
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	heardStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	currentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Underline(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// NewModel constructs a practice model. Register events.Push as the
// controller callback before running the program.
func NewModel(ctrl Controller, events *Events, cfg Config) *Model {
	input := textinput.New()
	input.Placeholder = "type what you hear"
	input.Prompt = "> "
	input.CharLimit = 0
	input.Focus()

	return &Model{
		ctrl:     ctrl,
		events:   events,
		config:   cfg,
		input:    input,
		index:    -1,
		showText: cfg.ShowText,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.events.wait())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-8, 10)
		return m, nil
	case eventsMsg:
		m.apply(msg)
		return m, m.events.wait()
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.ctrl.Stop()
			m.events.Close()
			return m, tea.Quit
		case "ctrl+s", "enter":
			m.toggle()
			return m, nil
		case "ctrl+t":
			m.showText = !m.showText
			return m, nil
		case "ctrl+r":
			m.rescore()
			return m, nil
		}
	}

	var cmd tea.Cmd
	before := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != before {
		m.ctrl.SetTranscription(v)
	}
	return m, cmd
}

func (m *Model) toggle() {
	if m.ctrl.State() == practice.Playing {
		m.ctrl.Stop()
		m.playing = false
		return
	}

	if err := m.ctrl.Start(); err != nil {
		m.status = err.Error()
		return
	}
	m.status = ""
	m.result = nil
	m.text = []rune(m.ctrl.Text())
	m.index = -1
	m.groups = 0
	m.playing = true
	m.input.Reset()
	m.ctrl.SetTranscription("")
}

func (m *Model) rescore() {
	s, ok := m.ctrl.Score(m.input.Value())
	if !ok {
		m.status = "nothing to score yet"
		return
	}
	if m.result != nil {
		m.result.Transcription = m.input.Value()
		m.result.Score = &s
	}
	m.status = ""
}

func (m *Model) apply(events []practice.Event) {
	for _, e := range events {
		switch e.Kind {
		case practice.EventIndex:
			m.index = e.Index
		case practice.EventClear:
			m.index = -1
		case practice.EventGroup:
			m.groups++
		case practice.EventFinish:
			m.index = -1
			m.result = e.Result
		}
	}
	m.playing = m.ctrl.State() == practice.Playing
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("cwtrainer"))
	b.WriteString("  ")
	b.WriteString(footerStyle.Render(m.header()))
	b.WriteString("\n\n")

	if !m.config.AudioReady {
		b.WriteString(warnStyle.Render("audio unavailable: keying silently"))
		b.WriteString("\n\n")
	}

	b.WriteString(m.renderText())
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	if line := m.renderResult(); line != "" {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(warnStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(footerStyle.Render("ctrl+s start/stop · ctrl+t show text · ctrl+r score · esc quit"))
	return b.String()
}

func (m *Model) header() string {
	state := "idle"
	if m.playing {
		state = "playing"
	}
	parts := []string{state, fmt.Sprintf("%d WPM", m.config.WPM)}
	if m.config.Lesson != "" {
		parts = append(parts, m.config.Lesson)
	}
	return strings.Join(parts, " · ")
}

func (m *Model) renderText() string {
	if len(m.text) == 0 {
		return pendingStyle.Render("press ctrl+s to start")
	}
	if m.playing && !m.showText {
		return pendingStyle.Render(fmt.Sprintf("text hidden · %d/%d heard · %d groups", m.index+1, len(m.text), m.groups))
	}

	heard := m.index
	if !m.playing {
		heard = len(m.text)
		if m.result != nil {
			heard = len([]rune(m.result.Played))
		}
	}

	var b strings.Builder
	for i, r := range m.text {
		s := string(r)
		switch {
		case !m.playing && i < heard:
			b.WriteString(heardStyle.Render(s))
		case !m.playing:
			b.WriteString(pendingStyle.Render(s))
		case i < heard:
			b.WriteString(heardStyle.Render(s))
		case i == heard:
			b.WriteString(currentStyle.Render(s))
		default:
			b.WriteString(pendingStyle.Render(s))
		}
	}
	style := boxStyle
	if m.width > 4 {
		style = style.Width(m.width - 4)
	}
	return style.Render(b.String())
}

func (m *Model) renderResult() string {
	if m.result == nil {
		return ""
	}
	state := "stopped"
	if m.result.Completed {
		state = "complete"
	}
	if m.result.Score == nil {
		return fmt.Sprintf("Session %s · nothing transcribed", state)
	}
	s := m.result.Score
	size := m.result.GroupSize
	return fmt.Sprintf("Session %s · %d/%d correct (%d%%)\nsent %s\ncopy %s",
		state, s.Correct, s.Total, s.Percentage,
		score.Groups(score.Normalize(m.result.Played), size),
		score.Groups(score.Normalize(m.result.Transcription), size))
}
