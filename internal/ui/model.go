// ABOUTME: Bubbletea model for the singkeys TUI
// ABOUTME: Shows live pitch, the held key, loop counters and the key table
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/harperreed/singkeys/pkg/keymap"
	"github.com/harperreed/singkeys/pkg/pipeline"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))

	activeRowStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("42"))

	heardRowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	faintStyle = lipgloss.NewStyle().Faint(true)
)

// PitchStatus is the outcome of the most recent analysis window
type PitchStatus struct {
	Frequency  float64
	Clarity    float64
	Detected   bool
	Heard      keymap.Symbol // classification of the last window
	Active     keymap.Symbol // key currently held
	Held       time.Duration
	LastAction string
}

// StatusMsg updates TUI state. Zero and nil fields leave state unchanged.
type StatusMsg struct {
	Source     string
	SampleRate int
	WindowSize int
	Injector   string
	FeedAddr   string

	Pitch       *PitchStatus
	Stats       *pipeline.Stats
	Clients     *int
	ClientNames []string // applied together with Clients
	Err         error
}

// Model represents the TUI state
type Model struct {
	// Setup
	source     string
	sampleRate int
	windowSize int
	injector   string
	feedAddr   string

	// Live
	pitch       PitchStatus
	stats       pipeline.Stats
	clients     int
	clientNames []string
	lastErr     error

	showDebug bool
	quitting  bool
	quitChan  chan struct{}

	width  int
	height int
}

// NewModel creates a new TUI model. quitChan may be nil.
func NewModel(quitChan chan struct{}) Model {
	return Model{
		source:   "starting...",
		injector: "keyboard",
		quitChan: quitChan,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		if m.quitChan != nil {
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
		}
		return m, tea.Quit
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Source != "" {
		m.source = msg.Source
	}
	if msg.SampleRate != 0 {
		m.sampleRate = msg.SampleRate
	}
	if msg.WindowSize != 0 {
		m.windowSize = msg.WindowSize
	}
	if msg.Injector != "" {
		m.injector = msg.Injector
	}
	if msg.FeedAddr != "" {
		m.feedAddr = msg.FeedAddr
	}
	if msg.Pitch != nil {
		m.pitch = *msg.Pitch
	}
	if msg.Stats != nil {
		m.stats = *msg.Stats
	}
	if msg.Clients != nil {
		m.clients = *msg.Clients
		m.clientNames = msg.ClientNames
	}
	if msg.Err != nil {
		m.lastErr = msg.Err
	}
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("singkeys"))
	b.WriteString("\n")

	m.renderField(&b, "Input", m.source)
	if m.sampleRate > 0 {
		m.renderField(&b, "Window", fmt.Sprintf("%d samples @ %dHz (%v)",
			m.windowSize, m.sampleRate, windowDuration(m.windowSize, m.sampleRate)))
	}
	m.renderField(&b, "Keys", m.injector)
	if m.feedAddr != "" {
		feed := fmt.Sprintf("%s (%d client%s)", m.feedAddr, m.clients, plural(m.clients))
		if len(m.clientNames) > 0 {
			feed += ": " + strings.Join(m.clientNames, ", ")
		}
		m.renderField(&b, "Feed", feed)
	}
	b.WriteString("\n")

	b.WriteString(m.renderPitch())
	b.WriteString("\n")
	b.WriteString(m.renderKeyTable())
	b.WriteString("\n")
	b.WriteString(m.renderStats())

	if m.lastErr != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("Error: " + m.lastErr.Error()))
		b.WriteString("\n")
	}

	if m.showDebug {
		b.WriteString("\n")
		b.WriteString(m.renderDebug())
	}

	b.WriteString("\n")
	b.WriteString(faintStyle.Render("d: debug  q: quit"))
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderField(b *strings.Builder, name, value string) {
	b.WriteString(headerStyle.Render(name + ": "))
	b.WriteString(valueStyle.Render(value))
	b.WriteString("\n")
}

// renderPitch renders the last estimate and the held key
func (m Model) renderPitch() string {
	var b strings.Builder

	pitchText := "-"
	if m.pitch.Detected {
		pitchText = fmt.Sprintf("%.1f Hz (clarity %.2f) -> %s", m.pitch.Frequency, m.pitch.Clarity, m.pitch.Heard)
	}
	m.renderField(&b, "Pitch", pitchText)

	held := "-"
	if m.pitch.Active != keymap.None {
		held = fmt.Sprintf("%s for %v", m.pitch.Active, m.pitch.Held.Round(time.Millisecond))
	}
	m.renderField(&b, "Held", held)

	if m.pitch.LastAction != "" {
		m.renderField(&b, "Last", m.pitch.LastAction)
	}
	return b.String()
}

// renderKeyTable lists every range, highlighting the held and heard keys
func (m Model) renderKeyTable() string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render(fmt.Sprintf("Keys %.0f - %.0f Hz", keymap.MinFrequency(), keymap.MaxFrequency())))
	b.WriteString("\n")

	for _, r := range keymap.Ranges() {
		row := fmt.Sprintf(" %-9s %5.0f - %3.0f Hz ", r.Symbol, r.Low, r.High)
		switch {
		case r.Symbol == m.pitch.Active:
			row = activeRowStyle.Render(row)
		case m.pitch.Detected && r.Symbol == m.pitch.Heard:
			row = heardRowStyle.Render(row)
		default:
			row = valueStyle.Render(row)
		}
		b.WriteString(row)
		b.WriteString("\n")
	}
	return b.String()
}

// renderStats renders loop counters
func (m Model) renderStats() string {
	s := m.stats
	line := fmt.Sprintf("Windows: %d  Pitched: %d  Press: %d  Repeat: %d  Release: %d",
		s.Windows, s.Detections, s.Presses, s.Repeats, s.Releases)
	backlog := fmt.Sprintf("Backlog: %d samples  Dropped: %d", s.Backlog, s.Dropped)
	return sectionStyle.Render("Stats") + "\n" + valueStyle.Render(line) + "\n" + valueStyle.Render(backlog) + "\n"
}

// renderDebug renders raw state
func (m Model) renderDebug() string {
	return faintStyle.Render(fmt.Sprintf("DEBUG: active=%d heard=%d detected=%v size=%dx%d",
		int(m.pitch.Active), int(m.pitch.Heard), m.pitch.Detected, m.width, m.height)) + "\n"
}

func windowDuration(size, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return (time.Duration(size) * time.Second / time.Duration(rate)).Round(time.Millisecond)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
