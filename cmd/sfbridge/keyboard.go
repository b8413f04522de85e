package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cwbudde/sf-bridge/bridge"
	"github.com/cwbudde/sf-bridge/engine"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	noteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// Two rows of a computer keyboard laid out like a piano octave and a half.
var keyOffsets = map[string]int{
	"a": 0, "w": 1, "s": 2, "e": 3, "d": 4, "f": 5, "t": 6, "g": 7,
	"y": 8, "h": 9, "u": 10, "j": 11, "k": 12, "o": 13, "l": 14,
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

const (
	defaultOctave   = 4
	defaultVelocity = 100
	// Terminals report key presses only, so every note is released after
	// a fixed hold through the bridge's delay compensation.
	keyHold       = 0.4
	statsInterval = 250 * time.Millisecond
)

type statsMsg struct{}

type keyboardModel struct {
	ctx      context.Context
	send     func(context.Context, bridge.Message) error
	stats    func() bridge.Stats
	presets  []engine.PresetHeader
	program  int
	octave   int
	velocity int
	last     string
	st       bridge.Stats
	err      error
}

func newKeyboardModel(ctx context.Context, b *bridge.Bridge, presets []engine.PresetHeader) *keyboardModel {
	return &keyboardModel{
		ctx:      ctx,
		send:     b.Send,
		stats:    b.Stats,
		presets:  presets,
		octave:   defaultOctave,
		velocity: defaultVelocity,
	}
}

func runKeyboard(ctx context.Context, b *bridge.Bridge, presets []engine.PresetHeader) error {
	p := tea.NewProgram(newKeyboardModel(ctx, b, presets), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func tickStats() tea.Cmd {
	return tea.Tick(statsInterval, func(time.Time) tea.Msg { return statsMsg{} })
}

func (m *keyboardModel) Init() tea.Cmd {
	return tickStats()
}

func (m *keyboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statsMsg:
		m.st = m.stats()
		return m, tickStats()

	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "ctrl+c", "esc", "q":
			return m, tea.Quit
		case "z":
			m.octave = max(m.octave-1, 0)
		case "x":
			m.octave = min(m.octave+1, 9)
		case "-":
			m.velocity = max(m.velocity-10, 1)
		case "+", "=":
			m.velocity = min(m.velocity+10, 127)
		case "left":
			m.selectProgram(m.program - 1)
		case "right":
			m.selectProgram(m.program + 1)
		default:
			if off, ok := keyOffsets[key]; ok {
				m.play(12*(m.octave+1) + off)
			}
		}
	}
	return m, nil
}

func (m *keyboardModel) play(key int) {
	if key > 127 {
		return
	}
	if m.err = m.send(m.ctx, bridge.NoteOn{Key: key, Velocity: m.velocity}); m.err != nil {
		return
	}
	if m.err = m.send(m.ctx, bridge.NoteOff{Key: key, Delay: keyHold}); m.err != nil {
		return
	}
	m.last = noteName(key)
}

func (m *keyboardModel) selectProgram(i int) {
	if len(m.presets) == 0 {
		return
	}
	i = (i + len(m.presets)) % len(m.presets)
	p := m.presets[i]
	if m.err = m.send(m.ctx, bridge.SelectProgram{Bank: p.Bank, Preset: p.Preset}); m.err != nil {
		return
	}
	m.program = i
}

func (m *keyboardModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("sfbridge keyboard"))
	b.WriteString("\n\n")

	program := "-"
	if len(m.presets) > 0 {
		p := m.presets[m.program]
		program = fmt.Sprintf("%d:%d %s", p.Bank, p.Preset, p.Name)
	}
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("program: "), program)
	fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("octave:  "), m.octave)
	fmt.Fprintf(&b, "%s %d\n", labelStyle.Render("velocity:"), m.velocity)
	last := m.last
	if last == "" {
		last = "-"
	}
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("last:    "), noteStyle.Render(last))
	fmt.Fprintf(&b, "%s %d frames, %d late, %d faults\n",
		labelStyle.Render("render:  "), m.st.Frames, m.st.LateCommands, m.st.RenderFaults)
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("a-l play  z/x octave  -/+ velocity  ←/→ program  q quit"))
	b.WriteString("\n")
	return b.String()
}

func noteName(key int) string {
	return fmt.Sprintf("%s%d (%d)", noteNames[key%12], key/12-1, key)
}
