package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasm-jit/registry"
	"github.com/wippyai/wasm-jit/runtime"
)

const maxEvents = 8

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	handleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	guardStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

type interactiveModel struct {
	err      error
	cfg      *runtime.Config
	session  *session
	program  *tea.Program
	files    []string
	events   []registry.Event
	inputs   []textinput.Model
	result   int32
	a, b     int32
	selected int
	focusIdx int
	state    modelState
}

func newInteractiveModel(cfg *runtime.Config, files []string, a, b int32) *interactiveModel {
	return &interactiveModel{
		cfg:   cfg,
		files: files,
		a:     a,
		b:     b,
		state: stateSelectFunc,
	}
}

type loadedMsg struct {
	err     error
	session *session
}

type reloadedMsg struct {
	err error
}

type callResultMsg struct {
	err    error
	a, b   int32
	result int32
}

type eventMsg registry.Event

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadFunctions
}

// loadFunctions runs as a command: observers send to the program, which
// must not happen from inside Update.
func (m *interactiveModel) loadFunctions() tea.Msg {
	ctx := context.Background()
	s, err := newSession(ctx, m.cfg, m.files)
	if err != nil {
		return loadedMsg{err: err}
	}

	obs := registry.ObserverFunc(func(e registry.Event) {
		if m.program != nil {
			m.program.Send(eventMsg(e))
		}
	})
	s.rt.Table().Subscribe(obs)
	s.rt.Guards().Subscribe(obs)

	for i := range s.funcs {
		s.load(ctx, i)
	}
	return loadedMsg{session: s}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.shutdown()
			return m, tea.Quit

		case "q":
			if m.state != stateInputArgs {
				m.shutdown()
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.session != nil && m.selected < len(m.session.funcs)-1 {
				m.selected++
			}

		case "r":
			if m.state == stateSelectFunc && m.session != nil {
				return m, m.reloadFunction
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if m.session != nil {
					m.prepareInputs()
					m.state = stateInputArgs
				}
				return m, nil

			case stateInputArgs:
				return m, m.callFunction

			case stateShowResult:
				m.state = stateSelectFunc
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectFunc
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectFunc
				m.err = nil
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.session = msg.session

	case reloadedMsg:
		m.err = msg.err

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		if msg.err == nil {
			m.a, m.b = msg.a, msg.b
		}
		m.state = stateShowResult

	case eventMsg:
		m.events = append(m.events, registry.Event(msg))
		if len(m.events) > maxEvents {
			m.events = m.events[len(m.events)-maxEvents:]
		}
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) shutdown() {
	if m.session != nil {
		m.session.close(context.Background())
	}
}

func (m *interactiveModel) prepareInputs() {
	m.inputs = make([]textinput.Model, 2)
	for i, name := range []string{"a", "b"} {
		ti := textinput.New()
		ti.Placeholder = "i32"
		ti.Prompt = name + ": "
		ti.Width = 20
		ti.SetValue(strconv.Itoa(int([]int32{m.a, m.b}[i])))
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callFunction() tea.Msg {
	args := make([]int32, len(m.inputs))
	for i, input := range m.inputs {
		v, err := strconv.ParseInt(strings.TrimSpace(input.Value()), 0, 32)
		if err != nil {
			return callResultMsg{err: fmt.Errorf("argument %s: %w", strings.TrimSuffix(input.Prompt, ": "), err)}
		}
		args[i] = int32(v)
	}
	f := m.session.funcs[m.selected]
	return callResultMsg{
		a:      args[0],
		b:      args[1],
		result: m.session.rt.Invoke(context.Background(), f.handle, args[0], args[1]),
	}
}

func (m *interactiveModel) reloadFunction() tea.Msg {
	return reloadedMsg{err: m.session.reload(context.Background(), m.selected)}
}

func (m *interactiveModel) View() string {
	if m.session == nil {
		if m.err != nil {
			return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
		}
		return "Compiling functions..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("JIT Runner"))
	b.WriteString(fmt.Sprintf(" %d functions\n\n", len(m.session.funcs)))

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select a function to call:\n\n")
		for i, f := range m.session.funcs {
			line := m.formatFunc(f)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> ") + line)
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		if m.err != nil {
			b.WriteString("\n")
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • r reload • q quit"))

	case stateInputArgs:
		f := m.session.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(f.file)))
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		f := m.session.funcs[m.selected]
		b.WriteString(fmt.Sprintf("run(%d, %d) on %s:\n\n", m.a, m.b, funcStyle.Render(f.file)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(strconv.Itoa(int(m.result))))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	if len(m.events) > 0 {
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("events:"))
		b.WriteString("\n")
		for _, e := range m.events {
			b.WriteString(helpStyle.Render(formatEvent(e)))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (m *interactiveModel) formatFunc(f *function) string {
	s := handleStyle.Render(fmt.Sprintf("[%d]", f.handle)) + " " + funcStyle.Render(f.file)
	switch {
	case f.err != nil:
		s += " " + errorStyle.Render(f.err.Error())
	case !m.session.rt.Exists(f.handle):
		s += " " + helpStyle.Render("(empty)")
	}
	if m.session.rt.WasTriggered(f.handle) {
		s += " " + guardStyle.Render("guard")
	}
	return s
}

func formatEvent(e registry.Event) string {
	if e.Type == registry.EventReplaced {
		return fmt.Sprintf("  %s %d <- %d", e.Type, e.Handle, e.Source)
	}
	return fmt.Sprintf("  %s %d", e.Type, e.Handle)
}

func runInteractive(cfg *runtime.Config, files []string, a, b int32) error {
	m := newInteractiveModel(cfg, files, a, b)
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.program = p
	_, err := p.Run()
	return err
}
