package tui

import (
	"fmt"
	"strings"
	"time"

	"agentcore/internal/corectl"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Model renders one task's Callbacks stream as a scrolling event log.
type Model struct {
	styles   styles
	spinner  spinner.Model
	viewport viewport.Model
	events   <-chan tea.Msg

	intent string
	state  corectl.TaskState
	lines  []string

	width, height int
	ready         bool
	done          bool
	result        *corectl.TaskResult
}

// NewModel builds a Model reading task events off events until it is closed
// or a taskCleanupMsg arrives.
func NewModel(intent string, events <-chan tea.Msg) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		styles:  newStyles(),
		spinner: sp,
		events:  events,
		intent:  intent,
		state:   corectl.StateIdle,
	}
}

func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return taskStreamClosedMsg{}
		}
		return msg
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		const headerHeight, footerHeight = 1, 1
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.viewport.SetContent(strings.Join(m.lines, "\n"))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case transitionMsg:
		m.state = msg.To
		m.appendLine(m.styles.StateLine.Render(fmt.Sprintf("step %d: %s -> %s (%s)", msg.Step, msg.From, msg.To, msg.Reason)))
		return m, waitForEvent(m.events)

	case subtaskStatusMsg:
		m.appendLine(m.styles.Info.Render(fmt.Sprintf("subtask %s: %s (%s)", msg.SubtaskID, msg.Status, msg.Reason)))
		return m, waitForEvent(m.events)

	case structuredErrorMsg:
		m.appendLine(m.styles.Error.Render(fmt.Sprintf("step %d error [%s]: %s", msg.Step, msg.Error.Type, msg.Error.Message)))
		return m, waitForEvent(m.events)

	case taskCleanupMsg:
		result := corectl.TaskResult(msg)
		m.result = &result
		m.done = true
		m.appendLine(m.styles.StateLine.Render(fmt.Sprintf("task %s finished: %s after %d steps", result.TaskID, result.Status, result.StepsTaken)))
		return m, nil

	case taskStreamClosedMsg:
		m.done = true
		return m, nil
	}
	return m, nil
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, fmt.Sprintf("%s  %s", time.Now().Format("15:04:05"), line))
	if m.ready {
		m.viewport.SetContent(strings.Join(m.lines, "\n"))
		m.viewport.GotoBottom()
	}
}

func (m Model) View() string {
	if !m.ready {
		return "initializing...\n"
	}

	status := string(m.state)
	if !m.done {
		status = m.spinner.View() + " " + status
	}
	header := m.styles.Header.Render(fmt.Sprintf("agentcore  %s  [%s]", m.intent, status))
	footer := m.styles.Footer.Render("q/ctrl+c to quit")

	return header + "\n" + m.viewport.View() + "\n" + footer
}

// Result returns the finished task's result, if one has been received.
func (m Model) Result() *corectl.TaskResult {
	return m.result
}
