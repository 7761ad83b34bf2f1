package tui

import (
	"agentcore/internal/corectl"

	tea "github.com/charmbracelet/bubbletea"
)

type transitionMsg corectl.TransitionEvent
type subtaskStatusMsg corectl.SubtaskStatusEvent
type structuredErrorMsg corectl.StructuredErrorEvent
type taskCleanupMsg corectl.TaskResult
type taskStreamClosedMsg struct{}

// NewCallbacks builds corectl.Callbacks that forward every event onto
// events as a tea.Msg, for a Model reading from the same channel to
// render. events is owned by the caller; sends block, since step-level
// event volume is low relative to a browser-driven control loop's pace.
func NewCallbacks(events chan<- tea.Msg, logger corectl.Logger) corectl.Callbacks {
	return corectl.Callbacks{
		OnStateTransition: func(ev corectl.TransitionEvent) { events <- transitionMsg(ev) },
		OnSubtaskStatus:   func(ev corectl.SubtaskStatusEvent) { events <- subtaskStatusMsg(ev) },
		OnStructuredError: func(ev corectl.StructuredErrorEvent) { events <- structuredErrorMsg(ev) },
		OnTaskCleanup:     func(result corectl.TaskResult) { events <- taskCleanupMsg(result) },
		Logger:            logger,
	}
}

// NewProgram wires a fresh event channel and Callbacks for one task run. The
// caller drives program.Run() on the main goroutine (Bubbletea owns the
// terminal) while running the orchestrator concurrently with callbacks
// wired in; the model keeps reading events until OnTaskCleanup fires or the
// channel is closed.
func NewProgram(intent string, logger corectl.Logger) (*tea.Program, corectl.Callbacks) {
	events := make(chan tea.Msg, 64)
	callbacks := NewCallbacks(events, logger)
	program := tea.NewProgram(NewModel(intent, events))
	return program, callbacks
}
