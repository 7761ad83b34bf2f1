package corectl

import (
	"fmt"
	"time"
)

// allowedTransitions is the guarded DAG from §4.1.
var allowedTransitions = map[TaskState]map[TaskState]bool{
	StateIdle:       {StateLoading: true},
	StateLoading:    {StatePerceiving: true, StateFailed: true},
	StatePerceiving: {StateInferring: true, StateFailed: true},
	StateInferring:  {StateActing: true, StatePerceiving: true, StateFailed: true},
	StateActing:     {StatePerceiving: true, StateComplete: true, StateFailed: true},
	StateComplete:   {StateIdle: true},
	StateFailed:     {StateIdle: true},
}

// TaskStateMachine is the guarded FSM tracking one task's lifecycle.
type TaskStateMachine struct {
	current TaskState
	history []TransitionEvent
}

// NewTaskStateMachine returns a machine starting in IDLE.
func NewTaskStateMachine() *TaskStateMachine {
	return &TaskStateMachine{current: StateIdle}
}

// Current returns the machine's current state.
func (m *TaskStateMachine) Current() TaskState {
	return m.current
}

// History returns the recorded transitions in causal order.
func (m *TaskStateMachine) History() []TransitionEvent {
	out := make([]TransitionEvent, len(m.history))
	copy(out, m.history)
	return out
}

// CanTransition reports whether a transition to `to` is currently legal,
// without performing it. Used for conditional transitions during recovery.
func (m *TaskStateMachine) CanTransition(to TaskState) bool {
	allowed, ok := allowedTransitions[m.current]
	return ok && allowed[to]
}

// Transition performs a guarded transition, recording it in history. Illegal
// transitions are a programmer error and panic immediately (§7).
func (m *TaskStateMachine) Transition(to TaskState, step int, url, reason string, errorDetail *string) TransitionEvent {
	if !m.CanTransition(to) {
		panic(fmt.Sprintf("corectl: illegal state transition %s -> %s", m.current, to))
	}
	if to == StateFailed && errorDetail == nil {
		panic("corectl: FAILED transition requires a non-nil errorDetail")
	}
	ev := TransitionEvent{
		From:        m.current,
		To:          to,
		Step:        step,
		URL:         url,
		Reason:      reason,
		ErrorDetail: errorDetail,
		Timestamp:   time.Now(),
	}
	m.current = to
	m.history = append(m.history, ev)
	return ev
}
