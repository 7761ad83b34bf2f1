package corectl_test

import (
	"testing"

	"agentcore/internal/corectl"
	"github.com/stretchr/testify/require"
)

func TestStateMachine_HappyPathTransitions(t *testing.T) {
	sm := corectl.NewTaskStateMachine()
	require.Equal(t, corectl.StateIdle, sm.Current())

	sm.Transition(corectl.StateLoading, 0, "https://example.com", "submitted", nil)
	sm.Transition(corectl.StatePerceiving, 0, "https://example.com", "navigated", nil)
	sm.Transition(corectl.StateInferring, 1, "https://example.com", "perceived", nil)
	sm.Transition(corectl.StateActing, 1, "https://example.com", "decided", nil)
	sm.Transition(corectl.StateComplete, 1, "https://example.com", "done", nil)
	sm.Transition(corectl.StateIdle, 1, "https://example.com", "cleanup", nil)

	require.Equal(t, corectl.StateIdle, sm.Current())
	require.Len(t, sm.History(), 6)
}

func TestStateMachine_IllegalTransitionPanics(t *testing.T) {
	sm := corectl.NewTaskStateMachine()
	require.Panics(t, func() {
		sm.Transition(corectl.StateActing, 0, "https://example.com", "skip ahead", nil)
	})
}

func TestStateMachine_FailedRequiresErrorDetail(t *testing.T) {
	sm := corectl.NewTaskStateMachine()
	sm.Transition(corectl.StateLoading, 0, "https://example.com", "submitted", nil)
	require.Panics(t, func() {
		sm.Transition(corectl.StateFailed, 0, "https://example.com", "boom", nil)
	})
}

func TestStateMachine_CanTransitionDoesNotMutate(t *testing.T) {
	sm := corectl.NewTaskStateMachine()
	require.True(t, sm.CanTransition(corectl.StateLoading))
	require.False(t, sm.CanTransition(corectl.StateActing))
	require.Equal(t, corectl.StateIdle, sm.Current())
	require.Empty(t, sm.History())
}

func TestStateMachine_InferringCanLoopBackToPerceiving(t *testing.T) {
	sm := corectl.NewTaskStateMachine()
	sm.Transition(corectl.StateLoading, 0, "u", "r", nil)
	sm.Transition(corectl.StatePerceiving, 0, "u", "r", nil)
	sm.Transition(corectl.StateInferring, 1, "u", "r", nil)
	require.True(t, sm.CanTransition(corectl.StatePerceiving))
	sm.Transition(corectl.StatePerceiving, 1, "u", "retry", nil)
	require.Equal(t, corectl.StatePerceiving, sm.Current())
}
