package corectl_test

import (
	"context"
	"testing"

	"agentcore/internal/corectl"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func baseTunables() corectl.Tunables {
	t := corectl.DefaultTunables()
	t.MaxSteps = 10
	t.MaxNoProgressSteps = 2
	t.MaxSubtaskRetries = 0
	return t
}

func TestOrchestrator_CompletesOnDoneDecision(t *testing.T) {
	browser := &fakeBrowser{
		navOutcome: corectl.NavigationOutcome{FinalURL: "https://example.com"},
		currentURL: "https://example.com",
		signals:    richSignals(),
		execSeq: []corectl.ExecutionResult{
			{Status: "done", CurrentURL: "https://example.com"},
		},
	}
	engine := &fakeEngine{decisions: []*corectl.NavigatorActionDecision{decision(corectl.ActionDone, 0.95)}}

	o := corectl.NewOrchestrator(browser, engine, corectl.Callbacks{})
	result, err := o.Run(context.Background(), corectl.Task{
		Intent: "open the homepage", StartURL: "https://example.com", Tunables: baseTunables(),
	})
	require.NoError(t, err)
	require.Equal(t, corectl.ResultDone, result.Status)
	require.Equal(t, 1, result.StepsTaken)
	require.Equal(t, "https://example.com", result.StartURL)
	require.NotEmpty(t, result.Decomposition)
	require.Equal(t, corectl.SubtaskComplete, result.Decomposition[0].Status)
}

func TestOrchestrator_NonRetryableNavigationFails(t *testing.T) {
	status404 := 404
	browser := &fakeBrowser{
		navOutcome: corectl.NavigationOutcome{FinalURL: "https://example.com/missing", Status: &status404, StatusText: "Not Found"},
		currentURL: "https://example.com/missing",
	}
	engine := &fakeEngine{decisions: []*corectl.NavigatorActionDecision{decision(corectl.ActionWait, 0.5)}}

	o := corectl.NewOrchestrator(browser, engine, corectl.Callbacks{})
	result, err := o.Run(context.Background(), corectl.Task{
		Intent: "open the page", StartURL: "https://example.com/missing", Tunables: baseTunables(),
	})
	require.NoError(t, err)
	require.Equal(t, corectl.ResultFailed, result.Status)
	require.Equal(t, 0, result.StepsTaken)
	require.Len(t, result.StructuredErrors, 1)
	require.Equal(t, corectl.ErrorNetwork, result.StructuredErrors[0].Error.Type)
	require.False(t, result.StructuredErrors[0].Error.Retryable)
}

func TestOrchestrator_RetryableNavigationProceedsToCompletion(t *testing.T) {
	status503 := 503
	browser := &fakeBrowser{
		navOutcome: corectl.NavigationOutcome{FinalURL: "https://example.com", Status: &status503, StatusText: "Service Unavailable"},
		currentURL: "https://example.com",
		signals:    richSignals(),
		execSeq: []corectl.ExecutionResult{
			{Status: "done", CurrentURL: "https://example.com"},
		},
	}
	engine := &fakeEngine{decisions: []*corectl.NavigatorActionDecision{decision(corectl.ActionDone, 0.9)}}

	o := corectl.NewOrchestrator(browser, engine, corectl.Callbacks{})
	result, err := o.Run(context.Background(), corectl.Task{
		Intent: "open the page", StartURL: "https://example.com", Tunables: baseTunables(),
	})
	require.NoError(t, err)
	require.Equal(t, corectl.ResultDone, result.Status)
	require.Zero(t, result.TierUsage.Tier2Calls)
}

func TestOrchestrator_MaxStepsReached(t *testing.T) {
	tunables := baseTunables()
	tunables.MaxSteps = 2

	browser := &fakeBrowser{
		navOutcome: corectl.NavigationOutcome{FinalURL: "https://example.com"},
		currentURL: "https://example.com",
		signals:    richSignals(),
		execSeq: []corectl.ExecutionResult{
			{Status: "acted", CurrentURL: "https://example.com", DomMutationObserved: true},
			{Status: "acted", CurrentURL: "https://example.com", DomMutationObserved: true},
		},
	}
	engine := &fakeEngine{decisions: []*corectl.NavigatorActionDecision{decision(corectl.ActionClick, 0.9)}}

	o := corectl.NewOrchestrator(browser, engine, corectl.Callbacks{})
	result, err := o.Run(context.Background(), corectl.Task{
		Intent: "click forever", StartURL: "https://example.com", Tunables: tunables,
	})
	require.NoError(t, err)
	require.Equal(t, corectl.ResultMaxSteps, result.Status)
	require.Equal(t, 2, result.StepsTaken)
}

func TestOrchestrator_NoProgressLoopGuardFailsAfterRetryExhausted(t *testing.T) {
	tunables := baseTunables()
	tunables.MaxNoProgressSteps = 2
	tunables.MaxSubtaskRetries = 0

	browser := &fakeBrowser{
		navOutcome: corectl.NavigationOutcome{FinalURL: "https://example.com"},
		currentURL: "https://example.com",
		signals:    richSignals(),
		execSeq: []corectl.ExecutionResult{
			{Status: "acted", CurrentURL: "https://example.com"},
		},
	}
	engine := &fakeEngine{decisions: []*corectl.NavigatorActionDecision{decision(corectl.ActionClick, 0.9)}}

	o := corectl.NewOrchestrator(browser, engine, corectl.Callbacks{})
	result, err := o.Run(context.Background(), corectl.Task{
		Intent: "click the same dead button", StartURL: "https://example.com", Tunables: tunables,
	})
	require.NoError(t, err)
	require.Equal(t, corectl.ResultFailed, result.Status)
	require.NotNil(t, result.ErrorDetail)
	require.Contains(t, *result.ErrorDetail, "no-progress loop guard")
}

func TestOrchestrator_AXDeficiencyEscalatesToTier2(t *testing.T) {
	browser := &fakeBrowser{
		navOutcome: corectl.NavigationOutcome{FinalURL: "https://example.com"},
		currentURL: "https://example.com",
		signals: corectl.AXDeficiencySignals{
			ReadyState: "complete", IsLoadComplete: true, HasSignificantVisualContent: true, VisibleElementCount: 1, DOMInteractiveCandidateCount: 1,
		},
		execSeq: []corectl.ExecutionResult{
			{Status: "done", CurrentURL: "https://example.com"},
		},
	}
	engine := &fakeEngine{decisions: []*corectl.NavigatorActionDecision{decision(corectl.ActionDone, 0.9)}}

	o := corectl.NewOrchestrator(browser, engine, corectl.Callbacks{})
	result, err := o.Run(context.Background(), corectl.Task{
		Intent: "finish the deficient page", StartURL: "https://example.com", Tunables: baseTunables(),
	})
	require.NoError(t, err)
	require.Equal(t, corectl.ResultDone, result.Status)
	require.Equal(t, 1, result.TierUsage.Tier2Calls)
	require.Len(t, result.AXDeficientPages, 1)
	require.Len(t, result.Escalations, 1)
	require.Equal(t, corectl.ReasonAXDeficient, result.Escalations[0].Reason)
}

func TestOrchestrator_RejectsEmptyIntent(t *testing.T) {
	o := corectl.NewOrchestrator(&fakeBrowser{}, &fakeEngine{}, corectl.Callbacks{})
	_, err := o.Run(context.Background(), corectl.Task{StartURL: "https://example.com"})
	require.ErrorIs(t, err, corectl.ErrEmptyIntent)
}

func TestOrchestrator_RejectsEmptyStartURL(t *testing.T) {
	o := corectl.NewOrchestrator(&fakeBrowser{}, &fakeEngine{}, corectl.Callbacks{})
	_, err := o.Run(context.Background(), corectl.Task{Intent: "do something"})
	require.ErrorIs(t, err, corectl.ErrEmptyStartURL)
}

func TestOrchestrator_EmitsTransitionCallbacks(t *testing.T) {
	browser := &fakeBrowser{
		navOutcome: corectl.NavigationOutcome{FinalURL: "https://example.com"},
		currentURL: "https://example.com",
		signals:    richSignals(),
		execSeq: []corectl.ExecutionResult{
			{Status: "done", CurrentURL: "https://example.com"},
		},
	}
	engine := &fakeEngine{decisions: []*corectl.NavigatorActionDecision{decision(corectl.ActionDone, 0.9)}}

	var seen []corectl.TaskState
	o := corectl.NewOrchestrator(browser, engine, corectl.Callbacks{
		OnStateTransition: func(ev corectl.TransitionEvent) { seen = append(seen, ev.To) },
	})
	_, err := o.Run(context.Background(), corectl.Task{
		Intent: "go home", StartURL: "https://example.com", Tunables: baseTunables(),
	})
	require.NoError(t, err)
	require.Equal(t, []corectl.TaskState{
		corectl.StateLoading, corectl.StatePerceiving, corectl.StateInferring,
		corectl.StateActing, corectl.StateComplete, corectl.StateIdle,
	}, seen)
}
