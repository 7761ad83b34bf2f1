package corectl_test

import (
	"context"
	"errors"
	"testing"

	"agentcore/internal/corectl"
	"github.com/stretchr/testify/require"
)

func TestClassifyNavigationError_ServerErrorIsRetryable(t *testing.T) {
	status := 503
	serr := corectl.ClassifyNavigationError("https://a.test", corectl.NavigationOutcome{Status: &status, StatusText: "Service Unavailable"}, nil)
	require.Equal(t, corectl.ErrorNetwork, serr.Type)
	require.True(t, serr.Retryable)
}

func TestClassifyNavigationError_ClientErrorIsNotRetryable(t *testing.T) {
	status := 404
	serr := corectl.ClassifyNavigationError("https://a.test", corectl.NavigationOutcome{Status: &status}, nil)
	require.False(t, serr.Retryable)
}

func TestClassifyRuntimeError_DetectsTimeout(t *testing.T) {
	serr := corectl.ClassifyRuntimeError("https://a.test", context.DeadlineExceeded)
	require.Equal(t, corectl.ErrorTimeout, serr.Type)
	require.True(t, serr.Retryable)
}

func TestClassifyRuntimeError_DefaultsToCDP(t *testing.T) {
	serr := corectl.ClassifyRuntimeError("https://a.test", errors.New("element detached from DOM"))
	require.Equal(t, corectl.ErrorCDP, serr.Type)
	require.False(t, serr.Retryable)
}

func TestRecover_SubstitutesWaitWhenEngineFailsOnRetryableError(t *testing.T) {
	engine := &fakeEngine{decisions: []*corectl.NavigatorActionDecision{decision(corectl.ActionFailed, 0.2)}}
	serr := corectl.StructuredError{Type: corectl.ErrorTimeout, URL: "https://a.test", Retryable: true}

	outcome, err := corectl.Recover(context.Background(), engine, "do the thing", serr, corectl.Observation{})
	require.NoError(t, err)
	require.Equal(t, corectl.SourcePolicyFallback, outcome.DecisionSource)
	require.Equal(t, corectl.ActionWait, outcome.Decision.Action)
}

func TestRecover_PassesThroughEngineDecisionWhenNotFailed(t *testing.T) {
	engine := &fakeEngine{decisions: []*corectl.NavigatorActionDecision{decision(corectl.ActionClick, 0.8)}}
	serr := corectl.StructuredError{Type: corectl.ErrorNetwork, URL: "https://a.test", Retryable: true}

	outcome, err := corectl.Recover(context.Background(), engine, "do the thing", serr, corectl.Observation{})
	require.NoError(t, err)
	require.Equal(t, corectl.SourceNavigator, outcome.DecisionSource)
	require.Equal(t, corectl.ActionClick, outcome.Decision.Action)
}

func TestRecover_NonRetryableFailedDecisionIsNotSubstituted(t *testing.T) {
	engine := &fakeEngine{decisions: []*corectl.NavigatorActionDecision{decision(corectl.ActionFailed, 0.1)}}
	serr := corectl.StructuredError{Type: corectl.ErrorCDP, URL: "https://a.test", Retryable: false}

	outcome, err := corectl.Recover(context.Background(), engine, "do the thing", serr, corectl.Observation{})
	require.NoError(t, err)
	require.Equal(t, corectl.SourceNavigator, outcome.DecisionSource)
	require.Equal(t, corectl.ActionFailed, outcome.Decision.Action)
}
