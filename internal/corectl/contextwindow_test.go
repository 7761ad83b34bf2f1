package corectl_test

import (
	"testing"

	"agentcore/internal/corectl"
	"github.com/stretchr/testify/require"
)

func pair(step int, action corectl.ActionKind, url, obs string) corectl.ContextHistoryPair {
	return corectl.ContextHistoryPair{
		Step:        step,
		Action:      corectl.NavigatorActionDecision{Action: action},
		Observation: obs,
		URL:         url,
	}
}

func TestContextWindowManager_RecentWindowBoundedAtFive(t *testing.T) {
	cw := corectl.NewContextWindowManager(1000)
	for i := 1; i <= 8; i++ {
		cw.AppendPair(pair(i, corectl.ActionClick, "https://a.test/page", "obs"))
	}
	snap := cw.BuildSnapshot()
	require.Len(t, snap.RecentPairs, 5)
	require.Equal(t, 4, snap.RecentPairs[0].Step)
	require.Equal(t, 8, snap.RecentPairs[4].Step)
	require.NotNil(t, snap.Summary)
	require.Equal(t, 3, snap.Stats.SummarizedPairCount)
}

func TestContextWindowManager_SummaryMentionsHostsAndActionMix(t *testing.T) {
	cw := corectl.NewContextWindowManager(1000)
	cw.AppendPair(pair(1, corectl.ActionClick, "https://a.test/page", "clicked something"))
	cw.AppendPair(pair(2, corectl.ActionClick, "https://b.test/page", "clicked again"))
	for i := 3; i <= 7; i++ {
		cw.AppendPair(pair(i, corectl.ActionWait, "https://c.test/page", "waited"))
	}
	snap := cw.BuildSnapshot()
	require.NotNil(t, snap.Summary)
	require.Contains(t, *snap.Summary, "a.test")
	require.Contains(t, *snap.Summary, "b.test")
	require.LessOrEqual(t, len(*snap.Summary), corectl.SummaryCharBudget)
}

func TestContextWindowManager_NoSummaryBelowWindowSize(t *testing.T) {
	cw := corectl.NewContextWindowManager(1000)
	cw.AppendPair(pair(1, corectl.ActionClick, "https://a.test", "obs"))
	snap := cw.BuildSnapshot()
	require.Nil(t, snap.Summary)
	require.Equal(t, 0, snap.Stats.SummarizedPairCount)
}

func TestContextWindowManager_TokenAlertRingBufferCapsAt64(t *testing.T) {
	cw := corectl.NewContextWindowManager(100)
	for i := 1; i <= 80; i++ {
		cw.RecordPromptBudget(corectl.PromptBudgetSample{
			Step: i, Tier: corectl.TierOneAX, EstimatedPromptTokens: 200, Threshold: 100,
		})
	}
	alerts := cw.TokenAlerts()
	require.Len(t, alerts, 64)
	require.Equal(t, 17, alerts[0].Step)
	require.Equal(t, 80, alerts[63].Step)
}

func TestContextWindowManager_TracksMaxObservedPromptSize(t *testing.T) {
	cw := corectl.NewContextWindowManager(1000)
	cw.RecordPromptBudget(corectl.PromptBudgetSample{PromptCharCount: 500, EstimatedPromptTokens: 125})
	cw.RecordPromptBudget(corectl.PromptBudgetSample{PromptCharCount: 300, EstimatedPromptTokens: 75})
	require.Equal(t, 500, cw.MaxObservedPromptChars())
	require.Equal(t, 125, cw.MaxObservedPromptTokens())
}
