package corereason

import (
	"testing"
	"time"

	"agentcore/internal/corectl"

	"github.com/stretchr/testify/require"
)

func TestRecordTaskResult_PopulatesAllThreePredicates(t *testing.T) {
	r, err := NewReasoner()
	require.NoError(t, err)

	now := time.Unix(0, 0)
	result := corectl.TaskResult{
		TaskID: "task-1",
		History: []corectl.LoopStepRecord{
			{Step: 1, ResolvedTier: corectl.TierOneAX, EscalationReason: corectl.ReasonNone, Timestamp: now},
			{Step: 2, ResolvedTier: corectl.TierTwoVision, EscalationReason: corectl.ReasonAXDeficient, Timestamp: now},
		},
		Escalations: []corectl.EscalationEvent{
			{Step: 2, FromTier: corectl.TierOneAX, ToTier: corectl.TierTwoVision, Reason: corectl.ReasonAXDeficient, Timestamp: now},
		},
		StructuredErrors: []corectl.StructuredErrorEvent{
			{Step: 3, Error: corectl.StructuredError{Type: corectl.ErrorNetwork, Message: "connection reset"}, Timestamp: now},
		},
	}

	require.NoError(t, RecordTaskResult(r, "task-1", result))

	tierFacts, err := r.GetFacts("tier_resolution")
	require.NoError(t, err)
	require.Len(t, tierFacts, 2)
	require.Equal(t, []interface{}{"task-1", int64(1), "TIER_1_AX", "NONE"}, tierFacts[0].Args)
	require.Equal(t, []interface{}{"task-1", int64(2), "TIER_2_VISION", "AX_DEFICIENT"}, tierFacts[1].Args)

	escFacts, err := r.GetFacts("escalation")
	require.NoError(t, err)
	require.Len(t, escFacts, 1)
	require.Equal(t, []interface{}{"task-1", int64(2), "TIER_1_AX", "TIER_2_VISION"}, escFacts[0].Args)

	errFacts, err := r.GetFacts("structured_error")
	require.NoError(t, err)
	require.Len(t, errFacts, 1)
	require.Equal(t, []interface{}{"task-1", int64(3), "NETWORK", "connection reset"}, errFacts[0].Args)
}

func TestRecordTaskResult_EmptyHistoryInsertsNothing(t *testing.T) {
	r, err := NewReasoner()
	require.NoError(t, err)

	require.NoError(t, RecordTaskResult(r, "task-2", corectl.TaskResult{}))

	facts, err := r.GetFacts("tier_resolution")
	require.NoError(t, err)
	require.Empty(t, facts)
}
