package corereason

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewReasoner_LoadsBaseSchema(t *testing.T) {
	r, err := NewReasoner()
	require.NoError(t, err)
	require.NotNil(t, r)

	facts, err := r.GetFacts("tier_resolution")
	require.NoError(t, err)
	require.Empty(t, facts)
}

func TestAddFact_TierResolutionRoundTrips(t *testing.T) {
	r, err := NewReasoner()
	require.NoError(t, err)

	require.NoError(t, r.AddFact("tier_resolution", "task-1", int64(3), "TIER_2_VISION", "AX_DEFICIENT"))

	facts, err := r.GetFacts("tier_resolution")
	require.NoError(t, err)
	require.Len(t, facts, 1)
	require.Equal(t, "tier_resolution", facts[0].Predicate)
	require.Equal(t, []interface{}{"task-1", int64(3), "TIER_2_VISION", "AX_DEFICIENT"}, facts[0].Args)
}

func TestAddFact_EscalationRoundTrips(t *testing.T) {
	r, err := NewReasoner()
	require.NoError(t, err)

	require.NoError(t, r.AddFact("escalation", "task-1", int64(5), "TIER_1_AX", "TIER_2_VISION"))

	facts, err := r.GetFacts("escalation")
	require.NoError(t, err)
	require.Len(t, facts, 1)
	require.Equal(t, []interface{}{"task-1", int64(5), "TIER_1_AX", "TIER_2_VISION"}, facts[0].Args)
}

func TestAddFact_StructuredErrorRoundTrips(t *testing.T) {
	r, err := NewReasoner()
	require.NoError(t, err)

	require.NoError(t, r.AddFact("structured_error", "task-1", int64(7), "NETWORK", "connection reset"))

	facts, err := r.GetFacts("structured_error")
	require.NoError(t, err)
	require.Len(t, facts, 1)
	require.Equal(t, []interface{}{"task-1", int64(7), "NETWORK", "connection reset"}, facts[0].Args)
}

func TestAddFact_RejectsUndeclaredPredicate(t *testing.T) {
	r, err := NewReasoner()
	require.NoError(t, err)

	err = r.AddFact("not_a_real_predicate", "x")
	require.Error(t, err)
}

func TestAddFact_RejectsWrongArity(t *testing.T) {
	r, err := NewReasoner()
	require.NoError(t, err)

	err = r.AddFact("tier_resolution", "task-1", int64(3))
	require.Error(t, err)
}

func TestAddFacts_RejectsBatchWithWrongArityFact(t *testing.T) {
	r, err := NewReasoner()
	require.NoError(t, err)

	err = r.AddFacts([]Fact{
		{Predicate: "tier_resolution", Args: []interface{}{"task-1", int64(1), "TIER_1_AX", "NONE"}},
		{Predicate: "tier_resolution", Args: []interface{}{"task-1", int64(2)}}, // wrong arity
	})
	require.Error(t, err)
}

func TestClear_RemovesAllFacts(t *testing.T) {
	r, err := NewReasoner()
	require.NoError(t, err)

	require.NoError(t, r.AddFact("tier_resolution", "task-1", int64(1), "TIER_1_AX", "NONE"))
	r.Clear()

	facts, err := r.GetFacts("tier_resolution")
	require.NoError(t, err)
	require.Empty(t, facts)
}

func TestGetFacts_UnknownPredicateErrors(t *testing.T) {
	r, err := NewReasoner()
	require.NoError(t, err)

	_, err = r.GetFacts("does_not_exist")
	require.Error(t, err)
}
