package browserclient

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSignificantMutation_IgnoresTextOnlyChanges(t *testing.T) {
	require.False(t, significantMutation("120:450", "120:461"))
}

func TestSignificantMutation_TriggersOnNodeCountChange(t *testing.T) {
	require.True(t, significantMutation("120:450", "126:450"))
}

func TestSignificantMutation_IdenticalFingerprintsNeverTrigger(t *testing.T) {
	require.False(t, significantMutation("120:450", "120:450"))
}

func TestSplitFingerprint_ParsesNodesAndTextParts(t *testing.T) {
	nodes, text, ok := splitFingerprint("42:17")
	require.True(t, ok)
	require.Equal(t, "42", nodes)
	require.Equal(t, "17", text)
}

func TestSplitFingerprint_MissingSeparatorReturnsWholeStringAsNodes(t *testing.T) {
	nodes, text, ok := splitFingerprint("malformed")
	require.False(t, ok)
	require.Equal(t, "malformed", nodes)
	require.Equal(t, "", text)
}
