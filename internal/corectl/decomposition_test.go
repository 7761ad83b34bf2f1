package corectl_test

import (
	"testing"

	"agentcore/internal/corectl"
	"github.com/stretchr/testify/require"
)

func TestDecompositionManager_SplitsOnSequencingConnectives(t *testing.T) {
	d := corectl.NewDecompositionManager("search for shoes and then click the first result", 2)
	subtasks := d.Subtasks()
	require.Len(t, subtasks, 2)
	require.Equal(t, corectl.SubtaskInProgress, subtasks[0].Status)
	require.Equal(t, corectl.SubtaskPending, subtasks[1].Status)
	require.Equal(t, -1, d.Checkpoint().LastCompletedSubtaskIndex)
}

func TestDecompositionManager_SingleSubtaskWhenNoConnective(t *testing.T) {
	d := corectl.NewDecompositionManager("extract the product price", 2)
	require.Len(t, d.Subtasks(), 1)
	require.Equal(t, corectl.VerifyDataExtracted, d.Subtasks()[0].Verification.Type)
}

func TestDecompositionManager_InfersVerificationFromLexicalCues(t *testing.T) {
	cases := map[string]corectl.VerificationType{
		"navigate to the pricing page":  corectl.VerifyURLMatches,
		"click the submit button":       corectl.VerifyElementPresent,
		"extract the invoice total":     corectl.VerifyDataExtracted,
		"review the order before finishing": corectl.VerifyHumanReview,
		"wait for the spinner":          corectl.VerifyActionConfirmed,
	}
	for intent, want := range cases {
		d := corectl.NewDecompositionManager(intent, 0)
		require.Equal(t, want, d.Subtasks()[0].Verification.Type, intent)
	}
}

func TestDecompositionManager_OnStepVerifiedAdvancesCheckpointAndActivatesNext(t *testing.T) {
	d := corectl.NewDecompositionManager("go to checkout and then click pay", 1)
	d.OnStepVerified(3, "https://shop.test/checkout", corectl.TierOneAX, corectl.ActionClick)

	subtasks := d.Subtasks()
	require.Equal(t, corectl.SubtaskComplete, subtasks[0].Status)
	require.Equal(t, corectl.SubtaskInProgress, subtasks[1].Status)
	require.Equal(t, 0, d.Checkpoint().LastCompletedSubtaskIndex)
	require.Len(t, d.Checkpoint().SubtaskArtifacts, 1)
}

func TestDecompositionManager_RetryFromCheckpointRespectsMaxRetries(t *testing.T) {
	d := corectl.NewDecompositionManager("click the flaky button", 1)
	require.Equal(t, 1, d.Subtasks()[0].AttemptCount)

	require.True(t, d.RetryFromCheckpoint(1, "ACTION_FAILED"))
	require.Equal(t, corectl.SubtaskInProgress, d.Subtasks()[0].Status)
	require.Equal(t, 2, d.Subtasks()[0].AttemptCount)

	require.False(t, d.RetryFromCheckpoint(2, "ACTION_FAILED"))
	require.Equal(t, corectl.SubtaskFailed, d.Subtasks()[0].Status)
	require.Equal(t, 2, d.Subtasks()[0].AttemptCount)
}

func TestDecompositionManager_ZeroMaxRetriesGrantsNone(t *testing.T) {
	d := corectl.NewDecompositionManager("click the flaky button", 0)
	require.False(t, d.RetryFromCheckpoint(1, "ACTION_FAILED"))
	require.Equal(t, corectl.SubtaskFailed, d.Subtasks()[0].Status)
	require.Equal(t, 1, d.Subtasks()[0].AttemptCount)
}

func TestDecompositionManager_OnAllDoneCompletesEveryRemainingSubtask(t *testing.T) {
	d := corectl.NewDecompositionManager("search and then filter and then export", 0)
	d.OnAllDone(5, "https://shop.test/export", corectl.TierOneAX)
	for _, s := range d.Subtasks() {
		require.Equal(t, corectl.SubtaskComplete, s.Status)
	}
}

func TestVerify_URLMatchesAcceptsSubstringOrNavigation(t *testing.T) {
	v := corectl.Verification{Type: corectl.VerifyURLMatches, Condition: "go to the pricing page"}
	require.True(t, corectl.Verify(v, corectl.VerificationInput{NavigationObserved: true}))
	require.False(t, corectl.Verify(v, corectl.VerificationInput{CurrentURL: "https://unrelated.test"}))
}

func TestVerify_ElementPresentMatchesTokensAgainstIndex(t *testing.T) {
	v := corectl.Verification{Type: corectl.VerifyElementPresent, Condition: "click the submit button"}
	in := corectl.VerificationInput{
		InteractiveElements: []corectl.InteractiveElement{{Role: "button", Name: "Submit order"}},
	}
	require.True(t, corectl.Verify(v, in))
}

func TestVerify_WaitNeverConfirmsActionConfirmed(t *testing.T) {
	v := corectl.Verification{Type: corectl.VerifyActionConfirmed}
	require.False(t, corectl.Verify(v, corectl.VerificationInput{Action: corectl.ActionWait}))
	require.True(t, corectl.Verify(v, corectl.VerificationInput{Action: corectl.ActionClick, DomMutationObserved: true}))
}

func TestVerify_HumanReviewNeverSelfConfirms(t *testing.T) {
	v := corectl.Verification{Type: corectl.VerifyHumanReview}
	require.False(t, corectl.Verify(v, corectl.VerificationInput{NavigationObserved: true, DomMutationObserved: true}))
}
