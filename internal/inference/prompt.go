package inference

import (
	"fmt"
	"strings"

	"agentcore/internal/corectl"
)

const navigatorSystemPrompt = `You are the navigator for a browser automation agent. You are given an
intent, the current page's accessibility tree (and, at tier 2, a viewport
screenshot), and recent history. Respond with exactly one next action as
JSON matching the provided schema. Prefer the cheapest action that makes
verifiable progress toward the intent; set confidence honestly -- a
low-confidence guess should escalate rather than act.`

// buildNavigatorPrompt renders one Observation into the user-turn prompt text.
func buildNavigatorPrompt(intent string, tier corectl.Tier, reason corectl.EscalationReason, obs corectl.Observation) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Intent: %s\n", intent)
	fmt.Fprintf(&b, "Tier: %s\n", tier)
	if reason != "" && reason != corectl.ReasonNone {
		fmt.Fprintf(&b, "Escalation reason: %s\n", reason)
	}
	fmt.Fprintf(&b, "Current URL: %s\n\n", obs.CurrentURL)

	if obs.ActiveSubtask != nil {
		fmt.Fprintf(&b, "Active subtask: %s (%s)\n", obs.ActiveSubtask.Intent, obs.ActiveSubtask.Status)
	}
	if len(obs.TaskSubtasks) > 0 {
		b.WriteString("Subtasks:\n")
		for _, st := range obs.TaskSubtasks {
			fmt.Fprintf(&b, "  - [%s] %s\n", st.Status, st.Intent)
		}
	}

	if obs.HistorySummary != nil && *obs.HistorySummary != "" {
		fmt.Fprintf(&b, "\nHistory summary: %s\n", *obs.HistorySummary)
	}
	if len(obs.PreviousActions) > 0 {
		b.WriteString("\nRecent actions:\n")
		for _, a := range obs.PreviousActions {
			fmt.Fprintf(&b, "  - %s (confidence %.2f): %s\n", a.Action, a.Confidence, a.Reasoning)
		}
	}
	if len(obs.PreviousObservations) > 0 {
		b.WriteString("\nRecent observation notes:\n")
		for _, o := range obs.PreviousObservations {
			fmt.Fprintf(&b, "  - %s\n", o)
		}
	}

	if obs.StructuredError != nil {
		fmt.Fprintf(&b, "\nLast structured error: type=%s message=%s retryable=%t\n",
			obs.StructuredError.Type, obs.StructuredError.Message, obs.StructuredError.Retryable)
	}

	fmt.Fprintf(&b, "\nAccessibility tree:\n%s\n", obs.NormalizedAXTree)

	if tier == corectl.TierTwoVision {
		b.WriteString("\nA viewport screenshot of the current page is attached.\n")
	}

	return b.String()
}
