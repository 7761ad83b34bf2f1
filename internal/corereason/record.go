package corereason

import "agentcore/internal/corectl"

// RecordTaskResult asserts tier_resolution, escalation and structured_error
// facts for one finished task's full history. Call it once a task result is
// available; corereason never observes a task while it is still running.
func RecordTaskResult(r *Reasoner, taskID string, result corectl.TaskResult) error {
	facts := make([]Fact, 0, len(result.History)+len(result.Escalations)+len(result.StructuredErrors))

	for _, step := range result.History {
		facts = append(facts, Fact{
			Predicate: "tier_resolution",
			Args:      []interface{}{taskID, int64(step.Step), string(step.ResolvedTier), string(step.EscalationReason)},
		})
	}
	for _, esc := range result.Escalations {
		facts = append(facts, Fact{
			Predicate: "escalation",
			Args:      []interface{}{taskID, int64(esc.Step), string(esc.FromTier), string(esc.ToTier)},
		})
	}
	for _, se := range result.StructuredErrors {
		facts = append(facts, Fact{
			Predicate: "structured_error",
			Args:      []interface{}{taskID, int64(se.Step), string(se.Error.Type), se.Error.Message},
		})
	}

	return r.AddFacts(facts)
}
