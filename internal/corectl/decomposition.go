package corectl

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// splitPattern recognizes the sequencing connectives a decomposer uses to
// split a compound intent into ordered subtasks. The decomposition algorithm
// itself is out of scope (§4.2); this is a deterministic, conservative
// heuristic sufficient to produce >=1 ordered subtask.
var splitPattern = regexp.MustCompile(`(?i)\s*,?\s+(?:and then|then|and)\s+`)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "to": true, "for": true, "of": true,
	"on": true, "in": true, "with": true, "and": true, "then": true,
	"that": true, "this": true, "into": true, "from": true, "is": true,
	"click": true,
}

// DecompositionManager owns subtask decomposition, checkpoint state, and the
// subtask-status timeline for one task (§4.2).
type DecompositionManager struct {
	subtasks   []Subtask
	checkpoint CheckpointState
	timeline   []SubtaskStatusEvent
	maxRetries int
	sink       func(SubtaskStatusEvent)
}

// NewDecompositionManager decomposes intent into >=1 ordered subtask, activates
// the first to IN_PROGRESS, and returns the manager.
func NewDecompositionManager(intent string, maxRetries int) *DecompositionManager {
	parts := splitPattern.Split(strings.TrimSpace(intent), -1)
	subtasks := make([]Subtask, 0, len(parts))
	now := time.Now()
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		status := SubtaskPending
		attemptCount := 0
		if i == 0 {
			status = SubtaskInProgress
			attemptCount = 1
		}
		subtasks = append(subtasks, Subtask{
			ID:            uuid.NewString(),
			Intent:        p,
			Verification:  inferVerification(p),
			Status:        status,
			AttemptCount:  attemptCount,
			LastUpdatedAt: now,
		})
	}
	if len(subtasks) == 0 {
		subtasks = append(subtasks, Subtask{
			ID:            uuid.NewString(),
			Intent:        intent,
			Verification:  inferVerification(intent),
			Status:        SubtaskInProgress,
			AttemptCount:  1,
			LastUpdatedAt: now,
		})
	} else if subtasks[0].Status != SubtaskInProgress {
		subtasks[0].Status = SubtaskInProgress
		subtasks[0].AttemptCount = 1
	}
	return &DecompositionManager{
		subtasks:   subtasks,
		checkpoint: newCheckpointState(),
		maxRetries: maxRetries,
	}
}

// inferVerification assigns a deterministic verification predicate based on
// lexical cues in the subtask intent; defaults to action_confirmed.
func inferVerification(intent string) Verification {
	lower := strings.ToLower(intent)
	switch {
	case strings.Contains(lower, "extract") || strings.Contains(lower, "scrape") || strings.Contains(lower, "collect data"):
		return Verification{Type: VerifyDataExtracted, Condition: intent}
	case strings.Contains(lower, "navigate") || strings.Contains(lower, "go to") || strings.Contains(lower, "visit"):
		return Verification{Type: VerifyURLMatches, Condition: intent}
	case strings.Contains(lower, "review") || strings.Contains(lower, "confirm with") || strings.Contains(lower, "approve"):
		return Verification{Type: VerifyHumanReview, Condition: intent}
	case strings.Contains(lower, "click") || strings.Contains(lower, "select") || strings.Contains(lower, "open"):
		return Verification{Type: VerifyElementPresent, Condition: intent}
	default:
		return Verification{Type: VerifyActionConfirmed, Condition: intent}
	}
}

// Subtasks returns a copy of the current subtask list.
func (d *DecompositionManager) Subtasks() []Subtask {
	out := make([]Subtask, len(d.subtasks))
	copy(out, d.subtasks)
	return out
}

// Checkpoint returns a copy of the current checkpoint state.
func (d *DecompositionManager) Checkpoint() CheckpointState {
	cp := d.checkpoint
	cp.SubtaskArtifacts = append([]SubtaskArtifact(nil), d.checkpoint.SubtaskArtifacts...)
	return cp
}

// Timeline returns the recorded subtask-status events in causal order.
func (d *DecompositionManager) Timeline() []SubtaskStatusEvent {
	out := make([]SubtaskStatusEvent, len(d.timeline))
	copy(out, d.timeline)
	return out
}

// ActiveSubtask returns the (at most one) IN_PROGRESS subtask, if any.
func (d *DecompositionManager) ActiveSubtask() *Subtask {
	for i := range d.subtasks {
		if d.subtasks[i].Status == SubtaskInProgress {
			return &d.subtasks[i]
		}
	}
	return nil
}

func (d *DecompositionManager) activeIndex() int {
	for i := range d.subtasks {
		if d.subtasks[i].Status == SubtaskInProgress {
			return i
		}
	}
	return -1
}

func (d *DecompositionManager) emit(ev SubtaskStatusEvent) {
	ev.Timestamp = time.Now()
	d.timeline = append(d.timeline, ev)
	if d.sink != nil {
		d.sink(ev)
	}
}

// SetStatusSink registers a callback invoked with every subtask-status event
// as it is recorded, so an external stream (e.g. Callbacks.OnSubtaskStatus)
// stays element-for-element in sync with Timeline().
func (d *DecompositionManager) SetStatusSink(sink func(SubtaskStatusEvent)) {
	d.sink = sink
}

// VerificationInput bundles the per-step facts the verification predicates consume.
type VerificationInput struct {
	CurrentURL            string
	NormalizedCondition   string
	NavigationObserved    bool
	InteractiveElements   []InteractiveElement
	DomMutationObserved   bool
	Action                ActionKind
	ExtractedData         any
}

// tokenize splits s into lowercased tokens, dropping stopwords and tokens under 3 chars.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Verify evaluates the active subtask's verification predicate against in (§4.2).
func Verify(v Verification, in VerificationInput) bool {
	switch v.Type {
	case VerifyURLMatches:
		normURL := strings.ToLower(strings.TrimSpace(in.CurrentURL))
		normCond := strings.ToLower(strings.TrimSpace(v.Condition))
		return strings.Contains(normURL, normCond) || in.NavigationObserved
	case VerifyElementPresent:
		tokens := tokenize(v.Condition)
		if len(tokens) == 0 {
			return in.DomMutationObserved
		}
		for _, el := range in.InteractiveElements {
			label := strings.ToLower(el.Role + " " + el.Name + " " + el.Value)
			allPresent := true
			for _, tok := range tokens {
				if !strings.Contains(label, tok) {
					allPresent = false
					break
				}
			}
			if allPresent {
				return true
			}
		}
		return in.DomMutationObserved
	case VerifyDataExtracted:
		if in.Action == ActionExtract {
			return true
		}
		return in.ExtractedData != nil
	case VerifyActionConfirmed:
		// A WAIT never confirms, per the spec's conservative open-question reading.
		if in.Action == ActionWait {
			return false
		}
		return in.NavigationObserved || in.DomMutationObserved || in.Action != ""
	case VerifyHumanReview:
		return false
	default:
		return false
	}
}

// OnStepVerified processes a successful verification: completes the active
// subtask, advances the checkpoint, appends an artifact, and activates the
// next pending subtask (§4.2).
func (d *DecompositionManager) OnStepVerified(step int, url string, tier Tier, action ActionKind) {
	idx := d.activeIndex()
	if idx < 0 {
		return
	}
	now := time.Now()
	d.subtasks[idx].Status = SubtaskComplete
	stepCopy := step
	d.subtasks[idx].CompletedStep = &stepCopy
	d.subtasks[idx].LastUpdatedAt = now

	d.checkpoint.LastCompletedSubtaskIndex = idx
	d.checkpoint.CurrentSubtaskAttempt = 0
	d.checkpoint.SubtaskArtifacts = append(d.checkpoint.SubtaskArtifacts, SubtaskArtifact{
		SubtaskID:     d.subtasks[idx].ID,
		Step:          step,
		CompletionURL: url,
		ResolvedTier:  tier,
		Action:        action,
		Timestamp:     now,
	})
	d.emit(SubtaskStatusEvent{SubtaskID: d.subtasks[idx].ID, Status: SubtaskComplete, Reason: "VERIFIED", Step: step})

	for i := idx + 1; i < len(d.subtasks); i++ {
		if d.subtasks[i].Status == SubtaskPending {
			d.subtasks[i].Status = SubtaskInProgress
			d.subtasks[i].AttemptCount = 1
			d.subtasks[i].LastUpdatedAt = now
			break
		}
	}
}

// OnAllDone marks every non-complete subtask COMPLETE with a synthetic
// terminal artifact, for the DONE terminal condition (§4.2).
func (d *DecompositionManager) OnAllDone(step int, url string, tier Tier) {
	now := time.Now()
	for i := range d.subtasks {
		if d.subtasks[i].Status != SubtaskComplete {
			d.subtasks[i].Status = SubtaskComplete
			stepCopy := step
			d.subtasks[i].CompletedStep = &stepCopy
			d.subtasks[i].LastUpdatedAt = now
			d.checkpoint.LastCompletedSubtaskIndex = i
			d.checkpoint.SubtaskArtifacts = append(d.checkpoint.SubtaskArtifacts, SubtaskArtifact{
				SubtaskID:     d.subtasks[i].ID,
				Step:          step,
				CompletionURL: url,
				ResolvedTier:  tier,
				Action:        ActionDone,
				Timestamp:     now,
			})
			d.emit(SubtaskStatusEvent{SubtaskID: d.subtasks[i].ID, Status: SubtaskComplete, Reason: "TASK_DONE", Step: step})
		}
	}
}

// RetryFromCheckpoint handles a step failure while a subtask is IN_PROGRESS:
// marks it FAILED, and if attemptCount <= maxSubtaskRetries (attemptCount
// counts total attempts starting at 1), re-activates it (emitting FAILED
// then RETRY_FROM_CHECKPOINT). Returns whether a retry was granted (§4.2).
func (d *DecompositionManager) RetryFromCheckpoint(step int, reason string) bool {
	idx := d.activeIndex()
	if idx < 0 {
		return false
	}
	now := time.Now()
	d.subtasks[idx].Status = SubtaskFailed
	stepCopy := step
	d.subtasks[idx].FailedStep = &stepCopy
	d.subtasks[idx].LastUpdatedAt = now
	d.emit(SubtaskStatusEvent{SubtaskID: d.subtasks[idx].ID, Status: SubtaskFailed, Reason: reason, Step: step})

	if d.subtasks[idx].AttemptCount <= d.maxRetries {
		d.subtasks[idx].AttemptCount++
		d.subtasks[idx].Status = SubtaskInProgress
		d.subtasks[idx].LastUpdatedAt = now
		d.checkpoint.CurrentSubtaskAttempt = d.subtasks[idx].AttemptCount
		d.emit(SubtaskStatusEvent{SubtaskID: d.subtasks[idx].ID, Status: SubtaskInProgress, Reason: "RETRY_FROM_CHECKPOINT", Step: step})
		return true
	}
	return false
}

// MarkActiveFailed marks the active subtask FAILED without attempting a retry
// (used for unrecoverable terminal failures such as MAX_STEPS_REACHED).
func (d *DecompositionManager) MarkActiveFailed(step int, reason string) {
	idx := d.activeIndex()
	if idx < 0 {
		return
	}
	now := time.Now()
	d.subtasks[idx].Status = SubtaskFailed
	stepCopy := step
	d.subtasks[idx].FailedStep = &stepCopy
	d.subtasks[idx].LastUpdatedAt = now
	d.emit(SubtaskStatusEvent{SubtaskID: d.subtasks[idx].ID, Status: SubtaskFailed, Reason: reason, Step: step})
}

// ImpliedStepCount estimates the number of browser steps the decomposition
// implies, recorded for observability: one step per subtask at minimum.
func (d *DecompositionManager) ImpliedStepCount() int {
	return len(d.subtasks)
}

// String renders the subtask list for debugging/logging.
func (d *DecompositionManager) String() string {
	var b strings.Builder
	for i, s := range d.subtasks {
		fmt.Fprintf(&b, "%d. [%s] %s (%s)\n", i+1, s.Status, s.Intent, s.Verification.Type)
	}
	return b.String()
}
