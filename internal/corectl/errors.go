package corectl

import (
	"context"
	"errors"
	"strings"
)

// Named FAILED-transition reasons (§7).
const (
	ReasonNavigationStructuredError = "NAVIGATION_STRUCTURED_ERROR"
	ReasonPerceptionStructuredError = "PERCEPTION_STRUCTURED_ERROR"
	ReasonActionStructuredError     = "ACTION_STRUCTURED_ERROR"
	ReasonUnhandledException        = "UNHANDLED_EXCEPTION"
	ReasonNoProgressLoopGuard       = "NO_PROGRESS_LOOP_GUARD"
	ReasonMaxStepsReached           = "MAX_STEPS_REACHED"
	ReasonTaskFailed                = "TASK_FAILED"
)

// ClassifyNavigationError builds a StructuredError from a navigation outcome (§4.6, §7).
func ClassifyNavigationError(url string, outcome NavigationOutcome, err error) StructuredError {
	if outcome.Status != nil && *outcome.Status >= 400 {
		status := *outcome.Status
		return StructuredError{
			Type:      ErrorNetwork,
			Status:    &status,
			URL:       url,
			Message:   outcome.StatusText,
			Retryable: status >= 500,
		}
	}
	msg := outcome.ErrorText
	if msg == "" && err != nil {
		msg = err.Error()
	}
	return StructuredError{
		Type:      ErrorNetwork,
		URL:       url,
		Message:   msg,
		Retryable: true,
	}
}

// ClassifyRuntimeError builds a StructuredError for a perception/action
// exception, defaulting to CDP when the underlying kind can't be determined (§4.6, §7).
func ClassifyRuntimeError(url string, err error) StructuredError {
	kind := ErrorCDP
	msg := ""
	if err != nil {
		msg = err.Error()
		lower := strings.ToLower(msg)
		switch {
		case strings.Contains(lower, "timeout") || errors.Is(err, context.DeadlineExceeded):
			kind = ErrorTimeout
		case strings.Contains(lower, "network") || strings.Contains(lower, "connection") || strings.Contains(lower, "dns"):
			kind = ErrorNetwork
		case strings.Contains(lower, "panic") || strings.Contains(lower, "nil pointer") || strings.Contains(lower, "runtime error"):
			kind = ErrorRuntime
		}
	}
	retryable := kind == ErrorNetwork || kind == ErrorTimeout
	return StructuredError{
		Type:      kind,
		URL:       url,
		Message:   msg,
		Retryable: retryable,
	}
}

// RecoveryOutcome is what the structured-error recovery protocol produces.
type RecoveryOutcome struct {
	Decision       *NavigatorActionDecision
	DecisionSource DecisionSource
}

// Recover runs the §4.6 recovery protocol: it calls the inference engine with
// an observation carrying the StructuredError, then applies the
// retryable-fallback policy. It performs no state-machine transitions and no
// browser action dispatch; the caller (orchestrator) is responsible for those.
func Recover(ctx context.Context, engine InferenceEngine, intent string, serr StructuredError, obs Observation) (RecoveryOutcome, error) {
	obs.StructuredError = &serr
	decision, err := engine.DecideNextAction(ctx, intent, TierOneAX, ReasonNone, obs)
	if err != nil {
		return RecoveryOutcome{}, err
	}
	return applyRetryableFallback(decision, serr), nil
}

// applyRetryableFallback implements §4.6 step 4: if the engine returned no
// decision and the error is retryable, or the engine returned FAILED for a
// retryable error, substitute a deterministic short WAIT.
func applyRetryableFallback(decision *NavigatorActionDecision, serr StructuredError) RecoveryOutcome {
	needsFallback := serr.Retryable && (decision == nil || decision.Action == ActionFailed)
	if !needsFallback {
		return RecoveryOutcome{Decision: decision, DecisionSource: SourceNavigator}
	}
	prevConfidence := 0.0
	if decision != nil {
		prevConfidence = decision.Confidence
	}
	confidence := prevConfidence
	if confidence < 0.5 {
		confidence = 0.5
	}
	text := "1000"
	fallback := &NavigatorActionDecision{
		Action:     ActionWait,
		Text:       &text,
		Confidence: confidence,
		Reasoning:  "retryable-fallback policy: substituting WAIT after a retryable structured error",
	}
	return RecoveryOutcome{Decision: fallback, DecisionSource: SourcePolicyFallback}
}
