package corectl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotIdle is returned when a task is submitted to a state machine not in IDLE.
	ErrNotIdle = errors.New("corectl: state machine must start in IDLE")
	// ErrEmptyIntent is returned when a task's intent is empty.
	ErrEmptyIntent = errors.New("corectl: intent must not be empty")
	// ErrEmptyStartURL is returned when a task's startUrl is empty.
	ErrEmptyStartURL = errors.New("corectl: startUrl must not be empty")
)

// Orchestrator is the C7 loop orchestrator: it drives the perceive -> infer
// -> act loop for one Task and returns a TaskResult. Each Run call builds
// fresh per-task state; the Orchestrator keeps no state across Run calls
// beyond its injected collaborators.
type Orchestrator struct {
	browser   BrowserClient
	engine    InferenceEngine
	callbacks Callbacks
}

// NewOrchestrator builds an orchestrator bound to a browser client and inference engine.
func NewOrchestrator(browser BrowserClient, engine InferenceEngine, callbacks Callbacks) *Orchestrator {
	return &Orchestrator{browser: browser, engine: engine, callbacks: callbacks}
}

// runState bundles every piece of owned, per-task mutable state (§3 Ownership).
type runState struct {
	sm         *TaskStateMachine
	decomp     *DecompositionManager
	cache      *ObservationCache
	ctxWindow  *ContextWindowManager
	policy     *TieredPolicyEngine
	tunables   Tunables
	taskID     string
	contextID  string
	intent     string
	startURL   string

	structuredErrors []StructuredErrorEvent
	escalations      []EscalationEvent
	axDeficientPages []AXDeficientPageLog
	tierUsage        TierUsage
	history          []LoopStepRecord

	noProgressStreak int
	scrollCount      int
	lastPerceivedURL string
	lastPerception   PerceptionPayload
	haveLastPerception bool
	pendingRefetchReason RefetchReason
}

// Run drives one task through the full perceive/infer/act loop to completion (§4.7).
func (o *Orchestrator) Run(ctx context.Context, task Task) (TaskResult, error) {
	if err := validateTask(task); err != nil {
		return TaskResult{}, err
	}
	tunables := withDefaults(task.Tunables)
	if err := validateTunables(tunables); err != nil {
		return TaskResult{}, err
	}

	taskID := task.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}

	rs := &runState{
		sm:        NewTaskStateMachine(),
		decomp:    NewDecompositionManager(task.Intent, tunables.MaxSubtaskRetries),
		cache:     NewObservationCache(tunables.ObservationCacheTTLMs),
		ctxWindow: NewContextWindowManager(PromptTokenAlertThreshold),
		tunables:  tunables,
		taskID:    taskID,
		contextID: task.ContextID,
		intent:    task.Intent,
		startURL:  task.StartURL,
	}
	rs.decomp.SetStatusSink(o.callbacks.emitSubtaskStatus)
	rs.policy = NewTieredPolicyEngine(o.engine, o.browser, rs.cache, tunables, o.callbacks.logger(), func(step int, tier Tier, est PromptBudgetEstimate) {
		rs.ctxWindow.RecordPromptBudget(PromptBudgetSample{
			Step:                  step,
			Tier:                  tier,
			PromptCharCount:       est.PromptCharCount,
			EstimatedPromptTokens: est.EstimatedPromptTokens,
			Threshold:             est.AlertThreshold,
		})
		switch tier {
		case TierOneAX:
			rs.tierUsage.Tier1Calls++
			rs.tierUsage.EstimatedCostUSD += Tier1CostUSD
		case TierTwoVision:
			rs.tierUsage.Tier2Calls++
			rs.tierUsage.EstimatedCostUSD += Tier2CostUSD
		}
	})

	if rs.sm.Current() != StateIdle {
		return TaskResult{}, ErrNotIdle
	}

	result, err := o.runTask(ctx, task, rs)
	o.callbacks.emitCleanup(result)
	return result, err
}

func validateTask(task Task) error {
	if strings.TrimSpace(task.Intent) == "" {
		return ErrEmptyIntent
	}
	if strings.TrimSpace(task.StartURL) == "" {
		return ErrEmptyStartURL
	}
	return nil
}

func (o *Orchestrator) transition(rs *runState, to TaskState, step int, url, reason string, errorDetail *string) TransitionEvent {
	ev := rs.sm.Transition(to, step, url, reason, errorDetail)
	o.callbacks.emitTransition(ev)
	return ev
}

func (o *Orchestrator) runTask(ctx context.Context, task Task, rs *runState) (TaskResult, error) {
	o.transition(rs, StateLoading, 0, task.StartURL, "task submitted", nil)

	navErr := o.browser.Navigate(ctx, task.StartURL, rs.tunables.NavigationTimeoutMs)
	outcome := o.browser.GetLastNavigationOutcome()
	if navErr != nil || (outcome.Status != nil && *outcome.Status >= 400) {
		serr := ClassifyNavigationError(task.StartURL, outcome, navErr)
		if done := o.handleNavigationFailure(ctx, rs, task, serr); done != nil {
			return *done, nil
		}
	}

	o.transition(rs, StatePerceiving, 0, task.StartURL, "navigation complete", nil)

	for step := 1; step <= rs.tunables.MaxSteps; step++ {
		result, done, err := o.runStep(ctx, rs, task, step)
		if err != nil {
			return TaskResult{}, err
		}
		if done {
			return result, nil
		}
	}

	rs.decomp.MarkActiveFailed(rs.tunables.MaxSteps, ReasonMaxStepsReached)
	detail := "max steps reached"
	o.transition(rs, StateFailed, rs.tunables.MaxSteps, rs.lastPerceivedURL, ReasonMaxStepsReached, &detail)
	o.transition(rs, StateIdle, rs.tunables.MaxSteps, rs.lastPerceivedURL, "cleanup", nil)
	return o.buildResult(rs, ResultMaxSteps, rs.lastPerceivedURL, rs.tunables.MaxSteps, nil, nil, &detail), nil
}

// handleNavigationFailure runs the §4.6 recovery protocol for a failed
// startup navigation and, for unrecoverable errors, finalizes the task. It
// returns a non-nil *TaskResult only when the task has terminated.
func (o *Orchestrator) handleNavigationFailure(ctx context.Context, rs *runState, task Task, serr StructuredError) *TaskResult {
	rs.decomp.MarkActiveFailed(0, ReasonNavigationStructuredError)

	obs := Observation{CurrentURL: task.StartURL, TaskSubtasks: rs.decomp.Subtasks(), CheckpointState: rs.decomp.Checkpoint()}
	outcome, err := Recover(ctx, o.engine, task.Intent, serr, obs)
	if err != nil {
		outcome = RecoveryOutcome{DecisionSource: SourceNavigator}
	}
	rs.structuredErrors = append(rs.structuredErrors, StructuredErrorEvent{
		Step: 0, Error: serr, DecisionSource: outcome.DecisionSource, Decision: outcome.Decision, Timestamp: time.Now(),
	})
	o.callbacks.emitStructuredError(rs.structuredErrors[len(rs.structuredErrors)-1])

	if !serr.Retryable {
		detail := fmt.Sprintf("navigation failed: %s", serr.Message)
		o.transition(rs, StateFailed, 0, task.StartURL, ReasonNavigationStructuredError, &detail)
		o.transition(rs, StateIdle, 0, task.StartURL, "cleanup", nil)
		result := o.buildResult(rs, ResultFailed, task.StartURL, 0, outcome.Decision, nil, &detail)
		return &result
	}
	return nil
}

// runStep executes one iteration of the step loop (§4.7 step 4). It returns
// (result, true, nil) when the task terminated this step.
func (o *Orchestrator) runStep(ctx context.Context, rs *runState, task Task, step int) (TaskResult, bool, error) {
	currentURL, err := o.browser.GetCurrentURL(ctx)
	if err != nil {
		knownURL := rs.lastPerceivedURL
		if knownURL == "" {
			knownURL = rs.startURL
		}
		serr := ClassifyRuntimeError(knownURL, err)
		result := o.routeUnrecoverable(ctx, rs, task, step, serr, ReasonPerceptionStructuredError)
		return result, true, nil
	}

	refetchReason := o.decideRefetchReason(rs, step, currentURL)
	perception, err := o.acquirePerception(ctx, rs, currentURL, refetchReason)
	if err != nil {
		serr := ClassifyRuntimeError(currentURL, err)
		result := o.routeUnrecoverable(ctx, rs, task, step, serr, ReasonPerceptionStructuredError)
		return result, true, nil
	}

	activeSubtask := rs.decomp.ActiveSubtask()
	snapshot := rs.ctxWindow.BuildSnapshot()
	obs := o.buildObservation(rs, currentURL, perception, snapshot, activeSubtask)

	o.transition(rs, StateInferring, step, currentURL, "perceiving complete", nil)

	nowMs := time.Now().UnixMilli()
	resolution, err := rs.policy.Resolve(ctx, step, task.Intent, currentURL, perception, obs, rs.noProgressStreak, rs.scrollCount, nowMs)
	if err != nil {
		serr := ClassifyRuntimeError(currentURL, err)
		result := o.routeUnrecoverable(ctx, rs, task, step, serr, ReasonPerceptionStructuredError)
		return result, true, nil
	}
	rs.scrollCount = resolution.ScrollCount
	if resolution.Tier == TierThreeScroll {
		rs.tierUsage.Tier3Calls++
	}
	if resolution.DomBypass != nil {
		rs.tierUsage.DomBypassResolutions++
	}
	if resolution.AXDeficient {
		rs.axDeficientPages = append(rs.axDeficientPages, AXDeficientPageLog{Step: step, URL: currentURL, Timestamp: time.Now()})
	}
	if resolution.EscalationReason != ReasonNone {
		ev := EscalationEvent{Step: step, FromTier: TierOneAX, ToTier: resolution.Tier, Reason: resolution.EscalationReason, Timestamp: time.Now()}
		rs.escalations = append(rs.escalations, ev)
	}

	o.transition(rs, StateActing, step, currentURL, "decision made", nil)

	execResult, err := o.browser.ExecuteAction(ctx, resolution.Decision)
	if err != nil {
		serr := ClassifyRuntimeError(currentURL, err)
		result := o.routeUnrecoverable(ctx, rs, task, step, serr, ReasonActionStructuredError)
		return result, true, nil
	}

	noProgress := execResult.Status == "acted" && !execResult.NavigationObserved && !execResult.DomMutationObserved && execResult.CurrentURL == currentURL
	if noProgress {
		rs.noProgressStreak++
	} else {
		rs.noProgressStreak = 0
	}

	rs.pendingRefetchReason = o.nextRefetchReason(execResult, currentURL)
	if resolution.Decision.Action == ActionScroll {
		rs.pendingRefetchReason = RefetchScrollAction
	}
	o.invalidateOnTrigger(rs, currentURL, execResult, resolution.Decision.Action)

	verified := false
	if activeSubtask != nil {
		verified = Verify(activeSubtask.Verification, VerificationInput{
			CurrentURL:          execResult.CurrentURL,
			NormalizedCondition: activeSubtask.Verification.Condition,
			NavigationObserved:  execResult.NavigationObserved,
			InteractiveElements: perception.InteractiveElementIndex,
			DomMutationObserved: execResult.DomMutationObserved,
			Action:              resolution.Decision.Action,
			ExtractedData:       execResult.ExtractedData,
		})
		if verified {
			rs.decomp.OnStepVerified(step, execResult.CurrentURL, resolution.Tier, resolution.Decision.Action)
		}
	}

	record := LoopStepRecord{
		Step: step, URL: execResult.CurrentURL, RefetchReason: refetchReason, ResolvedTier: resolution.Tier,
		EscalationReason: resolution.EscalationReason, Decision: resolution.Decision, DecisionSource: SourceNavigator,
		ExecutionStatus: execResult.Status, NoProgressStreak: rs.noProgressStreak, ScrollCount: rs.scrollCount,
		Timestamp: time.Now(),
	}
	rs.history = append(rs.history, record)
	rs.ctxWindow.AppendPair(ContextHistoryPair{
		Step: step, Action: resolution.Decision, Observation: summarizeExecution(execResult),
		URL: execResult.CurrentURL, ResolvedTier: resolution.Tier, Timestamp: time.Now(),
	})
	rs.lastPerceivedURL = execResult.CurrentURL

	if resolution.Decision.Action == ActionDone || execResult.Status == "done" {
		rs.decomp.OnAllDone(step, execResult.CurrentURL, resolution.Tier)
		o.transition(rs, StateComplete, step, execResult.CurrentURL, "task done", nil)
		o.transition(rs, StateIdle, step, execResult.CurrentURL, "cleanup", nil)
		result := o.buildResult(rs, ResultDone, execResult.CurrentURL, step, &resolution.Decision, &execResult, nil)
		return result, true, nil
	}

	if resolution.Decision.Action == ActionFailed || execResult.Status == "failed" {
		if rs.decomp.RetryFromCheckpoint(step, "ACTION_FAILED") {
			rs.noProgressStreak = 0
			rs.scrollCount = 0
			rs.pendingRefetchReason = RefetchURLChanged
			rs.cache.Invalidate(currentURL)
			rs.cache.Invalidate(execResult.CurrentURL)
			o.transition(rs, StatePerceiving, step, execResult.CurrentURL, "retry from checkpoint", nil)
			return TaskResult{}, false, nil
		}
		detail := "subtask failed with no retry available"
		o.transition(rs, StateFailed, step, execResult.CurrentURL, ReasonTaskFailed, &detail)
		o.transition(rs, StateIdle, step, execResult.CurrentURL, "cleanup", nil)
		result := o.buildResult(rs, ResultFailed, execResult.CurrentURL, step, &resolution.Decision, &execResult, &detail)
		return result, true, nil
	}

	if rs.noProgressStreak >= rs.tunables.MaxNoProgressSteps {
		if rs.decomp.RetryFromCheckpoint(step, ReasonNoProgressLoopGuard) {
			rs.noProgressStreak = 0
			rs.scrollCount = 0
			rs.pendingRefetchReason = RefetchURLChanged
			rs.cache.Invalidate(currentURL)
			rs.cache.Invalidate(execResult.CurrentURL)
			o.transition(rs, StatePerceiving, step, execResult.CurrentURL, "retry from checkpoint (loop guard)", nil)
			return TaskResult{}, false, nil
		}
		detail := fmt.Sprintf("no-progress loop guard: %d consecutive steps without progress", rs.noProgressStreak)
		o.transition(rs, StateFailed, step, execResult.CurrentURL, ReasonNoProgressLoopGuard, &detail)
		o.transition(rs, StateIdle, step, execResult.CurrentURL, "cleanup", nil)
		result := o.buildResult(rs, ResultFailed, execResult.CurrentURL, step, &resolution.Decision, &execResult, &detail)
		return result, true, nil
	}

	o.transition(rs, StatePerceiving, step, execResult.CurrentURL, "continue", nil)
	return TaskResult{}, false, nil
}

// routeUnrecoverable runs the §4.6 recovery protocol for an I/O exception and
// finalizes the task FAILED (no in-loop exception is treated as retryable by
// itself; retry is always mediated by the subtask-checkpoint mechanism).
func (o *Orchestrator) routeUnrecoverable(ctx context.Context, rs *runState, task Task, step int, serr StructuredError, namedReason string) TaskResult {
	rs.decomp.MarkActiveFailed(step, namedReason)

	if rs.sm.CanTransition(StateInferring) {
		o.transition(rs, StateInferring, step, serr.URL, "structured error recovery", nil)
	}

	obs := Observation{CurrentURL: serr.URL, TaskSubtasks: rs.decomp.Subtasks(), CheckpointState: rs.decomp.Checkpoint()}
	outcome, err := Recover(ctx, o.engine, task.Intent, serr, obs)
	if err != nil {
		outcome = RecoveryOutcome{DecisionSource: SourceNavigator}
	}
	ev := StructuredErrorEvent{Step: step, Error: serr, DecisionSource: outcome.DecisionSource, Decision: outcome.Decision, Timestamp: time.Now()}
	rs.structuredErrors = append(rs.structuredErrors, ev)
	o.callbacks.emitStructuredError(ev)

	detail := fmt.Sprintf("%s: %s", namedReason, serr.Message)
	if rs.sm.CanTransition(StateFailed) {
		o.transition(rs, StateFailed, step, serr.URL, namedReason, &detail)
	}
	if rs.sm.CanTransition(StateIdle) {
		o.transition(rs, StateIdle, step, serr.URL, "cleanup", nil)
	}
	return o.buildResult(rs, ResultFailed, serr.URL, step, outcome.Decision, nil, &detail)
}

// decideRefetchReason reports why (if at all) this step should re-extract
// perception rather than reuse the cache, per §4.4's invalidation triggers.
func (o *Orchestrator) decideRefetchReason(rs *runState, step int, currentURL string) RefetchReason {
	if step == 1 {
		return RefetchInitial
	}
	if !rs.haveLastPerception {
		return RefetchInitial
	}
	if rs.pendingRefetchReason != RefetchNone && rs.pendingRefetchReason != "" {
		return rs.pendingRefetchReason
	}
	if currentURL != rs.lastPerceivedURL {
		return RefetchURLChanged
	}
	return RefetchNone
}

func (o *Orchestrator) nextRefetchReason(exec ExecutionResult, previousURL string) RefetchReason {
	switch {
	case exec.NavigationObserved:
		return RefetchNavigation
	case exec.CurrentURL != previousURL:
		return RefetchURLChanged
	case exec.SignificantDomMutationObserved:
		return RefetchSignificantDOMMutation
	default:
		return RefetchNone
	}
}

func (o *Orchestrator) acquirePerception(ctx context.Context, rs *runState, currentURL string, reason RefetchReason) (PerceptionPayload, error) {
	nowMs := time.Now().UnixMilli()
	if reason == RefetchNone {
		if cached, _, ok := rs.cache.GetPerception(currentURL, nowMs); ok {
			rs.lastPerception = cached
			rs.haveLastPerception = true
			return cached, nil
		}
	}

	idx, err := o.browser.ExtractInteractiveElementIndex(ctx, InteractiveIndexOptions{IncludeBoundingBoxes: true, CharBudget: interactiveIndexCharBudget})
	if err != nil {
		return PerceptionPayload{}, fmt.Errorf("extract interactive element index: %w", err)
	}
	signals, err := o.browser.GetAXDeficiencySignals(ctx)
	if err != nil {
		return PerceptionPayload{}, fmt.Errorf("get ax deficiency signals: %w", err)
	}
	scroll, err := o.browser.GetScrollPositionSnapshot(ctx)
	if err != nil {
		return PerceptionPayload{}, fmt.Errorf("get scroll position: %w", err)
	}

	payload := PerceptionPayload{
		InteractiveElementIndex: idx.Elements,
		NormalizedTreeEncoding:  idx.NormalizedAXTree.JSON,
		AXDeficiencySignals:     signals,
		ScrollPosition:          scroll,
		AXTreeHash:              hashAXTree(idx.NormalizedAXTree.JSON),
	}
	rs.cache.SetPerception(currentURL, payload, nowMs)
	rs.lastPerception = payload
	rs.haveLastPerception = true
	return payload, nil
}

func hashAXTree(json string) string {
	sum := sha256.Sum256([]byte(json))
	return hex.EncodeToString(sum[:])
}

func (o *Orchestrator) invalidateOnTrigger(rs *runState, urlAtPerception string, exec ExecutionResult, action ActionKind) {
	trigger := exec.NavigationObserved ||
		exec.CurrentURL != urlAtPerception ||
		exec.SignificantDomMutationObserved ||
		action == ActionScroll
	if !trigger {
		return
	}
	rs.cache.Invalidate(urlAtPerception)
	rs.cache.Invalidate(exec.CurrentURL)
}

func (o *Orchestrator) buildObservation(rs *runState, currentURL string, perception PerceptionPayload, snap ContextSnapshot, active *Subtask) Observation {
	actions := make([]NavigatorActionDecision, len(snap.RecentPairs))
	observations := make([]string, len(snap.RecentPairs))
	for i, p := range snap.RecentPairs {
		actions[i] = p.Action
		observations[i] = p.Observation
	}
	return Observation{
		CurrentURL:              currentURL,
		InteractiveElementIndex: perception.InteractiveElementIndex,
		NormalizedAXTree:        perception.NormalizedTreeEncoding,
		PreviousActions:         actions,
		PreviousObservations:    observations,
		HistorySummary:          snap.Summary,
		ContextWindowStats:      snap.Stats,
		TaskSubtasks:            rs.decomp.Subtasks(),
		ActiveSubtask:           active,
		CheckpointState:         rs.decomp.Checkpoint(),
	}
}

func summarizeExecution(exec ExecutionResult) string {
	if exec.Message != "" {
		return exec.Message
	}
	if exec.DomMutationSummary != nil {
		return *exec.DomMutationSummary
	}
	return fmt.Sprintf("status=%s url=%s", exec.Status, exec.CurrentURL)
}

func (o *Orchestrator) buildResult(rs *runState, status ResultStatus, finalURL string, steps int, finalAction *NavigatorActionDecision, finalExec *ExecutionResult, errDetail *string) TaskResult {
	return TaskResult{
		TaskID:                rs.taskID,
		ContextID:             rs.contextID,
		Status:                status,
		Intent:                rs.intent,
		StartURL:              rs.startURL,
		FinalURL:              finalURL,
		StepsTaken:            steps,
		History:               rs.history,
		Decomposition:         rs.decomp.Subtasks(),
		Subtasks:              rs.decomp.Subtasks(),
		Checkpoint:            rs.decomp.Checkpoint(),
		SubtaskStatusTimeline: rs.decomp.Timeline(),
		StructuredErrors:      rs.structuredErrors,
		Escalations:           rs.escalations,
		AXDeficientPages:      rs.axDeficientPages,
		TierUsage:             rs.tierUsage,
		ContextWindow:         rs.ctxWindow.BuildSnapshot().Stats,
		ObservationCache:      rs.cache.Stats(),
		FinalAction:           finalAction,
		FinalExecution:        finalExec,
		ErrorDetail:           errDetail,
		StateTransitions:      rs.sm.History(),
	}
}
