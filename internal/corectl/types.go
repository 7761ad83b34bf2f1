// Package corectl implements the perception-action control core: a bounded
// perceive -> infer -> act loop that drives a browser page toward a
// natural-language intent. The core owns no browser and no model; it is
// driven entirely through the BrowserClient and InferenceEngine interfaces
// in interfaces.go.
package corectl

import "time"

// TaskState is one of the guarded finite-state machine states in §4.1.
type TaskState string

const (
	StateIdle       TaskState = "IDLE"
	StateLoading    TaskState = "LOADING"
	StatePerceiving TaskState = "PERCEIVING"
	StateInferring  TaskState = "INFERRING"
	StateActing     TaskState = "ACTING"
	StateComplete   TaskState = "COMPLETE"
	StateFailed     TaskState = "FAILED"
)

// ResultStatus is the terminal status of a TaskResult.
type ResultStatus string

const (
	ResultDone     ResultStatus = "DONE"
	ResultFailed   ResultStatus = "FAILED"
	ResultMaxSteps ResultStatus = "MAX_STEPS"
)

// Tier identifies which perception/inference mode resolved a step.
type Tier string

const (
	TierOneAX     Tier = "TIER_1_AX"
	TierTwoVision Tier = "TIER_2_VISION"
	TierThreeScroll Tier = "TIER_3_SCROLL"
)

// EscalationReason explains why a step escalated past Tier 1.
type EscalationReason string

const (
	ReasonNone         EscalationReason = "NONE"
	ReasonNoProgress   EscalationReason = "NO_PROGRESS"
	ReasonAXDeficient  EscalationReason = "AX_DEFICIENT"
	ReasonLowConfidence EscalationReason = "LOW_CONFIDENCE"
	ReasonUnsafeAction EscalationReason = "UNSAFE_ACTION"
)

// RefetchReason explains why the orchestrator re-extracted the AX tree for a step.
type RefetchReason string

const (
	RefetchInitial               RefetchReason = "INITIAL"
	RefetchURLChanged            RefetchReason = "URL_CHANGED"
	RefetchNavigation            RefetchReason = "NAVIGATION"
	RefetchSignificantDOMMutation RefetchReason = "SIGNIFICANT_DOM_MUTATION"
	RefetchScrollAction          RefetchReason = "SCROLL_ACTION"
	RefetchNone                  RefetchReason = "NONE"
)

// ActionKind enumerates the navigator's action vocabulary.
type ActionKind string

const (
	ActionClick    ActionKind = "CLICK"
	ActionType     ActionKind = "TYPE"
	ActionScroll   ActionKind = "SCROLL"
	ActionWait     ActionKind = "WAIT"
	ActionExtract  ActionKind = "EXTRACT"
	ActionPressKey ActionKind = "PRESS_KEY"
	ActionDone     ActionKind = "DONE"
	ActionFailed   ActionKind = "FAILED"
)

// DecisionSource records whether a decision came straight from the inference
// engine or was substituted by the retryable-fallback policy (§4.6 step 4).
type DecisionSource string

const (
	SourceNavigator     DecisionSource = "NAVIGATOR"
	SourcePolicyFallback DecisionSource = "POLICY_FALLBACK"
)

// VerificationType is the kind of predicate a subtask is verified against.
type VerificationType string

const (
	VerifyURLMatches      VerificationType = "url_matches"
	VerifyElementPresent  VerificationType = "element_present"
	VerifyDataExtracted   VerificationType = "data_extracted"
	VerifyHumanReview     VerificationType = "human_review"
	VerifyActionConfirmed VerificationType = "action_confirmed"
)

// SubtaskStatus is the lifecycle status of one decomposed subtask.
type SubtaskStatus string

const (
	SubtaskPending    SubtaskStatus = "PENDING"
	SubtaskInProgress SubtaskStatus = "IN_PROGRESS"
	SubtaskComplete   SubtaskStatus = "COMPLETE"
	SubtaskFailed     SubtaskStatus = "FAILED"
)

// ErrorKind is the four-member structured error taxonomy (§7).
type ErrorKind string

const (
	ErrorNetwork ErrorKind = "NETWORK"
	ErrorRuntime ErrorKind = "RUNTIME"
	ErrorCDP     ErrorKind = "CDP"
	ErrorTimeout ErrorKind = "TIMEOUT"
)

// Point is a 2D viewport coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Verification describes how a subtask's completion is detected.
type Verification struct {
	Type      VerificationType `json:"type"`
	Condition string            `json:"condition"`
}

// Subtask is one step of a decomposed intent.
type Subtask struct {
	ID            string        `json:"id"`
	Intent        string        `json:"intent"`
	Verification  Verification  `json:"verification"`
	Status        SubtaskStatus `json:"status"`
	AttemptCount  int           `json:"attemptCount"`
	CompletedStep *int          `json:"completedStep,omitempty"`
	FailedStep    *int          `json:"failedStep,omitempty"`
	LastUpdatedAt time.Time     `json:"lastUpdatedAt"`
}

// SubtaskArtifact records the completion evidence for one subtask.
type SubtaskArtifact struct {
	SubtaskID     string    `json:"subtaskId"`
	Step          int       `json:"step"`
	CompletionURL string    `json:"completionUrl"`
	ResolvedTier  Tier      `json:"resolvedTier"`
	Action        ActionKind `json:"action"`
	Timestamp     time.Time `json:"timestamp"`
}

// CheckpointState is the immutable-by-decrement record of subtask progress.
type CheckpointState struct {
	LastCompletedSubtaskIndex int               `json:"lastCompletedSubtaskIndex"`
	CurrentSubtaskAttempt     int               `json:"currentSubtaskAttempt"`
	SubtaskArtifacts          []SubtaskArtifact `json:"subtaskArtifacts"`
}

// newCheckpointState returns the initial checkpoint (§3: initial -1).
func newCheckpointState() CheckpointState {
	return CheckpointState{LastCompletedSubtaskIndex: -1}
}

// PerceptionPayload is the normalized observation captured for a URL.
type PerceptionPayload struct {
	InteractiveElementIndex []InteractiveElement `json:"interactiveElementIndex"`
	NormalizedTreeEncoding  string                `json:"normalizedTreeEncoding"`
	AXDeficiencySignals     AXDeficiencySignals   `json:"axDeficiencySignals"`
	ScrollPosition          ScrollPosition        `json:"scrollPosition"`
	AXTreeHash              string                `json:"axTreeHash"`
}

// InteractiveElement is one entry of the interactive-element index.
type InteractiveElement struct {
	NodeID      string       `json:"nodeId"`
	Role        string       `json:"role"`
	Name        string       `json:"name"`
	Value       string       `json:"value"`
	BoundingBox *BoundingBox `json:"boundingBox,omitempty"`
}

// BoundingBox is a viewport-relative element rectangle.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// AXDeficiencySignals are the inputs to the AX-deficiency heuristic (§4.5).
type AXDeficiencySignals struct {
	ReadyState                  string `json:"readyState"`
	IsLoadComplete               bool   `json:"isLoadComplete"`
	HasSignificantVisualContent bool   `json:"hasSignificantVisualContent"`
	VisibleElementCount          int    `json:"visibleElementCount"`
	TextCharCount                int    `json:"textCharCount"`
	MediaElementCount             int    `json:"mediaElementCount"`
	DOMInteractiveCandidateCount int    `json:"domInteractiveCandidateCount"`
}

// ScrollPosition is the current scroll offset and remaining scroll distance.
type ScrollPosition struct {
	ScrollY         float64 `json:"scrollY"`
	ViewportHeight  float64 `json:"viewportHeight"`
	DocumentHeight  float64 `json:"documentHeight"`
	RemainingScrollPx float64 `json:"remainingScrollPx"`
}

// ScreenshotPayload is a captured viewport (or full-page) screenshot.
type ScreenshotPayload struct {
	Base64   string `json:"base64"`
	MimeType string `json:"mimeType"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Mode     string `json:"mode"`
}

// NavigatorActionDecision is what the inference engine returns per step.
type NavigatorActionDecision struct {
	Action     ActionKind `json:"action"`
	Target     *Point     `json:"target,omitempty"`
	Text       *string    `json:"text,omitempty"`
	Confidence float64    `json:"confidence"`
	Reasoning  string     `json:"reasoning"`
}

// StructuredError is the single error vocabulary surfaced across the core (§7).
type StructuredError struct {
	Type      ErrorKind `json:"type"`
	Status    *int      `json:"status,omitempty"`
	URL       string    `json:"url"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
}

// ContextHistoryPair is one recorded action/observation pair (§3).
type ContextHistoryPair struct {
	Step         int       `json:"step"`
	Action       NavigatorActionDecision `json:"action"`
	Observation  string    `json:"observation"`
	URL          string    `json:"url"`
	ResolvedTier Tier      `json:"resolvedTier"`
	Timestamp    time.Time `json:"timestamp"`
}

// Timeline event records -- all immutable, causally ordered, ISO-8601 timestamped.

// TransitionEvent records one state-machine transition.
type TransitionEvent struct {
	From        TaskState `json:"from"`
	To          TaskState `json:"to"`
	Step        int       `json:"step"`
	URL         string    `json:"url"`
	Reason      string    `json:"reason"`
	ErrorDetail *string   `json:"errorDetail,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// SubtaskStatusEvent records one subtask status change.
type SubtaskStatusEvent struct {
	SubtaskID string        `json:"subtaskId"`
	Status    SubtaskStatus `json:"status"`
	Reason    string        `json:"reason"`
	Step      int           `json:"step"`
	Timestamp time.Time     `json:"timestamp"`
}

// EscalationEvent records one tier escalation decision.
type EscalationEvent struct {
	Step         int              `json:"step"`
	FromTier     Tier             `json:"fromTier"`
	ToTier       Tier             `json:"toTier"`
	Reason       EscalationReason `json:"reason"`
	Timestamp    time.Time        `json:"timestamp"`
}

// StructuredErrorEvent records one structured error and its recovery decision.
type StructuredErrorEvent struct {
	Step           int             `json:"step"`
	Error          StructuredError `json:"error"`
	DecisionSource DecisionSource  `json:"decisionSource"`
	Decision       *NavigatorActionDecision `json:"decision,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// TokenAlertEvent records one prompt-budget sample that exceeded the threshold.
type TokenAlertEvent struct {
	Step                  int       `json:"step"`
	Tier                  Tier      `json:"tier"`
	EstimatedPromptTokens int       `json:"estimatedPromptTokens"`
	Threshold             int       `json:"threshold"`
	Timestamp             time.Time `json:"timestamp"`
}

// AXDeficientPageLog records one page observed to be AX-deficient.
type AXDeficientPageLog struct {
	Step      int       `json:"step"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
}

// DOMBypassResolution records one step resolved via the DOM-bypass shortcut.
type DOMBypassResolution struct {
	Step   int     `json:"step"`
	Score  int     `json:"score"`
	Gap    int     `json:"gap"`
	Target Point   `json:"target"`
}

// LoopStepRecord is the single per-step record the orchestrator appends (§8).
type LoopStepRecord struct {
	Step             int                     `json:"step"`
	URL              string                  `json:"url"`
	RefetchReason    RefetchReason           `json:"refetchReason"`
	ResolvedTier     Tier                    `json:"resolvedTier"`
	EscalationReason EscalationReason        `json:"escalationReason"`
	Decision         NavigatorActionDecision `json:"decision"`
	DecisionSource   DecisionSource          `json:"decisionSource"`
	ExecutionStatus  string                  `json:"executionStatus"`
	NoProgressStreak int                     `json:"noProgressStreak"`
	ScrollCount      int                     `json:"scrollCount"`
	Timestamp        time.Time               `json:"timestamp"`
}

// ContextWindowStats summarizes the context window at a point in time (§4.3).
type ContextWindowStats struct {
	RecentPairCount     int `json:"recentPairCount"`
	SummarizedPairCount int `json:"summarizedPairCount"`
	TotalPairCount      int `json:"totalPairCount"`
	SummaryCharCount    int `json:"summaryCharCount"`
}

// ContextSnapshot is what buildSnapshot() returns.
type ContextSnapshot struct {
	RecentPairs []ContextHistoryPair `json:"recentPairs"`
	Summary     *string              `json:"summary"`
	Stats       ContextWindowStats   `json:"stats"`
}

// TierUsage tallies inference-engine calls made at each tier (a step that
// escalates from Tier 1 to Tier 2 counts once in each), Tier-3 scroll
// overrides, DOM-bypass resolutions, and their estimated cost.
type TierUsage struct {
	Tier1Calls           int     `json:"tier1Calls"`
	Tier2Calls           int     `json:"tier2Calls"`
	Tier3Calls           int     `json:"tier3Calls"`
	DomBypassResolutions int     `json:"domBypassResolutions"`
	EstimatedCostUSD     float64 `json:"estimatedCostUsd"`
}

// ObservationCacheStats tallies cache hit/miss behaviour over a task.
type ObservationCacheStats struct {
	PerceptionHits   int `json:"perceptionHits"`
	PerceptionMisses int `json:"perceptionMisses"`
	DecisionHits     int `json:"decisionHits"`
	DecisionMisses   int `json:"decisionMisses"`
	Invalidations    int `json:"invalidations"`
}

// Tunables are the per-task bounded parameters (§3).
type Tunables struct {
	MaxSteps                     int     `json:"maxSteps"`
	ConfidenceThreshold          float64 `json:"confidenceThreshold"`
	AXDeficientInteractiveThreshold int  `json:"axDeficientInteractiveThreshold"`
	ScrollStepPx                 int     `json:"scrollStepPx"`
	MaxScrollSteps                int    `json:"maxScrollSteps"`
	MaxNoProgressSteps            int    `json:"maxNoProgressSteps"`
	MaxSubtaskRetries             int    `json:"maxSubtaskRetries"`
	NavigationTimeoutMs           int    `json:"navigationTimeoutMs"`
	ObservationCacheTTLMs        int     `json:"observationCacheTtlMs"`
}

// Task is the input to one orchestrator run.
type Task struct {
	Intent    string   `json:"intent"`
	StartURL  string   `json:"startUrl"`
	TaskID    string   `json:"taskId,omitempty"`
	ContextID string   `json:"contextId,omitempty"`
	Tunables  Tunables `json:"tunables"`
}

// TaskResult is the full structured transcript returned by the orchestrator (§6).
type TaskResult struct {
	TaskID                string                   `json:"taskId"`
	ContextID             string                   `json:"contextId"`
	Status                ResultStatus             `json:"status"`
	Intent                string                   `json:"intent"`
	StartURL              string                   `json:"startUrl"`
	FinalURL              string                   `json:"finalUrl"`
	StepsTaken            int                      `json:"stepsTaken"`
	History               []LoopStepRecord         `json:"history"`
	Decomposition         []Subtask                `json:"decomposition"`
	Subtasks              []Subtask                `json:"subtasks"`
	Checkpoint            CheckpointState          `json:"checkpoint"`
	SubtaskStatusTimeline []SubtaskStatusEvent     `json:"subtaskStatusTimeline"`
	StructuredErrors      []StructuredErrorEvent   `json:"structuredErrors"`
	Escalations           []EscalationEvent        `json:"escalations"`
	AXDeficientPages      []AXDeficientPageLog     `json:"axDeficientPages"`
	TierUsage             TierUsage                `json:"tierUsage"`
	ContextWindow         ContextWindowStats       `json:"contextWindow"`
	ObservationCache      ObservationCacheStats    `json:"observationCache"`
	FinalAction           *NavigatorActionDecision `json:"finalAction,omitempty"`
	FinalExecution        *ExecutionResult         `json:"finalExecution,omitempty"`
	ErrorDetail           *string                  `json:"errorDetail,omitempty"`
	StateTransitions      []TransitionEvent        `json:"stateTransitions"`
}
