package corectl

import "context"

// NavigationOutcome describes the result of the most recent navigate() call.
type NavigationOutcome struct {
	RequestedURL string
	FinalURL     string
	Status       *int
	StatusText   string
	ErrorText    string
}

// InteractiveIndexOptions bounds an interactive-element extraction call.
type InteractiveIndexOptions struct {
	IncludeBoundingBoxes bool
	CharBudget           int
}

// InteractiveIndexResult is the normalized AX index plus tree metadata.
type InteractiveIndexResult struct {
	Elements           []InteractiveElement
	ElementCount       int
	NormalizedAXTree   NormalizedAXTree
	NormalizedNodeCount int
	NormalizedCharCount int
}

// NormalizedAXTree is the navigator-facing encoding of the accessibility tree.
type NormalizedAXTree struct {
	Nodes     []InteractiveElement
	JSON      string
	CharCount int
}

// DomElement is one element surfaced by the lightweight DOM-bypass extractor.
type DomElement struct {
	Tag         string
	Text        string
	Role        string
	Href        string
	BoundingBox *BoundingBox
}

// DomExtractionResult is the result of a lightweight DOM extraction.
type DomExtractionResult struct {
	Elements     []DomElement
	ElementCount int
}

// ExecutionResult is what executeAction() returns.
type ExecutionResult struct {
	Status                        string // "acted" | "done" | "failed"
	CurrentURL                    string
	NavigationObserved            bool
	DomMutationObserved           bool
	SignificantDomMutationObserved bool
	DomMutationSummary            *string
	ExtractedData                 any
	Message                        string
}

// BrowserClient is the minimal capability set the core requires of a
// browser-protocol driver (§6). Every method is called at most once per step.
type BrowserClient interface {
	Navigate(ctx context.Context, url string, timeoutMs int) error
	GetLastNavigationOutcome() NavigationOutcome
	GetCurrentURL(ctx context.Context) (string, error)
	ExtractInteractiveElementIndex(ctx context.Context, opts InteractiveIndexOptions) (InteractiveIndexResult, error)
	GetAXDeficiencySignals(ctx context.Context) (AXDeficiencySignals, error)
	GetScrollPositionSnapshot(ctx context.Context) (ScrollPosition, error)
	// WithVisualRenderPass scopes visual-asset acquisition for the duration of fn,
	// guaranteeing release on every exit path.
	WithVisualRenderPass(ctx context.Context, fn func(ctx context.Context) error) error
	CaptureScreenshot(ctx context.Context, mode string) (ScreenshotPayload, error)
	ExtractDomInteractiveElements(ctx context.Context, maxElements int) (DomExtractionResult, error)
	ExecuteAction(ctx context.Context, action NavigatorActionDecision) (ExecutionResult, error)
}

// Observation is the per-step input handed to the inference engine.
type Observation struct {
	CurrentURL              string
	InteractiveElementIndex []InteractiveElement
	NormalizedAXTree        string
	PreviousActions         []NavigatorActionDecision
	PreviousObservations    []string
	HistorySummary          *string
	ContextWindowStats      ContextWindowStats
	TaskSubtasks            []Subtask
	ActiveSubtask           *Subtask
	CheckpointState         CheckpointState
	StructuredError         *StructuredError
	VisualSnapshot          *ScreenshotPayload
}

// PromptBudgetEstimate is what estimateNavigatorPromptBudget() returns.
type PromptBudgetEstimate struct {
	PromptCharCount       int
	EstimatedPromptTokens int
	AlertThreshold        int
}

// InferenceEngine is the single-operation decision-making collaborator (§6).
// DecideNextAction may return (nil, nil) only on structured-error paths.
type InferenceEngine interface {
	DecideNextAction(ctx context.Context, intent string, tier Tier, escalationReason EscalationReason, obs Observation) (*NavigatorActionDecision, error)
	EstimateNavigatorPromptBudget(ctx context.Context, intent string, obs Observation, tier Tier, escalationReason EscalationReason) (PromptBudgetEstimate, error)
}

// Logger is the narrow synchronous sink the core writes through. It never
// mutates core state and must not be relied on for control flow.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// noopLogger discards everything; used when no Logger is supplied.
type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}
func (noopLogger) Warnf(string, ...any)  {}
func (noopLogger) Errorf(string, ...any) {}

// Callbacks are the optional synchronous message sinks the orchestrator
// invokes (§9 Design Notes). None may mutate core state, and the core never
// inspects their return values.
type Callbacks struct {
	OnStateTransition func(TransitionEvent)
	OnSubtaskStatus   func(SubtaskStatusEvent)
	OnStructuredError func(StructuredErrorEvent)
	OnTaskCleanup     func(result TaskResult)
	Logger            Logger
}

func (c Callbacks) logger() Logger {
	if c.Logger == nil {
		return noopLogger{}
	}
	return c.Logger
}

func (c Callbacks) emitTransition(ev TransitionEvent) {
	if c.OnStateTransition != nil {
		c.OnStateTransition(ev)
	}
}

func (c Callbacks) emitSubtaskStatus(ev SubtaskStatusEvent) {
	if c.OnSubtaskStatus != nil {
		c.OnSubtaskStatus(ev)
	}
}

func (c Callbacks) emitStructuredError(ev StructuredErrorEvent) {
	if c.OnStructuredError != nil {
		c.OnStructuredError(ev)
	}
}

func (c Callbacks) emitCleanup(result TaskResult) {
	if c.OnTaskCleanup != nil {
		c.OnTaskCleanup(result)
	}
}
