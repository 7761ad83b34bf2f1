package corectl

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// StepResolution is what the tiered policy produces for one step.
type StepResolution struct {
	Tier             Tier
	EscalationReason EscalationReason
	Decision         NavigatorActionDecision
	DomBypass        *DOMBypassResolution
	ScrollCount      int
	AXDeficient      bool
}

// TieredPolicyEngine implements the §4.5 tier-selection decision table.
type TieredPolicyEngine struct {
	engine   InferenceEngine
	browser  BrowserClient
	cache    *ObservationCache
	tunables Tunables
	logger   Logger
	onBudget func(step int, tier Tier, est PromptBudgetEstimate)
}

// NewTieredPolicyEngine builds a policy engine bound to one task's collaborators.
// onBudget, if non-nil, is invoked once per engine call with the prompt-budget
// estimate so the caller can feed it to the context window manager (§4.3).
func NewTieredPolicyEngine(engine InferenceEngine, browser BrowserClient, cache *ObservationCache, tunables Tunables, logger Logger, onBudget func(step int, tier Tier, est PromptBudgetEstimate)) *TieredPolicyEngine {
	if logger == nil {
		logger = noopLogger{}
	}
	return &TieredPolicyEngine{engine: engine, browser: browser, cache: cache, tunables: tunables, logger: logger, onBudget: onBudget}
}

// isAXDeficient implements the §4.5 step-2 deficiency heuristic.
func (p *TieredPolicyEngine) isAXDeficient(signals AXDeficiencySignals) bool {
	return signals.DOMInteractiveCandidateCount < p.tunables.AXDeficientInteractiveThreshold &&
		signals.IsLoadComplete &&
		signals.HasSignificantVisualContent
}

// Resolve runs the ordered tier-selection table for one step.
func (p *TieredPolicyEngine) Resolve(
	ctx context.Context,
	step int,
	intent string,
	currentURL string,
	perception PerceptionPayload,
	obsBase Observation,
	noProgressStreak int,
	scrollCountIn int,
	nowMs int64,
) (StepResolution, error) {
	axDeficient := p.isAXDeficient(perception.AXDeficiencySignals)

	// Step 1: no-progress escalation, only when the page is not AX-deficient
	// (an AX-deficient page is handled by step 2 instead).
	if noProgressStreak > 0 && !axDeficient {
		res, err := p.runTier2(ctx, step, intent, currentURL, obsBase, ReasonNoProgress, nowMs)
		if err != nil {
			return StepResolution{}, err
		}
		return p.applyScrollFallback(res, scrollCountIn, noProgressStreak, perception.ScrollPosition)
	}

	// Step 2: AX-deficiency escalation.
	if axDeficient {
		res, err := p.runTier2(ctx, step, intent, currentURL, obsBase, ReasonAXDeficient, nowMs)
		if err != nil {
			return StepResolution{}, err
		}
		res.AXDeficient = true
		return p.applyScrollFallback(res, scrollCountIn, noProgressStreak, perception.ScrollPosition)
	}

	// Step 3: run Tier 1, reusing a cached decision when present (§4.4).
	if cached, ok := p.cache.GetDecision(currentURL, TierOneAX, ReasonNone, nowMs); ok {
		if cached.Confidence >= p.tunables.ConfidenceThreshold && cached.Action != ActionFailed {
			return StepResolution{Tier: TierOneAX, EscalationReason: ReasonNone, Decision: cached}, nil
		}
	}
	t1Decision, err := p.decide(ctx, step, intent, TierOneAX, ReasonNone, obsBase)
	if err != nil {
		return StepResolution{}, err
	}
	if t1Decision.Confidence >= p.tunables.ConfidenceThreshold && t1Decision.Action != ActionFailed {
		// Confidence-policy invariant (§4.5): a Tier-1 acceptance must meet threshold.
		if t1Decision.Confidence < p.tunables.ConfidenceThreshold {
			panic("corectl: tier-1 accepted below confidence threshold")
		}
		p.cache.SetDecision(currentURL, TierOneAX, ReasonNone, t1Decision, nowMs)
		return StepResolution{Tier: TierOneAX, EscalationReason: ReasonNone, Decision: t1Decision}, nil
	}

	reason := ReasonLowConfidence
	if t1Decision.Action == ActionFailed {
		reason = ReasonUnsafeAction
	}

	// Step 4: attempt DOM bypass before paying for Tier 2.
	if bypass, decision, ok := p.tryDomBypass(ctx, intent); ok {
		return StepResolution{
			Tier:             TierOneAX,
			EscalationReason: reason,
			Decision:         decision,
			DomBypass:        bypass,
		}, nil
	}

	// Step 5: run Tier 2.
	res, err := p.runTier2(ctx, step, intent, currentURL, obsBase, reason, nowMs)
	if err != nil {
		return StepResolution{}, err
	}
	return p.applyScrollFallback(res, scrollCountIn, noProgressStreak, perception.ScrollPosition)
}

func (p *TieredPolicyEngine) decide(ctx context.Context, step int, intent string, tier Tier, reason EscalationReason, obs Observation) (NavigatorActionDecision, error) {
	if est, err := p.engine.EstimateNavigatorPromptBudget(ctx, intent, obs, tier, reason); err == nil && p.onBudget != nil {
		p.onBudget(step, tier, est)
	}
	d, err := p.engine.DecideNextAction(ctx, intent, tier, reason, obs)
	if err != nil {
		return NavigatorActionDecision{}, fmt.Errorf("decide next action at tier %s: %w", tier, err)
	}
	if d == nil {
		return NavigatorActionDecision{Action: ActionFailed, Confidence: 0, Reasoning: "inference engine returned no decision"}, nil
	}
	return *d, nil
}

// runTier2 resolves a step at Tier 2, reusing a cached screenshot if present.
func (p *TieredPolicyEngine) runTier2(ctx context.Context, step int, intent, currentURL string, obsBase Observation, reason EscalationReason, nowMs int64) (StepResolution, error) {
	if cached, ok := p.cache.GetDecision(currentURL, TierTwoVision, reason, nowMs); ok {
		return StepResolution{Tier: TierTwoVision, EscalationReason: reason, Decision: cached}, nil
	}

	shot, ok := p.cache.GetTier2Screenshot(currentURL, nowMs)
	if !ok {
		err := p.browser.WithVisualRenderPass(ctx, func(ctx context.Context) error {
			var capErr error
			shot, capErr = p.browser.CaptureScreenshot(ctx, "viewport")
			return capErr
		})
		if err != nil {
			return StepResolution{}, fmt.Errorf("capture tier-2 screenshot: %w", err)
		}
		p.cache.SetTier2Screenshot(currentURL, shot, nowMs)
	}
	obsBase.VisualSnapshot = &shot

	decision, err := p.decide(ctx, step, intent, TierTwoVision, reason, obsBase)
	if err != nil {
		return StepResolution{}, err
	}
	p.cache.SetDecision(currentURL, TierTwoVision, reason, decision, nowMs)
	return StepResolution{Tier: TierTwoVision, EscalationReason: reason, Decision: decision}, nil
}

// tryDomBypass implements §4.5 step 4's deterministic scoring shortcut.
func (p *TieredPolicyEngine) tryDomBypass(ctx context.Context, intent string) (*DOMBypassResolution, NavigatorActionDecision, bool) {
	extraction, err := p.browser.ExtractDomInteractiveElements(ctx, 200)
	if err != nil || len(extraction.Elements) == 0 {
		return nil, NavigatorActionDecision{}, false
	}

	intentTokens := tokenize(intent)
	intentLower := strings.ToLower(intent)
	mentionsLink := strings.Contains(intentLower, "link")
	mentionsSearch := strings.Contains(intentLower, "search") || strings.Contains(intentLower, "find")

	bestScore, secondScore := -1, -1
	bestIdx := -1
	for i, el := range extraction.Elements {
		score := domBypassScore(el, intentTokens, mentionsLink, mentionsSearch)
		if score > bestScore {
			secondScore = bestScore
			bestScore = score
			bestIdx = i
		} else if score > secondScore {
			secondScore = score
		}
	}
	if bestIdx < 0 {
		return nil, NavigatorActionDecision{}, false
	}
	gap := bestScore - secondScore
	if secondScore < 0 {
		gap = bestScore
	}
	best := extraction.Elements[bestIdx]
	if bestScore < DomBypassMinScore || gap < DomBypassMinScoreGap {
		return nil, NavigatorActionDecision{}, false
	}
	if best.BoundingBox == nil || best.BoundingBox.Width <= 0 || best.BoundingBox.Height <= 0 {
		return nil, NavigatorActionDecision{}, false
	}

	center := Point{
		X: roundTo3(best.BoundingBox.X + best.BoundingBox.Width/2),
		Y: roundTo3(best.BoundingBox.Y + best.BoundingBox.Height/2),
	}
	decision := NavigatorActionDecision{
		Action:     ActionClick,
		Target:     &center,
		Confidence: 0.9,
		Reasoning:  "dom bypass: unambiguous intent-token match",
	}
	return &DOMBypassResolution{Score: bestScore, Gap: gap, Target: center}, decision, true
}

func domBypassScore(el DomElement, intentTokens []string, mentionsLink, mentionsSearch bool) int {
	label := strings.ToLower(el.Tag + " " + el.Text + " " + el.Role + " " + el.Href)
	score := 0
	for _, tok := range intentTokens {
		if strings.Contains(label, tok) {
			score++
		}
	}
	tag := strings.ToLower(el.Tag)
	if mentionsLink && tag == "a" {
		score++
	}
	if mentionsSearch && (tag == "input" || strings.ToLower(el.Role) == "textbox") {
		score++
	}
	return score
}

func roundTo3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// applyScrollFallback implements the §4.5 Tier-3 scroll trigger and bound.
// Tier-3 is only considered when T2 resolved (res.Tier is always
// TIER_2_VISION here by construction) and the target might be below the fold.
func (p *TieredPolicyEngine) applyScrollFallback(res StepResolution, scrollCountIn int, noProgressStreak int, scrollPos ScrollPosition) (StepResolution, error) {
	if !MightBeBelowFold(scrollPos, p.tunables.ScrollStepPx) {
		res.ScrollCount = scrollCountIn
		return res, nil
	}

	shouldTrigger := res.Decision.Action == ActionScroll ||
		res.Decision.Action == ActionFailed ||
		res.Decision.Confidence < p.tunables.ConfidenceThreshold ||
		(res.EscalationReason == ReasonNoProgress && noProgressStreak >= 2)

	if !shouldTrigger {
		res.ScrollCount = scrollCountIn
		return res, nil
	}

	if scrollCountIn >= p.tunables.MaxScrollSteps {
		text := fmt.Sprintf("aborted after %d scroll steps", scrollCountIn)
		res.Decision = NavigatorActionDecision{
			Action:     ActionFailed,
			Text:       &text,
			Confidence: res.Decision.Confidence,
			Reasoning:  text,
		}
		res.ScrollCount = scrollCountIn
		return res, nil
	}

	newCount := scrollCountIn + 1
	pxText := fmt.Sprintf("%d", p.tunables.ScrollStepPx)
	res.Decision = NavigatorActionDecision{
		Action:     ActionScroll,
		Text:       &pxText,
		Confidence: res.Decision.Confidence,
		Reasoning:  "tier-3 scroll fallback",
	}
	res.Tier = TierThreeScroll
	res.ScrollCount = newCount
	return res, nil
}

// MightBeBelowFold reports whether the remaining scroll distance plausibly
// hides the target, per the §4.5 Tier-3 trigger margin.
func MightBeBelowFold(pos ScrollPosition, scrollStepPx int) bool {
	margin := math.Max(24, float64(scrollStepPx)*BelowFoldMarginRatio)
	return pos.RemainingScrollPx > margin
}
