package corectl_test

import (
	"context"
	"fmt"

	"agentcore/internal/corectl"
)

// fakeBrowser is a scripted, in-memory corectl.BrowserClient for tests. It
// never touches a real page; each test configures the handful of fields it
// cares about and leaves the rest at their zero value.
type fakeBrowser struct {
	navigateErr   error
	navOutcome    corectl.NavigationOutcome
	currentURL    string
	currentURLErr error

	index    corectl.InteractiveIndexResult
	indexErr error

	signals    corectl.AXDeficiencySignals
	signalsErr error

	scroll    corectl.ScrollPosition
	scrollErr error

	screenshot    corectl.ScreenshotPayload
	screenshotErr error

	domExtraction corectl.DomExtractionResult
	domErr        error

	// execSeq lets a test script a different ExecutionResult per call.
	execSeq []corectl.ExecutionResult
	execErr error
	execIdx int
}

func (f *fakeBrowser) Navigate(ctx context.Context, url string, timeoutMs int) error {
	f.navOutcome.RequestedURL = url
	if f.navOutcome.FinalURL == "" {
		f.navOutcome.FinalURL = url
	}
	f.currentURL = f.navOutcome.FinalURL
	return f.navigateErr
}

func (f *fakeBrowser) GetLastNavigationOutcome() corectl.NavigationOutcome {
	return f.navOutcome
}

func (f *fakeBrowser) GetCurrentURL(ctx context.Context) (string, error) {
	if f.currentURLErr != nil {
		return "", f.currentURLErr
	}
	return f.currentURL, nil
}

func (f *fakeBrowser) ExtractInteractiveElementIndex(ctx context.Context, opts corectl.InteractiveIndexOptions) (corectl.InteractiveIndexResult, error) {
	return f.index, f.indexErr
}

func (f *fakeBrowser) GetAXDeficiencySignals(ctx context.Context) (corectl.AXDeficiencySignals, error) {
	return f.signals, f.signalsErr
}

func (f *fakeBrowser) GetScrollPositionSnapshot(ctx context.Context) (corectl.ScrollPosition, error) {
	return f.scroll, f.scrollErr
}

func (f *fakeBrowser) WithVisualRenderPass(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeBrowser) CaptureScreenshot(ctx context.Context, mode string) (corectl.ScreenshotPayload, error) {
	return f.screenshot, f.screenshotErr
}

func (f *fakeBrowser) ExtractDomInteractiveElements(ctx context.Context, maxElements int) (corectl.DomExtractionResult, error) {
	return f.domExtraction, f.domErr
}

func (f *fakeBrowser) ExecuteAction(ctx context.Context, action corectl.NavigatorActionDecision) (corectl.ExecutionResult, error) {
	if f.execErr != nil {
		return corectl.ExecutionResult{}, f.execErr
	}
	if f.execIdx < len(f.execSeq) {
		r := f.execSeq[f.execIdx]
		f.execIdx++
		f.currentURL = r.CurrentURL
		return r, nil
	}
	last := f.execSeq[len(f.execSeq)-1]
	f.currentURL = last.CurrentURL
	return last, nil
}

// fakeEngine is a scripted corectl.InferenceEngine. decisions is consumed in
// order across calls to DecideNextAction; the last entry repeats once exhausted.
type fakeEngine struct {
	decisions []*corectl.NavigatorActionDecision
	idx       int
	err       error
	budget    corectl.PromptBudgetEstimate
	budgetErr error
}

func (f *fakeEngine) DecideNextAction(ctx context.Context, intent string, tier corectl.Tier, reason corectl.EscalationReason, obs corectl.Observation) (*corectl.NavigatorActionDecision, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.decisions) == 0 {
		return nil, fmt.Errorf("fakeEngine: no decisions scripted")
	}
	if f.idx < len(f.decisions) {
		d := f.decisions[f.idx]
		f.idx++
		return d, nil
	}
	return f.decisions[len(f.decisions)-1], nil
}

func (f *fakeEngine) EstimateNavigatorPromptBudget(ctx context.Context, intent string, obs corectl.Observation, tier corectl.Tier, reason corectl.EscalationReason) (corectl.PromptBudgetEstimate, error) {
	return f.budget, f.budgetErr
}

func decision(action corectl.ActionKind, confidence float64) *corectl.NavigatorActionDecision {
	return &corectl.NavigatorActionDecision{Action: action, Confidence: confidence, Reasoning: "test"}
}

func richSignals() corectl.AXDeficiencySignals {
	return corectl.AXDeficiencySignals{
		ReadyState:                   "complete",
		IsLoadComplete:               true,
		HasSignificantVisualContent:  true,
		VisibleElementCount:          25,
		DOMInteractiveCandidateCount: 25,
	}
}
