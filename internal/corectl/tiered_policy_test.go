package corectl_test

import (
	"context"
	"testing"

	"agentcore/internal/corectl"
	"github.com/stretchr/testify/require"
)

func newPolicy(engine corectl.InferenceEngine, browser corectl.BrowserClient, tunables corectl.Tunables) (*corectl.TieredPolicyEngine, *corectl.ObservationCache) {
	cache := corectl.NewObservationCache(tunables.ObservationCacheTTLMs)
	p := corectl.NewTieredPolicyEngine(engine, browser, cache, tunables, nil, nil)
	return p, cache
}

func TestTieredPolicy_AcceptsConfidentTier1Decision(t *testing.T) {
	tunables := corectl.DefaultTunables()
	engine := &fakeEngine{decisions: []*corectl.NavigatorActionDecision{decision(corectl.ActionClick, 0.9)}}
	p, _ := newPolicy(engine, &fakeBrowser{}, tunables)

	res, err := p.Resolve(context.Background(), 1, "click it", "https://a.test", corectl.PerceptionPayload{AXDeficiencySignals: richSignals()}, corectl.Observation{}, 0, 0, 0)
	require.NoError(t, err)
	require.Equal(t, corectl.TierOneAX, res.Tier)
	require.Equal(t, corectl.ReasonNone, res.EscalationReason)
}

func TestTieredPolicy_LowConfidenceTriesDomBypassBeforeTier2(t *testing.T) {
	tunables := corectl.DefaultTunables()
	engine := &fakeEngine{decisions: []*corectl.NavigatorActionDecision{decision(corectl.ActionClick, 0.1)}}
	browser := &fakeBrowser{
		domExtraction: corectl.DomExtractionResult{Elements: []corectl.DomElement{
			{Tag: "a", Text: "pricing link", BoundingBox: &corectl.BoundingBox{X: 10, Y: 10, Width: 40, Height: 20}},
			{Tag: "div", Text: "unrelated filler"},
		}},
	}
	p, _ := newPolicy(engine, browser, tunables)

	res, err := p.Resolve(context.Background(), 1, "click the pricing link", "https://a.test", corectl.PerceptionPayload{AXDeficiencySignals: richSignals()}, corectl.Observation{}, 0, 0, 0)
	require.NoError(t, err)
	require.NotNil(t, res.DomBypass)
	require.Equal(t, corectl.ActionClick, res.Decision.Action)
}

func TestTieredPolicy_AXDeficiencyForcesTier2(t *testing.T) {
	tunables := corectl.DefaultTunables()
	engine := &fakeEngine{decisions: []*corectl.NavigatorActionDecision{decision(corectl.ActionWait, 0.9)}}
	browser := &fakeBrowser{screenshot: corectl.ScreenshotPayload{MimeType: "image/png"}}
	p, _ := newPolicy(engine, browser, tunables)

	perception := corectl.PerceptionPayload{AXDeficiencySignals: corectl.AXDeficiencySignals{
		IsLoadComplete: true, HasSignificantVisualContent: true, VisibleElementCount: 1, DOMInteractiveCandidateCount: 1,
	}}
	res, err := p.Resolve(context.Background(), 1, "do something", "https://a.test", perception, corectl.Observation{}, 0, 0, 0)
	require.NoError(t, err)
	require.True(t, res.AXDeficient)
	require.Equal(t, corectl.ReasonAXDeficient, res.EscalationReason)
}

func TestTieredPolicy_NoProgressEscalatesEvenWithoutAXDeficiency(t *testing.T) {
	tunables := corectl.DefaultTunables()
	engine := &fakeEngine{decisions: []*corectl.NavigatorActionDecision{decision(corectl.ActionClick, 0.9)}}
	browser := &fakeBrowser{screenshot: corectl.ScreenshotPayload{MimeType: "image/png"}}
	p, _ := newPolicy(engine, browser, tunables)

	res, err := p.Resolve(context.Background(), 3, "click it", "https://a.test", corectl.PerceptionPayload{AXDeficiencySignals: richSignals()}, corectl.Observation{}, 1, 0, 0)
	require.NoError(t, err)
	require.Equal(t, corectl.ReasonNoProgress, res.EscalationReason)
}

func TestMightBeBelowFold_TrueWhenRemainingExceedsMargin(t *testing.T) {
	require.True(t, corectl.MightBeBelowFold(corectl.ScrollPosition{RemainingScrollPx: 500}, 800))
	require.False(t, corectl.MightBeBelowFold(corectl.ScrollPosition{RemainingScrollPx: 1}, 800))
}

func TestTieredPolicy_ScrollFallbackGatedByBelowFold(t *testing.T) {
	tunables := corectl.DefaultTunables()
	engine := &fakeEngine{decisions: []*corectl.NavigatorActionDecision{decision(corectl.ActionFailed, 0.1)}}
	browser := &fakeBrowser{screenshot: corectl.ScreenshotPayload{MimeType: "image/png"}}
	p, _ := newPolicy(engine, browser, tunables)

	perception := corectl.PerceptionPayload{
		AXDeficiencySignals: corectl.AXDeficiencySignals{IsLoadComplete: true, HasSignificantVisualContent: true, VisibleElementCount: 1, DOMInteractiveCandidateCount: 1},
		ScrollPosition:      corectl.ScrollPosition{RemainingScrollPx: 0},
	}
	res, err := p.Resolve(context.Background(), 1, "find the hidden button", "https://a.test", perception, corectl.Observation{}, 0, 0, 0)
	require.NoError(t, err)
	require.NotEqual(t, corectl.TierThreeScroll, res.Tier, "no remaining scroll distance means the page is not below the fold")
}
