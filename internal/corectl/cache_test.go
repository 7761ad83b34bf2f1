package corectl_test

import (
	"testing"

	"agentcore/internal/corectl"
	"github.com/stretchr/testify/require"
)

func TestObservationCache_PerceptionHitAndMiss(t *testing.T) {
	c := corectl.NewObservationCache(1000)
	_, _, ok := c.GetPerception("https://a.test", 0)
	require.False(t, ok)

	payload := corectl.PerceptionPayload{AXTreeHash: "abc"}
	c.SetPerception("https://a.test", payload, 0)

	got, age, ok := c.GetPerception("https://a.test", 500)
	require.True(t, ok)
	require.Equal(t, int64(500), age)
	require.Equal(t, "abc", got.AXTreeHash)

	stats := c.Stats()
	require.Equal(t, 1, stats.PerceptionHits)
	require.Equal(t, 1, stats.PerceptionMisses)
}

func TestObservationCache_PerceptionExpiresAfterTTL(t *testing.T) {
	c := corectl.NewObservationCache(1000)
	c.SetPerception("https://a.test", corectl.PerceptionPayload{}, 0)
	_, _, ok := c.GetPerception("https://a.test", 1500)
	require.False(t, ok)
}

func TestObservationCache_DecisionKeyedByTierAndReason(t *testing.T) {
	c := corectl.NewObservationCache(1000)
	d1 := corectl.NavigatorActionDecision{Action: corectl.ActionClick, Confidence: 0.9}
	c.SetDecision("https://a.test", corectl.TierOneAX, corectl.ReasonNone, d1, 0)

	_, ok := c.GetDecision("https://a.test", corectl.TierTwoVision, corectl.ReasonNone, 0)
	require.False(t, ok, "a different tier must not share the cache slot")

	got, ok := c.GetDecision("https://a.test", corectl.TierOneAX, corectl.ReasonNone, 0)
	require.True(t, ok)
	require.Equal(t, corectl.ActionClick, got.Action)
}

func TestObservationCache_InvalidateClearsEverythingForURL(t *testing.T) {
	c := corectl.NewObservationCache(1000)
	c.SetPerception("https://a.test", corectl.PerceptionPayload{}, 0)
	c.SetDecision("https://a.test", corectl.TierOneAX, corectl.ReasonNone, corectl.NavigatorActionDecision{}, 0)
	c.SetTier2Screenshot("https://a.test", corectl.ScreenshotPayload{}, 0)

	c.Invalidate("https://a.test")

	_, _, ok := c.GetPerception("https://a.test", 0)
	require.False(t, ok)
	_, ok = c.GetDecision("https://a.test", corectl.TierOneAX, corectl.ReasonNone, 0)
	require.False(t, ok)
	_, ok = c.GetTier2Screenshot("https://a.test", 0)
	require.False(t, ok)
	require.Equal(t, 1, c.Stats().Invalidations)
}

func TestObservationCache_PruneExpiredEvictsStaleEntriesOnly(t *testing.T) {
	c := corectl.NewObservationCache(100)
	c.SetPerception("https://stale.test", corectl.PerceptionPayload{}, 0)
	c.SetPerception("https://fresh.test", corectl.PerceptionPayload{}, 900)

	c.PruneExpired(1000)

	_, _, ok := c.GetPerception("https://stale.test", 1000)
	require.False(t, ok)
	_, _, ok = c.GetPerception("https://fresh.test", 1000)
	require.True(t, ok)
}
