package corectl

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// ContextWindowManager bounds the action/observation history to a recent
// window plus a deterministic archived summary, and records prompt-budget
// samples and token-budget alerts (§4.3).
type ContextWindowManager struct {
	pairs           []ContextHistoryPair
	summary         *string
	lastSummarizedN int // summarizedPairCount as of the last refresh

	promptThreshold int
	maxPromptChars  int
	maxPromptTokens int
	alerts          []TokenAlertEvent
}

// NewContextWindowManager returns an empty manager with the given token-alert threshold.
func NewContextWindowManager(promptThreshold int) *ContextWindowManager {
	return &ContextWindowManager{promptThreshold: promptThreshold}
}

// AppendPair records one action/observation pair and refreshes the archived
// summary if the archived set grew.
func (c *ContextWindowManager) AppendPair(p ContextHistoryPair) {
	c.pairs = append(c.pairs, p)
	summarized := c.summarizedCount()
	if summarized != c.lastSummarizedN {
		c.refreshSummary()
		c.lastSummarizedN = summarized
	}
}

func (c *ContextWindowManager) summarizedCount() int {
	if len(c.pairs) <= RecentPairLimit {
		return 0
	}
	return len(c.pairs) - RecentPairLimit
}

func (c *ContextWindowManager) recentCount() int {
	if len(c.pairs) < RecentPairLimit {
		return len(c.pairs)
	}
	return RecentPairLimit
}

// refreshSummary deterministically rebuilds the archived summary from every
// pair older than the recent window (§4.3).
func (c *ContextWindowManager) refreshSummary() {
	n := c.summarizedCount()
	if n == 0 {
		c.summary = nil
		return
	}
	archived := c.pairs[:n]

	firstStep := archived[0].Step
	lastStep := archived[len(archived)-1].Step
	hosts := distinctHosts(archived)
	sentenceA := fmt.Sprintf("Steps %d-%d archived across %d distinct host(s) (%s).",
		firstStep, lastStep, len(hosts), strings.Join(hosts, ", "))

	histogram := actionHistogram(archived)
	sentenceB := fmt.Sprintf("Action mix: %s.", strings.Join(histogram, ", "))

	latestObs := truncate(archived[len(archived)-1].Observation, 160)
	sentenceC := fmt.Sprintf("Most recent archived observation: %q.", latestObs)

	full := sentenceA + " " + sentenceB + " " + sentenceC
	full = truncate(full, SummaryCharBudget)
	c.summary = &full
}

func distinctHosts(pairs []ContextHistoryPair) []string {
	seen := make(map[string]bool)
	var hosts []string
	for _, p := range pairs {
		h := p.URL
		if u, err := url.Parse(p.URL); err == nil && u.Host != "" {
			h = u.Host
		}
		if h == "" {
			continue
		}
		if !seen[h] {
			seen[h] = true
			hosts = append(hosts, h)
		}
	}
	sort.Strings(hosts)
	return hosts
}

func actionHistogram(pairs []ContextHistoryPair) []string {
	counts := make(map[ActionKind]int)
	for _, p := range pairs {
		counts[p.Action.Action]++
	}
	type kv struct {
		action ActionKind
		count  int
	}
	kvs := make([]kv, 0, len(counts))
	for k, v := range counts {
		kvs = append(kvs, kv{k, v})
	}
	sort.Slice(kvs, func(i, j int) bool {
		if kvs[i].count != kvs[j].count {
			return kvs[i].count > kvs[j].count
		}
		return kvs[i].action < kvs[j].action
	})
	out := make([]string, 0, len(kvs))
	for _, e := range kvs {
		out = append(out, fmt.Sprintf("%s x%d", e.action, e.count))
	}
	if len(out) == 0 {
		out = append(out, "none")
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 0 {
		return ""
	}
	return s[:max]
}

// BuildSnapshot returns the bounded recent window plus the archived summary (§4.3).
func (c *ContextWindowManager) BuildSnapshot() ContextSnapshot {
	recentStart := len(c.pairs) - c.recentCount()
	recent := append([]ContextHistoryPair(nil), c.pairs[recentStart:]...)

	charCount := 0
	if c.summary != nil {
		charCount = len(*c.summary)
	}

	return ContextSnapshot{
		RecentPairs: recent,
		Summary:     c.summary,
		Stats: ContextWindowStats{
			RecentPairCount:     len(recent),
			SummarizedPairCount: c.summarizedCount(),
			TotalPairCount:      len(c.pairs),
			SummaryCharCount:    charCount,
		},
	}
}

// PromptBudgetSample is one recorded prompt-size measurement.
type PromptBudgetSample struct {
	Step                  int
	Tier                  Tier
	PromptCharCount       int
	EstimatedPromptTokens int
	Threshold             int
}

// RecordPromptBudget updates the max-observed prompt size/tokens and, if
// tokens exceed the sample's threshold (or the manager's own threshold when
// the sample carries none), appends a ring-buffered (last 64) token-alert
// event (§4.3).
func (c *ContextWindowManager) RecordPromptBudget(s PromptBudgetSample) {
	if s.PromptCharCount > c.maxPromptChars {
		c.maxPromptChars = s.PromptCharCount
	}
	if s.EstimatedPromptTokens > c.maxPromptTokens {
		c.maxPromptTokens = s.EstimatedPromptTokens
	}
	threshold := s.Threshold
	if threshold <= 0 {
		threshold = c.promptThreshold
	}
	if s.EstimatedPromptTokens > threshold {
		c.alerts = append(c.alerts, TokenAlertEvent{
			Step:                  s.Step,
			Tier:                  s.Tier,
			EstimatedPromptTokens: s.EstimatedPromptTokens,
			Threshold:             threshold,
			Timestamp:             time.Now(),
		})
		if len(c.alerts) > 64 {
			c.alerts = c.alerts[len(c.alerts)-64:]
		}
	}
}

// TokenAlerts returns the ring-buffered token-alert events.
func (c *ContextWindowManager) TokenAlerts() []TokenAlertEvent {
	out := make([]TokenAlertEvent, len(c.alerts))
	copy(out, c.alerts)
	return out
}

// MaxObservedPromptChars returns the largest prompt-char-count sample recorded.
func (c *ContextWindowManager) MaxObservedPromptChars() int {
	return c.maxPromptChars
}

// MaxObservedPromptTokens returns the largest estimated-token sample recorded.
func (c *ContextWindowManager) MaxObservedPromptTokens() int {
	return c.maxPromptTokens
}
