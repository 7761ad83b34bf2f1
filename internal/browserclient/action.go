package browserclient

import (
	"context"
	"fmt"
	"time"

	"agentcore/internal/corectl"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

const defaultScrollStepPx = 800

// ExecuteAction dispatches one navigator decision against the live page and
// reports what observably changed.
func (c *Client) ExecuteAction(ctx context.Context, action corectl.NavigatorActionDecision) (corectl.ExecutionResult, error) {
	page, err := c.ensurePage(ctx)
	if err != nil {
		return corectl.ExecutionResult{}, fmt.Errorf("execute action: %w", err)
	}

	beforeURL := ""
	if info, infoErr := page.Context(ctx).Info(); infoErr == nil {
		beforeURL = info.URL
	}
	domSnapshotBefore, _ := snapshotDomFingerprint(ctx, page)

	var execErr error
	switch action.Action {
	case corectl.ActionClick:
		execErr = clickAt(ctx, page, action.Target)
	case corectl.ActionType:
		execErr = typeAt(ctx, page, action.Target, action.Text)
	case corectl.ActionScroll:
		execErr = scrollBy(ctx, page, defaultScrollStepPx)
	case corectl.ActionPressKey:
		execErr = pressKey(ctx, page, action.Text)
	case corectl.ActionWait:
		time.Sleep(500 * time.Millisecond)
	case corectl.ActionExtract:
		// extraction reads already-perceived state; nothing to dispatch.
	case corectl.ActionDone:
		return corectl.ExecutionResult{Status: "done", CurrentURL: beforeURL}, nil
	case corectl.ActionFailed:
		return corectl.ExecutionResult{Status: "failed", CurrentURL: beforeURL, Message: action.Reasoning}, nil
	default:
		return corectl.ExecutionResult{}, fmt.Errorf("execute action: unknown action kind %q", action.Action)
	}

	afterURL := beforeURL
	if info, infoErr := page.Context(ctx).Info(); infoErr == nil {
		afterURL = info.URL
	}
	domSnapshotAfter, _ := snapshotDomFingerprint(ctx, page)

	result := corectl.ExecutionResult{
		Status:                         "acted",
		CurrentURL:                     afterURL,
		NavigationObserved:             afterURL != beforeURL,
		DomMutationObserved:            domSnapshotBefore != domSnapshotAfter,
		SignificantDomMutationObserved: significantMutation(domSnapshotBefore, domSnapshotAfter),
	}
	if execErr != nil {
		result.Status = "failed"
		result.Message = execErr.Error()
		return result, fmt.Errorf("execute action %s: %w", action.Action, execErr)
	}
	return result, nil
}

func clickAt(ctx context.Context, page *rod.Page, target *corectl.Point) error {
	if target == nil {
		return fmt.Errorf("click requires a target point")
	}
	scoped := page.Context(ctx)
	if err := scoped.Mouse.MoveTo(proto.Point{X: target.X, Y: target.Y}); err != nil {
		return err
	}
	return scoped.Mouse.Click(proto.InputMouseButtonLeft, 1)
}

func typeAt(ctx context.Context, page *rod.Page, target *corectl.Point, text *string) error {
	if text == nil {
		return fmt.Errorf("type requires text")
	}
	if target != nil {
		if err := clickAt(ctx, page, target); err != nil {
			return err
		}
	}
	return page.Context(ctx).InsertText(*text)
}

func pressKey(ctx context.Context, page *rod.Page, key *string) error {
	if key == nil || *key == "" {
		return fmt.Errorf("press_key requires a key name")
	}
	k, ok := namedKeys[*key]
	if !ok {
		return fmt.Errorf("unrecognized key %q", *key)
	}
	return page.Context(ctx).Keyboard.Type(k)
}

var namedKeys = map[string]input.Key{
	"Enter":      input.Enter,
	"Tab":        input.Tab,
	"Escape":     input.Escape,
	"Backspace":  input.Backspace,
	"ArrowDown":  input.ArrowDown,
	"ArrowUp":    input.ArrowUp,
	"ArrowLeft":  input.ArrowLeft,
	"ArrowRight": input.ArrowRight,
}

func scrollBy(ctx context.Context, page *rod.Page, px int) error {
	_, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           fmt.Sprintf(`() => window.scrollBy(0, %d)`, px),
		ByValue:      true,
		AwaitPromise: true,
	})
	return err
}

// snapshotDomFingerprint returns a cheap content fingerprint (node count and
// body text length) used to detect whether an action mutated the page.
func snapshotDomFingerprint(ctx context.Context, page *rod.Page) (string, error) {
	res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           `() => document.querySelectorAll('*').length + ':' + (document.body ? document.body.innerText.length : 0)`,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil || res == nil {
		return "", err
	}
	return res.Value.String(), nil
}

// significantMutation treats a fingerprint change as significant when the
// node count component differs, not just the text-length component -- a
// pure text tick (e.g. a clock) should not trigger a refetch.
func significantMutation(before, after string) bool {
	if before == after {
		return false
	}
	beforeNodes, _, _ := splitFingerprint(before)
	afterNodes, _, _ := splitFingerprint(after)
	return beforeNodes != afterNodes
}

func splitFingerprint(fp string) (nodes string, text string, ok bool) {
	for i := 0; i < len(fp); i++ {
		if fp[i] == ':' {
			return fp[:i], fp[i+1:], true
		}
	}
	return fp, "", false
}
