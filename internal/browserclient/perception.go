package browserclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"agentcore/internal/corectl"

	"github.com/go-rod/rod"
)

const interactiveElementQuery = `a[href], button, input, select, textarea, [role], [onclick], [tabindex]`

// ExtractInteractiveElementIndex walks the accessibility-relevant interactive
// elements on the page and normalizes them into corectl's element vocabulary.
func (c *Client) ExtractInteractiveElementIndex(ctx context.Context, opts corectl.InteractiveIndexOptions) (corectl.InteractiveIndexResult, error) {
	page, err := c.ensurePage(ctx)
	if err != nil {
		return corectl.InteractiveIndexResult{}, fmt.Errorf("extract interactive index: %w", err)
	}

	script := fmt.Sprintf(`
	() => {
		const els = Array.from(document.querySelectorAll(%q));
		return els.map((el, idx) => {
			const rect = el.getBoundingClientRect();
			const style = window.getComputedStyle(el);
			const visible = style.display !== 'none' && style.visibility !== 'hidden' && rect.width > 0 && rect.height > 0;
			if (!visible) return null;
			return {
				nodeId: el.id || ('node_' + idx),
				role: el.getAttribute('role') || el.tagName.toLowerCase(),
				name: (el.getAttribute('aria-label') || el.innerText || el.getAttribute('placeholder') || el.getAttribute('value') || '').trim().slice(0, 200),
				value: el.value !== undefined ? String(el.value) : '',
				box: { x: rect.x, y: rect.y, width: rect.width, height: rect.height }
			};
		}).filter(Boolean);
	}
	`, interactiveElementQuery)

	raw, err := evaluateJSON(ctx, page, script)
	if err != nil {
		return corectl.InteractiveIndexResult{}, fmt.Errorf("extract interactive index: %w", err)
	}

	var rows []struct {
		NodeID string `json:"nodeId"`
		Role   string `json:"role"`
		Name   string `json:"name"`
		Value  string `json:"value"`
		Box    struct {
			X, Y, Width, Height float64
		} `json:"box"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return corectl.InteractiveIndexResult{}, fmt.Errorf("decode interactive index: %w", err)
	}

	elements := make([]corectl.InteractiveElement, 0, len(rows))
	for _, r := range rows {
		elements = append(elements, corectl.InteractiveElement{
			NodeID: r.NodeID,
			Role:   r.Role,
			Name:   r.Name,
			Value:  r.Value,
			BoundingBox: &corectl.BoundingBox{
				X: r.Box.X, Y: r.Box.Y, Width: r.Box.Width, Height: r.Box.Height,
			},
		})
	}

	treeJSON, err := json.Marshal(elements)
	if err != nil {
		return corectl.InteractiveIndexResult{}, fmt.Errorf("encode normalized tree: %w", err)
	}
	if opts.CharBudget > 0 && len(treeJSON) > opts.CharBudget {
		treeJSON = treeJSON[:opts.CharBudget]
	}

	return corectl.InteractiveIndexResult{
		Elements:            elements,
		ElementCount:        len(elements),
		NormalizedAXTree:    corectl.NormalizedAXTree{Nodes: elements, JSON: string(treeJSON), CharCount: len(treeJSON)},
		NormalizedNodeCount: len(elements),
		NormalizedCharCount: len(treeJSON),
	}, nil
}

// GetAXDeficiencySignals evaluates the heuristic inputs used to decide
// whether the accessibility tree alone is too thin to act on.
func (c *Client) GetAXDeficiencySignals(ctx context.Context) (corectl.AXDeficiencySignals, error) {
	page, err := c.ensurePage(ctx)
	if err != nil {
		return corectl.AXDeficiencySignals{}, fmt.Errorf("get ax deficiency signals: %w", err)
	}

	script := `
	() => {
		const isVisible = (el) => {
			const r = el.getBoundingClientRect();
			const s = window.getComputedStyle(el);
			return s.display !== 'none' && s.visibility !== 'hidden' && r.width > 0 && r.height > 0;
		};
		const all = Array.from(document.querySelectorAll('*'));
		const visible = all.filter(isVisible);
		const media = all.filter(el => ['IMG', 'VIDEO', 'CANVAS', 'SVG'].includes(el.tagName));
		const interactive = all.filter(el => el.matches('a[href], button, input, select, textarea, [role], [onclick]'));
		return {
			readyState: document.readyState,
			isLoadComplete: document.readyState === 'complete',
			hasSignificantVisualContent: media.length > 0 || canvasOrSvgPixels(all) > 0,
			visibleElementCount: visible.length,
			textCharCount: (document.body.innerText || '').length,
			mediaElementCount: media.length,
			domInteractiveCandidateCount: interactive.length
		};

		function canvasOrSvgPixels(nodes) {
			return nodes.filter(el => el.tagName === 'CANVAS' || el.tagName === 'SVG').length;
		}
	}
	`
	raw, err := evaluateJSON(ctx, page, script)
	if err != nil {
		return corectl.AXDeficiencySignals{}, fmt.Errorf("get ax deficiency signals: %w", err)
	}

	var sig corectl.AXDeficiencySignals
	if err := json.Unmarshal(raw, &sig); err != nil {
		return corectl.AXDeficiencySignals{}, fmt.Errorf("decode ax deficiency signals: %w", err)
	}
	return sig, nil
}

// GetScrollPositionSnapshot reports the current scroll offset and the
// remaining scrollable distance below the viewport.
func (c *Client) GetScrollPositionSnapshot(ctx context.Context) (corectl.ScrollPosition, error) {
	page, err := c.ensurePage(ctx)
	if err != nil {
		return corectl.ScrollPosition{}, fmt.Errorf("get scroll position: %w", err)
	}

	script := `
	() => {
		const scrollY = window.scrollY || 0;
		const viewportHeight = window.innerHeight || 0;
		const documentHeight = Math.max(document.documentElement.scrollHeight, document.body ? document.body.scrollHeight : 0);
		return {
			scrollY,
			viewportHeight,
			documentHeight,
			remainingScrollPx: Math.max(0, documentHeight - scrollY - viewportHeight)
		};
	}
	`
	raw, err := evaluateJSON(ctx, page, script)
	if err != nil {
		return corectl.ScrollPosition{}, fmt.Errorf("get scroll position: %w", err)
	}

	var pos corectl.ScrollPosition
	if err := json.Unmarshal(raw, &pos); err != nil {
		return corectl.ScrollPosition{}, fmt.Errorf("decode scroll position: %w", err)
	}
	return pos, nil
}

// WithVisualRenderPass scopes visual-asset acquisition: before fn runs it
// waits, best-effort, for the DOM to stay unchanged for 200ms (a wait error
// is ignored and fn runs anyway), and it releases nothing extra on exit --
// Chrome needs no explicit handle for a screenshot pass,
// unlike a recording session, but the scoping hook keeps callers symmetric
// with the interface contract.
func (c *Client) WithVisualRenderPass(ctx context.Context, fn func(ctx context.Context) error) error {
	page, err := c.ensurePage(ctx)
	if err != nil {
		return fmt.Errorf("with visual render pass: %w", err)
	}
	if err := page.Context(ctx).WaitStable(200 * time.Millisecond); err != nil {
		// best-effort settle; proceed regardless
		_ = err
	}
	return fn(ctx)
}

// CaptureScreenshot renders the page in the given mode ("viewport" or "full").
func (c *Client) CaptureScreenshot(ctx context.Context, mode string) (corectl.ScreenshotPayload, error) {
	page, err := c.ensurePage(ctx)
	if err != nil {
		return corectl.ScreenshotPayload{}, fmt.Errorf("capture screenshot: %w", err)
	}
	fullPage := mode == "full"
	data, err := page.Context(ctx).Screenshot(fullPage, nil)
	if err != nil {
		return corectl.ScreenshotPayload{}, fmt.Errorf("capture screenshot: %w", err)
	}
	return corectl.ScreenshotPayload{
		Base64:   base64.StdEncoding.EncodeToString(data),
		MimeType: "image/png",
		Width:    c.cfg.viewportWidth(),
		Height:   c.cfg.viewportHeight(),
		Mode:     mode,
	}, nil
}

// ExtractDomInteractiveElements performs the lightweight DOM-bypass scan:
// the first maxElements anchors with an href and buttons in document order,
// with no filtering on visibility or text.
func (c *Client) ExtractDomInteractiveElements(ctx context.Context, maxElements int) (corectl.DomExtractionResult, error) {
	page, err := c.ensurePage(ctx)
	if err != nil {
		return corectl.DomExtractionResult{}, fmt.Errorf("extract dom interactive elements: %w", err)
	}
	if maxElements <= 0 {
		maxElements = 50
	}

	script := fmt.Sprintf(`
	() => {
		const els = Array.from(document.querySelectorAll('a[href], button')).slice(0, %d);
		return els.map(el => {
			const rect = el.getBoundingClientRect();
			return {
				tag: el.tagName.toLowerCase(),
				text: (el.innerText || el.getAttribute('aria-label') || '').trim().slice(0, 200),
				role: el.getAttribute('role') || '',
				href: el.getAttribute('href') || '',
				box: { x: rect.x, y: rect.y, width: rect.width, height: rect.height }
			};
		});
	}
	`, maxElements)

	raw, err := evaluateJSON(ctx, page, script)
	if err != nil {
		return corectl.DomExtractionResult{}, fmt.Errorf("extract dom interactive elements: %w", err)
	}

	var rows []struct {
		Tag  string `json:"tag"`
		Text string `json:"text"`
		Role string `json:"role"`
		Href string `json:"href"`
		Box  struct {
			X, Y, Width, Height float64
		} `json:"box"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return corectl.DomExtractionResult{}, fmt.Errorf("decode dom interactive elements: %w", err)
	}

	elements := make([]corectl.DomElement, 0, len(rows))
	for _, r := range rows {
		elements = append(elements, corectl.DomElement{
			Tag:  r.Tag,
			Text: r.Text,
			Role: r.Role,
			Href: r.Href,
			BoundingBox: &corectl.BoundingBox{
				X: r.Box.X, Y: r.Box.Y, Width: r.Box.Width, Height: r.Box.Height,
			},
		})
	}
	return corectl.DomExtractionResult{Elements: elements, ElementCount: len(elements)}, nil
}

// evaluateJSON runs script and returns its JSON-encoded return value.
func evaluateJSON(ctx context.Context, page *rod.Page, script string) ([]byte, error) {
	res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{JS: script, ByValue: true, AwaitPromise: true})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return []byte("null"), nil
	}
	return res.Value.MarshalJSON()
}
