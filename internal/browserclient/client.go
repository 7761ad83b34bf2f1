// Package browserclient adapts github.com/go-rod/rod to corectl.BrowserClient,
// driving a single page per task through the Chrome DevTools Protocol.
package browserclient

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"agentcore/internal/corectl"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// Config controls how the underlying Chrome instance is launched or attached to.
type Config struct {
	DebuggerURL    string
	Launch         []string
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
}

// DefaultConfig returns sensible defaults for a headless run.
func DefaultConfig() Config {
	return Config{
		Headless:       true,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
	}
}

func (c Config) viewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1920
	}
	return c.ViewportWidth
}

func (c Config) viewportHeight() int {
	if c.ViewportHeight == 0 {
		return 1080
	}
	return c.ViewportHeight
}

// Client owns one detached Chrome page and satisfies corectl.BrowserClient.
type Client struct {
	cfg Config

	mu          sync.Mutex
	browser     *rod.Browser
	page        *rod.Page
	lastOutcome corectl.NavigationOutcome
}

// New returns a Client that lazily launches or attaches to Chrome on first use.
func New(cfg Config) *Client {
	return &Client{cfg: cfg}
}

func (c *Client) ensurePage(ctx context.Context) (*rod.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.page != nil {
		return c.page, nil
	}

	controlURL := c.cfg.DebuggerURL
	if controlURL == "" {
		launch := launcher.New().Headless(c.cfg.Headless)
		if len(c.cfg.Launch) > 0 {
			launch = launch.Bin(c.cfg.Launch[0])
			for _, rawFlag := range c.cfg.Launch[1:] {
				flagStr := strings.TrimLeft(rawFlag, "-")
				name, val, hasVal := strings.Cut(flagStr, "=")
				if hasVal {
					launch = launch.Set(flags.Flag(name), val)
				} else {
					launch = launch.Set(flags.Flag(name))
				}
			}
		}
		url, err := launch.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             c.cfg.viewportWidth(),
		Height:            c.cfg.viewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		browser.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	c.browser = browser
	c.page = page
	return page, nil
}

// Close releases the underlying browser, if one was started.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browser == nil {
		return nil
	}
	err := c.browser.Close()
	c.browser = nil
	c.page = nil
	return err
}

// Navigate loads url, recording the response status for GetLastNavigationOutcome.
func (c *Client) Navigate(ctx context.Context, url string, timeoutMs int) error {
	page, err := c.ensurePage(ctx)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}

	timeout := time.Duration(timeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	scoped := page.Context(ctx).Timeout(timeout)

	outcome := corectl.NavigationOutcome{RequestedURL: url}
	wait := scoped.WaitNavigation(proto.PageLifecycleEventNameNetworkIdle)
	stopStatus := captureMainFrameStatus(scoped, url, &outcome)

	navErr := scoped.Navigate(url)
	wait()
	stopStatus()

	c.mu.Lock()
	if navErr != nil {
		outcome.ErrorText = navErr.Error()
	}
	if info, infoErr := page.Info(); infoErr == nil {
		outcome.FinalURL = info.URL
	}
	c.lastOutcome = outcome
	c.mu.Unlock()

	if navErr != nil {
		return fmt.Errorf("navigate %s: %w", url, navErr)
	}
	return nil
}

// captureMainFrameStatus installs a one-shot listener for the top-level
// document response and records its HTTP status onto outcome. The returned
// func stops listening; it is safe to call multiple times.
func captureMainFrameStatus(page *rod.Page, requestedURL string, outcome *corectl.NavigationOutcome) func() {
	var once sync.Once
	stop := page.EachEvent(func(ev *proto.NetworkResponseReceived) {
		if ev.Type != proto.NetworkResourceTypeDocument {
			return
		}
		once.Do(func() {
			status := ev.Response.Status
			outcome.Status = &status
			outcome.StatusText = ev.Response.StatusText
		})
	})
	return stop
}

// GetLastNavigationOutcome returns the most recently recorded outcome.
func (c *Client) GetLastNavigationOutcome() corectl.NavigationOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastOutcome
}

// GetCurrentURL returns the page's current top-level URL.
func (c *Client) GetCurrentURL(ctx context.Context) (string, error) {
	page, err := c.ensurePage(ctx)
	if err != nil {
		return "", fmt.Errorf("get current url: %w", err)
	}
	info, err := page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("get current url: %w", err)
	}
	return info.URL, nil
}
