package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// opTimeout bounds each individual page operation. The run-level timeout is
// enforced one layer up by the orchestrator's context.
const opTimeout = 30 * time.Second

// Connection is a live CDP connection to a remote browser session. One is
// opened lazily per run and reused for every page operation; the sandbox
// never closes it, so a live view stays watchable after the run responds.
type Connection struct {
	browserCtx context.Context
	cancels    []context.CancelFunc
}

// dialCDP attaches to the provider's CDP websocket for a session.
func dialCDP(ctx context.Context, connectURL string) (*Connection, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(),
		connectURL, chromedp.NoModifyURL)

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Force the connection open now so dial errors surface at connect time
	// instead of on the first page action inside a test body.
	dialCtx, cancel := context.WithTimeout(browserCtx, opTimeout)
	defer cancel()
	if err := chromedp.Run(dialCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("attach to %s: %w", connectURL, err)
	}

	return &Connection{
		browserCtx: browserCtx,
		cancels:    []context.CancelFunc{browserCancel, allocCancel},
	}, nil
}

// Close tears down the CDP connection. Only the session manager calls this,
// during termination.
func (c *Connection) Close() {
	for _, cancel := range c.cancels {
		cancel()
	}
}

func (c *Connection) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(c.browserCtx, opTimeout)
	defer cancel()

	// Propagate caller cancellation into the CDP operation.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(opCtx, actions...)
}

// Navigate loads a URL and waits for the document body.
func (c *Connection) Navigate(ctx context.Context, url string) error {
	return c.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body"))
}

// Click waits for the selector to become visible, then clicks it.
func (c *Connection) Click(ctx context.Context, selector string) error {
	return c.run(ctx, chromedp.WaitVisible(selector), chromedp.Click(selector))
}

// Type focuses the selector and types text into it.
func (c *Connection) Type(ctx context.Context, selector, text string) error {
	return c.run(ctx, chromedp.WaitVisible(selector), chromedp.SendKeys(selector, text))
}

// WaitVisible blocks until the selector is visible.
func (c *Connection) WaitVisible(ctx context.Context, selector string) error {
	return c.run(ctx, chromedp.WaitVisible(selector))
}

// Evaluate runs a JavaScript expression in the page and returns its
// JSON-decoded result.
func (c *Connection) Evaluate(ctx context.Context, expr string) (any, error) {
	var raw json.RawMessage
	if err := c.run(ctx, chromedp.Evaluate(expr, &raw)); err != nil {
		return nil, err
	}
	var out any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decode evaluate result: %w", err)
		}
	}
	return out, nil
}

// Title returns the current page title.
func (c *Connection) Title(ctx context.Context) (string, error) {
	var title string
	if err := c.run(ctx, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

// URL returns the current page location.
func (c *Connection) URL(ctx context.Context) (string, error) {
	var url string
	if err := c.run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// Screenshot captures the visible viewport as PNG.
func (c *Connection) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return buf, nil
}
