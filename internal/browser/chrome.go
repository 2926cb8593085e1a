// Package browser provides the page sessions the forum scraper drives: chrome
// tabs for javascript rendered forums and plain http pages for the rest.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"forummigrate/internal/components/assert"
	"forummigrate/internal/components/telemetry"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const (
	report_chrome_new_tab  = "chrome.new-tab"
	report_chrome_navigate = "chrome.navigate"
	report_chrome_idle     = "chrome.network-idle"
)

const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en', 'ru'] });
window.chrome = window.chrome || { runtime: {} };
`

type ChromeOptions struct {
	Headless        bool
	UserAgent       string
	ExecPath        string
	PageLoadTimeout time.Duration
}

// Chrome is one browser process, every Tab is a target of it and shares its
// cookies.
type Chrome struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	opts     ChromeOptions
	tel      telemetry.API

	mutex         sync.Mutex
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

func NewChrome(opts ChromeOptions, tel telemetry.API) *Chrome {
	assert.NotNil(tel)
	tel = telemetry.NewScopedAPI("browser", tel)

	if opts.PageLoadTimeout <= 0 {
		opts.PageLoadTimeout = 30 * time.Second
	}

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("mute-audio", true),
		chromedp.WindowSize(1920, 1080),
	}
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	return &Chrome{
		allocCtx: allocCtx,
		cancel:   cancel,
		opts:     opts,
		tel:      tel,
	}
}

// browser starts the browser process on first use. Its context stays open
// until Close, closing a tab never takes the browser down with it.
func (c *Chrome) browser() (context.Context, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.browserCtx != nil {
		return c.browserCtx, nil
	}

	browserCtx, cancel := chromedp.NewContext(c.allocCtx)
	// the first Run allocates the browser, a timeout on it would tear the
	// browser down again once it fires.
	err := chromedp.Run(browserCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	c.browserCtx = browserCtx
	c.browserCancel = cancel
	return browserCtx, nil
}

// NewTab opens a new tab in the shared browser.
func (c *Chrome) NewTab(ctx context.Context) (*Tab, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	browserCtx, err := c.browser()
	if err != nil {
		c.tel.ReportBroken(report_chrome_new_tab, err)
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(browserCtx)
	tab := &Tab{
		ctx:     tabCtx,
		cancel:  cancel,
		timeout: c.opts.PageLoadTimeout,
		idle:    make(chan cdp.FrameID, 16),
		tel:     c.tel,
	}
	chromedp.ListenTarget(tabCtx, tab.onEvent)

	err = chromedp.Run(tabCtx,
		page.SetLifecycleEventsEnabled(true),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
		network.SetExtraHTTPHeaders(network.Headers(map[string]interface{}{
			"Accept-Language": "en-US,en;q=0.9,ru;q=0.8",
		})),
	)
	if err != nil {
		cancel()
		c.tel.ReportBroken(report_chrome_new_tab, err)
		return nil, fmt.Errorf("start tab: %w", err)
	}
	return tab, nil
}

// Close kills the browser process along with all of its tabs.
func (c *Chrome) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.browserCancel != nil {
		c.browserCancel()
		c.browserCtx = nil
		c.browserCancel = nil
	}
	c.cancel()
	return nil
}

// Tab is a single chrome tab.
type Tab struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	// idle receives the frame of every networkIdle lifecycle event.
	idle chan cdp.FrameID
	tel  telemetry.API
}

func (t *Tab) onEvent(ev interface{}) {
	lifecycle, ok := ev.(*page.EventLifecycleEvent)
	if !ok || lifecycle.Name != "networkIdle" {
		return
	}
	select {
	case t.idle <- lifecycle.FrameID:
	default:
	}
}

func (t *Tab) drainIdle() {
	for {
		select {
		case <-t.idle:
		default:
			return
		}
	}
}

// waitNetworkIdle blocks until the main frame reports network idle.
func (t *Tab) waitNetworkIdle() chromedp.ActionFunc {
	return func(ctx context.Context) error {
		tree, err := page.GetFrameTree().Do(ctx)
		if err != nil {
			return err
		}
		for {
			select {
			case frame := <-t.idle:
				if frame == tree.Frame.ID {
					return nil
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// run executes actions on the tab bounded by both the page load timeout and
// the caller's context.
func (t *Tab) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(t.ctx, t.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate loads url and waits for the body and then for the network to go
// idle. A page that never goes idle within the page load timeout is used as
// it is.
func (t *Tab) Navigate(ctx context.Context, url string) error {
	t.drainIdle()
	err := t.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		t.tel.ReportWarning(report_chrome_navigate, err, url)
		return err
	}

	err = t.run(ctx, t.waitNetworkIdle())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.tel.ReportWarning(report_chrome_idle, err, url)
	}
	return nil
}

func (t *Tab) HTML(ctx context.Context) (string, error) {
	var out string
	err := t.run(ctx, chromedp.OuterHTML("html", &out, chromedp.ByQuery))
	return out, err
}

func (t *Tab) Location(ctx context.Context) (string, error) {
	var out string
	err := t.run(ctx, chromedp.Location(&out))
	return out, err
}

const clickScript = `(() => {
	const el = document.querySelector(%s);
	if (!el) return false;
	el.scrollIntoView({block: "center"});
	el.click();
	return true;
})()`

// Click clicks the first element matching selector, it returns false without
// an error when nothing matches.
func (t *Tab) Click(ctx context.Context, selector string) (bool, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return false, err
	}
	var clicked bool
	err = t.run(ctx, chromedp.Evaluate(fmt.Sprintf(clickScript, quoted), &clicked))
	return clicked, err
}

func (t *Tab) Fill(ctx context.Context, selector, value string) error {
	return t.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (t *Tab) Close() error {
	t.cancel()
	return nil
}
