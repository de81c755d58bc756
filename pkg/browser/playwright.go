package browser

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
)

// Defaults for playwright sessions
const (
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultTimeout        = 30000.0 // 30 seconds in milliseconds
)

// PlaywrightOptions configures a PlaywrightLauncher.
type PlaywrightOptions struct {
	// InstallBrowsers downloads the playwright driver and browsers on first use
	InstallBrowsers bool

	// RemoteURL is the websocket endpoint used by the Remote kind
	RemoteURL string

	// Timeout is the default page timeout in milliseconds
	Timeout float64
}

// PlaywrightLauncher starts chromium, firefox and webkit sessions through one
// shared playwright driver process. It is safe for concurrent use by every
// story of a run; each Launch returns an independent browser.
type PlaywrightLauncher struct {
	opts PlaywrightOptions

	mu          sync.Mutex
	playwright  *playwright.Playwright
	initialized bool
}

// NewPlaywrightLauncher creates a launcher. The playwright driver is started
// lazily by the first Launch or Rasterize.
func NewPlaywrightLauncher(opts PlaywrightOptions) *PlaywrightLauncher {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	return &PlaywrightLauncher{opts: opts}
}

// initialize starts the playwright driver once.
func (l *PlaywrightLauncher) initialize() (*playwright.Playwright, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized {
		return l.playwright, nil
	}

	// Discard driver output so it does not interleave with story logs
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if l.opts.InstallBrowsers {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	l.playwright = pw
	l.initialized = true
	return pw, nil
}

// Launch starts a browser of the given kind with a fresh context and page.
func (l *PlaywrightLauncher) Launch(kind Kind) (Driver, error) {
	pw, err := l.initialize()
	if err != nil {
		return nil, err
	}

	var browser playwright.Browser
	switch kind {
	case Chrome, ChromeHeadless:
		browser, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(kind.Headless()),
		})
	case Firefox, FirefoxHeadless:
		browser, err = pw.Firefox.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(kind.Headless()),
		})
	case WebKit:
		browser, err = pw.WebKit.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(false),
		})
	case Remote:
		if l.opts.RemoteURL == "" {
			return nil, errors.New("remote browser requested but no remote URL configured")
		}
		browser, err = pw.Chromium.Connect(l.opts.RemoteURL)
	default:
		return nil, fmt.Errorf("playwright cannot launch %s", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		},
	})
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(l.opts.Timeout)

	return &playwrightDriver{
		kind:      kind,
		sessionID: fmt.Sprintf("%s-%s/%s", string(kind), browser.Version(), uuid.NewString()),
		browser:   browser,
		context:   context,
		page:      page,
	}, nil
}

// Rasterize renders html in a throwaway headless chromium page and returns a
// full-page PNG. It backs screenshots for the HTMLUnit engine.
func (l *PlaywrightLauncher) Rasterize(html, baseURL string) ([]byte, error) {
	pw, err := l.initialize()
	if err != nil {
		return nil, err
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch renderer: %w", err)
	}
	defer browser.Close()

	page, err := browser.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer page: %w", err)
	}

	if err := page.SetContent(html, playwright.PageSetContentOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	}); err != nil {
		return nil, fmt.Errorf("failed to render page for %s: %w", baseURL, err)
	}

	data, err := page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to rasterize page: %w", err)
	}
	return data, nil
}

// Close stops the shared playwright driver. Sessions still open are left to
// their providers.
func (l *PlaywrightLauncher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.initialized || l.playwright == nil {
		return nil
	}
	l.initialized = false
	if err := l.playwright.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

// playwrightDriver is a Driver backed by one playwright browser, context and page.
type playwrightDriver struct {
	kind      Kind
	sessionID string
	browser   playwright.Browser
	context   playwright.BrowserContext
	page      playwright.Page

	mu     sync.Mutex
	closed bool
}

func (d *playwrightDriver) Kind() Kind {
	return d.kind
}

func (d *playwrightDriver) live() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrSessionClosed
	}
	return nil
}

func (d *playwrightDriver) SessionID() (string, error) {
	if err := d.live(); err != nil {
		return "", err
	}
	return d.sessionID, nil
}

func (d *playwrightDriver) Navigate(url string) error {
	if err := d.live(); err != nil {
		return err
	}
	if _, err := d.page.Goto(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (d *playwrightDriver) CurrentURL() (string, error) {
	if err := d.live(); err != nil {
		return "", err
	}
	return d.page.URL(), nil
}

func (d *playwrightDriver) Title() (string, error) {
	if err := d.live(); err != nil {
		return "", err
	}
	return d.page.Title()
}

func (d *playwrightDriver) Cookies() ([]Cookie, error) {
	if err := d.live(); err != nil {
		return nil, err
	}
	pwCookies, err := d.context.Cookies()
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}

	cookies := make([]Cookie, 0, len(pwCookies))
	for _, c := range pwCookies {
		cookies = append(cookies, Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
	}
	return cookies, nil
}

func (d *playwrightDriver) PageSource() (string, error) {
	if err := d.live(); err != nil {
		return "", err
	}
	return d.page.Content()
}

func (d *playwrightDriver) Screenshot() ([]byte, error) {
	if err := d.live(); err != nil {
		return nil, err
	}
	return d.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
	})
}

// Quit closes page, context and browser, attempting all three and joining
// their errors.
func (d *playwrightDriver) Quit() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrSessionClosed
	}
	d.closed = true
	d.mu.Unlock()

	var errs []error
	if err := d.page.Close(); err != nil {
		errs = append(errs, fmt.Errorf("page: %w", err))
	}
	if err := d.context.Close(); err != nil {
		errs = append(errs, fmt.Errorf("context: %w", err))
	}
	if err := d.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("browser: %w", err))
	}
	return errors.Join(errs...)
}
