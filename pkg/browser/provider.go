package browser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/entrhq/seauto/pkg/logging"
)

// Provider owns the single browser session of one story. The runner builds
// one Provider per story and hands it to the goroutine that executes the
// story; the session never leaves that story.
type Provider struct {
	launcher   Launcher
	rasterizer Rasterizer
	log        logging.Leveled

	mu     sync.Mutex
	driver Driver
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithRasterizer sets the renderer used for engines without native
// screenshots.
func WithRasterizer(r Rasterizer) ProviderOption {
	return func(p *Provider) {
		p.rasterizer = r
	}
}

// WithLogger sets the provider's logger.
func WithLogger(l logging.Leveled) ProviderOption {
	return func(p *Provider) {
		p.log = l
	}
}

// NewProvider creates a provider that starts sessions with launcher.
func NewProvider(launcher Launcher, opts ...ProviderOption) *Provider {
	p := &Provider{
		launcher: launcher,
		log:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Launch starts a session of the given kind and binds it to this provider.
func (p *Provider) Launch(kind Kind) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.driver != nil {
		return fmt.Errorf("launch %s: %w", kind, ErrAlreadyLaunched)
	}

	d, err := p.launcher.Launch(kind)
	if err != nil {
		return &LaunchError{Kind: kind, Err: err}
	}

	p.driver = d
	p.log.Debugf("Launched %s session", kind)
	return nil
}

// End quits the bound session. Calling End with no session is a no-op.
// The session is unbound even when quitting fails.
func (p *Provider) End() error {
	p.mu.Lock()
	d := p.driver
	p.driver = nil
	p.mu.Unlock()

	if d == nil {
		return nil
	}

	if err := d.Quit(); err != nil {
		return &TeardownError{Kind: d.Kind(), Err: err}
	}
	p.log.Debugf("Ended %s session", d.Kind())
	return nil
}

// Current returns the bound session.
func (p *Provider) Current() (Driver, error) {
	return p.current("current session")
}

func (p *Provider) current(op string) (Driver, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.driver == nil {
		return nil, &NoActiveSessionError{Op: op}
	}
	return p.driver, nil
}

// Kind returns the kind of the bound session, if any.
func (p *Provider) Kind() (Kind, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.driver == nil {
		return "", false
	}
	return p.driver.Kind(), true
}

// CaptureScreenshot writes a PNG of the current page to path. Engines
// that cannot screenshot have their page source rendered by the configured
// Rasterizer with baseURL resolving relative resources.
func (p *Provider) CaptureScreenshot(path, baseURL string) error {
	d, err := p.current("capture screenshot")
	if err != nil {
		return &CaptureError{Artifact: "screenshot", Path: path, Err: err}
	}

	data, err := d.Screenshot()
	if errors.Is(err, ErrScreenshotUnsupported) {
		p.log.Debugf("%s cannot screenshot natively, rendering page source at %s", d.Kind(), baseURL)
		data, err = p.rasterize(d, baseURL)
	}
	if err != nil {
		return &CaptureError{Artifact: "screenshot", Path: path, Err: err}
	}

	if err := writeArtifact(path, data); err != nil {
		return &CaptureError{Artifact: "screenshot", Path: path, Err: err}
	}
	return nil
}

func (p *Provider) rasterize(d Driver, baseURL string) ([]byte, error) {
	if p.rasterizer == nil {
		return nil, fmt.Errorf("no rasterizer configured for %s", d.Kind())
	}

	src, err := d.PageSource()
	if err != nil {
		return nil, fmt.Errorf("failed to read page source: %w", err)
	}

	rewritten, err := RewriteHTML(src, baseURL)
	if err != nil {
		return nil, err
	}
	return p.rasterizer.Rasterize(rewritten, baseURL)
}

// CaptureHTML writes the current page source to path with its resource
// references resolved against baseURL, so the file renders offline.
func (p *Provider) CaptureHTML(path, baseURL string) error {
	d, err := p.current("capture html")
	if err != nil {
		return &CaptureError{Artifact: "html", Path: path, Err: err}
	}

	src, err := d.PageSource()
	if err != nil {
		return &CaptureError{Artifact: "html", Path: path, Err: err}
	}

	rewritten, err := RewriteHTML(src, baseURL)
	if err != nil {
		return &CaptureError{Artifact: "html", Path: path, Err: err}
	}

	if err := writeArtifact(path, []byte(rewritten)); err != nil {
		return &CaptureError{Artifact: "html", Path: path, Err: err}
	}
	return nil
}

// SessionDescriptor summarizes a session for diagnostic logs. Fields that
// could not be read hold a placeholder instead.
type SessionDescriptor struct {
	SessionID  string
	CurrentURL string
	Title      string
	Cookies    string
	Kind       string
}

func unavailable(err error) string {
	return "unavailable: " + err.Error()
}

// DescribeSession reports the bound session's id, URL, title and cookies.
// It never fails; anything unreadable is replaced by a placeholder.
func (p *Provider) DescribeSession() SessionDescriptor {
	d, err := p.current("describe session")
	if err != nil {
		placeholder := unavailable(err)
		return SessionDescriptor{
			SessionID:  placeholder,
			CurrentURL: placeholder,
			Title:      placeholder,
			Cookies:    placeholder,
			Kind:       placeholder,
		}
	}

	desc := SessionDescriptor{Kind: d.Kind().String()}

	if id, err := d.SessionID(); err != nil {
		desc.SessionID = unavailable(err)
	} else {
		desc.SessionID = id
	}

	if u, err := d.CurrentURL(); err != nil {
		desc.CurrentURL = unavailable(err)
	} else {
		desc.CurrentURL = u
	}

	if title, err := d.Title(); err != nil {
		desc.Title = unavailable(err)
	} else {
		desc.Title = title
	}

	if cookies, err := d.Cookies(); err != nil {
		desc.Cookies = unavailable(err)
	} else {
		var b strings.Builder
		for _, c := range cookies {
			b.WriteString("\n")
			b.WriteString(c.String())
		}
		desc.Cookies = b.String()
	}

	return desc
}

// writeArtifact writes data to path, creating parent directories
func writeArtifact(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return nil
}
