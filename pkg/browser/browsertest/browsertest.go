// Package browsertest provides in-memory browser drivers for tests.
package browsertest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/entrhq/seauto/pkg/browser"
)

// PNG is the payload returned by Driver.Screenshot.
var PNG = []byte("\x89PNG\r\n\x1a\nfake")

// Driver is a scriptable browser.Driver. Set the *Err fields to make the
// matching call fail.
type Driver struct {
	KindValue browser.Kind
	ID        string
	URL       string
	TitleText string
	Source    string
	CookieJar []browser.Cookie

	SessionIDErr  error
	URLErr        error
	CookiesErr    error
	SourceErr     error
	ScreenshotErr error
	QuitErr       error

	mu          sync.Mutex
	quits       int
	screenshots int
	navigations []string
}

// NewDriver returns a driver of kind with a page loaded.
func NewDriver(kind browser.Kind) *Driver {
	return &Driver{
		KindValue: kind,
		ID:        "session-" + string(kind),
		URL:       "https://example.test/search?q=partnet",
		TitleText: "Search results",
		Source:    `<html><head><link rel="stylesheet" href="/site.css"></head><body><img src="logo.png"></body></html>`,
		CookieJar: []browser.Cookie{{Name: "SID", Value: "abc", Domain: "example.test", Path: "/"}},
	}
}

func (d *Driver) Kind() browser.Kind { return d.KindValue }

func (d *Driver) SessionID() (string, error) {
	if d.SessionIDErr != nil {
		return "", d.SessionIDErr
	}
	return d.ID, nil
}

func (d *Driver) Navigate(url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.navigations = append(d.navigations, url)
	d.URL = url
	return nil
}

func (d *Driver) CurrentURL() (string, error) {
	if d.URLErr != nil {
		return "", d.URLErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.URL, nil
}

func (d *Driver) Title() (string, error) { return d.TitleText, nil }

func (d *Driver) Cookies() ([]browser.Cookie, error) {
	if d.CookiesErr != nil {
		return nil, d.CookiesErr
	}
	return d.CookieJar, nil
}

func (d *Driver) PageSource() (string, error) {
	if d.SourceErr != nil {
		return "", d.SourceErr
	}
	return d.Source, nil
}

func (d *Driver) Screenshot() ([]byte, error) {
	d.mu.Lock()
	d.screenshots++
	d.mu.Unlock()
	if d.ScreenshotErr != nil {
		return nil, d.ScreenshotErr
	}
	if !d.KindValue.NativeScreenshots() {
		return nil, browser.ErrScreenshotUnsupported
	}
	return PNG, nil
}

func (d *Driver) Quit() error {
	d.mu.Lock()
	d.quits++
	d.mu.Unlock()
	return d.QuitErr
}

// Quits returns how many times Quit was called.
func (d *Driver) Quits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quits
}

// Screenshots returns how many times Screenshot was called.
func (d *Driver) Screenshots() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.screenshots
}

// Navigations returns every URL passed to Navigate.
func (d *Driver) Navigations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.navigations...)
}

// Launcher hands out Drivers and records every launch.
type Launcher struct {
	// Err fails every Launch when set
	Err error

	// Configure, when set, adjusts each driver before it is returned
	Configure func(*Driver)

	mu       sync.Mutex
	launched []*Driver
}

// Launch implements browser.Launcher.
func (l *Launcher) Launch(kind browser.Kind) (browser.Driver, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	d := NewDriver(kind)
	if l.Configure != nil {
		l.Configure(d)
	}
	l.mu.Lock()
	l.launched = append(l.launched, d)
	l.mu.Unlock()
	return d, nil
}

// Launched returns the drivers created so far.
func (l *Launcher) Launched() []*Driver {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Driver(nil), l.launched...)
}

// Last returns the most recently launched driver.
func (l *Launcher) Last() (*Driver, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.launched) == 0 {
		return nil, errors.New("browsertest: nothing launched")
	}
	return l.launched[len(l.launched)-1], nil
}

// Rasterizer records the documents it was asked to render.
type Rasterizer struct {
	Err error

	mu    sync.Mutex
	calls []string
}

// Rasterize implements browser.Rasterizer.
func (r *Rasterizer) Rasterize(html, baseURL string) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, fmt.Sprintf("%s|%s", baseURL, html))
	r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	return PNG, nil
}

// Calls returns "baseURL|html" for every Rasterize call.
func (r *Rasterizer) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}
