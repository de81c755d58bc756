package browser

import (
	"fmt"
)

// Cookie is one cookie held by a session.
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

func (c Cookie) String() string {
	s := fmt.Sprintf("%s=%s", c.Name, c.Value)
	if c.Path != "" {
		s += "; path=" + c.Path
	}
	if c.Domain != "" {
		s += "; domain=" + c.Domain
	}
	return s
}

// Driver is one live automation session. A Driver is owned by a single
// Provider and must not be shared between stories.
type Driver interface {
	// Kind returns the engine kind the session was launched as
	Kind() Kind

	// SessionID identifies the session on the automation engine
	SessionID() (string, error)

	// Navigate loads url in the session's page
	Navigate(url string) error

	// CurrentURL returns the URL of the page currently loaded
	CurrentURL() (string, error)

	// Title returns the current page title
	Title() (string, error)

	// Cookies returns the cookies visible to the current page, in order
	Cookies() ([]Cookie, error)

	// PageSource returns the HTML of the current page
	PageSource() (string, error)

	// Screenshot returns a PNG of the current page, or
	// ErrScreenshotUnsupported when the engine cannot render
	Screenshot() ([]byte, error)

	// Quit releases the session and any process or connection behind it
	Quit() error
}

// Launcher starts new sessions.
type Launcher interface {
	Launch(kind Kind) (Driver, error)
}

// Launchers dispatches Launch to the launcher registered for each kind.
type Launchers map[Kind]Launcher

// Launch starts a session with the launcher registered for kind.
func (l Launchers) Launch(kind Kind) (Driver, error) {
	launcher, ok := l[kind]
	if !ok {
		return nil, fmt.Errorf("no launcher registered for %s", kind)
	}
	return launcher.Launch(kind)
}

// Rasterizer renders an HTML document into a PNG. It backs screenshots for
// engines without native rendering.
type Rasterizer interface {
	Rasterize(html, baseURL string) ([]byte, error)
}
