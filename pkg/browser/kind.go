package browser

import (
	"strings"
)

// Kind selects the automation engine backing a session.
type Kind string

const (
	Chrome          Kind = "chrome"
	ChromeHeadless  Kind = "chrome-headless"
	Firefox         Kind = "firefox"
	FirefoxHeadless Kind = "firefox-headless"
	WebKit          Kind = "webkit"
	// HTMLUnit is the text-only engine: plain HTTP fetches with a cookie jar,
	// no rendering and no native screenshots.
	HTMLUnit Kind = "htmlunit"
	// Remote connects to a playwright browser server over websocket.
	Remote Kind = "remote"
)

// Kinds lists every supported kind in display order.
var Kinds = []Kind{Chrome, ChromeHeadless, Firefox, FirefoxHeadless, WebKit, HTMLUnit, Remote}

// ParseKind resolves a configured browser name, ignoring case and
// surrounding whitespace. Underscores are accepted in place of dashes so
// enum-style names such as CHROME_HEADLESS resolve too.
func ParseKind(name string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, "_", "-")
	for _, k := range Kinds {
		if string(k) == normalized {
			return k, nil
		}
	}
	return "", &UnknownBrowserError{Name: name}
}

// Headless reports whether sessions of this kind never show a window.
func (k Kind) Headless() bool {
	switch k {
	case ChromeHeadless, FirefoxHeadless, HTMLUnit:
		return true
	default:
		return false
	}
}

// NativeScreenshots reports whether the engine can rasterize its own pages.
func (k Kind) NativeScreenshots() bool {
	return k != HTMLUnit
}

func (k Kind) String() string {
	return strings.ToUpper(string(k))
}
