package browser

import (
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
)

// maxPageBytes bounds how much of a response the text engine keeps
const maxPageBytes = 10 << 20

// TextLauncher starts HTMLUnit sessions: plain HTTP fetches with a cookie
// jar and no rendering. Pages are kept as source so they can be dumped or
// rasterized elsewhere.
type TextLauncher struct {
	// Transport is used for requests; nil selects http.DefaultTransport
	Transport http.RoundTripper

	// Timeout bounds each request; zero selects 30 seconds
	Timeout time.Duration
}

// Launch creates a new text session. kind must be HTMLUnit.
func (l *TextLauncher) Launch(kind Kind) (Driver, error) {
	if kind != HTMLUnit {
		return nil, fmt.Errorf("text engine cannot launch %s", kind)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	timeout := l.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &textDriver{
		client: &http.Client{
			Transport: l.Transport,
			Jar:       jar,
			Timeout:   timeout,
		},
		current: "about:blank",
	}, nil
}

type textDriver struct {
	client *http.Client

	mu      sync.Mutex
	current string
	source  string
	closed  bool
}

func (d *textDriver) Kind() Kind {
	return HTMLUnit
}

func (d *textDriver) SessionID() (string, error) {
	return fmt.Sprintf("N/A for %s", HTMLUnit), nil
}

func (d *textDriver) Navigate(target string) error {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}

	resp, err := d.client.Get(target)
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return fmt.Errorf("failed to read page: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.current = resp.Request.URL.String()
	d.source = string(body)
	return nil
}

func (d *textDriver) CurrentURL() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", ErrSessionClosed
	}
	return d.current, nil
}

func (d *textDriver) Title() (string, error) {
	src, err := d.PageSource()
	if err != nil {
		return "", err
	}
	return extractTitle(src)
}

func (d *textDriver) Cookies() ([]Cookie, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrSessionClosed
	}

	u, err := url.Parse(d.current)
	if err != nil || u.Host == "" {
		return nil, nil
	}

	// The jar only exposes name and value; domain is the page host
	jarCookies := d.client.Jar.Cookies(u)
	cookies := make([]Cookie, 0, len(jarCookies))
	for _, c := range jarCookies {
		cookies = append(cookies, Cookie{Name: c.Name, Value: c.Value, Domain: u.Hostname()})
	}
	return cookies, nil
}

func (d *textDriver) PageSource() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", ErrSessionClosed
	}
	return d.source, nil
}

func (d *textDriver) Screenshot() ([]byte, error) {
	return nil, ErrScreenshotUnsupported
}

func (d *textDriver) Quit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrSessionClosed
	}
	d.closed = true
	d.client.CloseIdleConnections()
	return nil
}

// extractTitle returns the text of the first <title> element.
func extractTitle(src string) (string, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var title string
	var find func(*html.Node) bool
	find = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if find(c) {
				return true
			}
		}
		return false
	}
	find(doc)
	return title, nil
}
