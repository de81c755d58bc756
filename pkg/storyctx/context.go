// Package storyctx holds the state step definitions share while one story
// runs: the site under test and the page objects visited so far.
package storyctx

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/entrhq/seauto/pkg/browser"
)

// ErrNoContext is returned when a story context is used before Initialize
// or after End.
var ErrNoContext = errors.New("storyctx: no story context")

// Sessions gives a context access to its story's browser session.
// *browser.Provider implements it.
type Sessions interface {
	Current() (browser.Driver, error)
}

// Site describes the application under test.
type Site struct {
	// URL is the configured root of the site; may be empty
	URL string

	sessions Sessions
}

// BaseURL returns the URL relative resources of the current page resolve
// against: the configured site root, or the scheme and host of currentURL
// when none is configured.
func (s *Site) BaseURL(currentURL string) string {
	if s.URL != "" {
		return ensureTrailingSlash(s.URL)
	}

	u, err := url.Parse(currentURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/"
}

// Open navigates the story's session to the site root.
func (s *Site) Open() error {
	if s.URL == "" {
		return errors.New("no site URL configured")
	}
	d, err := s.sessions.Current()
	if err != nil {
		return err
	}
	return d.Navigate(s.URL)
}

// Visit navigates to path relative to the site root.
func (s *Site) Visit(path string) error {
	if s.URL == "" {
		return errors.New("no site URL configured")
	}
	base, err := url.Parse(ensureTrailingSlash(s.URL))
	if err != nil {
		return fmt.Errorf("invalid site URL %q: %w", s.URL, err)
	}
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}

	d, err := s.sessions.Current()
	if err != nil {
		return err
	}
	return d.Navigate(base.ResolveReference(ref).String())
}

func ensureTrailingSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

// StoryContext is the per-story state bag.
type StoryContext struct {
	site     *Site
	sessions Sessions

	mu      sync.Mutex
	pages   map[string]interface{}
	cleared bool
	ended   bool
}

func newStoryContext(site *Site, sessions Sessions) *StoryContext {
	return &StoryContext{
		site:     site,
		sessions: sessions,
		pages:    make(map[string]interface{}),
	}
}

// Site returns the site under test.
func (c *StoryContext) Site() *Site {
	return c.site
}

// Driver returns the story's live browser session.
func (c *StoryContext) Driver() (browser.Driver, error) {
	return c.sessions.Current()
}

// Page returns the page object cached under name, building it with factory
// on first use.
func (c *StoryContext) Page(name string, factory func() interface{}) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ended {
		return nil, ErrNoContext
	}
	if p, ok := c.pages[name]; ok {
		return p, nil
	}
	p := factory()
	c.pages[name] = p
	return p, nil
}

// Pages returns the names of the pages visited so far.
func (c *StoryContext) Pages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.pages))
	for name := range c.pages {
		names = append(names, name)
	}
	return names
}

// Clear drops every cached page object. It fails with ErrNoContext once the
// context has been ended.
func (c *StoryContext) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ended {
		return ErrNoContext
	}
	c.pages = make(map[string]interface{})
	c.cleared = true
	return nil
}

// Cleared reports whether Clear has run.
func (c *StoryContext) Cleared() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleared
}

func (c *StoryContext) end() {
	c.mu.Lock()
	c.ended = true
	c.pages = nil
	c.mu.Unlock()
}
