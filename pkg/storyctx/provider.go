package storyctx

import (
	"errors"
	"sync"
)

// ErrContextLive is returned by Initialize while a context is still live.
var ErrContextLive = errors.New("storyctx: context already initialized")

// Provider owns the StoryContext of one story. Like browser.Provider it is
// built per story and never shared.
type Provider struct {
	siteURL  string
	sessions Sessions

	mu      sync.Mutex
	current *StoryContext
}

// NewProvider creates a provider whose contexts point at siteURL and reach
// the browser through sessions.
func NewProvider(siteURL string, sessions Sessions) *Provider {
	return &Provider{siteURL: siteURL, sessions: sessions}
}

// Initialize creates a fresh context for the story.
func (p *Provider) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		return ErrContextLive
	}
	site := &Site{URL: p.siteURL, sessions: p.sessions}
	p.current = newStoryContext(site, p.sessions)
	return nil
}

// Current returns the live context.
func (p *Provider) Current() (*StoryContext, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return nil, ErrNoContext
	}
	return p.current, nil
}

// End releases the live context. A missing context is not an error.
func (p *Provider) End() {
	p.mu.Lock()
	c := p.current
	p.current = nil
	p.mu.Unlock()

	if c != nil {
		c.end()
	}
}
