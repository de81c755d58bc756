package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/entrhq/seauto/pkg/browser"
	"github.com/entrhq/seauto/pkg/failure"
	"github.com/entrhq/seauto/pkg/storyctx"
)

// Sessions is the browser side of a story. *browser.Provider implements it.
type Sessions interface {
	Launch(kind browser.Kind) error
	End() error
	Kind() (browser.Kind, bool)
	Current() (browser.Driver, error)
	CaptureScreenshot(path, baseURL string) error
	CaptureHTML(path, baseURL string) error
	DescribeSession() browser.SessionDescriptor
}

// Contexts is the story context side of a story. *storyctx.Provider
// implements it.
type Contexts interface {
	Initialize() error
	Current() (*storyctx.StoryContext, error)
	End()
}

// StoryInProgressError is returned by BeforeStory when the previous story on
// this controller has not finished.
type StoryInProgressError struct {
	State State
}

func (e *StoryInProgressError) Error() string {
	return fmt.Sprintf("story already in progress (state %s)", e.State)
}

// Controller runs the lifecycle of a single story.
type Controller struct {
	listener *Listener
	story    string
	sessions Sessions
	contexts Contexts

	mu    sync.Mutex
	state State
}

// State returns the current story state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// BeforeStory starts the story's browser and context. It must run on the
// goroutine that will execute the story's steps. An empty browserName falls
// back to the configured browser.
//
// Errors (*browser.UnknownBrowserError, *browser.LaunchError, context
// failures) mean the story cannot run; anything already started is released
// and the controller returns to StateIdle.
func (c *Controller) BeforeStory(ctx context.Context, browserName string) error {
	log := c.listener.log
	log.Debugf("beforeStory() story=%q browser=%q", c.story, browserName)

	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		return &StoryInProgressError{State: state}
	}
	c.state = StateStoryStarting
	c.mu.Unlock()

	if c.listener.cfg.DryRun {
		log.Debugf("Dry run, not starting a browser for %q", c.story)
		c.setState(StateStoryRunning)
		return nil
	}

	if err := c.startResources(ctx, browserName); err != nil {
		c.setState(StateIdle)
		return err
	}

	c.setState(StateStoryRunning)
	return nil
}

func (c *Controller) startResources(ctx context.Context, browserName string) error {
	log := c.listener.log

	if err := ctx.Err(); err != nil {
		return err
	}

	if browserName == "" {
		browserName = c.listener.cfg.BrowserName
	}
	kind, err := browser.ParseKind(browserName)
	if err != nil {
		return err
	}

	log.Debugf("Init web driver - %s", kind)
	if err := c.sessions.Launch(kind); err != nil {
		return err
	}

	// The context may reach for the page, so it comes after the session
	log.Debugf("Initialize context")
	if err := c.contexts.Initialize(); err != nil {
		if endErr := c.sessions.End(); endErr != nil {
			log.Errorf("There was a problem ending the browser after a failed start: %v", endErr)
		}
		return fmt.Errorf("failed to initialize story context: %w", err)
	}
	return nil
}

// AfterNormalScenarioFailure handles a failed plain scenario.
func (c *Controller) AfterNormalScenarioFailure(f *failure.Failure) {
	c.listener.log.Debugf("afterScenario normal failure in %q", c.story)
	c.afterFailure(f)
}

// AfterExampleScenarioFailure handles a failed examples-table row.
func (c *Controller) AfterExampleScenarioFailure(f *failure.Failure) {
	c.listener.log.Debugf("afterScenario example failure in %q", c.story)
	c.afterFailure(f)
}

// AfterScenarioSuccess handles a passed scenario.
func (c *Controller) AfterScenarioSuccess() {}

func (c *Controller) afterFailure(f *failure.Failure) {
	log := c.listener.log

	if f == nil {
		return
	}
	if c.listener.cfg.DryRun {
		log.Debugf("Dry run, ignoring failure %s", f.ID)
		return
	}
	if state := c.State(); state != StateStoryRunning {
		log.Warnf("Failure %s reported while story %q is %s, not capturing", f.ID, c.story, state)
		return
	}

	// Pending steps still claim their id so later reports stay quiet
	if !c.listener.registry.IsNewFailure(f.ID) {
		log.Debugf("This failure has been seen before! %s", f.ID)
		return
	}
	log.Debugf("Failure ID: %s", f.ID)

	if f.IsPending() {
		log.Debugf("Don't capture diagnostics for a pending step (%s)", f.ID)
		return
	}

	c.captureDiagnostics(f)
}

func (c *Controller) captureDiagnostics(f *failure.Failure) {
	log := c.listener.log
	out := c.listener.cfg.OutputDirectory

	c.attempt("logging the session details", func() error {
		c.logSession()
		return nil
	})

	baseURL := c.baseURL()

	c.attempt("taking the screenshot", func() error {
		path := failure.ScreenshotPath(out, f.ID)
		log.Infof("Take screenshot, save to %s", path)
		return c.sessions.CaptureScreenshot(path, baseURL)
	})

	c.attempt("saving the page HTML", func() error {
		path := failure.HTMLPath(out, f.ID)
		log.Infof("Save HTML, save to %s", path)
		return c.sessions.CaptureHTML(path, baseURL)
	})

	c.attempt("logging the stack trace", func() error {
		log.Errorf("Stacktrace for failure %s\n%s", f.ID, f.StackTrace())
		return nil
	})
}

func (c *Controller) logSession() {
	log := c.listener.log
	desc := c.sessions.DescribeSession()

	log.Infof("Browser: %s", desc.Kind)
	log.Infof("Cookies: %s", desc.Cookies)
	log.Infof("Browser session ID: %s", desc.SessionID)
	log.Infof("Page title: %s", desc.Title)
	log.Errorf("URL of failure: '%s'", desc.CurrentURL)
}

// baseURL returns the URL captured pages resolve their resources against.
// Any failure yields "", which leaves references untouched.
func (c *Controller) baseURL() (base string) {
	defer func() {
		if r := recover(); r != nil {
			c.listener.log.Errorf("There was a problem resolving the base URL: panic: %v", r)
			base = ""
		}
	}()

	d, err := c.sessions.Current()
	if err != nil {
		return ""
	}
	current, err := d.CurrentURL()
	if err != nil {
		return ""
	}

	if sc, err := c.contexts.Current(); err == nil {
		return sc.Site().BaseURL(current)
	}
	return (&storyctx.Site{}).BaseURL(current)
}

// AfterStory tears the story down: clear and end the context, pause for a
// human in debug mode, end the browser. Each step runs even if an earlier one
// failed, and the controller always ends in StateIdle.
func (c *Controller) AfterStory(ctx context.Context) {
	log := c.listener.log
	log.Debugf("afterStory() story=%q", c.story)

	c.setState(StateStoryEnding)
	defer c.setState(StateIdle)

	if c.listener.cfg.DryRun {
		log.Debugf("Dry run, nothing to tear down for %q", c.story)
		return
	}

	c.attempt("clearing the story context", func() error {
		sc, err := c.contexts.Current()
		if err != nil {
			return err
		}
		return sc.Clear()
	})

	c.attempt("shutting down the story context", func() error {
		c.contexts.End()
		return nil
	})

	c.attempt("waiting for debug acknowledgement", func() error {
		return c.debugPause(ctx)
	})

	c.attempt("ending the browser session", c.sessions.End)
}

func (c *Controller) debugPause(ctx context.Context) error {
	if !c.listener.debugEnabled() {
		return nil
	}
	kind, ok := c.sessions.Kind()
	if !ok || kind.Headless() {
		return nil
	}

	c.listener.log.Infof("Debug mode is enabled. The browser will not exit until the prompt is acknowledged")
	return c.listener.ack.AwaitAcknowledgement(ctx, Notice{
		Title:   "Debug Mode",
		Message: "Debug mode is enabled. Acknowledge to close the browser",
		Story:   c.story,
		Session: c.sessions.DescribeSession(),
	})
}

// attempt runs one teardown or diagnostic step, logging its error or panic
// instead of propagating it.
func (c *Controller) attempt(step string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			c.listener.log.Errorf("There was a problem %s: panic: %v", step, r)
		}
	}()
	if err := fn(); err != nil {
		c.listener.log.Errorf("There was a problem %s: %v", step, err)
	}
}
