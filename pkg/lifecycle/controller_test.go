package lifecycle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/entrhq/seauto/pkg/browser"
	"github.com/entrhq/seauto/pkg/browser/browsertest"
	"github.com/entrhq/seauto/pkg/config"
	"github.com/entrhq/seauto/pkg/failure"
	"github.com/entrhq/seauto/pkg/logging"
	"github.com/entrhq/seauto/pkg/storyctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// events records the order of resource calls across sessions and contexts
type events struct {
	mu   sync.Mutex
	list []string
}

func (e *events) add(s string) {
	e.mu.Lock()
	e.list = append(e.list, s)
	e.mu.Unlock()
}

func (e *events) all() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.list...)
}

type recordingSessions struct {
	*browser.Provider
	events *events
}

func (s *recordingSessions) Launch(kind browser.Kind) error {
	s.events.add("session.launch")
	return s.Provider.Launch(kind)
}

func (s *recordingSessions) End() error {
	s.events.add("session.end")
	return s.Provider.End()
}

type recordingContexts struct {
	*storyctx.Provider
	events  *events
	initErr error
}

func (c *recordingContexts) Initialize() error {
	c.events.add("context.init")
	if c.initErr != nil {
		return c.initErr
	}
	return c.Provider.Initialize()
}

func (c *recordingContexts) End() {
	c.events.add("context.end")
	c.Provider.End()
}

type harness struct {
	cfg        config.RunConfig
	registry   *failure.Registry
	log        *logging.Capture
	launcher   *browsertest.Launcher
	rasterizer *browsertest.Rasterizer
	events     *events
	listener   *Listener
	sessions   *recordingSessions
	contexts   *recordingContexts
	controller *Controller
}

func newHarness(t *testing.T, mutate func(*config.RunConfig), opts ...Option) *harness {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.OutputDirectory = t.TempDir()
	cfg.SiteURL = "https://www.bing.com"
	if mutate != nil {
		mutate(&cfg)
	}

	h := &harness{
		cfg:        cfg,
		registry:   failure.NewRegistry(),
		log:        logging.NewCapture(),
		launcher:   &browsertest.Launcher{},
		rasterizer: &browsertest.Rasterizer{},
		events:     &events{},
	}

	opts = append([]Option{WithLogger(h.log), WithGetenv(func(string) string { return "" })}, opts...)
	h.listener = NewListener(cfg, h.registry, opts...)
	h.controller = h.newStory("search")
	return h
}

func (h *harness) newStory(name string) *Controller {
	provider := browser.NewProvider(h.launcher, browser.WithRasterizer(h.rasterizer))
	h.sessions = &recordingSessions{Provider: provider, events: h.events}
	h.contexts = &recordingContexts{Provider: storyctx.NewProvider(h.cfg.SiteURL, provider), events: h.events}
	return h.listener.NewStory(name, h.sessions, h.contexts)
}

func (h *harness) artifacts(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(h.cfg.OutputDirectory, "screenshots"))
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestBeforeStory_StartsSessionThenContext(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	assert.Equal(t, StateIdle, h.controller.State())
	require.NoError(t, h.controller.BeforeStory(ctx, "Chrome"))

	assert.Equal(t, StateStoryRunning, h.controller.State())
	assert.Equal(t, []string{"session.launch", "context.init"}, h.events.all())

	d, err := h.launcher.Last()
	require.NoError(t, err)
	assert.Equal(t, browser.Chrome, d.Kind())

	_, err = h.contexts.Current()
	assert.NoError(t, err)
}

func TestBeforeStory_DefaultsToConfiguredBrowser(t *testing.T) {
	h := newHarness(t, func(c *config.RunConfig) { c.BrowserName = "FIREFOX_HEADLESS" })

	require.NoError(t, h.controller.BeforeStory(context.Background(), ""))

	d, err := h.launcher.Last()
	require.NoError(t, err)
	assert.Equal(t, browser.FirefoxHeadless, d.Kind())
}

func TestBeforeStory_UnknownBrowser(t *testing.T) {
	h := newHarness(t, nil)

	err := h.controller.BeforeStory(context.Background(), "netscape")

	var unknown *browser.UnknownBrowserError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, StateIdle, h.controller.State())
	assert.Empty(t, h.launcher.Launched())
	assert.Empty(t, h.events.all())
}

func TestBeforeStory_LaunchErrorIsEscalated(t *testing.T) {
	h := newHarness(t, nil)
	h.launcher.Err = errors.New("connection refused")

	err := h.controller.BeforeStory(context.Background(), "remote")

	var launchErr *browser.LaunchError
	require.True(t, errors.As(err, &launchErr))
	assert.Equal(t, StateIdle, h.controller.State())
	assert.Equal(t, []string{"session.launch"}, h.events.all(), "no context without a session")
}

func TestBeforeStory_ContextFailureReleasesSession(t *testing.T) {
	h := newHarness(t, nil)
	h.contexts.initErr = errors.New("site unreachable")

	err := h.controller.BeforeStory(context.Background(), "chrome")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "site unreachable")
	assert.Equal(t, StateIdle, h.controller.State())
	assert.Equal(t, []string{"session.launch", "context.init", "session.end"}, h.events.all())

	d, _ := h.launcher.Last()
	assert.Equal(t, 1, d.Quits())
}

func TestBeforeStory_WhileRunning(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.controller.BeforeStory(ctx, "chrome"))

	err := h.controller.BeforeStory(ctx, "chrome")

	var inProgress *StoryInProgressError
	require.True(t, errors.As(err, &inProgress))
	assert.Equal(t, StateStoryRunning, inProgress.State)
	assert.Len(t, h.launcher.Launched(), 1)
}

func TestBeforeStory_CanceledContext(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.controller.BeforeStory(ctx, "chrome")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.launcher.Launched())
	assert.Equal(t, StateIdle, h.controller.State())
}

func TestDryRun_CreatesNothing(t *testing.T) {
	h := newHarness(t, func(c *config.RunConfig) { c.DryRun = true })
	ctx := context.Background()

	h.listener.BeforeStories()
	require.NoError(t, h.controller.BeforeStory(ctx, "chrome"))
	assert.Equal(t, StateStoryRunning, h.controller.State())

	f := failure.New(errors.New("boom"))
	h.controller.AfterNormalScenarioFailure(f)
	h.controller.AfterExampleScenarioFailure(f)
	h.controller.AfterScenarioSuccess()
	h.controller.AfterStory(ctx)
	h.listener.AfterStories()

	assert.Equal(t, StateIdle, h.controller.State())
	assert.Empty(t, h.launcher.Launched())
	assert.Empty(t, h.events.all())
	assert.Empty(t, h.artifacts(t))
	assert.Equal(t, 0, h.registry.Len(), "dry runs do not consume failure ids")
}

func TestAfterScenarioFailure_CapturesDiagnostics(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.controller.BeforeStory(context.Background(), "chrome"))

	f := failure.New(errors.New("Partnet not in results"))
	f.ID = "abc-123"
	h.controller.AfterNormalScenarioFailure(f)

	out := h.cfg.OutputDirectory
	png, err := os.ReadFile(out + "/screenshots/failed-scenario-abc-123.png")
	require.NoError(t, err)
	assert.Equal(t, browsertest.PNG, png)

	page, err := os.ReadFile(out + "/screenshots/failed-scenario-abc-123.html")
	require.NoError(t, err)
	assert.Contains(t, string(page), `<base href="https://www.bing.com/"/>`)
	assert.Contains(t, string(page), `href="https://www.bing.com/site.css"`)

	assert.True(t, h.log.Contains("INFO", "Cookies: \nSID=abc"))
	assert.True(t, h.log.Contains("INFO", "Browser session ID: session-chrome"))
	assert.True(t, h.log.Contains("ERROR", "URL of failure: 'https://example.test/search?q=partnet'"))
	assert.True(t, h.log.Contains("ERROR", "Stacktrace for failure abc-123"))
	assert.True(t, h.log.Contains("ERROR", "Partnet not in results"))
	assert.Equal(t, StateStoryRunning, h.controller.State())
}

func TestAfterScenarioFailure_DuplicateReportsCaptureOnce(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.controller.BeforeStory(context.Background(), "chrome"))

	f := failure.New(errors.New("boom"))
	h.controller.AfterExampleScenarioFailure(f)
	h.controller.AfterNormalScenarioFailure(f)
	h.controller.AfterNormalScenarioFailure(f)

	d, _ := h.launcher.Last()
	assert.Equal(t, 1, d.Screenshots())
	assert.ElementsMatch(t, []string{
		"failed-scenario-" + f.ID.String() + ".png",
		"failed-scenario-" + f.ID.String() + ".html",
	}, h.artifacts(t))
	assert.True(t, h.log.Contains("DEBUG", "seen before"))
}

func TestAfterScenarioFailure_DuplicateAcrossStories(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	first := h.controller
	second := h.newStory("checkout")
	require.NoError(t, first.BeforeStory(ctx, "chrome"))
	require.NoError(t, second.BeforeStory(ctx, "chrome"))

	f := failure.New(errors.New("shared"))
	first.AfterNormalScenarioFailure(f)
	second.AfterNormalScenarioFailure(f)

	total := 0
	for _, d := range h.launcher.Launched() {
		total += d.Screenshots()
	}
	assert.Equal(t, 1, total)
}

func TestAfterScenarioFailure_PendingNeverCaptures(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.controller.BeforeStory(context.Background(), "chrome"))

	pending := failure.Pending("When I fly to the moon")
	h.controller.AfterNormalScenarioFailure(pending)

	assert.Empty(t, h.artifacts(t))
	d, _ := h.launcher.Last()
	assert.Equal(t, 0, d.Screenshots())

	// the id is consumed, so a later report of it is a duplicate too
	assert.False(t, h.registry.IsNewFailure(pending.ID))
}

func TestAfterScenarioFailure_ScreenshotFailureDoesNotStopCapture(t *testing.T) {
	h := newHarness(t, nil)
	h.launcher.Configure = func(d *browsertest.Driver) {
		d.ScreenshotErr = errors.New("target crashed")
	}
	require.NoError(t, h.controller.BeforeStory(context.Background(), "chrome"))

	f := failure.New(errors.New("boom"))
	h.controller.AfterNormalScenarioFailure(f)

	assert.Equal(t, []string{"failed-scenario-" + f.ID.String() + ".html"}, h.artifacts(t))
	assert.True(t, h.log.Contains("ERROR", "There was a problem taking the screenshot"))
	assert.True(t, h.log.Contains("ERROR", "Stacktrace for failure "+f.ID.String()))
}

func TestAfterScenarioFailure_IntrospectionFailureIsPlaceholder(t *testing.T) {
	h := newHarness(t, nil)
	h.launcher.Configure = func(d *browsertest.Driver) {
		d.SessionIDErr = errors.New("session lost")
		d.CookiesErr = errors.New("session lost")
	}
	require.NoError(t, h.controller.BeforeStory(context.Background(), "chrome"))

	f := failure.New(errors.New("boom"))
	h.controller.AfterNormalScenarioFailure(f)

	assert.True(t, h.log.Contains("INFO", "Browser session ID: unavailable: session lost"))
	assert.Len(t, h.artifacts(t), 2)
}

func TestAfterScenarioFailure_HTMLUnitUsesRasterizer(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.controller.BeforeStory(context.Background(), "htmlunit"))

	f := failure.New(errors.New("boom"))
	h.controller.AfterNormalScenarioFailure(f)

	calls := h.rasterizer.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0], "https://www.bing.com/|")
	assert.Len(t, h.artifacts(t), 2)
}

func TestAfterScenarioFailure_OutsideRunningStory(t *testing.T) {
	h := newHarness(t, nil)

	f := failure.New(errors.New("boom"))
	h.controller.AfterNormalScenarioFailure(f)

	assert.Empty(t, h.artifacts(t))
	assert.True(t, h.registry.IsNewFailure(f.ID), "id not consumed outside a story")
	assert.True(t, h.log.Contains("WARN", "not capturing"))
}

func TestAfterScenarioFailure_Nil(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.controller.BeforeStory(context.Background(), "chrome"))

	h.controller.AfterNormalScenarioFailure(nil)
	assert.Empty(t, h.artifacts(t))
}

func TestAfterStory_TearsDownInOrder(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.controller.BeforeStory(ctx, "chrome"))
	sc, err := h.contexts.Current()
	require.NoError(t, err)

	h.controller.AfterStory(ctx)

	assert.Equal(t, StateIdle, h.controller.State())
	assert.True(t, sc.Cleared())
	assert.Equal(t, []string{"session.launch", "context.init", "context.end", "session.end"}, h.events.all())

	d, _ := h.launcher.Last()
	assert.Equal(t, 1, d.Quits())
}

func TestAfterStory_TeardownErrorIsLogged(t *testing.T) {
	h := newHarness(t, nil)
	h.launcher.Configure = func(d *browsertest.Driver) {
		d.QuitErr = errors.New("browser process already dead")
	}
	ctx := context.Background()
	require.NoError(t, h.controller.BeforeStory(ctx, "chrome"))

	h.controller.AfterStory(ctx)

	assert.Equal(t, StateIdle, h.controller.State())
	evts := h.events.all()
	require.Equal(t, []string{"session.launch", "context.init", "context.end", "session.end"}, evts)
	assert.True(t, h.log.Contains("ERROR", "There was a problem ending the browser session"))
	assert.True(t, h.log.Contains("ERROR", "browser process already dead"))

	require.NoError(t, h.controller.BeforeStory(ctx, "chrome"), "a new story can start after a failed teardown")
}

func TestAfterStory_ContextAlreadyEnded(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.controller.BeforeStory(ctx, "chrome"))

	// step logic ended the context itself
	h.contexts.Provider.End()

	h.controller.AfterStory(ctx)

	assert.Equal(t, StateIdle, h.controller.State())
	assert.True(t, h.log.Contains("ERROR", "There was a problem clearing the story context"))
	d, _ := h.launcher.Last()
	assert.Equal(t, 1, d.Quits(), "browser is still ended")
}

func TestAfterStory_WithoutBeforeStory(t *testing.T) {
	h := newHarness(t, nil)

	h.controller.AfterStory(context.Background())

	assert.Equal(t, StateIdle, h.controller.State())
	assert.Empty(t, h.launcher.Launched())
}

type panickingContexts struct {
	*recordingContexts
}

func (c *panickingContexts) End() {
	c.events.add("context.end")
	panic("context provider exploded")
}

func TestAfterStory_PanicInContextTeardown(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	controller := h.listener.NewStory("panic", h.sessions, &panickingContexts{h.contexts})
	require.NoError(t, controller.BeforeStory(ctx, "chrome"))

	controller.AfterStory(ctx)

	assert.Equal(t, StateIdle, controller.State())
	assert.True(t, h.log.Contains("ERROR", "context provider exploded"))
	d, _ := h.launcher.Last()
	assert.Equal(t, 1, d.Quits())
}

func TestDebugPause(t *testing.T) {
	tests := []struct {
		name     string
		debug    bool
		env      string
		browser  string
		wantWait bool
	}{
		{"off", false, "", "chrome", false},
		{"config on, visible browser", true, "", "chrome", true},
		{"config on, headless browser", true, "", "chrome-headless", false},
		{"config on, text engine", true, "", "htmlunit", false},
		{"env on", false, "true", "firefox", true},
		{"env garbage", false, "yes please", "firefox", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var notices []Notice
			var ev *events
			ack := AcknowledgerFunc(func(_ context.Context, n Notice) error {
				ev.add("ack")
				notices = append(notices, n)
				return nil
			})

			h := newHarness(t,
				func(c *config.RunConfig) { c.DebugEnabled = tt.debug },
				WithAcknowledger(ack),
				WithGetenv(func(key string) string {
					if key == DebugEnvVar {
						return tt.env
					}
					return ""
				}),
			)
			ev = h.events
			ctx := context.Background()
			require.NoError(t, h.controller.BeforeStory(ctx, tt.browser))

			h.controller.AfterStory(ctx)

			if !tt.wantWait {
				assert.Empty(t, notices)
				return
			}
			require.Len(t, notices, 1)
			assert.Equal(t, "Debug Mode", notices[0].Title)
			assert.Equal(t, "search", notices[0].Story)
			assert.Equal(t, []string{"session.launch", "context.init", "context.end", "ack", "session.end"}, h.events.all())
		})
	}
}

func TestDebugPause_ReadsEnvironmentEachTime(t *testing.T) {
	var mu sync.Mutex
	value := ""
	waits := 0

	h := newHarness(t, nil,
		WithAcknowledger(AcknowledgerFunc(func(context.Context, Notice) error {
			waits++
			return nil
		})),
		WithGetenv(func(string) string {
			mu.Lock()
			defer mu.Unlock()
			return value
		}),
	)
	ctx := context.Background()

	require.NoError(t, h.controller.BeforeStory(ctx, "chrome"))
	h.controller.AfterStory(ctx)
	assert.Equal(t, 0, waits)

	mu.Lock()
	value = "1"
	mu.Unlock()

	require.NoError(t, h.controller.BeforeStory(ctx, "chrome"))
	h.controller.AfterStory(ctx)
	assert.Equal(t, 1, waits)
}

func TestDebugPause_BlocksOnlyItsOwnStory(t *testing.T) {
	release := make(chan struct{})
	waiting := make(chan struct{})
	ack := AcknowledgerFunc(func(ctx context.Context, n Notice) error {
		if n.Story != "paused" {
			return nil
		}
		close(waiting)
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	h := newHarness(t, func(c *config.RunConfig) { c.DebugEnabled = true }, WithAcknowledger(ack))
	paused := h.newStory("paused")
	pausedLauncherCount := 0
	other := h.newStory("other")
	ctx := context.Background()

	require.NoError(t, paused.BeforeStory(ctx, "chrome"))
	pausedLauncherCount = len(h.launcher.Launched())
	require.NoError(t, other.BeforeStory(ctx, "chrome"))

	done := make(chan struct{})
	go func() {
		paused.AfterStory(ctx)
		close(done)
	}()
	<-waiting

	other.AfterStory(ctx)
	assert.Equal(t, StateIdle, other.State())
	assert.Equal(t, StateStoryEnding, paused.State())

	close(release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("paused story never finished")
	}
	assert.Equal(t, StateIdle, paused.State())

	pausedDriver := h.launcher.Launched()[pausedLauncherCount-1]
	assert.Equal(t, 1, pausedDriver.Quits())
}

func TestDebugPause_AcknowledgementErrorStillEndsBrowser(t *testing.T) {
	h := newHarness(t, func(c *config.RunConfig) { c.DebugEnabled = true },
		WithAcknowledger(AcknowledgerFunc(func(context.Context, Notice) error {
			return errors.New("no terminal")
		})))
	ctx := context.Background()
	require.NoError(t, h.controller.BeforeStory(ctx, "chrome"))

	h.controller.AfterStory(ctx)

	assert.True(t, h.log.Contains("ERROR", "no terminal"))
	d, _ := h.launcher.Last()
	assert.Equal(t, 1, d.Quits())
}

func TestListener_RunHooks(t *testing.T) {
	h := newHarness(t, nil)
	h.listener.BeforeStories()
	h.listener.AfterStories()

	assert.True(t, h.log.Contains("DEBUG", "beforeStories()"))
	assert.True(t, h.log.Contains("DEBUG", "afterStories() distinct failures=0"))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "IDLE", StateIdle.String())
	assert.Equal(t, "STORY_STARTING", StateStoryStarting.String())
	assert.Equal(t, "STORY_RUNNING", StateStoryRunning.String())
	assert.Equal(t, "STORY_ENDING", StateStoryEnding.String())
}
