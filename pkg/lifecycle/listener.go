package lifecycle

import (
	"os"
	"strconv"

	"github.com/entrhq/seauto/pkg/config"
	"github.com/entrhq/seauto/pkg/failure"
	"github.com/entrhq/seauto/pkg/logging"
)

// DebugEnvVar turns on the debug pause when it parses as true. It is read on
// every AfterStory so a reused host process can toggle it between runs.
const DebugEnvVar = "SEAUTO_DEBUG"

// Listener holds the run-wide state: configuration, the failure registry and
// the acknowledgement prompt. It hands out one Controller per story.
type Listener struct {
	cfg      config.RunConfig
	registry *failure.Registry
	ack      Acknowledger
	log      logging.Leveled
	getenv   func(string) string
}

// Option configures a Listener.
type Option func(*Listener)

// WithAcknowledger sets the prompt used by the debug pause.
func WithAcknowledger(a Acknowledger) Option {
	return func(l *Listener) {
		l.ack = a
	}
}

// WithLogger sets the logger shared by the listener and its controllers.
func WithLogger(log logging.Leveled) Option {
	return func(l *Listener) {
		l.log = log
	}
}

// WithGetenv replaces os.Getenv when reading DebugEnvVar.
func WithGetenv(getenv func(string) string) Option {
	return func(l *Listener) {
		l.getenv = getenv
	}
}

// NewListener creates the run listener. registry must be the single
// registry of the process so duplicate reports are caught across stories.
func NewListener(cfg config.RunConfig, registry *failure.Registry, opts ...Option) *Listener {
	l := &Listener{
		cfg:      cfg,
		registry: registry,
		ack:      NoPrompt,
		log:      logging.Discard(),
		getenv:   os.Getenv,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// BeforeStories runs once before the first story.
func (l *Listener) BeforeStories() {
	l.log.Debugf("beforeStories() dryRun=%t browser=%s output=%s", l.cfg.DryRun, l.cfg.BrowserName, l.cfg.OutputDirectory)
}

// AfterStories runs once after the last story.
func (l *Listener) AfterStories() {
	l.log.Debugf("afterStories() distinct failures=%d", l.registry.Len())
}

// NewStory returns the controller for one story. sessions and contexts must
// be fresh instances owned by that story.
func (l *Listener) NewStory(name string, sessions Sessions, contexts Contexts) *Controller {
	return &Controller{
		listener: l,
		story:    name,
		sessions: sessions,
		contexts: contexts,
		state:    StateIdle,
	}
}

// debugEnabled reports whether the debug pause is on for this call.
func (l *Listener) debugEnabled() bool {
	if l.cfg.DebugEnabled {
		return true
	}
	on, err := strconv.ParseBool(l.getenv(DebugEnvVar))
	return err == nil && on
}
