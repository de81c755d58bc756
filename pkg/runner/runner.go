package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	"github.com/entrhq/seauto/pkg/browser"
	"github.com/entrhq/seauto/pkg/config"
	"github.com/entrhq/seauto/pkg/failure"
	"github.com/entrhq/seauto/pkg/lifecycle"
	"github.com/entrhq/seauto/pkg/logging"
	"github.com/entrhq/seauto/pkg/storyctx"
)

// Runner dispatches stories to goroutines, at most cfg.Concurrency at once.
type Runner struct {
	cfg        config.RunConfig
	listener   *lifecycle.Listener
	launcher   browser.Launcher
	rasterizer browser.Rasterizer
	log        logging.Leveled
	filter     glob.Glob
}

// Option configures a Runner.
type Option func(*Runner)

// WithRasterizer sets the renderer handed to every story's browser provider.
func WithRasterizer(r browser.Rasterizer) Option {
	return func(rn *Runner) {
		rn.rasterizer = r
	}
}

// WithLogger sets the runner's logger.
func WithLogger(log logging.Leveled) Option {
	return func(rn *Runner) {
		rn.log = log
	}
}

// New creates a runner. listener carries the run-wide failure registry and
// acknowledger; launcher starts every story's browser.
func New(cfg config.RunConfig, listener *lifecycle.Listener, launcher browser.Launcher, opts ...Option) (*Runner, error) {
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", cfg.Concurrency)
	}

	r := &Runner{
		cfg:      cfg,
		listener: listener,
		launcher: launcher,
		log:      logging.Discard(),
	}

	if cfg.StoryFilter != "" {
		g, err := glob.Compile(cfg.StoryFilter)
		if err != nil {
			return nil, fmt.Errorf("invalid story filter '%s': %w", cfg.StoryFilter, err)
		}
		r.filter = g
	}

	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes stories and returns their results in input order. The error
// is non-nil only when ctx ends the run early; story failures are reported
// in the summary.
func (r *Runner) Run(ctx context.Context, stories []Story) (*Summary, error) {
	r.listener.BeforeStories()
	defer r.listener.AfterStories()

	results := make([]StoryResult, len(stories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for i, story := range stories {
		if r.filter != nil && !r.filter.Match(story.Name) {
			r.log.Debugf("Story %q does not match filter %q", story.Name, r.cfg.StoryFilter)
			results[i] = StoryResult{Name: story.Name, Filtered: true}
			continue
		}

		i, story := i, story
		g.Go(func() error {
			// one writer per index, no lock needed
			results[i] = r.runStory(gctx, story)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return &Summary{Stories: results}, err
}

// runStory owns the story's providers for its whole life. It runs on the
// goroutine that executes the steps.
func (r *Runner) runStory(ctx context.Context, story Story) StoryResult {
	result := StoryResult{Name: story.Name}
	r.log.Infof("Running story %s", story.Name)

	sessions := browser.NewProvider(r.launcher,
		browser.WithRasterizer(r.rasterizer),
		browser.WithLogger(r.log),
	)
	contexts := storyctx.NewProvider(r.cfg.SiteURL, sessions)
	controller := r.listener.NewStory(story.Name, sessions, contexts)

	if err := controller.BeforeStory(ctx, story.Browser); err != nil {
		r.log.Errorf("Story %s could not start: %v", story.Name, err)
		result.Err = err
		for _, sc := range story.Scenarios {
			result.Scenarios = append(result.Scenarios, ScenarioResult{Title: sc.Title, Row: -1, Status: StatusNotPerformed})
		}
		return result
	}
	defer controller.AfterStory(ctx)

	var sc *storyctx.StoryContext
	if !r.cfg.DryRun {
		current, err := contexts.Current()
		if err != nil {
			r.log.Errorf("Story %s has no context: %v", story.Name, err)
		}
		sc = current
	}

	failed := false
	for _, scenario := range story.Scenarios {
		if failed && r.cfg.SkipAfterFailure {
			result.Scenarios = append(result.Scenarios, ScenarioResult{Title: scenario.Title, Row: -1, Status: StatusSkipped})
			continue
		}

		for _, res := range r.runScenario(ctx, controller, sc, scenario) {
			if res.Status == StatusFailed {
				failed = true
			}
			result.Scenarios = append(result.Scenarios, res)
		}
	}

	return result
}

func (r *Runner) runScenario(ctx context.Context, controller *lifecycle.Controller, sc *storyctx.StoryContext, scenario Scenario) []ScenarioResult {
	if len(scenario.Examples) == 0 {
		res := r.runSteps(ctx, sc, scenario, nil)
		res.Row = -1
		r.report(controller, res, false)
		return []ScenarioResult{res}
	}

	results := make([]ScenarioResult, 0, len(scenario.Examples))
	for row, params := range scenario.Examples {
		res := r.runSteps(ctx, sc, scenario, params)
		res.Row = row
		r.report(controller, res, true)
		results = append(results, res)
	}
	return results
}

// report hands the outcome to the lifecycle hooks. An examples row failure
// is reported for the row and again for its scenario, with the same id.
func (r *Runner) report(controller *lifecycle.Controller, res ScenarioResult, example bool) {
	f := res.Failure
	if f == nil {
		controller.AfterScenarioSuccess()
		return
	}

	if example {
		f.Scenario = failure.ScenarioExample
		controller.AfterExampleScenarioFailure(f)
	}
	controller.AfterNormalScenarioFailure(f)
}

func (r *Runner) runSteps(ctx context.Context, sc *storyctx.StoryContext, scenario Scenario, params map[string]string) ScenarioResult {
	res := ScenarioResult{Title: scenario.Title, Status: StatusPassed}
	if r.cfg.DryRun {
		res.Status = StatusNotPerformed
	}
	env := &Env{Story: sc, Params: params}

	for _, step := range scenario.Steps {
		if step.Run == nil {
			r.log.Warnf("No implementation for step %q", step.Text)
			res.Status = StatusPending
			res.Failure = failure.Pending(step.Text)
			return res
		}
		if r.cfg.DryRun {
			continue
		}

		if err := ctx.Err(); err != nil {
			res.Status = StatusNotPerformed
			return res
		}

		err := runStep(ctx, step, env)
		switch {
		case err == nil:
		case errors.Is(err, ErrPending):
			res.Status = StatusPending
			res.Failure = failure.Pending(step.Text)
			return res
		default:
			r.log.Infof("Step failed: %s: %v", step.Text, err)
			res.Status = StatusFailed
			res.Failure = failure.New(fmt.Errorf("%s: %w", step.Text, err))
			return res
		}
	}
	return res
}

// runStep calls the step, turning a panic into an error.
func runStep(ctx context.Context, step Step, env *Env) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return step.Run(ctx, env)
}
