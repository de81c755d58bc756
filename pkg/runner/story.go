// Package runner executes stories concurrently and drives the lifecycle
// hooks around them: one goroutine, browser and story context per story.
package runner

import (
	"context"
	"errors"

	"github.com/entrhq/seauto/pkg/storyctx"
)

// ErrPending is returned by a step that is declared but not implemented yet.
var ErrPending = errors.New("step pending")

// Env is what a step sees while it runs.
type Env struct {
	// Story is the live story context; nil during a dry run
	Story *storyctx.StoryContext

	// Params holds the examples-table row for the current run, if any
	Params map[string]string
}

// Param returns the named examples-table value.
func (e *Env) Param(name string) string {
	return e.Params[name]
}

// StepFunc implements one step.
type StepFunc func(ctx context.Context, env *Env) error

// Step is one Given/When/Then line. A step without Run has no matching
// implementation and is reported as pending.
type Step struct {
	Text string
	Run  StepFunc
}

// Scenario is an ordered list of steps. With Examples it runs once per row.
type Scenario struct {
	Title    string
	Steps    []Step
	Examples []map[string]string
}

// Story is a named set of scenarios run on one browser session.
type Story struct {
	Name string

	// Browser overrides the configured browser for this story
	Browser string

	Scenarios []Scenario
}
