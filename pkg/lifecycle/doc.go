// Package lifecycle drives browser sessions and story contexts through the
// events of a story run and captures diagnostics when scenarios fail.
//
// # Scoping
//
// A Listener is built once per run. It owns the failure registry shared by
// every story and the run-wide hooks (BeforeStories, AfterStories). For each
// story the runner calls Listener.NewStory with that story's own
// browser.Provider and storyctx.Provider; the returned Controller must only
// be used from the goroutine executing the story's steps.
//
// # Story states
//
//	StateIdle -> StateStoryStarting -> StateStoryRunning -> StateStoryEnding -> StateIdle
//
// Scenario events are handled inside StateStoryRunning and do not change
// the state. Setup failures in BeforeStory are returned to the runner.
// Teardown and diagnostic failures are logged and never returned: they must
// not hide the scenario failure being reported.
//
// # Failure capture
//
// For each failure id reported for the first time (and not a pending step)
// the controller logs the session details, writes
// {output}/screenshots/failed-scenario-{id}.png and the .html page dump next
// to it, then logs the stack trace. Every step runs even when an earlier one
// fails.
//
// # Dry runs
//
// With DryRun set no browser or context is created and failure reports are
// ignored.
package lifecycle
