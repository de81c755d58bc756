package runner

import (
	"fmt"
	"strings"

	"github.com/entrhq/seauto/pkg/failure"
)

// Status is the outcome of one scenario run.
type Status string

const (
	StatusPassed       Status = "passed"
	StatusFailed       Status = "failed"
	StatusPending      Status = "pending"
	StatusSkipped      Status = "skipped"
	StatusNotPerformed Status = "not-performed"
)

// ScenarioResult is the outcome of a scenario, or of one examples row.
type ScenarioResult struct {
	Title  string
	Row    int // examples row, -1 for a plain scenario
	Status Status
	// Failure is set for failed and pending runs
	Failure *failure.Failure
}

// StoryResult is the outcome of a story.
type StoryResult struct {
	Name string
	// Filtered is true when the story did not match the story filter
	Filtered bool
	// Err is set when the story could not start
	Err       error
	Scenarios []ScenarioResult
}

// Failed reports whether the story could not start or any scenario failed.
func (r StoryResult) Failed() bool {
	if r.Err != nil {
		return true
	}
	for _, s := range r.Scenarios {
		if s.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Summary is the outcome of a run.
type Summary struct {
	Stories []StoryResult
}

// Count returns how many scenario runs ended with status.
func (s *Summary) Count(status Status) int {
	n := 0
	for _, story := range s.Stories {
		for _, sc := range story.Scenarios {
			if sc.Status == status {
				n++
			}
		}
	}
	return n
}

// Failed reports whether any story failed.
func (s *Summary) Failed() bool {
	for _, story := range s.Stories {
		if story.Failed() {
			return true
		}
	}
	return false
}

func (s *Summary) String() string {
	var b strings.Builder
	ran, filtered, broken := 0, 0, 0
	for _, story := range s.Stories {
		switch {
		case story.Filtered:
			filtered++
		case story.Err != nil:
			broken++
		default:
			ran++
		}
	}
	fmt.Fprintf(&b, "Stories: %d run, %d not started, %d filtered\n", ran, broken, filtered)
	fmt.Fprintf(&b, "Scenarios: %d passed, %d failed, %d pending, %d skipped, %d not performed",
		s.Count(StatusPassed), s.Count(StatusFailed), s.Count(StatusPending),
		s.Count(StatusSkipped), s.Count(StatusNotPerformed))
	return b.String()
}
