package lifecycle

import "fmt"

// State is the position of a story in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateStoryStarting
	StateStoryRunning
	StateStoryEnding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStoryStarting:
		return "STORY_STARTING"
	case StateStoryRunning:
		return "STORY_RUNNING"
	case StateStoryEnding:
		return "STORY_ENDING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
