package logging

import (
	"fmt"
	"strings"
	"sync"
)

// Entry is one line recorded by a Capture.
type Entry struct {
	Level   string
	Message string
}

// Capture is a Leveled logger that keeps every line in memory. Tests use it
// to assert on what a component logged.
type Capture struct {
	mu      sync.Mutex
	entries []Entry
}

// NewCapture creates an empty capturing logger.
func NewCapture() *Capture {
	return &Capture{}
}

func (c *Capture) add(level, format string, v ...interface{}) {
	c.mu.Lock()
	c.entries = append(c.entries, Entry{Level: level, Message: fmt.Sprintf(format, v...)})
	c.mu.Unlock()
}

func (c *Capture) Debugf(format string, v ...interface{}) { c.add("DEBUG", format, v...) }
func (c *Capture) Infof(format string, v ...interface{})  { c.add("INFO", format, v...) }
func (c *Capture) Warnf(format string, v ...interface{})  { c.add("WARN", format, v...) }
func (c *Capture) Errorf(format string, v ...interface{}) { c.add("ERROR", format, v...) }

// Entries returns a copy of the recorded lines.
func (c *Capture) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), c.entries...)
}

// Contains reports whether a line at level contains substr. An empty level
// matches any level.
func (c *Capture) Contains(level, substr string) bool {
	for _, e := range c.Entries() {
		if (level == "" || e.Level == level) && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

type discard struct{}

func (discard) Debugf(string, ...interface{}) {}
func (discard) Infof(string, ...interface{})  {}
func (discard) Warnf(string, ...interface{})  {}
func (discard) Errorf(string, ...interface{}) {}

// Discard returns a Leveled logger that drops everything.
func Discard() Leveled {
	return discard{}
}
