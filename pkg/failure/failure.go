// Package failure identifies scenario failures and tracks which of them have
// already had their diagnostics captured.
package failure

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ID is the process-unique token the runner assigns to one failure
// occurrence. The same ID may be reported more than once.
type ID string

// NewID mints a fresh failure id.
func NewID() ID {
	return ID(uuid.NewString())
}

func (id ID) String() string {
	return string(id)
}

// Kind distinguishes real failures from steps that had no implementation.
type Kind int

const (
	// KindError is an assertion failure or an error raised by a step
	KindError Kind = iota
	// KindPending is a step with no matching implementation
	KindPending
)

func (k Kind) String() string {
	switch k {
	case KindError:
		return "error"
	case KindPending:
		return "pending"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ScenarioType tells whether the failing scenario was a plain scenario or a
// row of an examples table.
type ScenarioType int

const (
	ScenarioNormal ScenarioType = iota
	ScenarioExample
)

func (s ScenarioType) String() string {
	if s == ScenarioExample {
		return "example"
	}
	return "normal"
}

// Failure is one reported scenario failure.
type Failure struct {
	ID       ID
	Kind     Kind
	Scenario ScenarioType
	// Cause is the error that failed the scenario. Causes created through New
	// or Pending carry a stack trace that %+v prints.
	Cause error
}

// New wraps cause as a real failure with a fresh id and the caller's stack.
func New(cause error) *Failure {
	return &Failure{
		ID:    NewID(),
		Kind:  KindError,
		Cause: errors.WithStack(cause),
	}
}

// Pending creates a pending-step failure for step.
func Pending(step string) *Failure {
	return &Failure{
		ID:    NewID(),
		Kind:  KindPending,
		Cause: errors.Errorf("pending step: %s", step),
	}
}

// IsPending reports whether f is a pending step rather than a real failure.
func (f *Failure) IsPending() bool {
	return f.Kind == KindPending
}

func (f *Failure) Error() string {
	if f.Cause == nil {
		return fmt.Sprintf("%s failure %s", f.Kind, f.ID)
	}
	return fmt.Sprintf("%s failure %s: %v", f.Kind, f.ID, f.Cause)
}

// Unwrap returns the underlying cause
func (f *Failure) Unwrap() error {
	return f.Cause
}

// StackTrace renders the cause with its recorded stack, or just the message
// when the cause carries none.
func (f *Failure) StackTrace() string {
	if f.Cause == nil {
		return "<no cause>"
	}
	return fmt.Sprintf("%+v", f.Cause)
}

// screenshotPathPattern is parsed by the HTML report renderer; keep the shape
// byte-identical.
const screenshotPathPattern = "%s/screenshots/failed-scenario-%s.png"

// ScreenshotPath returns where the screenshot for id is written under
// outputDir. The directory is substituted verbatim, not cleaned.
func ScreenshotPath(outputDir string, id ID) string {
	return fmt.Sprintf(screenshotPathPattern, outputDir, id.String())
}

// HTMLPath returns the page dump path that sits next to the screenshot.
func HTMLPath(outputDir string, id ID) string {
	return strings.TrimSuffix(ScreenshotPath(outputDir, id), "png") + "html"
}
