package browser

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoActiveSession is matched by every NoActiveSessionError
	ErrNoActiveSession = errors.New("browser: no active session")

	// ErrAlreadyLaunched is returned by Launch while a session is still live
	ErrAlreadyLaunched = errors.New("browser: session already launched")

	// ErrScreenshotUnsupported is returned by drivers that cannot rasterize
	// their own pages
	ErrScreenshotUnsupported = errors.New("browser: engine cannot take screenshots")

	// ErrSessionClosed is returned by a driver used after Quit
	ErrSessionClosed = errors.New("browser: session closed")
)

// LaunchError reports that an automation engine could not be started.
type LaunchError struct {
	Kind Kind
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s browser: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error
func (e *LaunchError) Unwrap() error {
	return e.Err
}

// UnknownBrowserError reports a browser name that matches no Kind.
type UnknownBrowserError struct {
	Name string
}

func (e *UnknownBrowserError) Error() string {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = string(k)
	}
	return fmt.Sprintf("unknown browser %q (supported: %s)", e.Name, strings.Join(names, ", "))
}

// TeardownError reports a problem while shutting a session down.
type TeardownError struct {
	Kind Kind
	Err  error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("failed to end %s browser: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error
func (e *TeardownError) Unwrap() error {
	return e.Err
}

// CaptureError reports a failed screenshot or HTML dump.
type CaptureError struct {
	Artifact string
	Path     string
	Err      error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("failed to capture %s to %s: %v", e.Artifact, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *CaptureError) Unwrap() error {
	return e.Err
}

// NoActiveSessionError reports an operation that needed a session when none
// was bound.
type NoActiveSessionError struct {
	Op string
}

func (e *NoActiveSessionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, ErrNoActiveSession)
}

// Is matches ErrNoActiveSession
func (e *NoActiveSessionError) Is(target error) bool {
	return target == ErrNoActiveSession
}
