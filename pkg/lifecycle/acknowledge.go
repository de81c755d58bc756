package lifecycle

import (
	"context"

	"github.com/entrhq/seauto/pkg/browser"
)

// Notice is what the debug pause shows to the person at the keyboard.
type Notice struct {
	Title   string
	Message string
	Story   string
	Session browser.SessionDescriptor
}

// Acknowledger blocks the calling goroutine until a human acknowledges the
// notice or ctx is done. Other stories keep running meanwhile.
type Acknowledger interface {
	AwaitAcknowledgement(ctx context.Context, n Notice) error
}

// AcknowledgerFunc adapts a function to Acknowledger.
type AcknowledgerFunc func(ctx context.Context, n Notice) error

// AwaitAcknowledgement calls f.
func (f AcknowledgerFunc) AwaitAcknowledgement(ctx context.Context, n Notice) error {
	return f(ctx, n)
}

// NoPrompt returns immediately. It is the acknowledger for unattended runs.
var NoPrompt Acknowledger = AcknowledgerFunc(func(context.Context, Notice) error { return nil })
