// Package prompt implements the acknowledgers used by the debug pause: a
// full-screen terminal prompt and a plain line-based one.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/entrhq/seauto/pkg/lifecycle"
)

// terminalMu serializes prompts across stories. There is one person and
// one terminal, so notices are shown one at a time.
var terminalMu sync.Mutex

// Console asks for acknowledgement by printing the notice and waiting for
// a line on In.
type Console struct {
	In  io.Reader
	Out io.Writer

	once   sync.Once
	lines  chan string
	closed chan struct{}
}

// NewConsole creates a line prompt over in and out.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{In: in, Out: out}
}

// start reads In on a single goroutine for the life of the console, so a
// prompt abandoned by a canceled context does not strand a reader.
func (c *Console) start() {
	c.once.Do(func() {
		c.lines = make(chan string)
		c.closed = make(chan struct{})
		go func() {
			defer close(c.closed)
			scanner := bufio.NewScanner(c.In)
			for scanner.Scan() {
				c.lines <- scanner.Text()
			}
		}()
	})
}

// AwaitAcknowledgement implements lifecycle.Acknowledger.
func (c *Console) AwaitAcknowledgement(ctx context.Context, n lifecycle.Notice) error {
	terminalMu.Lock()
	defer terminalMu.Unlock()

	c.start()

	fmt.Fprintf(c.Out, "\n== %s ==\n", n.Title)
	if n.Story != "" {
		fmt.Fprintf(c.Out, "Story: %s\n", n.Story)
	}
	if n.Session.CurrentURL != "" {
		fmt.Fprintf(c.Out, "URL:   %s\n", n.Session.CurrentURL)
	}
	fmt.Fprintf(c.Out, "%s\n", strings.TrimSpace(n.Message))
	fmt.Fprint(c.Out, "Press Enter to continue... ")

	select {
	case <-c.lines:
		return nil
	case <-c.closed:
		return io.ErrUnexpectedEOF
	case <-ctx.Done():
		return ctx.Err()
	}
}
