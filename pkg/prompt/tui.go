package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/seauto/pkg/lifecycle"
)

// Key bindings for the acknowledgement screen
const (
	keyEnter = "enter"
	keyCtrlA = "ctrl+a"
	keyCtrlC = "ctrl+c"
	keyEsc   = "esc"
	keyCopy  = "c"
)

// ErrDismissed is returned when the prompt is closed without acknowledging.
var ErrDismissed = errors.New("prompt dismissed")

// model is the bubbletea model behind TUI.
type model struct {
	notice lifecycle.Notice
	copy   func(string) error
	width  int

	acknowledged bool
	dismissed    bool
	status       string
}

func newModel(n lifecycle.Notice, copyFn func(string) error) model {
	return model{notice: n, copy: copyFn, width: 80}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case keyEnter, keyCtrlA:
			m.acknowledged = true
			return m, tea.Quit
		case keyCtrlC, keyEsc:
			m.dismissed = true
			return m, tea.Quit
		case keyCopy:
			m.status = m.copyURL()
			return m, nil
		}
	}
	return m, nil
}

func (m model) copyURL() string {
	url := m.notice.Session.CurrentURL
	if url == "" || m.copy == nil {
		return "Nothing to copy"
	}
	if err := m.copy(url); err != nil {
		return fmt.Sprintf("Copy failed: %v", err)
	}
	return "Copied URL to clipboard"
}

func (m model) View() string {
	if m.acknowledged || m.dismissed {
		return ""
	}

	width := max(m.width-4, 40)

	var body strings.Builder
	body.WriteString(strings.TrimSpace(m.notice.Message))
	body.WriteString("\n\n")
	for _, row := range [][2]string{
		{"Story", m.notice.Story},
		{"Browser", m.notice.Session.Kind},
		{"Session", m.notice.Session.SessionID},
		{"Title", m.notice.Session.Title},
		{"URL", m.notice.Session.CurrentURL},
	} {
		if row[1] == "" {
			continue
		}
		body.WriteString(labelStyle.Render(fmt.Sprintf("%-8s", row[0])))
		body.WriteString(row[1])
		body.WriteString("\n")
	}

	var out strings.Builder
	out.WriteString(titleStyle.Render(m.notice.Title))
	out.WriteString("\n\n")
	out.WriteString(boxStyle.Width(width).Render(strings.TrimRight(body.String(), "\n")))
	out.WriteString("\n\n")

	button := buttonStyle.Render(" ✓ Continue ")
	out.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, button))
	out.WriteString("\n")
	out.WriteString(hintStyle.Render("Enter: Continue • c: Copy URL • Esc: Dismiss"))
	if m.status != "" {
		out.WriteString("\n")
		out.WriteString(statusStyle.Render(m.status))
	}
	return out.String()
}

// TUI shows the notice as a full-screen terminal prompt.
type TUI struct {
	In  io.Reader
	Out io.Writer

	// Copy writes to the system clipboard; nil uses atotto/clipboard
	Copy func(string) error
}

// NewTUI creates a terminal prompt over in and out.
func NewTUI(in io.Reader, out io.Writer) *TUI {
	return &TUI{In: in, Out: out, Copy: clipboard.WriteAll}
}

// AwaitAcknowledgement implements lifecycle.Acknowledger. Dismissing the
// prompt returns ErrDismissed; the caller still tears the story down.
func (t *TUI) AwaitAcknowledgement(ctx context.Context, n lifecycle.Notice) error {
	terminalMu.Lock()
	defer terminalMu.Unlock()

	copyFn := t.Copy
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}

	program := tea.NewProgram(
		newModel(n, copyFn),
		tea.WithContext(ctx),
		tea.WithInput(t.In),
		tea.WithOutput(t.Out),
		tea.WithAltScreen(),
	)

	final, err := program.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return fmt.Errorf("failed to run prompt: %w", err)
	}

	if m, ok := final.(model); ok && m.acknowledged {
		return nil
	}
	return ErrDismissed
}
