package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
)

// terminalNotifier prints notices as single coloured lines.
type terminalNotifier struct {
	out    io.Writer
	errOut io.Writer
}

func (n *terminalNotifier) Success(msg string) {
	fmt.Fprintf(n.out, "%s %s\n", successStyle.Render("[ok]"), msg)
}

func (n *terminalNotifier) Error(msg string) {
	fmt.Fprintf(n.errOut, "%s %s\n", errorStyle.Render("[error]"), msg)
}

// location stands in for the browser address bar: it remembers which
// conversation is open so it can be resumed with --id.
type location struct {
	mu  sync.Mutex
	id  string
	out io.Writer
}

func (l *location) SetChatID(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.id == id {
		return
	}
	l.id = id
	if id != "" {
		fmt.Fprintln(l.out, infoStyle.Render("conversation "+id))
	}
}

func (l *location) ChatID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.id
}

var (
	rendererOnce sync.Once
	renderer     *glamour.TermRenderer
)

// renderMarkdown renders content for the terminal, falling back to the raw
// text when no renderer is available.
func renderMarkdown(content string) string {
	rendererOnce.Do(func() {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
		if err == nil {
			renderer = r
		}
	})
	if renderer == nil {
		return content
	}
	out, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}
