package core

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	hostStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("51"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Console prints run status for humans. It is safe for concurrent use.
type Console struct {
	Out   io.Writer
	Width int

	mu sync.Mutex
}

// NewConsole returns a console writing to stderr.
func NewConsole() *Console {
	return &Console{Out: os.Stderr, Width: 60}
}

func (c *Console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.Out
	if out == nil {
		out = os.Stderr
	}
	fmt.Fprintln(out, s)
}

// Attempt prints the outcome of one host.
func (c *Console) Attempt(a Attempt) {
	host := hostStyle.Render(a.Host)
	switch a.Outcome {
	case OutcomeSuccess:
		c.println(fmt.Sprintf("%s %s %s", okStyle.Render("[OK]"), host, mutedStyle.Render(a.Link)))
	case OutcomeSkipped:
		c.println(fmt.Sprintf("%s %s %v", noticeStyle.Render("[SKIP]"), host, a.Err))
	case OutcomeTimedOut:
		c.println(fmt.Sprintf("%s %s %v", noticeStyle.Render("[TIMEOUT]"), host, a.Err))
	default:
		c.println(fmt.Sprintf("%s %s %v", errorStyle.Render("[ERROR!]"), host, a.Err))
	}
}

// Reachability prints a probe result.
func (c *Console) Reachability(host string, online bool) {
	if online {
		c.println(fmt.Sprintf("%s %s is online!", okStyle.Render("[OK]"), hostStyle.Render(host)))
		return
	}
	c.println(fmt.Sprintf("%s %s is down!", errorStyle.Render("[ERROR!]"), hostStyle.Render(host)))
}

func (c *Console) Notice(msg string) {
	c.println(noticeStyle.Render(msg))
}

func (c *Console) Error(err error) {
	c.println(fmt.Sprintf("%s %v", errorStyle.Render("ERROR!"), err))
}

// Rule prints a horizontal rule with title centered in it.
func (c *Console) Rule(title string) {
	c.println(Rule(title, c.Width))
}

// Summary prints the closing panel.
func (c *Console) Summary(took time.Duration, links, attempts int) {
	body := lipgloss.JoinVertical(lipgloss.Left,
		fmt.Sprintf("Process took %s", FormatDuration(took)),
		mutedStyle.Render(fmt.Sprintf("%d link(s) from %d attempt(s)", links, attempts)),
	)
	c.println(panelStyle.Render(body))
}

// Rule renders a width-wide line of "─" with title in the middle.
func Rule(title string, width int) string {
	if title == "" {
		return strings.Repeat("─", max(width, 0))
	}
	label := " " + title + " "
	side := width - lipgloss.Width(label)
	if side < 2 {
		return label
	}
	left := side / 2
	return strings.Repeat("─", left) + label + strings.Repeat("─", side-left)
}

// FormatDuration renders d as "Xh Ym Zs", truncated to whole seconds.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}
