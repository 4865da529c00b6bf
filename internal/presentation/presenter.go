// Package presentation receives the addresses of a running application and
// shows them to the user. It is the only consumer of the orchestrator handoff.
package presentation

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"deskshell/internal/orchestrator"
	"deskshell/internal/reporting"
	"deskshell/pkg/logging"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/lipgloss"
)

// Presenter is the window or UI collaborator.
type Presenter interface {
	Present(ctx context.Context, h orchestrator.Handoff) error
}

// ConsolePresenter prints a styled summary and optionally copies the frontend
// URL to the system clipboard.
type ConsolePresenter struct {
	out       io.Writer
	styles    styles
	copyURL   bool
	clipboard func(string) error
}

// Option configures a ConsolePresenter.
type Option func(*ConsolePresenter)

// WithCopyURL copies the frontend URL to the clipboard on Present.
func WithCopyURL(enabled bool) Option {
	return func(p *ConsolePresenter) {
		p.copyURL = enabled
	}
}

// WithClipboard replaces the clipboard writer.
func WithClipboard(write func(string) error) Option {
	return func(p *ConsolePresenter) {
		p.clipboard = write
	}
}

// NewConsolePresenter creates a presenter writing to out. Styling follows the
// capabilities of out, so plain text is written to pipes and files.
func NewConsolePresenter(out io.Writer, opts ...Option) *ConsolePresenter {
	p := &ConsolePresenter{
		out:    out,
		styles: newStyles(lipgloss.NewRenderer(out)),
	}
	if !clipboard.Unsupported {
		p.clipboard = clipboard.WriteAll
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Present writes the summary box. A clipboard failure is logged, not returned.
func (p *ConsolePresenter) Present(ctx context.Context, h orchestrator.Handoff) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rows := []string{
		p.styles.title.Render("Application is running"),
		"",
		p.row("Frontend", h.FrontendURL),
		p.row("Backend", h.BackendURL+" (port "+strconv.Itoa(h.BackendPort)+")"),
	}

	if p.copyURL {
		if p.clipboard == nil {
			logging.Warn("Presenter", "Clipboard is not supported on this system")
		} else if err := p.clipboard(h.FrontendURL); err != nil {
			logging.Warn("Presenter", "Failed to copy URL to clipboard: %v", err)
		} else {
			rows = append(rows, "", p.styles.muted.Render("Frontend URL copied to clipboard"))
		}
	}
	rows = append(rows, "", p.styles.muted.Render("Press Ctrl+C to stop"))

	_, err := fmt.Fprintln(p.out, p.styles.box.Render(strings.Join(rows, "\n")))
	return err
}

func (p *ConsolePresenter) row(label, value string) string {
	return p.styles.label.Render(label+":") + " " + p.styles.value.Render(value)
}

// StatusLine renders one service update as a single line.
func (p *ConsolePresenter) StatusLine(u reporting.ManagedServiceUpdate) string {
	var b strings.Builder
	b.WriteString(p.styles.state(u.State).Render(fmt.Sprintf("%-8s", u.State)))
	b.WriteString(" ")
	b.WriteString(p.styles.label.Render(u.SourceLabel))
	if u.Port > 0 {
		b.WriteString(p.styles.muted.Render(" :" + strconv.Itoa(u.Port)))
	}
	if u.PID > 0 {
		b.WriteString(p.styles.muted.Render(" pid " + strconv.Itoa(u.PID)))
	}
	if u.ErrorDetail != nil {
		b.WriteString(" ")
		b.WriteString(p.styles.failed.Render(u.ErrorDetail.Error()))
	}
	return b.String()
}

// Watch prints every update received from bc until ctx ends or bc is closed.
func (p *ConsolePresenter) Watch(ctx context.Context, bc *reporting.BufferedChannel) {
	ch := bc.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-ch:
			if !ok {
				return
			}
			if u.SourceType == reporting.ServiceTypeSystem && u.ErrorDetail == nil {
				continue
			}
			fmt.Fprintln(p.out, p.StatusLine(u))
		}
	}
}
