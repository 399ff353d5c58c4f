package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/term"

	"github.com/Dicklesworthstone/pavcore/internal/pipeline"
	"github.com/Dicklesworthstone/pavcore/internal/report"
	"github.com/Dicklesworthstone/pavcore/internal/tui/theme"
)

const defaultWidth = 80

func errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(theme.Current().Error)
}

// terminalWidth returns the width of stderr, or defaultWidth when it is
// not a terminal.
func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stderr.Fd())); err == nil && w > 0 {
		return w
	}
	return defaultWidth
}

// stderrIsTerminal gates the progress bar.
var stderrIsTerminal = func() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printHeader(w io.Writer, title string) {
	th := theme.Current()
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(th.Primary)
	fmt.Fprintln(w, titleStyle.Render(title))
	fmt.Fprintln(w, strings.Repeat("━", 50))
}

// printOutcome writes one stage line, followed by the wrapped failure
// diagnostic if there is one.
func printOutcome(w io.Writer, out pipeline.Outcome) {
	th := theme.Current()
	var (
		icon  string
		color lipgloss.Color
	)
	switch out.Status {
	case pipeline.StatusPass:
		icon, color = "✓", th.Success
	case pipeline.StatusSkip:
		icon, color = "○", th.Warning
	default:
		icon, color = "✗", th.Error
	}
	statusStyle := lipgloss.NewStyle().Bold(true).Foreground(color)
	dimStyle := lipgloss.NewStyle().Foreground(th.Overlay)

	fmt.Fprintf(w, "  %s %-22s %s  %s\n",
		statusStyle.Render(icon),
		out.Stage.String(),
		statusStyle.Render(string(out.Status)),
		dimStyle.Render(detail(out)),
	)
	if out.Err != nil {
		wrapped := wordwrap.String(out.Err.Error(), terminalWidth()-6)
		for _, line := range strings.Split(wrapped, "\n") {
			fmt.Fprintln(w, "      "+lipgloss.NewStyle().Foreground(th.Error).Render(line))
		}
	}
}

func detail(out pipeline.Outcome) string {
	var parts []string
	switch {
	case out.Status == pipeline.StatusSkip:
		parts = append(parts, "no artifact")
	case out.Completeness != nil:
		c := out.Completeness
		parts = append(parts, fmt.Sprintf("%d visited, %d expanded, %d certified, depth %d",
			c.Visited, c.Expanded, c.Certified, c.MaxDepth))
	case out.Verified > 0:
		parts = append(parts, fmt.Sprintf("%d certificates", out.Verified))
	case out.Summary != nil:
		s := out.Summary
		parts = append(parts, fmt.Sprintf("%d histories, %d successful, %d certified, depth %d",
			s.Histories, s.Successful, s.Certified, s.MaxDepth))
	}
	if out.Duration > 0 {
		parts = append(parts, out.Duration.Round(time.Millisecond).String())
	}
	return strings.Join(parts, "  ")
}

func printSummary(w io.Writer, rep *report.Report) {
	th := theme.Current()
	style := lipgloss.NewStyle().Bold(true).Foreground(th.Success)
	if rep.Failed > 0 {
		style = style.Foreground(th.Error)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, style.Render(fmt.Sprintf("%d passed, %d skipped, %d failed", rep.Passed, rep.Skipped, rep.Failed)))
}

// progressBar renders verification progress on a single terminal line.
type progressBar struct {
	mu    sync.Mutex
	w     io.Writer
	label string
	bar   progress.Model
}

func newProgressBar(w io.Writer, label string) *progressBar {
	bar := progress.New(progress.WithDefaultGradient())
	width := terminalWidth() - len(label) - 4
	if width > 60 {
		width = 60
	}
	if width < 10 {
		width = 10
	}
	bar.Width = width
	return &progressBar{w: w, label: label, bar: bar}
}

// Update is a farkas progress callback.
func (p *progressBar) Update(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	frac := 1.0
	if total > 0 {
		frac = float64(done) / float64(total)
	}
	fmt.Fprintf(p.w, "\r%s %s", p.label, p.bar.ViewAs(frac))
}

// Clear erases the bar line.
func (p *progressBar) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprint(p.w, "\r\033[K")
}
