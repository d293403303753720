// Package console prints operator-facing messages.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"golang.org/x/term"

	"github.com/agent462/pingcsv/internal/collect"
	"github.com/agent462/pingcsv/internal/executor"
)

var (
	colorGreen  = lipgloss.Color("#04B575")
	colorRed    = lipgloss.Color("#FF4672")
	colorYellow = lipgloss.Color("#FDFF90")
	colorCyan   = lipgloss.Color("#00E5FF")
)

var (
	successStyle = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	hostStyle    = lipgloss.NewStyle().Foreground(colorCyan)
)

// Printer writes status messages to stdout and errors to stderr.
type Printer struct {
	formatter
	out    io.Writer
	errOut io.Writer
}

// New creates a Printer. Colour is used only when out is a terminal and
// noColor is false.
func New(out, errOut io.Writer, noColor bool) *Printer {
	return &Printer{
		formatter: formatter{color: !noColor && IsTerminal(out)},
		out:       out,
		errOut:    errOut,
	}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Color reports whether output is styled.
func (p *Printer) Color() bool {
	return p.color
}

// Success reports a completed conversion.
func (p *Printer) Success(path string) {
	fmt.Fprintln(p.out, p.colorize("done:", successStyle)+" wrote "+path)
}

// Error reports a fatal condition.
func (p *Printer) Error(err error) {
	fmt.Fprintln(p.errOut, p.colorize("error:", errorStyle)+" "+err.Error())
}

// Report prints the outcome of a collect run.
func (p *Printer) Report(r *collect.Report) {
	fmt.Fprint(p.out, FormatReport(r, p.color))
}

// FormatReport renders saved, failed and timed-out hosts followed by a
// one-line summary.
func FormatReport(r *collect.Report, color bool) string {
	f := &formatter{color: color}
	var b strings.Builder

	nonZero := 0
	if n := len(r.Saved); n > 0 {
		b.WriteString(f.colorize(fmt.Sprintf(" %d %s saved:", n, hostWord(n)), successStyle))
		b.WriteString("\n")
		for _, s := range r.Saved {
			b.WriteString("   " + f.colorize(s.Host, hostStyle) + " -> " + s.Path)
			if s.Result != nil && s.Result.ExitCode != 0 {
				nonZero++
				b.WriteString(f.colorize(fmt.Sprintf(" (exit %d)", s.Result.ExitCode), warnStyle))
			}
			b.WriteString("\n")
		}
	}

	f.writeFailures(&b, r.Failed, "failed", "unknown error")
	f.writeFailures(&b, r.TimedOut, "timed out", "timeout")

	b.WriteString(summaryLine(len(r.Saved), nonZero, len(r.Failed), len(r.TimedOut)))
	b.WriteString("\n")
	return b.String()
}

type formatter struct {
	color bool
}

func (f *formatter) writeFailures(b *strings.Builder, results []*executor.HostResult, verb, fallback string) {
	if len(results) == 0 {
		return
	}
	n := len(results)
	b.WriteString(f.colorize(fmt.Sprintf(" %d %s %s:", n, hostWord(n), verb), errorStyle))
	b.WriteString("\n")
	for _, r := range results {
		msg := fallback
		if r.Err != nil {
			msg = r.Err.Error()
		}
		b.WriteString("   " + f.colorize(r.Host, hostStyle) + fmt.Sprintf(" (%s)", msg))
		b.WriteString("\n")
	}
}

func summaryLine(saved, nonZero, failed, timedOut int) string {
	parts := []string{fmt.Sprintf("%d saved", saved)}
	if nonZero > 0 {
		parts = append(parts, fmt.Sprintf("%d non-zero exit", nonZero))
	}
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", failed))
	}
	if timedOut > 0 {
		parts = append(parts, fmt.Sprintf("%d timeout", timedOut))
	}
	return strings.Join(parts, ", ")
}

func hostWord(n int) string {
	if n == 1 {
		return "host"
	}
	return "hosts"
}

func (f *formatter) colorize(text string, style lipgloss.Style) string {
	if !f.color {
		return text
	}
	return style.Render(text)
}
