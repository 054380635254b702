// Package output formats CLI output: status lines, retrieved passages and
// build progress. Color is used only on terminals and never when NO_COLOR is set.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Writer provides formatted output for CLI.
type Writer struct {
	out      io.Writer
	useColor bool

	ok    *color.Color
	warn  *color.Color
	fail  *color.Color
	bold  *color.Color
	faint *color.Color
	cyan  *color.Color
}

// New creates a Writer. Color is enabled when out is a terminal and
// NO_COLOR is unset.
func New(out io.Writer) *Writer {
	return NewWithColor(out, !color.NoColor && isTerminal(out))
}

// NewWithColor creates a Writer with color forced on or off.
func NewWithColor(out io.Writer, useColor bool) *Writer {
	w := &Writer{
		out:      out,
		useColor: useColor,
		ok:       color.New(color.FgGreen),
		warn:     color.New(color.FgYellow),
		fail:     color.New(color.FgRed, color.Bold),
		bold:     color.New(color.Bold),
		faint:    color.New(color.Faint),
		cyan:     color.New(color.FgCyan, color.Bold),
	}
	for _, c := range []*color.Color{w.ok, w.warn, w.fail, w.bold, w.faint, w.cyan} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return w
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Color reports whether escape codes are written.
func (w *Writer) Color() bool {
	return w.useColor
}

// Status prints a status message with an icon.
// Errors from writing are intentionally ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "  %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message.
func (w *Writer) Success(msg string) {
	w.Status(w.ok.Sprint("✓"), msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status(w.warn.Sprint("!"), msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status(w.fail.Sprint("✗"), msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Heading prints a bold line.
func (w *Writer) Heading(msg string) {
	_, _ = fmt.Fprintln(w.out, w.bold.Sprint(msg))
}

// KeyValue prints an aligned "key: value" line.
func (w *Writer) KeyValue(key string, value any) {
	_, _ = fmt.Fprintf(w.out, "  %s %v\n", w.faint.Sprintf("%-14s", key+":"), value)
}

// Passage prints one retrieved passage with its rank, score and source.
func (w *Writer) Passage(rank int, score float64, source, text string) {
	_, _ = fmt.Fprintf(w.out, "%s %s %s\n",
		w.cyan.Sprintf("[%d]", rank),
		w.bold.Sprint(source),
		w.faint.Sprintf("(score %.3f)", score))
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		_, _ = fmt.Fprintf(w.out, "    %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Write passes streamed answer tokens through unchanged.
func (w *Writer) Write(p []byte) (int, error) {
	return w.out.Write(p)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Progress prints a progress bar with message.
func (w *Writer) Progress(current, total int, msg string) {
	if total <= 0 {
		return
	}

	pct := float64(current) / float64(total) * 100
	bar := renderProgressBar(current, total, 30)

	_, _ = fmt.Fprintf(w.out, "\r[%s] %3.0f%% %s", bar, pct, msg)
	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

func renderProgressBar(current, total, width int) string {
	if total <= 0 {
		return strings.Repeat("░", width)
	}

	filled := int(float64(current) / float64(total) * float64(width))
	filled = max(0, min(filled, width))

	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
