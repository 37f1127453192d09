// Package cliui provides terminal helpers for folio commands: step spinners,
// an embedding progress bar, and rendering of retrieved passages.
package cliui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/papercomputeco/folio/pkg/vector"
)

var (
	SuccessMark  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	ScoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	KeyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	ValueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	DimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

const defaultWidth = 80

// Step prints an animated spinner while fn runs, then replaces it with a
// checkmark and the elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	done := make(chan struct{})
	stopped := make(chan struct{})
	var mu sync.Mutex

	go func() {
		defer close(stopped)
		frame := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			mu.Lock()
			fmt.Fprintf(w, "\r  %s %s", spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]), msg)
			mu.Unlock()

			select {
			case <-done:
				return
			case <-ticker.C:
				frame++
			}
		}
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(done)
	<-stopped

	mu.Lock()
	fmt.Fprintf(w, "\r  %s %s %s\n", Mark(err), msg, StepStyle.Render("("+FormatDuration(elapsed)+")"))
	mu.Unlock()

	return err
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// NewEmbedProgress returns a progress callback that draws a bar on w while
// chunks are embedded. The bar is created on the first report, once the
// total is known.
func NewEmbedProgress(w io.Writer) func(done, total int) {
	var (
		mu  sync.Mutex
		bar *progressbar.ProgressBar
	)

	return func(done, total int) {
		mu.Lock()
		defer mu.Unlock()

		if bar == nil {
			bar = newBar(w, total)
		}
		_ = bar.Set(done)
	}
}

func newBar(w io.Writer, total int) *progressbar.ProgressBar {
	color := ColorEnabled(w)
	description := "  Embedding"
	theme := progressbar.Theme{Saucer: "=", SaucerHead: ">", SaucerPadding: " ", BarStart: "[", BarEnd: "]"}
	if color {
		description = "  [cyan]Embedding[reset]"
		theme.Saucer = "[green]=[reset]"
		theme.SaucerHead = "[green]>[reset]"
	}

	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(color),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(theme),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}

// ColorEnabled reports whether w is a terminal that can show colors.
func ColorEnabled(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false
	}
	return termenv.NewOutput(f).Profile != termenv.Ascii
}

// Width returns the terminal width of w, or 80 when it is not a terminal.
func Width(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return defaultWidth
}

// RenderResults formats ranked passages for a terminal of the given width.
// Each passage shows its rank, score, and source, then the text wrapped to
// width. When maxLines > 0 the text of each passage is cut after that many
// lines.
func RenderResults(results []vector.QueryResult, width, maxLines int) string {
	if len(results) == 0 {
		return StepStyle.Render("No passages found.") + "\n"
	}
	if width <= 0 {
		width = defaultWidth
	}

	var b strings.Builder
	for i, r := range results {
		header := fmt.Sprintf("%d. %s", i+1, r.Payload.Source)
		fmt.Fprintf(&b, "%s %s\n", HeaderStyle.Render(header), ScoreStyle.Render(fmt.Sprintf("(%.3f)", r.Score)))

		lines := strings.Split(ansi.Wordwrap(r.Payload.Text, width-2, ""), "\n")
		if maxLines > 0 && len(lines) > maxLines {
			lines = append(lines[:maxLines], "…")
		}
		for _, line := range lines {
			b.WriteString("  " + ansi.Truncate(line, width-2, "…") + "\n")
		}
		if i < len(results)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RenderMarkdown renders markdown content for terminal display using glamour.
func RenderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(defaultWidth),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}
