package presentation

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Status colors, shared with the default theme.
var (
	SuccessColor = lipgloss.AdaptiveColor{Light: "#1E8449", Dark: "#73F59F"}
	WarningColor = lipgloss.AdaptiveColor{Light: "#B9770E", Dark: "#FECA57"}
	ErrorColor   = lipgloss.AdaptiveColor{Light: "#C0392B", Dark: "#FF8787"}
	InfoColor    = lipgloss.AdaptiveColor{Light: "#1A5276", Dark: "#54A0FF"}
	MutedColor   = lipgloss.AdaptiveColor{Light: "#696969", Dark: "#696969"}
)

var (
	SuccessStyle = lipgloss.NewStyle().Foreground(SuccessColor)
	WarningStyle = lipgloss.NewStyle().Foreground(WarningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ErrorColor).Bold(true)
	InfoStyle    = lipgloss.NewStyle().Foreground(InfoColor)
	MutedStyle   = lipgloss.NewStyle().Foreground(MutedColor)
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	AddedStyle   = lipgloss.NewStyle().Foreground(SuccessColor)
	RemovedStyle = lipgloss.NewStyle().Foreground(ErrorColor)
)

// Printer writes styled status lines.
type Printer struct {
	w io.Writer
}

// NewPrinter returns a printer writing to w.
func NewPrinter(w io.Writer) *Printer { return &Printer{w: w} }

func (p *Printer) line(style lipgloss.Style, mark, format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, "%s %s\n", style.Render(mark), fmt.Sprintf(format, args...))
}

func (p *Printer) Success(format string, args ...any) { p.line(SuccessStyle, "✓", format, args...) }
func (p *Printer) Warning(format string, args ...any) { p.line(WarningStyle, "!", format, args...) }
func (p *Printer) Error(format string, args ...any)   { p.line(ErrorStyle, "✗", format, args...) }
func (p *Printer) Info(format string, args ...any)    { p.line(InfoStyle, "•", format, args...) }

// Skip reports an item that was not processed.
func (p *Printer) Skip(format string, args ...any) { p.line(MutedStyle, "-", format, args...) }

// Header prints a section title.
func (p *Printer) Header(title string) {
	_, _ = fmt.Fprintln(p.w, HeaderStyle.Render(title))
}

// Plain prints an unstyled line.
func (p *Printer) Plain(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format+"\n", args...)
}

// Muted prints a dimmed line.
func (p *Printer) Muted(format string, args ...any) {
	_, _ = fmt.Fprintln(p.w, MutedStyle.Render(fmt.Sprintf(format, args...)))
}

// Writer exposes the underlying writer.
func (p *Printer) Writer() io.Writer { return p.w }
