// Package presentation renders command output: JSON for scripting and
// lipgloss-styled text for terminals.
package presentation

import (
	"encoding/json"
	"io"
)

// Formatter handles machine-readable output.
type Formatter struct {
	writer io.Writer
}

// NewFormatter creates a new formatter
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{
		writer: writer,
	}
}

// JSON writes v as indented JSON followed by a newline.
func (f *Formatter) JSON(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
