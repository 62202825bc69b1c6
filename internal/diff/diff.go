// Package diff compares a live target with its authoritative backup copy.
package diff

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/zjrosen/mntn/internal/presentation"
)

// LineType classifies one diff line.
type LineType int

const (
	LineContext LineType = iota
	LineAddition
	LineDeletion
)

// Line is one line of a line-level diff.
type Line struct {
	Type LineType
	Text string
}

// Status summarizes a comparison.
type Status string

const (
	StatusIdentical     Status = "identical"
	StatusDiffers       Status = "differs"
	StatusMissingLive   Status = "missing live file"
	StatusMissingStored Status = "no backup"
	StatusBinary        Status = "binary files differ"
	StatusDirectory     Status = "directory"
)

// Result is the outcome of Compare. Lines is set only for StatusDiffers;
// deletions are lines present in the backup and missing from the live file.
type Result struct {
	Status Status
	Lines  []Line
}

// Changed reports whether the backup would change the live file on restore.
func (r Result) Changed() bool {
	return r.Status != StatusIdentical && r.Status != StatusDirectory
}

// Compare diffs storedPath (old) against livePath (new). An empty storedPath
// means no backup copy exists.
func Compare(livePath, storedPath string) (Result, error) {
	if storedPath == "" {
		return Result{Status: StatusMissingStored}, nil
	}

	stored, err := readRegular(storedPath)
	if errors.Is(err, errIsDir) {
		return Result{Status: StatusDirectory}, nil
	}
	if err != nil {
		return Result{}, err
	}

	live, err := readRegular(livePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Result{Status: StatusMissingLive}, nil
	case errors.Is(err, errIsDir):
		return Result{Status: StatusDirectory}, nil
	case err != nil:
		return Result{}, err
	}

	if bytes.Equal(stored, live) {
		return Result{Status: StatusIdentical}, nil
	}
	if isBinary(stored) || isBinary(live) {
		return Result{Status: StatusBinary}, nil
	}
	return Result{Status: StatusDiffers, Lines: Lines(string(stored), string(live))}, nil
}

// Lines computes a line-level diff from oldText to newText.
func Lines(oldText, newText string) []Line {
	dmp := diffmatchpatch.New()
	a, b, table := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), table)

	var out []Line
	for _, d := range diffs {
		typ := LineContext
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			typ = LineAddition
		case diffmatchpatch.DiffDelete:
			typ = LineDeletion
		}
		for _, text := range splitLines(d.Text) {
			out = append(out, Line{Type: typ, Text: text})
		}
	}
	return out
}

// Render writes lines in unified style, keeping context lines of unchanged
// text around each change and eliding the rest.
func Render(w io.Writer, lines []Line, context int) {
	keep := make([]bool, len(lines))
	for i, l := range lines {
		if l.Type == LineContext {
			continue
		}
		for j := max(0, i-context); j <= min(len(lines)-1, i+context); j++ {
			keep[j] = true
		}
	}

	skipped := false
	for i, l := range lines {
		if !keep[i] {
			skipped = true
			continue
		}
		if skipped {
			_, _ = fmt.Fprintln(w, presentation.MutedStyle.Render("@@"))
			skipped = false
		}
		switch l.Type {
		case LineAddition:
			_, _ = fmt.Fprintln(w, presentation.AddedStyle.Render("+"+l.Text))
		case LineDeletion:
			_, _ = fmt.Fprintln(w, presentation.RemovedStyle.Render("-"+l.Text))
		default:
			_, _ = fmt.Fprintln(w, " "+l.Text)
		}
	}
}

// Stat counts added and removed lines.
func Stat(lines []Line) (added, removed int) {
	for _, l := range lines {
		switch l.Type {
		case LineAddition:
			added++
		case LineDeletion:
			removed++
		}
	}
	return added, removed
}

var errIsDir = errors.New("is a directory")

func readRegular(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, errIsDir
	}
	return os.ReadFile(path) //nolint:gosec // paths come from the registry and layer resolution
}

func isBinary(data []byte) bool {
	return bytes.IndexByte(data[:min(len(data), 8000)], 0) >= 0
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
