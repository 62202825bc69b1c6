package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrVerification is returned when a copy made during a move does not match
// its source. The source is left untouched.
var ErrVerification = errors.New("copy verification failed")

// ErrDestinationExists is returned when something is already at the
// destination of a move. Neither side is touched.
var ErrDestinationExists = errors.New("destination already exists")

// Method records how MovePath relocated an item.
type Method int

const (
	MethodRenamed Method = iota
	MethodCopied
)

func (m Method) String() string {
	if m == MethodCopied {
		return "copied"
	}
	return "renamed"
}

// MoveResult describes a successful move. RemoveErr is set when the data
// reached its destination but the source could not be deleted, leaving two
// complete copies.
type MoveResult struct {
	From      string
	To        string
	Method    Method
	RemoveErr error
}

// Warning reports whether the move succeeded with a leftover source.
func (r MoveResult) Warning() bool { return r.RemoveErr != nil }

// WarningMessage names both locations so the user can clean up by hand.
func (r MoveResult) WarningMessage() string {
	if r.RemoveErr == nil {
		return ""
	}
	return fmt.Sprintf("copied to %s but could not remove %s: %v", r.To, r.From, r.RemoveErr)
}

// Mover relocates files and directories. Rename and RemoveAll are the
// filesystem primitives it uses; tests swap them to force the copy path or a
// failed cleanup.
type Mover struct {
	Rename    func(oldpath, newpath string) error
	RemoveAll func(path string) error
}

// NewMover returns a Mover backed by the os package.
func NewMover() Mover {
	return Mover{Rename: os.Rename, RemoveAll: os.RemoveAll}
}

// MovePath moves from to to. It tries a rename first; when that fails
// (typically across devices) it copies, verifies the copy and only then
// removes the source. At every point at least one complete copy exists.
// The destination must not exist yet, so cleaning up a failed copy only
// removes what this move created.
func (m Mover) MovePath(from, to string) (MoveResult, error) {
	result := MoveResult{From: from, To: to}

	info, err := os.Lstat(from)
	if err != nil {
		return result, fmt.Errorf("stat %s: %w", from, err)
	}
	if Exists(to) {
		return result, fmt.Errorf("%w: %s", ErrDestinationExists, to)
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return result, fmt.Errorf("creating directory for %s: %w", to, err)
	}

	rename := m.Rename
	if rename == nil {
		rename = os.Rename
	}
	if err := rename(from, to); err == nil {
		result.Method = MethodRenamed
		return result, nil
	}

	result.Method = MethodCopied
	if err := copyVerified(from, to, info); err != nil {
		// A partial copy would shadow the legacy item on the next run.
		_ = os.RemoveAll(to)
		return result, err
	}

	removeAll := m.RemoveAll
	if removeAll == nil {
		removeAll = os.RemoveAll
	}
	if err := removeAll(from); err != nil {
		result.RemoveErr = err
	}
	return result, nil
}

func copyVerified(from, to string, info os.FileInfo) error {
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		link, err := os.Readlink(from)
		if err != nil {
			return fmt.Errorf("reading link %s: %w", from, err)
		}
		if err := os.Symlink(link, to); err != nil {
			return fmt.Errorf("recreating link %s: %w", to, err)
		}
		return nil

	case info.IsDir():
		if _, err := SyncDir(from, to); err != nil {
			return err
		}
		want, err := CountEntries(from)
		if err != nil {
			return err
		}
		got, err := CountEntries(to)
		if err != nil {
			return err
		}
		if want != got {
			return fmt.Errorf("%w: %s has %d entries, %s has %d", ErrVerification, from, want, to, got)
		}
		return nil

	default:
		if err := CopyFile(from, to); err != nil {
			return err
		}
		dst, err := os.Stat(to)
		if err != nil {
			return fmt.Errorf("stat %s: %w", to, err)
		}
		if dst.Size() != info.Size() {
			return fmt.Errorf("%w: %s is %d bytes, %s is %d bytes", ErrVerification, from, info.Size(), to, dst.Size())
		}
		return nil
	}
}
