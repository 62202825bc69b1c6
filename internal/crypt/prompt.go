package crypt

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// EnvPassphrase supplies the passphrase non-interactively.
const EnvPassphrase = "MNTN_PASSPHRASE"

// ErrMismatch is returned when the confirmation does not match.
var ErrMismatch = errors.New("passphrases do not match")

// PassphraseSource yields the passphrase for a run. confirm asks twice.
type PassphraseSource interface {
	Passphrase(confirm bool) (string, error)
}

// Static is a fixed passphrase.
type Static string

func (s Static) Passphrase(bool) (string, error) {
	if s == "" {
		return "", ErrEmptyPassphrase
	}
	return string(s), nil
}

// TerminalPrompt reads the passphrase from the terminal without echo.
type TerminalPrompt struct {
	In  *os.File
	Out io.Writer
}

// NewSource returns a Static source when MNTN_PASSPHRASE is set, else a
// terminal prompt on stdin/stderr.
func NewSource() PassphraseSource {
	if pass := os.Getenv(EnvPassphrase); pass != "" {
		return Static(pass)
	}
	return TerminalPrompt{In: os.Stdin, Out: os.Stderr}
}

func (p TerminalPrompt) Passphrase(confirm bool) (string, error) {
	fd := int(p.In.Fd()) //nolint:gosec // file descriptors fit in int
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal for passphrase prompt; set %s", EnvPassphrase)
	}

	pass, err := p.read(fd, "Enter encryption passphrase: ")
	if err != nil {
		return "", err
	}
	if pass == "" {
		return "", ErrEmptyPassphrase
	}
	if confirm {
		again, err := p.read(fd, "Confirm encryption passphrase: ")
		if err != nil {
			return "", err
		}
		if again != pass {
			return "", ErrMismatch
		}
	}
	return pass, nil
}

func (p TerminalPrompt) read(fd int, prompt string) (string, error) {
	_, _ = fmt.Fprint(p.Out, prompt)
	b, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(p.Out)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}
