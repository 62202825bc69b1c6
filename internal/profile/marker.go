package profile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/zjrosen/mntn/internal/fsutil"
)

// EnvProfile overrides the marker file when set to a non-blank value.
const EnvProfile = "MNTN_PROFILE"

// MarkerStore persists the name of the active profile between invocations.
type MarkerStore struct {
	Path string
	// Getenv reads environment variables; nil means os.Getenv.
	Getenv func(string) string
}

// NewMarkerStore returns a store for the marker file at path.
func NewMarkerStore(path string) MarkerStore {
	return MarkerStore{Path: path, Getenv: os.Getenv}
}

// Get returns the active profile name from MNTN_PROFILE or the marker file.
func (m MarkerStore) Get() (string, bool) {
	getenv := m.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if name := strings.TrimSpace(getenv(EnvProfile)); name != "" {
		return name, true
	}

	data, err := os.ReadFile(m.Path)
	if err != nil {
		return "", false
	}
	name := strings.TrimSpace(string(data))
	return name, name != ""
}

// Set records name as the active profile.
func (m MarkerStore) Set(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(m.Path, []byte(name+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing active profile: %w", err)
	}
	return nil
}

// Clear removes the marker file. A missing file is not an error.
func (m MarkerStore) Clear() error {
	if err := os.Remove(m.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clearing active profile: %w", err)
	}
	return nil
}
