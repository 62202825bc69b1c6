// Package profile decides which machine and environment layers apply to an
// invocation. Profiles are named presets stored in profile.json; the active
// one is chosen by flag, MNTN_PROFILE or the .active-profile marker file.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"slices"

	"github.com/zjrosen/mntn/internal/fsutil"
	"github.com/zjrosen/mntn/internal/log"
)

// ConfigVersion is written into newly created profile files.
const ConfigVersion = "1.0.0"

var (
	// ErrProfileNotFound is returned when a named profile is not defined.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrProfileExists is returned when creating a profile that already exists.
	ErrProfileExists = errors.New("profile already exists")
	// ErrMalformed is returned when profile.json cannot be parsed.
	ErrMalformed = errors.New("malformed profile config")
	// ErrInvalidName is returned for names outside [A-Za-z0-9_-].
	ErrInvalidName = errors.New("invalid profile name")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Definition is one named profile. Unset fields fall through to the CLI or
// host defaults during resolution.
type Definition struct {
	MachineID   *string `json:"machine_id,omitempty"`
	Environment *string `json:"environment,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Config is the content of profile.json.
type Config struct {
	Version        string                `json:"version"`
	DefaultProfile *string               `json:"default_profile,omitempty"`
	Profiles       map[string]Definition `json:"profiles"`
}

// NewConfig returns an empty profile config.
func NewConfig() *Config {
	return &Config{Version: ConfigVersion, Profiles: make(map[string]Definition)}
}

// ValidateName checks that a profile name only uses letters, digits, - and _.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w %q: only letters, digits, '-' and '_' are allowed", ErrInvalidName, name)
	}
	return nil
}

// LoadConfig reads profile.json strictly.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the layout
	if err != nil {
		return nil, fmt.Errorf("reading profile config: %w", err)
	}
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrMalformed, path, err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]Definition)
	}
	return cfg, nil
}

// LoadConfigOrDefault reads profile.json, returning an empty config when the
// file is missing or malformed.
func LoadConfigOrDefault(path string) *Config {
	cfg, err := LoadConfig(path)
	if err == nil {
		return cfg
	}
	if !errors.Is(err, fs.ErrNotExist) {
		log.Warn(log.CatProfile, "ignoring unreadable profile config", "path", path, "error", err)
	}
	return NewConfig()
}

// Save writes profile.json atomically.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding profile config: %w", err)
	}
	data = append(data, '\n')
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("saving profile config: %w", err)
	}
	return nil
}

// Get returns the named definition.
func (c *Config) Get(name string) (Definition, bool) {
	def, ok := c.Profiles[name]
	return def, ok
}

// Exists reports whether name is defined.
func (c *Config) Exists(name string) bool {
	_, ok := c.Profiles[name]
	return ok
}

// Names returns the defined profile names, sorted.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Create adds a profile. The name must be valid and unused.
func (c *Config) Create(name string, def Definition) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if c.Exists(name) {
		return fmt.Errorf("%w: %s", ErrProfileExists, name)
	}
	if c.Profiles == nil {
		c.Profiles = make(map[string]Definition)
	}
	c.Profiles[name] = def
	return nil
}

// Delete removes a profile and clears the default if it pointed at it.
func (c *Config) Delete(name string) error {
	if !c.Exists(name) {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	delete(c.Profiles, name)
	if c.DefaultProfile != nil && *c.DefaultProfile == name {
		c.DefaultProfile = nil
	}
	return nil
}

// SetDefault makes name the default profile. An empty name clears it.
func (c *Config) SetDefault(name string) error {
	if name == "" {
		c.DefaultProfile = nil
		return nil
	}
	if !c.Exists(name) {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	c.DefaultProfile = &name
	return nil
}
