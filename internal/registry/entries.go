package registry

import (
	"fmt"
	"strings"
)

// Category groups configuration entries for display.
type Category string

const (
	CategoryShell       Category = "shell"
	CategoryEditor      Category = "editor"
	CategoryTerminal    Category = "terminal"
	CategorySystem      Category = "system"
	CategoryDevelopment Category = "development"
	CategoryApplication Category = "application"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryShell,
	CategoryEditor,
	CategoryTerminal,
	CategorySystem,
	CategoryDevelopment,
	CategoryApplication,
}

// ParseCategory accepts a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// ConfigEntry is a tracked configuration file or directory.
type ConfigEntry struct {
	Name string `json:"name"`
	// SourcePath is the path relative to a layer root.
	SourcePath string `json:"source_path"`
	// TargetPath is the live location; a leading ~/ is expanded at use time.
	TargetPath  string   `json:"target_path"`
	Enabled     bool     `json:"enabled"`
	Description *string  `json:"description,omitempty"`
	Category    Category `json:"category,omitempty"`
}

func (e ConfigEntry) IsEnabled() bool { return e.Enabled }

func (e ConfigEntry) WithEnabled(enabled bool) ConfigEntry {
	e.Enabled = enabled
	return e
}

// EncryptedEntry is a configuration file stored encrypted in the backup.
type EncryptedEntry struct {
	Name        string   `json:"name"`
	SourcePath  string   `json:"source_path"`
	TargetPath  string   `json:"target_path"`
	Enabled     bool     `json:"enabled"`
	Description *string  `json:"description,omitempty"`
	Category    Category `json:"category,omitempty"`
	// EncryptFilename hides the file name in the backup as well as the content.
	EncryptFilename bool `json:"encrypt_filename"`
}

func (e EncryptedEntry) IsEnabled() bool { return e.Enabled }

func (e EncryptedEntry) WithEnabled(enabled bool) EncryptedEntry {
	e.Enabled = enabled
	return e
}

// PackageEntry is a package manager whose installed-package list is exported
// during backup.
type PackageEntry struct {
	Name        string   `json:"name"`
	Command     string   `json:"command"`
	Args        []string `json:"args"`
	OutputFile  string   `json:"output_file"`
	Enabled     bool     `json:"enabled"`
	Description *string  `json:"description,omitempty"`
	// Platforms limits the entry to some operating systems; empty means all.
	Platforms []string `json:"platforms,omitempty"`
}

func (e PackageEntry) IsEnabled() bool { return e.Enabled }

func (e PackageEntry) WithEnabled(enabled bool) PackageEntry {
	e.Enabled = enabled
	return e
}

// Tracked is the shared view of plain and encrypted configuration entries.
type Tracked interface {
	EntryName() string
	Source() string
	Target() string
}

func (e ConfigEntry) EntryName() string    { return e.Name }
func (e ConfigEntry) Source() string       { return e.SourcePath }
func (e ConfigEntry) Target() string       { return e.TargetPath }
func (e EncryptedEntry) EntryName() string { return e.Name }
func (e EncryptedEntry) Source() string    { return e.SourcePath }
func (e EncryptedEntry) Target() string    { return e.TargetPath }

// DescriptionOr returns the description or fallback when absent.
func DescriptionOr(d *string, fallback string) string {
	if d == nil || *d == "" {
		return fallback
	}
	return *d
}

// Ptr returns a pointer to s, for optional fields.
func Ptr(s string) *string { return &s }

// Aliases for the three registries mntn keeps.
type (
	ConfigRegistry    = Registry[ConfigEntry]
	EncryptedRegistry = Registry[EncryptedEntry]
	PackageRegistry   = Registry[PackageEntry]
)

// DuplicateSources groups ids by source path and returns the groups with more
// than one id, keyed by source path.
func DuplicateSources[T interface {
	Entry[T]
	Tracked
}](r *Registry[T]) map[string][]string {
	bySource := make(map[string][]string)
	for id, entry := range r.All() {
		bySource[entry.Source()] = append(bySource[entry.Source()], id)
	}
	for src, ids := range bySource {
		if len(ids) < 2 {
			delete(bySource, src)
		}
	}
	return bySource
}

// ByCategory groups config entry ids by category. Entries without a category
// are grouped under the empty category.
func ByCategory(r *ConfigRegistry) map[Category][]string {
	out := make(map[Category][]string)
	for id, entry := range r.All() {
		out[entry.Category] = append(out[entry.Category], id)
	}
	return out
}
