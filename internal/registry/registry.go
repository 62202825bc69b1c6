// Package registry stores the lists of tracked items mntn backs up: plain
// configuration files, encrypted configuration files and package-manager
// exports. Each list is a JSON document of the form
//
//	{ "version": "1.0.0", "entries": { "<id>": { ... } } }
//
// and is loaded whole, mutated in memory and saved with an atomic rewrite.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"slices"

	"github.com/zjrosen/mntn/internal/fsutil"
	"github.com/zjrosen/mntn/internal/log"
)

// Version is written into newly created registries.
const Version = "1.0.0"

var (
	// ErrNotFound is returned when an entry id is not in the registry.
	ErrNotFound = errors.New("registry entry not found")
	// ErrMalformed is returned when a registry file exists but cannot be parsed.
	ErrMalformed = errors.New("malformed registry file")
)

// Entry is implemented by every registry entry type. WithEnabled returns a
// copy of the entry with its enabled flag replaced.
type Entry[T any] interface {
	IsEnabled() bool
	WithEnabled(enabled bool) T
}

// Registry is a versioned map of entries keyed by id.
type Registry[T Entry[T]] struct {
	Version string       `json:"version"`
	Entries map[string]T `json:"entries"`
}

// New returns an empty registry at the current version.
func New[T Entry[T]]() *Registry[T] {
	return &Registry[T]{Version: Version, Entries: make(map[string]T)}
}

// Load reads the registry at path. A missing file yields an error wrapping
// fs.ErrNotExist; unparseable content yields ErrMalformed.
func Load[T Entry[T]](path string) (*Registry[T], error) {
	data, err := os.ReadFile(path) //nolint:gosec // registry path comes from the layout
	if err != nil {
		return nil, fmt.Errorf("reading registry %s: %w", path, err)
	}

	var reg Registry[T]
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrMalformed, path, err)
	}
	if reg.Entries == nil {
		reg.Entries = make(map[string]T)
	}
	return &reg, nil
}

// LoadOrCreate loads the registry at path, or builds it with defaults and
// saves it when no file exists. A malformed file is an error, never replaced.
func LoadOrCreate[T Entry[T]](path string, defaults func() *Registry[T]) (*Registry[T], error) {
	reg, err := Load[T](path)
	if err == nil {
		return reg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	reg = defaults()
	if err := reg.Save(path); err != nil {
		return nil, err
	}
	log.Info(log.CatRegistry, "created default registry", "path", path, "entries", len(reg.Entries))
	return reg, nil
}

// Save writes the registry to path as indented JSON, creating parent
// directories and replacing the file atomically.
func (r *Registry[T]) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}
	data = append(data, '\n')
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("saving registry %s: %w", path, err)
	}
	log.Debug(log.CatRegistry, "saved registry", "path", path, "entries", len(r.Entries))
	return nil
}

// Add inserts or replaces the entry with the given id.
func (r *Registry[T]) Add(id string, entry T) {
	if r.Entries == nil {
		r.Entries = make(map[string]T)
	}
	r.Entries[id] = entry
}

// Remove deletes the entry with id and returns it.
func (r *Registry[T]) Remove(id string) (T, bool) {
	entry, ok := r.Entries[id]
	if ok {
		delete(r.Entries, id)
	}
	return entry, ok
}

// Get returns the entry with id.
func (r *Registry[T]) Get(id string) (T, bool) {
	entry, ok := r.Entries[id]
	return entry, ok
}

// SetEnabled flips the enabled flag of one entry. It returns ErrNotFound and
// leaves the registry unchanged when id is absent.
func (r *Registry[T]) SetEnabled(id string, enabled bool) error {
	entry, ok := r.Entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.Entries[id] = entry.WithEnabled(enabled)
	return nil
}

// IDs returns every entry id in sorted order.
func (r *Registry[T]) IDs() []string {
	ids := make([]string, 0, len(r.Entries))
	for id := range r.Entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// All yields every entry in id order.
func (r *Registry[T]) All() iter.Seq2[string, T] {
	return func(yield func(string, T) bool) {
		for _, id := range r.IDs() {
			if !yield(id, r.Entries[id]) {
				return
			}
		}
	}
}

// Enabled yields the enabled entries in id order. It does not mutate the
// registry and can be ranged over repeatedly.
func (r *Registry[T]) Enabled() iter.Seq2[string, T] {
	return func(yield func(string, T) bool) {
		for id, entry := range r.All() {
			if !entry.IsEnabled() {
				continue
			}
			if !yield(id, entry) {
				return
			}
		}
	}
}

// Len returns the number of entries.
func (r *Registry[T]) Len() int { return len(r.Entries) }
