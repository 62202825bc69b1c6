// Package layers maps an item's relative source path to its copies in the
// backup root. Four layers are consulted, highest priority first:
//
//	environment  <root>/environments/<env>/<rel>
//	machine      <root>/machines/<id>/<rel>
//	common       <root>/common/<rel>
//	legacy       <root>/<rel>
//
// The first layer holding a copy wins. Only existence is checked; contents
// and modification times never influence the choice.
package layers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zjrosen/mntn/internal/paths"
	"github.com/zjrosen/mntn/internal/profile"
)

// Layer identifies one storage layer.
type Layer int

// Declared in priority order, highest first.
const (
	Environment Layer = iota
	Machine
	Common
	Legacy
)

// All lists the layers in priority order.
var All = []Layer{Environment, Machine, Common, Legacy}

func (l Layer) String() string {
	switch l {
	case Environment:
		return "environment"
	case Machine:
		return "machine"
	case Common:
		return "common"
	case Legacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// Writable reports whether backups and migrations may target the layer.
func (l Layer) Writable() bool { return l != Legacy }

// ParseLayer accepts a layer name, case-insensitively.
func ParseLayer(s string) (Layer, error) {
	for _, l := range All {
		if strings.EqualFold(strings.TrimSpace(s), l.String()) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown layer %q (want environment, machine, common or legacy)", s)
}

// Candidate is a location where a copy may exist.
type Candidate struct {
	Path  string
	Layer Layer
}

// Resolved is a candidate that exists on disk.
type Resolved struct {
	Path  string
	Layer Layer
}

// Engine resolves source paths against a layout.
type Engine struct {
	Layout paths.Layout
}

// New returns an engine for layout.
func New(layout paths.Layout) Engine { return Engine{Layout: layout} }

// Dir returns the root directory of layer for profile p.
func (e Engine) Dir(p profile.ActiveProfile, l Layer) string {
	switch l {
	case Environment:
		return e.Layout.EnvironmentDir(p.Environment)
	case Machine:
		return e.Layout.MachineDir(p.MachineID)
	case Common:
		return e.Layout.CommonDir()
	default:
		return e.Layout.BackupRoot()
	}
}

// Candidates returns the four candidate locations for rel in priority order.
func (e Engine) Candidates(p profile.ActiveProfile, rel string) []Candidate {
	out := make([]Candidate, 0, len(All))
	for _, l := range All {
		out = append(out, Candidate{Path: filepath.Join(e.Dir(p, l), rel), Layer: l})
	}
	return out
}

// Resolve returns the highest-priority existing copy of rel.
func (e Engine) Resolve(p profile.ActiveProfile, rel string) (Resolved, bool) {
	for _, c := range e.Candidates(p, rel) {
		if exists(c.Path) {
			return Resolved(c), true
		}
	}
	return Resolved{}, false
}

// ResolveAll returns every existing copy of rel in priority order.
func (e Engine) ResolveAll(p profile.ActiveProfile, rel string) []Resolved {
	var out []Resolved
	for _, c := range e.Candidates(p, rel) {
		if exists(c.Path) {
			out = append(out, Resolved(c))
		}
	}
	return out
}

// Destination is where a copy of rel lives in layer l.
func (e Engine) Destination(p profile.ActiveProfile, l Layer, rel string) string {
	return filepath.Join(e.Dir(p, l), rel)
}

// EncryptedCandidates mirrors Candidates for encrypted copies, which live in
// an encrypted/ subdirectory of each layer. rel is the stored (possibly
// hashed) name.
func (e Engine) EncryptedCandidates(p profile.ActiveProfile, rel string) []Candidate {
	out := make([]Candidate, 0, len(All))
	for _, l := range All {
		out = append(out, Candidate{Path: filepath.Join(e.Dir(p, l), paths.EncryptedDir, rel), Layer: l})
	}
	return out
}

// ResolveEncrypted returns the highest-priority existing encrypted copy.
func (e Engine) ResolveEncrypted(p profile.ActiveProfile, rel string) (Resolved, bool) {
	for _, c := range e.EncryptedCandidates(p, rel) {
		if exists(c.Path) {
			return Resolved(c), true
		}
	}
	return Resolved{}, false
}

// EncryptedDestination is where an encrypted copy of rel lives in layer l.
func (e Engine) EncryptedDestination(p profile.ActiveProfile, l Layer, rel string) string {
	return filepath.Join(e.Dir(p, l), paths.EncryptedDir, rel)
}

// IsLayeredPath reports whether rel starts with one of the layered subtree
// names, meaning a legacy lookup of rel would land inside a layer.
func IsLayeredPath(rel string) bool {
	first, _, _ := strings.Cut(filepath.ToSlash(filepath.Clean(rel)), "/")
	for _, name := range paths.LayeredSubdirs {
		if first == name {
			return true
		}
	}
	return false
}

// exists follows symlinks, so a dangling link in a higher layer does not
// shadow a real copy below it.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
