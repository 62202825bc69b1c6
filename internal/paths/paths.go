// Package paths resolves the on-disk locations mntn reads and writes.
//
// Layout of the base directory (default ~/.mntn, overridden by MNTN_HOME):
//
//	<base>/configs_registry.json
//	<base>/encrypted_configs_registry.json
//	<base>/package_registry.json
//	<base>/profile.json
//	<base>/.active-profile
//	<base>/.machine-id
//	<base>/config.yaml
//	<base>/backup/                      backup root, also the legacy layer
//	<base>/backup/common/
//	<base>/backup/machines/<id>/
//	<base>/backup/environments/<env>/
//	<base>/backup/packages/
//
// Nothing in this package touches the filesystem except Default, which reads
// the user's home directory.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Directory and file names below the base directory.
const (
	BaseDirName     = ".mntn"
	BackupDir       = "backup"
	CommonDir       = "common"
	MachinesDir     = "machines"
	EnvironmentsDir = "environments"
	EncryptedDir    = "encrypted"
	PackagesDir     = "packages"

	ConfigsRegistryFile   = "configs_registry.json"
	EncryptedRegistryFile = "encrypted_configs_registry.json"
	PackageRegistryFile   = "package_registry.json"
	ProfileConfigFile     = "profile.json"
	ActiveProfileFile     = ".active-profile"
	MachineIDFile         = ".machine-id"
	ConfigFile            = "config.yaml"
	HistoryDBFile         = "history.db"
	LogFile               = "mntn.log"
	TraceFile             = "traces.jsonl"
)

// EnvHome overrides the base directory.
const EnvHome = "MNTN_HOME"

// LayeredSubdirs are the top-level names under the backup root that belong to
// the layered structure rather than to legacy items.
var LayeredSubdirs = []string{CommonDir, MachinesDir, EnvironmentsDir}

// Layout anchors every path mntn uses.
type Layout struct {
	Home    string
	BaseDir string
}

// New returns a layout rooted at baseDir with home used for ~ expansion.
func New(home, baseDir string) Layout {
	return Layout{Home: filepath.Clean(home), BaseDir: filepath.Clean(baseDir)}
}

// Default builds the layout from the user's home directory and MNTN_HOME.
func Default() (Layout, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Layout{}, fmt.Errorf("resolving home directory: %w", err)
	}
	base := filepath.Join(home, BaseDirName)
	if override := strings.TrimSpace(os.Getenv(EnvHome)); override != "" {
		base = override
	}
	return New(home, base), nil
}

// BackupRoot is the root of all layers and the legacy layer itself.
func (l Layout) BackupRoot() string { return filepath.Join(l.BaseDir, BackupDir) }

func (l Layout) CommonDir() string { return filepath.Join(l.BackupRoot(), CommonDir) }

func (l Layout) MachineDir(machineID string) string {
	return filepath.Join(l.BackupRoot(), MachinesDir, machineID)
}

func (l Layout) EnvironmentDir(env string) string {
	return filepath.Join(l.BackupRoot(), EnvironmentsDir, env)
}

func (l Layout) PackagesDir() string { return filepath.Join(l.BackupRoot(), PackagesDir) }

func (l Layout) ConfigsRegistryPath() string { return filepath.Join(l.BaseDir, ConfigsRegistryFile) }

func (l Layout) EncryptedRegistryPath() string {
	return filepath.Join(l.BaseDir, EncryptedRegistryFile)
}

func (l Layout) PackageRegistryPath() string { return filepath.Join(l.BaseDir, PackageRegistryFile) }

func (l Layout) ProfileConfigPath() string { return filepath.Join(l.BaseDir, ProfileConfigFile) }

func (l Layout) ActiveProfilePath() string { return filepath.Join(l.BaseDir, ActiveProfileFile) }

func (l Layout) MachineIDPath() string { return filepath.Join(l.BaseDir, MachineIDFile) }

func (l Layout) ConfigPath() string { return filepath.Join(l.BaseDir, ConfigFile) }

func (l Layout) HistoryDBPath() string { return filepath.Join(l.BaseDir, HistoryDBFile) }

func (l Layout) LogPath() string { return filepath.Join(l.BaseDir, LogFile) }

func (l Layout) TracePath() string { return filepath.Join(l.BaseDir, TraceFile) }

// ExpandHome replaces a leading "~" or "~/" with the layout's home directory.
func (l Layout) ExpandHome(p string) string {
	switch {
	case p == "~":
		return l.Home
	case strings.HasPrefix(p, "~/"):
		return filepath.Join(l.Home, p[2:])
	default:
		return p
	}
}

// ContractHome is the inverse of ExpandHome, for display.
func (l Layout) ContractHome(p string) string {
	if p == l.Home {
		return "~"
	}
	if rel, ok := strings.CutPrefix(p, l.Home+string(filepath.Separator)); ok {
		return "~/" + filepath.ToSlash(rel)
	}
	return p
}

// Within reports whether p is root itself or lies below it, lexically.
func Within(root, p string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(p))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
