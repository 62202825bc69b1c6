package validate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/zjrosen/mntn/internal/layers"
	"github.com/zjrosen/mntn/internal/paths"
	"github.com/zjrosen/mntn/internal/profile"
	"github.com/zjrosen/mntn/internal/registry"
)

// RegistryValidator checks the registry files themselves.
type RegistryValidator struct{ deps Deps }

func (RegistryValidator) Name() string { return "Registry Files" }

func (v RegistryValidator) Validate(ctx context.Context) []ValidationError {
	var out []ValidationError

	configs, err := loadConfigs(v.deps)
	if err != nil {
		out = append(out, errorf(fmt.Sprintf("Could not load configs registry: %v", err),
			"Fix the JSON in "+v.deps.Layout.ConfigsRegistryPath()))
	} else {
		dups := registry.DuplicateSources(configs)
		for _, src := range slices.Sorted(maps.Keys(dups)) {
			out = append(out, warning(
				fmt.Sprintf("Duplicate source path '%s' used by: %s", src, strings.Join(dups[src], ", ")),
				"Consider consolidating or renaming entries"))
		}
	}

	packages, err := loadPackages(v.deps)
	if err != nil {
		out = append(out, errorf(fmt.Sprintf("Could not load package registry: %v", err),
			"Fix the JSON in "+v.deps.Layout.PackageRegistryPath()))
		return out
	}
	for id, entry := range registry.PlatformCompatible(packages, v.deps.Platform) {
		path, err := v.deps.Lookup.Find(ctx, entry.Command)
		if err != nil || path == "" {
			out = append(out, info(
				fmt.Sprintf("Package manager '%s' (%s) not found in PATH", entry.Name, id),
				fmt.Sprintf("Install %s or disable this entry with 'mntn registry packages toggle %s --enabled=false'", entry.Command, id)))
		}
	}
	return out
}

// LayerValidator reports shadowed copies and items still only in the legacy
// layer.
type LayerValidator struct{ deps Deps }

func (LayerValidator) Name() string { return "Layer Resolution" }

func (v LayerValidator) Validate(context.Context) []ValidationError {
	configs, err := loadConfigs(v.deps)
	if err != nil {
		return []ValidationError{errorf(fmt.Sprintf("Could not load configs registry: %v", err), "")}
	}

	var out []ValidationError
	for id, entry := range configs.Enabled() {
		found := v.deps.Layers.ResolveAll(v.deps.Profile, entry.SourcePath)
		if len(found) == 0 {
			continue
		}
		winner := found[0]
		if len(found) > 1 {
			names := make([]string, len(found))
			for i, r := range found {
				names[i] = r.Layer.String()
			}
			out = append(out, info(
				fmt.Sprintf("%s (%s): Found in multiple layers: %s (using %s)", entry.Name, id, strings.Join(names, ", "), winner.Layer),
				"This is expected for overrides. Higher-priority layer wins."))
		}
		if winner.Layer == layers.Legacy {
			out = append(out, warning(
				fmt.Sprintf("%s (%s): Only copy is in the legacy location %s", entry.Name, id, winner.Path),
				"Run 'mntn migrate' to move it into the layered structure"))
		}
	}
	return out
}

// JSONValidator parses the authoritative copy of every .json entry.
type JSONValidator struct{ deps Deps }

func (JSONValidator) Name() string { return "JSON Configuration Files" }

func (v JSONValidator) Validate(context.Context) []ValidationError {
	configs, err := loadConfigs(v.deps)
	if err != nil {
		return []ValidationError{errorf(fmt.Sprintf("Could not load configs registry: %v", err), "")}
	}

	var out []ValidationError
	for id, entry := range configs.Enabled() {
		if !strings.EqualFold(filepath.Ext(entry.SourcePath), ".json") {
			continue
		}
		src, ok := v.deps.Layers.Resolve(v.deps.Profile, entry.SourcePath)
		if !ok {
			continue
		}
		if fi, err := os.Stat(src.Path); err != nil || fi.IsDir() {
			continue
		}
		data, err := os.ReadFile(src.Path)
		if err != nil {
			out = append(out, warning(
				fmt.Sprintf("Could not read %s (%s): %v", entry.Name, id, err),
				"Check file permissions for "+src.Path))
			continue
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			out = append(out, errorf(
				fmt.Sprintf("Invalid JSON in %s (%s): %v", entry.Name, id, err),
				fmt.Sprintf("Check syntax in %s [%s]", src.Path, src.Layer)))
		}
	}
	return out
}

// SymlinkValidator finds live targets that are still symlinks into the
// backup root.
type SymlinkValidator struct{ deps Deps }

func (SymlinkValidator) Name() string { return "Legacy Symlink Check" }

func (v SymlinkValidator) Validate(context.Context) []ValidationError {
	configs, err := loadConfigs(v.deps)
	if err != nil {
		return []ValidationError{errorf(fmt.Sprintf("Could not load configs registry: %v", err), "")}
	}

	root := v.deps.Layout.BackupRoot()
	var out []ValidationError
	count := 0
	for id, entry := range configs.Enabled() {
		target := v.deps.Layout.ExpandHome(entry.TargetPath)
		link, ok := linkInto(root, target)
		if !ok {
			continue
		}
		count++
		out = append(out, warning(
			fmt.Sprintf("%s (%s): %s is a symlink into the backup directory (%s)", entry.Name, id, target, link),
			"Run 'mntn backup' to replace it with a real copy"))
	}
	if count > 0 {
		out = append(out, info(
			fmt.Sprintf("%d legacy symlink(s) found", count),
			"Symlinks were used by older versions; backup and restore now keep real files"))
	}
	return out
}

// linkInto reports whether target is a symlink whose destination lies under
// root, comparing both the literal and the fully resolved paths.
func linkInto(root, target string) (string, bool) {
	fi, err := os.Lstat(target)
	if err != nil || fi.Mode()&os.ModeSymlink == 0 {
		return "", false
	}
	link, err := os.Readlink(target)
	if err != nil {
		return "", false
	}
	if !filepath.IsAbs(link) {
		link = filepath.Join(filepath.Dir(target), link)
	}
	if paths.Within(root, link) {
		return link, true
	}

	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", false
	}
	realLink, err := filepath.EvalSymlinks(target)
	if err != nil {
		return "", false
	}
	return link, paths.Within(realRoot, realLink)
}

// ProfileValidator checks profile.json.
type ProfileValidator struct{ deps Deps }

func (ProfileValidator) Name() string { return "Profile Configuration" }

func (v ProfileValidator) Validate(context.Context) []ValidationError {
	path := v.deps.Layout.ProfileConfigPath()
	cfg, err := profile.LoadConfig(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return []ValidationError{errorf(
			fmt.Sprintf("Could not load profile config: %v", err),
			"Fix the JSON in "+path+"; until then profiles fall back to host defaults")}
	}

	var out []ValidationError
	if cfg.DefaultProfile != nil && *cfg.DefaultProfile != "" && !cfg.Exists(*cfg.DefaultProfile) {
		out = append(out, warning(
			fmt.Sprintf("Default profile '%s' is not defined", *cfg.DefaultProfile),
			"Run 'mntn profile create "+*cfg.DefaultProfile+"' or 'mntn profile default --clear'"))
	}
	return out
}
