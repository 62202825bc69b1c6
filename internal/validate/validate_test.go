package validate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/mntn/internal/cachemanager"
	"github.com/zjrosen/mntn/internal/layers"
	"github.com/zjrosen/mntn/internal/paths"
	"github.com/zjrosen/mntn/internal/profile"
	"github.com/zjrosen/mntn/internal/registry"
)

func newDeps(t *testing.T) Deps {
	t.Helper()
	home := t.TempDir()
	layout := paths.New(home, filepath.Join(home, ".mntn"))
	return Deps{
		Layout:   layout,
		Layers:   layers.New(layout),
		Profile:  profile.ActiveProfile{MachineID: "m1", Environment: "work"},
		Platform: registry.PlatformLinux,
		Lookup: cachemanager.NewPathLookup(func(name string) (string, error) {
			if name == "brew" {
				return "/usr/bin/brew", nil
			}
			return "", nil
		}),
	}
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func saveConfigs(t *testing.T, d Deps, entries map[string]registry.ConfigEntry) {
	t.Helper()
	reg := registry.New[registry.ConfigEntry]()
	for id, e := range entries {
		reg.Add(id, e)
	}
	require.NoError(t, reg.Save(d.Layout.ConfigsRegistryPath()))
}

func savePackages(t *testing.T, d Deps, entries map[string]registry.PackageEntry) {
	t.Helper()
	reg := registry.New[registry.PackageEntry]()
	for id, e := range entries {
		reg.Add(id, e)
	}
	require.NoError(t, reg.Save(d.Layout.PackageRegistryPath()))
}

func severities(errs []ValidationError) []Severity {
	out := make([]Severity, len(errs))
	for i, e := range errs {
		out[i] = e.Severity
	}
	return out
}

func TestRegistryValidator(t *testing.T) {
	d := newDeps(t)
	saveConfigs(t, d, map[string]registry.ConfigEntry{
		"a": {Name: "A", SourcePath: "shared", TargetPath: "~/a", Enabled: true},
		"b": {Name: "B", SourcePath: "shared", TargetPath: "~/b", Enabled: false},
		"c": {Name: "C", SourcePath: "unique", TargetPath: "~/c", Enabled: true},
	})
	savePackages(t, d, map[string]registry.PackageEntry{
		"brew":  {Name: "Homebrew", Command: "brew", OutputFile: "brew.txt", Enabled: true},
		"cargo": {Name: "Cargo", Command: "cargo", OutputFile: "cargo.txt", Enabled: true},
		"mas":   {Name: "App Store", Command: "mas", OutputFile: "mas.txt", Enabled: true, Platforms: []string{registry.PlatformMacOS}},
		"pip":   {Name: "pip", Command: "pip", OutputFile: "pip.txt", Enabled: false},
	})

	errs := RegistryValidator{deps: d}.Validate(context.Background())
	require.Equal(t, []Severity{SeverityWarning, SeverityInfo}, severities(errs))
	require.Equal(t, "Duplicate source path 'shared' used by: a, b", errs[0].Message)
	require.Contains(t, errs[1].Message, "'Cargo' (cargo)")
}

func TestRegistryValidator_MalformedIsError(t *testing.T) {
	d := newDeps(t)
	write(t, d.Layout.ConfigsRegistryPath(), "{ invalid json }")
	savePackages(t, d, nil)

	errs := RegistryValidator{deps: d}.Validate(context.Background())
	require.Len(t, errs, 1)
	require.Equal(t, SeverityError, errs[0].Severity)
	require.Contains(t, errs[0].Message, "Could not load configs registry")
}

func TestLayerValidator(t *testing.T) {
	d := newDeps(t)
	root := d.Layout.BackupRoot()
	saveConfigs(t, d, map[string]registry.ConfigEntry{
		"ssh_config": {Name: "SSH", SourcePath: "ssh/config", TargetPath: "~/.ssh/config", Enabled: true},
		"zshrc":      {Name: "Zsh", SourcePath: ".zshrc", TargetPath: "~/.zshrc", Enabled: true},
		"vimrc":      {Name: "Vim", SourcePath: ".vimrc", TargetPath: "~/.vimrc", Enabled: true},
	})
	write(t, filepath.Join(root, "environments", "work", "ssh", "config"), "env")
	write(t, filepath.Join(root, "machines", "m1", "ssh", "config"), "machine")
	write(t, filepath.Join(root, ".zshrc"), "legacy")

	errs := LayerValidator{deps: d}.Validate(context.Background())
	require.Len(t, errs, 2)
	require.Equal(t, SeverityInfo, errs[0].Severity)
	require.Contains(t, errs[0].Message, "environment, machine (using environment)")
	require.Equal(t, SeverityWarning, errs[1].Severity)
	require.Contains(t, errs[1].Message, "Zsh (zshrc)")
}

func TestJSONValidator(t *testing.T) {
	d := newDeps(t)
	common := d.Layout.CommonDir()
	saveConfigs(t, d, map[string]registry.ConfigEntry{
		"good":    {Name: "Good", SourcePath: "good.json", TargetPath: "~/good.json", Enabled: true},
		"bad":     {Name: "Bad", SourcePath: "bad.json", TargetPath: "~/bad.json", Enabled: true},
		"absent":  {Name: "Absent", SourcePath: "absent.json", TargetPath: "~/absent.json", Enabled: true},
		"notjson": {Name: "Text", SourcePath: "notes.txt", TargetPath: "~/notes.txt", Enabled: true},
	})
	write(t, filepath.Join(common, "good.json"), `{"editor.fontSize": 14}`)
	write(t, filepath.Join(common, "bad.json"), `{ "editor.fontSize": }`)
	write(t, filepath.Join(common, "notes.txt"), `{ not json at all`)

	errs := JSONValidator{deps: d}.Validate(context.Background())
	require.Len(t, errs, 1)
	require.Equal(t, SeverityError, errs[0].Severity)
	require.Contains(t, errs[0].Message, "Bad (bad)")
}

func TestJSONValidator_UnreadableIsWarning(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read any file")
	}
	d := newDeps(t)
	saveConfigs(t, d, map[string]registry.ConfigEntry{
		"vscode": {Name: "VSCode", SourcePath: "vscode/settings.json", TargetPath: "~/settings.json", Enabled: true},
	})
	locked := filepath.Join(d.Layout.CommonDir(), "vscode", "settings.json")
	write(t, locked, `{"editor.fontSize": 14}`)
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o644) })

	errs := JSONValidator{deps: d}.Validate(context.Background())
	require.Equal(t, []Severity{SeverityWarning}, severities(errs))
	require.Contains(t, errs[0].Message, "VSCode (vscode)")
	require.Contains(t, errs[0].Fix, locked)
}

func TestSymlinkValidator(t *testing.T) {
	d := newDeps(t)
	root := d.Layout.BackupRoot()
	write(t, filepath.Join(root, ".vimrc"), "legacy")
	write(t, filepath.Join(d.Layout.Home, "elsewhere"), "x")
	require.NoError(t, os.Symlink(filepath.Join(root, ".vimrc"), filepath.Join(d.Layout.Home, ".vimrc")))
	require.NoError(t, os.Symlink(filepath.Join(d.Layout.Home, "elsewhere"), filepath.Join(d.Layout.Home, ".zshrc")))
	saveConfigs(t, d, map[string]registry.ConfigEntry{
		"vimrc": {Name: "Vim", SourcePath: ".vimrc", TargetPath: "~/.vimrc", Enabled: true},
		"zshrc": {Name: "Zsh", SourcePath: ".zshrc", TargetPath: "~/.zshrc", Enabled: true},
	})

	errs := SymlinkValidator{deps: d}.Validate(context.Background())
	require.Equal(t, []Severity{SeverityWarning, SeverityInfo}, severities(errs))
	require.Contains(t, errs[0].Message, "Vim (vimrc)")
	require.Equal(t, "1 legacy symlink(s) found", errs[1].Message)
}

func TestProfileValidator(t *testing.T) {
	d := newDeps(t)
	v := ProfileValidator{deps: d}
	require.Empty(t, v.Validate(context.Background()), "missing file is fine")

	cfg := profile.NewConfig()
	require.NoError(t, cfg.Create("work", profile.Definition{}))
	require.NoError(t, cfg.SetDefault("work"))
	delete(cfg.Profiles, "work")
	require.NoError(t, cfg.Save(d.Layout.ProfileConfigPath()))

	errs := v.Validate(context.Background())
	require.Equal(t, []Severity{SeverityWarning}, severities(errs))

	write(t, d.Layout.ProfileConfigPath(), "{ nope")
	errs = v.Validate(context.Background())
	require.Equal(t, []Severity{SeverityError}, severities(errs))
}

func TestRun_AllChecksRunAndCount(t *testing.T) {
	d := newDeps(t)
	write(t, d.Layout.ConfigsRegistryPath(), "{ invalid json }")
	write(t, d.Layout.ProfileConfigPath(), "{ invalid json }")

	report, err := Run(context.Background(), All(d))
	require.NoError(t, err)
	require.Len(t, report.Results, 5)
	require.Equal(t, "Registry Files", report.Results[0].Name)
	require.Equal(t, "Profile Configuration", report.Results[4].Name)
	require.Equal(t, 5, report.ErrorCount())
	require.Zero(t, report.WarningCount())
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, All(newDeps(t)))
	require.ErrorIs(t, err, context.Canceled)
}
