package profile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func noEnv(string) string { return "" }

func writeConfig(t *testing.T, dir string, cfg *Config) string {
	t.Helper()
	path := filepath.Join(dir, "profile.json")
	require.NoError(t, cfg.Save(path))
	return path
}

func newResolver(configPath, markerPath string) Resolver {
	return Resolver{
		ConfigPath: configPath,
		Marker:     MarkerStore{Path: markerPath, Getenv: noEnv},
		Host:       HostDefaults{MachineID: "host-box", Environment: "default"},
	}
}

func TestResolve_PriorityPerField(t *testing.T) {
	dir := t.TempDir()
	cfg := NewConfig()
	require.NoError(t, cfg.Create("work", Definition{MachineID: strPtr("work-laptop")}))
	path := writeConfig(t, dir, cfg)
	r := newResolver(path, filepath.Join(dir, ".active-profile"))

	tests := []struct {
		name string
		in   Overrides
		want ActiveProfile
	}{
		{
			name: "host defaults only",
			in:   Overrides{},
			want: ActiveProfile{MachineID: "host-box", Environment: "default"},
		},
		{
			name: "definition supplies machine, host supplies environment",
			in:   Overrides{Profile: "work"},
			want: ActiveProfile{Name: "work", MachineID: "work-laptop", Environment: "default"},
		},
		{
			name: "cli beats definition",
			in:   Overrides{Profile: "work", MachineID: "cli-box", Environment: "staging"},
			want: ActiveProfile{Name: "work", MachineID: "cli-box", Environment: "staging"},
		},
		{
			name: "unknown profile falls through",
			in:   Overrides{Profile: "nope"},
			want: ActiveProfile{MachineID: "host-box", Environment: "default"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, r.Resolve(tt.in))
		})
	}
}

func TestResolve_DefaultProfile(t *testing.T) {
	dir := t.TempDir()
	cfg := NewConfig()
	require.NoError(t, cfg.Create("home", Definition{Environment: strPtr("personal")}))
	require.NoError(t, cfg.SetDefault("home"))
	r := newResolver(writeConfig(t, dir, cfg), filepath.Join(dir, ".active-profile"))

	got := r.Resolve(Overrides{})
	require.Equal(t, ActiveProfile{Name: "home", MachineID: "host-box", Environment: "personal"}, got)
}

func TestResolve_MarkerSelectsProfile(t *testing.T) {
	dir := t.TempDir()
	cfg := NewConfig()
	require.NoError(t, cfg.Create("work", Definition{Environment: strPtr("work")}))
	r := newResolver(writeConfig(t, dir, cfg), filepath.Join(dir, ".active-profile"))
	require.NoError(t, r.Marker.Set("work"))

	require.Equal(t, "work", r.Resolve(Overrides{}).Environment)
}

func TestResolve_MalformedConfigFallsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o644))
	r := newResolver(path, filepath.Join(dir, ".active-profile"))

	got := r.Resolve(Overrides{Profile: "work", Environment: "ci"})
	require.Equal(t, ActiveProfile{MachineID: "host-box", Environment: "ci"}, got)
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))

	_, err := LoadConfig(path)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestConfig_CreateDelete(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Create("a", Definition{}))
	require.ErrorIs(t, cfg.Create("a", Definition{}), ErrProfileExists)
	require.ErrorIs(t, cfg.Create("bad name", Definition{}), ErrInvalidName)
	require.NoError(t, cfg.Create("b", Definition{}))
	require.NoError(t, cfg.SetDefault("a"))
	require.Equal(t, []string{"a", "b"}, cfg.Names())

	require.NoError(t, cfg.Delete("a"))
	require.Nil(t, cfg.DefaultProfile, "deleting the default clears it")
	require.ErrorIs(t, cfg.Delete("a"), ErrProfileNotFound)
	require.ErrorIs(t, cfg.SetDefault("zzz"), ErrProfileNotFound)
}

func TestConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := NewConfig()
	require.NoError(t, cfg.Create("work", Definition{MachineID: strPtr("m1"), Description: strPtr("office")}))
	require.NoError(t, cfg.SetDefault("work"))
	path := writeConfig(t, dir, cfg)

	got, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, cfg, got)
}

func TestMarkerStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".active-profile")
	m := MarkerStore{Path: path, Getenv: noEnv}

	_, ok := m.Get()
	require.False(t, ok)

	require.NoError(t, m.Set("work"))
	name, ok := m.Get()
	require.True(t, ok)
	require.Equal(t, "work", name)

	require.Error(t, m.Set("../etc"))

	require.NoError(t, m.Clear())
	require.NoError(t, m.Clear(), "clearing twice is fine")
	_, ok = m.Get()
	require.False(t, ok)
}

func TestMarkerStore_EnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".active-profile")
	m := MarkerStore{Path: path, Getenv: func(k string) string {
		if k == EnvProfile {
			return " from-env "
		}
		return ""
	}}
	require.NoError(t, m.Set("from-file"))

	name, ok := m.Get()
	require.True(t, ok)
	require.Equal(t, "from-env", name)
}

func TestDetectMachineID(t *testing.T) {
	dir := t.TempDir()
	idPath := filepath.Join(dir, ".machine-id")
	host := func() (string, error) { return "Dev-Laptop.local", nil }

	require.Equal(t, "dev-laptop", detectMachineID(idPath, host))

	require.NoError(t, os.WriteFile(idPath, []byte("  Studio_Mac \n"), 0o644))
	require.Equal(t, "studio_mac", detectMachineID(idPath, host))

	broken := func() (string, error) { return "", errors.New("no hostname") }
	require.Equal(t, unknownMachine, detectMachineID(filepath.Join(dir, "missing"), broken))
}

func TestDetectEnvironment(t *testing.T) {
	require.Equal(t, DefaultEnvironment, detectEnvironment(noEnv))
	require.Equal(t, "work", detectEnvironment(func(string) string { return "work" }))
}

func TestSanitizeMachineID(t *testing.T) {
	require.Equal(t, "mybox.lan", SanitizeMachineID(".My Box!.lan."))
	require.Equal(t, "", SanitizeMachineID("../"))
}
