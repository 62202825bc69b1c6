package layers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/mntn/internal/paths"
	"github.com/zjrosen/mntn/internal/profile"
)

func testEngine(t *testing.T) (Engine, profile.ActiveProfile) {
	t.Helper()
	base := t.TempDir()
	return New(paths.New(base, filepath.Join(base, ".mntn"))),
		profile.ActiveProfile{MachineID: "laptop", Environment: "work"}
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(path), 0o644))
}

func TestCandidates_OrderAndPaths(t *testing.T) {
	e, p := testEngine(t)
	root := e.Layout.BackupRoot()

	got := e.Candidates(p, ".zshrc")
	require.Equal(t, []Candidate{
		{Path: filepath.Join(root, "environments", "work", ".zshrc"), Layer: Environment},
		{Path: filepath.Join(root, "machines", "laptop", ".zshrc"), Layer: Machine},
		{Path: filepath.Join(root, "common", ".zshrc"), Layer: Common},
		{Path: filepath.Join(root, ".zshrc"), Layer: Legacy},
	}, got)
}

// Candidates always has four entries in priority order, each ending in the
// relative path, with the machine and environment ids in their paths.
func TestCandidates_Properties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		layout := paths.New("/home/u", "/home/u/.mntn")
		e := New(layout)
		p := profile.ActiveProfile{
			MachineID:   rapid.StringMatching(`[a-z0-9-]{1,12}`).Draw(rt, "machine"),
			Environment: rapid.StringMatching(`[a-z0-9-]{1,12}`).Draw(rt, "env"),
		}
		rel := rapid.StringMatching(`[a-z_][a-z._]{0,7}(/[a-z_][a-z._]{0,7}){0,3}`).Draw(rt, "rel")
		rel = filepath.Clean(rel)

		got := e.Candidates(p, rel)
		require.Len(rt, got, 4)
		for i, l := range All {
			require.Equal(rt, l, got[i].Layer)
			require.True(rt, strings.HasSuffix(got[i].Path, rel))
		}
		require.Contains(rt, got[0].Path, filepath.Join("environments", p.Environment))
		require.Contains(rt, got[1].Path, filepath.Join("machines", p.MachineID))
	})
}

func TestResolve_HighestLayerWins(t *testing.T) {
	e, p := testEngine(t)
	root := e.Layout.BackupRoot()

	_, ok := e.Resolve(p, "ssh/config")
	require.False(t, ok)

	touch(t, filepath.Join(root, "ssh", "config"))
	got, ok := e.Resolve(p, "ssh/config")
	require.True(t, ok)
	require.Equal(t, Legacy, got.Layer)

	touch(t, filepath.Join(root, "common", "ssh", "config"))
	touch(t, filepath.Join(root, "machines", "laptop", "ssh", "config"))
	got, ok = e.Resolve(p, "ssh/config")
	require.True(t, ok)
	require.Equal(t, Resolved{Path: filepath.Join(root, "machines", "laptop", "ssh", "config"), Layer: Machine}, got)

	all := e.ResolveAll(p, "ssh/config")
	require.Len(t, all, 3)
	require.Equal(t, []Layer{Machine, Common, Legacy}, []Layer{all[0].Layer, all[1].Layer, all[2].Layer})
}

func TestResolve_OtherMachineIsIgnored(t *testing.T) {
	e, p := testEngine(t)
	touch(t, filepath.Join(e.Layout.BackupRoot(), "machines", "desktop", ".vimrc"))

	_, ok := e.Resolve(p, ".vimrc")
	require.False(t, ok)
}

func TestResolve_IgnoresDanglingLink(t *testing.T) {
	e, p := testEngine(t)
	touch(t, filepath.Join(e.Layout.CommonDir(), ".gitconfig"))
	env := e.Destination(p, Environment, ".gitconfig")
	require.NoError(t, os.MkdirAll(filepath.Dir(env), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(e.Layout.Home, "nowhere"), env))

	got, ok := e.Resolve(p, ".gitconfig")
	require.True(t, ok)
	require.Equal(t, Common, got.Layer)
	require.Len(t, e.ResolveAll(p, ".gitconfig"), 1)
}

func TestResolveEncrypted(t *testing.T) {
	e, p := testEngine(t)
	touch(t, filepath.Join(e.Layout.CommonDir(), "encrypted", "ssh", "config.age"))

	got, ok := e.ResolveEncrypted(p, "ssh/config.age")
	require.True(t, ok)
	require.Equal(t, Common, got.Layer)
	require.Equal(t, e.EncryptedDestination(p, Common, "ssh/config.age"), got.Path)
}

func TestParseLayer(t *testing.T) {
	l, err := ParseLayer("Machine")
	require.NoError(t, err)
	require.Equal(t, Machine, l)

	_, err = ParseLayer("profile")
	require.Error(t, err)
	require.False(t, Legacy.Writable())
	require.True(t, Common.Writable())
}

func TestIsLayeredPath(t *testing.T) {
	require.True(t, IsLayeredPath("common/.zshrc"))
	require.True(t, IsLayeredPath("machines"))
	require.True(t, IsLayeredPath("environments/work/x"))
	require.False(t, IsLayeredPath(".zshrc"))
	require.False(t, IsLayeredPath("commonplace/x"))
}
