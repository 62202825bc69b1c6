package fsutil

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var errCrossDevice = errors.New("invalid cross-device link")

func failingRename(string, string) error { return errCrossDevice }

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestWriteFileAtomic_CreatesParentsAndReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "reg.json")

	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0o600))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "two", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
}

func TestCopyFile_BinarySafe(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "blob")
	dst := filepath.Join(dir, "out", "blob")
	data := []byte{0x00, 0xff, 0x10, 0x00, 'a', '\n', 0xfe}
	writeFile(t, src, data)
	require.NoError(t, os.Chmod(src, 0o600))

	require.NoError(t, CopyFile(src, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, data, got)
	info, err := os.Stat(dst)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestCopyFile_RejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	require.Error(t, CopyFile(dir, filepath.Join(dir, "x")))
}

func TestSyncDir_OneWayNoDeletes(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	writeFile(t, filepath.Join(src, "a.txt"), []byte("new a"))
	writeFile(t, filepath.Join(src, "nested", "b.txt"), []byte("b"))
	writeFile(t, filepath.Join(dst, "a.txt"), []byte("old a"))
	writeFile(t, filepath.Join(dst, "extra.txt"), []byte("keep me"))
	require.NoError(t, os.Symlink(filepath.Join(src, "a.txt"), filepath.Join(src, "link")))

	copied, err := SyncDir(src, dst)
	require.NoError(t, err)
	require.Equal(t, 2, copied)

	got, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "new a", string(got))
	require.FileExists(t, filepath.Join(dst, "nested", "b.txt"))
	require.FileExists(t, filepath.Join(dst, "extra.txt"))
	require.False(t, Exists(filepath.Join(dst, "link")), "symlinks are skipped")
}

func TestCountEntriesAndSize(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a"), []byte("12345"))
	writeFile(t, filepath.Join(dir, "sub", "b"), []byte("123"))
	require.NoError(t, os.Symlink(filepath.Join(dir, "a"), filepath.Join(dir, "link")))

	n, err := CountEntries(dir)
	require.NoError(t, err)
	require.Equal(t, 3, n) // a, sub, sub/b

	size, err := Size(dir)
	require.NoError(t, err)
	require.Equal(t, int64(8), size)

	size, err = Size(filepath.Join(dir, "a"))
	require.NoError(t, err)
	require.Equal(t, int64(5), size)
}

func makeFiveFileDir(t *testing.T, dir string) {
	t.Helper()
	for i := 0; i < 5; i++ {
		writeFile(t, filepath.Join(dir, fmt.Sprintf("f%d", i)), []byte(fmt.Sprintf("content %d", i)))
	}
}

func TestMovePath_DirectoryRename(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "backup", "nvim")
	to := filepath.Join(dir, "backup", "common", "nvim")
	makeFiveFileDir(t, from)

	res, err := NewMover().MovePath(from, to)
	require.NoError(t, err)
	require.Equal(t, MethodRenamed, res.Method)
	require.False(t, res.Warning())
	require.NoDirExists(t, from)

	n, err := CountEntries(to)
	require.NoError(t, err)
	require.Equal(t, 5, n)
}

func TestMovePath_DirectoryCopyFallback(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "backup", "nvim")
	to := filepath.Join(dir, "backup", "common", "nvim")
	makeFiveFileDir(t, from)

	m := NewMover()
	m.Rename = failingRename
	res, err := m.MovePath(from, to)
	require.NoError(t, err)
	require.Equal(t, MethodCopied, res.Method)
	require.False(t, res.Warning())
	require.NoDirExists(t, from)

	n, err := CountEntries(to)
	require.NoError(t, err)
	require.Equal(t, 5, n)
}

func TestMovePath_FileCopyFallback(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "zshrc")
	to := filepath.Join(dir, "common", "zshrc")
	writeFile(t, from, []byte("export X=1\n"))

	m := NewMover()
	m.Rename = failingRename
	res, err := m.MovePath(from, to)
	require.NoError(t, err)
	require.Equal(t, MethodCopied, res.Method)
	require.NoFileExists(t, from)

	got, err := os.ReadFile(to)
	require.NoError(t, err)
	require.Equal(t, "export X=1\n", string(got))
}

func TestMovePath_RemoveFailureIsWarning(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "zshrc")
	to := filepath.Join(dir, "common", "zshrc")
	writeFile(t, from, []byte("data"))

	m := Mover{
		Rename:    failingRename,
		RemoveAll: func(string) error { return errors.New("permission denied") },
	}
	res, err := m.MovePath(from, to)
	require.NoError(t, err)
	require.True(t, res.Warning())
	require.Contains(t, res.WarningMessage(), from)
	require.Contains(t, res.WarningMessage(), to)
	require.FileExists(t, from)
	require.FileExists(t, to)
}

func TestMovePath_RefusesExistingDestination(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "nvim")
	to := filepath.Join(dir, "common", "nvim")
	makeFiveFileDir(t, from)
	writeFile(t, filepath.Join(to, "precious"), []byte("keep me"))

	for _, rename := range []func(string, string) error{os.Rename, failingRename} {
		m := NewMover()
		m.Rename = rename
		_, err := m.MovePath(from, to)
		require.ErrorIs(t, err, ErrDestinationExists)

		got, err := os.ReadFile(filepath.Join(to, "precious"))
		require.NoError(t, err)
		require.Equal(t, "keep me", string(got))
		n, err := CountEntries(from)
		require.NoError(t, err)
		require.Equal(t, 5, n)
	}
}

func TestMovePath_RefusesDanglingLinkAtDestination(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "zshrc")
	to := filepath.Join(dir, "common", "zshrc")
	writeFile(t, from, []byte("data"))
	require.NoError(t, os.MkdirAll(filepath.Dir(to), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(dir, "gone"), to))

	_, err := NewMover().MovePath(from, to)
	require.ErrorIs(t, err, ErrDestinationExists)
	require.FileExists(t, from)
}

func TestMovePath_CopyFailureKeepsSource(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read any file")
	}
	dir := t.TempDir()
	from := filepath.Join(dir, "nvim")
	to := filepath.Join(dir, "common", "nvim")
	makeFiveFileDir(t, from)
	locked := filepath.Join(from, "f3")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o644) })

	m := NewMover()
	m.Rename = failingRename
	_, err := m.MovePath(from, to)
	require.Error(t, err)

	n, err := CountEntries(from)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.NoDirExists(t, to)
}

func TestMovePath_MissingSource(t *testing.T) {
	dir := t.TempDir()
	_, err := NewMover().MovePath(filepath.Join(dir, "nope"), filepath.Join(dir, "to"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// At every outcome of MovePath at least one complete copy of the data exists.
func TestMovePath_NeverLosesData(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dir, err := os.MkdirTemp("", "movepath")
		require.NoError(rt, err)
		defer func() { _ = os.RemoveAll(dir) }()

		from := filepath.Join(dir, "legacy", "item")
		to := filepath.Join(dir, "common", "item")

		files := rapid.MapOfN(
			rapid.StringMatching(`[a-z]{1,6}`),
			rapid.SliceOfN(rapid.Byte(), 0, 64),
			1, 6,
		).Draw(rt, "files")
		for name, data := range files {
			require.NoError(rt, os.MkdirAll(from, 0o755))
			require.NoError(rt, os.WriteFile(filepath.Join(from, name), data, 0o644))
		}

		m := NewMover()
		if rapid.Bool().Draw(rt, "renameFails") {
			m.Rename = failingRename
		}
		if rapid.Bool().Draw(rt, "removeFails") {
			m.RemoveAll = func(string) error { return errors.New("busy") }
		}

		_, moveErr := m.MovePath(from, to)

		complete := func(root string) bool {
			for name, data := range files {
				got, err := os.ReadFile(filepath.Join(root, name))
				if err != nil || !bytes.Equal(got, data) {
					return false
				}
			}
			return true
		}
		require.True(rt, complete(from) || complete(to), "no complete copy left (err=%v)", moveErr)
		if moveErr == nil {
			require.True(rt, complete(to))
		}
	})
}
