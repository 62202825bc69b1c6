package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zjrosen/mntn/internal/cachemanager"
	"github.com/zjrosen/mntn/internal/crypt"
	"github.com/zjrosen/mntn/internal/fsutil"
	"github.com/zjrosen/mntn/internal/layers"
	"github.com/zjrosen/mntn/internal/log"
	"github.com/zjrosen/mntn/internal/paths"
	"github.com/zjrosen/mntn/internal/profile"
	"github.com/zjrosen/mntn/internal/registry"
)

// ErrEncryptedDirectory is returned for encrypted entries whose target is a
// directory; only single files are encrypted.
var ErrEncryptedDirectory = errors.New("encrypted entries must be files")

// Pipeline performs backups and restores for one resolved profile.
type Pipeline struct {
	Layers  layers.Engine
	Profile profile.ActiveProfile
	Cipher  crypt.Cipher
	Runner  CommandRunner
	// Lookup, when set, skips package managers that are not installed
	// instead of failing them.
	Lookup *cachemanager.PathLookup
}

func (p Pipeline) layout() paths.Layout { return p.Layers.Layout }

func (p Pipeline) target(t string) string { return p.layout().ExpandHome(t) }

// Backup copies every enabled entry's live target into layer.
func (p Pipeline) Backup(ctx context.Context, reg *registry.ConfigRegistry, layer layers.Layer) (Summary, error) {
	var sum Summary
	if !layer.Writable() {
		return sum, fmt.Errorf("cannot back up into the %s layer", layer)
	}

	for id, entry := range reg.Enabled() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		r := ItemResult{
			ID:    id,
			Name:  entry.Name,
			Layer: layer.String(),
			From:  p.target(entry.TargetPath),
			To:    p.Layers.Destination(p.Profile, layer, entry.SourcePath),
		}
		r.Status, r.Note, r.Err = p.backupItem(r.From, r.To)
		logResult(log.CatBackup, r)
		sum.record(ctx, r)
	}
	return sum, nil
}

func (p Pipeline) backupItem(target, dest string) (Status, string, error) {
	info, err := os.Lstat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return StatusSkipped, "live file not found", nil
	}
	if err != nil {
		return StatusFailed, "", err
	}

	note := ""
	if info.Mode()&os.ModeSymlink != 0 {
		linked, converted, err := p.materializeBackupLink(target)
		if err != nil {
			return StatusFailed, "", err
		}
		if converted {
			note = "replaced symlink into backup with a real copy"
			if sameFile(linked, dest) {
				return StatusDone, note, nil
			}
		}
	}

	if err := copyAny(target, dest); err != nil {
		return StatusFailed, note, err
	}
	return StatusDone, note, nil
}

// materializeBackupLink replaces a live symlink that points into the backup
// root with a real copy of what it points at. Returns the resolved link
// target and whether a replacement happened.
func (p Pipeline) materializeBackupLink(target string) (string, bool, error) {
	linked, err := filepath.EvalSymlinks(target)
	if err != nil {
		return "", false, fmt.Errorf("resolving symlink %s: %w", target, err)
	}
	root, err := filepath.EvalSymlinks(p.layout().BackupRoot())
	if err != nil || !paths.Within(root, linked) {
		return linked, false, nil
	}

	if err := os.Remove(target); err != nil {
		return "", false, fmt.Errorf("removing symlink %s: %w", target, err)
	}
	if err := copyAny(linked, target); err != nil {
		return "", false, fmt.Errorf("replacing symlink %s: %w", target, err)
	}
	log.Info(log.CatBackup, "converted symlink to real copy", "target", target, "from", linked)
	return linked, true, nil
}

// Restore copies the authoritative copy of every enabled entry to its live
// target. Entries without any copy are skipped.
func (p Pipeline) Restore(ctx context.Context, reg *registry.ConfigRegistry) (Summary, error) {
	var sum Summary
	for id, entry := range reg.Enabled() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		r := ItemResult{ID: id, Name: entry.Name, To: p.target(entry.TargetPath)}

		src, ok := p.Layers.Resolve(p.Profile, entry.SourcePath)
		if !ok {
			r.Status = StatusSkipped
			r.Note = "no backup found in any layer"
		} else {
			r.From = src.Path
			r.Layer = src.Layer.String()
			r.Err = restoreItem(src.Path, r.To)
			r.Status = statusOf(r.Err)
		}
		logResult(log.CatRestore, r)
		sum.record(ctx, r)
	}
	return sum, nil
}

func restoreItem(src, target string) error {
	if fsutil.IsSymlink(target) {
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("removing symlink %s: %w", target, err)
		}
	}
	return copyAny(src, target)
}

// BackupEncrypted encrypts every enabled entry into the encrypted area of layer.
func (p Pipeline) BackupEncrypted(ctx context.Context, reg *registry.EncryptedRegistry, layer layers.Layer, passphrase string) (Summary, error) {
	var sum Summary
	if !layer.Writable() {
		return sum, fmt.Errorf("cannot back up into the %s layer", layer)
	}

	for id, entry := range reg.Enabled() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		stored := crypt.EncryptedPath(entry.SourcePath, entry.EncryptFilename)
		r := ItemResult{
			ID:    id,
			Name:  entry.Name,
			Layer: layer.String(),
			From:  p.target(entry.TargetPath),
			To:    p.Layers.EncryptedDestination(p.Profile, layer, stored),
		}

		data, err := readFile(r.From)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			r.Status = StatusSkipped
			r.Note = "live file not found"
		case err != nil:
			r.Status, r.Err = StatusFailed, err
		default:
			r.Err = p.encryptTo(data, passphrase, r.To)
			r.Status = statusOf(r.Err)
		}
		logResult(log.CatCrypt, r)
		sum.record(ctx, r)
	}
	return sum, nil
}

func (p Pipeline) encryptTo(data []byte, passphrase, dest string) error {
	ct, err := p.Cipher.Encrypt(data, passphrase)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(dest, ct, 0o600)
}

// RestoreEncrypted decrypts the authoritative encrypted copy of every
// enabled entry to its live target with owner-only permissions.
func (p Pipeline) RestoreEncrypted(ctx context.Context, reg *registry.EncryptedRegistry, passphrase string) (Summary, error) {
	var sum Summary
	for id, entry := range reg.Enabled() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		r := ItemResult{ID: id, Name: entry.Name, To: p.target(entry.TargetPath)}

		src, ok := p.Layers.ResolveEncrypted(p.Profile, crypt.EncryptedPath(entry.SourcePath, entry.EncryptFilename))
		if !ok {
			r.Status = StatusSkipped
			r.Note = "no encrypted backup found in any layer"
		} else {
			r.From = src.Path
			r.Layer = src.Layer.String()
			r.Err = p.decryptTo(src.Path, passphrase, r.To)
			r.Status = statusOf(r.Err)
		}
		logResult(log.CatCrypt, r)
		sum.record(ctx, r)
	}
	return sum, nil
}

func (p Pipeline) decryptTo(src, passphrase, target string) error {
	ct, err := os.ReadFile(src) //nolint:gosec // path resolved inside the backup root
	if err != nil {
		return err
	}
	pt, err := p.Cipher.Decrypt(ct, passphrase)
	if err != nil {
		return err
	}
	if fsutil.IsSymlink(target) {
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("removing symlink %s: %w", target, err)
		}
	}
	return fsutil.WriteFileAtomic(target, pt, 0o600)
}

// BackupPackages exports the package list of every enabled package manager
// that supports platform into the packages directory.
func (p Pipeline) BackupPackages(ctx context.Context, reg *registry.PackageRegistry, platform string) (Summary, error) {
	var sum Summary
	runner := p.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	for id, entry := range registry.PlatformCompatible(reg, platform) {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		r := ItemResult{
			ID:   id,
			Name: entry.Name,
			From: entry.Command,
			To:   filepath.Join(p.layout().PackagesDir(), entry.OutputFile),
		}
		if p.Lookup != nil {
			if found, err := p.Lookup.Find(ctx, entry.Command); err == nil && found == "" {
				r.Status, r.Note = StatusSkipped, entry.Command+" not installed"
				logResult(log.CatBackup, r)
				sum.record(ctx, r)
				continue
			}
		}
		out, err := runner.Run(ctx, entry.Command, entry.Args...)
		if err == nil {
			err = fsutil.WriteFileAtomic(r.To, out, 0o644)
		}
		r.Err = err
		r.Status = statusOf(err)
		logResult(log.CatBackup, r)
		sum.record(ctx, r)
	}
	return sum, nil
}

func copyAny(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		_, err := fsutil.SyncDir(src, dst)
		return err
	}
	return fsutil.CopyFile(src, dst)
}

func readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrEncryptedDirectory, path)
	}
	return os.ReadFile(path) //nolint:gosec // path comes from the user's registry
}

func sameFile(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}

func statusOf(err error) Status {
	if err != nil {
		return StatusFailed
	}
	return StatusDone
}

func logResult(cat log.Category, r ItemResult) {
	switch r.Status {
	case StatusFailed:
		log.ErrorErr(cat, "item failed", r.Err, "id", r.ID, "from", r.From, "to", r.To)
	case StatusSkipped:
		log.Info(cat, "item skipped", "id", r.ID, "reason", r.Note)
	default:
		log.Info(cat, "item done", "id", r.ID, "layer", r.Layer, "from", r.From, "to", r.To)
	}
}
