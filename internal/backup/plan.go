package backup

import (
	"fmt"
	"path/filepath"

	"github.com/zjrosen/mntn/internal/crypt"
	"github.com/zjrosen/mntn/internal/layers"
	"github.com/zjrosen/mntn/internal/registry"
	"github.com/zjrosen/mntn/internal/task"
)

// PlanBackup lists the copies Backup would make.
func (p Pipeline) PlanBackup(reg *registry.ConfigRegistry, layer layers.Layer) []task.PlannedOperation {
	var ops []task.PlannedOperation
	for _, entry := range reg.Enabled() {
		ops = append(ops, task.OpTo(
			fmt.Sprintf("Back up %s [%s]", entry.Name, layer),
			p.Layers.Destination(p.Profile, layer, entry.SourcePath),
		))
	}
	return ops
}

// PlanRestore lists the copies Restore would make and the items it would skip.
func (p Pipeline) PlanRestore(reg *registry.ConfigRegistry) []task.PlannedOperation {
	var ops []task.PlannedOperation
	for _, entry := range reg.Enabled() {
		target := p.target(entry.TargetPath)
		src, ok := p.Layers.Resolve(p.Profile, entry.SourcePath)
		if !ok {
			ops = append(ops, task.OpTo(fmt.Sprintf("Skip %s (no source)", entry.Name), target))
			continue
		}
		ops = append(ops, task.OpTo(
			fmt.Sprintf("Restore %s [%s]", entry.Name, src.Layer),
			fmt.Sprintf("%s -> %s", src.Path, target),
		))
	}
	return ops
}

// PlanBackupEncrypted lists the encrypted copies BackupEncrypted would write.
func (p Pipeline) PlanBackupEncrypted(reg *registry.EncryptedRegistry, layer layers.Layer) []task.PlannedOperation {
	var ops []task.PlannedOperation
	for _, entry := range reg.Enabled() {
		stored := crypt.EncryptedPath(entry.SourcePath, entry.EncryptFilename)
		ops = append(ops, task.OpTo(
			fmt.Sprintf("Back up %s (encrypted) [%s]", entry.Name, layer),
			p.Layers.EncryptedDestination(p.Profile, layer, stored),
		))
	}
	return ops
}

// PlanRestoreEncrypted lists the decryptions RestoreEncrypted would perform.
func (p Pipeline) PlanRestoreEncrypted(reg *registry.EncryptedRegistry) []task.PlannedOperation {
	var ops []task.PlannedOperation
	for _, entry := range reg.Enabled() {
		target := p.target(entry.TargetPath)
		src, ok := p.Layers.ResolveEncrypted(p.Profile, crypt.EncryptedPath(entry.SourcePath, entry.EncryptFilename))
		if !ok {
			ops = append(ops, task.OpTo(fmt.Sprintf("Skip %s (no encrypted source)", entry.Name), target))
			continue
		}
		ops = append(ops, task.OpTo(
			fmt.Sprintf("Decrypt %s [%s]", entry.Name, src.Layer),
			fmt.Sprintf("%s -> %s", src.Path, target),
		))
	}
	return ops
}

// PlanPackages lists the package exports BackupPackages would run.
func (p Pipeline) PlanPackages(reg *registry.PackageRegistry, platform string) []task.PlannedOperation {
	var ops []task.PlannedOperation
	for _, entry := range registry.PlatformCompatible(reg, platform) {
		ops = append(ops, task.OpTo(
			fmt.Sprintf("Back up %s package list", entry.Name),
			filepath.Join(p.layout().PackagesDir(), entry.OutputFile),
		))
	}
	return ops
}
