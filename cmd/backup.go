package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/mntn/internal/backup"
	"github.com/zjrosen/mntn/internal/crypt"
	"github.com/zjrosen/mntn/internal/history"
	"github.com/zjrosen/mntn/internal/layers"
	"github.com/zjrosen/mntn/internal/registry"
	"github.com/zjrosen/mntn/internal/task"
)

var (
	backupLayer         string
	backupSkipEncrypted bool
	backupSkipPackages  bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Copy tracked files into the backup",
	Long: `Copy every enabled configuration entry from its live location into one
layer of the backup, then encrypt the enabled encrypted entries and export
package lists.

Examples:
  mntn backup                     # into the configured layer (default: common)
  mntn backup --layer machine     # into machines/<machine-id>/
  mntn backup --layer environment --env work
  mntn backup --skip-encrypted --dry-run`,
	RunE: runBackup,
}

func init() {
	backupCmd.Flags().StringVarP(&backupLayer, "layer", "l", "",
		"layer to write: common, machine or environment (default from config)")
	backupCmd.Flags().BoolVar(&backupSkipEncrypted, "skip-encrypted", false,
		"do not back up encrypted entries")
	backupCmd.Flags().BoolVar(&backupSkipPackages, "skip-packages", false,
		"do not export package lists")
	rootCmd.AddCommand(backupCmd)
}

func runBackup(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	layer, err := cfg.WriteLayer()
	if err != nil {
		return err
	}
	if backupLayer != "" {
		if layer, err = layers.ParseLayer(backupLayer); err != nil {
			return err
		}
	}
	if !layer.Writable() {
		return fmt.Errorf("cannot back up into the %s layer", layer)
	}

	configs, err := loadRegistry(e.layout.ConfigsRegistryPath(), registry.DefaultConfigs)
	if err != nil {
		return err
	}
	var encrypted *registry.EncryptedRegistry
	if !backupSkipEncrypted && !cfg.Backup.SkipEncrypted {
		if encrypted, err = loadRegistry(e.layout.EncryptedRegistryPath(), registry.DefaultEncrypted); err != nil {
			return err
		}
	}
	var packages *registry.PackageRegistry
	if !backupSkipPackages && !cfg.Backup.SkipPackages {
		if packages, err = loadRegistry(e.layout.PackageRegistryPath(), registry.DefaultPackages); err != nil {
			return err
		}
	}

	p := e.pipeline()
	platform := registry.CurrentPlatform()
	e.out.Info("Backing up to %s layer (%s)", layer, e.profile)

	var sum backup.Summary
	t := task.Func{
		TaskName: "backup",
		PlanFn: func(context.Context) ([]task.PlannedOperation, error) {
			ops := p.PlanBackup(configs, layer)
			if encrypted != nil {
				ops = append(ops, p.PlanBackupEncrypted(encrypted, layer)...)
			}
			if packages != nil {
				ops = append(ops, p.PlanPackages(packages, platform)...)
			}
			return ops, nil
		},
		ExecFn: func(ctx context.Context) error {
			ctx, r := e.beginRun(ctx, history.KindBackup, layer.String())
			err := backupAll(ctx, p, layer, configs, encrypted, packages, platform, &sum)
			r.finishSummary(ctx, sum, err)
			return err
		},
	}
	if err := task.Run(cmd.Context(), e.out, t, flagDryRun); err != nil {
		return err
	}
	if flagDryRun {
		return nil
	}

	printSummary(e.out, "Backup", sum)
	return batchErr("backup", sum)
}

func backupAll(
	ctx context.Context,
	p backup.Pipeline,
	layer layers.Layer,
	configs *registry.ConfigRegistry,
	encrypted *registry.EncryptedRegistry,
	packages *registry.PackageRegistry,
	platform string,
	sum *backup.Summary,
) error {
	s, err := p.Backup(ctx, configs, layer)
	sum.Merge(s)
	if err != nil {
		return err
	}

	if encrypted != nil && hasEnabled(encrypted) {
		pass, err := crypt.NewSource().Passphrase(true)
		if err != nil {
			return err
		}
		s, err := p.BackupEncrypted(ctx, encrypted, layer, pass)
		sum.Merge(s)
		if err != nil {
			return err
		}
	}

	if packages != nil {
		s, err := p.BackupPackages(ctx, packages, platform)
		sum.Merge(s)
		if err != nil {
			return err
		}
	}
	return nil
}

func hasEnabled[T registry.Entry[T]](r *registry.Registry[T]) bool {
	for range r.Enabled() {
		return true
	}
	return false
}
