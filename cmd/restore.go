package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/zjrosen/mntn/internal/backup"
	"github.com/zjrosen/mntn/internal/crypt"
	"github.com/zjrosen/mntn/internal/history"
	"github.com/zjrosen/mntn/internal/registry"
	"github.com/zjrosen/mntn/internal/task"
)

var restoreSkipEncrypted bool

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Copy backed-up files to their live locations",
	Long: `Restore every enabled entry from the highest layer that holds a copy:
environment, then machine, then common, then legacy flat files.

Entries with no copy in any layer are skipped. Files already in place that
are not tracked are left alone.

Examples:
  mntn restore
  mntn restore --profile work
  mntn restore --machine-id laptop --dry-run`,
	RunE: runRestore,
}

func init() {
	restoreCmd.Flags().BoolVar(&restoreSkipEncrypted, "skip-encrypted", false,
		"do not restore encrypted entries")
	rootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	configs, err := loadRegistry(e.layout.ConfigsRegistryPath(), registry.DefaultConfigs)
	if err != nil {
		return err
	}
	var encrypted *registry.EncryptedRegistry
	if !restoreSkipEncrypted && !cfg.Backup.SkipEncrypted {
		if encrypted, err = loadRegistry(e.layout.EncryptedRegistryPath(), registry.DefaultEncrypted); err != nil {
			return err
		}
	}

	p := e.pipeline()
	e.out.Info("Restoring (%s)", e.profile)

	var sum backup.Summary
	t := task.Func{
		TaskName: "restore",
		PlanFn: func(context.Context) ([]task.PlannedOperation, error) {
			ops := p.PlanRestore(configs)
			if encrypted != nil {
				ops = append(ops, p.PlanRestoreEncrypted(encrypted)...)
			}
			return ops, nil
		},
		ExecFn: func(ctx context.Context) error {
			ctx, r := e.beginRun(ctx, history.KindRestore, "")
			err := restoreAll(ctx, p, configs, encrypted, &sum)
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

	printSummary(e.out, "Restore", sum)
	return batchErr("restore", sum)
}

func restoreAll(
	ctx context.Context,
	p backup.Pipeline,
	configs *registry.ConfigRegistry,
	encrypted *registry.EncryptedRegistry,
	sum *backup.Summary,
) error {
	s, err := p.Restore(ctx, configs)
	sum.Merge(s)
	if err != nil {
		return err
	}

	if encrypted == nil || !hasEnabled(encrypted) {
		return nil
	}
	pass, err := crypt.NewSource().Passphrase(false)
	if err != nil {
		return err
	}
	s, err = p.RestoreEncrypted(ctx, encrypted, pass)
	sum.Merge(s)
	return err
}
