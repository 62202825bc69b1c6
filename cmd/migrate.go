package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/mntn/internal/history"
	"github.com/zjrosen/mntn/internal/layers"
	"github.com/zjrosen/mntn/internal/migrate"
	"github.com/zjrosen/mntn/internal/registry"
	"github.com/zjrosen/mntn/internal/task"
)

var migrateTo string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Move legacy flat backups into a layer",
	Long: `Move backups stored directly under ~/.mntn/backup (the legacy layout)
into a layered directory. Items already present in a layer are left alone.

Each item is renamed when possible and otherwise copied, verified and then
removed. A failed removal leaves the old copy behind and is reported as a
warning.

Examples:
  mntn migrate                    # into common/
  mntn migrate --to machine       # into machines/<machine-id>/
  mntn migrate --to environment --env work --dry-run`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrateTo, "to", "common",
		"destination layer: common, machine or environment")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	target, err := layers.ParseLayer(migrateTo)
	if err != nil {
		return err
	}

	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	engine, err := migrate.New(e.layers, e.profile, target)
	if err != nil {
		return err
	}
	configs, err := loadRegistry(e.layout.ConfigsRegistryPath(), registry.DefaultConfigs)
	if err != nil {
		return err
	}

	var sum migrate.Summary
	t := task.Func{
		TaskName: "migrate",
		PlanFn: func(context.Context) ([]task.PlannedOperation, error) {
			return engine.Plan(configs), nil
		},
		ExecFn: func(ctx context.Context) error {
			ctx, r := e.beginRun(ctx, history.KindMigrate, target.String())
			var err error
			sum, err = engine.Run(ctx, configs)
			r.finish(ctx, migrateItems(sum), sum.Migrated+sum.MigratedWithWarning,
				sum.AlreadyLayered, sum.Failed, sum.MigratedWithWarning, err)
			return err
		},
	}
	if err := task.Run(cmd.Context(), e.out, t, flagDryRun); err != nil {
		return err
	}
	if flagDryRun {
		return nil
	}

	printMigration(e, sum)
	if sum.Failed > 0 {
		return fmt.Errorf("migrate: %d item(s) failed", sum.Failed)
	}
	return nil
}

func printMigration(e *env, sum migrate.Summary) {
	if len(sum.Items) == 0 {
		e.out.Info("No legacy items to migrate")
	}
	if sum.Nested > 0 {
		e.out.Info("%d item(s) moved inside an enclosing directory", sum.Nested)
	}
	for _, it := range sum.Items {
		switch it.Outcome {
		case migrate.OutcomeMigrated:
			e.out.Success("%s: %s -> %s (%s)", it.ID, it.From, it.To, it.Method)
		case migrate.OutcomeMigratedWithWarning:
			e.out.Warning("%s: %s -> %s (%s)", it.ID, it.From, it.To, it.Warning)
		case migrate.OutcomeFailed:
			e.out.Error("%s: %v", it.ID, it.Err)
		}
	}
	e.out.Plain("Migrate: %d migrated, %d with warnings, %d failed, %d already layered",
		sum.Migrated, sum.MigratedWithWarning, sum.Failed, sum.AlreadyLayered)
}

func migrateItems(sum migrate.Summary) []history.Item {
	items := make([]history.Item, 0, len(sum.Items))
	for _, it := range sum.Items {
		item := history.Item{
			ItemID: it.ID,
			Status: string(it.Outcome),
			Source: it.From,
			Target: it.To,
			Note:   it.Warning,
		}
		if it.Err != nil {
			item.Error = it.Err.Error()
		}
		items = append(items, item)
	}
	return items
}
