package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/mntn/internal/paths"
	"github.com/zjrosen/mntn/internal/presentation"
	"github.com/zjrosen/mntn/internal/profile"
	"github.com/zjrosen/mntn/internal/task"
)

var useCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Make a profile active for later commands",
	Long: `Record the active profile in ~/.mntn/.active-profile. The MNTN_PROFILE
environment variable still takes precedence.

Use "common" or "none" to clear the active profile, so only the host
machine id and environment apply.

Examples:
  mntn use work
  mntn use none`,
	Args: cobra.ExactArgs(1),
	RunE: runUse,
}

func init() {
	rootCmd.AddCommand(useCmd)
}

func runUse(cmd *cobra.Command, args []string) error {
	layout, err := paths.Default()
	if err != nil {
		return err
	}
	name := args[0]
	marker := profile.NewMarkerStore(layout.ActiveProfilePath())

	var describe string
	var apply func() error
	switch name {
	case "common", "none":
		describe = "Clear active profile"
		apply = marker.Clear
	default:
		pc := profile.LoadConfigOrDefault(layout.ProfileConfigPath())
		if !pc.Exists(name) {
			return fmt.Errorf("%w: %s (create it with: mntn profile create %s)", profile.ErrProfileNotFound, name, name)
		}
		describe = "Activate profile " + name
		apply = func() error { return marker.Set(name) }
	}

	out := presentation.NewPrinter(cmd.OutOrStdout())
	t := task.Func{
		TaskName: "use",
		PlanFn: func(context.Context) ([]task.PlannedOperation, error) {
			return []task.PlannedOperation{task.OpTo(describe, marker.Path)}, nil
		},
		ExecFn: func(context.Context) error { return apply() },
	}
	if err := task.Run(cmd.Context(), out, t, flagDryRun); err != nil {
		return err
	}
	if flagDryRun {
		return nil
	}
	out.Success("%s", describe)
	if env := os.Getenv(profile.EnvProfile); env != "" {
		out.Warning("%s=%s overrides the active profile", profile.EnvProfile, env)
	}
	return nil
}

func errorsIsNotExist(err error) bool { return errors.Is(err, fs.ErrNotExist) }

func layerDirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}
