package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/mntn/internal/layers"
	"github.com/zjrosen/mntn/internal/paths"
	"github.com/zjrosen/mntn/internal/presentation"
	"github.com/zjrosen/mntn/internal/profile"
	"github.com/zjrosen/mntn/internal/task"
)

var (
	profileDescription string
	profileClear       bool
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the active profile or manage profile definitions",
	Long: `Without a subcommand, print the resolved profile and the layer
directories it reads from.

A profile names a machine id and an environment. For each field the value
comes from the command line, then the profile definition, then the host.

Examples:
  mntn profile
  mntn profile list
  mntn profile create work --machine-id work-laptop --env work
  mntn profile default work
  mntn profile default --clear`,
	Args: cobra.NoArgs,
	RunE: runProfileShow,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profile definitions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		layout, err := paths.Default()
		if err != nil {
			return err
		}
		pc := profile.LoadConfigOrDefault(layout.ProfileConfigPath())
		out := presentation.NewPrinter(cmd.OutOrStdout())
		if len(pc.Profiles) == 0 {
			out.Muted("No profiles defined. Create one with: mntn profile create <name>")
			return nil
		}

		active, _ := profile.NewMarkerStore(layout.ActiveProfilePath()).Get()
		for _, name := range pc.Names() {
			def, _ := pc.Get(name)
			var marks string
			if name == active {
				marks += " (active)"
			}
			if pc.DefaultProfile != nil && *pc.DefaultProfile == name {
				marks += " (default)"
			}
			out.Plain("%s%s", name, marks)
			out.Muted("    machine: %s  environment: %s", orUnset(def.MachineID), orUnset(def.Environment))
			if def.Description != nil {
				out.Muted("    %s", *def.Description)
			}
		}
		return nil
	},
}

var profileCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Define a profile from --machine-id and --env",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutateProfiles(cmd, func(pc *profile.Config) (string, error) {
			def := profile.Definition{}
			if flagMachineID != "" {
				def.MachineID = &flagMachineID
			}
			if flagEnv != "" {
				def.Environment = &flagEnv
			}
			if profileDescription != "" {
				def.Description = &profileDescription
			}
			if err := pc.Create(args[0], def); err != nil {
				return "", err
			}
			return fmt.Sprintf("Create profile %s (machine: %s, environment: %s)",
				args[0], orUnset(def.MachineID), orUnset(def.Environment)), nil
		})
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove a profile definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		err := mutateProfiles(cmd, func(pc *profile.Config) (string, error) {
			if err := pc.Delete(name); err != nil {
				return "", err
			}
			return "Delete profile " + name, nil
		})
		if err != nil || flagDryRun {
			return err
		}

		// A marker naming the deleted profile would select nothing.
		layout, err := paths.Default()
		if err != nil {
			return err
		}
		marker := profile.NewMarkerStore(layout.ActiveProfilePath())
		if active, ok := marker.Get(); ok && active == name {
			return marker.Clear()
		}
		return nil
	},
}

var profileDefaultCmd = &cobra.Command{
	Use:   "default [name]",
	Short: "Set or clear the default profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if profileClear == (len(args) == 1) {
			return fmt.Errorf("give either a profile name or --clear")
		}
		return mutateProfiles(cmd, func(pc *profile.Config) (string, error) {
			if profileClear {
				_ = pc.SetDefault("")
				return "Clear default profile", nil
			}
			if err := pc.SetDefault(args[0]); err != nil {
				return "", err
			}
			return "Set default profile " + args[0], nil
		})
	},
}

func init() {
	profileCreateCmd.Flags().StringVar(&profileDescription, "description", "", "optional description")
	profileDefaultCmd.Flags().BoolVar(&profileClear, "clear", false, "clear the default profile")
	profileCmd.AddCommand(profileListCmd, profileCreateCmd, profileDeleteCmd, profileDefaultCmd)
	rootCmd.AddCommand(profileCmd)
}

func runProfileShow(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	name := e.profile.Name
	if name == "" {
		name = "(none)"
	}
	e.out.Header("Active profile")
	e.out.Plain("  profile:     %s", name)
	e.out.Plain("  machine id:  %s", e.profile.MachineID)
	e.out.Plain("  environment: %s", e.profile.Environment)

	e.out.Header("Layers (highest priority first)")
	for _, l := range layers.All {
		dir := e.layout.ContractHome(e.layers.Dir(e.profile, l))
		if layerDirExists(e.layers.Dir(e.profile, l)) {
			e.out.Success("%-12s %s", l, dir)
		} else {
			e.out.Skip("%-12s %s (missing)", l, dir)
		}
	}
	return nil
}

// mutateProfiles loads profile.json strictly, applies fn and saves, or only
// prints the change under --dry-run.
func mutateProfiles(cmd *cobra.Command, fn func(*profile.Config) (string, error)) error {
	layout, err := paths.Default()
	if err != nil {
		return err
	}
	path := layout.ProfileConfigPath()
	pc, err := loadProfilesForWrite(path)
	if err != nil {
		return err
	}
	describe, err := fn(pc)
	if err != nil {
		return err
	}

	out := presentation.NewPrinter(cmd.OutOrStdout())
	t := task.Func{
		TaskName: "profile",
		PlanFn: func(context.Context) ([]task.PlannedOperation, error) {
			return []task.PlannedOperation{task.OpTo(describe, path)}, nil
		},
		ExecFn: func(context.Context) error { return pc.Save(path) },
	}
	if err := task.Run(cmd.Context(), out, t, flagDryRun); err != nil {
		return err
	}
	if !flagDryRun {
		out.Success("%s", describe)
	}
	return nil
}

// loadProfilesForWrite refuses to overwrite a malformed profile.json; a
// missing file starts empty.
func loadProfilesForWrite(path string) (*profile.Config, error) {
	pc, err := profile.LoadConfig(path)
	if err == nil {
		return pc, nil
	}
	if errorsIsNotExist(err) {
		return profile.NewConfig(), nil
	}
	return nil, err
}

func orUnset(s *string) string {
	if s == nil || *s == "" {
		return "(host)"
	}
	return *s
}
