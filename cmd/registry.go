package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"

	"github.com/zjrosen/mntn/internal/paths"
	"github.com/zjrosen/mntn/internal/presentation"
	"github.com/zjrosen/mntn/internal/registry"
	"github.com/zjrosen/mntn/internal/task"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Manage the lists of tracked items",
	Long: `Manage the three registries mntn keeps under ~/.mntn:

  configs     plain configuration files and directories
  encrypted   configuration files stored encrypted
  packages    package managers whose package lists are exported

Examples:
  mntn registry configs list
  mntn registry configs add starship --name Starship \
      --source starship.toml --target ~/.config/starship.toml --category shell
  mntn registry encrypted toggle aws_credentials
  mntn registry packages remove cargo --dry-run`,
}

// registryKind binds the generic subcommands to one registry file.
type registryKind[T registry.Entry[T]] struct {
	name     string
	path     func(paths.Layout) string
	defaults func() *registry.Registry[T]
}

var (
	configsKind = registryKind[registry.ConfigEntry]{
		name: "configs", path: paths.Layout.ConfigsRegistryPath, defaults: registry.DefaultConfigs,
	}
	encryptedKind = registryKind[registry.EncryptedEntry]{
		name: "encrypted", path: paths.Layout.EncryptedRegistryPath, defaults: registry.DefaultEncrypted,
	}
	packagesKind = registryKind[registry.PackageEntry]{
		name: "packages", path: paths.Layout.PackageRegistryPath, defaults: registry.DefaultPackages,
	}
)

// load reads the registry, creating it with defaults unless this is a dry run.
func (k registryKind[T]) load(layout paths.Layout) (*registry.Registry[T], error) {
	return loadRegistry(k.path(layout), k.defaults)
}

// loadRegistry loads the registry at path, creating it with defaults when
// missing. Under --dry-run a missing file yields the defaults in memory and
// nothing is written.
func loadRegistry[T registry.Entry[T]](path string, defaults func() *registry.Registry[T]) (*registry.Registry[T], error) {
	if !flagDryRun {
		return registry.LoadOrCreate(path, defaults)
	}
	reg, err := registry.Load[T](path)
	if errors.Is(err, fs.ErrNotExist) {
		return defaults(), nil
	}
	return reg, err
}

// mutate applies fn in memory and saves the registry, or only prints the
// planned change under --dry-run.
func (k registryKind[T]) mutate(cmd *cobra.Command, fn func(*registry.Registry[T]) (string, error)) error {
	layout, err := paths.Default()
	if err != nil {
		return err
	}
	reg, err := k.load(layout)
	if err != nil {
		return err
	}
	describe, err := fn(reg)
	if err != nil {
		return err
	}

	path := k.path(layout)
	out := presentation.NewPrinter(cmd.OutOrStdout())
	t := task.Func{
		TaskName: "registry " + k.name,
		PlanFn: func(context.Context) ([]task.PlannedOperation, error) {
			return []task.PlannedOperation{task.OpTo(describe, path)}, nil
		},
		ExecFn: func(context.Context) error { return reg.Save(path) },
	}
	if err := task.Run(cmd.Context(), out, t, flagDryRun); err != nil {
		return err
	}
	if !flagDryRun {
		out.Success("%s", describe)
	}
	return nil
}

func (k registryKind[T]) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an entry from the " + k.name + " registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return k.mutate(cmd, func(reg *registry.Registry[T]) (string, error) {
				if _, ok := reg.Remove(args[0]); !ok {
					return "", fmt.Errorf("%w: %s", registry.ErrNotFound, args[0])
				}
				return "Remove " + args[0], nil
			})
		},
	}
}

func (k registryKind[T]) toggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Enable or disable an entry in the " + k.name + " registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return k.mutate(cmd, func(reg *registry.Registry[T]) (string, error) {
				id := args[0]
				entry, ok := reg.Get(id)
				if !ok {
					return "", fmt.Errorf("%w: %s", registry.ErrNotFound, id)
				}
				enabled := !entry.IsEnabled()
				if err := reg.SetEnabled(id, enabled); err != nil {
					return "", err
				}
				if enabled {
					return "Enable " + id, nil
				}
				return "Disable " + id, nil
			})
		},
	}
}

func (k registryKind[T]) command(list, add *cobra.Command) *cobra.Command {
	c := &cobra.Command{
		Use:   k.name,
		Short: "Manage the " + k.name + " registry",
	}
	c.AddCommand(list, add, k.removeCmd(), k.toggleCmd())
	return c
}

// checkNewEntry rejects duplicate ids and source paths that escape a layer.
func checkNewEntry[T registry.Entry[T]](reg *registry.Registry[T], id, source string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("entry id must not be empty")
	}
	if _, exists := reg.Get(id); exists {
		return fmt.Errorf("entry %q already exists", id)
	}
	if source != "" && !filepath.IsLocal(source) {
		return fmt.Errorf("source path %q must be relative to the backup layer", source)
	}
	return nil
}

func enabledMark(p *presentation.Printer, enabled bool, format string, args ...any) {
	if enabled {
		p.Success(format, args...)
	} else {
		p.Skip(format, args...)
	}
}

var (
	regJSON        bool
	regCategory    string
	regName        string
	regSource      string
	regTarget      string
	regDescription string
	regDisabled    bool
	regHideName    bool
	regCommand     string
	regArgs        []string
	regOutput      string
	regPlatforms   []string
	regCompatible  bool
)

var configsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked configuration entries by category",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		layout, err := paths.Default()
		if err != nil {
			return err
		}
		reg, err := configsKind.load(layout)
		if err != nil {
			return err
		}
		if regJSON {
			return presentation.NewFormatter(cmd.OutOrStdout()).JSON(reg)
		}

		var only registry.Category
		if regCategory != "" {
			if only, err = registry.ParseCategory(regCategory); err != nil {
				return err
			}
		}
		out := presentation.NewPrinter(cmd.OutOrStdout())
		groups := registry.ByCategory(reg)
		for _, cat := range append(registry.Categories, "") {
			ids := groups[cat]
			if len(ids) == 0 || (only != "" && cat != only) {
				continue
			}
			title := string(cat)
			if title == "" {
				title = "uncategorized"
			}
			out.Header(title)
			for _, id := range ids {
				e, _ := reg.Get(id)
				enabledMark(out, e.Enabled, "%-20s %s -> %s", id, e.SourcePath, e.TargetPath)
				if e.Description != nil {
					out.Muted("%s", indent.String(wordwrap.String(*e.Description, fixWidth), 4))
				}
			}
		}
		return nil
	},
}

var configsAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Track a configuration file or directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var category registry.Category
		if regCategory != "" {
			var err error
			if category, err = registry.ParseCategory(regCategory); err != nil {
				return err
			}
		}
		return configsKind.mutate(cmd, func(reg *registry.ConfigRegistry) (string, error) {
			id := args[0]
			if err := checkNewEntry(reg, id, regSource); err != nil {
				return "", err
			}
			entry := registry.ConfigEntry{
				Name:       nameOr(regName, id),
				SourcePath: regSource,
				TargetPath: regTarget,
				Enabled:    !regDisabled,
				Category:   category,
			}
			if regDescription != "" {
				entry.Description = registry.Ptr(regDescription)
			}
			reg.Add(id, entry)
			return fmt.Sprintf("Add %s (%s -> %s)", id, regSource, regTarget), nil
		})
	},
}

var encryptedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List encrypted configuration entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		layout, err := paths.Default()
		if err != nil {
			return err
		}
		reg, err := encryptedKind.load(layout)
		if err != nil {
			return err
		}
		if regJSON {
			return presentation.NewFormatter(cmd.OutOrStdout()).JSON(reg)
		}
		out := presentation.NewPrinter(cmd.OutOrStdout())
		for id, e := range reg.All() {
			hidden := ""
			if e.EncryptFilename {
				hidden = " (name hidden)"
			}
			enabledMark(out, e.Enabled, "%-20s %s -> %s%s", id, e.SourcePath, e.TargetPath, hidden)
		}
		return nil
	},
}

var encryptedAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Track a configuration file stored encrypted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return encryptedKind.mutate(cmd, func(reg *registry.EncryptedRegistry) (string, error) {
			id := args[0]
			if err := checkNewEntry(reg, id, regSource); err != nil {
				return "", err
			}
			entry := registry.EncryptedEntry{
				Name:            nameOr(regName, id),
				SourcePath:      regSource,
				TargetPath:      regTarget,
				Enabled:         !regDisabled,
				EncryptFilename: regHideName,
			}
			if regDescription != "" {
				entry.Description = registry.Ptr(regDescription)
			}
			reg.Add(id, entry)
			return fmt.Sprintf("Add encrypted %s (%s -> %s)", id, regSource, regTarget), nil
		})
	},
}

var packagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List package managers whose package lists are exported",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		layout, err := paths.Default()
		if err != nil {
			return err
		}
		reg, err := packagesKind.load(layout)
		if err != nil {
			return err
		}
		if regJSON {
			return presentation.NewFormatter(cmd.OutOrStdout()).JSON(reg)
		}
		out := presentation.NewPrinter(cmd.OutOrStdout())
		entries := reg.All()
		if regCompatible {
			entries = registry.PlatformCompatible(reg, registry.CurrentPlatform())
		}
		for id, e := range entries {
			line := fmt.Sprintf("%-20s %s %s > %s", id, e.Command, strings.Join(e.Args, " "), e.OutputFile)
			if len(e.Platforms) > 0 {
				line += " [" + strings.Join(e.Platforms, ",") + "]"
			}
			enabledMark(out, e.Enabled, "%s", line)
		}
		return nil
	},
}

var packagesAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Export a package manager's package list during backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return packagesKind.mutate(cmd, func(reg *registry.PackageRegistry) (string, error) {
			id := args[0]
			if err := checkNewEntry(reg, id, regOutput); err != nil {
				return "", err
			}
			entry := registry.PackageEntry{
				Name:       nameOr(regName, id),
				Command:    regCommand,
				Args:       regArgs,
				OutputFile: regOutput,
				Enabled:    !regDisabled,
				Platforms:  regPlatforms,
			}
			if entry.Args == nil {
				entry.Args = []string{}
			}
			if regDescription != "" {
				entry.Description = registry.Ptr(regDescription)
			}
			reg.Add(id, entry)
			return fmt.Sprintf("Add package export %s (%s > %s)", id, regCommand, regOutput), nil
		})
	},
}

func nameOr(name, id string) string {
	if name != "" {
		return name
	}
	return id
}

func init() {
	for _, c := range []*cobra.Command{configsListCmd, encryptedListCmd, packagesListCmd} {
		c.Flags().BoolVar(&regJSON, "json", false, "output the registry as JSON")
	}
	configsListCmd.Flags().StringVar(&regCategory, "category", "", "only show one category")
	packagesListCmd.Flags().BoolVar(&regCompatible, "compatible", false,
		"only show entries for this platform")

	for _, c := range []*cobra.Command{configsAddCmd, encryptedAddCmd, packagesAddCmd} {
		c.Flags().StringVar(&regName, "name", "", "display name (default: the id)")
		c.Flags().StringVar(&regDescription, "description", "", "optional description")
		c.Flags().BoolVar(&regDisabled, "disabled", false, "add the entry disabled")
	}
	for _, c := range []*cobra.Command{configsAddCmd, encryptedAddCmd} {
		c.Flags().StringVar(&regSource, "source", "", "path relative to a backup layer")
		c.Flags().StringVar(&regTarget, "target", "", "live location, ~/ allowed")
		_ = c.MarkFlagRequired("source")
		_ = c.MarkFlagRequired("target")
	}
	configsAddCmd.Flags().StringVar(&regCategory, "category", "", "shell, editor, terminal, system, development or application")
	encryptedAddCmd.Flags().BoolVar(&regHideName, "encrypt-filename", false,
		"hide the file name in the backup as well")

	packagesAddCmd.Flags().StringVar(&regCommand, "command", "", "program to run")
	packagesAddCmd.Flags().StringSliceVar(&regArgs, "args", nil, "arguments, comma separated")
	packagesAddCmd.Flags().StringVar(&regOutput, "output", "", "file name under backup/packages")
	packagesAddCmd.Flags().StringSliceVar(&regPlatforms, "platform", nil,
		"limit to platforms: macos, linux, windows")
	_ = packagesAddCmd.MarkFlagRequired("command")
	_ = packagesAddCmd.MarkFlagRequired("output")

	registryCmd.AddCommand(
		configsKind.command(configsListCmd, configsAddCmd),
		encryptedKind.command(encryptedListCmd, encryptedAddCmd),
		packagesKind.command(packagesListCmd, packagesAddCmd),
	)
	rootCmd.AddCommand(registryCmd)
}
