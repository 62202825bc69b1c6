package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/mntn/internal/config"
	"github.com/zjrosen/mntn/internal/presentation"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change mntn settings",
	Long: `Inspect and edit ~/.mntn/config.yaml.

Examples:
  mntn config show
  mntn config path
  mntn config set backup.layer machine
  mntn config set watch.debounce 5s`,
	// Skip config validation so a broken file can still be fixed.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		data, err := yaml.Marshal(viper.AllSettings())
		if err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), viper.ConfigFileUsed())
		return err
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one setting, keeping comments in the file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if !viper.IsSet(key) {
			return fmt.Errorf("unknown setting %q", key)
		}

		// Validate the result before touching the file.
		viper.Set(key, value)
		var next config.Config
		if err := viper.Unmarshal(&next); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		if err := config.Validate(next); err != nil {
			return err
		}

		path := viper.ConfigFileUsed()
		if path == "" {
			return fmt.Errorf("no config file in use")
		}
		if flagDryRun {
			presentation.NewPrinter(cmd.OutOrStdout()).Info("[DRY RUN] would set %s = %s in %s", key, value, path)
			return nil
		}
		if err := config.SetValue(path, key, value); err != nil {
			return err
		}
		presentation.NewPrinter(cmd.OutOrStdout()).Success("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configPathCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}
