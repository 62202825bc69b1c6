package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/mntn/internal/config"
	"github.com/zjrosen/mntn/internal/log"
	"github.com/zjrosen/mntn/internal/paths"
)

var (
	version = "dev"
	cfgFile string
	cfg     config.Config

	flagProfile   string
	flagMachineID string
	flagEnv       string
	flagDryRun    bool
)

var rootCmd = &cobra.Command{
	Use:   "mntn",
	Short: "Layered backup and restore for your configuration files",
	Long: `mntn backs up, restores and migrates configuration files across layered
storage under ~/.mntn/backup:

  environments/<env>/   highest priority
  machines/<id>/
  common/
  <legacy flat files>   lowest priority

For every tracked item the highest layer holding a copy wins.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Validate(cfg); err != nil {
			return err
		}
		return nil
	},
}

var cleanupLog = func() {}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.mntn/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&flagProfile, "profile", "p", "",
		"profile to use (default: active profile, then default_profile)")
	rootCmd.PersistentFlags().StringVar(&flagMachineID, "machine-id", "",
		"override the machine id")
	rootCmd.PersistentFlags().StringVar(&flagEnv, "env", "",
		"override the environment")
	rootCmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false,
		"show what would happen without changing anything")

	bindFlags()
}

// bindFlags lets MNTN_PROFILE, MNTN_MACHINE_ID and MNTN_ENV stand in for the
// profile flags.
func bindFlags() {
	_ = viper.BindPFlag("profile", rootCmd.PersistentFlags().Lookup("profile"))
	_ = viper.BindPFlag("machine_id", rootCmd.PersistentFlags().Lookup("machine-id"))
	_ = viper.BindPFlag("env", rootCmd.PersistentFlags().Lookup("env"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("backup.layer", defaults.Backup.Layer)
	viper.SetDefault("backup.skip_encrypted", defaults.Backup.SkipEncrypted)
	viper.SetDefault("backup.skip_packages", defaults.Backup.SkipPackages)
	viper.SetDefault("log.enabled", defaults.Log.Enabled)
	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("history.enabled", defaults.History.Enabled)
	viper.SetDefault("history.keep_days", defaults.History.KeepDays)
	viper.SetDefault("watch.debounce", defaults.Watch.Debounce)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)

	// MNTN_BACKUP_LAYER=machine and friends override the file.
	viper.SetEnvPrefix("MNTN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	layout, layoutErr := paths.Default()
	configPath := cfgFile
	if configPath == "" && layoutErr == nil {
		configPath = layout.ConfigPath()
	}
	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file yet - write the commented default next to the registries
		if cfgFile == "" && layoutErr == nil && errors.Is(err, os.ErrNotExist) {
			if writeErr := config.WriteDefaultConfig(configPath); writeErr == nil {
				_ = viper.ReadInConfig()
			}
		}
	}

	_ = viper.Unmarshal(&cfg)

	if layoutErr == nil && (cfg.Log.Enabled || os.Getenv("MNTN_DEBUG") != "") {
		if cleanup, err := log.Init(layout.LogPath()); err == nil {
			cleanupLog = cleanup
			log.SetMinLevel(log.ParseLevel(cfg.Log.Level))
			if os.Getenv("MNTN_DEBUG") != "" {
				log.SetMinLevel(log.LevelDebug)
			}
		}
	}
	log.Debug(log.CatConfig, "loaded config", "file", viper.ConfigFileUsed())
}

// Execute runs the root command. Ctrl-C cancels the context, which stops
// batch operations between items.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	defer func() { cleanupLog() }()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		newPrinter().Error("%v", err)
	}
	return err
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
