package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/mntn/internal/history"
	"github.com/zjrosen/mntn/internal/layers"
	"github.com/zjrosen/mntn/internal/log"
	"github.com/zjrosen/mntn/internal/registry"
	"github.com/zjrosen/mntn/internal/watcher"
)

var watchLayer string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Back up tracked files as they change",
	Long: `Watch the live location of every enabled configuration entry and back up
the entries that changed once edits settle (watch.debounce in config.yaml).

Press Ctrl-C to stop.

Examples:
  mntn watch
  mntn watch --layer machine`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchLayer, "layer", "l", "",
		"layer to write: common, machine or environment (default from config)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	layer, err := cfg.WriteLayer()
	if err != nil {
		return err
	}
	if watchLayer != "" {
		if layer, err = layers.ParseLayer(watchLayer); err != nil {
			return err
		}
	}
	if !layer.Writable() {
		return fmt.Errorf("cannot back up into the %s layer", layer)
	}

	configs, err := configsKind.load(e.layout)
	if err != nil {
		return err
	}
	targets := make(map[string]string)
	for id, entry := range configs.Enabled() {
		targets[id] = e.layout.ExpandHome(entry.TargetPath)
	}

	wcfg := watcher.DefaultConfig(targets)
	if cfg.Watch.Debounce > 0 {
		wcfg.DebounceDur = cfg.Watch.Debounce
	}
	w, err := watcher.New(wcfg)
	if err != nil {
		return err
	}
	changes, err := w.Start()
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	e.out.Info("Watching %d item(s), backing up to %s layer. Ctrl-C to stop.", len(targets), layer)
	p := e.pipeline()
	ctx := cmd.Context()
	for {
		select {
		case <-ctx.Done():
			e.out.Info("Stopped watching")
			return nil
		case ids, ok := <-changes:
			if !ok {
				return nil
			}
			changed := registry.New[registry.ConfigEntry]()
			for _, id := range ids {
				if entry, ok := configs.Get(id); ok {
					changed.Add(id, entry)
				}
			}
			log.Info(log.CatWatcher, "backing up changed items", "count", changed.Len())
			if flagDryRun {
				for _, op := range p.PlanBackup(changed, layer) {
					e.out.Muted("[DRY RUN] %s -> %s", op.Description, op.Target)
				}
				continue
			}

			runCtx, r := e.beginRun(ctx, history.KindWatch, layer.String())
			sum, err := p.Backup(runCtx, changed, layer)
			r.finishSummary(runCtx, sum, err)
			if err != nil {
				e.out.Error("%v", err)
				continue
			}
			printSummary(e.out, "Watch backup", sum)
		}
	}
}
