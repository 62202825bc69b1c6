package cmd

import (
	"errors"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/zjrosen/mntn/internal/history"
	"github.com/zjrosen/mntn/internal/paths"
	"github.com/zjrosen/mntn/internal/presentation"
)

var (
	historyKind  string
	historyLimit int
	historyJSON  bool
	historyDays  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded backup, restore and migrate runs",
	Long: `Every run that changes files is recorded in ~/.mntn/history.db unless
history.enabled is false. Dry runs are not recorded.

Examples:
  mntn history
  mntn history --kind backup --limit 5
  mntn history show 3f2a9c1e
  mntn history prune --older-than 30`,
	Args: cobra.NoArgs,
	RunE: runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one run and its items (an id prefix is enough)",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete runs older than a number of days",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		days := historyDays
		if days <= 0 {
			days = cfg.History.KeepDays
		}
		if days <= 0 {
			return errors.New("history.keep_days is 0 (keep everything); pass --older-than")
		}

		db, err := openHistory()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		n, err := db.Runs().Prune(cmd.Context(), time.Now().AddDate(0, 0, -days))
		if err != nil {
			return err
		}
		presentation.NewPrinter(cmd.OutOrStdout()).Success("Removed %d run(s) older than %d days", n, days)
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyKind, "kind", "", "only show backup, restore, migrate, validate or watch runs")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of runs")
	historyCmd.PersistentFlags().BoolVar(&historyJSON, "json", false, "output as JSON")
	historyPruneCmd.Flags().IntVar(&historyDays, "older-than", 0, "age in days (default: history.keep_days)")
	historyCmd.AddCommand(historyShowCmd, historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}

func openHistory() (*history.DB, error) {
	layout, err := paths.Default()
	if err != nil {
		return nil, err
	}
	return history.NewDB(layout.HistoryDBPath())
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	runs, err := db.Runs().List(cmd.Context(), history.Kind(historyKind), historyLimit)
	if err != nil {
		return err
	}
	if historyJSON {
		return presentation.NewFormatter(cmd.OutOrStdout()).JSON(runs)
	}

	out := presentation.NewPrinter(cmd.OutOrStdout())
	if len(runs) == 0 {
		out.Muted("No runs recorded")
		return nil
	}
	for _, r := range runs {
		line := r.String() + "  " + humanize.Time(r.StartedAt)
		if r.Failed > 0 {
			out.Error("%s", line)
		} else {
			out.Plain("%s", line)
		}
	}
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	r, err := db.Runs().Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if historyJSON {
		return presentation.NewFormatter(cmd.OutOrStdout()).JSON(r)
	}

	out := presentation.NewPrinter(cmd.OutOrStdout())
	out.Header(string(r.Kind) + " " + r.ID)
	out.Plain("  profile:  %s", r.Profile)
	if r.Layer != "" {
		out.Plain("  layer:    %s", r.Layer)
	}
	out.Plain("  started:  %s (%s)", r.StartedAt.Format(time.RFC3339), humanize.Time(r.StartedAt))
	out.Plain("  duration: %s", r.Duration().Round(time.Millisecond))
	out.Plain("  result:   %d done, %d skipped, %d failed, %d warnings", r.Done, r.Skipped, r.Failed, r.Warnings)
	for _, it := range r.Items {
		switch {
		case it.Error != "":
			out.Error("%s: %s", it.ItemID, it.Error)
		case it.Status == "skipped":
			out.Skip("%s: %s", it.ItemID, it.Note)
		default:
			out.Success("%s: %s -> %s %s", it.ItemID, it.Source, it.Target, it.Note)
		}
	}
	return nil
}
