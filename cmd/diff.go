package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/mntn/internal/diff"
	"github.com/zjrosen/mntn/internal/registry"
)

var (
	diffContext int
	diffStat    bool
)

var diffCmd = &cobra.Command{
	Use:   "diff [id...]",
	Short: "Show how live files differ from their backups",
	Long: `Compare each tracked file with the copy restore would use (the highest
layer holding one). Lines marked - exist only in the backup and lines
marked + exist only in the live file.

Without ids every enabled entry is compared.

Examples:
  mntn diff
  mntn diff zshrc gitconfig
  mntn diff --stat --env work`,
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().IntVarP(&diffContext, "context", "U", 3, "lines of context around changes")
	diffCmd.Flags().BoolVar(&diffStat, "stat", false, "only show changed line counts")
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	configs, err := configsKind.load(e.layout)
	if err != nil {
		return err
	}

	ids := args
	if len(ids) == 0 {
		for id := range configs.Enabled() {
			ids = append(ids, id)
		}
	}

	changed := 0
	for _, id := range ids {
		entry, ok := configs.Get(id)
		if !ok {
			return fmt.Errorf("%w: %s", registry.ErrNotFound, id)
		}

		live := e.layout.ExpandHome(entry.TargetPath)
		stored, layer := "", ""
		if res, ok := e.layers.Resolve(e.profile, entry.SourcePath); ok {
			stored, layer = res.Path, res.Layer.String()
		}
		result, err := diff.Compare(live, stored)
		if err != nil {
			e.out.Error("%s: %v", id, err)
			continue
		}

		switch result.Status {
		case diff.StatusIdentical:
			e.out.Success("%s: identical [%s]", id, layer)
			continue
		case diff.StatusDiffers:
			changed++
		default:
			if result.Changed() {
				changed++
			}
			e.out.Info("%s: %s", id, result.Status)
			continue
		}

		added, removed := diff.Stat(result.Lines)
		e.out.Warning("%s: +%d -%d [%s]", id, added, removed, layer)
		if !diffStat {
			e.out.Muted("--- %s", e.layout.ContractHome(stored))
			e.out.Muted("+++ %s", e.layout.ContractHome(live))
			diff.Render(e.out.Writer(), result.Lines, diffContext)
		}
	}
	e.out.Plain("%d of %d item(s) differ", changed, len(ids))
	return nil
}
