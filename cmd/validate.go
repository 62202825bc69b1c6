package cmd

import (
	"fmt"

	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"

	"github.com/zjrosen/mntn/internal/history"
	"github.com/zjrosen/mntn/internal/presentation"
	"github.com/zjrosen/mntn/internal/validate"
)

var validateJSON bool

// fixWidth wraps fix suggestions so they stay readable under the finding.
const fixWidth = 72

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check registries, layers and profiles for problems",
	Long: `Run every check and report findings grouped by check. The command
never modifies anything and exits non-zero when any error is found.

Checks:
  Registry Files             registries parse, no duplicate sources, commands exist
  Layer Resolution           which layer each entry resolves to, shadowed copies
  JSON Configuration Files   tracked .json files parse
  Legacy Symlink Check       live files still linked into the backup
  Profile Configuration      profile file, active profile, layer directories

Examples:
  mntn validate
  mntn validate --profile work
  mntn validate --json`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	ctx, r := e.beginRun(cmd.Context(), history.KindValidate, "")
	report, err := validate.Run(ctx, validate.All(validate.Deps{
		Layout:  e.layout,
		Layers:  e.layers,
		Profile: e.profile,
	}))
	r.finish(ctx, validateItems(report), 0, 0, report.ErrorCount(), report.WarningCount(), err)
	if err != nil {
		return err
	}

	if validateJSON {
		if err := presentation.NewFormatter(cmd.OutOrStdout()).JSON(report); err != nil {
			return err
		}
	} else {
		printReport(e.out, report)
	}

	if n := report.ErrorCount(); n > 0 {
		return fmt.Errorf("validation found %d error(s)", n)
	}
	return nil
}

func printReport(p *presentation.Printer, report *validate.Report) {
	for _, res := range report.Results {
		p.Header(res.Name)
		if len(res.Errors) == 0 {
			p.Success("no issues")
			continue
		}
		for _, finding := range res.Errors {
			switch finding.Severity {
			case validate.SeverityError:
				p.Error("%s", finding.Message)
			case validate.SeverityWarning:
				p.Warning("%s", finding.Message)
			default:
				p.Info("%s", finding.Message)
			}
			if finding.Fix != "" {
				p.Muted("%s", indent.String(wordwrap.String("fix: "+finding.Fix, fixWidth), 4))
			}
		}
	}
	p.Plain("")
	p.Plain("%d error(s), %d warning(s), %d info", report.ErrorCount(), report.WarningCount(), report.InfoCount())
}

func validateItems(report *validate.Report) []history.Item {
	var items []history.Item
	for _, res := range report.Results {
		for _, finding := range res.Errors {
			items = append(items, history.Item{
				ItemID: res.Name,
				Status: finding.Severity.String(),
				Note:   finding.Message,
			})
		}
	}
	return items
}
