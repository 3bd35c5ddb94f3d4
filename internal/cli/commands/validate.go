package commands

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/payinsight/internal/cli/output"
	"github.com/leapstack-labs/payinsight/internal/loader"
	"github.com/leapstack-labs/payinsight/internal/quality"
	"github.com/leapstack-labs/payinsight/internal/textfmt"
	"github.com/spf13/cobra"
)

// ErrQualityCheckFailed is returned by validate --strict when issues are found.
var ErrQualityCheckFailed = errors.New("data quality check failed")

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the input data for completeness and accuracy",
		Long: `Load the three input tables and report completeness (non-empty cells),
accuracy (rows within range) and integrity issues such as orphan
transactions or duplicate keys.`,
		Example: `  payinsight validate
  payinsight validate --strict -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx := NewCommandContext(cmd)
			ds, err := loader.Load(cmd.Context(), cmdCtx.Cfg.Data, cmdCtx.Logger)
			if err != nil {
				return err
			}
			rep := quality.Validate(ds)
			if err := renderQuality(cmdCtx.Renderer, rep); err != nil {
				return err
			}
			if strict && !rep.IsValid {
				return fmt.Errorf("%w: %d issues", ErrQualityCheckFailed, len(rep.Issues))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit with an error when any issue is found")
	return cmd
}

func renderQuality(r *output.Renderer, rep quality.Report) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(rep)
	}

	section(r, 1, "Data Quality")
	r.KeyValue("Completeness", textfmt.Percent(rep.Completeness*100, 2))
	r.KeyValue("Accuracy", textfmt.Percent(rep.Accuracy*100, 2))
	if rep.IsValid {
		r.Println("")
		r.Success("No issues found")
		return nil
	}

	section(r, 2, "Issues")
	rows := make([]table.Row, len(rep.Issues))
	for i, is := range rep.Issues {
		rows[i] = table.Row{is.Table, is.Check, textfmt.Int(is.Count), is.Message}
	}
	renderTable(r, table.Row{"Table", "Check", "Rows", "Message"}, rows)
	return nil
}
