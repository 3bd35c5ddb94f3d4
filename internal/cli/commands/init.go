package commands

import (
	"fmt"
	"os"
	"path/filepath"

	sharedcfg "github.com/leapstack-labs/payinsight/internal/config"
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var (
		force bool
		env   string
	)

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a default payinsight.yaml",
		Long: `Initialize a PayInsight project by writing payinsight.yaml with every
default threshold spelled out, ready to edit.

Input files are expected under data/ by default:
  - data/smartpay_users.csv
  - data/smartpay_transactions.csv
  - data/smartpay_app_activity.csv`,
		Example: `  # Initialize in current directory
  payinsight init

  # Initialize in a new directory for production
  payinsight init analytics --environment production

  # Force overwrite existing config
  payinsight init --force`,
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{AnnotationSkipValidation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			cmdCtx := NewCommandContext(cmd)
			r := cmdCtx.Renderer

			cfg := sharedcfg.Default()
			if env != "" {
				if _, ok := sharedcfg.ProfileFor(env); !ok {
					return fmt.Errorf("unknown environment %q (want one of %v)", env, sharedcfg.Environments())
				}
				cfg.Environment = env
			}

			path := filepath.Join(dir, sharedcfg.ConfigFileName)
			if err := cfg.WriteFile(path, force); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Join(dir, "data"), 0o750); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}

			r.StatusLine(path, "success", "")
			r.StatusLine(filepath.Join(dir, "data")+string(filepath.Separator), "success", "")
			r.Println("")
			r.Success("PayInsight project initialized!")
			r.Println("")
			r.Println("Next steps:")
			r.Println("  1. Copy the users, transactions and activity CSVs into data/")
			r.Println("  2. Run 'payinsight doctor' to check the setup")
			r.Println("  3. Run 'payinsight report' for the executive summary")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().StringVar(&env, "environment", "", "Environment to write into the file")

	return cmd
}
