package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version, buildDate, commit string) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Show version information",
		Long:        `Display PayInsight version and build information.`,
		Annotations: map[string]string{AnnotationSkipValidation: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "PayInsight v%s\n", version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Commit %s, built %s with %s\n", commit, buildDate, runtime.Version())
		},
	}
}
