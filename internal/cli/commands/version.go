package commands

import (
	"fmt"
	"runtime"

	"github.com/leapstack-labs/fwd/pkg/provider"
	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display fwd version, build and runtime provider information.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "fwd v%s\n", version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Forward declarations for foreign runtimes (%s)\n", runtime.Version())
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Runtimes: %v\n", provider.List())
		},
	}
}
