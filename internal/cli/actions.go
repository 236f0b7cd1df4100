package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/simctl/internal/action"
)

// NewActionsCommand creates the actions command.
func NewActionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "actions",
		Short:         "List dispatchable actions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := action.NewDefault()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load actions", err)
			}

			names := d.Names()
			if rootOpts.Format == "json" {
				formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
				return formatter.Success(names)
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
