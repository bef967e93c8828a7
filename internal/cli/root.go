package cli

import "github.com/spf13/cobra"

// NewRootCmd builds the pulsectl root command tree.
func NewRootCmd(version string) *cobra.Command {
	opts := &storeOptions{}
	cmd := &cobra.Command{
		Use:           "pulsectl",
		Short:         "Admin CLI for the storepulse event store",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	opts.bindFlags(cmd)

	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newResetCmd(opts))
	cmd.AddCommand(newExportCmd(opts))
	cmd.AddCommand(newImportCmd(opts))
	cmd.AddCommand(newSummaryCmd(opts))
	cmd.AddCommand(newEventsCmd(opts))
	cmd.AddCommand(newVersionCmd(version))

	return cmd
}
