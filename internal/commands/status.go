package commands

import (
	"github.com/spf13/cobra"
)

func (c *cli) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the status of the service",
		Long: `Query the status endpoint of the gglsbl-rest service and print the
status document.

Examples:
  gglsbl status
  gglsbl status --profile staging`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.printStatus(cmd.Context(), cmd.OutOrStdout(), c.newClient())
		},
	}
}
