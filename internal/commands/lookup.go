package commands

import (
	"github.com/spf13/cobra"
)

func (c *cli) newLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup [url]",
		Short: "Look up a URL with the service",
		Long: `Submit a URL for safe browsing classification and print the result.

A URL that is not on any list is reported by the service with a "not found"
answer, which is printed as well.

Examples:
  gglsbl lookup http://example.com/
  gglsbl lookup http://testsafebrowsing.appspot.com/apiv4/ANY_PLATFORM/MALWARE/URL/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.printLookup(cmd.Context(), cmd.OutOrStdout(), c.newClient(), args[0])
		},
	}
}
