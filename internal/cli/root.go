// Package cli holds the slactl operator commands.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand assembles slactl.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "slactl",
		Short:        "Helpdesk SLA operator tools",
		SilenceUsage: true,
	}
	root.AddCommand(
		newTokenCommand(),
		newHoursCommand(),
		newMigrateCommand(),
		newSeedCommand(),
		newPoliciesCommand(),
		newRiskCommand(),
	)
	return root
}
