package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk-sla/internal/config"
)

func newHoursCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hours <start> <end>",
		Short: "Business hours between two RFC3339 instants",
		Long:  `Measure open hours between two instants using the configured SLA_TIMEZONE, SLA_BUSINESS_HOURS and holidays.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := time.Parse(time.RFC3339, args[0])
			if err != nil {
				return fmt.Errorf("start: %w", err)
			}
			end, err := time.Parse(time.RFC3339, args[1])
			if err != nil {
				return fmt.Errorf("end: %w", err)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			calendar, err := config.BuildCalendar(cfg.SLA)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.2f\n", calendar.BusinessHoursBetween(start, end))
			return nil
		},
	}
}
