package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/config"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/persistence"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	"github.com/spec-kit/helpdesk-sla/internal/sla"
)

type policyLister interface {
	ListActive(ctx context.Context) ([]domain.SLAPolicy, error)
}

type complianceLister interface {
	OpenCompliance(ctx context.Context) ([]domain.ComplianceResult, error)
}

func newPoliciesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "List the active SLA policies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), func(ctx context.Context, _ *config.Config, pg *persistence.Postgres, _ *zap.Logger) error {
				return printPolicies(ctx, repository.NewSLAPolicyRepository(pg.PoolHandle()), cmd.OutOrStdout())
			})
		},
	}
}

func newRiskCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Rank open tickets by closeness to breach",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), func(ctx context.Context, cfg *config.Config, pg *persistence.Postgres, logger *zap.Logger) error {
				calendar, err := config.BuildCalendar(cfg.SLA)
				if err != nil {
					return err
				}
				pool := pg.PoolHandle()
				engine := sla.NewEngine(sla.Dependencies{
					Tickets:  repository.NewTicketRepository(pool),
					Policies: repository.NewSLAPolicyRepository(pool),
					Calendar: calendar,
					Logger:   logger,
				})
				return printRisk(ctx, engine, cmd.OutOrStdout(), limit)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows, 0 for all")
	return cmd
}

func printPolicies(ctx context.Context, lister policyLister, w io.Writer) error {
	policies, err := lister.ListActive(ctx)
	if err != nil {
		return err
	}
	for _, p := range policies {
		writePolicy(w, p)
	}
	return nil
}

func writePolicy(w io.Writer, p domain.SLAPolicy) {
	fmt.Fprintf(w, "%s\t%s/%s\t%dm/%dm\n",
		p.ID, p.TicketType, p.Priority, p.ResponseTargetMinutes, p.ResolutionTargetMinutes)
}

func printRisk(ctx context.Context, lister complianceLister, w io.Writer, limit int) error {
	results, err := lister.OpenCompliance(ctx)
	if err != nil {
		return err
	}
	sla.SortByRisk(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f%%\t%.2f%%\n",
			r.TicketID, r.PolicyName, r.ProximityScore, r.ResponsePercent, r.ResolutionPercent)
	}
	return nil
}
