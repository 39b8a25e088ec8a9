package sla

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util"
)

// PolicyDefinition describes a policy to create or refresh.
type PolicyDefinition struct {
	Name                    string
	TicketType              domain.TicketType
	Priority                domain.TicketPriority
	ResponseTargetMinutes   int
	ResolutionTargetMinutes int
}

// DefaultPolicies is the stock policy matrix for a fresh install.
func DefaultPolicies() []PolicyDefinition {
	targets := []struct {
		priority   domain.TicketPriority
		response   int
		resolution int
	}{
		{domain.TicketPriorityUrgent, 30, 240},
		{domain.TicketPriorityHigh, 60, 480},
		{domain.TicketPriorityMedium, 240, 1440},
		{domain.TicketPriorityLow, 480, 2880},
	}
	types := []domain.TicketType{
		domain.TicketTypeIncident,
		domain.TicketTypeServiceRequest,
		domain.TicketTypeQuestion,
	}
	defs := make([]PolicyDefinition, 0, len(types)*len(targets))
	for _, tt := range types {
		for _, t := range targets {
			defs = append(defs, PolicyDefinition{
				Name:                    fmt.Sprintf("%s %s", titleWord(string(tt)), titleWord(string(t.priority))),
				TicketType:              tt,
				Priority:                t.priority,
				ResponseTargetMinutes:   t.response,
				ResolutionTargetMinutes: t.resolution,
			})
		}
	}
	return defs
}

// ValidatePolicies reports every missing or invalid field across defs.
func ValidatePolicies(defs []PolicyDefinition) error {
	if len(defs) == 0 {
		return &PolicyConfigError{Problems: []string{"no policy definitions supplied"}}
	}
	var problems []string
	seen := make(map[string]int, len(defs))
	for i, def := range defs {
		label := fmt.Sprintf("policy #%d", i+1)
		if strings.TrimSpace(def.Name) != "" {
			label = fmt.Sprintf("policy %q", def.Name)
		} else {
			problems = append(problems, label+": name missing")
		}
		if def.TicketType == "" {
			problems = append(problems, label+": ticket type missing")
		}
		if def.Priority == "" {
			problems = append(problems, label+": priority missing")
		}
		if def.ResponseTargetMinutes <= 0 {
			problems = append(problems, label+": response target must be a positive number of minutes")
		}
		if def.ResolutionTargetMinutes <= 0 {
			problems = append(problems, label+": resolution target must be a positive number of minutes")
		}
		key := string(def.TicketType) + "/" + string(def.Priority)
		if prev, dup := seen[key]; dup && def.TicketType != "" && def.Priority != "" {
			problems = append(problems, fmt.Sprintf("%s: duplicates policy #%d for %s", label, prev, key))
		}
		seen[key] = i + 1
	}
	if len(problems) > 0 {
		return &PolicyConfigError{Problems: problems}
	}
	return nil
}

// SeedPolicies validates defs as a whole and then upserts each one. Nothing
// is written when any definition is invalid.
func (e *Engine) SeedPolicies(ctx context.Context, defs []PolicyDefinition) ([]domain.SLAPolicy, error) {
	if err := ValidatePolicies(defs); err != nil {
		return nil, apperrors.NewConfigurationError(err.Error(), err)
	}
	seeded := make([]domain.SLAPolicy, 0, len(defs))
	for _, def := range defs {
		policy := &domain.SLAPolicy{
			Name:                    def.Name,
			TicketType:              def.TicketType,
			Priority:                def.Priority,
			ResponseTargetMinutes:   def.ResponseTargetMinutes,
			ResolutionTargetMinutes: def.ResolutionTargetMinutes,
			Active:                  true,
		}
		if err := e.policies.Upsert(ctx, policy); err != nil {
			return nil, apperrors.MapError(fmt.Errorf("seed policy %s: %w", def.Name, err))
		}
		seeded = append(seeded, *policy)
	}
	e.logger.Info("sla policies seeded", zap.Int("count", len(seeded)))
	return seeded, nil
}

func titleWord(s string) string {
	words := strings.Split(strings.ToLower(s), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
