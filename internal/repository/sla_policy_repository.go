package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// SLAPolicyRepository reads and seeds SLA policies.
type SLAPolicyRepository interface {
	FindActive(ctx context.Context, ticketType domain.TicketType, priority domain.TicketPriority) (*domain.SLAPolicy, error)
	Upsert(ctx context.Context, policy *domain.SLAPolicy) error
	ListActive(ctx context.Context) ([]domain.SLAPolicy, error)
}

type slaPolicyRepository struct {
	pool *pgxpool.Pool
}

// NewSLAPolicyRepository instantiates the repository.
func NewSLAPolicyRepository(pool *pgxpool.Pool) SLAPolicyRepository {
	return &slaPolicyRepository{pool: pool}
}

func (r *slaPolicyRepository) FindActive(ctx context.Context, ticketType domain.TicketType, priority domain.TicketPriority) (*domain.SLAPolicy, error) {
	const query = `
        SELECT id, name, ticket_type, priority, response_target_minutes, resolution_target_minutes,
               active_flag, created_at, updated_at
        FROM sla_policies
        WHERE ticket_type=$1 AND priority=$2 AND active_flag
        LIMIT 1`
	var policy domain.SLAPolicy
	if err := r.pool.QueryRow(ctx, query, ticketType, priority).Scan(
		&policy.ID,
		&policy.Name,
		&policy.TicketType,
		&policy.Priority,
		&policy.ResponseTargetMinutes,
		&policy.ResolutionTargetMinutes,
		&policy.Active,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &policy, nil
}

// Upsert replaces the targets of the active policy for the same
// (type, priority) or inserts a new one.
func (r *slaPolicyRepository) Upsert(ctx context.Context, policy *domain.SLAPolicy) error {
	const query = `
        INSERT INTO sla_policies (name, ticket_type, priority, response_target_minutes, resolution_target_minutes, active_flag)
        VALUES ($1,$2,$3,$4,$5,TRUE)
        ON CONFLICT (ticket_type, priority) WHERE active_flag
        DO UPDATE SET name=EXCLUDED.name,
                      response_target_minutes=EXCLUDED.response_target_minutes,
                      resolution_target_minutes=EXCLUDED.resolution_target_minutes,
                      updated_at=NOW()
        RETURNING id, active_flag, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		policy.Name,
		policy.TicketType,
		policy.Priority,
		policy.ResponseTargetMinutes,
		policy.ResolutionTargetMinutes,
	).Scan(&policy.ID, &policy.Active, &policy.CreatedAt, &policy.UpdatedAt)
}

func (r *slaPolicyRepository) ListActive(ctx context.Context) ([]domain.SLAPolicy, error) {
	const query = `
        SELECT id, name, ticket_type, priority, response_target_minutes, resolution_target_minutes,
               active_flag, created_at, updated_at
        FROM sla_policies WHERE active_flag
        ORDER BY ticket_type, priority`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLAPolicy
	for rows.Next() {
		var policy domain.SLAPolicy
		if err := rows.Scan(
			&policy.ID,
			&policy.Name,
			&policy.TicketType,
			&policy.Priority,
			&policy.ResponseTargetMinutes,
			&policy.ResolutionTargetMinutes,
			&policy.Active,
			&policy.CreatedAt,
			&policy.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, policy)
	}
	return result, rows.Err()
}

// policyColumns receives a LEFT JOINed policy whose columns may all be NULL.
type policyColumns struct {
	ID                      *string
	Name                    *string
	TicketType              *domain.TicketType
	Priority                *domain.TicketPriority
	ResponseTargetMinutes   *int
	ResolutionTargetMinutes *int
	Active                  *bool
	CreatedAt               *time.Time
	UpdatedAt               *time.Time
}

func (c policyColumns) toDomain() *domain.SLAPolicy {
	if c.ID == nil {
		return nil
	}
	policy := &domain.SLAPolicy{ID: *c.ID}
	if c.Name != nil {
		policy.Name = *c.Name
	}
	if c.TicketType != nil {
		policy.TicketType = *c.TicketType
	}
	if c.Priority != nil {
		policy.Priority = *c.Priority
	}
	if c.ResponseTargetMinutes != nil {
		policy.ResponseTargetMinutes = *c.ResponseTargetMinutes
	}
	if c.ResolutionTargetMinutes != nil {
		policy.ResolutionTargetMinutes = *c.ResolutionTargetMinutes
	}
	if c.Active != nil {
		policy.Active = *c.Active
	}
	if c.CreatedAt != nil {
		policy.CreatedAt = *c.CreatedAt
	}
	if c.UpdatedAt != nil {
		policy.UpdatedAt = *c.UpdatedAt
	}
	return policy
}
