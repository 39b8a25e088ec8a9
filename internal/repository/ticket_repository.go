package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// TicketRepository exposes the ticket columns SLA tracking needs.
type TicketRepository interface {
	GetForSLA(ctx context.Context, id string) (*domain.Ticket, *domain.SLAPolicy, error)
	ListOpenWithPolicy(ctx context.Context) ([]domain.TrackedTicket, error)
	SetSLAPolicy(ctx context.Context, ticketID, policyID string) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketSLASelect = `
        SELECT t.id, t.external_key, t.title, t.ticket_type, t.priority, t.status, t.requester_name,
               t.assignee_staff_id, s.name, t.sla_policy_id, t.created_at, t.first_response_at, t.resolved_at,
               p.id, p.name, p.ticket_type, p.priority, p.response_target_minutes, p.resolution_target_minutes,
               p.active_flag, p.created_at, p.updated_at
        FROM tickets t
        LEFT JOIN staff_members s ON s.id = t.assignee_staff_id
        LEFT JOIN sla_policies p ON p.id = t.sla_policy_id`

func (r *ticketRepository) GetForSLA(ctx context.Context, id string) (*domain.Ticket, *domain.SLAPolicy, error) {
	if !validID(id) {
		return nil, nil, pgx.ErrNoRows
	}
	row := r.pool.QueryRow(ctx, ticketSLASelect+` WHERE t.id=$1`, id)
	ticket, policy, err := scanTicketWithPolicy(row)
	if err != nil {
		return nil, nil, err
	}
	return ticket, policy, nil
}

func (r *ticketRepository) ListOpenWithPolicy(ctx context.Context) ([]domain.TrackedTicket, error) {
	query := ticketSLASelect + `
        WHERE t.sla_policy_id IS NOT NULL AND t.status NOT IN ($1, $2)
        ORDER BY t.created_at ASC`
	rows, err := r.pool.Query(ctx, query, domain.TicketStatusResolved, domain.TicketStatusClosed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TrackedTicket
	for rows.Next() {
		ticket, policy, err := scanTicketWithPolicy(rows)
		if err != nil {
			return nil, err
		}
		if policy == nil {
			continue
		}
		result = append(result, domain.TrackedTicket{Ticket: *ticket, Policy: *policy})
	}
	return result, rows.Err()
}

func (r *ticketRepository) SetSLAPolicy(ctx context.Context, ticketID, policyID string) error {
	if !validID(ticketID) {
		return pgx.ErrNoRows
	}
	const query = `UPDATE tickets SET sla_policy_id=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, policyID, ticketID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanTicketWithPolicy(row pgx.Row) (*domain.Ticket, *domain.SLAPolicy, error) {
	var (
		ticket domain.Ticket
		p      policyColumns
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.Title,
		&ticket.Type,
		&ticket.Priority,
		&ticket.Status,
		&ticket.RequesterName,
		&ticket.AssigneeID,
		&ticket.AssigneeName,
		&ticket.SLAPolicyID,
		&ticket.CreatedAt,
		&ticket.FirstResponseAt,
		&ticket.ResolvedAt,
		&p.ID,
		&p.Name,
		&p.TicketType,
		&p.Priority,
		&p.ResponseTargetMinutes,
		&p.ResolutionTargetMinutes,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, nil, err
	}
	return &ticket, p.toDomain(), nil
}

// validID rejects identifiers Postgres would refuse as uuid so they read
// as missing rows instead of query errors.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
