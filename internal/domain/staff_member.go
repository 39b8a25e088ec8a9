package domain

import "time"

// StaffRole enumerates internal operator roles.
type StaffRole string

const (
	StaffRoleAgent    StaffRole = "AGENT"
	StaffRoleTeamLead StaffRole = "TEAM_LEAD"
	StaffRoleAdmin    StaffRole = "ADMIN"
)

// SeesAllTickets reports whether the role is exempt from assignee scoping.
func (r StaffRole) SeesAllTickets() bool {
	return r == StaffRoleTeamLead || r == StaffRoleAdmin
}

// StaffMember models a support agent or administrator.
type StaffMember struct {
	ID        string
	Name      string
	Email     string
	Role      StaffRole
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
