package domain

import "time"

// SLAPolicy holds response and resolution targets for a (type, priority) pair.
type SLAPolicy struct {
	ID                      string
	Name                    string
	TicketType              TicketType
	Priority                TicketPriority
	ResponseTargetMinutes   int
	ResolutionTargetMinutes int
	Active                  bool
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// ResponseTargetHours converts the response target to hours.
func (p SLAPolicy) ResponseTargetHours() float64 {
	return float64(p.ResponseTargetMinutes) / 60
}

// ResolutionTargetHours converts the resolution target to hours.
func (p SLAPolicy) ResolutionTargetHours() float64 {
	return float64(p.ResolutionTargetMinutes) / 60
}
