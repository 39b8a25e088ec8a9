package domain

// SLASide names which clock of a policy a record refers to.
type SLASide string

const (
	SLASideResponse   SLASide = "response"
	SLASideResolution SLASide = "resolution"
)

// ComplianceResult is computed on every request and never persisted.
// The compliant flags stay nil when the ticket carries no policy.
type ComplianceResult struct {
	TicketID              string
	HasSLA                bool
	PolicyID              *string
	PolicyName            string
	ResponseHours         float64
	ResponseTargetHours   float64
	ResponseCompliant     *bool
	ResponsePercent       float64
	ResolutionHours       float64
	ResolutionTargetHours float64
	ResolutionCompliant   *bool
	ResolutionPercent     float64
	ProximityScore        float64
}

// BreachRecord marks an open ticket past at least one target.
type BreachRecord struct {
	Ticket             Ticket
	Policy             SLAPolicy
	Result             ComplianceResult
	ResponseBreached   bool
	ResolutionBreached bool
}

// Sides lists the breached clocks.
func (b BreachRecord) Sides() []SLASide {
	sides := make([]SLASide, 0, 2)
	if b.ResponseBreached {
		sides = append(sides, SLASideResponse)
	}
	if b.ResolutionBreached {
		sides = append(sides, SLASideResolution)
	}
	return sides
}

// WarningRecord flags a pending clock that crossed the warning threshold.
type WarningRecord struct {
	Ticket         Ticket
	Policy         SLAPolicy
	Side           SLASide
	ElapsedHours   float64
	TargetHours    float64
	Percentage     float64
	RemainingHours float64
}
