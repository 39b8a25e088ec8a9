package domain

// SubjectType tags who a bearer token was issued to. The SLA API accepts
// only STAFF tokens; USER tokens come from the end-user portal.
type SubjectType string

const (
	SubjectTypeUser  SubjectType = "USER"
	SubjectTypeStaff SubjectType = "STAFF"
)
