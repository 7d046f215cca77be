package models

import "time"

// LeadStatus tracks a lead through the sales follow-up.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusConverted LeadStatus = "converted"
)

// Valid reports whether s is a known status.
func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusConverted:
		return true
	}
	return false
}

// DemoOperatorID owns leads captured without an operator.
const DemoOperatorID = "demo_operation"

// Lead is a completed funnel signup.
type Lead struct {
	ID         string     `json:"id"`
	OperatorID string     `json:"operator_id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Phone      string     `json:"phone"`
	PostalCode string     `json:"postal_code,omitempty"`
	PlanID     string     `json:"plan_id"`
	PlanName   string     `json:"plan_name"`
	Value      float64    `json:"value"`
	Source     string     `json:"source"`
	Status     LeadStatus `json:"status"`
	EventID    string     `json:"event_id"`
	UTM        UTM        `json:"utm"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// LeadFilter narrows a lead listing.
type LeadFilter struct {
	OperatorID string
	Status     LeadStatus
	// Search matches name or email case-insensitively, or phone as a substring.
	Search string
	Limit  int
	Offset int
}
