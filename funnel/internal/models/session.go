package models

import "time"

// Session is one visitor's pass through the funnel.
type Session struct {
	ID         string   `json:"id"`
	OperatorID string   `json:"operator_id"`
	State      string   `json:"state"`
	SourceURL  string   `json:"source_url"`
	UTM        UTM      `json:"utm"`
	Form       FormData `json:"form"`
	LeadID     string   `json:"lead_id,omitempty"`
	// Pending is the event minted for the step in progress. A retried
	// step reuses it so both channels keep one event id.
	Pending   *PendingEvent `json:"pending,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// PendingEvent holds the ids reserved for one step until it completes.
type PendingEvent struct {
	State   string `json:"state"`
	EventID string `json:"event_id"`
	LeadID  string `json:"lead_id,omitempty"`
}

// FormData accumulates what the visitor has entered so far.
type FormData struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	PostalCode string `json:"postal_code"`
	PlanID     string `json:"plan_id"`
	Source     string `json:"source"`
}

// SourceOptions are the answers offered for "where did you hear about us".
var SourceOptions = []string{"Google", "Facebook", "Instagram", "Indicação", "WhatsApp", "Outros"}
